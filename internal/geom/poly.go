package geom

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Poly is a polynomial evaluated in the normalized variable
// u = (x - Center) * Scale, which keeps high-degree fits over pixel
// coordinates well conditioned. Coef is in ascending order.
type Poly struct {
	Coef   []float64
	Center float64
	Scale  float64
}

// NewPoly returns a polynomial in plain x.
func NewPoly(coef ...float64) Poly {
	return Poly{Coef: coef, Scale: 1}
}

func (p Poly) Degree() int { return len(p.Coef) - 1 }

func (p Poly) Eval(x float64) float64 {
	u := (x - p.Center) * p.Scale
	var y float64
	for i := len(p.Coef) - 1; i >= 0; i-- {
		y = y*u + p.Coef[i]
	}
	return y
}

// Deriv returns dp/dx.
func (p Poly) Deriv() Poly {
	if len(p.Coef) <= 1 {
		return Poly{Coef: []float64{0}, Center: p.Center, Scale: p.Scale}
	}
	coef := make([]float64, len(p.Coef)-1)
	for i := 1; i < len(p.Coef); i++ {
		coef[i-1] = float64(i) * p.Coef[i] * p.Scale
	}
	return Poly{Coef: coef, Center: p.Center, Scale: p.Scale}
}

// FitPoly least-squares fits a polynomial of the given degree to (xs, ys)
// with the domain of xs mapped onto [-1, 1].
func FitPoly(xs, ys []float64, degree int) (Poly, error) {
	if len(xs) != len(ys) {
		return Poly{}, fmt.Errorf("geom: fit with %d xs and %d ys", len(xs), len(ys))
	}
	if degree < 0 || len(xs) < degree+1 {
		return Poly{}, fmt.Errorf("geom: %d points cannot fit degree %d: %w", len(xs), degree, ErrDegenerate)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	p := Poly{Center: (lo + hi) / 2, Scale: 1}
	if hi > lo {
		p.Scale = 2 / (hi - lo)
	}

	n, cols := len(xs), degree+1
	v := mat.NewDense(n, cols, nil)
	for i, x := range xs {
		u := (x - p.Center) * p.Scale
		pow := 1.0
		for j := 0; j < cols; j++ {
			v.Set(i, j, pow)
			pow *= u
		}
	}

	var c mat.VecDense
	if err := c.SolveVec(v, mat.NewVecDense(n, append([]float64(nil), ys...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return Poly{}, fmt.Errorf("geom: polynomial fit: %w", err)
		}
	}
	p.Coef = make([]float64, cols)
	for j := range p.Coef {
		p.Coef[j] = c.AtVec(j)
		if math.IsNaN(p.Coef[j]) {
			return Poly{}, fmt.Errorf("geom: polynomial fit: %w", ErrDegenerate)
		}
	}
	return p, nil
}

// MeanAbsDifference is the integral of |p - q| over [x0, x1] divided by the
// interval width, by the trapezoid rule on n samples.
func MeanAbsDifference(p, q Poly, x0, x1 float64, n int) float64 {
	if n < 2 {
		n = 2
	}
	if x1 == x0 {
		return math.Abs(p.Eval(x0) - q.Eval(x0))
	}
	xs := Linspace(x0, x1, n)
	var sum float64
	for i, x := range xs {
		d := math.Abs(p.Eval(x) - q.Eval(x))
		if i == 0 || i == n-1 {
			d /= 2
		}
		sum += d
	}
	return sum / float64(n-1)
}
