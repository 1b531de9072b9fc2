// Package lsq minimizes sums of squared residuals with a damped
// Gauss-Newton (Levenberg-Marquardt) iteration. Unknowns are scaled by the
// running maximum of the Jacobian column norms so that parameters in
// radians and in pixels take comparable steps.
package lsq

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when the damped normal equations cannot be
// factorized. Retrying with more damping usually helps.
var ErrSingular = errors.New("lsq: singular damped normal equations")

// Problem is a residual vector r(x) of length m over n unknowns.
type Problem interface {
	Dims() (m, n int)
	Residuals(dst, x []float64)
	// Jacobian fills the m by n matrix dr/dx.
	Jacobian(dst *mat.Dense, x []float64)
}

type Status int

const (
	Converged      Status = iota // relative improvement fell below FTol
	CostSmall                    // cost fell below MinCost
	DampingCeiling               // no improving step below the damping ceiling
	MaxIterations
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case CostSmall:
		return "cost small"
	case DampingCeiling:
		return "damping ceiling"
	case MaxIterations:
		return "max iterations"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Settings controls the iteration.
type Settings struct {
	MaxIterations int
	FTol          float64
	MinCost       float64
	Damping       float64 // initial damping factor
	Up, Down      float64
	Ceiling       float64
	// Observe, when set, is called after every accepted step.
	Observe func(iter int, cost float64)
}

func DefaultSettings() Settings {
	return Settings{
		MaxIterations: 500,
		FTol:          1e-6,
		MinCost:       1e-6,
		Damping:       100,
		Up:            1.2,
		Down:          4.0,
		Ceiling:       1000,
	}
}

// Result holds the best iterate found.
type Result struct {
	X          []float64
	Cost       float64 // half the sum of squared residuals
	Iterations int
	Status     Status
}

const minDamping = 1e-12

// Minimize runs the solver from x0. Non-convergence is reported through
// Result.Status; the only error is ErrSingular, returned together with the
// best iterate reached before the failed solve.
func Minimize(p Problem, x0 []float64, s Settings) (Result, error) {
	m, n := p.Dims()
	x := append([]float64(nil), x0...)
	r := make([]float64, m)
	p.Residuals(r, x)

	res := Result{X: x, Cost: halfSquared(r)}
	jac := mat.NewDense(m, n, nil)
	scale := make([]float64, n)
	trial := make([]float64, n)
	rt := make([]float64, m)

	var (
		jtj    mat.SymDense
		grad   mat.VecDense
		lambda = s.Damping
		fresh  = true
	)
	for res.Iterations < s.MaxIterations {
		if res.Cost < s.MinCost {
			res.Status = CostSmall
			return res, nil
		}
		if fresh {
			p.Jacobian(jac, x)
			updateScale(scale, jac)
			jtj.SymOuterK(1, jac.T())
			grad.MulVec(jac.T(), mat.NewVecDense(m, r))
			fresh = false
		}

		step, err := solve(&jtj, &grad, scale, lambda)
		if err != nil {
			return res, fmt.Errorf("iteration %d with damping %g: %w", res.Iterations, lambda, err)
		}
		floats.SubTo(trial, x, step)
		p.Residuals(rt, trial)
		next := halfSquared(rt)
		res.Iterations++

		if next < res.Cost {
			prev := res.Cost
			copy(x, trial)
			copy(r, rt)
			res.Cost = next
			lambda = math.Max(lambda/s.Down, minDamping)
			fresh = true
			if s.Observe != nil {
				s.Observe(res.Iterations, next)
			}
			if prev-next < s.FTol*prev {
				res.Status = Converged
				return res, nil
			}
			continue
		}

		lambda *= s.Up
		if lambda > s.Ceiling {
			res.Status = DampingCeiling
			return res, nil
		}
	}
	res.Status = MaxIterations
	return res, nil
}

// solve returns the step d of (JᵀJ + λD²) d = Jᵀr.
func solve(jtj *mat.SymDense, grad *mat.VecDense, scale []float64, lambda float64) ([]float64, error) {
	n := len(scale)
	a := mat.NewSymDense(n, nil)
	a.CopySym(jtj)
	for i, d := range scale {
		a.SetSym(i, i, a.At(i, i)+lambda*d*d)
	}
	var ch mat.Cholesky
	if ok := ch.Factorize(a); !ok {
		return nil, ErrSingular
	}
	step := mat.NewVecDense(n, nil)
	if err := ch.SolveVecTo(step, grad); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrSingular)
	}
	return step.RawVector().Data, nil
}

// updateScale keeps the largest column norm seen so far. Columns that have
// never been non-zero get unit scale.
func updateScale(scale []float64, jac *mat.Dense) {
	m, _ := jac.Dims()
	col := make([]float64, m)
	for j := range scale {
		mat.Col(col, j, jac)
		scale[j] = math.Max(scale[j], floats.Norm(col, 2))
	}
	for j, d := range scale {
		if d == 0 {
			scale[j] = 1
		}
	}
}

func halfSquared(r []float64) float64 {
	return 0.5 * floats.Dot(r, r)
}
