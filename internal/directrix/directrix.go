// Package directrix builds a dewarping mesh directly in the image from two
// extreme baselines and the vertical vanishing point, without a 3D model.
// A blend of the two baselines gives the directrix, the curve the mesh
// columns are spaced along; every column is the ray from the vanishing
// point through a directrix sample.
package directrix

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"page-dewarp/internal/geom"
	"page-dewarp/internal/text"
)

// ErrDegenerate is returned when rays from the vanishing point miss a
// reference baseline or the two baselines coincide along a ray.
var ErrDegenerate = errors.New("directrix: degenerate geometry")

// Params tunes the directrix and mesh.
type Params struct {
	Focal   float64
	MU      float64 // blend constant; larger values hug C0
	Samples int     // directrix samples before arc-length resampling
	// Aspect is the page height to width ratio used when EstimateAspect is
	// off or the estimate is unusable.
	Aspect         float64
	EstimateAspect bool
}

func DefaultParams(focal float64) Params {
	return Params{Focal: focal, MU: 30, Samples: 200, Aspect: 1.7}
}

// C0C1 returns the reference baselines of lines sorted top to bottom. C0 is
// the line farther from the vanishing point.
func C0C1(lines []*text.Line, v, o geom.Point) (c0, c1 *text.Line) {
	first, last := lines[0], lines[len(lines)-1]
	if v.Y < o.Y {
		return last, first
	}
	return first, last
}

// project returns where the ray from v through p meets the baseline of l.
func project(l *text.Line, v, p geom.Point) (geom.Point, error) {
	q, ok := l.Intersect(geom.LineFromPoints(v, p))
	if !ok {
		return geom.Point{}, fmt.Errorf("ray through (%.1f, %.1f): %w", p.X, p.Y, ErrDegenerate)
	}
	return q, nil
}

// WidestDomain returns n x samples on C0 covering every line once each line
// is slid along the rays from v onto C0.
func WidestDomain(lines []*text.Line, v, o geom.Point, n int) ([]float64, error) {
	c0, _ := C0C1(lines, v, o)
	lo, hi := c0.Left(), c0.Right()
	for _, l := range lines {
		if l == c0 {
			continue
		}
		left, err := project(c0, v, l.First().LeftBot())
		if err != nil {
			return nil, err
		}
		right, err := project(c0, v, l.Last().RightBot())
		if err != nil {
			return nil, err
		}
		lo = math.Min(lo, left.X)
		hi = math.Max(hi, right.X)
	}
	return geom.Linspace(lo, hi, n), nil
}

// lambda is the position of the vanishing point along the ray, measured
// from p0 in units of p1 - p0.
func lambda(v, p0, p1 geom.Point) float64 {
	return (v.Y - p0.Y) / (p1.Y - p0.Y)
}

// alpha is the blend weight of C1 for blend constant mu.
func alpha(mu, lam float64) float64 {
	return mu * lam / (mu + lam - 1)
}

// Directrix holds the rectified directrix D and its image C, both resampled
// evenly by arc length along D.
type Directrix struct {
	D, C []geom.Point
}

// Estimate computes the directrix of lines (sorted top to bottom) with
// width samples.
func Estimate(lines []*text.Line, v, o geom.Point, p Params, width int) (Directrix, error) {
	if len(lines) < 2 {
		return Directrix{}, fmt.Errorf("%d lines: %w", len(lines), ErrDegenerate)
	}
	domain, err := WidestDomain(lines, v, o, p.Samples)
	if err != nil {
		return Directrix{}, err
	}
	c0, c1 := C0C1(lines, v, o)

	blended := make([]geom.Point, len(domain))
	var mean geom.Point
	for i, x := range domain {
		p0 := geom.Pt(x, c0.Model.Eval(x))
		p1, ok := geom.LineFromPoints(v, p0).PolyIntersect(c1.Model, x)
		if !ok {
			return Directrix{}, fmt.Errorf("C1 at x=%.1f: %w", x, ErrDegenerate)
		}
		a := alpha(p.MU, lambda(v, p0, p1))
		blended[i] = geom.Lerp(p0, p1, a)
		mean = mean.Add(blended[i])
	}
	mean = mean.Scale(1 / float64(len(blended))).Sub(o)

	a := rectifier(v.Sub(o), mean, p.Focal)
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return Directrix{}, fmt.Errorf("rectifier: %v: %w", err, ErrDegenerate)
	}
	d := transform(&inv, blended)
	dArc, _ := geom.ArcLengthResample(d, width)
	return Directrix{D: dArc, C: transform(a, dArc)}, nil
}

// rectifier is the linear map from the rectified directrix to its image for
// a camera tilted towards the vanishing point v, with c the directrix
// centroid, both relative to the principal point.
func rectifier(v, c geom.Point, focal float64) *mat.Dense {
	theta := math.Acos(focal / math.Sqrt(v.X*v.X+v.Y*v.Y+focal*focal))
	s := math.Sin(theta)
	return mat.NewDense(2, 2, []float64{
		1, -c.X / focal * s,
		0, math.Cos(theta) - c.Y/focal*s,
	})
}

func transform(m mat.Matrix, pts []geom.Point) []geom.Point {
	out := make([]geom.Point, len(pts))
	for i, p := range pts {
		out[i] = geom.Pt(m.At(0, 0)*p.X+m.At(0, 1)*p.Y, m.At(1, 0)*p.X+m.At(1, 1)*p.Y)
	}
	return out
}

// NecessaryMu returns the blend constant that makes the mesh reach the
// given edge of the extreme line of all (sorted top to bottom).
func NecessaryMu(c0, c1 *text.Line, v geom.Point, all []*text.Line, e text.Edge) (float64, error) {
	line := text.EdgeLine(e, all)
	if line == nil {
		return 0, fmt.Errorf("no %s line: %w", e, ErrDegenerate)
	}
	point := text.EdgePoint(e)

	mus := make([]float64, 0, line.Len())
	for _, letter := range line.Letters {
		pt := point(letter)
		p0, err := project(c0, v, pt)
		if err != nil {
			return 0, err
		}
		p1, err := project(c1, v, pt)
		if err != nil {
			return 0, err
		}
		span := p1.Y - p0.Y
		lam := (v.Y - p0.Y) / span
		a := (pt.Y - p0.Y) / span
		mus = append(mus, a*(1-lam)/(a-lam))
	}
	sort.Float64s(mus)
	if stat.Quantile(0.5, stat.Empirical, mus, nil) >= 0.5 {
		return mus[len(mus)-1] + 0.01, nil
	}
	return mus[0] - 0.01, nil
}

// GenerateMesh spans rows rows between the blend constants that reach the
// top of the first line and the bottom of the last line of all, along the
// columns through every point of the directrix image c.
func GenerateMesh(all, lines []*text.Line, c []geom.Point, v, o geom.Point, rows int) (*geom.Mesh, error) {
	c0, c1 := C0C1(lines, v, o)
	muBottom, err := NecessaryMu(c0, c1, v, all, text.Bottom)
	if err != nil {
		return nil, err
	}
	muTop, err := NecessaryMu(c0, c1, v, all, text.Top)
	if err != nil {
		return nil, err
	}
	mus := geom.Linspace(muTop, muBottom, rows)

	m := geom.NewMesh(rows, len(c))
	for j, ci := range c {
		p0, err := project(c0, v, ci)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", j, err)
		}
		p1, err := project(c1, v, ci)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", j, err)
		}
		lam := lambda(v, p0, p1)
		for i, mu := range mus {
			m.Set(i, j, geom.Lerp(p0, p1, alpha(mu, lam)))
		}
	}
	m.Orient()
	return m, nil
}

// AspectRatio estimates the page height to width ratio from the directrix
// and the two reference lines. It reports false when the estimate is not a
// finite positive number.
func AspectRatio(lines []*text.Line, d Directrix, v, o geom.Point, focal float64) (float64, bool) {
	c0, c1 := C0C1(lines, v, o)
	vo := v.Sub(o)

	m := -vo.X / vo.Y
	l0 := geom.LineFromPointSlope(c0.First().BasePoint(), m)
	l1 := geom.LineFromPointSlope(c1.First().BasePoint(), m)
	perp := l0.Altitude(v)
	p0, ok0 := l0.Intersect(perp)
	p1, ok1 := l1.Intersect(perp)
	if !ok0 || !ok1 {
		return 0, false
	}
	hImg := geom.Dist(p0, p1)

	// Horizon of the page plane: x vx + y vy + f² = 0 about o.
	horizon := geom.LineFromPointSlope(geom.Pt(o.X, o.Y-focal*focal/vo.Y), m)
	foot, ok := horizon.Altitude(v).Intersect(horizon)
	if !ok {
		return 0, false
	}
	last := lines[len(lines)-1]
	q0, ok := geom.LineFromPoints(foot, last.Last().BasePoint()).Intersect(l0)
	if !ok {
		return 0, false
	}
	lImg := geom.Dist(q0, p0)

	alpha := math.Atan2(geom.Dist(p1, o), focal)
	theta := math.Acos(focal / math.Sqrt(vo.X*vo.X+vo.Y*vo.Y+focal*focal))
	beta := math.Pi/2 - theta

	lp := math.Abs(d.D[len(d.D)-1].X - d.D[0].X)
	var wp float64
	for i := 1; i < len(d.D); i++ {
		wp += geom.Dist(d.D[i], d.D[i-1])
	}
	r := hImg * lp * math.Cos(alpha) / (lImg * wp * math.Cos(alpha+beta))
	if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
		return 0, false
	}
	return r, true
}
