// Package vanish estimates the vertical vanishing point of a page from the
// straight column margins and the tangents of its curved baselines.
package vanish

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"page-dewarp/internal/geom"
	"page-dewarp/internal/ransac"
	"page-dewarp/internal/text"
)

var (
	// ErrParallel is returned when the fitted margins never meet.
	ErrParallel = errors.New("vanish: side lines are parallel")
	// ErrDegenerate is returned when too few lines can be sampled.
	ErrDegenerate = errors.New("vanish: not enough usable lines")
)

// Params tunes vanishing point estimation.
type Params struct {
	Focal      float64
	Iterations int
	Longitudes int
	// Tolerance stops refinement early once the point moves less than this
	// many pixels. Zero runs the full iteration count.
	Tolerance  float64
	Threshold  float64 // RANSAC margin threshold as a multiple of AH
	MinSamples int
	Trials     int
	Rand       *rand.Rand
}

func DefaultParams(focal float64) Params {
	return Params{
		Focal:      focal,
		Iterations: 5,
		Longitudes: 15,
		Threshold:  1.0 / 10,
		MinSamples: 3,
		Trials:     100,
	}
}

// SideLines fits straight lines through the left-mid points of the first
// letters and the right-mid points of the last letters.
func SideLines(ah float64, lines []*text.Line, p Params) (left, right geom.Line, err error) {
	lefts := make([]geom.Point, len(lines))
	rights := make([]geom.Point, len(lines))
	for i, l := range lines {
		lefts[i] = l.First().LeftMid()
		rights[i] = l.Last().RightMid()
	}
	rp := ransac.Params{MinSamples: p.MinSamples, Threshold: ah * p.Threshold, MaxTrials: p.Trials, Rand: p.Rand}

	lm, _, err := ransac.Fit[ransac.XLine](lefts, ransac.XLineModel{}, rp)
	if err != nil {
		return geom.Line{}, geom.Line{}, fmt.Errorf("left margin: %w", err)
	}
	rm, _, err := ransac.Fit[ransac.XLine](rights, ransac.XLineModel{}, rp)
	if err != nil {
		return geom.Line{}, geom.Line{}, fmt.Errorf("right margin: %w", err)
	}
	return lm.Line(), rm.Line(), nil
}

// Estimate intersects the two margins.
func Estimate(ah float64, lines []*text.Line, p Params) (geom.Point, error) {
	left, right, err := SideLines(ah, lines, p)
	if err != nil {
		return geom.Point{}, err
	}
	v, ok := left.Intersect(right)
	if !ok {
		return geom.Point{}, ErrParallel
	}
	return v, nil
}

// Widest returns the line with the largest horizontal extent.
func Widest(lines []*text.Line) *text.Line {
	var best *text.Line
	for _, l := range lines {
		if best == nil || l.Width() > best.Width() {
			best = l
		}
	}
	return best
}

// RefineOnce samples longitudes from v0 through the widest line, intersects
// the baseline tangents along each longitude and maps the line through
// those convergence points back to a vanishing point with the pinhole
// relation x*vx + y*vy + f^2 = 0 about the principal point o.
func RefineOnce(lines []*text.Line, v0, o geom.Point, focal float64, longitudes int) (geom.Point, error) {
	ref := Widest(lines)
	if ref == nil || longitudes < 2 {
		return geom.Point{}, ErrDegenerate
	}

	domain := geom.Linspace(ref.Left(), ref.Right(), longitudes+2)
	domain = domain[1 : len(domain)-1]
	longs := make([]geom.Line, len(domain))
	for i, x := range domain {
		longs[i] = geom.LineFromPoints(v0, geom.Pt(x, ref.Model.Eval(x)))
	}

	valid := []*text.Line{ref}
	for _, l := range lines {
		if l == ref {
			continue
		}
		lp, ok1 := l.Intersect(longs[0])
		rp, ok2 := l.Intersect(longs[len(longs)-1])
		if ok1 && ok2 && l.Left() <= lp.X && rp.X < l.Right() {
			valid = append(valid, l)
		}
	}
	if len(valid) < 2 {
		return geom.Point{}, ErrDegenerate
	}

	derivs := make([]geom.Poly, len(valid))
	for i, l := range valid {
		derivs[i] = l.Model.Deriv()
	}

	var convergences []geom.Point
	for _, long := range longs {
		var tangents []geom.Line
		for i, l := range valid {
			p, ok := l.Intersect(long)
			if !ok {
				continue
			}
			tangents = append(tangents, geom.LineFromPointSlope(p, derivs[i].Eval(p.X)))
		}
		c, err := geom.BestIntersection(tangents)
		if err != nil {
			continue
		}
		convergences = append(convergences, c)
	}

	horizon, err := geom.FitLine(convergences)
	if err != nil {
		return geom.Point{}, fmt.Errorf("%d convergence points: %w", len(convergences), ErrDegenerate)
	}
	h := horizon.Offset(o.Scale(-1))
	if math.Abs(h.C) < 1e-9 {
		return geom.Point{}, ErrDegenerate
	}
	f2 := focal * focal
	return geom.Pt(f2*h.A/h.C, f2*h.B/h.C).Add(o), nil
}

// Refine iterates RefineOnce. A failed iteration keeps the previous point.
func Refine(lines []*text.Line, v0, o geom.Point, p Params, log *slog.Logger) geom.Point {
	v := v0
	for i := 0; i < p.Iterations; i++ {
		next, err := RefineOnce(lines, v, o, p.Focal, p.Longitudes)
		if err != nil {
			log.Warn("vanishing point refinement stopped", "iteration", i, "err", err)
			break
		}
		moved := geom.Dist(next, v)
		v = next
		log.Debug("vanishing point", "iteration", i, "x", v.X, "y", v.Y, "moved", moved)
		if p.Tolerance > 0 && moved < p.Tolerance {
			break
		}
	}
	return v
}

// FullLines keeps the lines that, projected along rays from v onto the
// widest line, cover its whole extent to within AH.
func FullLines(ah float64, lines []*text.Line, v geom.Point) []*text.Line {
	ref := Widest(lines)
	var out []*text.Line
	for _, l := range lines {
		if l == ref {
			out = append(out, l)
			continue
		}
		lp, ok1 := ref.Intersect(geom.LineFromPoints(v, l.First().LeftBot()))
		rp, ok2 := ref.Intersect(geom.LineFromPoints(v, l.Last().RightBot()))
		if ok1 && ok2 && lp.X <= ref.Left()+ah && rp.X >= ref.Right()-ah {
			out = append(out, l)
		}
	}
	return out
}
