package ransac

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"page-dewarp/internal/geom"
)

// PolyModel fits y = p(x) with the degree capped by the sample size.
type PolyModel struct {
	Degree int
}

func (m PolyModel) Fit(pts []geom.Point) (geom.Poly, error) {
	deg := m.Degree
	if deg > len(pts)-1 {
		deg = len(pts) - 1
	}
	return geom.FitPoly(geom.Xs(pts), geom.Ys(pts), deg)
}

func (PolyModel) Residual(p geom.Poly, pt geom.Point) float64 {
	return math.Abs(p.Eval(pt.X) - pt.Y)
}

// XLine is x = Alpha + Beta*y, suited to near-vertical page margins.
type XLine struct {
	Alpha, Beta float64
}

// Line converts the model to a homogeneous line.
func (l XLine) Line() geom.Line {
	return geom.LineFromPoints(geom.Pt(l.Alpha, 0), geom.Pt(l.Alpha+l.Beta, 1))
}

func (l XLine) X(y float64) float64 { return l.Alpha + l.Beta*y }

// XLineModel fits x as a linear function of y.
type XLineModel struct{}

func (XLineModel) Fit(pts []geom.Point) (XLine, error) {
	if len(pts) < 2 {
		return XLine{}, geom.ErrDegenerate
	}
	ys := geom.Ys(pts)
	if stat.Variance(ys, nil) == 0 {
		return XLine{}, geom.ErrDegenerate
	}
	alpha, beta := stat.LinearRegression(ys, geom.Xs(pts), nil, false)
	return XLine{Alpha: alpha, Beta: beta}, nil
}

func (XLineModel) Residual(l XLine, pt geom.Point) float64 {
	return math.Abs(l.X(pt.Y) - pt.X)
}
