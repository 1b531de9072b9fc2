package geom

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrDegenerate is returned when a construction has no unique solution,
// e.g. parallel lines or coincident points.
var ErrDegenerate = errors.New("geom: degenerate configuration")

const eps = 1e-12

// Line is the set of points with A*x + B*y + C = 0, kept normalized so that
// A*A + B*B == 1. (A, B) is the unit normal.
type Line struct {
	A, B, C float64
}

func newLine(a, b, c float64) Line {
	n := math.Hypot(a, b)
	if n < eps {
		return Line{}
	}
	return Line{A: a / n, B: b / n, C: c / n}
}

// LineFromPoints returns the line through p and q.
func LineFromPoints(p, q Point) Line {
	d := q.Sub(p)
	return newLine(-d.Y, d.X, d.Y*p.X-d.X*p.Y)
}

// LineFromPointSlope returns the line y - p.Y = m (x - p.X).
func LineFromPointSlope(p Point, m float64) Line {
	return newLine(m, -1, p.Y-m*p.X)
}

// Valid reports whether l was built from distinct points.
func (l Line) Valid() bool { return l.A != 0 || l.B != 0 }

// Slope is m in y = m x + b. Vertical lines have infinite slope.
func (l Line) Slope() float64 {
	if math.Abs(l.B) < eps {
		return math.Inf(1)
	}
	return -l.A / l.B
}

// Intercept is b in y = m x + b.
func (l Line) Intercept() float64 {
	if math.Abs(l.B) < eps {
		return math.Inf(1)
	}
	return -l.C / l.B
}

// Distance is the signed distance from p to l.
func (l Line) Distance(p Point) float64 { return l.A*p.X + l.B*p.Y + l.C }

// ClosestPoint projects p onto l.
func (l Line) ClosestPoint(p Point) Point {
	d := l.Distance(p)
	return Point{p.X - d*l.A, p.Y - d*l.B}
}

// Altitude returns the line through p perpendicular to l.
func (l Line) Altitude(p Point) Line {
	return newLine(-l.B, l.A, l.B*p.X-l.A*p.Y)
}

// Offset translates l by d.
func (l Line) Offset(d Point) Line {
	return Line{A: l.A, B: l.B, C: l.C - l.A*d.X - l.B*d.Y}
}

// XAt returns x on l at height y; false for horizontal lines.
func (l Line) XAt(y float64) (float64, bool) {
	if math.Abs(l.A) < eps {
		return 0, false
	}
	return -(l.B*y + l.C) / l.A, true
}

// YAt returns y on l at abscissa x; false for vertical lines.
func (l Line) YAt(x float64) (float64, bool) {
	if math.Abs(l.B) < eps {
		return 0, false
	}
	return -(l.A*x + l.C) / l.B, true
}

// Intersect returns the common point of l and o.
func (l Line) Intersect(o Line) (Point, bool) {
	w := l.A*o.B - o.A*l.B
	if math.Abs(w) < eps {
		return Point{}, false
	}
	x := (l.B*o.C - o.B*l.C) / w
	y := (l.C*o.A - o.C*l.A) / w
	return Point{x, y}, true
}

// PolyIntersect finds where l crosses the graph y = p(x), starting Newton's
// method at x0. The root nearest x0 is returned in practice.
func (l Line) PolyIntersect(p Poly, x0 float64) (Point, bool) {
	dp := p.Deriv()
	x := x0
	for i := 0; i < 64; i++ {
		h := l.A*x + l.B*p.Eval(x) + l.C
		dh := l.A + l.B*dp.Eval(x)
		if math.Abs(dh) < eps {
			return Point{}, false
		}
		step := h / dh
		x -= step
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Point{}, false
		}
		if math.Abs(step) <= 1e-9*(1+math.Abs(x)) {
			return Point{x, p.Eval(x)}, true
		}
	}
	return Point{}, false
}

// BestIntersection returns the point minimizing the sum of squared
// distances to every line.
func BestIntersection(lines []Line) (Point, error) {
	var saa, sab, sbb, sac, sbc float64
	for _, l := range lines {
		saa += l.A * l.A
		sab += l.A * l.B
		sbb += l.B * l.B
		sac += l.A * l.C
		sbc += l.B * l.C
	}
	det := saa*sbb - sab*sab
	if len(lines) < 2 || math.Abs(det) < 1e-9 {
		return Point{}, ErrDegenerate
	}
	x := (-sac*sbb + sbc*sab) / det
	y := (-sbc*saa + sac*sab) / det
	return Point{x, y}, nil
}

// FitLine returns the total-least-squares line through points.
func FitLine(points []Point) (Line, error) {
	if len(points) < 2 {
		return Line{}, ErrDegenerate
	}
	xs, ys := Xs(points), Ys(points)
	mx, my := stat.Mean(xs, nil), stat.Mean(ys, nil)
	sxx := stat.Covariance(xs, xs, nil)
	syy := stat.Covariance(ys, ys, nil)
	sxy := stat.Covariance(xs, ys, nil)
	if sxx+syy < eps {
		return Line{}, ErrDegenerate
	}
	phi := 0.5 * math.Atan2(2*sxy, sxx-syy)
	dir := Point{math.Cos(phi), math.Sin(phi)}
	c := Point{mx, my}
	return LineFromPoints(c, c.Add(dir)), nil
}
