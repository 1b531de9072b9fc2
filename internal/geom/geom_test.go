package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineConstruction(t *testing.T) {
	l := LineFromPoints(Pt(0, 1), Pt(2, 5))
	assert.InDelta(t, 1, l.A*l.A+l.B*l.B, 1e-12)
	assert.InDelta(t, 2, l.Slope(), 1e-12)
	assert.InDelta(t, 1, l.Intercept(), 1e-12)
	assert.InDelta(t, 0, l.Distance(Pt(1, 3)), 1e-12)

	m := LineFromPointSlope(Pt(1, 3), 2)
	assert.InDelta(t, 0, m.Distance(Pt(0, 1)), 1e-12)

	y, ok := l.YAt(3)
	require.True(t, ok)
	assert.InDelta(t, 7, y, 1e-12)
	x, ok := l.XAt(7)
	require.True(t, ok)
	assert.InDelta(t, 3, x, 1e-12)

	vertical := LineFromPoints(Pt(4, 0), Pt(4, 1))
	assert.True(t, math.IsInf(vertical.Slope(), 1))
	_, ok = vertical.YAt(4)
	assert.False(t, ok)

	assert.False(t, LineFromPoints(Pt(1, 1), Pt(1, 1)).Valid())
}

func TestLineIntersections(t *testing.T) {
	a := LineFromPoints(Pt(0, 0), Pt(1, 1))
	b := LineFromPoints(Pt(0, 2), Pt(2, 0))
	p, ok := a.Intersect(b)
	require.True(t, ok)
	assert.InDelta(t, 1, p.X, 1e-12)
	assert.InDelta(t, 1, p.Y, 1e-12)

	_, ok = a.Intersect(a.Offset(Pt(0, 1)))
	assert.False(t, ok)

	alt := a.Altitude(Pt(2, 0))
	foot, ok := alt.Intersect(a)
	require.True(t, ok)
	assert.InDelta(t, 1, foot.X, 1e-12)
	assert.InDelta(t, foot.X, a.ClosestPoint(Pt(2, 0)).X, 1e-12)

	shifted := a.Offset(Pt(3, 0))
	assert.InDelta(t, 0, shifted.Distance(Pt(3, 0)), 1e-12)
}

func TestPolyIntersect(t *testing.T) {
	parabola := NewPoly(0, 0, 1)
	l := LineFromPointSlope(Pt(0, 4), 0)

	p, ok := l.PolyIntersect(parabola, 1)
	require.True(t, ok)
	assert.InDelta(t, 2, p.X, 1e-9)
	p, ok = l.PolyIntersect(parabola, -1)
	require.True(t, ok)
	assert.InDelta(t, -2, p.X, 1e-9)
}

func TestBestIntersection(t *testing.T) {
	target := Pt(10, -4)
	var lines []Line
	for _, m := range []float64{-1, 0.5, 3} {
		lines = append(lines, LineFromPointSlope(target, m))
	}
	p, err := BestIntersection(lines)
	require.NoError(t, err)
	assert.InDelta(t, target.X, p.X, 1e-9)
	assert.InDelta(t, target.Y, p.Y, 1e-9)

	_, err = BestIntersection(lines[:1])
	assert.ErrorIs(t, err, ErrDegenerate)
	_, err = BestIntersection([]Line{lines[0], lines[0].Offset(Pt(1, 0))})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestFitLine(t *testing.T) {
	pts := []Point{{0, 1}, {1, 3}, {2, 5}, {3, 7}}
	l, err := FitLine(pts)
	require.NoError(t, err)
	for _, p := range pts {
		assert.InDelta(t, 0, l.Distance(p), 1e-9)
	}

	vertical, err := FitLine([]Point{{5, 0}, {5, 1}, {5, 3}})
	require.NoError(t, err)
	assert.InDelta(t, 1, math.Abs(vertical.A), 1e-9)

	_, err = FitLine([]Point{{1, 1}, {1, 1}})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestFitPolyRecoversPolynomial(t *testing.T) {
	truth := NewPoly(3, -0.5, 2e-3, 0, 0, 1e-12)
	xs := Linspace(500, 2500, 60)
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = truth.Eval(x)
	}

	p, err := FitPoly(xs, ys, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Degree())
	for _, x := range Linspace(500, 2500, 17) {
		assert.InDelta(t, truth.Eval(x), p.Eval(x), 1e-6*math.Max(1, math.Abs(truth.Eval(x))))
	}

	d := p.Deriv()
	td := truth.Deriv()
	for _, x := range []float64{600, 1500, 2400} {
		assert.InEpsilon(t, td.Eval(x), d.Eval(x), 1e-6)
	}

	_, err = FitPoly(xs[:3], ys[:3], 5)
	assert.ErrorIs(t, err, ErrDegenerate)
	_, err = FitPoly(xs, ys[:4], 2)
	assert.Error(t, err)
}

func TestMeanAbsDifference(t *testing.T) {
	p := NewPoly(1)
	q := NewPoly(0, 1)
	// |1 - x| over [0, 2] averages 1/2.
	assert.InDelta(t, 0.5, MeanAbsDifference(p, q, 0, 2, 401), 1e-4)
	assert.Equal(t, 0.0, MeanAbsDifference(p, p, 0, 2, 10))
}

func TestArcLengthResample(t *testing.T) {
	pts := []Point{{0, 0}, {3, 0}, {3, 0}, {3, 4}}
	out, total := ArcLengthResample(pts, 8)
	require.Len(t, out, 8)
	assert.InDelta(t, 7, total, 1e-12)
	assert.Equal(t, pts[0], out[0])
	assert.InDelta(t, 3, out[7].X, 1e-12)
	assert.InDelta(t, 4, out[7].Y, 1e-12)
	for i := 1; i < len(out); i++ {
		assert.InDelta(t, 1, Dist(out[i], out[i-1]), 1e-9)
	}

	single, total := ArcLengthResample([]Point{{2, 2}}, 3)
	assert.Equal(t, []Point{{2, 2}, {2, 2}, {2, 2}}, single)
	assert.Zero(t, total)
}

func TestMeshOrient(t *testing.T) {
	m := NewMesh(2, 3)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, Pt(float64(10-c), float64(5-r)))
		}
	}
	cols, rows := m.Orient()
	assert.True(t, cols)
	assert.True(t, rows)
	assert.Equal(t, Pt(8, 4), m.At(0, 0))
	assert.Equal(t, Pt(10, 5), m.At(1, 2))

	cols, rows = m.Orient()
	assert.False(t, cols)
	assert.False(t, rows)
	assert.Equal(t, Crop{8, 4, 10, 5}, m.Bounds())
}

func TestCrop(t *testing.T) {
	c := CropFromPoints([]Point{{1, 2}, {5, -1}, {3, 4}})
	assert.Equal(t, Crop{1, -1, 5, 4}, c)
	assert.Equal(t, 4.0, c.W())
	assert.Equal(t, 5.0, c.H())
	e := c.Expand(0.1)
	assert.InDeltaSlice(t, []float64{0.6, -1.5, 5.4, 4.5}, []float64{e.X0, e.Y0, e.X1, e.Y1}, 1e-12)
	assert.True(t, Crop{}.Empty())
	assert.Equal(t, Crop{0, -1, 5, 4}, c.Union(Crop{0, 0, 1, 1}))
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3))
	assert.Equal(t, []float64{7}, Linspace(7, 9, 1))
	assert.Nil(t, Linspace(0, 1, 0))
}
