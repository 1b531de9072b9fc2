package lsq

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type rosenbrock struct{}

func (rosenbrock) Dims() (int, int) { return 2, 2 }

func (rosenbrock) Residuals(dst, x []float64) {
	dst[0] = 10 * (x[1] - x[0]*x[0])
	dst[1] = 1 - x[0]
}

func (rosenbrock) Jacobian(dst *mat.Dense, x []float64) {
	dst.Set(0, 0, -20*x[0])
	dst.Set(0, 1, 10)
	dst.Set(1, 0, -1)
	dst.Set(1, 1, 0)
}

// growth fits y = a*exp(b*t), whose unknowns differ by orders of magnitude.
type growth struct{ t, y []float64 }

func newGrowth(a, b float64) growth {
	var g growth
	for t := 0.0; t <= 100; t += 5 {
		g.t = append(g.t, t)
		g.y = append(g.y, a*math.Exp(b*t))
	}
	return g
}

func (g growth) Dims() (int, int) { return len(g.t), 2 }

func (g growth) Residuals(dst, x []float64) {
	for i, t := range g.t {
		dst[i] = x[0]*math.Exp(x[1]*t) - g.y[i]
	}
}

func (g growth) Jacobian(dst *mat.Dense, x []float64) {
	for i, t := range g.t {
		e := math.Exp(x[1] * t)
		dst.Set(i, 0, e)
		dst.Set(i, 1, x[0]*t*e)
	}
}

// flat ignores its second unknown.
type flat struct{}

func (flat) Dims() (int, int) { return 1, 2 }

func (flat) Residuals(dst, x []float64) { dst[0] = x[0] - 3 }

func (flat) Jacobian(dst *mat.Dense, x []float64) {
	dst.Set(0, 0, 1)
	dst.Set(0, 1, 0)
}

func TestMinimizeRosenbrock(t *testing.T) {
	s := DefaultSettings()
	s.MinCost = 1e-16
	s.FTol = 1e-12
	res, err := Minimize(rosenbrock{}, []float64{-1.2, 1}, s)
	require.NoError(t, err)
	assert.InDelta(t, 1, res.X[0], 1e-4)
	assert.InDelta(t, 1, res.X[1], 1e-4)
	assert.NotEqual(t, MaxIterations, res.Status)
}

func TestMinimizeScalesUnknowns(t *testing.T) {
	g := newGrowth(500, 0.01)
	res, err := Minimize(g, []float64{100, 0}, DefaultSettings())
	require.NoError(t, err)
	assert.InDelta(t, 500, res.X[0], 0.5)
	assert.InDelta(t, 0.01, res.X[1], 1e-5)
}

func TestMinimizeNeverIncreasesCost(t *testing.T) {
	var costs []float64
	s := DefaultSettings()
	s.Observe = func(_ int, cost float64) { costs = append(costs, cost) }

	g := newGrowth(500, 0.01)
	x0 := []float64{100, 0}
	r := make([]float64, len(g.t))
	g.Residuals(r, x0)
	start := halfSquared(r)

	res, err := Minimize(g, x0, s)
	require.NoError(t, err)
	require.NotEmpty(t, costs)
	assert.Less(t, costs[0], start)
	for i := 1; i < len(costs); i++ {
		assert.Less(t, costs[i], costs[i-1])
	}
	assert.Equal(t, costs[len(costs)-1], res.Cost)
}

func TestMinimizeSingular(t *testing.T) {
	s := DefaultSettings()
	s.Damping = 0
	res, err := Minimize(flat{}, []float64{0, 0}, s)
	assert.ErrorIs(t, err, ErrSingular)
	assert.Equal(t, []float64{0, 0}, res.X)

	// Damping regularizes the unused unknown.
	res, err = Minimize(flat{}, []float64{0, 0}, DefaultSettings())
	require.NoError(t, err)
	assert.InDelta(t, 3, res.X[0], 1e-3)
	assert.Equal(t, 0.0, res.X[1])
}

func TestMinimizeStopsOnSmallCost(t *testing.T) {
	res, err := Minimize(flat{}, []float64{3, 0}, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, CostSmall, res.Status)
	assert.Zero(t, res.Iterations)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "damping ceiling", DampingCeiling.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
