package surface

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"page-dewarp/internal/geom"
	"page-dewarp/internal/lsq"
	"page-dewarp/internal/synth"
	"page-dewarp/internal/text"
)

const (
	focal = 3270.5
	omega = 1e-3
	tilt  = 0.3
)

var (
	center    = geom.Pt(1500, 2000)
	trueTheta = r3.Vec{X: -math.Pi + tilt}
)

func page(curve func(float64) float64) synth.Page {
	return synth.Page{Focal: focal, Theta: trueTheta, Center: center, Curve: curve}
}

var layout = synth.Layout{X0: -900, X1: 900, Step: 30, LetterW: 18, LetterH: 30}

func init() {
	for k := 0; k < 10; k++ {
		layout.Rows = append(layout.Rows, -600+120*float64(k))
	}
}

func render(p synth.Page) []*text.Line {
	return p.Lines(layout)
}

// margins replaces the side points of pg with the images of the layout's
// left and right edges, which lie on two vertical lines of the page.
func margins(p synth.Page, pg Page) Page {
	pg.Sides = nil
	for _, y := range layout.Rows {
		pg.Sides = append(pg.Sides, [2]geom.Point{p.Project(layout.X0, y), p.Project(layout.X1, y)})
	}
	return pg
}

func observations(lines []*text.Line) Page {
	var pg Page
	for _, l := range lines {
		pg.Lines = append(pg.Lines, l.BasePoints())
		pg.Sides = append(pg.Sides, [2]geom.Point{l.First().LeftMid(), l.Last().RightMid()})
	}
	return pg
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCurvature(t *testing.T) {
	g := Curvature{Coef: []float64{0.1, 0.5, -0.2, 0.05, 0.3}, Omega: omega}
	x := 412.0
	var want, slope float64
	for m, a := range g.Coef {
		p := float64(m + 1)
		want += a * math.Pow(omega, p-1) * math.Pow(x, p)
		slope += p * a * math.Pow(omega, p-1) * math.Pow(x, p-1)
	}
	assert.InDelta(t, want, g.Eval(x), 1e-9*math.Abs(want))
	assert.InDelta(t, slope, g.Slope(x), 1e-9*math.Abs(slope))

	basis := make([]float64, 5)
	g.Basis(basis, x)
	assert.InDelta(t, math.Pow(omega, 4)*math.Pow(x, 5), basis[4], 1e-6)
	assert.Equal(t, 0.0, g.Eval(0))
}

func TestRotation(t *testing.T) {
	theta := r3.Vec{X: 0.4, Y: -1.1, Z: 2.0}
	r := Rotation(theta)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			assert.InDelta(t, want, r3.Dot(r[i], r[j]), 1e-12)
		}
	}
	// The axis is fixed by the rotation.
	axis := r3.Unit(theta)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(r.MulVec(axis), axis)), 1e-12)
	assert.Equal(t, Identity(), Rotation(r3.Vec{}))
}

func TestRotationDerivatives(t *testing.T) {
	for _, theta := range []r3.Vec{{X: 0.4, Y: -1.1, Z: 2.0}, {X: -math.Pi + 0.3}, {}} {
		d := RotationDerivatives(theta, Rotation(theta))
		const h = 1e-6
		for i := 0; i < 3; i++ {
			step := r3.Scale(h, unit(i))
			fd := Rotation(r3.Add(theta, step)).Add(Rotation(r3.Sub(theta, step)).Scale(-1)).Scale(1 / (2 * h))
			for row := 0; row < 3; row++ {
				assert.InDelta(t, 0, r3.Norm(r3.Sub(fd[row], d[i][row])), 1e-6, "theta %v, dθ_%d", theta, i)
			}
		}
	}
}

func TestProjectRoundTrip(t *testing.T) {
	cam := Camera{Focal: focal, Center: center}
	r := Rotation(trueTheta)
	g := Curvature{Coef: []float64{0, 0.5, 0, 0, 0}, Omega: omega}
	pts := []geom.Point{{X: 1500, Y: 2000}, {X: 400, Y: 1200}, {X: 2600, Y: 2900}}
	guesses := NewCache().Slot(0, len(pts))

	for i, h := range cam.Project(r, g, cam.FocalPlanes(pts), guesses) {
		assert.InDelta(t, g.Eval(h.S.X), h.S.Z, 1e-6)
		back := cam.Image(r, h.S)
		assert.InDelta(t, pts[i].X, back.X, 1e-6)
		assert.InDelta(t, pts[i].Y, back.Y, 1e-6)
		assert.Equal(t, h.T, guesses[i])
	}
}

func TestSynthProjectionAgrees(t *testing.T) {
	curve := func(x float64) float64 { return 0.0005 * x * x }
	p := page(curve)
	cam := Camera{Focal: focal, Center: center}
	s := r3.Vec{X: 700, Y: -250, Z: curve(700)}
	img := p.Project(s.X, s.Y)
	assert.InDelta(t, 0, geom.Dist(img, cam.Image(Rotation(trueTheta), s)), 1e-9)
}

func TestCache(t *testing.T) {
	c := NewCache()
	s := c.Slot(3, 4)
	require.Len(t, s, 4)
	assert.True(t, math.IsNaN(s[0]))
	s[0] = 2
	assert.Equal(t, 2.0, c.Slot(3, 4)[0])
	c.Reset()
	assert.True(t, math.IsNaN(c.Slot(3, 4)[0]))
}

func TestJacobianMatchesFiniteDifferences(t *testing.T) {
	lines := render(page(func(x float64) float64 { return 0.0005 * x * x }))[:4]
	cam := Camera{Focal: focal, Center: center}
	p := NewProblem(cam, 5, omega, []Page{observations(lines)}, nil).WithAlign(0.1)

	x := p.InitialArgs(p.Camera.Center.Add(geom.Pt(0, 10000)))
	x[1], x[2] = 0.03, -0.02
	copy(x[3:], []float64{0.05, 0.4, 0.1, -0.05, 0.02})

	m, n := p.Dims()
	jac := mat.NewDense(m, n, nil)
	p.Jacobian(jac, x)

	plus, minus := make([]float64, m), make([]float64, m)
	for j := 0; j < n; j++ {
		h := 1e-5 * math.Max(1, math.Abs(x[j]))
		xp := append([]float64(nil), x...)
		xm := append([]float64(nil), x...)
		xp[j] += h
		xm[j] -= h
		p.Residuals(plus, xp)
		p.Residuals(minus, xm)
		for i := 0; i < m; i++ {
			fd := (plus[i] - minus[i]) / (2 * h)
			an := jac.At(i, j)
			require.InDelta(t, fd, an, 1e-3*math.Max(1, math.Abs(an)), "row %d, column %d", i, j)
		}
	}
}

func TestLayout(t *testing.T) {
	l := Layout{Degree: 5, Lines: []int{3, 2}}
	assert.Equal(t, 3+10+4+5, l.Len())
	x := make([]float64, l.Len())
	for i := range x {
		x[i] = float64(i)
	}
	prm := l.Unpack(x, omega)
	assert.Equal(t, []float64{8, 9, 10, 11, 12}, prm.Curves[1].Coef)
	assert.Equal(t, [2]float64{15, 16}, prm.Align[1])
	assert.Equal(t, []float64{20, 21}, prm.Offsets[1])
	assert.Equal(t, x, l.Pack(prm))
}

// syntheticProblem builds the objective for a rendered page and a start
// with the vanishing point off by 15% and a small spurious yaw and roll.
func syntheticProblem(p synth.Page) (*Problem, []float64) {
	cam := Camera{Focal: focal, Center: center}
	pg := margins(p, observations(render(p)))
	prob := NewProblem(cam, 5, omega, []Page{pg}, NewCache())

	v := p.Vanishing()
	x0 := prob.InitialArgs(center.Add(v.Sub(center).Scale(1.15)))
	x0[1], x0[2] = 0.02, 0.01
	return prob, x0
}

func TestSolveFlatPage(t *testing.T) {
	prob, x0 := syntheticProblem(page(func(float64) float64 { return 0 }))
	prob.WithAlign(0.1)

	// The observations are exact, so the solve runs down to a negligible
	// cost instead of stopping at the pipeline's tolerances.
	s := lsq.DefaultSettings()
	s.FTol, s.MinCost = 1e-14, 1e-12
	sol, err := Solve(prob, x0, s, quiet())
	require.NoError(t, err)
	assert.Less(t, sol.Cost, 1e-6)

	// Straight baselines and vertical margins fix the page plane. A turn
	// about the page's vertical axis still trades against the linear
	// curvature term, and it leaves the second row of the rotation alone.
	want := Rotation(trueTheta)[1]
	got := sol.Rotation[1]
	assert.InDelta(t, 0, r3.Norm(r3.Sub(want, got)), 1e-4)

	// The recovered surface is a plane: everything past the linear term
	// vanishes.
	g := sol.Curves[0]
	for m := 1; m < g.Degree(); m++ {
		assert.InDelta(t, 0, g.Coef[m]*math.Pow(omega, float64(m)), 1e-6, "a%d", m+1)
	}
	a1 := g.Coef[0]
	for _, x := range geom.Linspace(-900, 900, 19) {
		assert.InDelta(t, a1*x, g.Eval(x), 0.1, "x=%v", x)
	}
}

func TestMarginObservations(t *testing.T) {
	prob, x0 := syntheticProblem(page(func(float64) float64 { return 0 }))
	m, n := prob.Dims()
	prob.WithAlign(0.1)
	ma, na := prob.Dims()
	assert.Equal(t, n, na)
	assert.Equal(t, m+2*len(layout.Rows), ma)

	// At the true pose every margin point shares its side's x.
	r := Rotation(trueTheta)
	flat := Curvature{Coef: make([]float64, 5), Omega: omega}
	for _, side := range prob.sides[0] {
		xs := worldAxis(prob.Camera.Project(r, flat, side, nil), 0)
		for _, x := range xs[1:] {
			assert.InDelta(t, xs[0], x, 1e-6)
		}
	}
	require.Len(t, x0, na)
}

func TestSolveCurvedPage(t *testing.T) {
	prob, x0 := syntheticProblem(page(func(x float64) float64 { return 0.0005 * x * x }))
	sol, err := Solve(prob, x0, lsq.DefaultSettings(), quiet())
	require.NoError(t, err)

	assert.Less(t, sol.Cost, 1e-2)
	a2 := sol.Curves[0].Coef[1] * omega
	assert.InEpsilon(t, 0.0005, a2, 0.1)
}

func TestMeshIsMonotonic(t *testing.T) {
	curve := func(x float64) float64 { return 0.0005 * x * x }
	lines := render(page(curve))
	cam := Camera{Focal: focal, Center: center}
	g := Curvature{Coef: []float64{0, 0.5, 0, 0, 0}, Omega: omega}

	m, err := Mesh(cam, Rotation(trueTheta), g, lines, DefaultMeshParams())
	require.NoError(t, err)
	require.Greater(t, m.Rows, 1)
	require.Greater(t, m.Cols, 1)

	for r := 0; r < m.Rows; r += 37 {
		for c := 1; c < m.Cols; c++ {
			require.Greater(t, m.At(r, c).X, m.At(r, c-1).X)
		}
	}
	for c := 0; c < m.Cols; c += 37 {
		for r := 1; r < m.Rows; r++ {
			require.Greater(t, m.At(r, c).Y, m.At(r-1, c).Y)
		}
	}

	// The mesh covers the text.
	box := m.Bounds()
	crop := text.Crop(lines)
	assert.LessOrEqual(t, box.X0, crop.X0)
	assert.GreaterOrEqual(t, box.X1, crop.X1)
}

func TestMeshWithoutLetters(t *testing.T) {
	_, err := Mesh(Camera{Focal: focal, Center: center}, Identity(), Curvature{Omega: omega}, nil, DefaultMeshParams())
	assert.ErrorIs(t, err, ErrEmptyMesh)
}
