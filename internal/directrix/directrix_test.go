package directrix

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"page-dewarp/internal/geom"
	"page-dewarp/internal/synth"
	"page-dewarp/internal/text"
)

const focal = 3270.5

var center = geom.Pt(1500, 2000)

func curvedPage(t *testing.T) (synth.Page, []*text.Line) {
	t.Helper()
	page := synth.Page{
		Focal:  focal,
		Theta:  r3.Vec{X: -math.Pi + 0.3},
		Center: center,
		Curve:  func(x float64) float64 { return 0.0004 * x * x },
	}
	lines := page.Lines(synth.Layout{
		Rows:    geom.Linspace(-600, 480, 10),
		X0:      -900,
		X1:      900,
		Step:    30,
		LetterW: 18,
		LetterH: 30,
	})
	for _, l := range lines {
		require.NoError(t, l.FitModel(5))
	}
	text.SortByTop(lines)
	return page, lines
}

func TestC0C1(t *testing.T) {
	_, lines := curvedPage(t)
	first, last := lines[0], lines[len(lines)-1]

	c0, c1 := C0C1(lines, geom.Pt(1500, 12000), center)
	assert.Same(t, first, c0)
	assert.Same(t, last, c1)

	c0, c1 = C0C1(lines, geom.Pt(1500, -8000), center)
	assert.Same(t, last, c0)
	assert.Same(t, first, c1)
}

func TestBlendInverse(t *testing.T) {
	for _, mu := range []float64{0, 0.3, 1, 30} {
		lam := 9.5
		a := alpha(mu, lam)
		assert.InDelta(t, mu, a*(1-lam)/(a-lam), 1e-9)
	}
	assert.Equal(t, 1.0, alpha(1, 7))
	assert.Equal(t, 0.0, alpha(0, 7))
}

func TestWidestDomainCoversLines(t *testing.T) {
	page, lines := curvedPage(t)
	v := page.Vanishing()
	domain, err := WidestDomain(lines, v, center, 200)
	require.NoError(t, err)
	require.Len(t, domain, 200)

	c0, _ := C0C1(lines, v, center)
	assert.LessOrEqual(t, domain[0], c0.Left())
	assert.GreaterOrEqual(t, domain[199], c0.Right())
}

func TestEstimateColumnsDoNotCross(t *testing.T) {
	page, lines := curvedPage(t)
	v := page.Vanishing()
	d, err := Estimate(lines, v, center, DefaultParams(focal), 500)
	require.NoError(t, err)
	require.Len(t, d.D, 500)
	require.Len(t, d.C, 500)

	c0, _ := C0C1(lines, v, center)
	prev := math.Inf(-1)
	for _, c := range d.C {
		p, ok := c0.Intersect(geom.LineFromPoints(v, c))
		require.True(t, ok)
		assert.Greater(t, p.X, prev)
		prev = p.X
	}

	r, ok := AspectRatio(lines, d, v, center, focal)
	if ok {
		assert.Greater(t, r, 0.0)
	}
}

func TestGenerateMeshCoversText(t *testing.T) {
	page, lines := curvedPage(t)
	v := page.Vanishing()
	crop := text.Crop(lines)
	d, err := Estimate(lines, v, center, DefaultParams(focal), int(crop.W()))
	require.NoError(t, err)

	m, err := GenerateMesh(lines, lines, d.C, v, center, 300)
	require.NoError(t, err)
	assert.Equal(t, 300, m.Rows)
	assert.Equal(t, len(d.C), m.Cols)

	box := m.Bounds()
	assert.LessOrEqual(t, box.Y0, crop.Y0+2)
	assert.GreaterOrEqual(t, box.Y1, crop.Y1-2)

	mid := m.Cols / 2
	for r := 1; r < m.Rows; r++ {
		require.Greater(t, m.At(r, mid).Y, m.At(r-1, mid).Y)
	}
	for c := 1; c < m.Cols; c++ {
		require.Greater(t, m.At(0, c).X, m.At(0, c-1).X)
	}
}

func TestNecessaryMuBrackets(t *testing.T) {
	page, lines := curvedPage(t)
	v := page.Vanishing()
	c0, c1 := C0C1(lines, v, center)

	top, err := NecessaryMu(c0, c1, v, lines, text.Top)
	require.NoError(t, err)
	bottom, err := NecessaryMu(c0, c1, v, lines, text.Bottom)
	require.NoError(t, err)

	// C0 is the top baseline here, so its letters' tops sit just above
	// mu = 0 and the last baseline sits at mu = 1.
	assert.Less(t, top, 0.0)
	assert.Greater(t, bottom, 1.0)
	assert.InDelta(t, 1.0, bottom, 0.05)
}
