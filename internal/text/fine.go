package text

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"page-dewarp/internal/geom"
)

// OffsetField interpolates the vertical correction that moves each letter's
// base point onto its line's median baseline height.
type OffsetField struct {
	lines []lineOffsets
}

type lineOffsets struct {
	model  geom.Poly
	median float64
	lo, hi float64
	fit    interp.PiecewiseLinear
}

// NewOffsetField builds a field from lines with at least two distinct letter
// positions. Lines with fewer are ignored.
func NewOffsetField(lines []*Line) *OffsetField {
	f := &OffsetField{}
	for _, line := range lines {
		pts := line.BasePoints()
		sort.Slice(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
		ys := geom.Ys(pts)
		sorted := append([]float64(nil), ys...)
		sort.Float64s(sorted)
		median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

		var xs, offs []float64
		for _, p := range pts {
			if len(xs) > 0 && p.X <= xs[len(xs)-1] {
				continue
			}
			xs = append(xs, p.X)
			offs = append(offs, median-p.Y)
		}
		if len(xs) < 2 {
			continue
		}
		lo := lineOffsets{model: line.Model, median: median, lo: xs[0], hi: xs[len(xs)-1]}
		if err := lo.fit.Fit(xs, offs); err != nil {
			continue
		}
		f.lines = append(f.lines, lo)
	}
	return f
}

// At returns the correction for a glyph whose base sits at (x, y), taken
// from the nearest line.
func (f *OffsetField) At(x, y float64) float64 {
	best, bestDist := -1, math.Inf(1)
	for i, l := range f.lines {
		ly := l.median
		if len(l.model.Coef) > 0 {
			ly = l.model.Eval(x)
		}
		if d := math.Abs(ly - y); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0
	}
	l := f.lines[best]
	return l.fit.Predict(math.Max(l.lo, math.Min(l.hi, x)))
}

// Redraw is one filled contour in a redraw plan.
type Redraw struct {
	Index  int
	Fill   uint8
	Offset image.Point
}

// bigGlyph is the box area above which a glyph's holes get their own offsets.
const bigGlyph = 5000

// PlanRedraw walks the contour forest depth first and assigns every contour
// a fill colour and a vertical shift. Outer shapes alternate with their
// holes; the holes of small glyphs inherit their parent's shift so the glyph
// moves as a unit.
func PlanRedraw(f Forest, offsetAt func(x, y float64) float64) []Redraw {
	if len(f) == 0 {
		return nil
	}
	type item struct {
		index     int
		fill      uint8
		inherited *image.Point
	}

	var plan []Redraw
	stack := []item{{index: 0, fill: 255}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		box := f.Box(it.index)
		offset := image.Point{}
		if it.inherited != nil {
			offset = *it.inherited
		} else {
			dy := offsetAt(float64(box.Min.X)+float64(box.Dx())/2, float64(box.Max.Y))
			offset = image.Pt(0, int(math.Round(dy)))
		}
		plan = append(plan, Redraw{Index: it.index, Fill: it.fill, Offset: offset})

		// siblings are pushed first so the whole subtree is drawn before them
		if next := f[it.index].Next; next >= 0 {
			stack = append(stack, item{index: next, fill: it.fill, inherited: it.inherited})
		}
		if child := f[it.index].Child; child >= 0 {
			var pass *image.Point
			if it.fill == 0 && area(box) < bigGlyph {
				o := offset
				pass = &o
			}
			stack = append(stack, item{index: child, fill: 255 - it.fill, inherited: pass})
		}
	}
	return plan
}
