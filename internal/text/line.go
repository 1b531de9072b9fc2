package text

import (
	"sort"

	"page-dewarp/internal/geom"
)

// Line is a left-to-right run of letters with a fitted baseline.
type Line struct {
	Letters    []*Letter
	Model      geom.Poly
	Underlines []*Underline
}

// NewLine returns a line holding letters sorted by x.
func NewLine(letters ...*Letter) *Line {
	l := &Line{Letters: append([]*Letter(nil), letters...)}
	l.sort()
	return l
}

func (l *Line) sort() {
	sort.SliceStable(l.Letters, func(i, j int) bool { return l.Letters[i].X < l.Letters[j].X })
}

func (l *Line) Len() int         { return len(l.Letters) }
func (l *Line) First() *Letter   { return l.Letters[0] }
func (l *Line) Last() *Letter    { return l.Letters[len(l.Letters)-1] }
func (l *Line) Left() float64    { return l.First().Left() }
func (l *Line) Right() float64   { return l.Last().Right() }
func (l *Line) Width() float64   { return l.Right() - l.Left() }
func (l *Line) Fitted() bool     { return len(l.Model.Coef) > 0 }
func (l *Line) Top() float64     { return l.First().Y }
func (l *Line) CenterX() float64 { return (l.Left() + l.Right()) / 2 }

// BasePoints returns the bottom-center point of every letter.
func (l *Line) BasePoints() []geom.Point {
	pts := make([]geom.Point, len(l.Letters))
	for i, letter := range l.Letters {
		pts[i] = letter.BasePoint()
	}
	return pts
}

// Bounds returns the box around every letter of the line.
func (l *Line) Bounds() geom.Crop {
	c := geom.Crop{X0: l.Left(), Y0: l.First().Y, X1: l.Right(), Y1: l.First().Bottom()}
	for _, letter := range l.Letters {
		c = c.Union(geom.Crop{X0: letter.X, Y0: letter.Y, X1: letter.Right(), Y1: letter.Bottom()})
	}
	return c
}

// Merge moves every letter and underline of o into l.
func (l *Line) Merge(o *Line) {
	l.Letters = append(l.Letters, o.Letters...)
	l.Underlines = append(l.Underlines, o.Underlines...)
	l.sort()
}

// Compress keeps the letters whose mask entry is true.
func (l *Line) Compress(mask []bool) {
	kept := l.Letters[:0]
	for i, letter := range l.Letters {
		if mask[i] {
			kept = append(kept, letter)
		}
	}
	l.Letters = kept
}

// FitModel least-squares fits the baseline through every base point.
func (l *Line) FitModel(degree int) error {
	pts := l.BasePoints()
	if degree > len(pts)-1 {
		degree = len(pts) - 1
	}
	p, err := geom.FitPoly(geom.Xs(pts), geom.Ys(pts), degree)
	if err != nil {
		return err
	}
	l.Model = p
	return nil
}

// Intersect returns where g crosses the fitted baseline.
func (l *Line) Intersect(g geom.Line) (geom.Point, bool) {
	mid := l.CenterX()
	x0, ok := g.XAt(l.Model.Eval(mid))
	if !ok {
		x0 = mid
	}
	return g.PolyIntersect(l.Model, x0)
}

// Crop returns the box around every letter of every line.
func Crop(lines []*Line) geom.Crop {
	c := lines[0].Bounds()
	for _, l := range lines[1:] {
		c = c.Union(l.Bounds())
	}
	return c
}

// SortByTop orders lines by the y of their first letter.
func SortByTop(lines []*Line) {
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Top() < lines[j].Top() })
}
