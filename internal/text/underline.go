package text

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"page-dewarp/internal/geom"
)

// Underline is a long thin rule drawn under a text line.
type Underline struct {
	X, Y, W, H float64
	// Mid holds one centerline sample per pixel column.
	Mid []geom.Point
}

// IsUnderline reports whether a shape is wide and flat enough to be a rule.
func IsUnderline(ah float64, l *Letter) bool {
	return l.W > 2*ah && l.H < ah/2
}

// NewUnderline derives the centerline of the rule outlined by l.
func NewUnderline(l *Letter) *Underline {
	u := &Underline{X: l.X, Y: l.Y, W: l.W, H: l.H}
	cols := int(l.W)
	if cols <= 0 || len(l.Contour) < 2 {
		return u
	}
	top := make([]float64, cols)
	bot := make([]float64, cols)
	for i := range top {
		top[i], bot[i] = math.Inf(1), math.Inf(-1)
	}
	record := func(c int, y float64) {
		if c < 0 || c >= cols {
			return
		}
		top[c] = math.Min(top[c], y)
		bot[c] = math.Max(bot[c], y)
	}
	pts := l.Contour
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		x0, x1 := math.Min(p.X, q.X), math.Max(p.X, q.X)
		for x := math.Ceil(x0); x <= x1; x++ {
			y := p.Y
			if q.X != p.X {
				y = p.Y + (x-p.X)*(q.Y-p.Y)/(q.X-p.X)
			} else {
				record(int(x-l.X), q.Y)
			}
			record(int(x-l.X), y)
		}
	}
	for c := range top {
		if math.IsInf(top[c], 0) {
			continue
		}
		u.Mid = append(u.Mid, geom.Pt(l.X+float64(c), (top[c]+bot[c])/2))
	}
	return u
}

// MidPoints subsamples the centerline every step columns.
func (u *Underline) MidPoints(step int) []geom.Point {
	if step <= 1 {
		return u.Mid
	}
	var out []geom.Point
	for i := 0; i < len(u.Mid); i += step {
		out = append(out, u.Mid[i])
	}
	return out
}

// CombineUnderlined attaches each underline candidate to the line sitting
// directly above it.
func CombineUnderlined(ah float64, lines []*Line, candidates []*Letter) []*Line {
	for _, c := range candidates {
		if !IsUnderline(ah, c) {
			continue
		}
		var best *Line
		bestDist := math.Inf(1)
		for _, line := range lines {
			var bottoms []float64
			for _, letter := range line.Letters {
				if letter.Right() >= c.X && letter.X <= c.Right() {
					bottoms = append(bottoms, letter.Bottom())
				}
			}
			if len(bottoms) == 0 {
				continue
			}
			overlap := math.Min(line.Right(), c.Right()) - math.Max(line.Left(), c.X)
			if overlap < c.W/2 {
				continue
			}
			dist := c.Y - stat.Mean(bottoms, nil)
			if dist < -ah/4 || dist > ah {
				continue
			}
			if math.Abs(dist) < bestDist {
				best, bestDist = line, math.Abs(dist)
			}
		}
		if best != nil {
			best.Underlines = append(best.Underlines, NewUnderline(c))
		}
	}
	return lines
}
