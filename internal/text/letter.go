// Package text turns letter-candidate contours into ordered text lines and
// fits their baselines.
package text

import (
	"image"
	"math"

	"page-dewarp/internal/geom"
)

// Letter is a glyph-like connected component. Its box follows the OpenCV
// boundingRect convention: X, Y is the top-left pixel and W, H count pixels.
type Letter struct {
	X, Y, W, H float64
	Contour    []geom.Point
	Stroke     float64 // mean stroke width estimate, 0 when unknown
}

// NewLetter builds a letter from a traced contour.
func NewLetter(contour []image.Point) *Letter {
	if len(contour) == 0 {
		return &Letter{}
	}
	pts := make([]geom.Point, len(contour))
	minX, minY := contour[0].X, contour[0].Y
	maxX, maxY := minX, minY
	for i, p := range contour {
		pts[i] = geom.Pt(float64(p.X), float64(p.Y))
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}
	return &Letter{
		X:       float64(minX),
		Y:       float64(minY),
		W:       float64(maxX - minX + 1),
		H:       float64(maxY - minY + 1),
		Contour: pts,
		Stroke:  strokeWidth(pts),
	}
}

// BoxLetter builds a contour-less letter from its bounding box.
func BoxLetter(x, y, w, h float64) *Letter {
	return &Letter{X: x, Y: y, W: w, H: h}
}

func (l *Letter) Left() float64    { return l.X }
func (l *Letter) Right() float64   { return l.X + l.W }
func (l *Letter) Bottom() float64  { return l.Y + l.H }
func (l *Letter) CenterX() float64 { return l.X + l.W/2 }

func (l *Letter) BasePoint() geom.Point { return geom.Pt(l.X+l.W/2, l.Y+l.H) }
func (l *Letter) TopPoint() geom.Point  { return geom.Pt(l.X+l.W/2, l.Y) }
func (l *Letter) LeftMid() geom.Point   { return geom.Pt(l.X, l.Y+l.H/2) }
func (l *Letter) RightMid() geom.Point  { return geom.Pt(l.X+l.W, l.Y+l.H/2) }
func (l *Letter) LeftBot() geom.Point   { return geom.Pt(l.X, l.Y+l.H) }
func (l *Letter) RightBot() geom.Point  { return geom.Pt(l.X+l.W, l.Y+l.H) }

// Corners returns the box corners clockwise from the top left.
func (l *Letter) Corners() [4]geom.Point {
	return [4]geom.Point{
		geom.Pt(l.X, l.Y),
		geom.Pt(l.X+l.W, l.Y),
		geom.Pt(l.X+l.W, l.Y+l.H),
		geom.Pt(l.X, l.Y+l.H),
	}
}

// strokeWidth approximates the pen width of a glyph outline as twice its
// enclosed area over its perimeter.
func strokeWidth(pts []geom.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var area, perim float64
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		area += p.X*q.Y - q.X*p.Y
		perim += geom.Dist(p, q)
	}
	if perim == 0 {
		return 0
	}
	return math.Abs(area) / perim
}

// Edge selects the top or the bottom of a glyph.
type Edge int

const (
	Bottom Edge = iota
	Top
)

func (e Edge) String() string {
	if e == Top {
		return "top"
	}
	return "bottom"
}

// EdgePoint maps an edge to the letter accessor that samples it.
func EdgePoint(e Edge) func(*Letter) geom.Point {
	if e == Top {
		return (*Letter).TopPoint
	}
	return (*Letter).BasePoint
}

// EdgeLine picks the extreme line for an edge out of lines sorted top to bottom.
func EdgeLine(e Edge, lines []*Line) *Line {
	if len(lines) == 0 {
		return nil
	}
	if e == Top {
		return lines[0]
	}
	return lines[len(lines)-1]
}
