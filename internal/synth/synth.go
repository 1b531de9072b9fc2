// Package synth renders letters lying on a known curved page through a
// pinhole camera. The pipeline tests use it as ground truth.
package synth

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"page-dewarp/internal/geom"
	"page-dewarp/internal/text"
)

// Page is a cylindrical page z = Curve(x) seen by a camera of focal length
// Focal placed at (0, 0, Focal) in camera coordinates and rotated by the
// axis-angle vector Theta.
type Page struct {
	Focal  float64
	Theta  r3.Vec
	Center geom.Point
	Curve  func(x float64) float64
}

// rotation returns the rows of the Rodrigues matrix for Theta.
func (p Page) rotation() [3]r3.Vec {
	t := r3.Norm(p.Theta)
	if t == 0 {
		return [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}
	}
	k := r3.Scale(1/t, p.Theta)
	c, s := math.Cos(t), math.Sin(t)
	v := 1 - c
	return [3]r3.Vec{
		{X: c + k.X*k.X*v, Y: k.X*k.Y*v - k.Z*s, Z: k.X*k.Z*v + k.Y*s},
		{X: k.Y*k.X*v + k.Z*s, Y: c + k.Y*k.Y*v, Z: k.Y*k.Z*v - k.X*s},
		{X: k.Z*k.X*v - k.Y*s, Y: k.Z*k.Y*v + k.X*s, Z: c + k.Z*k.Z*v},
	}
}

// unrotate applies the transpose of the rotation to v.
func (p Page) unrotate(v r3.Vec) r3.Vec {
	r := p.rotation()
	return r3.Add(r3.Add(r3.Scale(v.X, r[0]), r3.Scale(v.Y, r[1])), r3.Scale(v.Z, r[2]))
}

// image maps a world direction or point, already rotated into camera
// coordinates, onto the image plane.
func (p Page) image(q r3.Vec) geom.Point {
	return geom.Pt(-p.Focal*q.X/q.Z, -p.Focal*q.Y/q.Z).Add(p.Center)
}

// Project returns the image of the surface point at (x, y).
func (p Page) Project(x, y float64) geom.Point {
	q := p.unrotate(r3.Vec{X: x, Y: y, Z: p.Curve(x)})
	return p.image(r3.Add(q, r3.Vec{Z: p.Focal}))
}

// Vanishing returns the image of the direction of the surface's straight
// generatrices.
func (p Page) Vanishing() geom.Point {
	return p.image(p.unrotate(r3.Vec{Y: 1}))
}

// Layout describes a block of evenly spaced text lines in surface units.
type Layout struct {
	Rows         []float64 // y of each baseline
	X0, X1, Step float64
	LetterW      float64
	LetterH      float64
}

// Lines renders every row as a text line of box letters whose base points
// lie on the projected baseline.
func (p Page) Lines(l Layout) []*text.Line {
	var lines []*text.Line
	for _, y := range l.Rows {
		var letters []*text.Letter
		for x := l.X0; x <= l.X1+1e-9; x += l.Step {
			b := p.Project(x, y)
			top := p.Project(x, y-l.LetterH)
			h := b.Y - top.Y
			if h <= 0 {
				h = l.LetterH
			}
			w := l.LetterW * h / l.LetterH
			letters = append(letters, text.BoxLetter(b.X-w/2, b.Y-h, w, h))
		}
		lines = append(lines, text.NewLine(letters...))
	}
	return lines
}
