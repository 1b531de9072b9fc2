package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"page-dewarp/internal/geom"
)

// Camera is a pinhole camera with principal point Center. Image points live
// on the focal plane z = -Focal; the projection center sits at the origin
// and the world origin at Of = (0, 0, Focal).
type Camera struct {
	Focal  float64
	Center geom.Point
}

// FocalPlane lifts an image point onto the focal plane.
func (c Camera) FocalPlane(p geom.Point) r3.Vec {
	return r3.Vec{X: p.X - c.Center.X, Y: p.Y - c.Center.Y, Z: -c.Focal}
}

func (c Camera) FocalPlanes(pts []geom.Point) []r3.Vec {
	out := make([]r3.Vec, len(pts))
	for i, p := range pts {
		out[i] = c.FocalPlane(p)
	}
	return out
}

func (c Camera) origin() r3.Vec { return r3.Vec{Z: c.Focal} }

// World returns R(tP - Of), the world point at ray parameter t through the
// focal plane point p.
func (c Camera) World(r Mat3, p r3.Vec, t float64) r3.Vec {
	return r.MulVec(r3.Sub(r3.Scale(t, p), c.origin()))
}

// Image projects the world point s back into the image.
func (c Camera) Image(r Mat3, s r3.Vec) geom.Point {
	q := r3.Add(r.MulVecTrans(s), c.origin())
	return geom.Pt(-c.Focal*q.X/q.Z, -c.Focal*q.Y/q.Z).Add(c.Center)
}

// Cache keeps the ray parameters solved for each group of points so that
// the next evaluation at nearby parameters starts Newton's method close to
// the root. A cache belongs to one reconstruction run.
type Cache struct {
	slots map[int][]float64
}

func NewCache() *Cache { return &Cache{slots: make(map[int][]float64)} }

// Slot returns the n guesses stored under key. New slots hold NaN, which
// means no guess.
func (c *Cache) Slot(key, n int) []float64 {
	s, ok := c.slots[key]
	if !ok || len(s) != n {
		s = make([]float64, n)
		for i := range s {
			s[i] = math.NaN()
		}
		c.slots[key] = s
	}
	return s
}

func (c *Cache) Reset() { clear(c.slots) }

// Hit is the intersection of a ray with the page surface.
type Hit struct {
	T float64 // ray parameter
	S r3.Vec  // world point
}

const (
	newtonIterations = 50
	newtonTolerance  = 1e-12
)

// Project intersects the ray through every focal plane point with the
// surface z = g(x) after rotation by r. guesses seeds Newton's method per
// point and receives the roots; a NaN guess starts from the flat page.
func (c Camera) Project(r Mat3, g Curvature, pts []r3.Vec, guesses []float64) []Hit {
	hits := make([]Hit, len(pts))
	of := c.origin()
	r1of, r3of := r3.Dot(r[0], of), r3.Dot(r[2], of)
	for i, p := range pts {
		b, d := r3.Dot(r[0], p), r3.Dot(r[2], p)
		t := math.NaN()
		if guesses != nil {
			t = guesses[i]
		}
		if math.IsNaN(t) || math.IsInf(t, 0) {
			t = r3of / d
		}
		for k := 0; k < newtonIterations; k++ {
			x := t*b - r1of
			f := t*d - r3of - g.Eval(x)
			df := d - g.Slope(x)*b
			step := f / df
			t -= step
			if math.Abs(step) <= newtonTolerance*math.Max(1, math.Abs(t)) {
				break
			}
		}
		if guesses != nil {
			guesses[i] = t
		}
		hits[i] = Hit{T: t, S: c.World(r, p, t)}
	}
	return hits
}
