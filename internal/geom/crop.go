package geom

import "math"

// Crop is an axis-aligned rectangle [X0, X1] x [Y0, Y1].
type Crop struct {
	X0, Y0, X1, Y1 float64
}

// CropFromPoints returns the bounding box of pts.
func CropFromPoints(pts []Point) Crop {
	c := Crop{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, p := range pts {
		c.X0 = math.Min(c.X0, p.X)
		c.Y0 = math.Min(c.Y0, p.Y)
		c.X1 = math.Max(c.X1, p.X)
		c.Y1 = math.Max(c.Y1, p.Y)
	}
	return c
}

func (c Crop) W() float64 { return c.X1 - c.X0 }
func (c Crop) H() float64 { return c.Y1 - c.Y0 }

func (c Crop) Empty() bool { return !(c.X1 > c.X0 && c.Y1 > c.Y0) }

// Expand grows the crop by frac of its size on every side.
func (c Crop) Expand(frac float64) Crop {
	dx, dy := frac*c.W(), frac*c.H()
	return Crop{c.X0 - dx, c.Y0 - dy, c.X1 + dx, c.Y1 + dy}
}

// Union returns the smallest crop containing both.
func (c Crop) Union(o Crop) Crop {
	return Crop{
		math.Min(c.X0, o.X0), math.Min(c.Y0, o.Y0),
		math.Max(c.X1, o.X1), math.Max(c.Y1, o.Y1),
	}
}
