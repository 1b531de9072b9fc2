package text

import (
	"image"
)

// Contour is one traced boundary of a contour forest. Links are indices into
// the forest and -1 when absent, following the OpenCV hierarchy layout.
type Contour struct {
	Points []image.Point
	Next   int
	Prev   int
	Child  int
	Parent int
}

// Forest is a set of contours linked by parent, first-child and
// next-sibling indices. Index 0 starts the top-level sibling chain.
type Forest []Contour

// Box returns the pixel bounding rectangle of contour i.
func (f Forest) Box(i int) image.Rectangle {
	pts := f[i].Points
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X, r.Max.X = min(r.Min.X, p.X), max(r.Max.X, p.X)
		r.Min.Y, r.Max.Y = min(r.Min.Y, p.Y), max(r.Max.Y, p.Y)
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}

// Children returns the sibling chain below contour i.
func (f Forest) Children(i int) []int {
	var out []int
	for j := f[i].Child; j >= 0; j = f[j].Next {
		out = append(out, j)
	}
	return out
}

// Roots returns the top-level sibling chain.
func (f Forest) Roots() []int {
	var out []int
	if len(f) == 0 {
		return out
	}
	for i := 0; i >= 0; i = f[i].Next {
		out = append(out, i)
	}
	return out
}

// Coverage reports the fraction of contour i's filled area that is ink in
// the original image.
type Coverage func(i int) float64

// ExtractParams tunes letter-candidate selection.
type ExtractParams struct {
	FeatureDivisor float64 // minimum feature size is image height / FeatureDivisor
	HoleFraction   float64 // holes larger than this fraction of the image hold the page
	MinCoverage    float64
	MinPoints      int
}

func DefaultExtractParams() ExtractParams {
	return ExtractParams{
		FeatureDivisor: 300,
		HoleFraction:   0.25,
		MinCoverage:    0.1,
		MinPoints:      10,
	}
}

// TextContours partitions the children of the page-sized holes of f into
// glyph-like contours (good) and rejected shapes (bad). Contours that pass
// the shape test but fail the coverage test land in neither set.
func TextContours(f Forest, size image.Point, cover Coverage, p ExtractParams) (good, bad []int) {
	minFeature := float64(size.Y) / p.FeatureDivisor
	imageArea := float64(size.X * size.Y)

	var holes []int
	for _, i := range f.Roots() {
		for _, j := range f.Children(i) {
			if float64(area(f.Box(j))) > imageArea*p.HoleFraction {
				holes = append(holes, j)
			}
		}
	}

	for _, hole := range holes {
		for _, i := range f.Children(hole) {
			box := f.Box(i)
			w, h := float64(box.Dx()), float64(box.Dy())
			if len(f[i].Points) > p.MinPoints && h < 2*w && w > minFeature && h > minFeature {
				if cover == nil || cover(i) > p.MinCoverage {
					good = append(good, i)
				}
				continue
			}
			bad = append(bad, i)
		}
	}
	return good, bad
}

func area(r image.Rectangle) int { return r.Dx() * r.Dy() }

// Letters converts the indexed contours to letters.
func (f Forest) Letters(indices []int) []*Letter {
	out := make([]*Letter, 0, len(indices))
	for _, i := range indices {
		out = append(out, NewLetter(f[i].Points))
	}
	return out
}
