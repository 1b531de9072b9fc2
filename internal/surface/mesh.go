package surface

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"page-dewarp/internal/geom"
	"page-dewarp/internal/text"
)

// ErrEmptyMesh is returned when no letter corner lands on the surface.
var ErrEmptyMesh = errors.New("surface: no letter corner reconstructs onto the page")

// MeshParams sizes the output grid.
type MeshParams struct {
	XSamples        int     // samples of g used for arc-length resampling
	ZTolerance      float64 // relative z error above which a corner is dropped
	Expand          float64
	WidthPercentile float64 // percentile of line widths, in 0..100
	WidthFactor     float64
}

func DefaultMeshParams() MeshParams {
	return MeshParams{
		XSamples:        400,
		ZTolerance:      0.02,
		Expand:          0.01,
		WidthPercentile: 90,
		WidthFactor:     1.2,
	}
}

// Mesh builds the image-space grid of a flattened page. The grid spans the
// surface box around every letter corner, is evenly spaced in arc length
// along the curved x direction, and is oriented left to right and top to
// bottom in the image.
func Mesh(cam Camera, r Mat3, g Curvature, lines []*text.Line, p MeshParams) (*geom.Mesh, error) {
	var corners []geom.Point
	widths := make([]float64, 0, len(lines))
	for _, l := range lines {
		for _, letter := range l.Letters {
			c := letter.Corners()
			corners = append(corners, c[:]...)
		}
		widths = append(widths, l.Width())
	}

	var kept []geom.Point
	for _, h := range cam.Project(r, g, cam.FocalPlanes(corners), nil) {
		z := h.S.Z
		if math.IsNaN(z) || math.Abs(g.Eval(h.S.X)-z) > p.ZTolerance*math.Max(math.Abs(z), 1) {
			continue
		}
		kept = append(kept, geom.Pt(h.S.X, h.S.Y))
	}
	if len(kept) == 0 {
		return nil, ErrEmptyMesh
	}
	box := geom.CropFromPoints(kept).Expand(p.Expand)

	sort.Float64s(widths)
	cols := int(math.Round(p.WidthFactor * stat.Quantile(p.WidthPercentile/100, stat.LinInterp, widths, nil)))
	if cols < 2 {
		return nil, fmt.Errorf("surface: mesh width %d: %w", cols, ErrEmptyMesh)
	}

	xs := geom.Linspace(box.X0, box.X1, p.XSamples)
	profile := make([]geom.Point, len(xs))
	for i, x := range xs {
		profile[i] = geom.Pt(x, g.Eval(x))
	}
	arc, total := geom.ArcLengthResample(profile, cols)
	rows := int(math.Round(float64(cols) * box.H() / total))
	if rows < 2 {
		return nil, fmt.Errorf("surface: mesh height %d: %w", rows, ErrEmptyMesh)
	}

	ys := geom.Linspace(box.Y0, box.Y1, rows)
	m := geom.NewMesh(rows, cols)
	for i, y := range ys {
		for j, a := range arc {
			m.Set(i, j, cam.Image(r, r3.Vec{X: a.X, Y: y, Z: g.Eval(a.X)}))
		}
	}
	m.Orient()
	return m, nil
}
