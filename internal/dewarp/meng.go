package dewarp

import (
	"fmt"
	"image"
	"math"

	"page-dewarp/internal/directrix"
	"page-dewarp/internal/geom"
	"page-dewarp/internal/text"
	"page-dewarp/internal/vanish"
)

// Directrix builds the mesh of a single page from its refined vanishing
// point and the blend of its outermost baselines.
func (d *Dewarper) Directrix(t *Text, size image.Point) (*geom.Mesh, error) {
	o := center(size)
	vp := d.vanishParams()
	v0, err := vanish.Estimate(t.AH, t.Lines, vp)
	if err != nil {
		return nil, fmt.Errorf("vanishing point: %w", err)
	}
	v := vanish.Refine(t.Lines, v0, o, vp, d.log)

	lines := vanish.FullLines(t.AH, t.Lines, v)
	d.log.Debug("full lines", "kept", len(lines), "of", len(t.Lines))

	box := text.Crop(t.All)
	width := int(math.Round(box.W()))
	dp := d.directrixParams()
	dx, err := directrix.Estimate(lines, v, o, dp, width)
	if err != nil {
		return nil, fmt.Errorf("directrix: %w", err)
	}

	aspect := dp.Aspect
	if dp.EstimateAspect {
		if r, ok := directrix.AspectRatio(lines, dx, v, o, dp.Focal); ok {
			aspect = r
		} else {
			d.log.Warn("unusable aspect ratio estimate, using fallback", "aspect", aspect)
		}
	}
	d.log.Debug("aspect ratio", "h/w", aspect)

	rows := int(math.Round(aspect * box.W()))
	return directrix.GenerateMesh(t.All, lines, dx.C, v, o, rows)
}
