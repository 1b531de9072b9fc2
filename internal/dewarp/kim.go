package dewarp

import (
	"fmt"
	"image"

	"page-dewarp/internal/geom"
	"page-dewarp/internal/surface"
	"page-dewarp/internal/text"
	"page-dewarp/internal/vanish"
)

// bimodalSpread is the spread of line starts, as a fraction of the image
// width, above which a landscape image is split into two pages.
const bimodalSpread = 0.10

// underlineStep subsamples underline mid-curves before they join the
// straightness term.
const underlineStep = 4

// Reconstruction is a solved camera and page surface.
type Reconstruction struct {
	Camera   surface.Camera
	Solution surface.Solution
	// Pages holds, per page, every line whose letters bound its mesh.
	Pages [][]*text.Line
}

// Surface fits the camera rotation and one curvature polynomial per page so
// that every baseline becomes a straight horizontal line on the page.
func (d *Dewarper) Surface(t *Text, size image.Point) (*Reconstruction, error) {
	w, h := float64(size.X), float64(size.Y)
	lines := text.FilterPosition(t.AH, w, h, t.Lines)
	if len(lines) < minLines {
		return nil, fmt.Errorf("%d lines away from the border: %w", len(lines), ErrNoText)
	}

	groups, allGroups := [][]*text.Line{lines}, [][]*text.Line{t.All}
	if w > h && text.Bimodal(lines, w, bimodalSpread) {
		groups, allGroups = text.SplitColumns(lines, t.All)
		d.log.Debug("splitting two-page spread", "pages", len(groups))
	}

	v, err := d.initialVanishing(t.AH, groups)
	if err != nil {
		return nil, err
	}

	cam := surface.Camera{Focal: d.cfg.FocalLength, Center: center(size)}
	pages := make([]surface.Page, len(groups))
	for i, g := range groups {
		pages[i] = observations(g)
	}
	prob := surface.NewProblem(cam, d.cfg.Surface.Degree, d.cfg.Surface.Omega, pages, surface.NewCache())
	if d.cfg.Surface.UseAlign {
		prob.WithAlign(d.cfg.Surface.Lambda2)
	}

	sol, err := surface.Solve(prob, prob.InitialArgs(v), d.solverSettings(), d.log)
	if err != nil {
		return nil, fmt.Errorf("surface: %w", err)
	}
	return &Reconstruction{Camera: cam, Solution: sol, Pages: allGroups}, nil
}

// initialVanishing averages the margin vanishing points of the pages that
// have one.
func (d *Dewarper) initialVanishing(ah float64, groups [][]*text.Line) (geom.Point, error) {
	var sum geom.Point
	var n int
	var last error
	for i, g := range groups {
		v, err := vanish.Estimate(ah, g, d.vanishParams())
		if err != nil {
			d.log.Warn("no vanishing point for page", "page", i, "err", err)
			last = err
			continue
		}
		sum = sum.Add(v)
		n++
	}
	if n == 0 {
		return geom.Point{}, fmt.Errorf("vanishing point: %w", last)
	}
	v := sum.Scale(1 / float64(n))
	d.log.Debug("initial vanishing point", "x", v.X, "y", v.Y)
	return v, nil
}

// observations collects the base points of every line and underline of a
// page, and the margin points of every line.
func observations(lines []*text.Line) surface.Page {
	var p surface.Page
	for _, l := range lines {
		p.Lines = append(p.Lines, l.BasePoints())
		p.Sides = append(p.Sides, [2]geom.Point{l.First().LeftMid(), l.Last().RightMid()})
	}
	for _, l := range lines {
		for _, u := range l.Underlines {
			if mid := u.MidPoints(underlineStep); len(mid) > 1 {
				p.Lines = append(p.Lines, mid)
			}
		}
	}
	return p
}

// Meshes builds the flattening mesh of every page.
func (r *Reconstruction) Meshes(p surface.MeshParams) ([]*geom.Mesh, error) {
	meshes := make([]*geom.Mesh, 0, len(r.Pages))
	for i, lines := range r.Pages {
		m, err := surface.Mesh(r.Camera, r.Solution.Rotation, r.Solution.Curves[i], lines, p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}
