// Package dewarp reconstructs the geometry of a photographed page from its
// text lines and returns the meshes that flatten it.
package dewarp

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand"

	"page-dewarp/internal/config"
	"page-dewarp/internal/directrix"
	"page-dewarp/internal/geom"
	"page-dewarp/internal/lsq"
	"page-dewarp/internal/surface"
	"page-dewarp/internal/text"
	"page-dewarp/internal/vanish"
)

// ErrNoText is returned when too few text lines survive fitting.
var ErrNoText = errors.New("dewarp: not enough text lines")

// minLines is the fewest fitted lines a page model can be built from.
const minLines = 2

// Text is the line structure of a page.
type Text struct {
	AH float64
	// All holds every collated line, sorted top to bottom. It bounds the
	// mesh.
	All []*text.Line
	// Lines holds the lines with a robust baseline. They drive the model.
	Lines []*text.Line
}

// Dewarper turns letters into flattening meshes. It is safe for concurrent
// use; every call owns its own projection cache and random source.
type Dewarper struct {
	cfg *config.Config
	log *slog.Logger
}

func New(cfg *config.Config, log *slog.Logger) *Dewarper {
	if log == nil {
		log = slog.Default()
	}
	return &Dewarper{cfg: cfg, log: log}
}

func (d *Dewarper) rand() *rand.Rand { return rand.New(rand.NewSource(d.cfg.Fit.Seed)) }

func (d *Dewarper) fitParams() text.FitParams {
	f := d.cfg.Fit
	return text.FitParams{
		MinLetters:     f.MinLetters,
		Degree:         f.Degree,
		MinSamples:     f.MinSamples,
		Trials:         f.Trials,
		Threshold:      f.Threshold,
		MergeThreshold: f.MergeThreshold,
		RefitThreshold: f.RefitThreshold,
		Rand:           d.rand(),
	}
}

func (d *Dewarper) vanishParams() vanish.Params {
	return vanish.Params{
		Focal:      d.cfg.FocalLength,
		Iterations: d.cfg.Vanishing.Iterations,
		Longitudes: d.cfg.Vanishing.Longitudes,
		Tolerance:  d.cfg.Vanishing.Tolerance,
		Threshold:  d.cfg.Fit.SideThreshold,
		MinSamples: d.cfg.Fit.SideMinSamples,
		Trials:     d.cfg.Fit.Trials,
		Rand:       d.rand(),
	}
}

func (d *Dewarper) directrixParams() directrix.Params {
	return directrix.Params{
		Focal:          d.cfg.FocalLength,
		MU:             d.cfg.Directrix.MU,
		Samples:        d.cfg.Directrix.Samples,
		Aspect:         d.cfg.Directrix.AspectRatio,
		EstimateAspect: d.cfg.Directrix.EstimateAspect,
	}
}

func (d *Dewarper) solverSettings() lsq.Settings {
	s := d.cfg.Solver
	return lsq.Settings{
		MaxIterations: s.MaxIterations,
		FTol:          s.FTol,
		MinCost:       s.MinCost,
		Damping:       s.Damping,
		Up:            s.Up,
		Down:          s.Down,
		Ceiling:       s.Ceiling,
	}
}

func (d *Dewarper) meshParams() surface.MeshParams {
	m := d.cfg.Mesh
	return surface.MeshParams{
		XSamples:        m.WidthSamples,
		ZTolerance:      m.ZTolerance,
		Expand:          m.Expand,
		WidthPercentile: m.WidthPercentile,
		WidthFactor:     m.WidthFactor,
	}
}

// FindText collates letters into lines, attaches underlines, drops stroke
// outliers and fits the baselines.
func (d *Dewarper) FindText(letters []*text.Letter) (*Text, error) {
	ah := text.DominantHeight(letters)
	if ah <= 0 {
		return nil, fmt.Errorf("%d letters: %w", len(letters), ErrNoText)
	}
	cp := text.DefaultCollateParams()
	all := text.Collate(ah, text.FilterLetters(ah, letters, cp), cp)
	all = text.CombineUnderlined(ah, all, letters)
	filtered := text.RemoveStrokeOutliers(all, d.cfg.Fit.StrokeDeviation)

	lines, err := text.RemoveOutliers(ah, filtered, d.fitParams())
	if err != nil {
		return nil, err
	}
	d.log.Debug("text lines", "ah", ah, "letters", len(letters), "collated", len(all), "fitted", len(lines))
	if len(lines) < minLines {
		return nil, fmt.Errorf("%d fitted lines: %w", len(lines), ErrNoText)
	}
	return &Text{AH: ah, All: all, Lines: lines}, nil
}

// Meshes runs the configured method on the text of an image of the given
// size. It returns one mesh per page.
func (d *Dewarper) Meshes(t *Text, size image.Point) ([]*geom.Mesh, error) {
	switch d.cfg.Method {
	case config.MethodMeng:
		m, err := d.Directrix(t, size)
		if err != nil {
			return nil, err
		}
		return []*geom.Mesh{m}, nil
	default:
		r, err := d.Surface(t, size)
		if err != nil {
			return nil, err
		}
		return r.Meshes(d.meshParams())
	}
}

func center(size image.Point) geom.Point {
	return geom.Pt(float64(size.X)/2, float64(size.Y)/2)
}
