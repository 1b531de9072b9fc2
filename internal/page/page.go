// Package page runs the dewarping pipeline on raster images.
package page

import (
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"page-dewarp/internal/config"
	"page-dewarp/internal/cv"
	"page-dewarp/internal/dewarp"
	"page-dewarp/internal/text"
)

// Processor flattens page photographs. Independent images may be processed
// concurrently.
type Processor struct {
	cfg      *config.Config
	log      *slog.Logger
	dewarper *dewarp.Dewarper
}

func New(cfg *config.Config, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{cfg: cfg, log: log, dewarper: dewarp.New(cfg, log)}
}

// Dewarp returns one flattened image per page found in img. The caller
// closes the results.
func (p *Processor) Dewarp(img gocv.Mat) ([]gocv.Mat, error) {
	src := img
	if p.cfg.Deskew {
		rotated := p.deskew(img)
		defer rotated.Close()
		src = rotated
	}

	gray := cv.Gray(src)
	defer gray.Close()
	bw, err := cv.Binarize(gray, p.cfg.Binarize)
	if err != nil {
		return nil, err
	}
	defer bw.Close()

	letters := cv.Letters(bw, text.DefaultExtractParams())
	p.log.Debug("letters", "count", len(letters))
	found, err := p.dewarper.FindText(letters)
	if err != nil {
		return nil, err
	}
	meshes, err := p.dewarper.Meshes(found, image.Pt(bw.Cols(), bw.Rows()))
	if err != nil {
		return nil, err
	}

	var outs []gocv.Mat
	fail := func(err error) ([]gocv.Mat, error) {
		for _, o := range outs {
			o.Close()
		}
		return nil, err
	}
	for i, m := range meshes {
		p.log.Debug("remapping page", "page", i, "rows", m.Rows, "cols", m.Cols)
		flat, err := cv.Remap(src, m, p.cfg.Output.Interpolation)
		if err != nil {
			return fail(fmt.Errorf("remap page %d: %w", i, err))
		}
		out, err := p.finish(flat)
		flat.Close()
		if err != nil {
			return fail(fmt.Errorf("page %d: %w", i, err))
		}
		outs = append(outs, out)
	}
	return outs, nil
}

// deskew rotates img so its text lines are horizontal. An image whose skew
// cannot be measured is returned as a copy.
func (p *Processor) deskew(img gocv.Mat) gocv.Mat {
	gray := cv.Gray(img)
	defer gray.Close()
	angle, err := cv.SkewAngle(gray, p.cfg.Binarize)
	if err != nil {
		p.log.Warn("skew not measured", "err", err)
		angle = 0
	}
	return cv.SafeRotate(img, angle, p.cfg.MaxRotation, p.log)
}

// finish stretches the contrast of a flattened page, or redraws its glyphs
// onto straight baselines when the fine pass is on.
func (p *Processor) finish(flat gocv.Mat) (gocv.Mat, error) {
	if !p.cfg.Fine {
		return cv.Stretch(flat, p.cfg.Output.LowPercentile, p.cfg.Output.HighPercentile)
	}

	gray := cv.Gray(flat)
	defer gray.Close()
	bw, err := cv.Binarize(gray, p.cfg.Binarize)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer bw.Close()

	found, err := p.dewarper.FindText(cv.Letters(bw, text.DefaultExtractParams()))
	if err != nil {
		p.log.Warn("fine pass skipped", "err", err)
		return cv.Stretch(flat, p.cfg.Output.LowPercentile, p.cfg.Output.HighPercentile)
	}
	return cv.FineRedraw(bw, found.Lines), nil
}
