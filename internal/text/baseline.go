package text

import (
	"fmt"
	"math/rand"

	"page-dewarp/internal/geom"
	"page-dewarp/internal/ransac"
)

// FitParams tunes robust baseline fitting. Thresholds are multiples of AH.
type FitParams struct {
	MinLetters     int
	Degree         int
	MinSamples     int
	Trials         int
	Threshold      float64
	MergeThreshold float64
	RefitThreshold float64
	Rand           *rand.Rand
}

func DefaultFitParams() FitParams {
	return FitParams{
		MinLetters:     5,
		Degree:         5,
		MinSamples:     10,
		Trials:         100,
		Threshold:      1.0 / 10,
		MergeThreshold: 1.0 / 8,
		RefitThreshold: 1.0 / 15,
	}
}

func (p FitParams) ransac(threshold float64) ransac.Params {
	return ransac.Params{
		MinSamples: p.MinSamples,
		Threshold:  threshold,
		MaxTrials:  p.Trials,
		Rand:       p.Rand,
	}
}

// FitBaseline robustly fits the line's baseline and drops outlier letters.
// It returns the number of letters removed.
func FitBaseline(line *Line, threshold float64, p FitParams) (int, error) {
	model, inliers, err := ransac.Fit[geom.Poly](line.BasePoints(), ransac.PolyModel{Degree: p.Degree}, p.ransac(threshold))
	if err != nil {
		return 0, err
	}
	removed := line.Len() - ransac.Count(inliers)
	line.Compress(inliers)
	line.Model = model
	return removed, nil
}

// RemoveOutliers fits every line with at least MinLetters letters, drops
// the shorter ones and merges segments of the same physical line.
func RemoveOutliers(ah float64, lines []*Line, p FitParams) ([]*Line, error) {
	var fitted []*Line
	for i, line := range lines {
		if line.Len() < p.MinLetters {
			continue
		}
		if _, err := FitBaseline(line, ah*p.Threshold, p); err != nil {
			return nil, fmt.Errorf("fit line %d (%d letters): %w", i, line.Len(), err)
		}
		fitted = append(fitted, line)
	}
	return MergeLines(ah, fitted, p)
}

// MergeLines joins consecutive lines whose baselines agree to within
// MergeThreshold*AH on average over the shorter line's span, then refits the
// merged baseline with the tighter RefitThreshold.
func MergeLines(ah float64, lines []*Line, p FitParams) ([]*Line, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	out := []*Line{lines[0]}
	for _, line := range lines[1:] {
		prev := out[len(out)-1]
		if !SameBaseline(ah, prev, line, p.MergeThreshold) {
			out = append(out, line)
			continue
		}
		prev.Merge(line)
		if _, err := FitBaseline(prev, ah*p.RefitThreshold, p); err != nil {
			return nil, fmt.Errorf("refit merged line: %w", err)
		}
	}
	return out, nil
}

// SameBaseline compares two fitted baselines over the extent of the one with
// fewer letters, whose fit may have a capped degree.
func SameBaseline(ah float64, a, b *Line, threshold float64) bool {
	span := b
	if a.Len() < b.Len() {
		span = a
	}
	d := geom.MeanAbsDifference(a.Model, b.Model, span.Left(), span.Right(), 64)
	return d < ah*threshold
}
