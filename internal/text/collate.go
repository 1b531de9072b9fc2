package text

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// CollateParams tunes grouping of letters into lines. Lengths are
// multiples of the dominant character height AH.
type CollateParams struct {
	MinHeight      float64 // letters shorter than MinHeight*AH are dropped
	MaxHeight      float64 // letters taller than MaxHeight*AH are dropped
	MaxGap         float64 // widest horizontal gap inside a line
	MinOverlap     float64 // vertical overlap as a fraction of the shorter letter
	MaxHeightRatio float64
}

func DefaultCollateParams() CollateParams {
	return CollateParams{
		MinHeight:      0.5,
		MaxHeight:      3,
		MaxGap:         3,
		MinOverlap:     0.5,
		MaxHeightRatio: 3,
	}
}

// DominantHeight is the most common rounded letter height, AH. It falls
// back to the median when every height is distinct.
func DominantHeight(letters []*Letter) float64 {
	var hs []float64
	for _, l := range letters {
		if h := math.Round(l.H); h >= 2 {
			hs = append(hs, h)
		}
	}
	if len(hs) == 0 {
		return 0
	}
	sort.Float64s(hs)
	mode, count := stat.Mode(hs, nil)
	if count <= 1 {
		return stat.Quantile(0.5, stat.Empirical, hs, nil)
	}
	return mode
}

// FilterLetters keeps letters of plausible height for the given AH.
func FilterLetters(ah float64, letters []*Letter, p CollateParams) []*Letter {
	var out []*Letter
	for _, l := range letters {
		if l.H >= p.MinHeight*ah && l.H <= p.MaxHeight*ah {
			out = append(out, l)
		}
	}
	return out
}

// Collate groups letters into lines by horizontal proximity, vertical
// overlap and comparable height. Lines come back sorted top to bottom.
func Collate(ah float64, letters []*Letter, p CollateParams) []*Line {
	sorted := append([]*Letter(nil), letters...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].X == sorted[j].X {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines []*Line
	for _, letter := range sorted {
		var best *Line
		bestScore := math.Inf(1)
		for _, line := range lines {
			last := line.Last()
			gap := letter.X - last.Right()
			if gap < -last.W/2 || gap > p.MaxGap*ah {
				continue
			}
			lo, hi := math.Min(letter.H, last.H), math.Max(letter.H, last.H)
			if hi > p.MaxHeightRatio*lo {
				continue
			}
			overlap := math.Min(letter.Bottom(), last.Bottom()) - math.Max(letter.Y, last.Y)
			if overlap < p.MinOverlap*lo {
				continue
			}
			score := math.Abs(letter.Bottom()-last.Bottom()) + 0.25*math.Max(gap, 0)
			if score < bestScore {
				best, bestScore = line, score
			}
		}
		if best == nil {
			lines = append(lines, &Line{Letters: []*Letter{letter}})
			continue
		}
		best.Letters = append(best.Letters, letter)
	}

	SortByTop(lines)
	return lines
}
