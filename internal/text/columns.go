package text

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// FilterPosition drops lines touching the image border, which are usually
// clipped text from a neighbouring page.
func FilterPosition(ah, width, height float64, lines []*Line) []*Line {
	margin := ah / 2
	var out []*Line
	for _, l := range lines {
		b := l.Bounds()
		if b.X0 <= margin || b.X1 >= width-margin || b.Y0 <= margin || b.Y1 >= height-margin {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Bimodal reports whether line starts spread across more than frac of the
// image width, the signature of a two-page spread.
func Bimodal(lines []*Line, width, frac float64) bool {
	if len(lines) < 2 || width <= 0 {
		return false
	}
	lefts := make([]float64, len(lines))
	for i, l := range lines {
		lefts[i] = l.Left()
	}
	return stat.StdDev(lefts, nil)/width > frac
}

// SplitColumns partitions lines into a left and a right page with a
// two-means split of line centers, and assigns all to the same pages.
func SplitColumns(lines, all []*Line) (groups, allGroups [][]*Line) {
	split := columnSplit(lines)

	partition := func(ls []*Line) [][]*Line {
		out := make([][]*Line, 2)
		for _, l := range ls {
			side := 0
			if l.CenterX() >= split {
				side = 1
			}
			out[side] = append(out[side], l)
		}
		for _, g := range out {
			SortByTop(g)
		}
		return out
	}
	groups, allGroups = partition(lines), partition(all)
	if len(groups[0]) == 0 || len(groups[1]) == 0 {
		return [][]*Line{lines}, [][]*Line{all}
	}
	return groups, allGroups
}

func columnSplit(lines []*Line) float64 {
	centers := make([]float64, len(lines))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, l := range lines {
		centers[i] = l.CenterX()
		lo, hi = math.Min(lo, centers[i]), math.Max(hi, centers[i])
	}
	for iter := 0; iter < 20; iter++ {
		split := (lo + hi) / 2
		var left, right []float64
		for _, c := range centers {
			if c < split {
				left = append(left, c)
			} else {
				right = append(right, c)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			break
		}
		nlo, nhi := stat.Mean(left, nil), stat.Mean(right, nil)
		if nlo == lo && nhi == hi {
			break
		}
		lo, hi = nlo, nhi
	}
	return (lo + hi) / 2
}
