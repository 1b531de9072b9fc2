package text

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// RemoveStrokeOutliers drops letters whose stroke width is more than k
// standard deviations from their line's mean. Lines left empty are removed.
func RemoveStrokeOutliers(lines []*Line, k float64) []*Line {
	var out []*Line
	for _, line := range lines {
		var strokes []float64
		for _, l := range line.Letters {
			if l.Stroke > 0 {
				strokes = append(strokes, l.Stroke)
			}
		}
		if len(strokes) >= 3 {
			mean, std := stat.MeanStdDev(strokes, nil)
			if std > 0 {
				mask := make([]bool, line.Len())
				for i, l := range line.Letters {
					mask[i] = l.Stroke == 0 || math.Abs(l.Stroke-mean) <= k*std
				}
				line.Compress(mask)
			}
		}
		if line.Len() > 0 {
			out = append(out, line)
		}
	}
	return out
}
