package geom

import (
	"gonum.org/v1/gonum/interp"
)

// ArcLengthResample walks the polyline pts and returns n points spaced
// evenly by arc length, together with the total length.
func ArcLengthResample(pts []Point, n int) ([]Point, float64) {
	if len(pts) == 0 || n <= 0 {
		return nil, 0
	}

	arc := []float64{0}
	kept := []Point{pts[0]}
	for i := 1; i < len(pts); i++ {
		d := Dist(pts[i], kept[len(kept)-1])
		if d <= 0 {
			continue
		}
		arc = append(arc, arc[len(arc)-1]+d)
		kept = append(kept, pts[i])
	}
	total := arc[len(arc)-1]
	if len(kept) < 2 {
		out := make([]Point, n)
		for i := range out {
			out[i] = pts[0]
		}
		return out, 0
	}

	var fx, fy interp.PiecewiseLinear
	if err := fx.Fit(arc, Xs(kept)); err != nil {
		return nil, 0
	}
	if err := fy.Fit(arc, Ys(kept)); err != nil {
		return nil, 0
	}

	out := make([]Point, n)
	for i, s := range Linspace(0, total, n) {
		out[i] = Point{fx.Predict(s), fy.Predict(s)}
	}
	return out, total
}
