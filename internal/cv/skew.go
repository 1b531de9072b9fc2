package cv

import (
	"errors"
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"page-dewarp/internal/text"
)

// ErrNoSkew is returned when no text line is long enough to measure.
var ErrNoSkew = errors.New("cv: no text lines to measure skew")

// skewHeight is the working height of the skew estimate.
const skewHeight = 1000

// SkewAngle estimates the rotation of the text lines of gray in radians.
// Glyph edges are smeared horizontally into line blobs on a downscaled
// copy, and the median angle of the elongated blobs wins.
func SkewAngle(gray gocv.Mat, algorithm string) (float64, error) {
	scale := skewHeight / float64(gray.Rows())
	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(gray, &small, image.Pt(0, 0), scale, scale, gocv.InterpolationArea)

	bw, err := Binarize(small, algorithm)
	if err != nil {
		return 0, err
	}
	defer bw.Close()
	ink := gocv.NewMat()
	defer ink.Close()
	gocv.BitwiseNot(bw, &ink)

	cross := gocv.GetStructuringElement(gocv.MorphCross, image.Pt(3, 3))
	defer cross.Close()
	grad := gocv.NewMat()
	defer grad.Close()
	gocv.MorphologyEx(ink, &grad, gocv.MorphGradient, cross)

	h := small.Rows()
	horiz := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(h/50|1, h/400|1))
	defer horiz.Close()
	gocv.MorphologyEx(grad, &grad, gocv.MorphClose, horiz)

	cs, good := textContours(grad, ink, text.DefaultExtractParams())
	defer cs.Close()

	var alphas []float64
	fit := gocv.NewMat()
	defer fit.Close()
	for _, i := range good {
		box := cs.Forest.Box(i)
		if box.Dx() <= 4*box.Dy() {
			continue
		}
		gocv.FitLine(cs.vec.At(i), &fit, gocv.DistL2, 0, 0.01, 0.01)
		vx, vy := fit.GetFloatAt(0, 0), fit.GetFloatAt(1, 0)
		if vx < 0 {
			vx, vy = -vx, -vy
		}
		alphas = append(alphas, math.Atan2(float64(vy), float64(vx)))
	}
	if len(alphas) == 0 {
		return 0, ErrNoSkew
	}
	sort.Float64s(alphas)
	return stat.Quantile(0.5, stat.Empirical, alphas, nil), nil
}
