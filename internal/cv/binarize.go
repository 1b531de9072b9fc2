package cv

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// Sauvola parameters.
const (
	sauvolaK     = 0.1
	sauvolaRange = 128
)

// Binarize thresholds a gray image with the named algorithm: "sauvola"
// (local mean and deviation), "otsu" (global) or "mean" (adaptive mean).
// Light-on-dark pages are inverted first.
func Binarize(gray gocv.Mat, algorithm string) (gocv.Mat, error) {
	src := gray
	if Negative(gray) {
		inv := gocv.NewMat()
		defer inv.Close()
		gocv.BitwiseNot(gray, &inv)
		src = inv
	}

	window := windowSize(src)
	switch algorithm {
	case "sauvola":
		return sauvola(src, window, sauvolaK)
	case "otsu":
		out := gocv.NewMat()
		gocv.Threshold(src, &out, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
		return out, nil
	case "mean":
		out := gocv.NewMat()
		gocv.AdaptiveThreshold(src, &out, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinary, window, 10)
		return out, nil
	}
	return gocv.Mat{}, fmt.Errorf("cv: unknown binarization %q", algorithm)
}

// windowSize is an odd local window of about 2% of the shorter side.
func windowSize(m gocv.Mat) int {
	w := int(0.02*float64(min(m.Rows(), m.Cols()))) | 1
	return max(w, 15)
}

// sauvola thresholds each pixel at m·(1 + k(s/R - 1)) for the local mean m
// and standard deviation s.
func sauvola(gray gocv.Mat, window int, k float64) (gocv.Mat, error) {
	f := gocv.NewMat()
	defer f.Close()
	gray.ConvertTo(&f, gocv.MatTypeCV32F)

	sq := gocv.NewMat()
	defer sq.Close()
	gocv.Multiply(f, f, &sq)

	ksize := image.Pt(window, window)
	mean := gocv.NewMat()
	defer mean.Close()
	gocv.Blur(f, &mean, ksize)
	sqMean := gocv.NewMat()
	defer sqMean.Close()
	gocv.Blur(sq, &sqMean, ksize)

	px, err := f.DataPtrFloat32()
	if err != nil {
		return gocv.Mat{}, err
	}
	mu, err := mean.DataPtrFloat32()
	if err != nil {
		return gocv.Mat{}, err
	}
	mu2, err := sqMean.DataPtrFloat32()
	if err != nil {
		return gocv.Mat{}, err
	}

	out := gocv.NewMatWithSize(gray.Rows(), gray.Cols(), gocv.MatTypeCV8U)
	dst, err := out.DataPtrUint8()
	if err != nil {
		out.Close()
		return gocv.Mat{}, err
	}
	for i, v := range px {
		m := float64(mu[i])
		s := math.Sqrt(math.Max(0, float64(mu2[i])-m*m))
		if float64(v) > m*(1+k*(s/sauvolaRange-1)) {
			dst[i] = 255
		} else {
			dst[i] = 0
		}
	}
	return out, nil
}
