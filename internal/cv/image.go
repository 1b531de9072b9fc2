// Package cv wraps the OpenCV operations the pipeline needs: image I/O,
// binarization, contour extraction, rotation, remapping and contrast
// normalization. Binary images use 0 for ink and 255 for paper.
package cv

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"page-dewarp/internal/geom"
)

var (
	ErrRead  = errors.New("cv: could not read image")
	ErrWrite = errors.New("cv: could not write image")
)

var white = color.RGBA{R: 255, G: 255, B: 255}

func Read(path string) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%w: %s", ErrRead, path)
	}
	return img, nil
}

func Write(path string, img gocv.Mat) error {
	if ok := gocv.IMWrite(path, img); !ok {
		return fmt.Errorf("%w: %s", ErrWrite, path)
	}
	return nil
}

// Gray returns a single channel copy of img.
func Gray(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch img.Channels() {
	case 3:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		img.CopyTo(&gray)
	}
	return gray
}

// Negative reports whether the page in gray is light ink on a dark ground,
// judged from the mean of the central half of the image.
func Negative(gray gocv.Mat) bool {
	h, w := gray.Rows(), gray.Cols()
	inner := gray.Region(image.Rect(w/4, h/4, w-w/4, h-h/4))
	defer inner.Close()
	return inner.Mean().Val1 < 110
}

// Remap samples img at the mesh points. The output has one pixel per mesh
// point and replicates the border outside the source.
func Remap(img gocv.Mat, m *geom.Mesh, interpolation string) (gocv.Mat, error) {
	mapX := gocv.NewMatWithSize(m.Rows, m.Cols, gocv.MatTypeCV32F)
	defer mapX.Close()
	mapY := gocv.NewMatWithSize(m.Rows, m.Cols, gocv.MatTypeCV32F)
	defer mapY.Close()
	xs, err := mapX.DataPtrFloat32()
	if err != nil {
		return gocv.Mat{}, err
	}
	ys, err := mapY.DataPtrFloat32()
	if err != nil {
		return gocv.Mat{}, err
	}
	for i, p := range m.Points {
		xs[i], ys[i] = float32(p.X), float32(p.Y)
	}

	out := gocv.NewMat()
	gocv.Remap(img, &out, &mapX, &mapY, interpolationFlag(interpolation), gocv.BorderReplicate, color.RGBA{})
	return out, nil
}

func interpolationFlag(name string) gocv.InterpolationFlags {
	switch name {
	case "cubic":
		return gocv.InterpolationCubic
	case "lanczos":
		return gocv.InterpolationLanczos4
	}
	return gocv.InterpolationLinear
}

// Stretch converts img to gray and maps the lo and hi percentiles of its
// histogram onto 0 and 255.
func Stretch(img gocv.Mat, lo, hi float64) (gocv.Mat, error) {
	gray := Gray(img)
	defer gray.Close()

	data, err := gray.DataPtrUint8()
	if err != nil {
		return gocv.Mat{}, err
	}
	var hist [256]float64
	for _, v := range data {
		hist[v]++
	}
	levels := make([]float64, 256)
	for i := range levels {
		levels[i] = float64(i)
	}
	low := stat.Quantile(lo/100, stat.Empirical, levels, hist[:])
	high := stat.Quantile(hi/100, stat.Empirical, levels, hist[:])

	out := gocv.NewMat()
	if high <= low {
		gray.CopyTo(&out)
		return out, nil
	}
	alpha := 255 / (high - low)
	gocv.ConvertScaleAbs(gray, &out, alpha, -low*alpha)
	return out, nil
}

// SafeRotate rotates img by angle radians about its center on a white
// canvas large enough to hold the result. Rotations beyond limit are
// refused and a copy of img is returned.
func SafeRotate(img gocv.Mat, angle, limit float64, log *slog.Logger) gocv.Mat {
	out := gocv.NewMat()
	if math.Abs(angle) > limit {
		log.Warn("refusing rotation", "angle", angle, "limit", limit)
		img.CopyTo(&out)
		return out
	}

	h, w := float64(img.Rows()), float64(img.Cols())
	s, c := math.Abs(math.Sin(angle)), math.Cos(angle)
	padH := int(math.Ceil((w*s + h*c - h) / 2))
	padW := int(math.Ceil((h*s + w*c - w) / 2))
	padH, padW = max(padH, 0), max(padW, 0)

	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(img, &padded, padH, padH, padW, padW, gocv.BorderConstant, white)

	size := image.Pt(padded.Cols(), padded.Rows())
	rot := gocv.GetRotationMatrix2D(image.Pt(size.X/2, size.Y/2), angle*180/math.Pi, 1)
	defer rot.Close()
	gocv.WarpAffineWithParams(padded, &out, rot, size, gocv.InterpolationLinear, gocv.BorderConstant, white)
	log.Debug("rotated", "degrees", angle*180/math.Pi)
	return out
}
