package cv

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"page-dewarp/internal/text"
)

// Contours is a traced contour tree. It owns OpenCV memory and must be
// closed.
type Contours struct {
	Forest text.Forest
	vec    gocv.PointsVector
}

// FindContours traces every boundary of the white regions of bw.
func FindContours(bw gocv.Mat) *Contours {
	hierarchy := gocv.NewMat()
	defer hierarchy.Close()
	vec := gocv.FindContoursWithParams(bw, &hierarchy, gocv.RetrievalTree, gocv.ChainApproxSimple)

	forest := make(text.Forest, vec.Size())
	for i := range forest {
		link := hierarchy.GetVeciAt(0, i)
		forest[i] = text.Contour{
			Points: vec.At(i).ToPoints(),
			Next:   int(link[0]),
			Prev:   int(link[1]),
			Child:  int(link[2]),
			Parent: int(link[3]),
		}
	}
	return &Contours{Forest: forest, vec: vec}
}

func (c *Contours) Close() { c.vec.Close() }

// Fill draws contour i filled with col, shifted by offset.
func (c *Contours) Fill(dst *gocv.Mat, i int, col color.RGBA, offset image.Point) {
	none := gocv.NewMat()
	defer none.Close()
	gocv.DrawContoursWithParams(dst, c.vec, i, col, -1, gocv.Line8, none, 0, offset)
}

// Coverage measures how much of each filled contour is ink in ink, an
// image with ink set to 255.
func (c *Contours) Coverage(ink gocv.Mat) text.Coverage {
	return func(i int) float64 {
		box := c.Forest.Box(i).Intersect(image.Rect(0, 0, ink.Cols(), ink.Rows()))
		if box.Empty() {
			return 0
		}
		mask := gocv.Zeros(box.Dy(), box.Dx(), gocv.MatTypeCV8U)
		defer mask.Close()
		c.Fill(&mask, i, white, box.Min.Mul(-1))
		filled := gocv.CountNonZero(mask)
		if filled == 0 {
			return 0
		}

		region := ink.Region(box)
		defer region.Close()
		both := gocv.NewMat()
		defer both.Close()
		gocv.BitwiseAnd(mask, region, &both)
		return float64(gocv.CountNonZero(both)) / float64(filled)
	}
}

// Letters extracts glyph-shaped contours from bw.
func Letters(bw gocv.Mat, p text.ExtractParams) []*text.Letter {
	ink := gocv.NewMat()
	defer ink.Close()
	gocv.BitwiseNot(bw, &ink)

	cs, good := textContours(ink, ink, p)
	defer cs.Close()
	return cs.Forest.Letters(good)
}

// textContours finds the glyph-like white shapes of im whose fill is mostly
// ink in ink. im is framed in white so the paper becomes one large hole
// whose children are the candidates.
func textContours(im, ink gocv.Mat, p text.ExtractParams) (*Contours, []int) {
	framed := im.Clone()
	defer framed.Close()
	gocv.Rectangle(&framed, image.Rect(0, 0, framed.Cols(), framed.Rows()), white, 3)

	cs := FindContours(framed)
	good, _ := text.TextContours(cs.Forest, image.Pt(im.Cols(), im.Rows()), cs.Coverage(ink), p)
	return cs, good
}

// FineRedraw redraws every glyph of bw shifted vertically onto its line's
// median baseline. Glyph holes of small letters move with their letter.
func FineRedraw(bw gocv.Mat, lines []*text.Line) gocv.Mat {
	out := gocv.Zeros(bw.Rows(), bw.Cols(), gocv.MatTypeCV8U)
	cs := FindContours(bw)
	defer cs.Close()

	field := text.NewOffsetField(lines)
	for _, r := range text.PlanRedraw(cs.Forest, field.At) {
		cs.Fill(&out, r.Index, color.RGBA{R: r.Fill, G: r.Fill, B: r.Fill}, r.Offset)
	}
	return out
}
