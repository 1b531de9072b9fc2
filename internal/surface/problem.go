package surface

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"page-dewarp/internal/geom"
)

// Page holds the observations of one page: the base points of every text
// line (underline mid-curves count as lines) and optionally the left-mid and
// right-mid points of each line for the margin alignment term.
type Page struct {
	Lines [][]geom.Point
	Sides [][2]geom.Point
}

// Layout maps the unknowns onto one vector:
//
//	θ (3) | a (Degree per page) | align (2 per page) | l (one per line)
type Layout struct {
	Degree int
	Lines  []int // line count per page
}

func (l Layout) Pages() int { return len(l.Lines) }

func (l Layout) Len() int {
	n := 3 + (l.Degree+2)*l.Pages()
	for _, k := range l.Lines {
		n += k
	}
	return n
}

func (l Layout) curve(page int) int { return 3 + l.Degree*page }
func (l Layout) align(page int) int { return 3 + l.Degree*l.Pages() + 2*page }

func (l Layout) offset(page int) int {
	n := 3 + (l.Degree+2)*l.Pages()
	for _, k := range l.Lines[:page] {
		n += k
	}
	return n
}

// Params is the unpacked form of the unknown vector.
type Params struct {
	Theta   r3.Vec
	Curves  []Curvature
	Align   [][2]float64
	Offsets [][]float64
}

func (l Layout) Unpack(x []float64, omega float64) Params {
	p := Params{Theta: r3.Vec{X: x[0], Y: x[1], Z: x[2]}}
	for page, lines := range l.Lines {
		c := l.curve(page)
		a := l.align(page)
		o := l.offset(page)
		p.Curves = append(p.Curves, Curvature{Coef: x[c : c+l.Degree], Omega: omega})
		p.Align = append(p.Align, [2]float64{x[a], x[a+1]})
		p.Offsets = append(p.Offsets, x[o:o+lines])
	}
	return p
}

func (l Layout) Pack(p Params) []float64 {
	x := make([]float64, l.Len())
	x[0], x[1], x[2] = p.Theta.X, p.Theta.Y, p.Theta.Z
	for page := range l.Lines {
		copy(x[l.curve(page):], p.Curves[page].Coef)
		copy(x[l.align(page):], p.Align[page][:])
		copy(x[l.offset(page):], p.Offsets[page])
	}
	return x
}

// Problem is the straightness objective E_str, optionally extended with the
// margin alignment term E_align weighted by Lambda2. It implements
// lsq.Problem.
type Problem struct {
	Camera  Camera
	Degree  int
	Omega   float64
	Lambda2 float64
	Align   bool

	layout Layout
	lines  [][][]r3.Vec // page, line, point on the focal plane
	sides  [][2][]r3.Vec
	cache  *Cache
	rows   int
}

// NewProblem lifts the page observations onto the focal plane. cache may be
// shared with later projections of the same run.
func NewProblem(cam Camera, degree int, omega float64, pages []Page, cache *Cache) *Problem {
	p := &Problem{Camera: cam, Degree: degree, Omega: omega, cache: cache}
	p.layout.Degree = degree
	for _, page := range pages {
		var lines [][]r3.Vec
		for _, pts := range page.Lines {
			lines = append(lines, cam.FocalPlanes(pts))
			p.rows += len(pts)
		}
		var sides [2][]r3.Vec
		for _, s := range page.Sides {
			sides[0] = append(sides[0], cam.FocalPlane(s[0]))
			sides[1] = append(sides[1], cam.FocalPlane(s[1]))
		}
		p.lines = append(p.lines, lines)
		p.sides = append(p.sides, sides)
		p.layout.Lines = append(p.layout.Lines, len(lines))
	}
	return p
}

// WithAlign enables the margin alignment term.
func (p *Problem) WithAlign(lambda2 float64) *Problem {
	p.Align = true
	p.Lambda2 = lambda2
	return p
}

func (p *Problem) Layout() Layout { return p.layout }

func (p *Problem) Dims() (m, n int) {
	m = p.rows
	if p.Align {
		for _, s := range p.sides {
			m += len(s[0]) + len(s[1])
		}
	}
	return m, p.layout.Len()
}

// slot keys of the projection cache.
func lineSlot(page, line int) int { return page<<20 | line }
func sideSlot(page, side int) int { return -(page<<1 | side) - 1 }

func (p *Problem) project(r Mat3, g Curvature, pts []r3.Vec, key int) []Hit {
	var guesses []float64
	if p.cache != nil {
		guesses = p.cache.Slot(key, len(pts))
	}
	return p.Camera.Project(r, g, pts, guesses)
}

func (p *Problem) Residuals(dst, x []float64) {
	prm := p.layout.Unpack(x, p.Omega)
	r := Rotation(prm.Theta)
	i := 0
	for page, lines := range p.lines {
		g := prm.Curves[page]
		for k, pts := range lines {
			l := prm.Offsets[page][k]
			for _, h := range p.project(r, g, pts, lineSlot(page, k)) {
				dst[i] = h.S.Y - l
				i++
			}
		}
	}
	if !p.Align {
		return
	}
	for page, sides := range p.sides {
		g := prm.Curves[page]
		for s, pts := range sides {
			a := prm.Align[page][s]
			for _, h := range p.project(r, g, pts, sideSlot(page, s)) {
				dst[i] = p.Lambda2 * (h.S.X - a)
				i++
			}
		}
	}
}

// Jacobian differentiates the root-finding condition
//
//	F(t) = R₃·(tP - Of) - g(R₁·(tP - Of)) = 0
//
// implicitly. With q = tP - Of, B = R₁·P, D = R₃·P and slope g' at X:
//
//	dt/dθ_i = -(dR₃·q - g' dR₁·q) / (D - g'B)
//	dt/da_m = ω^(m-1) X^m / (D - g'B)
func (p *Problem) Jacobian(dst *mat.Dense, x []float64) {
	dst.Zero()
	prm := p.layout.Unpack(x, p.Omega)
	r := Rotation(prm.Theta)
	dr := RotationDerivatives(prm.Theta, r)
	of := p.Camera.origin()
	basis := make([]float64, p.Degree)

	// fill writes the derivatives of row i of the world coordinate
	// selected by axis (0 for X, 1 for Y), scaled by w.
	fill := func(i, page, axis int, pt r3.Vec, h Hit, g Curvature, w float64) {
		q := r3.Sub(r3.Scale(h.T, pt), of)
		gp := g.Slope(h.S.X)
		b, d := r3.Dot(r[0], pt), r3.Dot(r[2], pt)
		den := d - gp*b
		rp := r3.Dot(r[axis], pt)
		for j := 0; j < 3; j++ {
			dt := -(r3.Dot(dr[j][2], q) - gp*r3.Dot(dr[j][0], q)) / den
			dst.Set(i, j, w*(r3.Dot(dr[j][axis], q)+rp*dt))
		}
		g.Basis(basis, h.S.X)
		c := p.layout.curve(page)
		for m, v := range basis {
			dst.Set(i, c+m, w*rp*v/den)
		}
	}

	i := 0
	for page, lines := range p.lines {
		g := prm.Curves[page]
		o := p.layout.offset(page)
		for k, pts := range lines {
			hits := p.project(r, g, pts, lineSlot(page, k))
			for n, h := range hits {
				fill(i, page, 1, pts[n], h, g, 1)
				dst.Set(i, o+k, -1)
				i++
			}
		}
	}
	if !p.Align {
		return
	}
	for page, sides := range p.sides {
		g := prm.Curves[page]
		a := p.layout.align(page)
		for s, pts := range sides {
			hits := p.project(r, g, pts, sideSlot(page, s))
			for n, h := range hits {
				fill(i, page, 0, pts[n], h, g, p.Lambda2)
				dst.Set(i, a+s, -p.Lambda2)
				i++
			}
		}
	}
}

// InitialArgs builds the starting vector from the vanishing point v: the
// camera is tilted about x so that the page's vertical lines meet at v, the
// page is flat, and every offset and alignment sits at the mean of its
// points projected onto that flat page.
func (p *Problem) InitialArgs(v geom.Point) []float64 {
	vy := v.Y - p.Camera.Center.Y
	prm := Params{Theta: r3.Vec{X: math.Atan2(-vy, p.Camera.Focal) - math.Pi/2}}
	r := Rotation(prm.Theta)
	for page, lines := range p.lines {
		flat := Curvature{Coef: make([]float64, p.Degree), Omega: p.Omega}
		prm.Curves = append(prm.Curves, flat)

		offsets := make([]float64, len(lines))
		for k, pts := range lines {
			offsets[k] = stat.Mean(worldAxis(p.Camera.Project(r, flat, pts, nil), 1), nil)
		}
		prm.Offsets = append(prm.Offsets, offsets)

		var align [2]float64
		for s, pts := range p.sides[page] {
			if len(pts) > 0 {
				align[s] = stat.Mean(worldAxis(p.Camera.Project(r, flat, pts, nil), 0), nil)
			}
		}
		prm.Align = append(prm.Align, align)
	}
	return p.layout.Pack(prm)
}

func worldAxis(hits []Hit, axis int) []float64 {
	out := make([]float64, len(hits))
	for i, h := range hits {
		if axis == 0 {
			out[i] = h.S.X
		} else {
			out[i] = h.S.Y
		}
	}
	return out
}
