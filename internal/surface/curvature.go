package surface

// Curvature is the page cross-section
//
//	g(x) = Σ a_m ω^(m-1) x^m,  m = 1..len(Coef)
//
// The constant term is fixed at zero. ω keeps the coefficients of high
// powers of pixel-sized x near unit magnitude.
type Curvature struct {
	Coef  []float64
	Omega float64
}

func (g Curvature) Degree() int { return len(g.Coef) }

func (g Curvature) Eval(x float64) float64 {
	var y float64
	for m := len(g.Coef); m >= 1; m-- {
		y = (y + g.Coef[m-1]) * x
		if m > 1 {
			y *= g.Omega
		}
	}
	return y
}

// Slope returns g'(x).
func (g Curvature) Slope(x float64) float64 {
	var y float64
	for m := len(g.Coef); m >= 1; m-- {
		y = y*x*g.Omega + float64(m)*g.Coef[m-1]
	}
	return y
}

// Basis fills dst[m-1] with ∂g/∂a_m = ω^(m-1) x^m.
func (g Curvature) Basis(dst []float64, x float64) {
	p := x
	for m := range dst {
		dst[m] = p
		p *= g.Omega * x
	}
}
