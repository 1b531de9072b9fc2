// Package surface reconstructs the 3D shape of a curved page from the base
// points of its text lines. The page is modelled as a cylinder z = g(x) seen
// by a pinhole camera, and the rotation, curvature and per-line offsets are
// found by least squares.
package surface

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mat3 is a 3x3 matrix stored by rows.
type Mat3 [3]r3.Vec

func Identity() Mat3 { return Mat3{{X: 1}, {Y: 1}, {Z: 1}} }

func (m Mat3) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(m[0], v), Y: r3.Dot(m[1], v), Z: r3.Dot(m[2], v)}
}

// MulVecTrans returns mᵀv.
func (m Mat3) MulVecTrans(v r3.Vec) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(v.X, m[0]), r3.Scale(v.Y, m[1])), r3.Scale(v.Z, m[2]))
}

func (m Mat3) Mul(b Mat3) Mat3 {
	var out Mat3
	for i := range m {
		out[i] = b.MulVecTrans(m[i])
	}
	return out
}

func (m Mat3) Add(b Mat3) Mat3 {
	return Mat3{r3.Add(m[0], b[0]), r3.Add(m[1], b[1]), r3.Add(m[2], b[2])}
}

func (m Mat3) Scale(f float64) Mat3 {
	return Mat3{r3.Scale(f, m[0]), r3.Scale(f, m[1]), r3.Scale(f, m[2])}
}

// Col returns column j.
func (m Mat3) Col(j int) r3.Vec {
	return r3.Vec{X: component(m[0], j), Y: component(m[1], j), Z: component(m[2], j)}
}

func component(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

func unit(i int) r3.Vec {
	var e r3.Vec
	switch i {
	case 0:
		e.X = 1
	case 1:
		e.Y = 1
	default:
		e.Z = 1
	}
	return e
}

// skew returns the cross product matrix [v]×.
func skew(v r3.Vec) Mat3 {
	return Mat3{
		{X: 0, Y: -v.Z, Z: v.Y},
		{X: v.Z, Y: 0, Z: -v.X},
		{X: -v.Y, Y: v.X, Z: 0},
	}
}

// smallAngle is the rotation magnitude below which theta is treated as zero.
const smallAngle = 1e-9

// Rotation returns the rotation matrix for the axis-angle vector theta.
func Rotation(theta r3.Vec) Mat3 {
	t := r3.Norm(theta)
	if t < smallAngle {
		return Identity()
	}
	k := skew(r3.Scale(1/t, theta))
	return Identity().Add(k.Scale(math.Sin(t))).Add(k.Mul(k).Scale(1 - math.Cos(t)))
}

// RotationDerivatives returns dR/dθ_i for i = 0, 1, 2, given R = Rotation(theta):
//
//	dR/dθ_i = (θ_i [θ]× + [θ × (I - R) e_i]×) R / |θ|²
func RotationDerivatives(theta r3.Vec, r Mat3) [3]Mat3 {
	var d [3]Mat3
	n2 := r3.Dot(theta, theta)
	if math.Sqrt(n2) < smallAngle {
		for i := range d {
			d[i] = skew(unit(i))
		}
		return d
	}
	th := skew(theta)
	for i := range d {
		e := unit(i)
		w := r3.Cross(theta, r3.Sub(e, r.Col(i)))
		d[i] = th.Scale(component(theta, i)).Add(skew(w)).Mul(r).Scale(1 / n2)
	}
	return d
}
