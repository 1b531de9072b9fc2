package surface

import (
	"errors"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"page-dewarp/internal/lsq"
)

// Solution is a reconstructed camera pose and page shape.
type Solution struct {
	Params
	Rotation   Mat3
	Cost       float64
	Iterations int
	Status     lsq.Status
}

// After a singular step Solve multiplies the damping by RetryFactor up to
// Retries times before giving up.
const (
	Retries     = 1
	RetryFactor = 10
)

// Solve minimizes p from x0. A singular step is retried with more damping
// from the best iterate; non-convergence only shows in Solution.Status.
func Solve(p *Problem, x0 []float64, s lsq.Settings, log *slog.Logger) (Solution, error) {
	s.Observe = func(iter int, cost float64) {
		log.Debug("solver step", "iteration", iter, "cost", cost)
	}
	res, err := lsq.Minimize(p, x0, s)
	for retry := 0; retry < Retries && errors.Is(err, lsq.ErrSingular); retry++ {
		s.Damping = max(s.Damping, 1) * RetryFactor
		log.Warn("singular solver step, retrying", "err", err, "damping", s.Damping)
		res, err = lsq.Minimize(p, res.X, s)
	}
	if err != nil {
		return Solution{}, err
	}
	if res.Status == lsq.DampingCeiling || res.Status == lsq.MaxIterations {
		log.Warn("solver did not converge", "status", res.Status, "cost", res.Cost)
	}

	prm := p.layout.Unpack(res.X, p.Omega)
	prm.Theta = Normalize(prm.Theta)
	sol := Solution{
		Params:     prm,
		Rotation:   Rotation(prm.Theta),
		Cost:       res.Cost,
		Iterations: res.Iterations,
		Status:     res.Status,
	}
	log.Debug("surface solved",
		"theta", []float64{prm.Theta.X, prm.Theta.Y, prm.Theta.Z},
		"curvature", prm.Curves,
		"cost", res.Cost,
		"iterations", res.Iterations)
	return sol, nil
}

// Normalize reduces the rotation angle of theta into [0, 2π).
func Normalize(theta r3.Vec) r3.Vec {
	t := r3.Norm(theta)
	if t < smallAngle {
		return theta
	}
	return r3.Scale(math.Mod(t, 2*math.Pi)/t, theta)
}
