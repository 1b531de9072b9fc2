// Package ransac implements random sample consensus fitting over 2D point
// sets for arbitrary model types.
package ransac

import (
	"errors"
	"fmt"
	"math/rand"

	"page-dewarp/internal/geom"
)

// ErrNoConsensus is returned when no trial produced a model with inliers.
var ErrNoConsensus = errors.New("ransac: no consensus set")

// Estimator fits a model of type M and measures point residuals under it.
type Estimator[M any] interface {
	Fit(pts []geom.Point) (M, error)
	Residual(m M, p geom.Point) float64
}

// Params controls a RANSAC run.
type Params struct {
	MinSamples int
	Threshold  float64 // residuals strictly below this are inliers
	MaxTrials  int
	Rand       *rand.Rand
}

// Fit runs RANSAC and returns the model refit on the best consensus set
// together with the inlier mask.
func Fit[M any](pts []geom.Point, est Estimator[M], p Params) (M, []bool, error) {
	var zero M
	n := len(pts)
	if n == 0 {
		return zero, nil, ErrNoConsensus
	}
	k := p.MinSamples
	if k > n {
		k = n
	}
	if k <= 0 {
		return zero, nil, fmt.Errorf("ransac: min samples %d: %w", p.MinSamples, ErrNoConsensus)
	}
	rng := p.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	trials := p.MaxTrials
	if trials <= 0 {
		trials = 100
	}

	var (
		best      []bool
		bestCount int
		bestErr   float64
	)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sample := make([]geom.Point, k)
	for t := 0; t < trials; t++ {
		// partial Fisher-Yates picks k distinct points
		for i := 0; i < k; i++ {
			j := i + rng.Intn(n-i)
			idx[i], idx[j] = idx[j], idx[i]
			sample[i] = pts[idx[i]]
		}
		m, err := est.Fit(sample)
		if err != nil {
			continue
		}
		mask, count, sum := consensus(pts, est, m, p.Threshold)
		if count == 0 {
			continue
		}
		if count > bestCount || (count == bestCount && sum < bestErr) {
			best, bestCount, bestErr = mask, count, sum
		}
		if count == n || k == n {
			break
		}
	}
	if best == nil {
		return zero, nil, ErrNoConsensus
	}

	inliers := make([]geom.Point, 0, bestCount)
	for i, in := range best {
		if in {
			inliers = append(inliers, pts[i])
		}
	}
	m, err := est.Fit(inliers)
	if err != nil {
		return zero, nil, fmt.Errorf("ransac: refit on %d inliers: %w", len(inliers), err)
	}
	return m, best, nil
}

func consensus[M any](pts []geom.Point, est Estimator[M], m M, threshold float64) ([]bool, int, float64) {
	mask := make([]bool, len(pts))
	var count int
	var sum float64
	for i, pt := range pts {
		r := est.Residual(m, pt)
		if r < threshold {
			mask[i] = true
			count++
			sum += r
		}
	}
	return mask, count, sum
}

// Count returns the number of true entries in mask.
func Count(mask []bool) int {
	var n int
	for _, b := range mask {
		if b {
			n++
		}
	}
	return n
}
