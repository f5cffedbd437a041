package core

import (
	"fmt"
	"math"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/stat"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

// tolerance fallback when the caller leaves it zero: one percent of the
// estimate magnitude
const relativeTolerance = 0.01

// DefaultPrefixSizes is the prefix grid the empirical convergence curve is
// evaluated on: tenth, quarter, half, and full count, skipping sizes with
// fewer than two trials and deduplicating.
func DefaultPrefixSizes(total int) []int {
	fractions := []int{total / 10, total / 4, total / 2, total}

	sizes := make([]int, 0, len(fractions))
	for _, size := range fractions {
		if size < 2 {
			continue
		}
		if len(sizes) > 0 && sizes[len(sizes)-1] == size {
			continue
		}
		sizes = append(sizes, size)
	}

	return sizes
}

// AnalyzeConvergence builds the convergence report for the trial sequence on
// the default prefix grid. Tolerance zero falls back to one percent of the
// estimate magnitude.
func AnalyzeConvergence(results *m.TrialResults, tolerance float64) (*m.ConvergenceReport, error) {
	if results == nil || results.Count() < 2 {
		return nil, fmt.Errorf("convergence analysis needs at least two trial results: %w", m.ErrInsufficientData)
	}
	return AnalyzeConvergenceAt(results, DefaultPrefixSizes(results.Count()), tolerance)
}

// AnalyzeConvergenceAt is AnalyzeConvergence over a caller-chosen prefix grid.
// Sizes must be ascending, each between 2 and the trial count.
func AnalyzeConvergenceAt(results *m.TrialResults, prefixSizes []int, tolerance float64) (*m.ConvergenceReport, error) {
	if results == nil || results.Count() < 2 {
		return nil, fmt.Errorf("convergence analysis needs at least two trial results: %w", m.ErrInsufficientData)
	}
	if tolerance < 0 {
		return nil, fmt.Errorf("tolerance must not be negative, got %v: %w", tolerance, m.ErrInvalidParameter)
	}
	if len(prefixSizes) == 0 {
		return nil, fmt.Errorf("convergence analysis needs at least one prefix size: %w", m.ErrInvalidParameter)
	}
	for k, size := range prefixSizes {
		if size < 2 || size > results.Count() {
			return nil, fmt.Errorf("prefix size %d out of range [2, %d]: %w", size, results.Count(), m.ErrInvalidParameter)
		}
		if k > 0 && size <= prefixSizes[k-1] {
			return nil, fmt.Errorf("prefix sizes must be strictly ascending: %w", m.ErrInvalidParameter)
		}
	}

	n := results.Count()
	mean := stat.Mean(results.Quantiles, nil)
	stdDev := stat.StdDev(results.Quantiles, nil)
	stdError := stdDev / math.Sqrt(float64(n))

	if tolerance == 0 {
		tolerance = relativeTolerance * math.Abs(mean)
		if tolerance == 0 {
			tolerance = relativeTolerance
		}
	}

	curve := make([]m.ConvergencePoint, len(prefixSizes))
	previous := 0.0
	for k, size := range prefixSizes {
		prefix := results.Quantiles[:size]
		estimate := stat.Mean(prefix, nil)
		spread := stat.StdDev(prefix, nil)
		se := spread / math.Sqrt(float64(size))

		delta := 0.0
		if k > 0 {
			delta = math.Abs(estimate - previous)
		}
		previous = estimate

		curve[k] = m.ConvergencePoint{
			Trials:        size,
			Estimate:      estimate,
			StdDev:        spread,
			StdError:      se,
			HalfWidth95:   z95 * se,
			EstimateDelta: delta,
		}
	}

	// projection from SE(T) = s/sqrt(T): the T where z*s/sqrt(T) <= tolerance
	recommended := int(math.Ceil(math.Pow(z95*stdDev/tolerance, 2)))
	if recommended < 1 {
		recommended = 1
	}

	// smallest prefix beyond which every successive estimate change stayed
	// below tolerance
	stabilized := null.Int64{}
	cut := -1
	for k := len(curve) - 1; k >= 1; k-- {
		if curve[k].EstimateDelta >= tolerance {
			break
		}
		cut = k - 1
	}
	if cut >= 0 {
		stabilized = null.NewInt(int64(curve[cut].Trials), true)
	}

	return &m.ConvergenceReport{
		Trials:            n,
		Mean:              mean,
		StdDev:            stdDev,
		StdError:          stdError,
		HalfWidth95:       z95 * stdError,
		Tolerance:         tolerance,
		Curve:             curve,
		RecommendedTrials: recommended,
		Converged:         n >= recommended,
		StabilizedAt:      stabilized,
		SlopeLogSE:        convergenceSlope(curve),
	}, nil
}

// convergenceSlope regresses log(SE) on log(T) over the curve. A quantile
// estimator with a finite-variance sampling distribution lands near -0.5.
func convergenceSlope(curve []m.ConvergencePoint) float64 {
	logT := make([]float64, 0, len(curve))
	logSE := make([]float64, 0, len(curve))
	for _, point := range curve {
		if point.StdError <= 0 {
			continue
		}
		logT = append(logT, math.Log(float64(point.Trials)))
		logSE = append(logSE, math.Log(point.StdError))
	}

	if len(logT) < 2 {
		return 0
	}

	_, slope := stat.LinearRegression(logT, logSE, nil, false)
	return slope
}
