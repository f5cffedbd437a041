package models

import (
	"errors"
	"fmt"

	"github.com/guregu/null/v6"
)

// Error kinds the pipeline can fail with. Everything is deterministic given
// its random stream, so a failure is a config or programming error and
// propagates immediately, never retried.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInsufficientData = errors.New("insufficient data")
)

// Canonical parameterization of the exercise: 750 one-day periods compounded
// from Stable(1.7, 0.0, 1.0, 1.0) draws, overlapping ten-day returns, 1% tail.
const (
	DefaultAlpha        = 1.7
	DefaultBeta         = 0.0
	DefaultGamma        = 1.0
	DefaultDelta        = 1.0
	DefaultStartPrice   = 100.0
	DefaultPeriods      = 750
	DefaultProbability  = 0.01
	DefaultTrials       = 15_000
)

const (
	HorizonOneDay = 1
	HorizonTenDay = 10
)

// Worker-pool shape for the trial loop. Per-trial generator streams keep the
// results identical whatever the batch split, so these only tune throughput.
const (
	DefaultWorkers   = 8
	DefaultBatchSize = 250
)

// Adaptive sufficiency-check defaults: compare interleaved samples every 100
// trials apiece, accept when the KS statistic is at most 0.01 with p-value at
// least 0.6, give up past 200000 trials.
const (
	DefaultCheckEvery   = 100
	DefaultDiscrepancy  = 0.01
	DefaultSignificance = 0.6
	DefaultMaxTrials    = 200_000
)

func ConvertHorizonToString(inp int) string {
	switch inp {
	case HorizonOneDay:
		return "oneDay"
	case HorizonTenDay:
		return "tenDay"
	default:
		return fmt.Sprintf("%dDay", inp)
	}
}

// PricePath is one trial's synthetic price series. Prices has periods+1
// entries, index 0 holding the starting price. NegativeExcursions counts the
// steps where 1+X dropped the price to zero or below; heavy tails make that
// possible, so the path flags it instead of failing.
type PricePath struct {
	Prices             []float64 `json:"prices"`
	NegativeExcursions int       `json:"negativeExcursions"`
}

// TrialResults is the growing sequence of per-trial quantile estimates,
// keyed by trial index so parallel completion order never changes it.
type TrialResults struct {
	Quantiles          []float64 `json:"quantiles"`
	Probability        float64   `json:"probability"`
	Horizon            int       `json:"horizon"`
	Seed               int64     `json:"seed"`
	Offset             int       `json:"offset"`
	NegativeExcursions int       `json:"negativeExcursions"`
}

func (tr *TrialResults) Count() int {
	return len(tr.Quantiles)
}

// Merge appends a later batch run under the same master seed. The batch must
// start exactly where this one ends so the combined sequence is
// indistinguishable from a single longer run.
func (tr *TrialResults) Merge(other *TrialResults) error {
	if other == nil || other.Count() == 0 {
		return nil
	}
	if other.Seed != tr.Seed || other.Probability != tr.Probability || other.Horizon != tr.Horizon {
		return fmt.Errorf("error merging trial results, parameter mismatch: %w", ErrInvalidParameter)
	}
	if other.Offset != tr.Offset+tr.Count() {
		return fmt.Errorf("error merging trial results, expected offset %d, got %d: %w",
			tr.Offset+tr.Count(), other.Offset, ErrInvalidParameter)
	}

	tr.Quantiles = append(tr.Quantiles, other.Quantiles...)
	tr.NegativeExcursions += other.NegativeExcursions
	return nil
}

// ConvergencePoint is one prefix of the trial sequence: the estimate and its
// spread after the first Trials results.
type ConvergencePoint struct {
	Trials        int     `json:"trials"`
	Estimate      float64 `json:"estimate"`
	StdDev        float64 `json:"stdDev"`
	StdError      float64 `json:"stdError"`
	HalfWidth95   float64 `json:"halfWidth95"`
	EstimateDelta float64 `json:"estimateDelta"` // |estimate - previous estimate|, 0 for the first point
}

// ConvergenceReport justifies the trial count. Everything here is recomputed
// from the TrialResults sequence alone.
type ConvergenceReport struct {
	Trials      int     `json:"trials"`
	Mean        float64 `json:"mean"`
	StdDev      float64 `json:"stdDev"`
	StdError    float64 `json:"stdError"`
	HalfWidth95 float64 `json:"halfWidth95"`
	Tolerance   float64 `json:"tolerance"`

	Curve []ConvergencePoint `json:"curve"`

	// RecommendedTrials projects the trial count at which the 95% CI
	// half-width drops below Tolerance, from SE(T) = s/sqrt(T).
	RecommendedTrials int  `json:"recommendedTrials"`
	Converged         bool `json:"converged"`

	// StabilizedAt is the smallest prefix size beyond which every successive
	// estimate change stayed below Tolerance; invalid when that never happened.
	StabilizedAt null.Int64 `json:"stabilizedAt"`

	// SlopeLogSE is the slope of log(SE) on log(T) over the curve; an
	// estimator obeying the central limit theorem sits near -0.5.
	SlopeLogSE float64 `json:"slopeLogSE"`
}

// Histogram is a plain numeric summary of the trial results for downstream
// consumers. Edges has one more entry than Counts.
type Histogram struct {
	Edges  []float64 `json:"edges"`
	Counts []float64 `json:"counts"`
}

// SufficiencyResult reports the adaptive trial-count check: trials grew until
// two interleaved samples of quantile estimates agreed under a two-sample
// Kolmogorov-Smirnov test, or the ceiling was hit.
type SufficiencyResult struct {
	TrialsUsed int     `json:"trialsUsed"`
	Statistic  float64 `json:"statistic"`
	PValue     float64 `json:"pValue"`
	Passed     bool    `json:"passed"`
}
