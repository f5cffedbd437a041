package core

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

const (
	// two-sided 95% normal critical value, used for CI half-widths
	z95 = 1.96

	// heavy-tailed samples can have a range thousands of IQRs wide, which
	// would blow the Freedman-Diaconis bin count up without a ceiling
	maxHistogramBins = 1024
)

// EmpiricalQuantile estimates the p-quantile of values with the
// linear-interpolation estimator. Values need not be sorted; a copy is sorted
// internally so callers keep their trial-index ordering.
func EmpiricalQuantile(p float64, values []float64) (float64, error) {
	if !(p > 0 && p < 1) {
		return 0, fmt.Errorf("quantile probability must be in (0, 1), got %v: %w", p, m.ErrInvalidParameter)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("quantile of an empty sample: %w", m.ErrInsufficientData)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return stat.Quantile(p, stat.LinInterp, sorted, nil), nil
}

// HistogramData bins values with the bin count chosen by the
// Freedman-Diaconis rule, width 2*IQR*n^(-1/3). Edges carries one more entry
// than Counts.
func HistogramData(values []float64) (m.Histogram, error) {
	if len(values) < 2 {
		return m.Histogram{}, fmt.Errorf("histogram needs at least two values: %w", m.ErrInsufficientData)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	low, high := sorted[0], sorted[len(sorted)-1]

	iqr := stat.Quantile(0.75, stat.LinInterp, sorted, nil) - stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	width := 2 * iqr * math.Pow(float64(len(sorted)), -1.0/3.0)

	bins := 1
	if width > 0 && high > low {
		bins = int(math.Ceil((high - low) / width))
		bins = max(bins, 1)
		bins = min(bins, maxHistogramBins)
	}

	// stat.Histogram requires max(x) strictly below the last divider
	dividers := make([]float64, bins+1)
	floats.Span(dividers, low, high)
	dividers[bins] = math.Nextafter(high, math.Inf(1))

	counts := stat.Histogram(nil, dividers, sorted, nil)

	return m.Histogram{
		Edges:  dividers,
		Counts: counts,
	}, nil
}
