package core

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

// TwoSampleKS computes the two-sample Kolmogorov-Smirnov statistic, the
// largest vertical distance between the two empirical CDFs, together with its
// asymptotic p-value (Numerical Recipes 14.3.3). Small p means the samples
// likely come from different distributions.
func TwoSampleKS(sample1, sample2 []float64) (statistic, pValue float64, err error) {
	n1, n2 := len(sample1), len(sample2)
	if n1 == 0 || n2 == 0 {
		return 0, 0, fmt.Errorf("two-sample ks needs both samples non-empty: %w", m.ErrInsufficientData)
	}

	s1 := slices.Clone(sample1)
	s2 := slices.Clone(sample2)
	slices.Sort(s1)
	slices.Sort(s2)

	statistic = stat.KolmogorovSmirnov(s1, nil, s2, nil)

	en := math.Sqrt(float64(n1) * float64(n2) / float64(n1+n2))
	pValue = ksProbability((en + 0.12 + 0.11/en) * statistic)

	return statistic, pValue, nil
}

// ksProbability is the asymptotic Kolmogorov survival function
// Q(lambda) = 2 * sum_{k>=1} (-1)^(k-1) * exp(-2 k^2 lambda^2).
func ksProbability(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}

	a2 := -2 * lambda * lambda
	fac := 2.0
	var sum, previous float64

	for k := 1; k <= 100; k++ {
		term := fac * math.Exp(a2*float64(k*k))
		sum += term
		if math.Abs(term) <= 1e-3*previous || math.Abs(term) <= 1e-8*math.Abs(sum) {
			return sum
		}
		fac = -fac
		previous = math.Abs(term)
	}

	return 1
}
