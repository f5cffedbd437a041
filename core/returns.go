package core

import (
	"fmt"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

// OverlappingReturns derives horizon-day returns over a sliding window:
// element i is (P[i+n] - P[i]) / P[i], giving len(prices)-n values.
// Consecutive windows share n-1 of their underlying one-day moves; the serial
// correlation is intentional, not a defect.
func OverlappingReturns(prices []float64, horizon int) ([]float64, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("return horizon must be at least 1, got %d: %w", horizon, m.ErrInvalidParameter)
	}
	if horizon >= len(prices) {
		return nil, fmt.Errorf("return horizon %d needs more than %d prices: %w",
			horizon, len(prices), m.ErrInsufficientData)
	}

	res := make([]float64, len(prices)-horizon)
	for i := range res {
		res[i] = (prices[i+horizon] - prices[i]) / prices[i]
	}

	return res, nil
}

// CompoundPrices rebuilds a price path from a starting price and a one-day
// return sequence, the inverse of OverlappingReturns at horizon 1.
func CompoundPrices(startPrice float64, returns []float64) []float64 {
	prices := make([]float64, len(returns)+1)
	prices[0] = startPrice
	for i, r := range returns {
		prices[i+1] = prices[i] * (1 + r)
	}
	return prices
}
