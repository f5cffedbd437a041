package core

import (
	"fmt"
	"math/rand/v2"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

// PathGenerator builds one trial's synthetic price path from independent
// stable draws treated as one-period returns. Each trial owns its own
// generator and source so trials never share random state.
type PathGenerator struct {
	dist       *Stable
	startPrice float64
	periods    int
}

func NewPathGenerator(settings m.SimulationRequestSettings, src rand.Source) (*PathGenerator, error) {
	if !(settings.StartPrice > 0) {
		return nil, fmt.Errorf("starting price must be positive, got %v: %w", settings.StartPrice, m.ErrInvalidParameter)
	}
	if settings.Periods < 1 {
		return nil, fmt.Errorf("periods must be at least 1, got %d: %w", settings.Periods, m.ErrInvalidParameter)
	}

	dist, err := NewStable(settings.Alpha, settings.Beta, settings.Gamma, settings.Delta, src)
	if err != nil {
		return nil, err
	}

	return &PathGenerator{
		dist:       dist,
		startPrice: settings.StartPrice,
		periods:    settings.Periods,
	}, nil
}

// GeneratePath compounds the starting price through periods one-day draws:
// P[i+1] = P[i] * (1 + X[i]). Heavy tails can push 1+X to zero or below; such
// steps are counted on the path rather than treated as errors.
func (g *PathGenerator) GeneratePath() m.PricePath {
	prices := make([]float64, g.periods+1)
	prices[0] = g.startPrice

	negative := 0
	for i := range g.periods {
		growth := 1 + g.dist.Rand()
		if growth <= 0 {
			negative++
		}
		prices[i+1] = prices[i] * growth
	}

	return m.PricePath{
		Prices:             prices,
		NegativeExcursions: negative,
	}
}
