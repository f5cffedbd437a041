package core

import (
	"errors"
	"math/rand/v2"
	"testing"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

// TestGeneratePathShape verifies the canonical path: periods+1 prices with
// the starting price in front
func TestGeneratePathShape(t *testing.T) {
	settings := m.DefaultSimulationSettings()

	generator, err := NewPathGenerator(settings, rand.NewPCG(42, 0))
	if err != nil {
		t.Fatalf("Failed to create path generator: %v", err)
	}

	path := generator.GeneratePath()

	if len(path.Prices) != settings.Periods+1 {
		t.Errorf("expected %d prices, got %d", settings.Periods+1, len(path.Prices))
	}
	if path.Prices[0] != settings.StartPrice {
		t.Errorf("expected starting price %v, got %v", settings.StartPrice, path.Prices[0])
	}
	if path.NegativeExcursions < 0 {
		t.Errorf("negative excursion count cannot be negative, got %d", path.NegativeExcursions)
	}
}

// TestGeneratePathCompoundsItsDraws rebuilds the path from raw draws off an
// identical stream and expects an exact match, draw for draw
func TestGeneratePathCompoundsItsDraws(t *testing.T) {
	settings := m.DefaultSimulationSettings()
	settings.Periods = 100

	generator, err := NewPathGenerator(settings, rand.NewPCG(42, 3))
	if err != nil {
		t.Fatalf("Failed to create path generator: %v", err)
	}
	path := generator.GeneratePath()

	dist, err := NewStable(settings.Alpha, settings.Beta, settings.Gamma, settings.Delta, rand.NewPCG(42, 3))
	if err != nil {
		t.Fatalf("Failed to create stable distribution: %v", err)
	}

	returns := make([]float64, settings.Periods)
	for i := range returns {
		returns[i] = dist.Rand()
	}
	rebuilt := CompoundPrices(settings.StartPrice, returns)

	if len(rebuilt) != len(path.Prices) {
		t.Fatalf("expected %d prices, got %d", len(path.Prices), len(rebuilt))
	}
	for i := range rebuilt {
		if rebuilt[i] != path.Prices[i] {
			t.Errorf("price %d: expected %v, got %v", i, path.Prices[i], rebuilt[i])
		}
	}
}

// TestGeneratePathCountsNegativeExcursions drives the one-day draws negative
// often enough that crossings are all but certain
func TestGeneratePathCountsNegativeExcursions(t *testing.T) {
	settings := m.DefaultSimulationSettings()
	settings.Alpha = 2 // normal edge, so the crossing rate is easy to reason about
	settings.Gamma = 10
	settings.Delta = -1
	settings.Periods = 400

	generator, err := NewPathGenerator(settings, rand.NewPCG(42, 0))
	if err != nil {
		t.Fatalf("Failed to create path generator: %v", err)
	}

	// growth is 1 + Normal(-1, sqrt(2)*10), nonpositive about half the time
	path := generator.GeneratePath()
	if path.NegativeExcursions == 0 {
		t.Error("expected negative excursions on a wildly negative law, got none")
	}
	if path.NegativeExcursions == settings.Periods {
		t.Error("every step counted as a negative excursion, count is likely inverted")
	}
}

func TestNewPathGeneratorValidation(t *testing.T) {
	src := rand.NewPCG(42, 0)

	settings := m.DefaultSimulationSettings()
	settings.StartPrice = 0
	if _, err := NewPathGenerator(settings, src); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("start price 0: expected invalid parameter, got %v", err)
	}

	settings = m.DefaultSimulationSettings()
	settings.StartPrice = -5
	if _, err := NewPathGenerator(settings, src); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("start price -5: expected invalid parameter, got %v", err)
	}

	settings = m.DefaultSimulationSettings()
	settings.Periods = 0
	if _, err := NewPathGenerator(settings, src); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("periods 0: expected invalid parameter, got %v", err)
	}

	// stable parameter problems bubble up with the same kind
	settings = m.DefaultSimulationSettings()
	settings.Alpha = 2.5
	if _, err := NewPathGenerator(settings, src); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("alpha 2.5: expected invalid parameter, got %v", err)
	}
}
