package scheduler

import (
	"context"
	"testing"

	"github.com/guregu/null/v6"

	"github.com/Rasimilian/Monte-Carlo-Simulation/core"
	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

func TestIsSeriesConverged(t *testing.T) {
	run := &m.SimulationRun{TrialOffset: 0, Trials: 1000}

	// no recommendation recorded means no verdict, keep topping up
	if IsSeriesConverged(run) {
		t.Error("expected a run without a recommendation to read as not converged")
	}

	run.RecommendedTrials = null.NewInt(5000, true)
	if IsSeriesConverged(run) {
		t.Error("expected 1000 of 5000 trials to read as not converged")
	}

	// the verdict is about the whole series, the batch on the row is just
	// its tail
	run.TrialOffset = 4500
	if !IsSeriesConverged(run) {
		t.Error("expected 5500 accumulated trials to read as converged")
	}

	run.TrialOffset = 4000
	if !IsSeriesConverged(run) {
		t.Error("expected exactly 5000 accumulated trials to read as converged")
	}

	run.TrialOffset = 3999
	if IsSeriesConverged(run) {
		t.Error("expected 4999 accumulated trials to read as not converged")
	}
}

func TestContinueSeries(t *testing.T) {
	defaults := m.DefaultSimulationSettings()
	defaults.Workers = 4
	defaults.BatchSize = 100
	defaults.Tolerance = 0.002

	last := &m.SimulationRun{
		Id:          7,
		Seed:        99,
		Alpha:       1.5,
		Beta:        -0.2,
		Gamma:       2,
		Delta:       0.5,
		StartPrice:  50,
		Periods:     400,
		Horizon:     5,
		Probability: 0.05,
		TrialOffset: 3000,
		Trials:      1000,
	}

	settings := ContinueSeries(defaults, 500, last)

	// the law and the seed must match the stored series or the continuation
	// would answer a different question
	if settings.Alpha != 1.5 || settings.Beta != -0.2 || settings.Gamma != 2 || settings.Delta != 0.5 {
		t.Errorf("expected the stored stable parameters, got alpha %v beta %v gamma %v delta %v",
			settings.Alpha, settings.Beta, settings.Gamma, settings.Delta)
	}
	if settings.StartPrice != 50 || settings.Periods != 400 {
		t.Errorf("expected the stored path shape, got start %v periods %d", settings.StartPrice, settings.Periods)
	}
	if settings.Horizon != 5 || settings.Probability != 0.05 {
		t.Errorf("expected the stored estimator, got horizon %d probability %v", settings.Horizon, settings.Probability)
	}
	if settings.Seed != 99 {
		t.Errorf("expected the stored seed, got %d", settings.Seed)
	}

	if settings.TrialOffset != 4000 {
		t.Errorf("expected the next batch to start at trial 4000, got %d", settings.TrialOffset)
	}
	if settings.Trials != 500 {
		t.Errorf("expected the top up batch size, got %d", settings.Trials)
	}

	// runtime knobs are about this process, not the stored series
	if settings.Workers != 4 || settings.BatchSize != 100 {
		t.Errorf("expected the runtime knobs from the defaults, got workers %d batch %d", settings.Workers, settings.BatchSize)
	}
	if settings.Tolerance != 0.002 {
		t.Errorf("expected the tolerance from the defaults, got %v", settings.Tolerance)
	}
}

func TestRegisterAllValidatesCronSpecs(t *testing.T) {
	sc := core.ServiceContext{Context: context.Background()}

	scheduler := NewScheduler(sc, Options{
		TopUpCron:     "0 0 * * * *",
		RetentionCron: "0 15 3 * * *",
	})
	if err := scheduler.RegisterAll(); err != nil {
		t.Errorf("expected six field specs to register, got %v", err)
	}

	scheduler = NewScheduler(sc, Options{
		TopUpCron:     "not a cron spec",
		RetentionCron: "0 15 3 * * *",
	})
	if err := scheduler.RegisterAll(); err == nil {
		t.Error("expected a bad top up spec to be rejected")
	}

	// five fields is the classic format, this scheduler wants seconds too
	scheduler = NewScheduler(sc, Options{
		TopUpCron:     "0 0 * * * *",
		RetentionCron: "15 3 * * *",
	})
	if err := scheduler.RegisterAll(); err == nil {
		t.Error("expected a five field retention spec to be rejected")
	}
}
