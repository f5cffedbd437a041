package core

import (
	"context"
	"errors"
	"testing"
	"time"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

func TestJobsAndWorkersLogicIsCorrect(t *testing.T) {
	trials := 10_000
	batchSize := 1_000
	maximumAvailableWorkers := 4

	jobs, nWorkers := GetNumberOfJobsAndWorkers(trials, batchSize, maximumAvailableWorkers)

	if len(jobs) != 10 {
		t.Errorf("Expected 10 jobs, got %d", len(jobs))
	}
	if nWorkers != 4 {
		t.Errorf("Expected 4 workers, got %d", nWorkers)
	}
	if jobs[0].end != jobs[1].start {
		t.Errorf("Expected second job to start exactly where the first ends, got %d and %d", jobs[0].end, jobs[1].start)
	}

	// should have 4 jobs (last one should cover the 500 leftover trials)
	trials = 3_500
	batchSize = 1_000
	maximumAvailableWorkers = 4

	jobs, nWorkers = GetNumberOfJobsAndWorkers(trials, batchSize, maximumAvailableWorkers)

	if len(jobs) != 4 {
		t.Errorf("Expected 4 jobs, got %d", len(jobs))
	}
	if nWorkers != 4 {
		t.Errorf("Expected 4 workers, got %d", nWorkers)
	}
	if jobs[3].end != 3_500 {
		t.Errorf("Expected last job to end at the trial count (ends are exclusive), got %d", jobs[3].end)
	}

	covered := 0
	for i, j := range jobs {
		covered += j.end - j.start
		if i > 0 && jobs[i-1].end != j.start {
			t.Errorf("Expected job %d to start exactly where job %d ends", i, i-1)
		}
	}
	if covered != trials {
		t.Errorf("Expected the jobs to cover %d trials, got %d", trials, covered)
	}

	trials = 10
	batchSize = 1_000
	maximumAvailableWorkers = 4

	jobs, nWorkers = GetNumberOfJobsAndWorkers(trials, batchSize, maximumAvailableWorkers)

	if len(jobs) != 1 {
		t.Errorf("Expected 1 job, got %d", len(jobs))
	}
	if nWorkers != 1 {
		t.Errorf("Expected 1 worker, got %d", nWorkers)
	}
	if jobs[0].start != 0 {
		t.Errorf("Expected first job to start at 0, got %d", jobs[0].start)
	}
	if jobs[0].end != 10 {
		t.Errorf("Expected the only job to end at 10, got %d", jobs[0].end)
	}
}

// TestRunMonteCarloSimulationCanonical runs the default settings end to end,
// enough trials to spread across all workers
func TestRunMonteCarloSimulationCanonical(t *testing.T) {
	settings := m.DefaultSimulationSettings()
	sc := &ServiceContext{Context: context.Background()}

	start := time.Now()
	res, err := sc.RunMonteCarloSimulation(&settings)
	t.Logf("RunMonteCarloSimulation (%d trials): %v", settings.Trials, time.Since(start))

	if err != nil {
		t.Fatalf("RunMonteCarloSimulation: %v", err)
	}
	if res.Count() != settings.Trials {
		t.Errorf("expected %d results, got %d", settings.Trials, res.Count())
	}
	if res.Offset != 0 {
		t.Errorf("expected offset 0, got %d", res.Offset)
	}
	if res.Seed != settings.Seed || res.Probability != settings.Probability || res.Horizon != settings.Horizon {
		t.Error("result metadata does not match the settings it ran with")
	}

	// heavy tails drop some prices through zero over 15000 paths of 750 steps
	if res.NegativeExcursions == 0 {
		t.Error("expected some negative excursions across the run, got none")
	}

	spread := false
	for _, q := range res.Quantiles {
		if q != res.Quantiles[0] {
			spread = true
			break
		}
	}
	if !spread {
		t.Error("every trial produced the identical quantile, the streams are not independent")
	}
}

// TestRunMonteCarloSimulationIsScheduleInvariant runs the same settings
// serially and spread across workers with a mismatched batch size; per-trial
// streams must make the outputs identical
func TestRunMonteCarloSimulationIsScheduleInvariant(t *testing.T) {
	sc := &ServiceContext{Context: context.Background()}

	serial := m.DefaultSimulationSettings()
	serial.Trials = 200
	serial.Workers = 1
	serial.BatchSize = 37

	parallel := serial
	parallel.Workers = 8
	parallel.BatchSize = 250

	serialRes, err := sc.RunMonteCarloSimulation(&serial)
	if err != nil {
		t.Fatalf("serial run: %v", err)
	}
	parallelRes, err := sc.RunMonteCarloSimulation(&parallel)
	if err != nil {
		t.Fatalf("parallel run: %v", err)
	}

	if serialRes.Count() != parallelRes.Count() {
		t.Fatalf("trial counts differ, %d vs %d", serialRes.Count(), parallelRes.Count())
	}
	for i := range serialRes.Quantiles {
		if serialRes.Quantiles[i] != parallelRes.Quantiles[i] {
			t.Fatalf("trial %d: serial %v, parallel %v", i, serialRes.Quantiles[i], parallelRes.Quantiles[i])
		}
	}
	if serialRes.NegativeExcursions != parallelRes.NegativeExcursions {
		t.Errorf("negative excursions differ, %d vs %d", serialRes.NegativeExcursions, parallelRes.NegativeExcursions)
	}
}

// TestRunMonteCarloSimulationContinuesAcrossBatches runs 300 trials at once
// and as 150 plus 150 with an offset; the merged sequence must be
// indistinguishable from the single run
func TestRunMonteCarloSimulationContinuesAcrossBatches(t *testing.T) {
	sc := &ServiceContext{Context: context.Background()}

	full := m.DefaultSimulationSettings()
	full.Trials = 300

	head := full
	head.Trials = 150

	tail := full
	tail.Trials = 150
	tail.TrialOffset = 150

	fullRes, err := sc.RunMonteCarloSimulation(&full)
	if err != nil {
		t.Fatalf("full run: %v", err)
	}
	headRes, err := sc.RunMonteCarloSimulation(&head)
	if err != nil {
		t.Fatalf("head run: %v", err)
	}
	tailRes, err := sc.RunMonteCarloSimulation(&tail)
	if err != nil {
		t.Fatalf("tail run: %v", err)
	}

	if err := headRes.Merge(tailRes); err != nil {
		t.Fatalf("merge: %v", err)
	}

	if headRes.Count() != fullRes.Count() {
		t.Fatalf("trial counts differ, %d vs %d", headRes.Count(), fullRes.Count())
	}
	for i := range fullRes.Quantiles {
		if headRes.Quantiles[i] != fullRes.Quantiles[i] {
			t.Fatalf("trial %d: merged %v, single run %v", i, headRes.Quantiles[i], fullRes.Quantiles[i])
		}
	}
}

func TestRunMonteCarloSimulationValidation(t *testing.T) {
	sc := &ServiceContext{Context: context.Background()}

	settings := m.DefaultSimulationSettings()
	settings.Trials = 1
	if _, err := sc.RunMonteCarloSimulation(&settings); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("single trial: expected invalid parameter, got %v", err)
	}

	settings = m.DefaultSimulationSettings()
	settings.Horizon = settings.Periods + 1
	if _, err := sc.RunMonteCarloSimulation(&settings); !errors.Is(err, m.ErrInsufficientData) {
		t.Errorf("horizon past the path: expected insufficient data, got %v", err)
	}

	settings = m.DefaultSimulationSettings()
	settings.Probability = 1
	if _, err := sc.RunMonteCarloSimulation(&settings); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("probability 1: expected invalid parameter, got %v", err)
	}

	settings = m.DefaultSimulationSettings()
	settings.TrialOffset = -1
	if _, err := sc.RunMonteCarloSimulation(&settings); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("negative offset: expected invalid parameter, got %v", err)
	}
}

func TestRunMonteCarloSimulationHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := &ServiceContext{Context: ctx}
	settings := m.DefaultSimulationSettings()
	settings.Trials = 500

	if _, err := sc.RunMonteCarloSimulation(&settings); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation to surface, got %v", err)
	}
}

// TestRunSimulationUntilSufficientStopsAtAgreement forces the acceptance
// thresholds wide open so the very first comparison passes
func TestRunSimulationUntilSufficientStopsAtAgreement(t *testing.T) {
	sc := &ServiceContext{Context: context.Background()}

	settings := m.DefaultSufficiencySettings()
	settings.CheckEvery = 100
	settings.MaxTrials = 2_000
	settings.Discrepancy = 1
	settings.Significance = 0

	res, check, err := sc.RunSimulationUntilSufficient(&settings)
	if err != nil {
		t.Fatalf("RunSimulationUntilSufficient: %v", err)
	}

	if !check.Passed {
		t.Error("expected the wide open thresholds to pass immediately")
	}
	if check.TrialsUsed != 200 {
		t.Errorf("expected the initial 2x batch of 200 trials, got %d", check.TrialsUsed)
	}
	if res.Count() != check.TrialsUsed {
		t.Errorf("result count %d does not match trials used %d", res.Count(), check.TrialsUsed)
	}
	if check.Statistic < 0 || check.Statistic > 1 {
		t.Errorf("statistic out of range, got %v", check.Statistic)
	}
}

// TestRunSimulationUntilSufficientHitsCeiling forces thresholds no sample can
// meet; the run must stop at the ceiling with Passed false and no error
func TestRunSimulationUntilSufficientHitsCeiling(t *testing.T) {
	sc := &ServiceContext{Context: context.Background()}

	settings := m.DefaultSufficiencySettings()
	settings.CheckEvery = 100
	settings.MaxTrials = 350
	settings.Discrepancy = 1e-9

	res, check, err := sc.RunSimulationUntilSufficient(&settings)
	if err != nil {
		t.Fatalf("RunSimulationUntilSufficient: %v", err)
	}

	if check.Passed {
		t.Error("expected an impossible threshold to fail")
	}
	if check.TrialsUsed != settings.MaxTrials {
		t.Errorf("expected the run to stop exactly at the ceiling %d, got %d", settings.MaxTrials, check.TrialsUsed)
	}
	if res.Count() != settings.MaxTrials {
		t.Errorf("expected %d results at the ceiling, got %d", settings.MaxTrials, res.Count())
	}
}

func TestRunSimulationUntilSufficientValidation(t *testing.T) {
	sc := &ServiceContext{Context: context.Background()}

	settings := m.DefaultSufficiencySettings()
	settings.CheckEvery = 0
	if _, _, err := sc.RunSimulationUntilSufficient(&settings); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("check every 0: expected invalid parameter, got %v", err)
	}

	settings = m.DefaultSufficiencySettings()
	settings.Discrepancy = 0
	if _, _, err := sc.RunSimulationUntilSufficient(&settings); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("discrepancy 0: expected invalid parameter, got %v", err)
	}

	settings = m.DefaultSufficiencySettings()
	settings.Significance = 1.5
	if _, _, err := sc.RunSimulationUntilSufficient(&settings); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("significance 1.5: expected invalid parameter, got %v", err)
	}

	settings = m.DefaultSufficiencySettings()
	settings.MaxTrials = 1
	if _, _, err := sc.RunSimulationUntilSufficient(&settings); !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("max trials 1: expected invalid parameter, got %v", err)
	}
}

func TestSplitAlternating(t *testing.T) {
	first, second := splitAlternating([]float64{0, 1, 2, 3, 4})

	if len(first) != 3 || len(second) != 2 {
		t.Fatalf("expected a 3/2 split, got %d/%d", len(first), len(second))
	}
	for i, v := range first {
		if v != float64(2*i) {
			t.Errorf("even half at %d: expected %v, got %v", i, 2*i, v)
		}
	}
	for i, v := range second {
		if v != float64(2*i+1) {
			t.Errorf("odd half at %d: expected %v, got %v", i, 2*i+1, v)
		}
	}
}
