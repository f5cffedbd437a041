package core

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/guregu/null/v6"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
	"github.com/Rasimilian/Monte-Carlo-Simulation/recorder"
)

// ErrPersistenceNotConfigured is returned by read operations when the service
// is running without a database connection.
var ErrPersistenceNotConfigured = errors.New("run persistence is not configured")

// TODO: this is where we can add a queue to only run one simulation at a time
// can probably send and manage the queue after the settings are validated
func (sc *ServiceContext) RunSimulation(settings *m.SimulationRequestSettings) (*m.SimulationResponse, error) {
	return sc.runSimulationAs(recorder.KindSimulation, settings)
}

// RunScheduledSimulation tags the archive events as scheduler initiated,
// otherwise it is RunSimulation.
func (sc *ServiceContext) RunScheduledSimulation(settings *m.SimulationRequestSettings) (*m.SimulationResponse, error) {
	return sc.runSimulationAs(recorder.KindScheduled, settings)
}

func (sc *ServiceContext) runSimulationAs(kind string, settings *m.SimulationRequestSettings) (*m.SimulationResponse, error) {
	start := time.Now()
	log.Printf("Recieved request to run simulation, seed %v, %v trials", settings.Seed, settings.Trials)

	runId, err := sc.insertRunHistory(m.NewSimulationRun(*settings))
	if err != nil {
		log.Printf("Error inserting simulation run to history: %v", err)
		return nil, err
	}

	log.Printf("Validating settings for run %s (time: %v)", runLabel(runId), time.Since(start))
	if err := validateSimulationSettings(settings); err != nil {
		log.Printf("Error validating settings for run %s: %v", runLabel(runId), err)
		return nil, sc.markRunAsFailure(runId, kind, settings, err)
	}

	log.Printf("Running monte carlo trials for run %s (time: %v)", runLabel(runId), time.Since(start))
	results, err := sc.RunMonteCarloSimulation(settings)
	if err != nil {
		log.Printf("Error running monte carlo trials for run %s: %v", runLabel(runId), err)
		return nil, sc.markRunAsFailure(runId, kind, settings, err)
	}

	log.Printf("Analyzing convergence for run %s (time: %v)", runLabel(runId), time.Since(start))
	convergence, err := AnalyzeConvergence(results, settings.Tolerance)
	if err != nil {
		log.Printf("Error analyzing convergence for run %s: %v", runLabel(runId), err)
		return nil, sc.markRunAsFailure(runId, kind, settings, err)
	}

	histogram, err := HistogramData(results.Quantiles)
	if err != nil {
		log.Printf("Error building histogram for run %s: %v", runLabel(runId), err)
		return nil, sc.markRunAsFailure(runId, kind, settings, err)
	}

	log.Printf("Persisting %v trial results for run %s (time: %v)", results.Count(), runLabel(runId), time.Since(start))
	if err := sc.persistRunResults(runId, results, convergence); err != nil {
		log.Printf("Error persisting results for run %s: %v", runLabel(runId), err)
		return nil, err // not marking as failure here, if we cant mark it successful we most likely cant mark it failed either
	}

	sc.recordRunEvent(runId, kind, settings, results.Count(), convergence.Mean, m.RunStatusSuccess, "")
	sc.recordConvergenceEvent(runId, convergence)

	log.Printf("Simulation run %s completed (time: %v)", runLabel(runId), time.Since(start))
	return &m.SimulationResponse{
		RunId:       runId,
		Settings:    *settings,
		Results:     results,
		Convergence: convergence,
		Histogram:   histogram,
	}, nil
}

// RunSufficiencyCheck is RunSimulation with the trial count chosen by the
// adaptive runner instead of the request.
func (sc *ServiceContext) RunSufficiencyCheck(settings *m.SufficiencyRequestSettings) (*m.SufficiencyResponse, error) {
	start := time.Now()
	log.Printf("Recieved request to check trial sufficiency, seed %v, ceiling %v", settings.Seed, settings.MaxTrials)

	// the history row carries the ceiling until the run finishes and the used
	// trial count replaces it
	run := m.NewSimulationRun(settings.SimulationRequestSettings)
	run.Trials = settings.MaxTrials
	runId, err := sc.insertRunHistory(run)
	if err != nil {
		log.Printf("Error inserting sufficiency run to history: %v", err)
		return nil, err
	}

	log.Printf("Validating settings for run %s (time: %v)", runLabel(runId), time.Since(start))
	if err := validateSufficiencySettings(settings); err != nil {
		log.Printf("Error validating settings for run %s: %v", runLabel(runId), err)
		return nil, sc.markRunAsFailure(runId, recorder.KindSufficiency, &settings.SimulationRequestSettings, err)
	}

	log.Printf("Running adaptive monte carlo trials for run %s (time: %v)", runLabel(runId), time.Since(start))
	results, check, err := sc.RunSimulationUntilSufficient(settings)
	if err != nil {
		log.Printf("Error running adaptive trials for run %s: %v", runLabel(runId), err)
		return nil, sc.markRunAsFailure(runId, recorder.KindSufficiency, &settings.SimulationRequestSettings, err)
	}

	log.Printf("Analyzing convergence for run %s (time: %v)", runLabel(runId), time.Since(start))
	convergence, err := AnalyzeConvergence(results, settings.Tolerance)
	if err != nil {
		log.Printf("Error analyzing convergence for run %s: %v", runLabel(runId), err)
		return nil, sc.markRunAsFailure(runId, recorder.KindSufficiency, &settings.SimulationRequestSettings, err)
	}

	log.Printf("Persisting %v trial results for run %s (time: %v)", results.Count(), runLabel(runId), time.Since(start))
	if err := sc.persistRunResults(runId, results, convergence); err != nil {
		log.Printf("Error persisting results for run %s: %v", runLabel(runId), err)
		return nil, err
	}

	sc.recordRunEvent(runId, recorder.KindSufficiency, &settings.SimulationRequestSettings, check.TrialsUsed, convergence.Mean, m.RunStatusSuccess, "")
	sc.recordConvergenceEvent(runId, convergence)

	log.Printf("Sufficiency run %s completed, passed %v at %v trials (time: %v)", runLabel(runId), check.Passed, check.TrialsUsed, time.Since(start))
	return &m.SufficiencyResponse{
		RunId:       runId,
		Settings:    *settings,
		Check:       *check,
		Results:     results,
		Convergence: convergence,
	}, nil
}

// GetSimulationRun reads a persisted run back out, recomputing the
// convergence report and histogram from the stored trial quantiles.
func (sc *ServiceContext) GetSimulationRun(runId int32) (*m.SimulationRunDetails, error) {
	if sc.PostgresConnection == nil {
		return nil, ErrPersistenceNotConfigured
	}

	run, err := sc.PostgresConnection.GetSimulationRunByID(sc.Context, runId)
	if err != nil {
		log.Printf("Error getting simulation run %v: %v", runId, err)
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run id %d: %w", runId, m.ErrRunNotFound)
	}

	details := &m.SimulationRunDetails{Run: *run}

	rows, err := sc.PostgresConnection.GetTrialResultsByRunID(sc.Context, runId)
	if err != nil {
		log.Printf("Error getting trial results for run %v: %v", runId, err)
		return nil, err
	}
	if len(rows) == 0 {
		// runs that failed before persisting have a history row and nothing else
		return details, nil
	}

	results := &m.TrialResults{
		Quantiles:          make([]float64, 0, len(rows)),
		Probability:        run.Probability,
		Horizon:            run.Horizon,
		Seed:               run.Seed,
		Offset:             rows[0].TrialIndex,
		NegativeExcursions: int(run.NegativeExcursions.Int64),
	}
	for _, row := range rows {
		results.Quantiles = append(results.Quantiles, row.Quantile)
	}
	details.Results = results

	if results.Count() >= 2 {
		convergence, err := AnalyzeConvergence(results, 0)
		if err != nil {
			return nil, err
		}

		histogram, err := HistogramData(results.Quantiles)
		if err != nil {
			return nil, err
		}

		details.Convergence = convergence
		details.Histogram = histogram
	}

	return details, nil
}

func validateSimulationSettings(settings *m.SimulationRequestSettings) error {
	if err := validateStableParameters(settings.Alpha, settings.Beta, settings.Gamma); err != nil {
		return err
	}
	if math.IsNaN(settings.Delta) || math.IsInf(settings.Delta, 0) {
		return fmt.Errorf("delta must be finite, got %v: %w", settings.Delta, m.ErrInvalidParameter)
	}
	if !(settings.StartPrice > 0) || math.IsInf(settings.StartPrice, 0) {
		return fmt.Errorf("start price must be positive and finite, got %v: %w", settings.StartPrice, m.ErrInvalidParameter)
	}
	if settings.Periods < 1 {
		return fmt.Errorf("periods must be at least 1, got %d: %w", settings.Periods, m.ErrInvalidParameter)
	}
	if settings.Horizon < 1 {
		return fmt.Errorf("horizon must be at least 1, got %d: %w", settings.Horizon, m.ErrInvalidParameter)
	}
	if settings.Horizon > settings.Periods {
		return fmt.Errorf("horizon %d needs more than the %d simulated periods: %w", settings.Horizon, settings.Periods, m.ErrInsufficientData)
	}
	if !(settings.Probability > 0 && settings.Probability < 1) {
		return fmt.Errorf("probability must be in (0, 1), got %v: %w", settings.Probability, m.ErrInvalidParameter)
	}
	if settings.Trials < 2 {
		// the convergence report needs a spread, a single trial has none
		return fmt.Errorf("trials must be at least 2, got %d: %w", settings.Trials, m.ErrInvalidParameter)
	}
	if settings.TrialOffset < 0 {
		return fmt.Errorf("trial offset must not be negative, got %d: %w", settings.TrialOffset, m.ErrInvalidParameter)
	}
	if settings.Tolerance < 0 || math.IsNaN(settings.Tolerance) {
		return fmt.Errorf("tolerance must not be negative, got %v: %w", settings.Tolerance, m.ErrInvalidParameter)
	}
	if settings.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d: %w", settings.Workers, m.ErrInvalidParameter)
	}
	if settings.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d: %w", settings.BatchSize, m.ErrInvalidParameter)
	}

	return nil
}

func validateSufficiencySettings(settings *m.SufficiencyRequestSettings) error {
	// the embedded trial count is ignored, the adaptive loop sets its own
	// batch sizes, everything else applies as usual
	if err := validateSimulationSettings(&settings.SimulationRequestSettings); err != nil {
		return err
	}
	if settings.CheckEvery < 1 {
		return fmt.Errorf("check every must be at least 1, got %d: %w", settings.CheckEvery, m.ErrInvalidParameter)
	}
	if !(settings.Discrepancy > 0 && settings.Discrepancy <= 1) {
		return fmt.Errorf("discrepancy must be in (0, 1], got %v: %w", settings.Discrepancy, m.ErrInvalidParameter)
	}
	if !(settings.Significance >= 0 && settings.Significance <= 1) {
		return fmt.Errorf("significance must be in [0, 1], got %v: %w", settings.Significance, m.ErrInvalidParameter)
	}
	if settings.MaxTrials < 2 {
		return fmt.Errorf("max trials must be at least 2, got %d: %w", settings.MaxTrials, m.ErrInvalidParameter)
	}

	return nil
}

func (sc *ServiceContext) insertRunHistory(run m.SimulationRun) (null.Int64, error) {
	if sc.PostgresConnection == nil {
		return null.Int64{}, nil
	}

	id, err := sc.PostgresConnection.InsertSimulationRun(sc.Context, run)
	if err != nil {
		return null.Int64{}, err
	}

	return null.NewInt(int64(id), true), nil
}

// markRunAsFailure records the failure everywhere it can and hands the
// original cause back for the response.
func (sc *ServiceContext) markRunAsFailure(runId null.Int64, kind string, settings *m.SimulationRequestSettings, cause error) error {
	sc.recordRunEvent(runId, kind, settings, 0, 0, m.RunStatusFailure, cause.Error())

	if runId.Valid {
		if err := sc.PostgresConnection.UpdateSimulationRunAsFailure(sc.Context, int32(runId.Int64), cause.Error()); err != nil {
			log.Printf("Error marking run %v as failure: %v", runId.Int64, err)
		}
	}

	return cause
}

func (sc *ServiceContext) persistRunResults(runId null.Int64, results *m.TrialResults, convergence *m.ConvergenceReport) error {
	if !runId.Valid {
		return nil
	}

	recommended := null.NewInt(int64(convergence.RecommendedTrials), true)
	return sc.PostgresConnection.SaveSimulationRunResults(sc.Context, int32(runId.Int64), results, recommended)
}

func (sc *ServiceContext) recordRunEvent(runId null.Int64, kind string, settings *m.SimulationRequestSettings, trials int, estimate float64, status string, errorMessage string) {
	event := recorder.RunEvent{
		RunId:        runId,
		Kind:         kind,
		Seed:         settings.Seed,
		Horizon:      settings.Horizon,
		Trials:       trials,
		Status:       status,
		Estimate:     estimate,
		ErrorMessage: errorMessage,
		At:           time.Now(),
	}

	if err := sc.recorder().RecordRun(sc.Context, event); err != nil {
		log.Printf("Error recording run event for run %s: %v", runLabel(runId), err)
	}
}

func (sc *ServiceContext) recordConvergenceEvent(runId null.Int64, convergence *m.ConvergenceReport) {
	event := recorder.ConvergenceEvent{
		RunId:             runId,
		Trials:            convergence.Trials,
		Mean:              convergence.Mean,
		StdError:          convergence.StdError,
		HalfWidth95:       convergence.HalfWidth95,
		RecommendedTrials: convergence.RecommendedTrials,
		Converged:         convergence.Converged,
		At:                time.Now(),
	}

	if err := sc.recorder().RecordConvergence(sc.Context, event); err != nil {
		log.Printf("Error recording convergence event for run %s: %v", runLabel(runId), err)
	}
}

func runLabel(runId null.Int64) string {
	if !runId.Valid {
		return "(unpersisted)"
	}
	return strconv.FormatInt(runId.Int64, 10)
}
