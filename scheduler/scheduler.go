package scheduler

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Rasimilian/Monte-Carlo-Simulation/core"
	ex "github.com/Rasimilian/Monte-Carlo-Simulation/extensions"
	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
)

// Options shapes the background jobs. Cron specs include a seconds field.
type Options struct {
	TopUpCron     string
	RetentionCron string

	// TopUpTrials is the batch size each top up appends to the series.
	TopUpTrials int

	// Freshness skips the top up when the last successful run is younger.
	Freshness time.Duration

	// MaxAge is the retention window for run history.
	MaxAge time.Duration

	RunOnStart bool

	// Defaults seeds a brand new series and carries the runtime knobs
	// (workers, batch size, tolerance) into continued ones.
	Defaults m.SimulationRequestSettings
}

// Scheduler tops the persisted trial series up in the background until the
// convergence report says it has enough, and prunes old run history.
type Scheduler struct {
	sc      core.ServiceContext
	cron    *cron.Cron
	options Options
}

func NewScheduler(sc core.ServiceContext, options Options) *Scheduler {
	return &Scheduler{
		sc:      sc,
		cron:    cron.New(cron.WithSeconds()),
		options: options,
	}
}

func (s *Scheduler) RegisterAll() error {
	if _, err := s.cron.AddFunc(s.options.TopUpCron, s.topUpTask); err != nil {
		return fmt.Errorf("error registering top up job: %w", err)
	}

	if _, err := s.cron.AddFunc(s.options.RetentionCron, s.retentionTask); err != nil {
		return fmt.Errorf("error registering retention job: %w", err)
	}

	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("Scheduler started, top up %q, retention %q", s.options.TopUpCron, s.options.RetentionCron)

	if s.options.RunOnStart {
		log.Println("Running top up once on start")
		s.RunTopUpNow()
	}
}

// Stop waits for a running job to finish. A job mid simulation bails out
// quickly anyway once the service context is cancelled.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

// RunTopUpNow fires the top up task inline instead of waiting for the cron.
func (s *Scheduler) RunTopUpNow() {
	s.topUpTask()
}

func (s *Scheduler) topUpTask() {
	settings, reason, err := s.nextTopUpSettings()
	if err != nil {
		log.Printf("Error preparing scheduled top up: %v", err)
		return
	}
	if settings == nil {
		log.Printf("Skipping scheduled top up: %s", reason)
		return
	}

	response, err := s.sc.RunScheduledSimulation(settings)
	if err != nil {
		log.Printf("Scheduled top up failed: %v", err)
		return
	}

	log.Printf("Scheduled top up completed for run %v, series now at %v trials",
		response.RunId.Int64, settings.TrialOffset+response.Results.Count())

	within := ex.FilterFirst(response.Convergence.Curve, func(p m.ConvergencePoint) bool {
		return p.HalfWidth95 <= response.Convergence.Tolerance
	})
	if within.Trials > 0 {
		log.Printf("Run %v confidence interval was inside tolerance from %v batch trials on",
			response.RunId.Int64, within.Trials)
	}
}

// nextTopUpSettings decides what the top up should run, or why not to run at
// all: a fresh series when there is no history, a continuation when the last
// one has not converged yet, a skip reason otherwise.
func (s *Scheduler) nextTopUpSettings() (*m.SimulationRequestSettings, string, error) {
	last, err := s.sc.PostgresConnection.GetMostRecentSimulationRun(s.sc.Context, m.RunStatusSuccess)
	if err != nil {
		return nil, "", err
	}

	if last == nil {
		settings := s.options.Defaults
		settings.Trials = s.options.TopUpTrials
		settings.TrialOffset = 0
		return &settings, "", nil
	}

	if IsSeriesConverged(last) {
		return nil, fmt.Sprintf("series at run %d has %d trials of the recommended %d",
			last.Id, last.TrialOffset+last.Trials, last.RecommendedTrials.Int64), nil
	}

	if age := time.Since(last.UpdatedAt); age < s.options.Freshness {
		return nil, fmt.Sprintf("run %d is %v old, fresher than %v",
			last.Id, age.Round(time.Second), s.options.Freshness), nil
	}

	settings := ContinueSeries(s.options.Defaults, s.options.TopUpTrials, last)
	return &settings, "", nil
}

// IsSeriesConverged checks the whole series, not just the stored batch: the
// run row records where its batch started, so offset plus count is the series
// length, and the recommendation scales with spread rather than batch size.
func IsSeriesConverged(run *m.SimulationRun) bool {
	return run.RecommendedTrials.Valid && int64(run.TrialOffset+run.Trials) >= run.RecommendedTrials.Int64
}

// ContinueSeries extends a persisted run's trial sequence: same parameters,
// same seed, the next batch picking up exactly where the stored one ended.
// Runtime knobs come from the defaults, not the stored run.
func ContinueSeries(defaults m.SimulationRequestSettings, topUpTrials int, last *m.SimulationRun) m.SimulationRequestSettings {
	settings := defaults
	settings.Alpha = last.Alpha
	settings.Beta = last.Beta
	settings.Gamma = last.Gamma
	settings.Delta = last.Delta
	settings.StartPrice = last.StartPrice
	settings.Periods = last.Periods
	settings.Horizon = last.Horizon
	settings.Probability = last.Probability
	settings.Seed = last.Seed
	settings.TrialOffset = last.TrialOffset + last.Trials
	settings.Trials = topUpTrials

	return settings
}

func (s *Scheduler) retentionTask() {
	cutoff := time.Now().Add(-s.options.MaxAge)

	deleted, err := s.sc.PostgresConnection.DeleteStaleSimulationRuns(s.sc.Context, cutoff)
	if err != nil {
		log.Printf("Error deleting runs older than %s: %v", ex.FmtLong(cutoff), err)
		return
	}

	log.Printf("Retention deleted %v runs older than %s", deleted, ex.FmtLong(cutoff))
}
