package core

import (
	"context"
	"errors"
	"testing"

	m "github.com/Rasimilian/Monte-Carlo-Simulation/models"
	"github.com/Rasimilian/Monte-Carlo-Simulation/recorder"
)

// captureRecorder keeps every event in memory for assertions
type captureRecorder struct {
	runs         []recorder.RunEvent
	convergences []recorder.ConvergenceEvent
}

func (c *captureRecorder) RecordRun(_ context.Context, event recorder.RunEvent) error {
	c.runs = append(c.runs, event)
	return nil
}

func (c *captureRecorder) RecordConvergence(_ context.Context, event recorder.ConvergenceEvent) error {
	c.convergences = append(c.convergences, event)
	return nil
}

func (c *captureRecorder) Close() error { return nil }

// TestRunSimulationWithoutPersistence covers the history-free mode: the full
// pipeline runs, nothing is persisted, and the response flags the run as such
func TestRunSimulationWithoutPersistence(t *testing.T) {
	sc := &ServiceContext{Context: context.Background()}

	settings := m.DefaultSimulationSettings()
	settings.Trials = 300

	response, err := sc.RunSimulation(&settings)
	if err != nil {
		t.Fatalf("RunSimulation: %v", err)
	}

	if response.RunId.Valid {
		t.Errorf("expected no run id without a database, got %v", response.RunId.Int64)
	}
	if response.Results.Count() != settings.Trials {
		t.Errorf("expected %d results, got %d", settings.Trials, response.Results.Count())
	}
	if response.Convergence == nil {
		t.Fatal("expected a convergence report")
	}
	if response.Convergence.Trials != settings.Trials {
		t.Errorf("convergence covers %d trials, expected %d", response.Convergence.Trials, settings.Trials)
	}
	if len(response.Histogram.Edges) != len(response.Histogram.Counts)+1 {
		t.Errorf("histogram shape is off, %d edges for %d counts",
			len(response.Histogram.Edges), len(response.Histogram.Counts))
	}
	if response.Settings.Trials != settings.Trials {
		t.Errorf("response settings should echo the request, got %d trials", response.Settings.Trials)
	}
}

// TestRunSimulationSurfacesValidationFailure guards the failure path: the
// original cause comes back to the caller, not a bookkeeping error or nil
func TestRunSimulationSurfacesValidationFailure(t *testing.T) {
	sc := &ServiceContext{Context: context.Background()}

	settings := m.DefaultSimulationSettings()
	settings.Trials = 1

	response, err := sc.RunSimulation(&settings)
	if !errors.Is(err, m.ErrInvalidParameter) {
		t.Errorf("expected the validation cause, got %v", err)
	}
	if response != nil {
		t.Error("expected no response on a failed run")
	}
}

// TestRunSimulationRecordsEvents wires the capture recorder in and checks
// what lands in the archive for a success and for a failure
func TestRunSimulationRecordsEvents(t *testing.T) {
	capture := &captureRecorder{}
	sc := &ServiceContext{Context: context.Background(), Recorder: capture}

	settings := m.DefaultSimulationSettings()
	settings.Trials = 300

	if _, err := sc.RunSimulation(&settings); err != nil {
		t.Fatalf("RunSimulation: %v", err)
	}

	if len(capture.runs) != 1 {
		t.Fatalf("expected 1 run event, got %d", len(capture.runs))
	}
	if capture.runs[0].Kind != recorder.KindSimulation {
		t.Errorf("expected kind %q, got %q", recorder.KindSimulation, capture.runs[0].Kind)
	}
	if capture.runs[0].Status != m.RunStatusSuccess {
		t.Errorf("expected status %q, got %q", m.RunStatusSuccess, capture.runs[0].Status)
	}
	if capture.runs[0].Trials != settings.Trials {
		t.Errorf("expected %d trials on the event, got %d", settings.Trials, capture.runs[0].Trials)
	}
	if len(capture.convergences) != 1 {
		t.Fatalf("expected 1 convergence event, got %d", len(capture.convergences))
	}
	if capture.convergences[0].Trials != settings.Trials {
		t.Errorf("expected the convergence event to cover %d trials, got %d",
			settings.Trials, capture.convergences[0].Trials)
	}

	// a validation failure records a failure event and no convergence
	bad := m.DefaultSimulationSettings()
	bad.Alpha = 5
	if _, err := sc.RunSimulation(&bad); err == nil {
		t.Fatal("expected the bad settings to fail")
	}

	if len(capture.runs) != 2 {
		t.Fatalf("expected 2 run events, got %d", len(capture.runs))
	}
	if capture.runs[1].Status != m.RunStatusFailure {
		t.Errorf("expected status %q, got %q", m.RunStatusFailure, capture.runs[1].Status)
	}
	if capture.runs[1].ErrorMessage == "" {
		t.Error("expected the failure event to carry the cause")
	}
	if len(capture.convergences) != 1 {
		t.Errorf("a failed run must not record convergence, got %d events", len(capture.convergences))
	}
}

// TestRunScheduledSimulationTagsEvents makes sure scheduler-initiated runs
// are distinguishable in the archive
func TestRunScheduledSimulationTagsEvents(t *testing.T) {
	capture := &captureRecorder{}
	sc := &ServiceContext{Context: context.Background(), Recorder: capture}

	settings := m.DefaultSimulationSettings()
	settings.Trials = 200

	if _, err := sc.RunScheduledSimulation(&settings); err != nil {
		t.Fatalf("RunScheduledSimulation: %v", err)
	}

	if len(capture.runs) != 1 {
		t.Fatalf("expected 1 run event, got %d", len(capture.runs))
	}
	if capture.runs[0].Kind != recorder.KindScheduled {
		t.Errorf("expected kind %q, got %q", recorder.KindScheduled, capture.runs[0].Kind)
	}
}

func TestRunSufficiencyCheckWithoutPersistence(t *testing.T) {
	sc := &ServiceContext{Context: context.Background()}

	settings := m.DefaultSufficiencySettings()
	settings.CheckEvery = 100
	settings.MaxTrials = 2_000
	settings.Discrepancy = 1
	settings.Significance = 0

	response, err := sc.RunSufficiencyCheck(&settings)
	if err != nil {
		t.Fatalf("RunSufficiencyCheck: %v", err)
	}

	if !response.Check.Passed {
		t.Error("expected the wide open thresholds to pass")
	}
	if response.Check.TrialsUsed != 200 {
		t.Errorf("expected 200 trials used, got %d", response.Check.TrialsUsed)
	}
	if response.RunId.Valid {
		t.Errorf("expected no run id without a database, got %v", response.RunId.Int64)
	}
	if response.Convergence == nil || response.Convergence.Trials != response.Check.TrialsUsed {
		t.Error("expected the convergence report to cover everything that ran")
	}
}

func TestGetSimulationRunWithoutPersistence(t *testing.T) {
	sc := &ServiceContext{Context: context.Background()}

	if _, err := sc.GetSimulationRun(5); !errors.Is(err, ErrPersistenceNotConfigured) {
		t.Errorf("expected persistence not configured, got %v", err)
	}
}
