package models

import (
	"errors"
	"time"

	"github.com/guregu/null/v6"
)

const (
	RunStatusStarted = "started"
	RunStatusSuccess = "success"
	RunStatusFailure = "failure"
)

// ErrRunNotFound reports a run id with no history row behind it.
var ErrRunNotFound = errors.New("simulation run not found")

// SimulationRun is one persisted run of the pipeline: the full parameter
// snapshot, the status transitions, and the convergence verdict.
type SimulationRun struct {
	Id          int32   `db:"id"`
	Seed        int64   `db:"seed"`
	Alpha       float64 `db:"alpha"`
	Beta        float64 `db:"beta"`
	Gamma       float64 `db:"gamma"`
	Delta       float64 `db:"delta"`
	StartPrice  float64 `db:"start_price"`
	Periods     int     `db:"periods"`
	Horizon     int     `db:"horizon"`
	Probability float64 `db:"probability"`
	TrialOffset int     `db:"trial_offset"`
	Trials      int     `db:"trials"`

	Status             string      `db:"status"`
	RecommendedTrials  null.Int64  `db:"recommended_trials"`
	NegativeExcursions null.Int64  `db:"negative_excursions"`
	ErrorMessage       null.String `db:"error_message"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func NewSimulationRun(settings SimulationRequestSettings) SimulationRun {
	return SimulationRun{
		Seed:        settings.Seed,
		Alpha:       settings.Alpha,
		Beta:        settings.Beta,
		Gamma:       settings.Gamma,
		Delta:       settings.Delta,
		StartPrice:  settings.StartPrice,
		Periods:     settings.Periods,
		Horizon:     settings.Horizon,
		Probability: settings.Probability,
		TrialOffset: settings.TrialOffset,
		Trials:      settings.Trials,
		Status:      RunStatusStarted,
	}
}

// TrialResultRow is the bulk-inserted per-trial row.
type TrialResultRow struct {
	RunId      int32   `db:"run_id"`
	TrialIndex int     `db:"trial_index"`
	Quantile   float64 `db:"quantile"`
}

// SimulationRunDetails is the persisted run read back out: the history row
// plus everything recomputable from its stored trial quantiles. Results is
// nil when the run never got far enough to persist any.
type SimulationRunDetails struct {
	Run         SimulationRun      `json:"run"`
	Results     *TrialResults      `json:"results"`
	Convergence *ConvergenceReport `json:"convergence"`
	Histogram   Histogram          `json:"histogram"`
}
