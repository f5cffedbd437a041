package recorder

import (
	"context"
	"time"

	"github.com/guregu/null/v6"
)

// Run kinds distinguishing what triggered the trials.
const (
	KindSimulation  = "simulation"
	KindSufficiency = "sufficiency"
	KindScheduled   = "scheduled"
)

// RunEvent is one finished or failed batch of trials. RunId is invalid when
// the service ran without run history persistence.
type RunEvent struct {
	RunId        null.Int64
	Kind         string
	Seed         int64
	Horizon      int
	Trials       int
	Status       string
	Estimate     float64
	ErrorMessage string
	At           time.Time
}

// ConvergenceEvent is the trial count verdict attached to a finished run.
type ConvergenceEvent struct {
	RunId             null.Int64
	Trials            int
	Mean              float64
	StdError          float64
	HalfWidth95       float64
	RecommendedTrials int
	Converged         bool
	At                time.Time
}

// Recorder keeps an operational trail of runs for offline analysis.
type Recorder interface {
	RecordRun(ctx context.Context, event RunEvent) error
	RecordConvergence(ctx context.Context, event ConvergenceEvent) error
	Close() error
}
