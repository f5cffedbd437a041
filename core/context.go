package core

import (
	"context"

	"github.com/Rasimilian/Monte-Carlo-Simulation/recorder"
	r "github.com/Rasimilian/Monte-Carlo-Simulation/repos"
)

// ServiceContext carries everything a request handler or a scheduled run
// needs. PostgresConnection may be nil, run history is skipped without it.
type ServiceContext struct {
	Context            context.Context
	PostgresConnection *r.Postgres
	Recorder           recorder.Recorder
}

// recorder never returns nil, callers get the noop recorder when none is wired
func (sc *ServiceContext) recorder() recorder.Recorder {
	if sc.Recorder == nil {
		return recorder.NoopRecorder{}
	}
	return sc.Recorder
}
