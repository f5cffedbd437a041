package recorder

import "context"

// NoopRecorder is used when no archive database is configured.
type NoopRecorder struct{}

func NewNoopRecorder() NoopRecorder { return NoopRecorder{} }

func (NoopRecorder) RecordRun(_ context.Context, _ RunEvent) error                 { return nil }
func (NoopRecorder) RecordConvergence(_ context.Context, _ ConvergenceEvent) error { return nil }
func (NoopRecorder) Close() error                                                  { return nil }
