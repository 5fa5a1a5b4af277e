// Package sink defines where progress snapshots go. Delivery is
// at-least-once and best-effort: the engine emits a full-state snapshot at
// every seat transition plus at the start and end of a run, and a failing
// sink is logged without affecting execution.
package sink

import "github.com/agencykit/agencykit/core"

// Sink receives ordered progress snapshots for one or more agency runs.
type Sink interface {
	OnChunk(snapshot core.ProgressSnapshot) error
}

// Func adapts a plain function to the Sink interface.
type Func func(snapshot core.ProgressSnapshot) error

// OnChunk implements Sink.
func (f Func) OnChunk(snapshot core.ProgressSnapshot) error { return f(snapshot) }

// NoOp discards all snapshots.
type NoOp struct{}

// OnChunk implements Sink.
func (NoOp) OnChunk(core.ProgressSnapshot) error { return nil }

// Multi fans one snapshot out to several sinks. Every sink is attempted;
// the first error encountered is returned.
type Multi []Sink

// OnChunk implements Sink.
func (m Multi) OnChunk(snapshot core.ProgressSnapshot) error {
	var firstErr error
	for _, s := range m {
		if err := s.OnChunk(snapshot); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
