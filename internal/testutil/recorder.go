// Package testutil provides deterministic helpers shared by tests:
// an in-memory trace recorder and canned token sequences.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/loomworks/loom/internal/ir"
)

// RecordedFiring is one sync firing captured by MemoryRecorder.
type RecordedFiring struct {
	Round       string
	Sync        string
	BindingHash string
	Seq         int64
}

// MemoryRecorder implements engine.Recorder, collecting events and
// firings in memory for assertions and golden snapshots.
type MemoryRecorder struct {
	mu      sync.Mutex
	events  []ir.ActionEvent
	firings []RecordedFiring
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// RecordEvent implements engine.Recorder.
func (r *MemoryRecorder) RecordEvent(_ context.Context, ev *ir.ActionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
	return nil
}

// RecordFiring implements engine.Recorder.
func (r *MemoryRecorder) RecordFiring(_ context.Context, round, sync, bindingHash string, seq int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firings = append(r.firings, RecordedFiring{
		Round:       round,
		Sync:        sync,
		BindingHash: bindingHash,
		Seq:         seq,
	})
	return nil
}

// Events returns a copy of the recorded events in record order.
func (r *MemoryRecorder) Events() []ir.ActionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ir.ActionEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Firings returns a copy of the recorded firings in record order.
func (r *MemoryRecorder) Firings() []RecordedFiring {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedFiring, len(r.firings))
	copy(out, r.firings)
	return out
}

// EventsFor filters recorded events by action URI.
func (r *MemoryRecorder) EventsFor(action ir.ActionRef) []ir.ActionEvent {
	var out []ir.ActionEvent
	for _, ev := range r.Events() {
		if ev.Action == action {
			out = append(out, ev)
		}
	}
	return out
}

// Tokens generates a numbered token sequence with the given prefix:
// Tokens("round", 2) is ["round-001", "round-002"]. Handy for the
// engine's fixed generator in deterministic tests.
func Tokens(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%03d", prefix, i+1)
	}
	return out
}
