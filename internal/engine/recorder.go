package engine

import (
	"context"

	"github.com/loomworks/loom/internal/ir"
)

// Recorder observes round evaluation for diagnosis. The engine never
// reads anything back from a recorder: delivery and correctness are
// purely in-memory, and a recorder failure only logs.
//
// Implemented by tracestore.Store (SQLite) and by NopRecorder.
type Recorder interface {
	RecordEvent(ctx context.Context, ev *ir.ActionEvent) error
	RecordFiring(ctx context.Context, round, sync, bindingHash string, seq int64) error
}

// NopRecorder discards everything. The default when no trace store is
// configured.
type NopRecorder struct{}

// RecordEvent implements Recorder.
func (NopRecorder) RecordEvent(context.Context, *ir.ActionEvent) error { return nil }

// RecordFiring implements Recorder.
func (NopRecorder) RecordFiring(context.Context, string, string, string, int64) error { return nil }
