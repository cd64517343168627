package engine

import (
	"sync"

	"github.com/loomworks/loom/internal/ir"
)

// round holds the state of one causal chain: the events accumulated so
// far, the FIFO of events not yet evaluated, the firing ledger, and the
// step quota. Rounds are created per inbound request and discarded after
// the chain quiesces; nothing here is durably persisted by the engine.
type round struct {
	token string
	clock *Clock

	mu      sync.Mutex
	events  []*ir.ActionEvent // All events visible to matching, in seq order
	pending []*ir.ActionEvent // FIFO of events awaiting evaluation
	fired   map[string]bool   // "sync\x00bindingHash" ledger (cycle guard)
	steps   int               // Events evaluated so far (quota guard)

	responded map[string]bool // Request ids already dispatched to respond
	response  ir.Object       // Outward body captured at first respond dispatch
}

// newRound creates an empty round for a token.
func newRound(token string) *round {
	return &round{
		token:     token,
		clock:     NewClock(),
		fired:     make(map[string]bool),
		responded: make(map[string]bool),
	}
}

// add records a completed event and queues it for evaluation.
func (r *round) add(ev *ir.ActionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.pending = append(r.pending, ev)
}

// next dequeues the oldest unevaluated event, or nil when quiescent.
func (r *round) next() *ir.ActionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.pending) == 0 {
		return nil
	}
	ev := r.pending[0]
	r.pending[0] = nil // Release the reference for GC
	r.pending = r.pending[1:]
	return ev
}

// snapshot returns the events visible to matching right now.
// The returned slice must not be mutated.
func (r *round) snapshot() []*ir.ActionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[:len(r.events):len(r.events)]
}

// markFired records a (sync, binding hash) firing, reporting whether it
// is the first in this round. A repeat means a causal cycle fed the same
// bindings back to the same rule; the caller skips it.
func (r *round) markFired(syncName, bindingHash string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := syncName + "\x00" + bindingHash
	if r.fired[key] {
		return false
	}
	r.fired[key] = true
	return true
}

// countStep advances the step counter and reports whether the round is
// still within maxSteps.
func (r *round) countStep(maxSteps int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps++
	return r.steps <= maxSteps
}

// setResponse captures the outward response body. Only the first call
// has effect; markResponded gates callers, this is a second guard.
func (r *round) setResponse(body ir.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.response == nil {
		r.response = body
	}
}

// responseBody returns the captured outward body, or nil.
func (r *round) responseBody() ir.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

// markResponded records a respond dispatch for a request id, reporting
// whether it is the first. Later dispatches for the same id are dropped:
// the terminal respond action is at-most-once per request id.
func (r *round) markResponded(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.responded[requestID] {
		return false
	}
	r.responded[requestID] = true
	return true
}
