// Package transport models the boundary between the engine and the
// outside world as two collaborator actions on a Requests concept.
//
// The request action is invoked exactly once per inbound request; its
// input fields seed the initial pattern-matching space and its output
// supplies the request identifier. The respond action is terminal: some
// sync's then-clause calls it exactly once per request identifier, and
// its argument object is exactly the outward response body. Serializing
// that body onto the wire is the caller's job, not this package's.
package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/loomworks/loom/internal/concept"
	"github.com/loomworks/loom/internal/ir"
)

// Action URIs and the request-identifier field, matching the engine's
// defaults.
const (
	RequestAction = ir.ActionRef("Requests.request")
	RespondAction = ir.ActionRef("Requests.respond")
	RequestField  = "request"
)

// Requests is the transport collaborator concept. It assigns request
// identifiers and collects outward response bodies, enforcing the
// at-most-once respond contract at the concept level as well - a second
// respond for the same id is dropped, never delivered.
type Requests struct {
	mu        sync.Mutex
	responses map[string]ir.Object
	newID     func() string
}

// NewRequests creates the transport concept with UUIDv7 request ids.
func NewRequests() *Requests {
	return &Requests{
		responses: make(map[string]ir.Object),
		newID:     func() string { return uuid.Must(uuid.NewV7()).String() },
	}
}

// NewRequestsWithIDs creates the concept with a fixed id sequence.
// Used by tests and the conformance harness for deterministic traces.
func NewRequestsWithIDs(ids ...string) *Requests {
	idx := 0
	return &Requests{
		responses: make(map[string]ir.Object),
		newID: func() string {
			if idx >= len(ids) {
				panic("transport: request ids exhausted")
			}
			id := ids[idx]
			idx++
			return id
		},
	}
}

// RegisterWith wires both actions into a concept registry.
func (r *Requests) RegisterWith(reg *concept.Registry) {
	reg.MustRegister(RequestAction, r.Request)
	reg.MustRegister(RespondAction, r.Respond)
}

// Request is the inbound collaborator action. The input object passes
// through to the event unchanged; the output carries the assigned
// request identifier, which syncs bind and thread through to respond.
func (r *Requests) Request(_ context.Context, _ ir.Object) (ir.Object, error) {
	r.mu.Lock()
	id := r.newID()
	r.mu.Unlock()

	return ir.Object{RequestField: ir.String(id)}, nil
}

// Respond is the terminal collaborator action. The first call per
// request id stores the outward body; later calls for the same id return
// an {error} output and deliver nothing.
func (r *Requests) Respond(_ context.Context, args ir.Object) (ir.Object, error) {
	id, ok := args[RequestField].(ir.String)
	if !ok {
		return ir.Object{ir.ErrorField: ir.String("respond requires a request field")}, nil
	}

	body := make(ir.Object, len(args))
	for k, v := range args {
		if k != RequestField {
			body[k] = v
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.responses[string(id)]; dup {
		slog.Warn("duplicate respond dropped", "request", string(id))
		return ir.Object{ir.ErrorField: ir.String("already responded")}, nil
	}
	r.responses[string(id)] = body

	return ir.Object{RequestField: id}, nil
}

// Response returns the body stored for a request id, if any.
func (r *Requests) Response(id string) (ir.Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	body, ok := r.responses[id]
	return body, ok
}

// ResponseCount returns how many requests have been answered.
// Used by tests verifying the at-most-once contract.
func (r *Requests) ResponseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.responses)
}
