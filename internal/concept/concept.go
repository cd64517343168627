// Package concept defines the boundary between the sync engine and the
// independently implemented domain modules it orchestrates.
//
// A concept exposes actions (state-changing) and queries (read-only) as
// asynchronous functions over name/value objects. Success and failure
// share one return channel: domain failure is an output object carrying
// the reserved "error" field, never a Go error thrown across the
// boundary. The Go error return is reserved for infrastructure faults
// (the process-level equivalent of an adapter crash).
package concept

import (
	"context"
	"fmt"
	"sort"

	"github.com/loomworks/loom/internal/ir"
)

// Action is one concept operation. Implementations own their durable
// state and their own transactional atomicity; the engine is unaware of
// either.
type Action func(ctx context.Context, args ir.Object) (ir.Object, error)

// Registry maps "Concept.action" URIs to actions.
// Registration happens at startup; lookups are read-only afterwards, so
// no locking is needed.
type Registry struct {
	actions map[ir.ActionRef]Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[ir.ActionRef]Action)}
}

// Register binds an action URI to its implementation.
// Re-registering a URI is a configuration defect.
func (r *Registry) Register(uri ir.ActionRef, act Action) error {
	if act == nil {
		return fmt.Errorf("register %s: nil action", uri)
	}
	if _, exists := r.actions[uri]; exists {
		return fmt.Errorf("register %s: already registered", uri)
	}
	r.actions[uri] = act
	return nil
}

// MustRegister is like Register but panics on error.
// Use for static wiring at startup.
func (r *Registry) MustRegister(uri ir.ActionRef, act Action) {
	if err := r.Register(uri, act); err != nil {
		panic(err)
	}
}

// Lookup returns the action registered for uri.
func (r *Registry) Lookup(uri ir.ActionRef) (Action, bool) {
	act, ok := r.actions[uri]
	return act, ok
}

// URIs returns all registered action URIs, sorted for deterministic
// iteration.
func (r *Registry) URIs() []ir.ActionRef {
	uris := make([]ir.ActionRef, 0, len(r.actions))
	for uri := range r.actions {
		uris = append(uris, uri)
	}
	sort.Slice(uris, func(i, j int) bool { return uris[i] < uris[j] })
	return uris
}

// Invoke calls the action registered for uri. A missing registration is
// an infrastructure fault; a domain failure arrives as an {error} output
// object, which callers must model explicitly.
func (r *Registry) Invoke(ctx context.Context, uri ir.ActionRef, args ir.Object) (ir.Object, error) {
	act, ok := r.Lookup(uri)
	if !ok {
		return nil, fmt.Errorf("no action registered for %s", uri)
	}

	out, err := act(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", uri, err)
	}
	if out == nil {
		out = ir.Object{}
	}
	return out, nil
}
