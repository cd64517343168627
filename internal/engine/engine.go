package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loomworks/loom/internal/concept"
	"github.com/loomworks/loom/internal/frame"
	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/pattern"
	"github.com/loomworks/loom/internal/pipeline"
)

// DefaultMaxSteps is the default step quota per round. It bounds the
// number of events one inbound request may cause, so a runaway causal
// chain terminates instead of hanging.
const DefaultMaxSteps = 1000

// Default transport action wiring. The inbound collaborator action is
// invoked once per external request; the respond action is terminal and
// at-most-once per request id.
const (
	DefaultRequestAction = ir.ActionRef("Requests.request")
	DefaultRespondAction = ir.ActionRef("Requests.respond")
	DefaultRequestField  = "request"
)

// Engine evaluates registered sync rules over causal rounds.
//
// The syncs slice order never changes after construction: rules are
// evaluated in declaration order for deterministic behavior, and sync
// authors must not depend on anything finer (the engine guarantees no
// ordering between unrelated adapter calls).
type Engine struct {
	registry *concept.Registry
	syncs    []Sync
	gen      TokenGenerator
	recorder Recorder

	maxSteps      int
	requestAction ir.ActionRef
	respondAction ir.ActionRef
	requestField  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSteps sets the per-round step quota.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithRecorder attaches a trace recorder. Recording failures are logged
// and never affect evaluation.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithTransportActions overrides the request/respond action URIs and the
// request-identifier field name.
func WithTransportActions(request, respond ir.ActionRef, requestField string) Option {
	return func(e *Engine) {
		e.requestAction = request
		e.respondAction = respond
		e.requestField = requestField
	}
}

// New creates an Engine over a concept registry and a rule set.
// The syncs slice is copied to keep declaration order immune to caller
// mutation. Rule names must be unique and every rule must validate.
func New(registry *concept.Registry, syncs []Sync, gen TokenGenerator, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("nil registry")
	}
	if gen == nil {
		gen = UUIDv7Generator{}
	}

	seen := make(map[string]bool, len(syncs))
	for _, s := range syncs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate sync name: %s", s.Name)
		}
		seen[s.Name] = true
	}

	syncsCopy := make([]Sync, len(syncs))
	copy(syncsCopy, syncs)

	e := &Engine{
		registry:      registry,
		syncs:         syncsCopy,
		gen:           gen,
		recorder:      NopRecorder{},
		maxSteps:      DefaultMaxSteps,
		requestAction: DefaultRequestAction,
		respondAction: DefaultRespondAction,
		requestField:  DefaultRequestField,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Syncs returns the registered rules in declaration order.
func (e *Engine) Syncs() []Sync {
	return e.syncs
}

// MaxSteps returns the configured per-round step quota.
func (e *Engine) MaxSteps() int {
	return e.maxSteps
}

// HandleRequest runs one full round: the input object becomes the
// arguments of the inbound transport action, whose completion seeds
// pattern matching; rules then fire until the round quiesces.
//
// Returns the outward response body produced by the round's single
// respond dispatch. A round that quiesces without responding returns an
// ABANDONED runtime error; a quota abort returns the quota error unless
// a response was already captured.
func (e *Engine) HandleRequest(ctx context.Context, input ir.Object) (ir.Object, error) {
	rd := newRound(e.gen.Generate())

	slog.Info("round started", "round", rd.token, "action", e.requestAction)

	if _, err := e.invoke(ctx, rd, e.requestAction, input); err != nil {
		return nil, &RuntimeError{
			Code:    ErrCodeAdapterFailure,
			Message: fmt.Sprintf("inbound request action: %v", err),
			Round:   rd.token,
			Err:     err,
		}
	}

	drainErr := e.drain(ctx, rd)

	if body := rd.responseBody(); body != nil {
		if drainErr != nil {
			slog.Error("round aborted after response", "round", rd.token, "error", drainErr)
		}
		slog.Info("round responded", "round", rd.token, "steps", rd.steps)
		return body, nil
	}
	if drainErr != nil {
		return nil, drainErr
	}

	slog.Warn("round abandoned without response", "round", rd.token, "steps", rd.steps)
	return nil, &RuntimeError{
		Code:    ErrCodeAbandoned,
		Message: "round quiesced without a respond dispatch",
		Round:   rd.token,
	}
}

// drain evaluates pending events in FIFO order until the round quiesces
// or the step quota trips.
func (e *Engine) drain(ctx context.Context, rd *round) error {
	for {
		ev := rd.next()
		if ev == nil {
			return nil
		}

		if !rd.countStep(e.maxSteps) {
			slog.Error("step quota exceeded",
				"round", rd.token,
				"steps", rd.steps,
				"limit", e.maxSteps,
			)
			return &RuntimeError{
				Code:    ErrCodeQuotaExceeded,
				Message: fmt.Sprintf("round exceeded max steps (%d > %d)", rd.steps, e.maxSteps),
				Round:   rd.token,
			}
		}

		slog.Debug("evaluating event",
			"round", rd.token,
			"event", ev.ID,
			"action", ev.Action,
			"seq", ev.Seq,
		)

		for _, s := range e.syncs {
			if err := e.evaluateSync(ctx, rd, s); err != nil {
				// Aborts only this rule's evaluation; independent rules
				// continue against the same round.
				slog.Error("sync evaluation aborted",
					"round", rd.token,
					"sync", s.Name,
					"error", err,
				)
			}
		}
	}
}

// evaluateSync matches one rule's when-list against the round's events,
// runs its where pipeline, and dispatches its then-clauses.
func (e *Engine) evaluateSync(ctx context.Context, rd *round, s Sync) error {
	frames := pattern.MatchAll(s.When, rd.snapshot())
	if frames.Empty() {
		// Pattern mismatch: expected, not an error.
		return nil
	}

	// Ledger check on the when-bindings: each (sync, binding) combination
	// fires at most once per round, which both breaks causal cycles and
	// makes re-evaluation against identical events idempotent.
	var fresh frame.FrameSet
	for _, f := range frames {
		hash, err := ir.BindingHash(f.Object())
		if err != nil {
			return classifySyncError(rd.token, s.Name, err)
		}
		if !rd.markFired(s.Name, hash) {
			continue
		}
		if err := e.recorder.RecordFiring(ctx, rd.token, s.Name, hash, rd.clock.Current()); err != nil {
			slog.Error("trace firing record failed", "round", rd.token, "sync", s.Name, "error", err)
		}
		fresh = append(fresh, f)
	}
	if fresh.Empty() {
		return nil
	}

	slog.Debug("sync matched",
		"round", rd.token,
		"sync", s.Name,
		"frames", len(fresh),
	)

	survivors, err := pipeline.Run(ctx, s.Where, fresh)
	if err != nil {
		return classifySyncError(rd.token, s.Name, err)
	}
	if survivors.Empty() {
		return nil
	}

	// Frames are independent; then-clauses run in declared order within
	// each frame, with no cross-frame ordering guarantee.
	for _, f := range survivors {
		for _, t := range s.Then {
			if err := e.dispatch(ctx, rd, s, t, f); err != nil {
				return classifySyncError(rd.token, s.Name, err)
			}
		}
	}
	return nil
}

// dispatch substitutes a surviving frame into one then-clause and
// invokes the target action. The completion becomes a new event visible
// to subsequent rule evaluations in the same round.
func (e *Engine) dispatch(ctx context.Context, rd *round, s Sync, t ThenClause, f frame.Frame) error {
	args, err := pipeline.ResolveTemplate(t.Args, f)
	if err != nil {
		return err
	}

	if t.Action == e.respondAction {
		reqID, ok := args[e.requestField].(ir.String)
		if !ok {
			return fmt.Errorf("respond dispatch missing %q string field", e.requestField)
		}
		if !rd.markResponded(string(reqID)) {
			slog.Warn("duplicate respond suppressed",
				"round", rd.token,
				"sync", s.Name,
				"request", string(reqID),
			)
			return nil
		}
		// The argument object, sans the correlation field, is exactly the
		// outward response body.
		body := make(ir.Object, len(args))
		for k, v := range args {
			if k != e.requestField {
				body[k] = v
			}
		}
		rd.setResponse(body)
	}

	if _, registered := e.registry.Lookup(t.Action); !registered {
		return &RuntimeError{
			Code:    ErrCodeMissingAction,
			Message: fmt.Sprintf("no action registered for %s", t.Action),
			Round:   rd.token,
			Sync:    s.Name,
		}
	}

	ev, err := e.invoke(ctx, rd, t.Action, args)
	if err != nil {
		return err
	}

	slog.Info("sync fired",
		"round", rd.token,
		"sync", s.Name,
		"action", t.Action,
		"event", ev.ID,
		"seq", ev.Seq,
	)
	return nil
}

// invoke calls a registered action and records its completion as a new
// round event. A Go error from the action is an infrastructure fault; a
// domain failure arrives inside the output object and flows as data.
func (e *Engine) invoke(ctx context.Context, rd *round, uri ir.ActionRef, args ir.Object) (*ir.ActionEvent, error) {
	out, err := e.registry.Invoke(ctx, uri, args)
	if err != nil {
		return nil, err
	}

	ev, err := ir.NewActionEvent(rd.token, uri, args, out, rd.clock.Next())
	if err != nil {
		return nil, fmt.Errorf("build event for %s: %w", uri, err)
	}
	rd.add(ev)

	if err := e.recorder.RecordEvent(ctx, ev); err != nil {
		slog.Error("trace event record failed", "round", rd.token, "event", ev.ID, "error", err)
	}
	return ev, nil
}
