// Package pipeline implements the where-clause of a sync rule: an
// ordered list of stages that prune, reshape, and join frames.
//
// Three primitives exist. Filter keeps or drops frames by predicate. Map
// rewrites each frame one-to-one. Query is the join primitive: it calls
// out to another concept through an adapter and fans each frame out into
// one continuation per result element.
//
// Stage faults (unbound symbol reads, dropped bindings, adapter errors)
// abort the whole pipeline evaluation - the engine attributes them to the
// offending sync and round and leaves other syncs unaffected.
package pipeline

import (
	"context"
	"fmt"

	"github.com/loomworks/loom/internal/frame"
	"github.com/loomworks/loom/internal/ir"
	"github.com/loomworks/loom/internal/pattern"
)

// Stage transforms a frame set into the next frame set.
// An empty result set is a normal outcome; an error is a defect.
type Stage interface {
	Apply(ctx context.Context, frames frame.FrameSet) (frame.FrameSet, error)
}

// Run applies stages in order. Evaluation short-circuits once the frame
// set is empty: later stages cannot resurrect frames.
func Run(ctx context.Context, stages []Stage, frames frame.FrameSet) (frame.FrameSet, error) {
	for i, stage := range stages {
		if frames.Empty() {
			return nil, nil
		}
		next, err := stage.Apply(ctx, frames)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		frames = next
	}
	return frames, nil
}

// Predicate decides whether a frame survives a filter stage.
// Reading an unbound symbol via Frame.Get returns an error, which the
// predicate must propagate rather than coerce to false.
type Predicate func(f frame.Frame) (bool, error)

// filterStage keeps frames the predicate accepts.
type filterStage struct {
	pred Predicate
}

// Filter builds a stage keeping each frame iff pred holds.
func Filter(pred Predicate) Stage {
	return filterStage{pred: pred}
}

func (s filterStage) Apply(_ context.Context, frames frame.FrameSet) (frame.FrameSet, error) {
	var out frame.FrameSet
	for _, f := range frames {
		keep, err := s.pred(f)
		if err != nil {
			return nil, fmt.Errorf("filter: %w", err)
		}
		if keep {
			out = append(out, f)
		}
	}
	return out, nil
}

// MapFn rewrites one frame into its successor. The returned frame must
// carry the full binding set - existing bindings plus any new or
// overwritten ones.
type MapFn func(f frame.Frame) (frame.Frame, error)

// DroppedBindingError reports a map stage whose output lost a binding
// that the input frame carried. Downstream stages would fault on the
// missing symbol anyway; failing here points at the culprit.
type DroppedBindingError struct {
	Symbol frame.Symbol
}

// Error implements the error interface.
func (e *DroppedBindingError) Error() string {
	return fmt.Sprintf("map stage dropped binding %q from its output frame", e.Symbol)
}

type mapStage struct {
	fn MapFn
}

// Map builds a stage producing exactly one output frame per input frame.
func Map(fn MapFn) Stage {
	return mapStage{fn: fn}
}

func (s mapStage) Apply(_ context.Context, frames frame.FrameSet) (frame.FrameSet, error) {
	out := make(frame.FrameSet, 0, len(frames))
	for _, f := range frames {
		mapped, err := s.fn(f)
		if err != nil {
			return nil, fmt.Errorf("map: %w", err)
		}
		if dropped, ok := mapped.CarriesAll(f); !ok {
			return nil, &DroppedBindingError{Symbol: dropped}
		}
		out = append(out, mapped)
	}
	return out, nil
}

// Adapter bridges a concept's read-only operation to the query stage's
// expected shape: a concrete argument object in, an array of result
// objects out. Adapters may perform I/O and may block; they must signal
// domain failure inside result objects (the {error} convention) and
// reserve the Go error return for infrastructure faults.
type Adapter func(ctx context.Context, args ir.Object) ([]ir.Object, error)

// AdapterError wraps a fault raised by the adapter itself (as opposed to
// a data-level {error} result). It aborts the whole sync evaluation for
// the round.
type AdapterError struct {
	Err error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter failure: %v", e.Err)
}

// Unwrap supports errors.Is/As.
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// MissingBranchError reports an adapter result element that omitted a
// declared output field. Elements must set every declared field, using
// ir.None for branches that do not apply.
type MissingBranchError struct {
	Field  string
	Symbol frame.Symbol
}

// Error implements the error interface.
func (e *MissingBranchError) Error() string {
	return fmt.Sprintf("adapter result omitted field %q (symbol %q): set ir.None for inapplicable branches", e.Field, e.Symbol)
}

type queryStage struct {
	adapter       Adapter
	inputTemplate map[string]pattern.Term
	outputPattern map[string]frame.Symbol
}

// Query builds the join stage. For each input frame, bound values are
// substituted into inputTemplate, the adapter is invoked, and the frame
// is extended once per result element with outputPattern's symbols bound
// from that element. An empty result removes the frame.
func Query(adapter Adapter, inputTemplate map[string]pattern.Term, outputPattern map[string]frame.Symbol) Stage {
	return queryStage{
		adapter:       adapter,
		inputTemplate: inputTemplate,
		outputPattern: outputPattern,
	}
}

func (s queryStage) Apply(ctx context.Context, frames frame.FrameSet) (frame.FrameSet, error) {
	var out frame.FrameSet
	for _, f := range frames {
		args, err := ResolveTemplate(s.inputTemplate, f)
		if err != nil {
			return nil, fmt.Errorf("query input: %w", err)
		}

		results, err := s.adapter(ctx, args)
		if err != nil {
			return nil, &AdapterError{Err: err}
		}

		for _, elem := range results {
			extended := f
			for field, sym := range s.outputPattern {
				v, present := elem[field]
				if !present {
					return nil, &MissingBranchError{Field: field, Symbol: sym}
				}
				extended = extended.With(sym, v)
			}
			out = append(out, extended)
		}
	}
	return out, nil
}

// ResolveTemplate substitutes a frame's bound values into a shape
// template, building a concrete argument object. An unbound symbol
// reference faults.
func ResolveTemplate(template map[string]pattern.Term, f frame.Frame) (ir.Object, error) {
	args := make(ir.Object, len(template))
	for field, term := range template {
		if sym, isSym := term.IsSymbol(); isSym {
			v, err := f.Get(sym)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", field, err)
			}
			args[field] = v
			continue
		}
		args[field] = term.Literal()
	}
	return args, nil
}
