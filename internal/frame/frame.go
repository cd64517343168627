// Package frame provides the immutable variable-binding environments
// produced while evaluating a sync rule.
//
// A Frame maps rule-scoped Symbols to values. Frames are never mutated in
// place: Extend and With return copies, so concurrent processing of
// distinct frames cannot corrupt each other's bindings. Reading an
// unbound symbol is a loud fault - the dominant historical failure mode
// in this kind of engine is an adapter silently omitting a declared
// output field on one branch, and a defaulting read would hide it.
package frame

import (
	"fmt"
	"strings"

	"github.com/loomworks/loom/internal/ir"
)

// Symbol names a logical variable within one sync rule. Symbols are
// rule-scoped: the same name in two unrelated syncs never collides
// because frames never cross sync boundaries.
type Symbol string

// UnboundSymbolError reports a read of a symbol absent from a frame.
// This is a rule or adapter defect, never an expected condition.
type UnboundSymbolError struct {
	Symbol Symbol
	Bound  []Symbol // Symbols that were bound, for diagnosis
}

// Error implements the error interface.
func (e *UnboundSymbolError) Error() string {
	names := make([]string, len(e.Bound))
	for i, s := range e.Bound {
		names[i] = string(s)
	}
	return fmt.Sprintf("unbound symbol %q (bound: %s)", e.Symbol, strings.Join(names, ", "))
}

// Frame is an immutable mapping from symbols to values.
// The zero value of the map is never exposed; use New.
type Frame struct {
	bindings map[Symbol]ir.Value
}

// New creates an empty frame.
func New() Frame {
	return Frame{bindings: map[Symbol]ir.Value{}}
}

// Get returns the value bound to sym, or an *UnboundSymbolError.
// There is no defaulting variant by design.
func (f Frame) Get(sym Symbol) (ir.Value, error) {
	v, ok := f.bindings[sym]
	if !ok {
		return nil, &UnboundSymbolError{Symbol: sym, Bound: f.Symbols()}
	}
	return v, nil
}

// Has reports whether sym is bound. A symbol bound to None counts as
// bound: None is a value, not an absence.
func (f Frame) Has(sym Symbol) bool {
	_, ok := f.bindings[sym]
	return ok
}

// With returns a new frame with sym bound to v, leaving f untouched.
// Rebinding an existing symbol overwrites it in the copy.
func (f Frame) With(sym Symbol, v ir.Value) Frame {
	next := make(map[Symbol]ir.Value, len(f.bindings)+1)
	for k, val := range f.bindings {
		next[k] = val
	}
	next[sym] = v
	return Frame{bindings: next}
}

// Extend returns a new frame carrying all of f's bindings plus those in
// more. Bindings in more win on conflict.
func (f Frame) Extend(more map[Symbol]ir.Value) Frame {
	next := make(map[Symbol]ir.Value, len(f.bindings)+len(more))
	for k, v := range f.bindings {
		next[k] = v
	}
	for k, v := range more {
		next[k] = v
	}
	return Frame{bindings: next}
}

// Len returns the number of bound symbols.
func (f Frame) Len() int {
	return len(f.bindings)
}

// Symbols returns the bound symbols in unspecified order.
func (f Frame) Symbols() []Symbol {
	syms := make([]Symbol, 0, len(f.bindings))
	for s := range f.bindings {
		syms = append(syms, s)
	}
	return syms
}

// CarriesAll reports whether every symbol bound in prev is also bound in
// f. Used to detect map stages that silently drop bindings.
func (f Frame) CarriesAll(prev Frame) (Symbol, bool) {
	for s := range prev.bindings {
		if _, ok := f.bindings[s]; !ok {
			return s, false
		}
	}
	return "", true
}

// Object converts the frame to an ir.Object keyed by symbol name.
// Used for binding hashes and trace output.
func (f Frame) Object() ir.Object {
	obj := make(ir.Object, len(f.bindings))
	for s, v := range f.bindings {
		obj[string(s)] = v
	}
	return obj
}

// FrameSet is an ordered collection of frames. An empty set means
// "no viable continuation" - expected, not an error.
type FrameSet []Frame

// Empty reports whether the set has no frames.
func (fs FrameSet) Empty() bool {
	return len(fs) == 0
}
