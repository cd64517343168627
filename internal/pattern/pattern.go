// Package pattern compiles declared action patterns and unifies them
// against completed action events, producing candidate frames.
//
// A when-list is a conjunction: the sync proceeds only once events
// satisfying every listed pattern have been observed and unified into one
// consistent frame. Multiple satisfying event combinations yield multiple
// frames. A mismatch yields zero frames - it is expected, never an error.
package pattern

import (
	"github.com/loomworks/loom/internal/frame"
	"github.com/loomworks/loom/internal/ir"
)

// Term is one field of a pattern shape: either a literal value that must
// match exactly, or a symbol that binds on first occurrence and must be
// consistent thereafter.
type Term struct {
	literal ir.Value
	symbol  frame.Symbol
}

// Lit builds a literal term.
func Lit(v ir.Value) Term {
	return Term{literal: v}
}

// Sym builds a symbol term.
func Sym(s frame.Symbol) Term {
	return Term{symbol: s}
}

// IsSymbol reports whether the term is a symbol, returning it when so.
func (t Term) IsSymbol() (frame.Symbol, bool) {
	if t.symbol != "" {
		return t.symbol, true
	}
	return "", false
}

// Literal returns the literal value for non-symbol terms.
func (t Term) Literal() ir.Value {
	return t.literal
}

// Pattern declares the shape of action events a sync is interested in.
// Fields omitted from Input or Output are don't-care; named fields must
// be present in the actual event.
type Pattern struct {
	Action ir.ActionRef
	Input  map[string]Term
	Output map[string]Term
}

// Match unifies an event against the pattern under an existing frame.
// Returns the extended frame and true on success, or the zero frame and
// false on any mismatch (wrong action, absent field, unequal literal, or
// a symbol already bound to a different value).
func (p Pattern) Match(ev *ir.ActionEvent, f frame.Frame) (frame.Frame, bool) {
	if ev.Action != p.Action {
		return frame.Frame{}, false
	}

	out := f
	var ok bool
	if out, ok = unifyShape(p.Input, ev.Input, out); !ok {
		return frame.Frame{}, false
	}
	if out, ok = unifyShape(p.Output, ev.Output, out); !ok {
		return frame.Frame{}, false
	}
	return out, true
}

// unifyShape matches one shape (input or output position) against the
// corresponding payload. Named fields require presence; a named symbol
// binds the actual value or re-checks consistency if already bound.
func unifyShape(shape map[string]Term, payload ir.Object, f frame.Frame) (frame.Frame, bool) {
	for field, term := range shape {
		actual, present := payload[field]
		if !present {
			return frame.Frame{}, false
		}

		if sym, isSym := term.IsSymbol(); isSym {
			if f.Has(sym) {
				bound, err := f.Get(sym)
				if err != nil || !ir.Equal(bound, actual) {
					return frame.Frame{}, false
				}
				continue
			}
			f = f.With(sym, actual)
			continue
		}

		if !ir.Equal(term.Literal(), actual) {
			return frame.Frame{}, false
		}
	}
	return f, true
}

// MatchAll evaluates a when-list against the events accumulated so far in
// the round. Patterns are matched in declared order; each pattern may be
// satisfied by any event, and shared symbols constrain later patterns to
// events carrying equal values. The result enumerates every consistent
// combination, in event order within each pattern position.
func MatchAll(when []Pattern, events []*ir.ActionEvent) frame.FrameSet {
	frames := frame.FrameSet{frame.New()}

	for _, p := range when {
		var next frame.FrameSet
		for _, f := range frames {
			for _, ev := range events {
				if extended, ok := p.Match(ev, f); ok {
					next = append(next, extended)
				}
			}
		}
		if next.Empty() {
			return nil
		}
		frames = next
	}

	return frames
}
