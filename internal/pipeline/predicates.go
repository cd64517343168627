package pipeline

import (
	"github.com/loomworks/loom/internal/frame"
	"github.com/loomworks/loom/internal/ir"
)

// Common predicates for branch routing. Adapters report mutually
// exclusive outcome branches by setting the inapplicable one to ir.None,
// so "did this branch apply" is a None check on a bound symbol. All of
// these fault on an unbound symbol rather than defaulting.

// BranchEmpty keeps frames where sym is bound to None (the branch did
// not apply).
func BranchEmpty(sym frame.Symbol) Predicate {
	return func(f frame.Frame) (bool, error) {
		v, err := f.Get(sym)
		if err != nil {
			return false, err
		}
		return ir.IsNone(v), nil
	}
}

// BranchTaken keeps frames where sym is bound to a value other than None
// (the branch applied).
func BranchTaken(sym frame.Symbol) Predicate {
	return func(f frame.Frame) (bool, error) {
		v, err := f.Get(sym)
		if err != nil {
			return false, err
		}
		return !ir.IsNone(v), nil
	}
}

// Equals keeps frames where sym is bound to a value equal to want.
func Equals(sym frame.Symbol, want ir.Value) Predicate {
	return func(f frame.Frame) (bool, error) {
		v, err := f.Get(sym)
		if err != nil {
			return false, err
		}
		return ir.Equal(v, want), nil
	}
}
