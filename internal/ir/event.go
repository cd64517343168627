package ir

import "strings"

// ActionRef names a concept action or query as "Concept.action",
// e.g. "HerdGrouping.create" or "UserAuth._byToken".
type ActionRef string

// Concept returns the concept part of the reference.
func (r ActionRef) Concept() string {
	if i := strings.IndexByte(string(r), '.'); i >= 0 {
		return string(r)[:i]
	}
	return string(r)
}

// Action returns the action part of the reference.
func (r ActionRef) Action() string {
	if i := strings.IndexByte(string(r), '.'); i >= 0 {
		return string(r)[i+1:]
	}
	return ""
}

// ActionEvent records one completed invocation of a concept action.
// Events are produced once per invocation and are visible only to sync
// evaluations within the same round.
type ActionEvent struct {
	ID     string    `json:"id"` // Content-addressed hash
	Round  string    `json:"round"`
	Action ActionRef `json:"action"`
	Input  Object    `json:"input"`
	Output Object    `json:"output"`
	Seq    int64     `json:"seq"` // Logical clock within the round
}

// NewActionEvent builds an event with its content-addressed ID.
func NewActionEvent(round string, action ActionRef, input, output Object, seq int64) (*ActionEvent, error) {
	id, err := EventID(round, string(action), input, output, seq)
	if err != nil {
		return nil, err
	}
	return &ActionEvent{
		ID:     id,
		Round:  round,
		Action: action,
		Input:  input,
		Output: output,
		Seq:    seq,
	}, nil
}

// ErrorField is the reserved output field that signals a data-level
// failure. Concepts never panic or return Go errors across the boundary
// for domain failures; they return an object containing this field.
const ErrorField = "error"

// IsErrorOutput reports whether an action output carries the reserved
// error field with a value other than None.
func IsErrorOutput(out Object) bool {
	v, ok := out[ErrorField]
	return ok && !IsNone(v)
}
