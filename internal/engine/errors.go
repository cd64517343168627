package engine

import (
	"errors"
	"fmt"

	"github.com/loomworks/loom/internal/frame"
	"github.com/loomworks/loom/internal/pipeline"
)

// RuntimeError represents a fault detected during round evaluation.
// Faults are always attributable: the round token is set, and the sync
// name is set for faults raised inside one rule's evaluation.
type RuntimeError struct {
	// Code identifies the fault category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Round identifies the affected round.
	Round string

	// Sync identifies the offending rule, when applicable.
	Sync string

	// Err is the underlying cause, when one exists.
	Err error
}

// RuntimeErrorCode categorizes runtime faults.
type RuntimeErrorCode string

const (
	// ErrCodeUnboundSymbol indicates a stage or then-clause read a symbol
	// absent from its frame. A rule or adapter defect.
	ErrCodeUnboundSymbol RuntimeErrorCode = "UNBOUND_SYMBOL"

	// ErrCodeAdapterFailure indicates a query adapter itself failed
	// (as opposed to returning an {error} result object).
	ErrCodeAdapterFailure RuntimeErrorCode = "ADAPTER_FAILURE"

	// ErrCodeQuotaExceeded indicates the round exceeded its step quota.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeMissingAction indicates a then-clause referenced an action
	// with no registration.
	ErrCodeMissingAction RuntimeErrorCode = "MISSING_ACTION"

	// ErrCodeAbandoned indicates a round quiesced without any rule
	// producing the outward response.
	ErrCodeAbandoned RuntimeErrorCode = "ABANDONED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.Round != "" && e.Sync != "":
		return fmt.Sprintf("%s: %s (round=%s, sync=%s)", e.Code, e.Message, e.Round, e.Sync)
	case e.Round != "":
		return fmt.Sprintf("%s: %s (round=%s)", e.Code, e.Message, e.Round)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap supports errors.Is/As against the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// classifySyncError wraps a fault from one rule's evaluation with its
// code, round, and sync attribution.
func classifySyncError(round, syncName string, err error) *RuntimeError {
	code := ErrCodeAdapterFailure

	var unbound *frame.UnboundSymbolError
	var dropped *pipeline.DroppedBindingError
	var missing *pipeline.MissingBranchError
	switch {
	case errors.As(err, &unbound):
		code = ErrCodeUnboundSymbol
	case errors.As(err, &dropped), errors.As(err, &missing):
		// Both are the "missing binding" defect class surfaced early.
		code = ErrCodeUnboundSymbol
	}

	return &RuntimeError{
		Code:    code,
		Message: err.Error(),
		Round:   round,
		Sync:    syncName,
		Err:     err,
	}
}

// IsUnboundSymbolError reports whether err is an unbound-symbol fault.
// Uses errors.As to handle wrapped errors.
func IsUnboundSymbolError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeUnboundSymbol {
		return true
	}
	var ue *frame.UnboundSymbolError
	return errors.As(err, &ue)
}

// IsAdapterError reports whether err is an adapter fault.
func IsAdapterError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeAdapterFailure {
		return true
	}
	var ae *pipeline.AdapterError
	return errors.As(err, &ae)
}

// IsQuotaError reports whether err is a step quota fault.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeQuotaExceeded
}

// IsAbandonedError reports whether err marks a round that quiesced with
// no response.
func IsAbandonedError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeAbandoned
}
