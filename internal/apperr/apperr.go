// Package apperr classifies errors into the kinds spec.md §7 assigns
// distinct propagation policies to: transient I/O, data absence, contract
// violation, validation, and shutdown cancellation.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the error classification.
type Kind string

const (
	Transient          Kind = "transient"
	DataAbsence        Kind = "data_absence"
	ContractViolation  Kind = "contract_violation"
	Validation         Kind = "validation"
	ShutdownCancelled  Kind = "shutdown"
)

// Error carries a Kind, a machine-readable Reason, and an optional
// human-readable Hint, matching the user-visible failure shape of spec.md §7:
// {status, reason, hint, request_id}.
type Error struct {
	Kind   Kind
	Reason string
	Hint   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, reason, hint string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Hint: hint, Err: cause}
}

func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// NoData is a convenience constructor for the common "no data available"
// case shared across Feature Engine, Inference Loop and Labeler.
func NoData(reason string) *Error {
	return New(DataAbsence, reason, "retry after more data is available", nil)
}
