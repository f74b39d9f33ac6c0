package analysis

import (
	"errors"
	"fmt"
)

type Kind string

const (
	FetchFailed     Kind = "fetch_failed"
	InferenceFailed Kind = "inference_failed"
	InvalidInput    Kind = "invalid_input"
)

// Error is the only error type Analyze returns.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func fetchErr(reason string, err error) error {
	return &Error{Kind: FetchFailed, Reason: reason, Err: err}
}

func inferenceErr(reason string, err error) error {
	return &Error{Kind: InferenceFailed, Reason: reason, Err: err}
}

func invalidInput(reason string, err error) error {
	return &Error{Kind: InvalidInput, Reason: reason, Err: err}
}
