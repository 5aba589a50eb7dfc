package utils

import (
	"errors"
	"fmt"
)

var (
	// ErrInput classifies unreadable or malformed inputs (manifest, event logs, vocabulary).
	ErrInput = errors.New("input error")
	// ErrConfig classifies invalid configuration detected before any work starts.
	ErrConfig = errors.New("configuration error")
)

// AppError wraps an operation, human-facing message, and underlying error.
// Kind, when set, is one of the classification sentinels above.
type AppError struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

// Unwrap exposes both the classification and the cause to errors.Is/As.
func (e *AppError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewAppError constructs an unclassified AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// NewInputError constructs an AppError classified as ErrInput.
func NewInputError(op, msg string, err error) error {
	return &AppError{Kind: ErrInput, Op: op, Msg: msg, Err: err}
}

// NewConfigError constructs an AppError classified as ErrConfig.
func NewConfigError(op, msg string, err error) error {
	return &AppError{Kind: ErrConfig, Op: op, Msg: msg, Err: err}
}
