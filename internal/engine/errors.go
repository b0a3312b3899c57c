package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/fxsql/internal/ir"
)

// RuntimeError is a data-dependent failure during evaluation.
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// EvalID identifies the evaluation.
	EvalID string

	// Func and Span locate the failing call.
	Func ir.Func
	Span ir.Span
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDivideByZero indicates a division or modulo by zero.
	ErrCodeDivideByZero RuntimeErrorCode = "DIVIDE_BY_ZERO"

	// ErrCodeTypeMismatch indicates an operand of the wrong type.
	ErrCodeTypeMismatch RuntimeErrorCode = "TYPE_MISMATCH"

	// ErrCodeInvalidArgument indicates an operand outside the function's
	// domain, such as a negative instance number.
	ErrCodeInvalidArgument RuntimeErrorCode = "INVALID_ARGUMENT"

	// ErrCodeUnsupportedFunction indicates a function the interpreter
	// does not implement.
	ErrCodeUnsupportedFunction RuntimeErrorCode = "UNSUPPORTED_FUNCTION"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.EvalID != "" && e.Func != "" {
		return fmt.Sprintf("%s: %s (eval=%s, func=%s at %s)", e.Code, e.Message, e.EvalID, e.Func, e.Span)
	}
	if e.Func != "" {
		return fmt.Sprintf("%s: %s (func=%s at %s)", e.Code, e.Message, e.Func, e.Span)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func runtimeErrorf(code RuntimeErrorCode, format string, args ...any) *RuntimeError {
	return &RuntimeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsRuntimeError returns true if the error is a RuntimeError.
// Uses errors.As to handle wrapped errors.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re)
}

// IsDivideByZero returns true if the error is a divide-by-zero RuntimeError.
func IsDivideByZero(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDivideByZero
	}
	return false
}

// InternalError reports a tree the interpreter must never see, such as a
// filter fragment reaching a position other than a retrieval's filter
// argument. It is a defect upstream and is never recoverable.
type InternalError struct {
	Message string
	Span    ir.Span
	Err     error
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("internal error at %s: %s: %v", e.Span, e.Message, e.Err)
	}
	return fmt.Sprintf("internal error at %s: %s", e.Span, e.Message)
}

// Unwrap returns the underlying error.
func (e *InternalError) Unwrap() error {
	return e.Err
}

// IsInternalError returns true if the error is an InternalError.
// Uses errors.As to handle wrapped errors.
func IsInternalError(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}
