package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer bounds the number of nodes one evaluation may visit.
//
// Each Run has its own QuotaEnforcer. A delegated tree is finite, but a
// retrieval can return an arbitrarily large table that later nodes walk,
// so the quota keeps a single evaluation from running away.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
// A limit of zero or less disables the quota.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step and returns StepsExceededError once the limit is
// passed.
func (q *QuotaEnforcer) Check(evalID string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{
			EvalID: evalID,
			Steps:  q.current,
			Limit:  q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when an evaluation exceeds its step
// quota. It ends the evaluation and is not observed by IfError.
type StepsExceededError struct {
	EvalID string
	Steps  int
	Limit  int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("evaluation %s exceeded max steps quota: %d steps > %d limit",
		e.EvalID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
