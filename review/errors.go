package review

import (
	"errors"
	"fmt"
)

// ErrNoPendingWork is returned by Advance when a job has reached a
// terminal state and has nothing left to do. Callers driving a job in a
// loop treat it as the stop signal.
var ErrNoPendingWork = errors.New("job has no pending work")

// ValidationError rejects bad input before any state is created.
// Nothing is persisted when a ValidationError is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// AlreadyFinalError rejects a review submission for a paper whose
// verdict is already final. Recoverable by resubmitting with an
// explicit, audited force override.
type AlreadyFinalError struct {
	PaperID string
	Reviews int
}

func (e *AlreadyFinalError) Error() string {
	return fmt.Sprintf("paper %s already has a final verdict (%d reviews); resubmit with force to override", e.PaperID, e.Reviews)
}

// PersistenceError wraps a storage failure. Fatal to the in-flight
// operation: the caller of Advance must retry, never drop it, because a
// lost write would break audit-trail completeness.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistErr wraps err as a PersistenceError unless it is nil.
func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}
