package board

import (
	"errors"
	"fmt"

	"issueboard/internal/models"
)

var (
	// ErrForbiddenTransition is matched by every *TransitionError.
	ErrForbiddenTransition = errors.New("status rule: an issue cannot move directly from Open to Done")
	ErrNoIdentity          = errors.New("not signed in")
	ErrIssueNotFound       = errors.New("issue not found")
	ErrSubmitPending       = errors.New("a submission is already in progress")
	ErrInvalidValue        = errors.New("invalid field value")
	// ErrStaleStatus means the issue's status moved after it was read.
	ErrStaleStatus         = errors.New("issue status changed concurrently")
)

// WriteError reports a failed create or update against the issue store.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// TransitionError is returned when a status change is rejected by the workflow.
type TransitionError struct {
	From models.Status
	To   models.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s (%s -> %s)", ErrForbiddenTransition.Error(), e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrForbiddenTransition
}
