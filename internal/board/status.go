package board

import (
	"context"

	"issueboard/internal/models"
)

// IsTransitionAllowed reports whether an issue may move from old to next.
// Open -> Done is the only forbidden move; work has to pass through In Progress.
func IsTransitionAllowed(old, next models.Status) bool {
	return !(old == models.StatusOpen && next == models.StatusDone)
}

// ChangeStatus validates the transition and only then writes the new status.
// A rejected transition never reaches the store. Stores implementing
// StatusSwapper fail with ErrStaleStatus if issue.Status is out of date.
func ChangeStatus(ctx context.Context, store Updater, issue models.Issue, next models.Status) error {
	if !IsTransitionAllowed(issue.Status, next) {
		return &TransitionError{From: issue.Status, To: next}
	}
	if sw, ok := store.(StatusSwapper); ok {
		return sw.SwapIssueStatus(ctx, issue.ID, issue.Status, next)
	}
	return store.UpdateIssueField(ctx, issue.ID, models.FieldStatus, string(next))
}
