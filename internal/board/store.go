package board

import (
	"context"

	"issueboard/internal/feed"
	"issueboard/internal/models"
)

// Subscriber opens live snapshot subscriptions on the issue collection,
// ordered by creation time, newest first.
type Subscriber interface {
	Subscribe(ctx context.Context) (*feed.Subscription, error)
}

// Updater applies a single-field partial update to an issue.
type Updater interface {
	UpdateIssueField(ctx context.Context, id string, field models.Field, value string) error
}

// StatusSwapper applies a status change only while the issue still holds
// the status the transition was validated against.
type StatusSwapper interface {
	SwapIssueStatus(ctx context.Context, id string, from, to models.Status) error
}

// IssueStore is the document store the board talks to.
type IssueStore interface {
	Subscriber
	Updater
	// ListIssues is a one-shot read of the whole collection. It may lag
	// behind concurrent creates.
	ListIssues(ctx context.Context) ([]models.Issue, error)
	// CreateIssue stores a new issue; the store assigns id and createdAt.
	CreateIssue(ctx context.Context, issue models.NewIssue) (string, error)
}

// IdentityProvider authenticates users and restores persisted sessions.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (models.Identity, string, error)
	SignIn(ctx context.Context, email, password string) (models.Identity, string, error)
	Resume(ctx context.Context, token string) (models.Identity, error)
}

// Observer receives notable workflow events, typically for metrics.
type Observer interface {
	IssueCreated()
	DuplicateWarned()
	TransitionRejected(from, to models.Status)
}

type nopObserver struct{}

func (nopObserver) IssueCreated()                             {}
func (nopObserver) DuplicateWarned()                          {}
func (nopObserver) TransitionRejected(from, to models.Status) {}
