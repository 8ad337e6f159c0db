package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"issueboard/internal/feed"
	"issueboard/internal/models"
)

// memStore is an in-memory IssueStore that records the calls it receives.
type memStore struct {
	broker  *feed.Broker
	issues  []models.Issue // newest first
	seq     int
	now     time.Time
	created []models.NewIssue
	updates []string
	lists   int

	createErr error
	listErr   error
	subErr    error
}

func newMemStore(existing ...models.Issue) *memStore {
	return &memStore{
		broker: feed.NewBroker(),
		issues: existing,
		now:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) Subscribe(ctx context.Context) (*feed.Subscription, error) {
	if m.subErr != nil {
		return nil, m.subErr
	}
	return m.broker.Subscribe(m.issues), nil
}

func (m *memStore) ListIssues(ctx context.Context) ([]models.Issue, error) {
	m.lists++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]models.Issue(nil), m.issues...), nil
}

func (m *memStore) CreateIssue(ctx context.Context, in models.NewIssue) (string, error) {
	if m.createErr != nil {
		return "", &WriteError{Op: "create issue", Err: m.createErr}
	}
	m.seq++
	m.now = m.now.Add(time.Second)
	id := fmt.Sprintf("issue-%d", m.seq)
	m.created = append(m.created, in)
	m.issues = append([]models.Issue{{
		ID:          id,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      in.Status,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   m.now,
	}}, m.issues...)
	m.broker.Publish(m.issues)
	return id, nil
}

func (m *memStore) UpdateIssueField(ctx context.Context, id string, field models.Field, value string) error {
	m.updates = append(m.updates, fmt.Sprintf("%s:%s=%s", id, field, value))
	for i := range m.issues {
		if m.issues[i].ID != id {
			continue
		}
		if field == models.FieldStatus {
			m.issues[i].Status = models.Status(value)
		}
		m.broker.Publish(m.issues)
		return nil
	}
	return &WriteError{Op: "update issue", Err: ErrIssueNotFound}
}

// fakeAuth accepts any password equal to "secret1" and tokens of the form "tok:<email>".
type fakeAuth struct{}

var errBadCredential = errors.New("invalid-credential")

func (fakeAuth) SignUp(ctx context.Context, email, password string) (models.Identity, string, error) {
	return fakeAuth{}.SignIn(ctx, email, password)
}

func (fakeAuth) SignIn(ctx context.Context, email, password string) (models.Identity, string, error) {
	if password != "secret1" {
		return models.Identity{}, "", errBadCredential
	}
	return models.Identity{ID: "u-" + email, Email: email}, "tok:" + email, nil
}

func (fakeAuth) Resume(ctx context.Context, token string) (models.Identity, error) {
	var email string
	if _, err := fmt.Sscanf(token, "tok:%s", &email); err != nil {
		return models.Identity{}, errBadCredential
	}
	return models.Identity{ID: "u-" + email, Email: email}, nil
}

type countingObserver struct {
	created, warned int
	rejected        []string
}

func (o *countingObserver) IssueCreated()    { o.created++ }
func (o *countingObserver) DuplicateWarned() { o.warned++ }
func (o *countingObserver) TransitionRejected(from, to models.Status) {
	o.rejected = append(o.rejected, string(from)+"->"+string(to))
}
