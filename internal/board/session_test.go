package board

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueboard/internal/models"
)

func TestSession_CreateScenario(t *testing.T) {
	store := newMemStore()
	s := NewSession(fakeAuth{}, store, nil)
	defer s.Close()
	ctx := context.Background()

	_, err := s.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	s.Apply(<-s.Snapshots())

	require.NoError(t, s.SetDraft(models.Draft{
		Title:       "Server crash",
		Description: "...",
		Priority:    models.PriorityHigh,
		AssignedTo:  "bob",
	}))
	out, err := s.Submit(ctx)
	require.NoError(t, err)
	require.False(t, out.Blocked())

	s.Apply(<-s.Snapshots())
	v := s.View()
	require.Len(t, v.Issues, 1)
	assert.Equal(t, "a@x.com", v.Issues[0].CreatedBy)
	assert.Equal(t, models.StatusOpen, v.Issues[0].Status)
	assert.Equal(t, models.NewDraft(), v.Draft)
	assert.Equal(t, StateEditing, v.State)
}

func TestSession_BlockedTransitionNeverWrites(t *testing.T) {
	store := newMemStore(models.Issue{ID: "i1", Title: "Bug", Status: models.StatusOpen})
	obs := &countingObserver{}
	s := NewSession(fakeAuth{}, store, obs)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Resume(ctx, "tok:a@x.com"))
	s.Apply(<-s.Snapshots())

	err := s.ChangeStatus(ctx, "i1", models.StatusDone)

	assert.ErrorIs(t, err, ErrForbiddenTransition)
	assert.Empty(t, store.updates)
	assert.Equal(t, models.StatusOpen, s.View().Issues[0].Status)
	assert.Equal(t, []string{"Open->Done"}, obs.rejected)
}

func TestSession_ChangeStatusUnknownIssue(t *testing.T) {
	s := NewSession(fakeAuth{}, newMemStore(), nil)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Resume(ctx, "tok:a@x.com"))

	assert.ErrorIs(t, s.ChangeStatus(ctx, "nope", models.StatusDone), ErrIssueNotFound)
}

func TestSession_SignedOutIsGated(t *testing.T) {
	store := newMemStore(models.Issue{ID: "i1"})
	s := NewSession(fakeAuth{}, store, nil)
	ctx := context.Background()

	assert.False(t, s.View().Resolved)
	require.NoError(t, s.Resume(ctx, ""))

	v := s.View()
	assert.True(t, v.Resolved)
	assert.Nil(t, v.Identity)
	assert.Nil(t, s.Snapshots())
	assert.ErrorIs(t, s.SetDraft(models.NewDraft()), ErrNoIdentity)
	assert.ErrorIs(t, s.SetFilter(Filter{}), ErrNoIdentity)
	_, err := s.Submit(ctx)
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestSession_InvalidTokenResolvesSignedOut(t *testing.T) {
	s := NewSession(fakeAuth{}, newMemStore(), nil)

	err := s.Resume(context.Background(), "garbage")

	require.Error(t, err)
	assert.True(t, s.View().Resolved)
	assert.Nil(t, s.View().Identity)
}

func TestSession_SignOutReleasesSubscriptionAndState(t *testing.T) {
	store := newMemStore(models.Issue{ID: "i1"})
	s := NewSession(fakeAuth{}, store, nil)
	ctx := context.Background()

	token, err := s.SignIn(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, token, s.Token())
	s.Apply(<-s.Snapshots())
	assert.Equal(t, 1, store.broker.Count())

	require.NoError(t, s.SignOut(ctx))

	assert.Equal(t, 0, store.broker.Count())
	assert.Empty(t, s.Token())
	assert.Empty(t, s.View().Issues)

	// late deliveries are ignored once signed out
	s.Apply([]models.Issue{{ID: "late"}})
	assert.Empty(t, s.View().Issues)
}

func TestSession_FilterView(t *testing.T) {
	store := newMemStore(
		models.Issue{ID: "1", Status: models.StatusOpen, Priority: models.PriorityLow},
		models.Issue{ID: "2", Status: models.StatusDone, Priority: models.PriorityLow},
		models.Issue{ID: "3", Status: models.StatusInProgress, Priority: models.PriorityHigh},
	)
	s := NewSession(fakeAuth{}, store, nil)
	defer s.Close()
	ctx := context.Background()
	require.NoError(t, s.Resume(ctx, "tok:a@x.com"))
	s.Apply(<-s.Snapshots())

	f, err := ParseFilter("Done", "All")
	require.NoError(t, err)
	require.NoError(t, s.SetFilter(f))

	assert.Equal(t, []string{"2"}, ids(s.View().Issues))
}

func TestSession_BadCredentials(t *testing.T) {
	s := NewSession(fakeAuth{}, newMemStore(), nil)

	_, err := s.SignIn(context.Background(), "a@x.com", "wrong")

	assert.ErrorIs(t, err, errBadCredential)
	_, ok := s.gate.Identity()
	assert.False(t, ok)
}
