package board

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issueboard/internal/models"
)

func TestIsTransitionAllowed_AllPairs(t *testing.T) {
	for _, from := range models.Statuses {
		for _, to := range models.Statuses {
			want := !(from == models.StatusOpen && to == models.StatusDone)
			assert.Equal(t, want, IsTransitionAllowed(from, to), "%s -> %s", from, to)
		}
	}
}

func TestChangeStatus_ForbiddenNeverReachesStore(t *testing.T) {
	store := newMemStore(models.Issue{ID: "i1", Status: models.StatusOpen})

	err := ChangeStatus(context.Background(), store, store.issues[0], models.StatusDone)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbiddenTransition))
	var terr *TransitionError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, models.StatusOpen, terr.From)
	assert.Equal(t, models.StatusDone, terr.To)
	assert.Empty(t, store.updates)
	assert.Equal(t, models.StatusOpen, store.issues[0].Status)
}

func TestChangeStatus_AllowedWritesStatusField(t *testing.T) {
	store := newMemStore(models.Issue{ID: "i1", Status: models.StatusInProgress})

	err := ChangeStatus(context.Background(), store, store.issues[0], models.StatusDone)

	require.NoError(t, err)
	assert.Equal(t, []string{"i1:status=Done"}, store.updates)
}

func TestChangeStatus_UnknownIssueIsWriteError(t *testing.T) {
	store := newMemStore()

	err := ChangeStatus(context.Background(), store, models.Issue{ID: "ghost", Status: models.StatusDone}, models.StatusOpen)

	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.ErrorIs(t, err, ErrIssueNotFound)
}

type swapStore struct {
	*memStore
	swaps []string
}

func (s *swapStore) SwapIssueStatus(ctx context.Context, id string, from, to models.Status) error {
	s.swaps = append(s.swaps, id+":"+string(from)+"->"+string(to))
	for i := range s.issues {
		if s.issues[i].ID != id {
			continue
		}
		if s.issues[i].Status != from {
			return &WriteError{Op: "update issue", Err: ErrStaleStatus}
		}
		s.issues[i].Status = to
		return nil
	}
	return &WriteError{Op: "update issue", Err: ErrIssueNotFound}
}

func TestChangeStatus_SwapsAgainstValidatedStatus(t *testing.T) {
	store := &swapStore{memStore: newMemStore(models.Issue{ID: "i1", Status: models.StatusInProgress})}
	seen := store.issues[0]

	require.NoError(t, ChangeStatus(context.Background(), store, seen, models.StatusOpen))
	assert.Equal(t, []string{"i1:In Progress->Open"}, store.swaps)
	assert.Empty(t, store.updates)

	// A second writer still holding the In Progress copy must not push Open -> Done.
	err := ChangeStatus(context.Background(), store, seen, models.StatusDone)
	assert.ErrorIs(t, err, ErrStaleStatus)
	assert.Equal(t, models.StatusOpen, store.issues[0].Status)
}
