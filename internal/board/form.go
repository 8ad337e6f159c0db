package board

import (
	"context"
	"fmt"
	"strings"

	"issueboard/internal/models"
)

// FormState is the position of the issue form in its submit workflow.
type FormState int

const (
	StateEditing FormState = iota
	StateDuplicateCheckPending
	StateBlocked
	StateCreating
)

func (s FormState) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateDuplicateCheckPending:
		return "duplicate_check_pending"
	case StateBlocked:
		return "blocked"
	case StateCreating:
		return "creating"
	default:
		return fmt.Sprintf("FormState(%d)", int(s))
	}
}

// Outcome is the result of a submission that did not fail.
// Exactly one of ID and Similar is set.
type Outcome struct {
	ID      string
	Similar string
}

// Blocked reports whether creation was withheld by the duplicate guard.
func (o Outcome) Blocked() bool {
	return o.Similar != ""
}

// Form owns the draft issue and drives the duplicate check and creation.
type Form struct {
	store    IssueStore
	identity func() (models.Identity, bool)
	observer Observer

	state   FormState
	draft   models.Draft
	similar string
	err     error
}

// NewForm creates a form in the Editing state with an empty draft.
func NewForm(store IssueStore, identity func() (models.Identity, bool), observer Observer) *Form {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Form{
		store:    store,
		identity: identity,
		observer: observer,
		draft:    models.NewDraft(),
	}
}

func (f *Form) State() FormState    { return f.state }
func (f *Form) Draft() models.Draft { return f.draft }

// Err returns the failure from the last submission, if any.
func (f *Form) Err() error { return f.err }

// Warning returns the duplicate warning shown while the form is blocked.
func (f *Form) Warning() string {
	if f.similar == "" {
		return ""
	}
	return fmt.Sprintf("Similar issue detected: %q. Proceed?", f.similar)
}

// SetDraft replaces the draft fields. A pending warning stays visible.
func (f *Form) SetDraft(d models.Draft) {
	if d.Priority == "" {
		d.Priority = models.PriorityMedium
	}
	f.draft = d
}

// Reset clears the draft, the warning and any error and returns to Editing.
func (f *Form) Reset() {
	f.state = StateEditing
	f.draft = models.NewDraft()
	f.similar = ""
	f.err = nil
}

// Submit runs the duplicate guard and creates the issue when nothing similar exists.
func (f *Form) Submit(ctx context.Context) (Outcome, error) {
	return f.submit(ctx, false)
}

// Confirm creates the issue without consulting the duplicate guard, even if
// the collection changed since the warning was raised.
func (f *Form) Confirm(ctx context.Context) (Outcome, error) {
	return f.submit(ctx, true)
}

func (f *Form) submit(ctx context.Context, force bool) (Outcome, error) {
	if f.state == StateDuplicateCheckPending {
		return Outcome{}, ErrSubmitPending
	}
	who, ok := f.identity()
	if !ok {
		return Outcome{}, ErrNoIdentity
	}
	draft := f.draft
	if err := draft.Validate(); err != nil {
		return Outcome{}, err
	}
	f.err = nil

	if !force {
		f.state = StateDuplicateCheckPending
		existing, err := f.store.ListIssues(ctx)
		if err != nil {
			f.state = StateEditing
			f.err = fmt.Errorf("duplicate check: %w", err)
			return Outcome{}, f.err
		}
		if title, found := CheckDuplicate(strings.TrimSpace(draft.Title), existing); found {
			f.state = StateBlocked
			f.similar = title
			f.observer.DuplicateWarned()
			return Outcome{Similar: title}, nil
		}
	}

	f.state = StateCreating
	id, err := f.store.CreateIssue(ctx, draft.Issue(who.Email))
	if err != nil {
		f.err = err
		return Outcome{}, err
	}
	f.observer.IssueCreated()
	f.Reset()
	return Outcome{ID: id}, nil
}
