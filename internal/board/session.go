package board

import (
	"context"
	"errors"

	"issueboard/internal/models"
)

// View is everything a client needs to render the board for one session.
type View struct {
	Resolved bool
	Identity *models.Identity
	Issues   []models.Issue
	Filter   Filter
	State    FormState
	Draft    models.Draft
	Warning  string
	Err      error
}

// Session is the single owned state of one connected client: identity,
// subscription, draft form, filter and the latest snapshot.
type Session struct {
	auth     IdentityProvider
	store    IssueStore
	observer Observer

	gate   *Gate
	form   *Form
	filter Filter
	issues []models.Issue
	token  string
}

// NewSession creates a session whose identity is not yet resolved.
func NewSession(auth IdentityProvider, store IssueStore, observer Observer) *Session {
	if observer == nil {
		observer = nopObserver{}
	}
	s := &Session{
		auth:     auth,
		store:    store,
		observer: observer,
		gate:     NewGate(store),
	}
	s.form = NewForm(store, s.gate.Identity, observer)
	return s
}

// Resume restores a previously issued session token. An empty token
// resolves the session as signed out.
func (s *Session) Resume(ctx context.Context, token string) error {
	if token == "" {
		return s.gate.Change(ctx, nil)
	}
	id, err := s.auth.Resume(ctx, token)
	if err != nil {
		if cerr := s.gate.Change(ctx, nil); cerr != nil {
			return errors.Join(err, cerr)
		}
		return err
	}
	s.token = token
	return s.gate.Change(ctx, &id)
}

// SignIn authenticates with the identity provider and returns the session token.
func (s *Session) SignIn(ctx context.Context, email, password string) (string, error) {
	id, token, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return "", err
	}
	return token, s.signedIn(ctx, id, token)
}

// SignUp registers a new account and signs it in.
func (s *Session) SignUp(ctx context.Context, email, password string) (string, error) {
	id, token, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return "", err
	}
	return token, s.signedIn(ctx, id, token)
}

func (s *Session) signedIn(ctx context.Context, id models.Identity, token string) error {
	if prev, ok := s.gate.Identity(); ok && prev.ID != id.ID {
		s.clear()
	}
	s.token = token
	return s.gate.Change(ctx, &id)
}

// SignOut drops the identity and stops delivering issue updates.
func (s *Session) SignOut(ctx context.Context) error {
	s.clear()
	return s.gate.Change(ctx, nil)
}

func (s *Session) clear() {
	s.token = ""
	s.issues = nil
	s.filter = Filter{}
	s.form.Reset()
}

// Token returns the token of the signed-in identity.
func (s *Session) Token() string { return s.token }

// Snapshots exposes the gate's live stream; nil while signed out.
func (s *Session) Snapshots() <-chan []models.Issue { return s.gate.Snapshots() }

// Apply replaces the local issue list with a delivered snapshot.
func (s *Session) Apply(snapshot []models.Issue) {
	if _, ok := s.gate.Identity(); !ok {
		return
	}
	s.issues = snapshot
}

// SetDraft updates the draft form fields.
func (s *Session) SetDraft(d models.Draft) error {
	if _, ok := s.gate.Identity(); !ok {
		return ErrNoIdentity
	}
	s.form.SetDraft(d)
	return nil
}

// Submit runs the form submission with the duplicate guard.
func (s *Session) Submit(ctx context.Context) (Outcome, error) {
	return s.form.Submit(ctx)
}

// Confirm forces creation of the current draft.
func (s *Session) Confirm(ctx context.Context) (Outcome, error) {
	return s.form.Confirm(ctx)
}

// SetFilter replaces the active filter.
func (s *Session) SetFilter(f Filter) error {
	if _, ok := s.gate.Identity(); !ok {
		return ErrNoIdentity
	}
	s.filter = f
	return nil
}

// ChangeStatus moves an issue from the latest snapshot to a new status.
// The local list is not touched; the change shows up through the subscription.
func (s *Session) ChangeStatus(ctx context.Context, id string, next models.Status) error {
	if _, ok := s.gate.Identity(); !ok {
		return ErrNoIdentity
	}
	for _, issue := range s.issues {
		if issue.ID != id {
			continue
		}
		err := ChangeStatus(ctx, s.store, issue, next)
		var terr *TransitionError
		if errors.As(err, &terr) {
			s.observer.TransitionRejected(terr.From, terr.To)
		}
		return err
	}
	return ErrIssueNotFound
}

// View renders the current session state.
func (s *Session) View() View {
	v := View{
		Resolved: s.gate.Resolved(),
		Filter:   s.filter,
		State:    s.form.State(),
		Draft:    s.form.Draft(),
		Warning:  s.form.Warning(),
		Err:      s.form.Err(),
	}
	if id, ok := s.gate.Identity(); ok {
		v.Identity = &id
		v.Issues = Apply(s.issues, s.filter)
	}
	return v
}

// Close releases the subscription.
func (s *Session) Close() {
	s.gate.Close()
}
