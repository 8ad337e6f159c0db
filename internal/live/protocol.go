package live

import (
	"errors"

	"issueboard/internal/auth"
	"issueboard/internal/board"
	"issueboard/internal/models"
)

// Client to server message types.
const (
	MsgSignIn    = "signin"
	MsgSignUp    = "signup"
	MsgSignOut   = "signout"
	MsgDraft     = "draft"
	MsgSubmit    = "submit"
	MsgConfirm   = "confirm"
	MsgFilter    = "filter"
	MsgSetStatus = "set_status"
)

// Server to client message types.
const (
	MsgSession = "session"
	MsgIssues  = "issues"
	MsgForm    = "form"
	MsgCreated = "created"
	MsgError   = "error"
)

// Command is a decoded client message.
type Command struct {
	Type     string        `json:"type"`
	Email    string        `json:"email,omitempty"`
	Password string        `json:"password,omitempty"`
	Draft    *models.Draft `json:"draft,omitempty"`
	ID       string        `json:"id,omitempty"`
	Status   string        `json:"status,omitempty"`
	Priority string        `json:"priority,omitempty"`
}

type sessionMessage struct {
	Type     string           `json:"type"`
	Resolved bool             `json:"resolved"`
	User     *models.Identity `json:"user"`
	Token    string           `json:"token,omitempty"`
}

type filterPayload struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

type issuesMessage struct {
	Type   string         `json:"type"`
	Issues []models.Issue `json:"issues"`
	Filter filterPayload  `json:"filter"`
}

type formMessage struct {
	Type    string       `json:"type"`
	State   string       `json:"state"`
	Draft   models.Draft `json:"draft"`
	Warning string       `json:"warning,omitempty"`
	Similar string       `json:"similar,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type createdMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error kinds reported to clients.
const (
	KindAuth       = "auth"
	KindWrite      = "write"
	KindTransition = "transition"
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindProtocol   = "protocol"
	KindInternal   = "internal"
)

type protocolError struct{ msg string }

func (e *protocolError) Error() string { return e.msg }

func errorKind(err error) string {
	var (
		aerr *auth.AuthError
		verr *models.ValidationError
		werr *board.WriteError
		perr *protocolError
	)
	switch {
	case errors.As(err, &aerr), errors.Is(err, board.ErrNoIdentity):
		return KindAuth
	case errors.Is(err, board.ErrForbiddenTransition):
		return KindTransition
	case errors.As(err, &verr), errors.Is(err, board.ErrInvalidValue):
		return KindValidation
	case errors.As(err, &werr):
		return KindWrite
	case errors.Is(err, board.ErrIssueNotFound):
		return KindNotFound
	case errors.As(err, &perr):
		return KindProtocol
	default:
		return KindInternal
	}
}
