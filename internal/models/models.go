package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// User is a stored account. PasswordHash is never serialised.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity returns the public handle for the account.
func (u User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email}
}

// Identity is the authenticated user handle attached to a session.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Priority is the urgency of an issue.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Priorities lists every priority in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority converts a wire value into a Priority.
func ParsePriority(raw string) (Priority, error) {
	switch p := Priority(raw); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("invalid priority %q", raw)
	}
}

// Status is the lifecycle column of an issue.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
)

// Statuses lists every status in board column order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusDone}

// ParseStatus converts a wire value into a Status.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusOpen, StatusInProgress, StatusDone:
		return s, nil
	default:
		return "", fmt.Errorf("invalid status %q", raw)
	}
}

// Issue represents a single tracked work item on the board.
type Issue struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	AssignedTo  string    `json:"assignedTo"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Field names a mutable issue attribute that can be updated in place.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldPriority    Field = "priority"
	FieldStatus      Field = "status"
	FieldAssignedTo  Field = "assignedTo"
)

// ParseField accepts only the mutable fields; createdBy and createdAt are rejected.
func ParseField(raw string) (Field, error) {
	switch f := Field(raw); f {
	case FieldTitle, FieldDescription, FieldPriority, FieldStatus, FieldAssignedTo:
		return f, nil
	default:
		return "", fmt.Errorf("field %q cannot be updated", raw)
	}
}

// NewIssue carries the fields supplied on creation. The store assigns ID and CreatedAt.
type NewIssue struct {
	Title       string
	Description string
	Priority    Priority
	Status      Status
	AssignedTo  string
	CreatedBy   string
}

// Draft is the client-held form state for an issue that has not been created yet.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	AssignedTo  string   `json:"assignedTo"`
}

// NewDraft returns an empty draft with the default priority.
func NewDraft() Draft {
	return Draft{Priority: PriorityMedium}
}

// ValidationError reports a required field left empty.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid %s", e.Field)
}

// Validate checks required fields and normalises an empty priority.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return &ValidationError{Field: "title"}
	}
	if strings.TrimSpace(d.Description) == "" {
		return &ValidationError{Field: "description"}
	}
	if strings.TrimSpace(d.AssignedTo) == "" {
		return &ValidationError{Field: "assignedTo"}
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if _, err := ParsePriority(string(d.Priority)); err != nil {
		return &ValidationError{Field: "priority"}
	}
	return nil
}

// Issue builds the creation payload for the draft on behalf of the given identity.
func (d Draft) Issue(createdBy string) NewIssue {
	return NewIssue{
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Priority:    d.Priority,
		Status:      StatusOpen,
		AssignedTo:  strings.TrimSpace(d.AssignedTo),
		CreatedBy:   createdBy,
	}
}
