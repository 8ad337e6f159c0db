package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"issueboard/internal/board"
	"issueboard/internal/models"
)

var fieldColumns = map[models.Field]string{
	models.FieldTitle:       "title",
	models.FieldDescription: "description",
	models.FieldPriority:    "priority",
	models.FieldStatus:      "status",
	models.FieldAssignedTo:  "assigned_to",
}

const issueColumns = `id, title, description, priority, status, assigned_to, created_by, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(row scanner) (models.Issue, error) {
	var (
		i       models.Issue
		created int64
	)
	if err := row.Scan(&i.ID, &i.Title, &i.Description, &i.Priority, &i.Status, &i.AssignedTo, &i.CreatedBy, &created); err != nil {
		return models.Issue{}, err
	}
	i.CreatedAt = time.Unix(0, created).UTC()
	return i, nil
}

// ListIssues returns every issue ordered by creation time, newest first.
func (s *Store) ListIssues(ctx context.Context) ([]models.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+issueColumns+` FROM issues ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	issues := []models.Issue{}
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, i)
	}
	return issues, rows.Err()
}

// GetIssue fetches a single issue by id.
func (s *Store) GetIssue(ctx context.Context, id string) (models.Issue, error) {
	i, err := scanIssue(s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Issue{}, board.ErrIssueNotFound
	}
	if err != nil {
		return models.Issue{}, fmt.Errorf("get issue: %w", err)
	}
	return i, nil
}

// CreateIssue inserts a new issue and returns its id. The creation time is
// assigned here and is strictly greater than any existing one.
func (s *Store) CreateIssue(ctx context.Context, in models.NewIssue) (string, error) {
	if err := validateNewIssue(&in); err != nil {
		return "", &board.WriteError{Op: "create issue", Err: fmt.Errorf("%w: %v", board.ErrInvalidValue, err)}
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `INSERT INTO issues(id, title, description, priority, status, assigned_to, created_by, created_at)
        VALUES(?, ?, ?, ?, ?, ?, ?, MAX(?, COALESCE((SELECT MAX(created_at) FROM issues), 0) + 1))`,
		id, in.Title, in.Description, string(in.Priority), string(in.Status), in.AssignedTo, in.CreatedBy, time.Now().UnixNano())
	if err != nil {
		return "", &board.WriteError{Op: "create issue", Err: err}
	}

	s.afterWrite(ctx)
	return id, nil
}

// UpdateIssueField writes a single mutable field of an issue.
func (s *Store) UpdateIssueField(ctx context.Context, id string, field models.Field, value string) error {
	column, ok := fieldColumns[field]
	if !ok {
		return &board.WriteError{Op: "update issue", Err: fmt.Errorf("%w: field %q cannot be updated", board.ErrInvalidValue, field)}
	}
	value, err := validateField(field, value)
	if err != nil {
		return &board.WriteError{Op: "update issue", Err: fmt.Errorf("%w: %v", board.ErrInvalidValue, err)}
	}

	res, err := s.db.ExecContext(ctx, `UPDATE issues SET `+column+` = ? WHERE id = ?`, value, id)
	if err != nil {
		return &board.WriteError{Op: "update issue", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &board.WriteError{Op: "update issue", Err: err}
	}
	if affected == 0 {
		return &board.WriteError{Op: "update issue", Err: board.ErrIssueNotFound}
	}

	s.afterWrite(ctx)
	return nil
}

// SwapIssueStatus moves an issue from one status to another in a single
// conditional update. A concurrent change to the status yields ErrStaleStatus.
func (s *Store) SwapIssueStatus(ctx context.Context, id string, from, to models.Status) error {
	if _, err := models.ParseStatus(string(to)); err != nil {
		return &board.WriteError{Op: "update issue", Err: fmt.Errorf("%w: %v", board.ErrInvalidValue, err)}
	}

	res, err := s.db.ExecContext(ctx, `UPDATE issues SET status = ? WHERE id = ? AND status = ?`, string(to), id, string(from))
	if err != nil {
		return &board.WriteError{Op: "update issue", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &board.WriteError{Op: "update issue", Err: err}
	}
	if affected == 0 {
		if _, err := s.GetIssue(ctx, id); err != nil {
			return &board.WriteError{Op: "update issue", Err: err}
		}
		return &board.WriteError{Op: "update issue", Err: board.ErrStaleStatus}
	}

	s.afterWrite(ctx)
	return nil
}

func validateNewIssue(in *models.NewIssue) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.AssignedTo = strings.TrimSpace(in.AssignedTo)
	switch {
	case in.Title == "":
		return fmt.Errorf("issue title must not be empty")
	case in.Description == "":
		return fmt.Errorf("issue description must not be empty")
	case in.AssignedTo == "":
		return fmt.Errorf("issue assignee must not be empty")
	case in.CreatedBy == "":
		return fmt.Errorf("issue creator must not be empty")
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if in.Status == "" {
		in.Status = models.StatusOpen
	}
	if _, err := models.ParsePriority(string(in.Priority)); err != nil {
		return err
	}
	if _, err := models.ParseStatus(string(in.Status)); err != nil {
		return err
	}
	return nil
}

func validateField(field models.Field, value string) (string, error) {
	switch field {
	case models.FieldPriority:
		p, err := models.ParsePriority(value)
		return string(p), err
	case models.FieldStatus:
		st, err := models.ParseStatus(value)
		return string(st), err
	default:
		value = strings.TrimSpace(value)
		if value == "" {
			return "", fmt.Errorf("%s must not be empty", field)
		}
		return value, nil
	}
}
