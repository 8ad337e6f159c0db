package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"issueboard/internal/board"
	"issueboard/internal/models"
)

type issueRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	AssignedTo  string `json:"assignedTo"`
	// Force skips the duplicate check, the same as confirming a warning.
	Force bool `json:"force"`
}

type updateRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// handleListIssues returns the issues matching the status and priority filters.
func (s *Server) handleListIssues(c *gin.Context) {
	filter, err := board.ParseFilter(c.Query("status"), c.Query("priority"))
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	issues, err := s.store.ListIssues(c.Request.Context())
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issues": board.Apply(issues, filter)})
}

// handleGetIssue returns a single issue.
func (s *Server) handleGetIssue(c *gin.Context) {
	issue, err := s.store.GetIssue(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issue": issue})
}

// handleCreateIssue runs the form workflow for a single request: duplicate
// check unless forced, then creation on behalf of the caller.
func (s *Server) handleCreateIssue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	who := currentIdentity(c)
	form := board.NewForm(s.store, func() (models.Identity, bool) { return who, true }, s.metrics)
	form.SetDraft(models.Draft{
		Title:       req.Title,
		Description: req.Description,
		Priority:    models.Priority(req.Priority),
		AssignedTo:  req.AssignedTo,
	})

	var (
		out board.Outcome
		err error
	)
	if req.Force {
		out, err = form.Confirm(c.Request.Context())
	} else {
		out, err = form.Submit(c.Request.Context())
	}
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	if out.Blocked() {
		respondSuccess(c, http.StatusConflict, gin.H{"warning": form.Warning(), "similar": out.Similar})
		return
	}

	issue, err := s.store.GetIssue(c.Request.Context(), out.ID)
	if err != nil {
		s.respondError(c, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("issue created", "id", issue.ID, "by", who.Email)
	respondSuccess(c, http.StatusCreated, gin.H{"issue": issue})
}

// handleUpdateIssue changes a single field. Status changes go through the workflow.
func (s *Server) handleUpdateIssue(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	field, err := models.ParseField(req.Field)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")

	if field == models.FieldStatus {
		next, err := models.ParseStatus(req.Value)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
		current, err := s.store.GetIssue(ctx, id)
		if err != nil {
			s.respondError(c, statusFor(err), err)
			return
		}
		if err := board.ChangeStatus(ctx, s.store, current, next); err != nil {
			var terr *board.TransitionError
			if errors.As(err, &terr) {
				s.metrics.TransitionRejected(terr.From, terr.To)
			}
			s.respondError(c, statusFor(err), err)
			return
		}
	} else if err := s.store.UpdateIssueField(ctx, id, field, req.Value); err != nil {
		s.respondError(c, statusFor(err), fmt.Errorf("update %s: %w", field, err))
		return
	}

	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		s.respondError(c, statusFor(err), err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"issue": issue})
}
