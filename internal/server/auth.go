package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"issueboard/internal/auth"
	"issueboard/internal/models"
)

const identityKey = "identity"

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSignUp registers a new account and returns a session token.
func (s *Server) handleSignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	id, token, err := s.auth.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.authFailed(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"token": token, "user": id})
}

// handleSignIn exchanges credentials for a session token.
func (s *Server) handleSignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	id, token, err := s.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.authFailed(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"token": token, "user": id})
}

// requireIdentity resolves the bearer token and stores the identity on the context.
func (s *Server) requireIdentity(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		s.respondError(c, http.StatusUnauthorized, &auth.AuthError{Reason: auth.ReasonInvalidToken})
		return
	}

	id, err := s.auth.Resume(c.Request.Context(), token)
	if err != nil {
		s.authFailed(c, err)
		return
	}
	c.Set(identityKey, id)
	c.Next()
}

func (s *Server) authFailed(c *gin.Context, err error) {
	var aerr *auth.AuthError
	if errors.As(err, &aerr) {
		s.metrics.AuthFailed(aerr.Reason)
	}
	s.respondError(c, statusFor(err), err)
}

func currentIdentity(c *gin.Context) models.Identity {
	id, _ := c.MustGet(identityKey).(models.Identity)
	return id
}

func authStatus(reason string) int {
	switch reason {
	case auth.ReasonEmailInUse:
		return http.StatusConflict
	case auth.ReasonInvalidEmail, auth.ReasonWeakPassword:
		return http.StatusBadRequest
	default:
		return http.StatusUnauthorized
	}
}
