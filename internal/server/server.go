package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"issueboard/internal/auth"
	"issueboard/internal/board"
	"issueboard/internal/metrics"
	"issueboard/internal/models"
	"issueboard/internal/storage/sqlite"
)

// Options carries the optional parts of the server configuration.
type Options struct {
	StaticDir string
	// AllowedOrigin restricts WebSocket upgrades; empty allows any origin.
	AllowedOrigin string
	// Registry receives the workflow collectors and backs /metrics.
	Registry *prometheus.Registry
}

// Server provides HTTP handlers for the issue board backend.
type Server struct {
	engine        *gin.Engine
	store         *sqlite.Store
	auth          *auth.Provider
	metrics       *metrics.Collectors
	registry      *prometheus.Registry
	logger        *slog.Logger
	staticDir     string
	allowedOrigin string
}

// New constructs the HTTP server with routes and middleware configured.
func New(store *sqlite.Store, provider *auth.Provider, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz", "/metrics"))

	srv := &Server{
		engine:        router,
		store:         store,
		auth:          provider,
		metrics:       metrics.New(opts.Registry, store.Subscribers),
		registry:      opts.Registry,
		logger:        logger,
		staticDir:     opts.StaticDir,
		allowedOrigin: opts.AllowedOrigin,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.GET("/ws", s.handleLive)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/signup", s.handleSignUp)
			authGroup.POST("/login", s.handleSignIn)
		}

		issues := api.Group("/issues", s.requireIdentity)
		{
			issues.GET("", s.handleListIssues)
			issues.POST("", s.handleCreateIssue)
			issues.GET(":id", s.handleGetIssue)
			issues.PATCH(":id", s.handleUpdateIssue)
		}
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("request rejected", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}

// statusFor maps board and store errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		verr *models.ValidationError
		aerr *auth.AuthError
	)
	switch {
	case errors.As(err, &verr), errors.Is(err, board.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.As(err, &aerr):
		return authStatus(aerr.Reason)
	case errors.Is(err, board.ErrForbiddenTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, board.ErrIssueNotFound):
		return http.StatusNotFound
	case errors.Is(err, board.ErrStaleStatus):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
