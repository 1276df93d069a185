package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ferry/internal/daemon"
	"ferry/internal/extract"
	"ferry/internal/logging"
	"ferry/internal/progress"
	"ferry/internal/queue"
	"ferry/internal/services"
)

// Service is the daemon surface used by the HTTP handlers.
type Service interface {
	Enqueue(ctx context.Context, h extract.Handle, opts daemon.EnqueueOptions) (daemon.Enqueued, error)
	EnqueueBatch(ctx context.Context, handles []extract.Handle, kind progress.Kind) (string, []daemon.Enqueued, error)
	Dismiss(itemID string) bool
	Summary() progress.Summary
	Entries() []progress.Entry
	BatchCounts(batchID string) progress.BatchCount
	Watch(buffer int) (<-chan progress.Update, func())
	SignIn(identity string) (bool, error)
	SignOut(ctx context.Context) (int64, error)
	SetReady(ready bool) (bool, error)
	Status(ctx context.Context) daemon.Status
	ListPending(ctx context.Context) ([]*queue.Item, error)
	ClearQueue(ctx context.Context) (int64, error)
	TestNotification(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Bind  string
	Token string
	// Heartbeat is the idle interval between keep-alive events on the
	// progress stream.
	Heartbeat time.Duration
	// MaxUploadBytes caps multipart request bodies.
	MaxUploadBytes int64
}

const (
	defaultHeartbeat      = 15 * time.Second
	defaultMaxUploadBytes = 512 << 20
	requestIDHeader       = "X-Request-ID"
)

// Server hosts the HTTP API.
type Server struct {
	opts    Options
	service Service
	logger  *slog.Logger
	router  *gin.Engine

	listener net.Listener
	server   *http.Server
}

// NewServer builds the router. Call Start to listen.
func NewServer(service Service, opts Options, logger *slog.Logger) *Server {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		opts:    opts,
		service: service,
		logger:  logging.NewComponentLogger(logger, "api"),
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery(), s.requestContext())
	s.setupRoutes()
	return s
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/api/v1", s.authMiddleware())
	{
		v1.GET("/status", s.getStatus)
		v1.GET("/summary", s.getSummary)
		v1.GET("/uploads", s.listUploads)
		v1.POST("/uploads", s.createUploads)
		v1.POST("/uploads/text", s.createTextUpload)
		v1.DELETE("/uploads/:id", s.dismissUpload)
		v1.GET("/batches/:id", s.getBatch)
		v1.GET("/progress/stream", s.streamProgress)
		v1.GET("/queue", s.listQueue)
		v1.DELETE("/queue", s.clearQueue)
		v1.POST("/session", s.signIn)
		v1.DELETE("/session", s.signOut)
		v1.PUT("/session/ready", s.setReady)
		v1.POST("/notifications/test", s.testNotification)
	}
}

// Start listens on opts.Bind and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, closing open progress streams.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

// requestContext tags each request with a request id and logs it.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()
		logging.WithContext(c.Request.Context(), s.logger).Debug("api request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}

// authMiddleware validates bearer tokens. With no token configured every
// request passes through.
func (s *Server) authMiddleware() gin.HandlerFunc {
	token := s.opts.Token
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, daemon.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrExtraction):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(c.Request.Context(), s.logger), "api request failed",
			services.EventType(err), logging.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
