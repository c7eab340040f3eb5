package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"longrec/internal/logging"
	"longrec/internal/services"
	"longrec/internal/session"
)

// RequestIDHeader carries the correlation identifier of a request. A client
// value is kept, otherwise one is generated.
const RequestIDHeader = "X-Request-ID"

// Backend is the session surface the bridge drives. Handlers take one View
// per request and read nothing else from the backend.
type Backend interface {
	ID() string
	View() *session.View
	Navigate(ctx context.Context, cmd session.Command) (session.Result, error)
}

// Server serves one session over HTTP.
type Server struct {
	bind    string
	logger  *slog.Logger
	backend Backend
	engine  *gin.Engine

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New builds a server bound to bind (host:port). It does not listen until
// Start is called.
func New(bind string, backend Backend, logger *slog.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("httpapi: backend is required")
	}
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, errors.New("httpapi: bind address is required")
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		bind:    bind,
		logger:  logging.NewComponentLogger(logger, "httpapi"),
		backend: backend,
		engine:  gin.New(),
	}
	s.engine.Use(
		gin.CustomRecovery(func(c *gin.Context, err any) {
			s.logger.Error("handler panic",
				logging.String("path", c.Request.URL.Path),
				logging.Any("panic", err),
				logging.String("stack", string(debug.Stack())))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		requestID(),
		s.requestLogger(),
	)
	s.routes()

	s.server = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens and serves until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

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

// Stop shuts the server down, waiting up to five seconds for requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.WithContext(c.Request.Context(), s.logger).Debug("request",
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)))
	}
}
