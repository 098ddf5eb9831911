// Package httpapi is the Gatehouse HTTP surface: applicant, reviewer, and
// admin route groups over the core packages. Identity arrives as a signed
// JWT; roles gate route groups; the shared error taxonomy maps onto HTTP
// statuses in one place.
package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/notify/calendar"
	"github.com/gatehouse/gatehouse/internal/question"
	"github.com/gatehouse/gatehouse/internal/storage"
)

// Server wires the route handlers to their collaborators.
type Server struct {
	db        *gorm.DB
	cfg       *config.Config
	secret    []byte
	limiter   Limiter
	store     storage.Store
	calendar  *calendar.Client
	questions question.Provider
	router    *gin.Engine
}

// Opts holds dependencies for a Server.
type Opts struct {
	DB        *gorm.DB
	Config    *config.Config
	Limiter   Limiter // nil disables rate limiting
	Store     storage.Store
	Calendar  *calendar.Client // nil disables invite side effects
	Questions question.Provider
}

// New builds a Server with all routes registered.
func New(opts Opts) (*Server, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("httpapi: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("httpapi: config is required")
	}
	if opts.Config.HTTP.JWTSecret == "" {
		return nil, fmt.Errorf("httpapi: jwt secret is required")
	}

	s := &Server{
		db:        opts.DB,
		cfg:       opts.Config,
		secret:    []byte(opts.Config.HTTP.JWTSecret),
		limiter:   opts.Limiter,
		store:     opts.Store,
		calendar:  opts.Calendar,
		questions: opts.Questions,
	}
	if s.questions == nil {
		s.questions = question.NewConfigProvider(opts.Config.Questions)
	}

	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.registerRoutes()
	return s, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// cancelWindow returns the configured booking cancellation window.
func (s *Server) cancelWindow() time.Duration {
	return time.Duration(s.cfg.Booking.CancelWindowHours) * time.Hour
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, out io.Writer) error {
	addr := fmt.Sprintf(":%d", s.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if out != nil {
		fmt.Fprintf(out, "Gatehouse API listening on %s\n", addr)
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: %w", err)
	}
	return nil
}
