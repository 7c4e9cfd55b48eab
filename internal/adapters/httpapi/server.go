package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bfhl/go-backend/internal/domains/operations"
	"bfhl/go-backend/internal/platform/metrics"
	"bfhl/go-backend/internal/platform/ratelimiter"

	"github.com/gorilla/mux"
)

const (
	DefaultAddr         = ":3000"
	defaultMaxBodyBytes = 10 << 20
)

// Options configures a Server. Dispatcher is required; a nil Limiter
// disables rate limiting and a nil Metrics disables /metrics.
type Options struct {
	Addr              string
	OfficialEmail     string
	MaxBodyBytes      int64
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	AllowedOrigins    []string
	Dispatcher        *operations.Dispatcher
	Limiter           *ratelimiter.MapLimiter
	Metrics           *metrics.Metrics
	Logger            *slog.Logger
}

type Server struct {
	httpServer      *http.Server
	handler         http.Handler
	dispatcher      *operations.Dispatcher
	limiter         *ratelimiter.MapLimiter
	metrics         *metrics.Metrics
	logger          *slog.Logger
	officialEmail   string
	maxBodyBytes    int64
	shutdownTimeout time.Duration
	initErr         error
}

func NewServer(opts Options) *Server {
	if opts.Dispatcher == nil {
		return &Server{initErr: errors.New("httpapi: dispatcher is required")}
	}
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.ReadHeaderTimeout <= 0 {
		opts.ReadHeaderTimeout = 5 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		dispatcher:      opts.Dispatcher,
		limiter:         opts.Limiter,
		metrics:         opts.Metrics,
		logger:          opts.Logger.With("component", "httpapi"),
		officialEmail:   opts.OfficialEmail,
		maxBodyBytes:    opts.MaxBodyBytes,
		shutdownTimeout: opts.ShutdownTimeout,
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/bfhl", s.handleDocs).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/bfhl", s.handleBFHL).Methods(http.MethodPost)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(s.handleNotFound)

	s.handler = chain(router,
		s.recoverPanics,
		s.assignRequestID,
		s.logRequests,
		securityHeaders,
		corsMiddleware(opts.AllowedOrigins),
		s.rateLimit,
	)
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	if s.handler == nil {
		return http.HandlerFunc(s.handleNotFound)
	}
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s.httpServer == nil {
		return ""
	}
	return s.httpServer.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.initErr != nil {
		return s.initErr
	}
	select {
	case <-ctx.Done():
		return nil
	default:
	}

	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()
	s.logger.Info("http server listening", "addr", s.httpServer.Addr, "ai_configured", s.dispatcher.AIConfigured())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}
