package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/kalikit/logger"
	"github.com/kbukum/kalikit/observability"
	"github.com/kbukum/kalikit/resilience"
	"github.com/kbukum/kalikit/tools"
)

// Server exposes a tools.Catalog over HTTP/1.1 and HTTP/2, cleartext (h2c)
// or over TLS.
type Server struct {
	cfg     Config
	catalog *tools.Catalog
	health  observability.HealthChecker
	tokens  *Tokens

	bulkhead *resilience.Bulkhead
	limiter  *resilience.RateLimiter
	store    *invocationStore

	engine     *gin.Engine
	httpServer *http.Server
	listener   net.Listener

	// ctx is the parent of async invocations. Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	log     *logger.Logger
	metrics *observability.Metrics
	service string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics records request metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithServiceName sets the service name reported by /health.
func WithServiceName(name string) Option {
	return func(s *Server) { s.service = name }
}

// New builds a server for catalog. health is usually the *process.Executor
// behind the catalog.
func New(cfg Config, catalog *tools.Catalog, health observability.HealthChecker, opts ...Option) (*Server, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("httpapi: invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		catalog: catalog,
		health:  health,
		ctx:     ctx,
		cancel:  cancel,
		log:     logger.Get("httpapi"),
		service: "kalikit",
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Auth.Enabled {
		tokens, err := NewTokens(cfg.Auth)
		if err != nil {
			cancel()
			return nil, err
		}
		s.tokens = tokens
	}
	s.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "actions",
		MaxConcurrent: cfg.Admission.MaxConcurrent,
		MaxWait:       cfg.Admission.MaxWait,
		OnReject: func(name string) {
			s.log.Warn("invocation rejected", logger.Fields("bulkhead", name))
		},
	})
	s.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Name:  "actions",
		Rate:  cfg.Admission.RatePerSecond,
		Burst: cfg.Admission.Burst,
	})
	s.store = newInvocationStore(cfg.InvocationTTL, s.log)

	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	s.engine = gin.New()
	s.routes()

	tlsConfig, err := cfg.TLS.Build()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("httpapi: %w", err)
	}

	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		IdleTimeout:          cfg.IdleTimeout,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           h2c.NewHandler(s.engine, h2s),
		ReadHeaderTimeout: cfg.ReadTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		TLSConfig:         tlsConfig,
	}
	return s, nil
}

func (s *Server) routes() {
	s.engine.Use(
		recovery(s.log),
		requestID(),
		bodyLimit(s.cfg.MaxBodyBytes),
		requestLogger(s.log, s.metrics),
	)
	s.engine.NoRoute(s.handleNoRoute)

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/version", s.handleVersion)

	v1 := s.engine.Group("/v1")
	if s.tokens != nil {
		v1.Use(requireToken(s.tokens))
	}
	v1.GET("/actions", s.handleListActions)
	v1.GET("/actions/:name", s.handleGetAction)
	v1.POST("/actions/:name", rateLimit(s.limiter), s.handleRunAction)
	v1.GET("/invocations/:id", s.handleGetInvocation)
	v1.DELETE("/invocations/:id", s.handleCancelInvocation)
}

// Handler returns the root handler, h2c included.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the port and serves in the background. It returns once the
// listener is bound.
func (s *Server) Start(ctx context.Context) error {
	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("httpapi: bind %s: %w", s.httpServer.Addr, err)
	}
	s.listener = listener

	go func() {
		var err error
		if s.httpServer.TLSConfig != nil {
			err = s.httpServer.ServeTLS(listener, "", "")
		} else {
			err = s.httpServer.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("server error", logger.ErrorFields("serve", err))
		}
	}()
	go s.store.sweep(s.ctx, min(s.cfg.InvocationTTL, time.Minute))

	s.log.Info("HTTP server started", logger.Fields(
		"addr", listener.Addr().String(),
		"auth", s.tokens != nil,
		"tls", s.httpServer.TLSConfig != nil,
	))
	return nil
}

// Stop drains in-flight requests for up to ShutdownTimeout, then closes the
// remaining connections and cancels async invocations.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	defer s.cancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("graceful shutdown incomplete, closing connections", logger.ErrorFields("shutdown", err))
		if cerr := s.httpServer.Close(); cerr != nil {
			return fmt.Errorf("httpapi: close: %w", cerr)
		}
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return nil
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}
