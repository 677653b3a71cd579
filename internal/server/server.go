// Package server assembles the HTTP engine that serves the web pages, the
// JSON API and the operational endpoints, and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/vento/internal/account"
	"github.com/mesh-intelligence/vento/internal/api"
	"github.com/mesh-intelligence/vento/internal/auth"
	"github.com/mesh-intelligence/vento/internal/inventory"
	"github.com/mesh-intelligence/vento/internal/web"
	"github.com/mesh-intelligence/vento/pkg/types"
)

// Defaults for Options.
const (
	DefaultAddr            = ":3000"
	DefaultShutdownTimeout = 10 * time.Second
)

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ShutdownTimeout time.Duration

	// Registry receives the HTTP metrics and is exposed at /metrics.
	// A fresh registry is used when nil.
	Registry *prometheus.Registry
}

// Server is the assembled HTTP server.
type Server struct {
	engine  *gin.Engine
	http    *http.Server
	store   types.Backend
	log     *zap.Logger
	timeout time.Duration
}

// New wires the services over store and registers every route.
func New(opts Options, store types.Backend, am *auth.Manager, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	inv := inventory.New(store.Products(), logger)
	accts := account.New(store.Users(), store.Products(), logger)
	am = am.WithLookup(accts)

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(logger), newHTTPMetrics(reg).handler(), am.Session())

	r.GET("/healthz", healthz(store))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	if err := web.NewHandler(inv, accts, am, logger).Register(r); err != nil {
		return nil, fmt.Errorf("register web routes: %w", err)
	}
	api.NewHandler(inv, accts, am, store, logger).Register(r)

	return &Server{
		engine: r,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		store:   store,
		log:     logger,
		timeout: opts.ShutdownTimeout,
	}, nil
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler { return s.engine }

func healthz(store types.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "backend": store.Name()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": store.Name()})
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully, letting in-flight requests finish within the shutdown
// timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", ln.Addr().String()))
		errc <- s.http.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}
