// Package api exposes the file service over HTTP.
//
// Routes (all but /healthz require a bearer token):
//
//	POST   /files            multipart upload, field "files" (repeatable)
//	GET    /files/disk       files owned by the caller
//	GET    /files/:file_id   download
//	PATCH  /files/:file_id   rename, JSON {"name": "..."}
//	DELETE /files/:file_id   delete
//	GET    /shared           files shared with the caller
//	GET    /healthz          liveness
//
// Failures are rendered as {"message": "..."} with the status mapped from
// the service error kind.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/internal/ratelimiter"
	"github.com/marmos91/dittodrive/pkg/auth"
	"github.com/marmos91/dittodrive/pkg/files"
)

// Config configures the HTTP adapter.
type Config struct {
	// Listen is the TCP address to bind
	// Default: ":8080"
	Listen string `mapstructure:"listen" yaml:"listen"`

	// BaseURL prefixes file URLs in responses
	// Example: "https://drive.example.com"
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`

	// MaxUploadBytes caps the request body of an upload batch
	// Default: 64 MiB
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes" validate:"gte=0"`

	// UploadRateLimit is the sustained uploads per second per principal
	// 0 disables limiting
	UploadRateLimit uint `mapstructure:"upload_rate_limit" yaml:"upload_rate_limit"`

	// UploadBurst is the number of uploads a principal may issue at once
	// Default: same as UploadRateLimit
	UploadBurst uint `mapstructure:"upload_burst" yaml:"upload_burst"`

	// ReadHeaderTimeout bounds slow clients
	// Default: 10s
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 64 << 20
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
}

// Server is the HTTP adapter in front of files.Service.
type Server struct {
	config  Config
	service *files.Service
	authn   auth.Authenticator
	limiter *ratelimiter.RateLimiter

	echo         *echo.Echo
	server       *http.Server
	shutdownOnce sync.Once

	mu   sync.Mutex
	addr net.Addr
}

// NewServer builds the router. Call Serve to start listening.
func NewServer(service *files.Service, authn auth.Authenticator, config Config) *Server {
	config.ApplyDefaults()

	s := &Server{
		config:  config,
		service: service,
		authn:   authn,
		limiter: ratelimiter.New(config.UploadRateLimit, config.UploadBurst),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	e.Use(middleware.Recover())
	e.Use(requestLogger())

	e.GET("/healthz", s.handleHealth)

	g := e.Group("", s.authenticate)
	g.POST("/files", s.handleUpload, s.rateLimit)
	g.GET("/files/disk", s.handleListOwned)
	g.GET("/files/:file_id", s.handleDownload)
	g.PATCH("/files/:file_id", s.handleRename)
	g.DELETE("/files/:file_id", s.handleDelete)
	g.GET("/shared", s.handleListShared)

	s.echo = e
	s.server = &http.Server{
		Handler:           e,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve listens on Config.Listen and blocks until ctx is cancelled or the
// server fails.
//
// Returns nil on graceful shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("http server failed to listen on %s: %w", s.config.Listen, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Stop drains in-flight requests, bounded by ctx. Safe to call more than
// once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("http server shutdown error: %w", err)
			return
		}
		logger.Info("HTTP server stopped")
	})
	return shutdownErr
}

// Addr returns the bound address once Serve is listening, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Name identifies the adapter in lifecycle logs.
func (s *Server) Name() string {
	return "HTTP"
}
