// Package web serves the browser converter, its JSON API and, optionally,
// the MCP streamable HTTP endpoint on one listener.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/sammcj/mcp-base64/internal/cache"
	"github.com/sammcj/mcp-base64/internal/config"
	"github.com/sammcj/mcp-base64/internal/converter"
	"github.com/sammcj/mcp-base64/internal/telemetry"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	// limiterIdleTTL is how long a client's rate limiter survives without requests
	limiterIdleTTL = 10 * time.Minute
	// shutdownTimeout bounds graceful shutdown
	shutdownTimeout = 30 * time.Second
	// DefaultEndpointPath is used when the configuration leaves it empty
	DefaultEndpointPath = "/mcp"
)

// ConfigSource provides the current configuration. *config.Store satisfies it.
type ConfigSource interface {
	Get() *config.Config
}

// ThemeSource provides the persisted theme preference
type ThemeSource interface {
	IsDarkMode() bool
}

// Server is the HTTP surface
type Server struct {
	logger    *logrus.Logger
	config    ConfigSource
	theme     ThemeSource
	mcp       http.Handler
	authToken string
	mcpOnly   bool
	limiters  *cache.Cache[*rate.Limiter]
	templates *template.Template
}

// Option configures a Server
type Option func(*Server)

// WithMCPHandler mounts an MCP handler at the configured endpoint path
func WithMCPHandler(handler http.Handler) Option {
	return func(s *Server) {
		s.mcp = handler
	}
}

// WithAuthToken requires a bearer token on the MCP endpoint
func WithAuthToken(token string) Option {
	return func(s *Server) {
		s.authToken = token
	}
}

// WithoutPages serves only the MCP endpoint and the health check
func WithoutPages() Option {
	return func(s *Server) {
		s.mcpOnly = true
	}
}

// NewServer creates the HTTP surface
func NewServer(logger *logrus.Logger, cfg ConfigSource, theme ThemeSource, opts ...Option) (*Server, error) {
	title := cases.Title(language.English)
	funcs := template.FuncMap{
		"title": func(mode converter.Mode) string { return title.String(string(mode)) },
	}

	templates, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		logger:    logger,
		config:    cfg,
		theme:     theme,
		limiters:  cache.NewCache[*rate.Limiter](limiterIdleTTL),
		templates: templates,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if !s.mcpOnly {
		mux.HandleFunc("GET /{$}", s.handleIndex)
		mux.HandleFunc("GET /privacy", s.handlePrivacy)
		mux.Handle("POST /api/convert", s.rateLimit(http.HandlerFunc(s.handleConvert)))
		mux.HandleFunc("POST /api/theme", s.handleTheme)
	}

	if s.mcp != nil {
		endpoint := s.config.Get().Web.EndpointPath
		if endpoint == "" {
			endpoint = DefaultEndpointPath
		}
		mux.Handle(endpoint, s.mcpGuard(s.mcp))
		s.logger.Infof("MCP endpoint mounted at %s", endpoint)
	}

	var handler http.Handler = mux
	handler = s.securityHeaders(handler)
	handler = s.accessLog(handler)
	return telemetry.WrapHandler(handler, "mcp-base64")
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:           addr,
		Handler:        s.Handler(),
		ReadTimeout:    30 * time.Second,  // Prevent slow loris attacks
		WriteTimeout:   30 * time.Second,  // Prevent slow writes
		IdleTimeout:    120 * time.Second, // Close idle connections
		MaxHeaderBytes: 1 << 20,
	}

	go s.sweepLimiters(ctx)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case serverErr <- err:
			case <-ctx.Done():
			}
		}
	}()

	s.logger.Infof("Web server listening on %s", addr)

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

func (s *Server) sweepLimiters(ctx context.Context) {
	ticker := time.NewTicker(limiterIdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.limiters.Sweep(); removed > 0 {
				s.logger.WithField("removed", removed).Debug("Swept idle rate limiters")
			}
		}
	}
}
