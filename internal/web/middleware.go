package web

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sammcj/mcp-base64/internal/telemetry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type contextKey string

const nonceKey contextKey = "csp.nonce"

// headerExemptPrefixes are paths that do not render pages
var headerExemptPrefixes = []string{"/api/", "/static/", "/favicon.ico"}

// nonceFromContext returns the CSP nonce assigned to the request
func nonceFromContext(ctx context.Context) string {
	nonce, _ := ctx.Value(nonceKey).(string)
	return nonce
}

func newNonce() string {
	return strings.ReplaceAll(telemetry.NewRequestID(), "-", "")
}

func headersApply(path string) bool {
	for _, prefix := range headerExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// securityHeaders applies the frame and content security policies to pages.
// Every request gets a fresh nonce for inline scripts and styles.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !headersApply(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		nonce := newNonce()
		policy := s.config.Get().Headers
		// Empty values in the config switch a header off
		if policy.FrameOptions != "" {
			w.Header().Set("X-Frame-Options", policy.FrameOptions)
		}
		if csp := policy.ContentSecurityPolicyFor(nonce); csp != "" {
			w.Header().Set("Content-Security-Policy", csp)
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), nonceKey, nonce)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Flush keeps streaming responses from the MCP endpoint working
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// accessLog logs each request with a request id
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := telemetry.NewRequestID()
		w.Header().Set("X-Request-Id", requestID)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(telemetry.ContextWithRequestID(r.Context(), requestID)))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		entry := s.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"bytes":      rec.bytes,
			"duration":   time.Since(start).String(),
			"client":     clientIP(r),
		})
		if status >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
		} else {
			entry.Debug("HTTP request")
		}
	})
}

// clientIP returns the peer address. Forwarding headers are not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimit applies a token bucket per client address
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A zero rate disables limiting
		if s.config.Get().RateLimit.RequestsPerSecond == 0 {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		limiter := s.limiters.GetOrCreate(ip, func() *rate.Limiter {
			rule := s.config.Get().RateLimit
			return rate.NewLimiter(rate.Limit(rule.RequestsPerSecond), rule.Burst)
		})

		if !limiter.Allow() {
			s.logger.WithField("client", ip).Debug("Rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// mcpGuard checks the Origin header and, when configured, the bearer token
// before handing the request to the MCP handler
func (s *Server) mcpGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && !s.isValidOrigin(origin) {
			s.logger.Warnf("Invalid Origin header: %s", origin)
			http.Error(w, "forbidden origin", http.StatusForbidden)
			return
		}

		if s.authToken != "" {
			const bearerPrefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
				s.logger.Warn("Invalid or missing authentication token")
				w.Header().Set("WWW-Authenticate", `Bearer realm="mcp-base64"`)
				http.Error(w, "unauthorised", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// isValidOrigin allows local origins and the configured base URL, to prevent
// DNS rebinding attacks
func (s *Server) isValidOrigin(origin string) bool {
	allowedOrigins := []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	}
	if base := s.config.Get().Web.BaseURL; base != "" {
		allowedOrigins = append(allowedOrigins, base)
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || strings.HasPrefix(origin, allowed+":") {
			return true
		}
	}
	return false
}
