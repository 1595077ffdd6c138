// Package config loads the server configuration file and the persisted user
// preferences.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxInputBytes caps the size of a single conversion input
	DefaultMaxInputBytes = 1 << 20
	// DefaultRateLimit is the sustained conversions per second allowed per client
	DefaultRateLimit = 20
	// DefaultRateBurst is the burst size per client
	DefaultRateBurst = 40
)

// Config is the server configuration file
type Config struct {
	Version       string        `yaml:"version"`
	Web           WebConfig     `yaml:"web"`
	Headers       HeaderPolicy  `yaml:"headers"`
	RateLimit     RateLimitRule `yaml:"rate_limit"`
	MaxInputBytes int           `yaml:"max_input_bytes"`
}

// WebConfig configures the HTTP listener
type WebConfig struct {
	Port         string `yaml:"port"`
	BaseURL      string `yaml:"base_url"`
	EndpointPath string `yaml:"endpoint_path"`
}

// HeaderPolicy is the fixed set of response headers applied to pages
type HeaderPolicy struct {
	FrameOptions string `yaml:"frame_options"`
	// ContentSecurityPolicy maps directive names to their source lists. The
	// token {nonce} is replaced with the per-request nonce.
	ContentSecurityPolicy map[string]string `yaml:"content_security_policy"`
}

// RateLimitRule limits conversion API calls per client
type RateLimitRule struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// NonceToken is replaced by the per-request nonce in CSP directives
const NonceToken = "{nonce}"

// cspDirectiveOrder keeps the rendered policy stable and readable
var cspDirectiveOrder = []string{
	"default-src", "script-src", "object-src", "base-uri", "connect-src", "font-src", "img-src", "style-src",
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Version: "1.0",
		Web: WebConfig{
			Port:         "18080",
			BaseURL:      "http://localhost",
			EndpointPath: "/mcp",
		},
		Headers: HeaderPolicy{
			FrameOptions: "SAMEORIGIN",
			ContentSecurityPolicy: map[string]string{
				"default-src": "'self'",
				"script-src":  "'self' 'strict-dynamic' 'nonce-" + NonceToken + "'",
				"object-src":  "'none'",
				"base-uri":    "'self'",
				"connect-src": "'self'",
				"font-src":    "'self'",
				"img-src":     "'self' data:",
				"style-src":   "'self' 'nonce-" + NonceToken + "'",
			},
		},
		RateLimit: RateLimitRule{
			RequestsPerSecond: DefaultRateLimit,
			Burst:             DefaultRateBurst,
		},
		MaxInputBytes: DefaultMaxInputBytes,
	}
}

// DefaultConfigPath returns ~/.mcp-base64/config.yaml
func DefaultConfigPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// Load reads the configuration at path on top of the defaults. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data on top of the defaults and validates it
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot use
func (c *Config) Validate() error {
	var problems []string

	if c.MaxInputBytes <= 0 {
		problems = append(problems, "max_input_bytes must be positive")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		problems = append(problems, "rate_limit.requests_per_second must not be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst < 1 {
		problems = append(problems, "rate_limit.burst must be at least 1 when rate limiting is enabled")
	}
	if c.Web.EndpointPath != "" && !strings.HasPrefix(c.Web.EndpointPath, "/") {
		problems = append(problems, "web.endpoint_path must start with '/'")
	}
	// An empty value means the header is not sent
	switch strings.ToUpper(c.Headers.FrameOptions) {
	case "", "DENY", "SAMEORIGIN":
	default:
		problems = append(problems, fmt.Sprintf("headers.frame_options must be DENY or SAMEORIGIN, got %q", c.Headers.FrameOptions))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ContentSecurityPolicyFor renders the CSP header value for a request nonce
func (p HeaderPolicy) ContentSecurityPolicyFor(nonce string) string {
	if len(p.ContentSecurityPolicy) == 0 {
		return ""
	}

	names := make([]string, 0, len(p.ContentSecurityPolicy))
	for name := range p.ContentSecurityPolicy {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		return directiveRank(names[i]) < directiveRank(names[j]) ||
			(directiveRank(names[i]) == directiveRank(names[j]) && names[i] < names[j])
	})

	parts := make([]string, 0, len(names))
	for _, name := range names {
		sources := strings.TrimSpace(strings.ReplaceAll(p.ContentSecurityPolicy[name], NonceToken, nonce))
		if sources == "" {
			parts = append(parts, name)
			continue
		}
		parts = append(parts, name+" "+sources)
	}
	return strings.Join(parts, "; ")
}

func directiveRank(name string) int {
	for i, known := range cspDirectiveOrder {
		if known == name {
			return i
		}
	}
	return len(cspDirectiveOrder)
}

// Marshal renders the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
