package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sammcj/mcp-base64/internal/config"
	"github.com/sammcj/mcp-base64/internal/registry"
	"github.com/sammcj/mcp-base64/internal/telemetry"
	"github.com/sammcj/mcp-base64/internal/tools"
	"github.com/sammcj/mcp-base64/internal/tools/base64conv"
	"github.com/sammcj/mcp-base64/internal/web"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	// Import all tool packages to register them
	_ "github.com/sammcj/mcp-base64/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Global resources that need cleanup
var (
	debugLogFile   atomic.Pointer[os.File]
	isStdioMode    atomic.Bool
	tracerShutdown atomic.Pointer[func() error]
)

// parseLogLevel parses the LOG_LEVEL environment variable and returns the appropriate logrus level.
// Defaults to WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr == "" {
		return logrus.WarnLevel
	}

	switch strings.ToLower(strings.TrimSpace(logLevelStr)) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

func main() {
	// A missing .env file is normal
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Output is configured once the command and transport are known
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	registry.Init(logger)

	app := &cli.Command{
		Name:    "mcp-base64",
		Usage:   "Base64 encoder and decoder as an MCP server, web page and command line tool",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "stdio",
				Usage:   "Transport type (stdio, sse, http or web)",
				Sources: cli.EnvVars("MCP_BASE64_TRANSPORT"),
			},
			&cli.StringFlag{
				Name:    "port",
				Usage:   "Port for HTTP transports (overrides web.port in the config file)",
				Sources: cli.EnvVars("MCP_BASE64_PORT"),
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Base URL for HTTP transports (overrides web.base_url in the config file)",
			},
			&cli.StringFlag{
				Name:  "endpoint-path",
				Usage: "Endpoint path for the MCP Streamable HTTP handler (overrides web.endpoint_path in the config file)",
			},
			&cli.StringFlag{
				Name:    "auth-token",
				Usage:   "Bearer token required on the MCP HTTP endpoint (optional)",
				Sources: cli.EnvVars("MCP_BASE64_AUTH_TOKEN"),
			},
			configFlag(),
		},
		Commands: commands(logger),
		Action: func(cliCtx context.Context, cmd *cli.Command) error {
			transport := cmd.String("transport")
			isStdioMode.Store(transport == "stdio")
			configureLogging(logger, transport == "stdio")

			if err := tools.InitGlobalFailureLogger(logger, logDir()); err != nil {
				logger.WithError(err).Warn("Failed to initialise conversion failure logger")
			}
			initTracing(logger)

			store, err := loadConfigStore(cmd, logger)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Watch(); err != nil {
				logger.WithError(err).Warn("Config hot reload disabled")
			}

			if transport != "stdio" {
				logger.Infof("Starting mcp-base64 version %s (commit: %s, built: %s)", Version, Commit, BuildDate)
			}

			mcpSrv := newMCPServer(logger, transport)
			return serve(cliCtx, cmd, transport, mcpSrv, store, logger)
		},
	}

	err := app.Run(ctx, os.Args)
	performCleanup(logger)
	if err != nil {
		// In stdio mode nothing may be written to stdout or stderr
		if !isStdioMode.Load() && !errors.Is(err, errSilentExit) {
			logger.SetOutput(os.Stderr)
			logger.Errorf("Error: %v", err)
		}
		os.Exit(1)
	}
}

// initTracing starts the OTLP exporter when one is configured. Spans are
// flushed by performCleanup.
func initTracing(logger *logrus.Logger) {
	shutdown, err := telemetry.InitTracer(logger, nil)
	if err != nil {
		logger.WithError(err).Warn("Tracing disabled")
	}
	tracerShutdown.Store(&shutdown)
}

// logDir returns ~/.mcp-base64/logs
func logDir() string {
	return filepath.Join(config.HomeDir(), "logs")
}

// configureLogging sends logs to the log file. Stdio mode never falls back
// to stderr as that would break the MCP protocol.
func configureLogging(logger *logrus.Logger, stdio bool) {
	logLevel := parseLogLevel()
	if stdio && logLevel < logrus.WarnLevel {
		logLevel = logrus.WarnLevel
	}
	logger.SetLevel(logLevel)
	logrus.SetLevel(logLevel)

	fallback := io.Writer(os.Stderr)
	if stdio {
		fallback = io.Discard
	}

	dir := logDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		logger.SetOutput(fallback)
		logrus.SetOutput(fallback)
		return
	}

	file, err := os.OpenFile(filepath.Join(dir, "mcp-base64.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		logger.SetOutput(fallback)
		logrus.SetOutput(fallback)
		return
	}

	debugLogFile.Store(file)
	logger.SetOutput(file)
	logrus.SetOutput(file)
	logger.WithField("level", logLevel.String()).Debug("Logging configured")
}

// loadConfigStore loads the config file and applies flag overrides
func loadConfigStore(cmd *cli.Command, logger *logrus.Logger) (*config.Store, error) {
	path := cmd.String("config")
	store, err := config.NewStore(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	base64conv.SetMaxInputBytes(store.Get().MaxInputBytes)
	store.OnReload(func(cfg *config.Config) {
		base64conv.SetMaxInputBytes(cfg.MaxInputBytes)
	})
	return store, nil
}

// webSettings resolves listener settings, flags taking precedence over the file
func webSettings(cmd *cli.Command, cfg *config.Config) config.WebConfig {
	settings := cfg.Web
	if cmd.IsSet("port") {
		settings.Port = cmd.String("port")
	}
	if cmd.IsSet("base-url") {
		settings.BaseURL = cmd.String("base-url")
	}
	if cmd.IsSet("endpoint-path") {
		settings.EndpointPath = cmd.String("endpoint-path")
	}
	if settings.EndpointPath == "" {
		settings.EndpointPath = web.DefaultEndpointPath
	}
	return settings
}

// newMCPServer creates the MCP server and registers every enabled tool
func newMCPServer(logger *logrus.Logger, transport string) *mcpserver.MCPServer {
	logger.Debug("Creating MCP server")
	mcpSrv := mcpserver.NewMCPServer("mcp-base64", Version)

	enabledTools := registry.GetEnabledTools()
	logger.WithField("tool_count", len(enabledTools)).Debug("MCP server created, registering tools")

	for name, tool := range enabledTools {
		if transport != "stdio" {
			logger.Infof("Registering tool: %s", name)
		}
		mcpSrv.AddTool(tool.Definition(), toolHandler(name, transport, logger))
	}
	return mcpSrv
}

// toolHandler adapts a registered tool to an MCP handler
func toolHandler(name, transport string, logger *logrus.Logger) mcpserver.ToolHandlerFunc {
	return func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		currentTool, ok := registry.GetTool(name)
		if !ok {
			return nil, fmt.Errorf("tool not found: %s", name)
		}

		args, ok := request.Params.Arguments.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid arguments type: expected map[string]any, got %T", request.Params.Arguments)
		}

		if telemetry.RequestIDFromContext(toolCtx) == "" {
			toolCtx = telemetry.ContextWithRequestID(toolCtx, telemetry.NewRequestID())
		}
		spanCtx, span := telemetry.StartToolSpan(toolCtx, name, transport)
		result, err := currentTool.Execute(spanCtx, logger, args)
		telemetry.EndToolSpan(span, err)

		if err != nil {
			logger.WithError(err).WithField("tool", name).Warn("Tool execution failed")
			return nil, fmt.Errorf("tool execution failed: %w", err)
		}
		return result, nil
	}
}

// serve runs the selected transport until ctx is cancelled
func serve(ctx context.Context, cmd *cli.Command, transport string, mcpSrv *mcpserver.MCPServer, store *config.Store, logger *logrus.Logger) error {
	logger.WithField("transport", transport).Debug("Starting server")

	switch transport {
	case "stdio":
		return mcpserver.ServeStdio(mcpSrv)
	case "sse":
		return startSSEServer(ctx, webSettings(cmd, store.Get()), mcpSrv, logger)
	case "http", "web":
		settings := webSettings(cmd, store.Get())
		streamable := mcpserver.NewStreamableHTTPServer(mcpSrv,
			mcpserver.WithEndpointPath(settings.EndpointPath),
			mcpserver.WithHeartbeatInterval(30*time.Second),
			mcpserver.WithLogger(&logrusAdapter{logger: logger}),
		)

		opts := []web.Option{
			web.WithMCPHandler(streamable),
			web.WithAuthToken(cmd.String("auth-token")),
		}
		if transport == "http" {
			opts = append(opts, web.WithoutPages())
		}

		state := config.LoadState(config.DefaultStatePath())
		srv, err := web.NewServer(logger, overrideSource{store: store, web: settings}, state, opts...)
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx, ":"+settings.Port)
	default:
		return fmt.Errorf("unsupported transport: %s", transport)
	}
}

// overrideSource applies flag overrides on top of the live configuration
type overrideSource struct {
	store *config.Store
	web   config.WebConfig
}

func (o overrideSource) Get() *config.Config {
	cfg := *o.store.Get()
	cfg.Web = o.web
	return &cfg
}

// startSSEServer serves the legacy SSE transport with graceful shutdown
func startSSEServer(ctx context.Context, settings config.WebConfig, mcpSrv *mcpserver.MCPServer, logger *logrus.Logger) error {
	addr := ":" + settings.Port
	sseServer := mcpserver.NewSSEServer(mcpSrv, mcpserver.WithBaseURL(fmt.Sprintf("%s:%s", settings.BaseURL, settings.Port)))

	serverErr := make(chan error, 1)
	go func() {
		if err := sseServer.Start(addr); err != nil {
			select {
			case serverErr <- err:
			case <-ctx.Done():
			}
		}
	}()
	logger.WithField("addr", addr).Info("SSE server started")

	select {
	case err := <-serverErr:
		return fmt.Errorf("SSE server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sseServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("SSE server shutdown failed")
		return err
	}
	return nil
}

// performCleanup handles cleanup of resources on shutdown
func performCleanup(logger *logrus.Logger) {
	if err := tools.GetGlobalFailureLogger().Close(); err != nil {
		logger.WithError(err).Warn("Failed to close conversion failure logger")
	}

	if shutdown := tracerShutdown.Load(); shutdown != nil {
		if err := (*shutdown)(); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
	}

	// Closed last since the logger may be writing to it
	if file := debugLogFile.Load(); file != nil {
		_ = file.Close()
	}
}

// logrusAdapter adapts logrus.Logger to the mcp-go util.Logger interface
type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *logrusAdapter) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}
