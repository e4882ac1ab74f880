package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/executor"
	"github.com/nspady/google-calendar-mcp-sub000/internal/google"
	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
	"github.com/nspady/google-calendar-mcp-sub000/internal/logging"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
	"github.com/nspady/google-calendar-mcp-sub000/internal/resources"
	"github.com/nspady/google-calendar-mcp-sub000/internal/server"
	"github.com/nspady/google-calendar-mcp-sub000/internal/tools/calendar_tools"
	"github.com/nspady/google-calendar-mcp-sub000/internal/tools/google_tools"
)

const serverName = "google-calendar-mcp"

func newServeCmd() *cobra.Command {
	var (
		cfg      ServeConfig
		accounts string
		envFile  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server with Google Calendar tools
for every configured account.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport at /mcp, with /healthz and /readyz

Accounts:
  Each account is a token file created by the auth command. All of them are
  served unless --accounts limits the set. Calendars visible to several
  accounts are read through the account with the best access and written
  through the account with owner or writer access.

Read-only mode:
  --read-only removes create-event, create-events, update-event and
  delete-event from the tool list.

Configuration:
  Every flag has an environment variable fallback that applies when the flag
  is not set. --env-file loads variables from a file first (default: .env
  when present).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadEnvFile(envFile, cmd.Flags().Changed("env-file")); err != nil {
				return err
			}
			if err := loadServeEnvVars(cmd, &cfg, &accounts); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Load environment variables from this file before reading configuration")
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging. Can also use MCP_DEBUG env var.")
	cmd.Flags().StringVar(&cfg.LogFormat, "log-format", logging.FormatText, "Log format: text or json. Can also use LOG_FORMAT env var.")
	cmd.Flags().StringVar(&cfg.Transport, "transport", transportStdio, "Transport type: stdio or streamable-http. Can also use MCP_TRANSPORT env var.")
	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport). Can also use MCP_HTTP_ADDR env var.")
	cmd.Flags().BoolVar(&cfg.Stateless, "stateless", false, "Serve streamable HTTP without sessions. Can also use MCP_STATELESS env var.")
	cmd.Flags().BoolVar(&cfg.ReadOnly, "read-only", false, "Disable tools that create, change or delete events. Can also use MCP_READ_ONLY env var.")
	cmd.Flags().BoolVar(&cfg.Metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port (streamable-http only). Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.Metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")
	addAccountFlags(cmd, &cfg, &accounts)

	return cmd
}

func runServe(cfg ServeConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// stdout carries the stdio protocol; logs always go to stderr.
	logger := slog.New(logging.NewHandler(os.Stderr, cfg.LogFormat, cfg.Debug))
	slog.SetDefault(logger)

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceName = serverName
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("instrumentation shutdown failed", logging.Err(err))
		}
	}()

	auditLogger := instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)
	serverContext, closeStore, err := newServerContext(shutdownCtx, cfg, logger, provider.Metrics(), auditLogger)
	if err != nil {
		return err
	}
	defer closeStore()
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	mcpSrv := newMCPServer()
	if err := registerAllTools(mcpSrv, serverContext, cfg.ReadOnly); err != nil {
		return err
	}

	ids, err := serverContext.AccountIDs()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(ids) == 0 {
		logger.Warn("no accounts configured; run the auth command to add one")
	}
	logger.Info("starting server",
		"transport", cfg.Transport,
		"accounts", len(ids),
		"read_only", cfg.ReadOnly,
		"registry_store", cfg.Registry.Store)

	switch cfg.Transport {
	case transportStdio:
		return runStdioServer(mcpSrv)
	case transportStreamableHTTP:
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, cfg, provider, logger)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", cfg.Transport)
	}
}

// newServerContext builds the registry, executor and account wiring shared
// by every command that talks to Google Calendar. The returned func closes
// the registry store.
func newServerContext(ctx context.Context, cfg ServeConfig, logger *slog.Logger, metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger) (*server.ServerContext, func(), error) {
	store, closeStore, err := newRegistryStore(ctx, cfg.Registry)
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New(
		registry.WithStore(store),
		registry.WithTTL(cfg.Registry.TTL),
		registry.WithLogger(logger),
		registry.WithMetrics(metrics),
	)
	exec := executor.New(cfg.Executor,
		executor.WithLogger(logger),
		executor.WithMetrics(metrics),
		executor.WithStatusFunc(calendar.StatusCode),
	)
	tokens := google.NewFileTokenProvider(google.NewFileTokenStore(cfg.TokenDir))

	opts := []server.Option{
		server.WithTokenProvider(tokens),
		server.WithRegistry(reg),
		server.WithExecutor(exec),
		server.WithMetrics(metrics),
		server.WithLogger(logger),
		server.WithAllowedAccounts(cfg.Accounts),
		server.WithReadOnly(cfg.ReadOnly),
		server.WithClientOptions(
			calendar.WithRateLimit(cfg.APIQPS, cfg.APIBurst),
			calendar.WithClientMetrics(metrics),
			calendar.WithClientLogger(logger),
		),
	}
	if audit != nil {
		opts = append(opts, server.WithAuditLogger(audit))
	}

	sc, err := server.NewServerContext(ctx, opts...)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to create server context: %w", err)
	}
	return sc, closeStore, nil
}

// newRegistryStore returns the snapshot store selected by cfg.
func newRegistryStore(ctx context.Context, cfg RegistryConfig) (registry.SnapshotStore, func(), error) {
	switch cfg.Store {
	case "", registryStoreMemory:
		return registry.NewMemoryStore(), func() {}, nil
	case registryStoreRedis:
		client, err := registry.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return registry.NewRedisStore(client, cfg.Redis.KeyPrefix), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported registry store: %s", cfg.Store)
	}
}

func newMCPServer() *mcpserver.MCPServer {
	return mcpserver.NewMCPServer(serverName, version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
		mcpserver.WithRecovery(),
	)
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools and resources.
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Calendar",
			register: func() error {
				return calendar_tools.RegisterCalendarTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Account Authorization",
			register: func() error {
				return google_tools.RegisterGoogleTools(mcpSrv, ctx)
			},
		},
		{
			name: "Calendar Resources",
			register: func() error {
				return resources.RegisterCalendarResources(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, cfg ServeConfig, provider *instrumentation.Provider, logger *slog.Logger) error {
	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled && provider.Enabled() && provider.UsesPrometheus() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Metrics.Addr,
			InstrumentationProvider: provider,
			Logger:                  logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", logging.Err(err))
			}
		}()
	}

	health := server.NewHealthChecker(sc)
	httpServer := server.NewHTTPServer(mcpSrv,
		server.WithHealthChecker(health),
		server.WithHTTPMetrics(provider.Metrics()),
		server.WithHTTPLogger(logger),
		server.WithStateless(cfg.Stateless),
	)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()
	health.SetReady(true)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverDone:
		if err != nil {
			runErr = fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", logging.Err(err))
		}
	}

	if runErr == nil {
		logger.Info("HTTP server gracefully stopped")
	}
	return runErr
}
