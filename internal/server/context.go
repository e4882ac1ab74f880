package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nspady/google-calendar-mcp-sub000/internal/batch"
	"github.com/nspady/google-calendar-mcp-sub000/internal/calendar"
	"github.com/nspady/google-calendar-mcp-sub000/internal/executor"
	"github.com/nspady/google-calendar-mcp-sub000/internal/google"
	"github.com/nspady/google-calendar-mcp-sub000/internal/instrumentation"
	"github.com/nspady/google-calendar-mcp-sub000/internal/logging"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
)

// ErrNoAccounts is returned when no account has a usable token.
var ErrNoAccounts = errors.New("no authenticated Google accounts; run the auth command first")

// ServerContext holds the state shared by every tool invocation.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	tokenProvider google.TokenProvider
	clientOpts    []calendar.ClientOption
	allowed       []string

	registry    *registry.Registry
	executor    *executor.Executor
	pipeline    *batch.Pipeline
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	logger      *slog.Logger
	readOnly    bool

	mu       sync.RWMutex
	clients  map[string]calendar.Service
	pinned   map[string]bool
	shutdown bool
}

// Option configures a ServerContext.
type Option func(*ServerContext)

// WithTokenProvider sets where account tokens come from.
func WithTokenProvider(p google.TokenProvider) Option {
	return func(sc *ServerContext) { sc.tokenProvider = p }
}

// WithRegistry sets the calendar registry.
func WithRegistry(r *registry.Registry) Option {
	return func(sc *ServerContext) { sc.registry = r }
}

// WithExecutor sets the fan-out executor.
func WithExecutor(e *executor.Executor) Option {
	return func(sc *ServerContext) { sc.executor = e }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(sc *ServerContext) { sc.metrics = m }
}

// WithAuditLogger sets the tool audit logger.
func WithAuditLogger(a *instrumentation.AuditLogger) Option {
	return func(sc *ServerContext) { sc.auditLogger = a }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(sc *ServerContext) { sc.logger = l }
}

// WithAllowedAccounts limits the account directory to ids.
func WithAllowedAccounts(ids []string) Option {
	return func(sc *ServerContext) { sc.allowed = ids }
}

// WithClientOptions are applied to every calendar client created.
func WithClientOptions(opts ...calendar.ClientOption) Option {
	return func(sc *ServerContext) { sc.clientOpts = append(sc.clientOpts, opts...) }
}

// WithClient registers a ready-made client for account. Such clients are
// always part of the directory and survive RefreshAccounts.
func WithClient(account string, client calendar.Service) Option {
	return func(sc *ServerContext) {
		sc.clients[account] = client
		sc.pinned[account] = true
	}
}

// WithReadOnly marks the server as read-only.
func WithReadOnly(readOnly bool) Option {
	return func(sc *ServerContext) { sc.readOnly = readOnly }
}

// NewServerContext creates a server context. Missing components get defaults.
func NewServerContext(ctx context.Context, opts ...Option) (*ServerContext, error) {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		clients: make(map[string]calendar.Service),
		pinned:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(sc)
	}

	if sc.logger == nil {
		sc.logger = slog.Default()
	}
	if sc.tokenProvider == nil {
		sc.tokenProvider = google.NewFileTokenProvider(nil)
	}
	if sc.registry == nil {
		sc.registry = registry.New(registry.WithLogger(sc.logger), registry.WithMetrics(sc.metrics))
	}
	if sc.executor == nil {
		sc.executor = executor.New(executor.DefaultConfig(),
			executor.WithLogger(sc.logger),
			executor.WithMetrics(sc.metrics),
			executor.WithStatusFunc(calendar.StatusCode))
	}
	sc.pipeline = batch.New(sc.registry, batch.WithLogger(sc.logger), batch.WithMetrics(sc.metrics))
	sc.logger = logging.WithComponent(sc.logger, "server")

	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

func (sc *ServerContext) Registry() *registry.Registry              { return sc.registry }
func (sc *ServerContext) Executor() *executor.Executor              { return sc.executor }
func (sc *ServerContext) Pipeline() *batch.Pipeline                 { return sc.pipeline }
func (sc *ServerContext) Metrics() *instrumentation.Metrics         { return sc.metrics }
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger { return sc.auditLogger }
func (sc *ServerContext) Logger() *slog.Logger                      { return sc.logger }
func (sc *ServerContext) ReadOnly() bool                            { return sc.readOnly }

// AccountIDs lists the configured accounts, sorted.
func (sc *ServerContext) AccountIDs() ([]string, error) {
	sc.mu.RLock()
	pinned := make([]string, 0, len(sc.pinned))
	for id := range sc.pinned {
		pinned = append(pinned, id)
	}
	sc.mu.RUnlock()

	ids := pinned
	if len(sc.allowed) > 0 {
		ids = append(ids, sc.allowed...)
	} else {
		listed, err := sc.tokenProvider.ListAccounts()
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}
		ids = append(ids, listed...)
	}

	sort.Strings(ids)
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out, nil
}

// TokenSaver returns where newly authorized tokens are stored, or false when
// the token provider is read-only.
func (sc *ServerContext) TokenSaver() (google.TokenSaver, bool) {
	if p, ok := sc.tokenProvider.(interface{ Store() *google.FileTokenStore }); ok && p.Store() != nil {
		return p.Store(), true
	}
	return nil, false
}

// HasToken reports whether account can be used.
func (sc *ServerContext) HasToken(account string) bool {
	sc.mu.RLock()
	_, ok := sc.clients[account]
	sc.mu.RUnlock()
	return ok || sc.tokenProvider.HasTokenForAccount(account)
}

// ClientForAccount returns the cached client for account, creating it from
// the token provider on first use.
func (sc *ServerContext) ClientForAccount(account string) (calendar.Service, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil, fmt.Errorf("server is shutting down")
	}
	if client, ok := sc.clients[account]; ok {
		return client, nil
	}
	if !sc.tokenProvider.HasTokenForAccount(account) {
		return nil, fmt.Errorf("%w: %s has no token", registry.ErrAccountNotFound, account)
	}

	client, err := calendar.NewClientForAccount(sc.ctx, account, sc.tokenProvider, sc.clientOpts...)
	if err != nil {
		return nil, err
	}
	sc.clients[account] = client
	return client, nil
}

// Accounts builds the account directory for one request. Accounts whose
// client cannot be created are logged and left out.
func (sc *ServerContext) Accounts() (map[string]calendar.Service, error) {
	ids, err := sc.AccountIDs()
	if err != nil {
		return nil, err
	}

	accounts := make(map[string]calendar.Service, len(ids))
	for _, id := range ids {
		client, err := sc.ClientForAccount(id)
		if err != nil {
			sc.logger.Warn("skipping account", logging.AccountHash(id), logging.Err(err))
			continue
		}
		accounts[id] = client
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	return accounts, nil
}

// RefreshAccounts drops cached clients and registry snapshots so new or
// re-authenticated accounts are picked up.
func (sc *ServerContext) RefreshAccounts(ctx context.Context) error {
	sc.mu.Lock()
	for id := range sc.clients {
		if !sc.pinned[id] {
			delete(sc.clients, id)
		}
	}
	sc.mu.Unlock()
	return sc.registry.ClearCache(ctx)
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
