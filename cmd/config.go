package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nspady/google-calendar-mcp-sub000/internal/executor"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
)

const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"

	registryStoreMemory = "memory"
	registryStoreRedis  = "redis"
)

// ServeConfig collects every serve setting after flags, environment and
// the optional env file have been applied.
type ServeConfig struct {
	Transport string
	HTTPAddr  string
	Stateless bool
	ReadOnly  bool
	Debug     bool
	LogFormat string

	// Accounts restricts the server to these account IDs. Empty means every
	// account with a stored token.
	Accounts []string
	TokenDir string
	APIQPS   float64
	APIBurst int

	Executor executor.Config
	Registry RegistryConfig
	Metrics  MetricsConfig
}

// RegistryConfig selects and tunes the calendar registry snapshot store.
type RegistryConfig struct {
	TTL   time.Duration
	Store string
	Redis RedisConfig
}

// RedisConfig holds the Redis connection used by the redis registry store.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// MetricsConfig holds the dedicated metrics server settings.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// Validate checks the combination of settings.
func (c *ServeConfig) Validate() error {
	switch c.Transport {
	case transportStdio, transportStreamableHTTP:
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", c.Transport)
	}
	switch c.Registry.Store {
	case registryStoreMemory:
	case registryStoreRedis:
		if c.Registry.Redis.Addr == "" {
			return fmt.Errorf("registry store redis requires --redis-addr or REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unsupported registry store: %s (supported: memory, redis)", c.Registry.Store)
	}
	if c.Executor.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.Executor.MaxConcurrency)
	}
	if c.Executor.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.Executor.RetryAttempts)
	}
	if c.Registry.TTL <= 0 {
		return fmt.Errorf("registry TTL must be positive, got %s", c.Registry.TTL)
	}
	return nil
}

// addAccountFlags binds the flags shared by serve and calendars.
func addAccountFlags(cmd *cobra.Command, cfg *ServeConfig, accounts *string) {
	cmd.Flags().StringVar(accounts, "accounts", "", "Comma-separated account IDs to serve (default: every stored account). Can also use GOOGLE_ACCOUNTS env var.")
	cmd.Flags().StringVar(&cfg.TokenDir, "token-dir", "", "Directory holding per-account token files (default: user cache dir). Can also use GOOGLE_TOKEN_DIR env var.")
	cmd.Flags().Float64Var(&cfg.APIQPS, "api-qps", 5, "Maximum Google API requests per second per account (0 disables). Can also use GOOGLE_API_QPS env var.")
	cmd.Flags().IntVar(&cfg.APIBurst, "api-burst", 10, "Burst size for the per-account API rate limit. Can also use GOOGLE_API_BURST env var.")
	cmd.Flags().DurationVar(&cfg.Registry.TTL, "registry-ttl", registry.DefaultTTL, "How long the merged calendar view is cached. Can also use REGISTRY_TTL env var.")
	cmd.Flags().StringVar(&cfg.Registry.Store, "registry-store", registryStoreMemory, "Registry snapshot store: memory or redis. Can also use REGISTRY_STORE env var.")
	cmd.Flags().StringVar(&cfg.Registry.Redis.Addr, "redis-addr", "", "Redis address for the redis registry store (e.g. localhost:6379). Can also use REDIS_ADDR env var.")
	cmd.Flags().StringVar(&cfg.Registry.Redis.Password, "redis-password", "", "Redis password. Can also use REDIS_PASSWORD env var.")
	cmd.Flags().IntVar(&cfg.Registry.Redis.DB, "redis-db", 0, "Redis database number. Can also use REDIS_DB env var.")
	cmd.Flags().StringVar(&cfg.Registry.Redis.KeyPrefix, "redis-key-prefix", registry.DefaultRedisKeyPrefix, "Prefix for registry keys in Redis. Can also use REDIS_KEY_PREFIX env var.")
	cmd.Flags().IntVar(&cfg.Executor.MaxConcurrency, "max-concurrency", executor.DefaultMaxConcurrency, "Maximum concurrent Google API calls per fan-out. Can also use EXECUTOR_MAX_CONCURRENCY env var.")
	cmd.Flags().DurationVar(&cfg.Executor.PerCallTimeout, "call-timeout", executor.DefaultPerCallTimeout, "Timeout for one Google API attempt. Can also use EXECUTOR_CALL_TIMEOUT env var.")
	cmd.Flags().IntVar(&cfg.Executor.RetryAttempts, "retry-attempts", executor.DefaultRetryAttempts, "Attempts per call including the first. Can also use EXECUTOR_RETRY_ATTEMPTS env var.")
	cmd.Flags().DurationVar(&cfg.Executor.BaseRetryDelay, "retry-base-delay", executor.DefaultBaseRetryDelay, "Base delay of the exponential retry backoff. Can also use EXECUTOR_RETRY_BASE_DELAY env var.")
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing default .env is not an error.
func loadEnvFile(path string, explicit bool) error {
	if path == "" {
		return nil
	}
	if !explicit {
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// loadServeEnvVars fills settings from environment variables. Environment
// variables only override flag values when the flag was not explicitly set.
func loadServeEnvVars(cmd *cobra.Command, cfg *ServeConfig, accounts *string) error {
	flags := cmd.Flags()
	env := func(flag, name string) (string, bool) {
		if flags.Lookup(flag) == nil || flags.Changed(flag) {
			return "", false
		}
		v := os.Getenv(name)
		return v, v != ""
	}

	if v, ok := env("transport", "MCP_TRANSPORT"); ok {
		cfg.Transport = v
	}
	if v, ok := env("http-addr", "MCP_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := env("log-format", "LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := env("accounts", "GOOGLE_ACCOUNTS"); ok {
		*accounts = v
	}
	if v, ok := env("token-dir", "GOOGLE_TOKEN_DIR"); ok {
		cfg.TokenDir = v
	}
	if v, ok := env("registry-store", "REGISTRY_STORE"); ok {
		cfg.Registry.Store = v
	}
	if v, ok := env("redis-addr", "REDIS_ADDR"); ok {
		cfg.Registry.Redis.Addr = v
	}
	if v, ok := env("redis-password", "REDIS_PASSWORD"); ok {
		cfg.Registry.Redis.Password = v
	}
	if v, ok := env("redis-key-prefix", "REDIS_KEY_PREFIX"); ok {
		cfg.Registry.Redis.KeyPrefix = v
	}
	if v, ok := env("metrics-addr", "METRICS_ADDR"); ok {
		cfg.Metrics.Addr = v
	}

	bools := []struct {
		flag, name string
		dst        *bool
	}{
		{"read-only", "MCP_READ_ONLY", &cfg.ReadOnly},
		{"stateless", "MCP_STATELESS", &cfg.Stateless},
		{"debug", "MCP_DEBUG", &cfg.Debug},
		{"metrics-enabled", "METRICS_ENABLED", &cfg.Metrics.Enabled},
	}
	for _, b := range bools {
		if v, ok := env(b.flag, b.name); ok {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s value %q (expected true/false)", b.name, v)
			}
			*b.dst = parsed
		}
	}

	ints := []struct {
		flag, name string
		dst        *int
	}{
		{"api-burst", "GOOGLE_API_BURST", &cfg.APIBurst},
		{"redis-db", "REDIS_DB", &cfg.Registry.Redis.DB},
		{"max-concurrency", "EXECUTOR_MAX_CONCURRENCY", &cfg.Executor.MaxConcurrency},
		{"retry-attempts", "EXECUTOR_RETRY_ATTEMPTS", &cfg.Executor.RetryAttempts},
	}
	for _, i := range ints {
		if v, ok := env(i.flag, i.name); ok {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s value %q (expected an integer)", i.name, v)
			}
			*i.dst = parsed
		}
	}

	durations := []struct {
		flag, name string
		dst        *time.Duration
	}{
		{"registry-ttl", "REGISTRY_TTL", &cfg.Registry.TTL},
		{"call-timeout", "EXECUTOR_CALL_TIMEOUT", &cfg.Executor.PerCallTimeout},
		{"retry-base-delay", "EXECUTOR_RETRY_BASE_DELAY", &cfg.Executor.BaseRetryDelay},
	}
	for _, d := range durations {
		if v, ok := env(d.flag, d.name); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s value %q (expected a duration like 30s)", d.name, v)
			}
			*d.dst = parsed
		}
	}

	if v, ok := env("api-qps", "GOOGLE_API_QPS"); ok {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid GOOGLE_API_QPS value %q (expected a number)", v)
		}
		cfg.APIQPS = parsed
	}

	cfg.Accounts = parseCommaSeparatedList(*accounts)
	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	return nil
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
