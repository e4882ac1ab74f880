package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nspady/google-calendar-mcp-sub000/internal/executor"
	"github.com/nspady/google-calendar-mcp-sub000/internal/registry"
)

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "work",
			expected: []string{"work"},
		},
		{
			name:     "multiple values",
			input:    "work,personal",
			expected: []string{"work", "personal"},
		},
		{
			name:     "values with spaces around comma",
			input:    "work, personal",
			expected: []string{"work", "personal"},
		},
		{
			name:     "trailing comma",
			input:    "work,personal,",
			expected: []string{"work", "personal"},
		},
		{
			name:     "multiple consecutive commas",
			input:    "work,,personal",
			expected: []string{"work", "personal"},
		},
		{
			name:     "only commas and spaces",
			input:    ",  , , ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseCommaSeparatedList(tt.input))
		})
	}
}

// parseServe parses args with the serve flags and applies the environment.
func parseServe(t *testing.T, args ...string) (ServeConfig, error) {
	t.Helper()
	var (
		cfg      ServeConfig
		accounts string
	)
	cmd := &cobra.Command{
		Use: "serve",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return loadServeEnvVars(cmd, &cfg, &accounts)
		},
	}
	cmd.Flags().StringVar(&cfg.Transport, "transport", transportStdio, "")
	cmd.Flags().StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "")
	cmd.Flags().BoolVar(&cfg.ReadOnly, "read-only", false, "")
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "")
	cmd.Flags().BoolVar(&cfg.Metrics.Enabled, "metrics-enabled", true, "")
	addAccountFlags(cmd, &cfg, &accounts)

	cmd.SetArgs(args)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return cfg, err
}

func TestLoadServeEnvVars_Defaults(t *testing.T) {
	cfg, err := parseServe(t)
	require.NoError(t, err)

	assert.Equal(t, transportStdio, cfg.Transport)
	assert.Equal(t, registryStoreMemory, cfg.Registry.Store)
	assert.Equal(t, registry.DefaultTTL, cfg.Registry.TTL)
	assert.Equal(t, executor.DefaultMaxConcurrency, cfg.Executor.MaxConcurrency)
	assert.Equal(t, executor.DefaultRetryAttempts, cfg.Executor.RetryAttempts)
	assert.Nil(t, cfg.Accounts)
	assert.True(t, cfg.Metrics.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadServeEnvVars_EnvFallback(t *testing.T) {
	t.Setenv("MCP_TRANSPORT", "Streamable-HTTP")
	t.Setenv("MCP_READ_ONLY", "true")
	t.Setenv("GOOGLE_ACCOUNTS", "work, personal")
	t.Setenv("REGISTRY_TTL", "90s")
	t.Setenv("REGISTRY_STORE", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("EXECUTOR_MAX_CONCURRENCY", "8")
	t.Setenv("GOOGLE_API_QPS", "2.5")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := parseServe(t)
	require.NoError(t, err)

	assert.Equal(t, transportStreamableHTTP, cfg.Transport)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, []string{"work", "personal"}, cfg.Accounts)
	assert.Equal(t, 90*time.Second, cfg.Registry.TTL)
	assert.Equal(t, registryStoreRedis, cfg.Registry.Store)
	assert.Equal(t, "localhost:6379", cfg.Registry.Redis.Addr)
	assert.Equal(t, 2, cfg.Registry.Redis.DB)
	assert.Equal(t, 8, cfg.Executor.MaxConcurrency)
	assert.Equal(t, 2.5, cfg.APIQPS)
	assert.False(t, cfg.Metrics.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadServeEnvVars_FlagWins(t *testing.T) {
	t.Setenv("MCP_TRANSPORT", "streamable-http")
	t.Setenv("EXECUTOR_MAX_CONCURRENCY", "8")

	cfg, err := parseServe(t, "--transport", "stdio", "--max-concurrency", "3")
	require.NoError(t, err)
	assert.Equal(t, transportStdio, cfg.Transport)
	assert.Equal(t, 3, cfg.Executor.MaxConcurrency)
}

func TestLoadServeEnvVars_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bool", key: "MCP_READ_ONLY", val: "maybe"},
		{name: "int", key: "REDIS_DB", val: "two"},
		{name: "duration", key: "REGISTRY_TTL", val: "5"},
		{name: "float", key: "GOOGLE_API_QPS", val: "fast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := parseServe(t)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestServeConfig_Validate(t *testing.T) {
	valid := func() ServeConfig {
		return ServeConfig{
			Transport: transportStdio,
			Executor:  executor.DefaultConfig(),
			Registry:  RegistryConfig{TTL: time.Minute, Store: registryStoreMemory},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*ServeConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*ServeConfig) {}},
		{name: "unknown transport", mutate: func(c *ServeConfig) { c.Transport = "sse" }, wantErr: "unsupported transport"},
		{name: "unknown store", mutate: func(c *ServeConfig) { c.Registry.Store = "etcd" }, wantErr: "unsupported registry store"},
		{name: "redis without addr", mutate: func(c *ServeConfig) { c.Registry.Store = registryStoreRedis }, wantErr: "redis-addr"},
		{name: "zero concurrency", mutate: func(c *ServeConfig) { c.Executor.MaxConcurrency = 0 }, wantErr: "max concurrency"},
		{name: "zero retries", mutate: func(c *ServeConfig) { c.Executor.RetryAttempts = 0 }, wantErr: "retry attempts"},
		{name: "zero ttl", mutate: func(c *ServeConfig) { c.Registry.TTL = 0 }, wantErr: "TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GCAL_TEST_ENV_FILE_VALUE=from-file\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("GCAL_TEST_ENV_FILE_VALUE") })

	require.NoError(t, loadEnvFile(path, true))
	assert.Equal(t, "from-file", os.Getenv("GCAL_TEST_ENV_FILE_VALUE"))

	assert.NoError(t, loadEnvFile(filepath.Join(dir, "missing.env"), false))
	assert.Error(t, loadEnvFile(filepath.Join(dir, "missing.env"), true))
}

func TestNewRegistryStore_Memory(t *testing.T) {
	store, closeStore, err := newRegistryStore(t.Context(), RegistryConfig{Store: registryStoreMemory})
	require.NoError(t, err)
	defer closeStore()
	assert.IsType(t, &registry.MemoryStore{}, store)
}

func TestRegisterAllTools(t *testing.T) {
	mcpSrv := newMCPServer()
	sc, closeStore, err := newServerContext(t.Context(), ServeConfig{
		TokenDir: t.TempDir(),
		Executor: executor.DefaultConfig(),
		Registry: RegistryConfig{TTL: time.Minute, Store: registryStoreMemory},
	}, slog.New(slog.DiscardHandler), nil, nil)
	require.NoError(t, err)
	defer closeStore()
	defer func() { _ = sc.Shutdown() }()

	require.NoError(t, registerAllTools(mcpSrv, sc, true))
	tools := mcpSrv.ListTools()
	assert.Contains(t, tools, "list-events")
	assert.NotContains(t, tools, "delete-event")
}

func TestGenerateToolsMarkdown(t *testing.T) {
	tools := []mcp.Tool{
		mcp.NewTool("list-events",
			mcp.WithDescription("List events"),
			mcp.WithString("calendarId", mcp.Required(), mcp.Description("Calendar ID")),
		),
		mcp.NewTool("get-current-time", mcp.WithDescription("Current time")),
		mcp.NewTool("manage-accounts", mcp.WithDescription("Accounts")),
	}

	md := generateToolsMarkdown(tools)
	assert.Contains(t, md, "- [Events](#events)")
	assert.Contains(t, md, "- [Calendars & Accounts](#calendars--accounts)")
	assert.Contains(t, md, "## Scheduling")
	assert.Contains(t, md, "### list-events")
	assert.Contains(t, md, "| `calendarId` | string | yes | Calendar ID |")
	assert.Contains(t, md, "No arguments.")
}

func TestGenerateToolsMarkdown_MarksWriteTools(t *testing.T) {
	md := generateToolsMarkdown([]mcp.Tool{
		mcp.NewTool("delete-event", mcp.WithDescription("Delete")),
		mcp.NewTool("get-event", mcp.WithDescription("Get")),
	})
	assert.Equal(t, 1, strings.Count(md, "Not available with `--read-only`"))
	assert.Less(t, strings.Index(md, "### delete-event"), strings.Index(md, "Not available"))
	assert.Less(t, strings.Index(md, "Not available"), strings.Index(md, "### get-event"))
}

func TestToolCategory(t *testing.T) {
	assert.Equal(t, "Events", toolCategory("create-events"))
	assert.Equal(t, "Events", toolCategory("get-event"))
	assert.Equal(t, "Scheduling", toolCategory("check-conflicts"))
	assert.Equal(t, "Calendars & Accounts", toolCategory("list-calendars"))
	assert.Equal(t, "Other", toolCategory("ping"))
}
