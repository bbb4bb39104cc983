package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), DefaultName))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORTAL_URL=https://portal.test\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultName), []byte(`{
		base_url: "${PORTAL_URL}",
		mode: "api",
		headless: false,
		page_size: 50,
		request_timeout: "10s",
		retry: { max_attempts: 5 },
		delay: { min: 0.5, max: 1 },
	}`), 0600))
	t.Cleanup(func() { os.Unsetenv("PORTAL_URL") })

	cfg, err := Load(filepath.Join(dir, DefaultName))
	require.NoError(t, err)
	require.Equal(t, "https://portal.test", cfg.BaseURL)
	require.Equal(t, ModeAPI, cfg.Mode)
	require.False(t, *cfg.Headless)
	require.Equal(t, 50, cfg.PageSize)
	require.Equal(t, 10*time.Second, cfg.RequestTimeout.Std())
	require.Equal(t, 5, cfg.Retry.MaxAttempts)
	require.Equal(t, 2.0, cfg.Retry.BackoffBase)
	require.Equal(t, 500*time.Millisecond, cfg.Delay.Min.Std())
	require.Equal(t, time.Second, cfg.Delay.Max.Std())
}

func TestValidate(t *testing.T) {
	table := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "relative base url", mutate: func(c *Config) { c.BaseURL = "/tenders" }},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "turbo" }},
		{name: "page size too large", mutate: func(c *Config) { c.PageSize = 500 }},
		{name: "inverted delay", mutate: func(c *Config) { c.Delay.Max = c.Delay.Min - 1 }},
		{name: "no attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{name: "flat backoff", mutate: func(c *Config) { c.Retry.BackoffBase = 1 }},
		{name: "no workers", mutate: func(c *Config) { c.Download.Workers = 0 }},
		{name: "no database", mutate: func(c *Config) { c.Database = Database{} }},
	}
	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			cfg := Default()
			test.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadOtlp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultName), []byte(`{
		otlp: {
			traces: { http_endpoint: "http://collector:4318/v1/traces" },
			metrics: { grpc_endpoint: "http://collector:4317", headers: { "x-team": "tenders" } },
		},
	}`), 0600))

	cfg, err := Load(filepath.Join(dir, DefaultName))
	require.NoError(t, err)
	require.True(t, cfg.Otlp.Enabled())
	require.Equal(t, "http://collector:4318/v1/traces", cfg.Otlp.Traces.HttpEndpoint)
	require.Equal(t, "http://collector:4317", cfg.Otlp.Metrics.GrpcEndpoint)
	require.Equal(t, map[string]string{"x-team": "tenders"}, cfg.Otlp.Metrics.Headers)
	require.False(t, Default().Otlp.Enabled())
}
