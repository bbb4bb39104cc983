package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseURL  string `json:"base_url"`
	PageSize int    `json:"page_size"`
	Headless bool   `json:"headless"`
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.json5"), []byte(`{
		// comments are allowed
		base_url: "https://example.com",
		page_size: 10,
	}`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.local.json5"), []byte(`{
		page_size: 25,
	}`), 0600))

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://example.com", cfg.BaseURL)
	require.Equal(t, 25, cfg.PageSize)
}

func TestReadConfigExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TENDERSCRAPE_TEST_URL", "https://portal.test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.json5"), []byte(`{base_url: "${TENDERSCRAPE_TEST_URL}"}`), 0600))

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://portal.test", cfg.BaseURL)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "missing.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDotenvMissingFile(t *testing.T) {
	require.NoError(t, LoadDotenv(t.TempDir()))
}

func TestLayers(t *testing.T) {
	require.Equal(t, []string{"conf.d/app.json5", "conf.d/app.local.json5"}, Layers("conf.d/app.json5"))
	require.Equal(t, []string{"v1.2/app", "v1.2/app.local"}, Layers("v1.2/app"))
}

func TestReadConfigOnlyLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.local.json5"), []byte(`{headless: true}`), 0600))

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "app.json5"))
	require.NoError(t, err)
	require.True(t, cfg.Headless)
}
