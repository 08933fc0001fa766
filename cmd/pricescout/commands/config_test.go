package commands

import (
	"os"
	"path/filepath"
	"pricescout-backend/internal/extraction"
	"pricescout-backend/internal/pricemonitor"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func withConfigPath(t *testing.T, path string) {
	previous := configPath
	configPath = path
	t.Cleanup(func() {
		configPath = previous
	})
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	err := os.WriteFile(path, []byte(`{
		// comments are fine in json5
		"extraction": {
			"api_key": "file-key",
			"timeout": "90s",
			"backoff_base": "500ms",
			"max_retries": 5
		},
		"monitor": {
			"delay": "3s",
			"sources": [
				{"name": "Lamp", "url": "https://a.example.com/lamp"}
			]
		},
		"search": {"max_sources": 4}
	}`), 0644)
	require.Nil(t, err)
	withConfigPath(t, path)
	t.Setenv(apiKeyEnv, "")

	cfg, err := readConfig()
	require.Nil(t, err)
	require.Equal(t, "price_monitor.db", cfg.Database.File)
	require.Equal(t, "0 */6 * * *", cfg.Monitor.Cron)
	require.Equal(t, 4, cfg.Search.MaxSources)

	opts, err := cfg.Extraction.ClientOptions()
	require.Nil(t, err)
	expected := extraction.ClientOptions{
		Endpoint:    defaultEndpoint,
		APIKey:      "file-key",
		Timeout:     90 * time.Second,
		MaxRetries:  5,
		BackoffBase: 500 * time.Millisecond,
	}
	if diff := cmp.Diff(expected, opts); diff != "" {
		t.Fatal(diff)
	}

	monitorOpts, err := cfg.Monitor.Options(nil)
	require.Nil(t, err)
	require.Equal(t, 3*time.Second, monitorOpts.Delay)
	require.Equal(t, []pricemonitor.SourceConfig{
		{Name: "Lamp", URL: "https://a.example.com/lamp"},
	}, cfg.Monitor.Sources)
}

func TestReadConfigMissingFile(t *testing.T) {
	withConfigPath(t, filepath.Join(t.TempDir(), "config.json5"))

	cfg, err := readConfig()
	require.Nil(t, err)
	require.Equal(t, defaultEndpoint, cfg.Extraction.Endpoint)
}

func TestApiKeyFromEnvironment(t *testing.T) {
	cfg := Config{Extraction: ExtractionConfig{ApiKey: "file-key"}}
	cfg.SetDefaults()

	t.Setenv(apiKeyEnv, "env-key")
	opts, err := cfg.Extraction.ClientOptions()
	require.Nil(t, err)
	require.Equal(t, "env-key", opts.APIKey)

	t.Setenv(apiKeyEnv, "")
	cfg.Extraction.ApiKey = ""
	_, err = cfg.Extraction.ClientOptions()
	require.NotNil(t, err)
}

func TestInvalidDuration(t *testing.T) {
	_, err := ExtractionConfig{ApiKey: "k", Timeout: "soon"}.ClientOptions()
	require.ErrorContains(t, err, "extraction.timeout")

	_, err = MonitorConfig{Delay: "5"}.Options(nil)
	require.ErrorContains(t, err, "monitor.delay")
}

func TestFormatPercent(t *testing.T) {
	require.Equal(t, "+25.00%", formatPercent(25))
	require.Equal(t, "-3.33%", formatPercent(-3.333))
	require.Equal(t, "0.00%", formatPercent(0))
}
