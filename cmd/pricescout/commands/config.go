package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"pricescout-backend/internal/components/telemetry"
	"pricescout-backend/internal/extraction"
	"pricescout-backend/internal/pricemonitor"
	"pricescout-backend/pkg/configutil"
	"time"
)

const apiKeyEnv = "EXTRACTION_API_KEY"

const defaultEndpoint = "https://mino.ai/v1/automation/run-sse"

type ExtractionConfig struct {
	Endpoint string `json:"endpoint"`
	ApiKey   string `json:"api_key"`
	// durations are written like "120s" or "1m30s"
	Timeout           string  `json:"timeout"`
	BackoffBase       string  `json:"backoff_base"`
	MaxRetries        int     `json:"max_retries"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

type MonitorConfig struct {
	Delay   string                      `json:"delay"`
	Cron    string                      `json:"cron"`
	Sources []pricemonitor.SourceConfig `json:"sources"`
}

type SearchConfig struct {
	MaxSources int `json:"max_sources"`
}

type Config struct {
	// Timezone is an IANA location name, empty means UTC.
	Timezone   string                    `json:"timezone"`
	Extraction ExtractionConfig          `json:"extraction"`
	Database   configutil.Database       `json:"database"`
	Monitor    MonitorConfig             `json:"monitor"`
	Search     SearchConfig              `json:"search"`
	Notify     pricemonitor.EmailOptions `json:"notify"`
	Telemetry  telemetry.OtelConfig      `json:"telemetry"`
}

func (c *Config) SetDefaults() {
	if c.Extraction.Endpoint == "" {
		c.Extraction.Endpoint = defaultEndpoint
	}
	if c.Database.File == "" && c.Database.Url == "" {
		c.Database.File = "price_monitor.db"
	}
	if c.Monitor.Cron == "" {
		c.Monitor.Cron = "0 */6 * * *"
	}
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return d, nil
}

// ClientOptions returns the extraction client options, the api key in the
// environment wins over the one in the file.
func (c ExtractionConfig) ClientOptions() (extraction.ClientOptions, error) {
	timeout, err := parseDuration("extraction.timeout", c.Timeout)
	if err != nil {
		return extraction.ClientOptions{}, err
	}
	backoffBase, err := parseDuration("extraction.backoff_base", c.BackoffBase)
	if err != nil {
		return extraction.ClientOptions{}, err
	}

	apiKey := c.ApiKey
	if env, ok := os.LookupEnv(apiKeyEnv); ok && env != "" {
		apiKey = env
	}
	if apiKey == "" {
		return extraction.ClientOptions{}, fmt.Errorf("an extraction api key was not specified, set extraction.api_key or %s", apiKeyEnv)
	}

	return extraction.ClientOptions{
		Endpoint:          c.Endpoint,
		APIKey:            apiKey,
		Timeout:           timeout,
		MaxRetries:        c.MaxRetries,
		BackoffBase:       backoffBase,
		RequestsPerSecond: c.RequestsPerSecond,
	}, nil
}

func (c MonitorConfig) Options(notifier pricemonitor.Notifier) (pricemonitor.MonitorOptions, error) {
	delay, err := parseDuration("monitor.delay", c.Delay)
	if err != nil {
		return pricemonitor.MonitorOptions{}, err
	}
	return pricemonitor.MonitorOptions{
		Delay:    delay,
		Notifier: notifier,
	}, nil
}

// readConfig reads the config file, a missing file is not an error as long as
// the api key comes from the environment.
func readConfig() (Config, error) {
	var cfg Config
	var err error
	if filepath.IsAbs(configPath) {
		cfg, err = configutil.ReadConfig[Config](configPath)
	} else {
		cfg, err = configutil.ReadRecursively[Config](configPath)
	}
	if os.IsNotExist(err) {
		cfg = Config{}
		cfg.SetDefaults()
		return cfg, nil
	}
	return cfg, err
}
