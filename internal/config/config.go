package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"tenderscrape/internal/components/telemetry"
	"tenderscrape/internal/retry"
	"tenderscrape/lib/configutil"
	"time"
)

const DefaultName = "tenderscrape.json5"

type Mode string

const (
	ModeAPI     Mode = "api"
	ModeBrowser Mode = "browser"
	ModeHybrid  Mode = "hybrid"
)

// Duration accepts either a go duration string ("1.5s") or a number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		parsed, err := time.ParseDuration(string(b[1 : len(b)-1]))
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var seconds float64
	_, err := fmt.Sscan(string(b), &seconds)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Retry struct {
	MaxAttempts int     `json:"max_attempts"`
	BackoffBase float64 `json:"backoff_base"`
}

type Delay struct {
	Min Duration `json:"min"`
	Max Duration `json:"max"`
}

type Download struct {
	Delay   Duration `json:"delay"`
	Workers int      `json:"workers"`
}

type Database struct {
	// File is a local sqlite database.
	File string `json:"file"`
	// Url points at a remote libsql database and takes precedence over File.
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

type FieldPattern struct {
	Field    string   `json:"field"`
	Type     string   `json:"type"`
	Patterns []string `json:"patterns"`
}

type Config struct {
	BaseURL          string               `json:"base_url"`
	Database         Database             `json:"database"`
	DownloadDir      string               `json:"download_dir"`
	ScreenshotDir    string               `json:"screenshot_dir"`
	DiagnosticsDir   string               `json:"diagnostics_dir"`
	Mode             Mode                 `json:"mode"`
	Headless         *bool                `json:"headless"`
	PageSize         int                  `json:"page_size"`
	RequestTimeout   Duration             `json:"request_timeout"`
	CloudflareBypass *bool                `json:"cloudflare_bypass"`
	Timezone         string               `json:"timezone"`
	Retry            Retry                `json:"retry"`
	Delay            Delay                `json:"delay"`
	Download         Download             `json:"download"`
	FieldPatterns    []FieldPattern       `json:"field_patterns"`
	Otlp             telemetry.OtlpConfig `json:"otlp"`
}

func boolPtr(b bool) *bool {
	return &b
}

// Default is the configuration used when no file is present.
func Default() Config {
	return Config{
		BaseURL:          "https://tender.telangana.gov.in",
		Database:         Database{File: "data/tenders.db"},
		DownloadDir:      "data/downloads",
		ScreenshotDir:    "data/screenshots",
		DiagnosticsDir:   "data/diagnostics",
		Mode:             ModeHybrid,
		Headless:         boolPtr(true),
		PageSize:         100,
		RequestTimeout:   Duration(30 * time.Second),
		CloudflareBypass: boolPtr(true),
		Retry:            Retry{MaxAttempts: 3, BackoffBase: 2},
		Delay:            Delay{Min: Duration(2 * time.Second), Max: Duration(5 * time.Second)},
		Download:         Download{Delay: Duration(time.Second), Workers: 1},
	}
}

// Load reads path (and its .local override) on top of Default. A .env file
// next to the config is loaded into the environment first so ${VAR}
// references resolve. A missing config file is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultName
	}
	err := configutil.LoadDotenv(filepath.Dir(path))
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	file, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err == nil {
		cfg = cfg.Merge(file)
	}
	return cfg, cfg.Validate()
}

// Merge overlays the non-zero values of other onto c.
func (c Config) Merge(other Config) Config {
	if other.BaseURL != "" {
		c.BaseURL = other.BaseURL
	}
	if other.Database != (Database{}) {
		c.Database = other.Database
	}
	if other.DownloadDir != "" {
		c.DownloadDir = other.DownloadDir
	}
	if other.ScreenshotDir != "" {
		c.ScreenshotDir = other.ScreenshotDir
	}
	if other.DiagnosticsDir != "" {
		c.DiagnosticsDir = other.DiagnosticsDir
	}
	if other.Mode != "" {
		c.Mode = other.Mode
	}
	if other.Headless != nil {
		c.Headless = other.Headless
	}
	if other.PageSize != 0 {
		c.PageSize = other.PageSize
	}
	if other.RequestTimeout != 0 {
		c.RequestTimeout = other.RequestTimeout
	}
	if other.CloudflareBypass != nil {
		c.CloudflareBypass = other.CloudflareBypass
	}
	if other.Timezone != "" {
		c.Timezone = other.Timezone
	}
	if other.Retry.MaxAttempts != 0 {
		c.Retry.MaxAttempts = other.Retry.MaxAttempts
	}
	if other.Retry.BackoffBase != 0 {
		c.Retry.BackoffBase = other.Retry.BackoffBase
	}
	if other.Delay.Min != 0 {
		c.Delay.Min = other.Delay.Min
	}
	if other.Delay.Max != 0 {
		c.Delay.Max = other.Delay.Max
	}
	if other.Download.Delay != 0 {
		c.Download.Delay = other.Download.Delay
	}
	if other.Download.Workers != 0 {
		c.Download.Workers = other.Download.Workers
	}
	if len(other.FieldPatterns) > 0 {
		c.FieldPatterns = other.FieldPatterns
	}
	if other.Otlp.Enabled() {
		c.Otlp = other.Otlp
	}
	return c
}

func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: base_url %q is not an absolute url", c.BaseURL)
	}
	switch c.Mode {
	case ModeAPI, ModeBrowser, ModeHybrid:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("config: page_size must be within 1..100, got %d", c.PageSize)
	}
	if c.Delay.Min < 0 || c.Delay.Max < c.Delay.Min {
		return fmt.Errorf("config: delay range %s..%s is invalid", c.Delay.Min.Std(), c.Delay.Max.Std())
	}
	if c.Download.Workers < 1 {
		return fmt.Errorf("config: download.workers must be at least 1")
	}
	if c.Database.File == "" && c.Database.Url == "" {
		return fmt.Errorf("config: database.file or database.url is required")
	}
	return c.RetryPolicy().Validate()
}

func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.Retry.MaxAttempts,
		BackoffBase: c.Retry.BackoffBase,
		Unit:        time.Second,
	}
}
