// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	vhttp "vidflow/http"
	"vidflow/internal/retry"
)

// Config holds all application configuration.
type Config struct {
	// BaseURL is the backend API root, e.g. "http://localhost:5000/api".
	BaseURL string
	// Token is an access token taken from the environment. It wins over TokenFile.
	Token string
	// TokenFile is where login persists the access token.
	TokenFile string
	// HistoryFile is the JSON download history.
	HistoryFile string
	// OutputDir is where artifacts are saved.
	OutputDir string

	// Timeout bounds a single HTTP request including the response body.
	Timeout time.Duration
	// PollInterval overrides the per-workflow status cadence when non-zero.
	PollInterval time.Duration
	// MaxAttempts overrides the per-workflow poll budget when non-zero.
	MaxAttempts int

	// Retry settings, used for idempotent catalog reads only.
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// RequestsPerSecond caps the request rate towards the backend.
	RequestsPerSecond float64
}

// fileConfig is the on-disk shape. Durations are strings such as "90s".
type fileConfig struct {
	BaseURL           *string  `json:"base_url" yaml:"base_url"`
	TokenFile         *string  `json:"token_file" yaml:"token_file"`
	HistoryFile       *string  `json:"history_file" yaml:"history_file"`
	OutputDir         *string  `json:"output_dir" yaml:"output_dir"`
	Timeout           *string  `json:"timeout" yaml:"timeout"`
	PollInterval      *string  `json:"poll_interval" yaml:"poll_interval"`
	MaxAttempts       *int     `json:"max_attempts" yaml:"max_attempts"`
	MaxRetries        *int     `json:"max_retries" yaml:"max_retries"`
	InitialBackoff    *string  `json:"initial_backoff" yaml:"initial_backoff"`
	MaxBackoff        *string  `json:"max_backoff" yaml:"max_backoff"`
	BackoffMultiplier *float64 `json:"backoff_multiplier" yaml:"backoff_multiplier"`
	RequestsPerSecond *float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	dir := configDir()
	return &Config{
		BaseURL:           "http://localhost:5000/api",
		TokenFile:         filepath.Join(dir, "token"),
		HistoryFile:       filepath.Join(dir, "history.json"),
		OutputDir:         ".",
		Timeout:           5 * time.Minute,
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		RequestsPerSecond: 10,
	}
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".config", "vidflow")
}

// Load loads configuration from environment variables, config file, and applies defaults.
// Priority: env vars > config file > defaults
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file. An empty path searches
// vidflow.json and vidflow.yaml in the current directory, then in
// ~/.config/vidflow. An explicit path must exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads the first config file found in the search path.
func (c *Config) loadFromFile() error {
	dir := configDir()
	paths := []string{
		"vidflow.json",
		"vidflow.yaml",
		"vidflow.yml",
		filepath.Join(dir, "vidflow.json"),
		filepath.Join(dir, "vidflow.yaml"),
		filepath.Join(dir, "vidflow.yml"),
	}

	for _, path := range paths {
		err := c.loadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		return err
	}

	return os.ErrNotExist
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if err := c.apply(fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) apply(fc fileConfig) error {
	setString(&c.BaseURL, fc.BaseURL)
	setString(&c.TokenFile, fc.TokenFile)
	setString(&c.HistoryFile, fc.HistoryFile)
	setString(&c.OutputDir, fc.OutputDir)

	durations := []struct {
		name string
		src  *string
		dst  *time.Duration
	}{
		{"timeout", fc.Timeout, &c.Timeout},
		{"poll_interval", fc.PollInterval, &c.PollInterval},
		{"initial_backoff", fc.InitialBackoff, &c.InitialBackoff},
		{"max_backoff", fc.MaxBackoff, &c.MaxBackoff},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}

	if fc.MaxAttempts != nil {
		c.MaxAttempts = *fc.MaxAttempts
	}
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	if fc.BackoffMultiplier != nil {
		c.BackoffMultiplier = *fc.BackoffMultiplier
	}
	if fc.RequestsPerSecond != nil {
		c.RequestsPerSecond = *fc.RequestsPerSecond
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil && *src != "" {
		*dst = *src
	}
}

// loadFromEnv overrides config with environment variables. Malformed numeric
// or duration values are reported rather than ignored.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("VIDFLOW_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("VIDFLOW_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("VIDFLOW_TOKEN_FILE"); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv("VIDFLOW_HISTORY_FILE"); v != "" {
		c.HistoryFile = v
	}
	if v := os.Getenv("VIDFLOW_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if err := envDuration("VIDFLOW_TIMEOUT", &c.Timeout); err != nil {
		return err
	}
	if err := envDuration("VIDFLOW_POLL_INTERVAL", &c.PollInterval); err != nil {
		return err
	}
	if err := envInt("VIDFLOW_MAX_ATTEMPTS", &c.MaxAttempts); err != nil {
		return err
	}
	if err := envInt("VIDFLOW_MAX_RETRIES", &c.MaxRetries); err != nil {
		return err
	}
	if v := os.Getenv("VIDFLOW_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VIDFLOW_RPS: %w", err)
		}
		c.RequestsPerSecond = f
	}
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url must be set")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must be non-negative")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be non-negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	return nil
}

// TokenSource returns the credential chain: VIDFLOW_TOKEN first, then the token file.
func (c *Config) TokenSource() vhttp.TokenSource {
	var sources []vhttp.TokenSource
	if c.Token != "" {
		sources = append(sources, vhttp.StaticToken(c.Token))
	}
	if c.TokenFile != "" {
		sources = append(sources, vhttp.FileTokenSource{Path: c.TokenFile})
	}
	return vhttp.ChainTokens(sources...)
}

// HTTPConfig derives the HTTP client configuration.
func (c *Config) HTTPConfig() *vhttp.Config {
	hc := vhttp.DefaultConfig()
	hc.BaseURL = strings.TrimRight(c.BaseURL, "/")
	hc.Timeout = c.Timeout
	hc.Tokens = c.TokenSource()
	hc.Retry = retry.Config{
		MaxRetries:     c.MaxRetries,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
		Multiplier:     c.BackoffMultiplier,
		JitterFraction: hc.Retry.JitterFraction,
	}
	hc.RateLimiter.RequestsPerSecond = c.RequestsPerSecond
	if burst := int(c.RequestsPerSecond / 2); burst > hc.RateLimiter.Burst {
		hc.RateLimiter.Burst = burst
	}
	return hc
}
