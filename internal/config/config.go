// Package config loads the tracker configuration from YAML or JSON5.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingStatsURL   = errors.New("sources.stats_url is required")
	ErrMissingHistoryURL = errors.New("sources.history_url is required")
	ErrInvalidURL        = errors.New("source url must be absolute http(s)")
	ErrInvalidTimeout    = errors.New("http.timeout_sec must be at least 1")
	ErrInvalidSizeCap    = errors.New("http.size_cap_bytes must be positive")
	ErrMissingStorePath  = errors.New("store.path is required")
	ErrInvalidLogLevel   = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrUnknownFormat     = errors.New("config file must be .yaml, .yml, .json or .json5")
	ErrInvalidThreshold  = errors.New("naming.near_miss_threshold must be in (0, 1]")
)

type Config struct {
	Sources  SourcesConfig  `yaml:"sources" json:"sources"`
	HTTP     HTTPConfig     `yaml:"http" json:"http"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Naming   NamingConfig   `yaml:"naming" json:"naming"`
}

type SourcesConfig struct {
	StatsURL   string `yaml:"stats_url" json:"stats_url"`
	HistoryURL string `yaml:"history_url" json:"history_url"`
}

type HTTPConfig struct {
	TimeoutSec     int    `yaml:"timeout_sec" json:"timeout_sec"`
	DialTimeoutSec int    `yaml:"dial_timeout_sec" json:"dial_timeout_sec"`
	SizeCapBytes   int64  `yaml:"size_cap_bytes" json:"size_cap_bytes"`
	UserAgent      string `yaml:"user_agent" json:"user_agent"`
}

// Timeout returns the request timeout as a duration.
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSec) * time.Second
}

// DialTimeout returns the dial timeout as a duration.
func (h HTTPConfig) DialTimeout() time.Duration {
	return time.Duration(h.DialTimeoutSec) * time.Second
}

type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// ScheduleConfig holds cron specs. The spec "off" disables that job.
type ScheduleConfig struct {
	Summary    string `yaml:"summary" json:"summary"`
	Countries  string `yaml:"countries" json:"countries"`
	History    string `yaml:"history" json:"history"`
	RunOnStart *bool  `yaml:"run_on_start" json:"run_on_start"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// NamingConfig tunes how country spellings that differ between tables are reported.
type NamingConfig struct {
	NearMissThreshold float64 `yaml:"near_miss_threshold" json:"near_miss_threshold"`
}

type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the configuration used for any field a file leaves empty.
func Default() Config {
	runOnStart := true
	return Config{
		Sources: SourcesConfig{
			StatsURL:   "https://www.worldometers.info/coronavirus/",
			HistoryURL: "https://pomber.github.io/covid19/timeseries.json",
		},
		HTTP: HTTPConfig{
			TimeoutSec:     15,
			DialTimeoutSec: 5,
			SizeCapBytes:   64 * 1024 * 1024,
			UserAgent:      "covid19-tracker/1.0",
		},
		Store: StoreConfig{Path: "data/covid19.db"},
		Schedule: ScheduleConfig{
			Summary:    "@every 10m",
			Countries:  "@every 10m",
			History:    "@every 1h",
			RunOnStart: &runOnStart,
		},
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info"},
		Naming:  NamingConfig{NearMissThreshold: 0.92},
	}
}

// ShouldRunOnStart reports whether jobs should run once before the first tick.
func (s ScheduleConfig) ShouldRunOnStart() bool {
	return s.RunOnStart == nil || *s.RunOnStart
}

func splitExt(f string) (string, string) {
	ext := filepath.Ext(f)
	return strings.TrimSuffix(f, ext), strings.TrimPrefix(ext, ".")
}

func decode(path string, data []byte, out *Config) error {
	_, ext := splitExt(path)
	switch strings.ToLower(ext) {
	case "yaml", "yml":
		return yaml.Unmarshal(data, out)
	case "json", "json5":
		return json5.Unmarshal(data, out)
	default:
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// Load reads path, merges <name>.local.<ext> over it when present, fills
// remaining zero fields from Default and validates the result. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		prefix, ext := splitExt(path)
		localPath := fmt.Sprintf("%s.local.%s", prefix, ext)
		localData, err := os.ReadFile(localPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read local config: %w", err)
		}
		if len(localData) > 0 {
			var override Config
			if err := decode(localPath, localData, &override); err != nil {
				return nil, fmt.Errorf("failed to parse local config: %w", err)
			}
			// mergo sees a false *bool as empty, so explicit values are carried by hand
			if override.Schedule.RunOnStart != nil {
				v := *override.Schedule.RunOnStart
				cfg.Schedule.RunOnStart = &v
			}
			if err := mergo.Merge(&cfg, override, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("failed to merge local config: %w", err)
			}
			slog.Info("merging config with local overrides", "local", localPath)
		}
	}

	var runOnStart *bool
	if cfg.Schedule.RunOnStart != nil {
		v := *cfg.Schedule.RunOnStart
		runOnStart = &v
	}
	if err := mergo.Merge(&cfg, Default()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if runOnStart != nil {
		cfg.Schedule.RunOnStart = runOnStart
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and ranges.
func (c *Config) Validate() error {
	if c.Sources.StatsURL == "" {
		return ErrMissingStatsURL
	}
	if c.Sources.HistoryURL == "" {
		return ErrMissingHistoryURL
	}
	for _, raw := range []string{c.Sources.StatsURL, c.Sources.HistoryURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%q: %w", raw, ErrInvalidURL)
		}
	}
	if c.HTTP.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}
	if c.HTTP.SizeCapBytes <= 0 {
		return ErrInvalidSizeCap
	}
	if c.Store.Path == "" {
		return ErrMissingStorePath
	}
	if c.Naming.NearMissThreshold <= 0 || c.Naming.NearMissThreshold > 1 {
		return ErrInvalidThreshold
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}
