// Package config handles file and environment configuration for newfindings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	API    APIConfig    `toml:"api" yaml:"api"`
	SMTP   SMTPConfig   `toml:"smtp" yaml:"smtp"`
	Report ReportConfig `toml:"report" yaml:"report"`
	OTEL   OTELConfig   `toml:"otel" yaml:"otel"`
	Log    LogConfig    `toml:"log" yaml:"log"`
}

// APIConfig holds Dome9 API settings.
type APIConfig struct {
	BaseURL    string        `toml:"base_url" yaml:"base_url"`
	Key        string        `toml:"key" yaml:"key"`
	Secret     string        `toml:"secret" yaml:"secret"`
	Proxy      string        `toml:"proxy" yaml:"proxy"`
	TimeoutStr string        `toml:"timeout" yaml:"timeout"`
	Timeout    time.Duration `toml:"-" yaml:"-"`
}

// SMTPConfig holds email relay settings.
type SMTPConfig struct {
	Server   string `toml:"server" yaml:"server"`
	Port     int    `toml:"port" yaml:"port"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
	SSL      bool   `toml:"ssl" yaml:"ssl"`

	badPort string // unparsable SMTP_PORT value, reported by MissingSMTP
}

// ReportConfig holds report rendering settings.
type ReportConfig struct {
	Format            string   `toml:"format" yaml:"format"`
	Template          string   `toml:"template" yaml:"template"`
	ExcludeTypes      []string `toml:"exclude_types" yaml:"exclude_types"`
	ExcludeSeverities []string `toml:"exclude_severities" yaml:"exclude_severities"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint" yaml:"endpoint"`
	Insecure    bool          `toml:"insecure" yaml:"insecure"`
	ServiceName string        `toml:"service_name" yaml:"service_name"`
	Traces      TracesConfig  `toml:"traces" yaml:"traces"`
	Metrics     MetricsConfig `toml:"metrics" yaml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled" yaml:"enabled"`
	SampleRate float64 `toml:"sample_rate" yaml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Textfile string `toml:"textfile" yaml:"textfile"` // Prometheus textfile collector output
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns a configuration with defaults applied and nothing else set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	_ = parseTimeout(cfg)
	return cfg
}

// Load reads and parses a TOML or YAML config file, chosen by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is intentional user input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyDefaults(cfg)

	if err := parseTimeout(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.dome9.com/v2/"
	}
	if cfg.API.TimeoutStr == "" {
		cfg.API.TimeoutStr = "60s"
	}
	if cfg.Report.Format == "" {
		cfg.Report.Format = "text"
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "newfindings"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseTimeout(cfg *Config) error {
	d, err := time.ParseDuration(cfg.API.TimeoutStr)
	if err != nil {
		return fmt.Errorf("parse api timeout %q: %w", cfg.API.TimeoutStr, err)
	}
	cfg.API.Timeout = d
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.API.Key == "" {
		return &MissingEnvError{Name: EnvAPIKey}
	}
	if c.API.Secret == "" {
		return &MissingEnvError{Name: EnvAPISecret}
	}
	switch c.Report.Format {
	case "text", "json":
	default:
		return fmt.Errorf("report: format must be text or json (got %q)", c.Report.Format)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}

// MissingSMTP returns the environment variables an email delivery still needs,
// including an SMTP_PORT that could not be parsed.
func (c *Config) MissingSMTP() []string {
	var missing []string
	if c.SMTP.Server == "" {
		missing = append(missing, EnvSMTPServer)
	}
	switch {
	case c.SMTP.badPort != "":
		missing = append(missing, fmt.Sprintf("%s (invalid %q)", EnvSMTPPort, c.SMTP.badPort))
	case c.SMTP.Port == 0:
		missing = append(missing, EnvSMTPPort)
	}
	if c.SMTP.User == "" {
		missing = append(missing, EnvSMTPUser)
	}
	return missing
}

// parseBool treats any non-empty value that is not a recognised boolean as true.
func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return v != ""
	}
	return b
}
