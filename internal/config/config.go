package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	SendGrid  SendGridConfig  `yaml:"sendgrid"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	Templates TemplatesConfig `yaml:"templates"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig contains HTTP API server settings
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	APIKey         string        `yaml:"api_key"`          // Empty = no authentication
	MaxUploadBytes int64         `yaml:"max_upload_bytes"` // Max size of an uploaded recipient file
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
}

// SendGridConfig contains SendGrid provider settings
type SendGridConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"` // Default: https://api.sendgrid.com
	FromEmail   string        `yaml:"from_email"`
	FromName    string        `yaml:"from_name"`
	ReplyTo     string        `yaml:"reply_to"`
	SendTimeout time.Duration `yaml:"send_timeout"` // Timeout for one outbound send call
}

// DispatchConfig contains campaign dispatch settings
type DispatchConfig struct {
	Concurrency   int           `yaml:"concurrency"`    // Parallel sends per campaign
	MaxRetries    int           `yaml:"max_retries"`    // Retries per recipient on temporary errors (0 disables retries)
	RetryInterval time.Duration `yaml:"retry_interval"` // Base backoff between retries
}

// RateLimitConfig contains outbound send rate limiting
type RateLimitConfig struct {
	Enabled         bool   `yaml:"enabled"`
	MessagesPerHour int    `yaml:"messages_per_hour"` // 0 = unlimited
	MessagesPerDay  int    `yaml:"messages_per_day"`  // 0 = unlimited
	StatePath       string `yaml:"state_path"`        // BoltDB file for persisted counters
}

// StorageConfig contains batch record storage settings
type StorageConfig struct {
	BatchDir string `yaml:"batch_dir"` // Directory for campaign summaries and logs
}

// TemplatesConfig contains message template settings
type TemplatesConfig struct {
	Dir     string `yaml:"dir"`     // Directory with HTML templates
	Default string `yaml:"default"` // Template used when a campaign names none
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings
type MetricsConfig struct {
	Enabled    bool     `yaml:"enabled"`
	ListenAddr string   `yaml:"listen_addr"` // Default: :9090
	Path       string   `yaml:"path"`        // Default: /metrics
	AllowedIPs []string `yaml:"allowed_ips"` // IP addresses/CIDRs allowed to scrape (empty = allow all)
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	// -1 marks max_retries as absent so an explicit 0 survives defaulting.
	cfg.Dispatch.MaxRetries = -1
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 16 * 1024 * 1024 // 16MB
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Campaign submission sends the whole batch before responding.
		c.Server.WriteTimeout = 10 * time.Minute
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.SendGrid.BaseURL == "" {
		c.SendGrid.BaseURL = "https://api.sendgrid.com"
	}
	if c.SendGrid.SendTimeout == 0 {
		c.SendGrid.SendTimeout = 30 * time.Second
	}

	if c.Dispatch.Concurrency == 0 {
		c.Dispatch.Concurrency = 5
	}
	if c.Dispatch.MaxRetries == -1 {
		c.Dispatch.MaxRetries = 2
	}
	if c.Dispatch.RetryInterval == 0 {
		c.Dispatch.RetryInterval = 2 * time.Second
	}

	if c.RateLimit.StatePath == "" {
		c.RateLimit.StatePath = "/var/lib/mailblast/ratelimit.db"
	}

	if c.Storage.BatchDir == "" {
		c.Storage.BatchDir = "/var/lib/mailblast/batches"
	}

	if c.Templates.Dir == "" {
		c.Templates.Dir = "/etc/mailblast/templates"
	}
	if c.Templates.Default == "" {
		c.Templates.Default = "email_template.html"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.SendGrid.APIKey == "" {
		return fmt.Errorf("sendgrid.api_key is required")
	}
	if c.SendGrid.FromEmail == "" {
		return fmt.Errorf("sendgrid.from_email is required")
	}
	if c.Dispatch.Concurrency < 1 {
		return fmt.Errorf("dispatch.concurrency must be at least 1")
	}
	if c.Dispatch.MaxRetries < 0 {
		return fmt.Errorf("dispatch.max_retries must not be negative")
	}
	if c.RateLimit.Enabled && c.RateLimit.MessagesPerHour == 0 && c.RateLimit.MessagesPerDay == 0 {
		return fmt.Errorf("rate_limit is enabled but no limits are set")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}
