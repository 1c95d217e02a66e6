// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the mail forwarder.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Sender  string        `yaml:"sender"`
	Forward ForwardConfig `yaml:"forward"`
	S3      S3Config      `yaml:"s3"`
	SES     SESConfig     `yaml:"ses"`
	Notify  NotifyConfig  `yaml:"notify"`
	Logging LoggingConfig `yaml:"logging"`
}

// ForwardConfig holds the forwarding rules and header-rewrite settings.
type ForwardConfig struct {
	FromEmail      string              `yaml:"from_email"`
	SubjectPrefix  string              `yaml:"subject_prefix"`
	EmailKeyPrefix string              `yaml:"email_key_prefix"`
	Mapping        map[string][]string `yaml:"mapping"`
	AllowPlusSign  *bool               `yaml:"allow_plus_sign"`
	RejectSpam     *bool               `yaml:"reject_spam"`
	RewriteTo      bool                `yaml:"rewrite_to"`
	Trailer        bool                `yaml:"trailer"`
}

// S3Config holds the inbound mail bucket settings.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
}

// SESConfig holds outbound AWS SES settings.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// NotifyConfig holds the optional webhook notification settings.
type NotifyConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Required   bool   `yaml:"required"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	cfg.normalize()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()
	cfg.normalize()

	return cfg, nil
}

// AllowPlusSign reports whether a "+suffix" segment is stripped from the
// local part before mapping lookup. Enabled unless explicitly disabled.
func (c *Config) AllowPlusSign() bool {
	return c.Forward.AllowPlusSign == nil || *c.Forward.AllowPlusSign
}

// RejectSpam reports whether messages with a failing spam, virus, or
// authentication verdict are dropped. Enabled unless explicitly disabled.
func (c *Config) RejectSpam() bool {
	return c.Forward.RejectSpam == nil || *c.Forward.RejectSpam
}

// BucketConfigured returns true if the inbound mail bucket is set.
// An unset bucket makes the forwarder unusable.
func (c *Config) BucketConfigured() bool {
	return c.S3.Bucket != ""
}

// NotifyConfigured returns true if a notification webhook URL is set.
func (c *Config) NotifyConfigured() bool {
	return c.Notify.WebhookURL != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("SENDER"); v != "" {
		c.Sender = strings.ToLower(v)
	}

	if v := os.Getenv("FROM_EMAIL"); v != "" {
		c.Forward.FromEmail = v
	}
	if v := os.Getenv("SUBJECT_PREFIX"); v != "" {
		c.Forward.SubjectPrefix = v
	}
	if v := os.Getenv("EMAIL_KEY_PREFIX"); v != "" {
		c.Forward.EmailKeyPrefix = v
	}
	if v := os.Getenv("ALLOW_PLUS_SIGN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Forward.AllowPlusSign = &b
		}
	}
	if v := os.Getenv("REJECT_SPAM"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Forward.RejectSpam = &b
		}
	}
	if v := os.Getenv("REWRITE_TO"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Forward.RewriteTo = b
		}
	}
	if v := os.Getenv("TRAILER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Forward.Trailer = b
		}
	}

	if v := os.Getenv("MAIL_BUCKET"); v != "" {
		c.S3.Bucket = v
	}
	if v := os.Getenv("S3_REGION"); v != "" {
		c.S3.Region = v
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	if v := os.Getenv("NOTIFY_WEBHOOK_URL"); v != "" {
		c.Notify.WebhookURL = v
	}
	if v := os.Getenv("NOTIFY_REQUIRED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Notify.Required = b
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	// The Lambda runtime region is the fallback for both clients.
	if v := os.Getenv("AWS_REGION"); v != "" {
		if c.S3.Region == "" {
			c.S3.Region = v
		}
		if c.SES.Region == "" {
			c.SES.Region = v
		}
	}
}

// normalize lower-cases all mapping keys so lookups are case-insensitive.
// The mapping is never mutated after load.
func (c *Config) normalize() {
	if len(c.Forward.Mapping) == 0 {
		return
	}
	mapping := make(map[string][]string, len(c.Forward.Mapping))
	for key, dests := range c.Forward.Mapping {
		mapping[strings.ToLower(key)] = dests
	}
	c.Forward.Mapping = mapping
}
