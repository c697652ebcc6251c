// Package appconfig loads runtime configuration from environment variables
// with an optional YAML override file.
package appconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the host and scanner binaries.
type Config struct {
	APIBaseURL      string
	NATSURL         string
	BroadcastBucket string
	PollInterval    time.Duration
	AutoRevealDelay time.Duration
	ToastDuration   time.Duration
	ScanDebounce    time.Duration
	ScanCooldown    time.Duration
}

// fileConfig is the YAML shape of the optional config file. Durations are
// Go duration strings ("2s", "15s").
type fileConfig struct {
	APIBaseURL      string `yaml:"api_base_url"`
	NATSURL         string `yaml:"nats_url"`
	BroadcastBucket string `yaml:"broadcast_bucket"`
	PollInterval    string `yaml:"poll_interval"`
	AutoRevealDelay string `yaml:"auto_reveal_delay"`
	ToastDuration   string `yaml:"toast_duration"`
	ScanDebounce    string `yaml:"scan_debounce"`
	ScanCooldown    string `yaml:"scan_cooldown"`
}

// NewConfigFromEnv reads MUSICBINGO_* environment variables (with defaults)
// and, when MUSICBINGO_CONFIG names a YAML file, applies its non-zero values
// on top.
func NewConfigFromEnv() (*Config, error) {
	cfg := &Config{
		APIBaseURL:      getEnv("MUSICBINGO_API_URL", "http://localhost:8000"),
		NATSURL:         getEnv("MUSICBINGO_NATS_URL", "nats://localhost:4222"),
		BroadcastBucket: getEnv("MUSICBINGO_BUCKET", "musicbingo"),
		PollInterval:    getEnvAsDuration("MUSICBINGO_POLL_INTERVAL", 2*time.Second),
		AutoRevealDelay: getEnvAsDuration("MUSICBINGO_AUTO_REVEAL_DELAY", 15*time.Second),
		ToastDuration:   getEnvAsDuration("MUSICBINGO_TOAST_DURATION", 8*time.Second),
		ScanDebounce:    getEnvAsDuration("MUSICBINGO_SCAN_DEBOUNCE", 1*time.Second),
		ScanCooldown:    getEnvAsDuration("MUSICBINGO_SCAN_COOLDOWN", 3*time.Second),
	}

	if path := os.Getenv("MUSICBINGO_CONFIG"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if file.APIBaseURL != "" {
		c.APIBaseURL = file.APIBaseURL
	}
	if file.NATSURL != "" {
		c.NATSURL = file.NATSURL
	}
	if file.BroadcastBucket != "" {
		c.BroadcastBucket = file.BroadcastBucket
	}
	if err := applyDuration(&c.PollInterval, file.PollInterval); err != nil {
		return fmt.Errorf("bad poll_interval: %w", err)
	}
	if err := applyDuration(&c.AutoRevealDelay, file.AutoRevealDelay); err != nil {
		return fmt.Errorf("bad auto_reveal_delay: %w", err)
	}
	if err := applyDuration(&c.ToastDuration, file.ToastDuration); err != nil {
		return fmt.Errorf("bad toast_duration: %w", err)
	}
	if err := applyDuration(&c.ScanDebounce, file.ScanDebounce); err != nil {
		return fmt.Errorf("bad scan_debounce: %w", err)
	}
	if err := applyDuration(&c.ScanCooldown, file.ScanCooldown); err != nil {
		return fmt.Errorf("bad scan_cooldown: %w", err)
	}
	return nil
}

func applyDuration(dst *time.Duration, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
