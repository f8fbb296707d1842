// Package config loads daemon configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.yaml.in/yaml/v3"
)

const envPrefix = "routined"

// LimitsConfig holds the enforcement thresholds.
type LimitsConfig struct {
	// GracePeriod is how long an over-limit app may stay in the
	// foreground before it is blocked.
	GracePeriod time.Duration `envconfig:"GRACE_PERIOD"`
	// ReminderWindow is how close to the limit usage must be before a
	// reminder is sent.
	ReminderWindow time.Duration `envconfig:"REMINDER_WINDOW"`
	// ReminderCheckInterval throttles reminder evaluation.
	ReminderCheckInterval time.Duration `envconfig:"REMINDER_CHECK_INTERVAL"`
}

// Config is the full daemon configuration.
type Config struct {
	DataDir       string            `envconfig:"DATA_DIR"`
	ListenAddr    string            `envconfig:"LISTEN_ADDR"`
	EncryptPrefs  bool              `envconfig:"ENCRYPT_PREFS"`
	ExactTriggers bool              `envconfig:"EXACT_TRIGGERS"`
	SelfPackage   string            `envconfig:"SELF_PACKAGE"`
	Whitelist     []string          `envconfig:"WHITELIST"`
	AppNames      map[string]string `envconfig:"APP_NAMES"`
	// DailyLimits caps daily usage per package in minutes, independent of
	// any routine.
	DailyLimits map[string]int `envconfig:"DAILY_LIMITS"`
	Limits      LimitsConfig
}

// fileConfig mirrors Config for YAML decoding. Durations are strings so
// users can write "5m" instead of nanosecond integers.
type fileConfig struct {
	DataDir       *string           `yaml:"dataDir"`
	ListenAddr    *string           `yaml:"listenAddr"`
	EncryptPrefs  *bool             `yaml:"encryptPrefs"`
	ExactTriggers *bool             `yaml:"exactTriggers"`
	SelfPackage   *string           `yaml:"selfPackage"`
	Whitelist     []string          `yaml:"whitelist"`
	AppNames      map[string]string `yaml:"appNames"`
	DailyLimits   map[string]int    `yaml:"dailyLimits"`
	Limits        struct {
		GracePeriod           string `yaml:"gracePeriod"`
		ReminderWindow        string `yaml:"reminderWindow"`
		ReminderCheckInterval string `yaml:"reminderCheckInterval"`
	} `yaml:"limits"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DataDir:       filepath.Join(home, ".routined"),
		ListenAddr:    "127.0.0.1:7600",
		EncryptPrefs:  true,
		ExactTriggers: true,
		SelfPackage:   "routined",
		Limits: LimitsConfig{
			GracePeriod:           5 * time.Minute,
			ReminderWindow:        10 * time.Minute,
			ReminderCheckInterval: 30 * time.Second,
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path (if non-empty), then ROUTINED_* environment overrides. A
// missing file at an explicitly given path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.DataDir != nil {
		cfg.DataDir = *fc.DataDir
	}
	if fc.ListenAddr != nil {
		cfg.ListenAddr = *fc.ListenAddr
	}
	if fc.EncryptPrefs != nil {
		cfg.EncryptPrefs = *fc.EncryptPrefs
	}
	if fc.ExactTriggers != nil {
		cfg.ExactTriggers = *fc.ExactTriggers
	}
	if fc.SelfPackage != nil {
		cfg.SelfPackage = *fc.SelfPackage
	}
	if fc.Whitelist != nil {
		cfg.Whitelist = fc.Whitelist
	}
	if fc.AppNames != nil {
		cfg.AppNames = fc.AppNames
	}
	if fc.DailyLimits != nil {
		cfg.DailyLimits = fc.DailyLimits
	}

	var derr error
	cfg.Limits.GracePeriod, derr = parseDurationOrDefault("limits.gracePeriod", fc.Limits.GracePeriod, cfg.Limits.GracePeriod)
	if derr != nil {
		return derr
	}
	cfg.Limits.ReminderWindow, derr = parseDurationOrDefault("limits.reminderWindow", fc.Limits.ReminderWindow, cfg.Limits.ReminderWindow)
	if derr != nil {
		return derr
	}
	cfg.Limits.ReminderCheckInterval, derr = parseDurationOrDefault("limits.reminderCheckInterval", fc.Limits.ReminderCheckInterval, cfg.Limits.ReminderCheckInterval)
	if derr != nil {
		return derr
	}
	return nil
}

func parseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q", field, raw)
	}
	return d, nil
}

func (c Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("dataDir must not be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listenAddr must not be empty")
	}
	if c.Limits.GracePeriod < 0 || c.Limits.ReminderWindow < 0 || c.Limits.ReminderCheckInterval < 0 {
		return fmt.Errorf("limit thresholds must not be negative")
	}
	for pkg, minutes := range c.DailyLimits {
		if minutes <= 0 {
			return fmt.Errorf("dailyLimits[%s] must be positive, got %d", pkg, minutes)
		}
	}
	return nil
}
