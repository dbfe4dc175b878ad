// Package config handles Pulse configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Provider names understood by the LLM layer.
const (
	ProviderGroq   = "groq"
	ProviderGemini = "gemini"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/pulse/config.yaml, /etc/pulse/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pulse", "config.yaml"))
	}

	paths = append(paths, "/etc/pulse/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Pulse configuration. It is loaded once at startup and
// passed by pointer to every component constructor.
type Config struct {
	Listen    ListenConfig            `yaml:"listen"`
	Telegram  TelegramConfig          `yaml:"telegram"`
	Providers ProvidersConfig         `yaml:"providers"`
	Pricing   map[string]PricingEntry `yaml:"pricing"`
	Database  DatabaseConfig          `yaml:"database"`
	Redis     RedisConfig             `yaml:"redis"`
	Reminders RemindersConfig         `yaml:"reminders"`
	Context   ContextConfig           `yaml:"context"`
	Checkin   CheckinConfig           `yaml:"checkin"`

	// CronSecret, when set, must be presented as a bearer token on
	// POST /cron.
	CronSecret string `yaml:"cron_secret"`

	// Timezone is the IANA zone used for users who have not chosen one
	// and as the sweep's reference zone.
	Timezone string `yaml:"timezone"`

	DataDir   string `yaml:"data_dir"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text (default) or json
}

// ListenConfig defines the HTTP server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// TelegramConfig defines the bot's Telegram credentials.
type TelegramConfig struct {
	Token string `yaml:"token"`

	// WebhookSecret is compared against the
	// X-Telegram-Bot-Api-Secret-Token header. Empty disables the check.
	WebhookSecret string `yaml:"webhook_secret"`

	// APIEndpoint overrides the Bot API URL format (for local Bot API
	// servers). Must contain two %s verbs: token, method.
	APIEndpoint string `yaml:"api_endpoint"`

	// UpdateTimeout bounds the handling of a single inbound update.
	UpdateTimeout time.Duration `yaml:"update_timeout"`

	// RateLimit caps messages handled per chat per minute. 0 disables
	// the limit.
	RateLimit int `yaml:"rate_limit"`
}

// Configured reports whether a bot token is present.
func (c TelegramConfig) Configured() bool {
	return c.Token != ""
}

// ProvidersConfig selects and configures the LLM providers.
type ProvidersConfig struct {
	Default  string         `yaml:"default"`
	Fallback string         `yaml:"fallback"`
	Groq     ProviderConfig `yaml:"groq"`
	Gemini   ProviderConfig `yaml:"gemini"`
}

// ProviderConfig holds one provider's credentials and limits.
type ProviderConfig struct {
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	BaseURL           string `yaml:"base_url"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
}

// Configured reports whether an API key is present.
func (c ProviderConfig) Configured() bool {
	return c.APIKey != ""
}

// PricingEntry is the USD cost per million tokens for a model.
type PricingEntry struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	// Path defaults to <data_dir>/pulse.db.
	Path string `yaml:"path"`
}

// RedisConfig enables the Redis preference cache. Empty Address keeps
// the in-process cache.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// Configured reports whether a Redis address is present.
func (c RedisConfig) Configured() bool {
	return c.Address != ""
}

// RemindersConfig tunes reminder extraction and delivery.
type RemindersConfig struct {
	// ConfidenceThreshold is the minimum extraction confidence (0-100)
	// required before a reminder is created or modified.
	ConfidenceThreshold int `yaml:"confidence_threshold"`

	// SweepSchedule is a standard 5-field cron expression for the
	// in-process delivery sweep. Empty disables the in-process sweep
	// (rely on POST /cron instead).
	SweepSchedule string `yaml:"sweep_schedule"`
}

// ContextConfig bounds conversation history.
type ContextConfig struct {
	MaxTurns  int `yaml:"max_turns"` // turns handed to the LLM
	Retention int `yaml:"retention"` // turns kept per user
}

// CheckinConfig controls proactive messages.
type CheckinConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`

	// ReflectionStartHour and ReflectionEndHour bound the local hours
	// (end exclusive) in which the evening reflection is sent.
	ReflectionStartHour int `yaml:"reflection_start_hour"`
	ReflectionEndHour   int `yaml:"reflection_end_hour"`

	// Greetings enables morning/afternoon/evening greetings.
	Greetings bool `yaml:"greetings"`
}

// Load reads configuration from a YAML file. A .env file next to the
// config file (and one in the working directory) is loaded into the
// process environment first so ${VAR} references can resolve against it.
// Variables already set in the environment win.
func Load(path string) (*Config, error) {
	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(paths ...string) {
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		// Missing or unreadable files are not an error; the YAML may
		// carry everything inline.
		_ = godotenv.Load(abs)
	}
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Telegram: TelegramConfig{
			UpdateTimeout: 60 * time.Second,
		},
		Providers: ProvidersConfig{
			Default:  ProviderGroq,
			Fallback: ProviderGemini,
			Groq: ProviderConfig{
				Model:             "llama-3.3-70b-versatile",
				BaseURL:           "https://api.groq.com/openai/v1",
				RequestsPerMinute: 30,
			},
			Gemini: ProviderConfig{
				Model:             "gemini-2.5-flash",
				BaseURL:           "https://generativelanguage.googleapis.com/v1beta",
				RequestsPerMinute: 15,
			},
		},
		Redis: RedisConfig{TTL: time.Hour},
		Reminders: RemindersConfig{
			ConfidenceThreshold: 60,
			SweepSchedule:       "*/5 * * * *",
		},
		Context: ContextConfig{
			MaxTurns:  20,
			Retention: 50,
		},
		Checkin: CheckinConfig{
			Enabled:             true,
			Schedule:            "0 * * * *",
			ReflectionStartHour: 20,
			ReflectionEndHour:   23,
			Greetings:           true,
		},
		Timezone:  "UTC",
		DataDir:   "./data",
		LogFormat: "text",
	}
}

// applyDefaults fills fields that YAML may have zeroed explicitly.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.Telegram.UpdateTimeout <= 0 {
		c.Telegram.UpdateTimeout = 60 * time.Second
	}
	if c.Context.MaxTurns <= 0 {
		c.Context.MaxTurns = 20
	}
	if c.Context.Retention <= 0 {
		c.Context.Retention = 50
	}
	if c.Redis.TTL <= 0 {
		c.Redis.TTL = time.Hour
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.DataDir, "pulse.db")
	}
}

// Validate checks the configuration for values that would fail later
// at runtime.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q (valid: text, json)", c.LogFormat))
	}

	if !knownProvider(c.Providers.Default) {
		errs = append(errs, fmt.Errorf("providers.default: unknown provider %q", c.Providers.Default))
	}
	if c.Providers.Fallback != "" && !knownProvider(c.Providers.Fallback) {
		errs = append(errs, fmt.Errorf("providers.fallback: unknown provider %q", c.Providers.Fallback))
	}

	if t := c.Reminders.ConfidenceThreshold; t < 0 || t > 100 {
		errs = append(errs, fmt.Errorf("reminders.confidence_threshold must be 0-100, got %d", t))
	}
	if s := c.Reminders.SweepSchedule; s != "" {
		if _, err := cron.ParseStandard(s); err != nil {
			errs = append(errs, fmt.Errorf("reminders.sweep_schedule: %w", err))
		}
	}
	if c.Checkin.Enabled {
		if _, err := cron.ParseStandard(c.Checkin.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("checkin.schedule: %w", err))
		}
		if c.Checkin.ReflectionStartHour < 0 || c.Checkin.ReflectionEndHour > 24 ||
			c.Checkin.ReflectionStartHour >= c.Checkin.ReflectionEndHour {
			errs = append(errs, fmt.Errorf("checkin: invalid reflection window %d-%d",
				c.Checkin.ReflectionStartHour, c.Checkin.ReflectionEndHour))
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}

	return errors.Join(errs...)
}

// Location returns the configured reference timezone, falling back to
// UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Provider returns the settings for the named provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case ProviderGroq:
		return c.Providers.Groq, true
	case ProviderGemini:
		return c.Providers.Gemini, true
	default:
		return ProviderConfig{}, false
	}
}

func knownProvider(name string) bool {
	return name == ProviderGroq || name == ProviderGemini
}
