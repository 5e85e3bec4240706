package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultAPIURL is the review-status long polling endpoint.
const DefaultAPIURL = "https://dvmn.org/api/long_polling/"

// DefaultTelegramAPIURL is the Bot API base used by the chat sink.
const DefaultTelegramAPIURL = "https://api.telegram.org"

// Environment variables recognized by ApplyEnv.
const (
	EnvAPIToken       = "DVMN_API_TOKEN"
	EnvAPIURL         = "DVMN_API_URL"
	EnvBotToken       = "TG_BOT_API"
	EnvChatID         = "TG_CHAT_ID"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
)

// Config holds the relay configuration
type Config struct {
	APIURL         string `toml:"api_url"`
	APIToken       string `toml:"api_token" sensitive:"true"`
	BotToken       string `toml:"bot_token" sensitive:"true"`
	ChatID         string `toml:"chat_id"`
	TelegramAPIURL string `toml:"telegram_api_url"`

	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
	CooldownSeconds       int `toml:"cooldown_seconds"`
	MaxMessageLen         int `toml:"max_message_len"`

	Retry RetryConfig `toml:"retry"`

	NotifyOnStart   bool `toml:"notify_on_start"`
	NotifyOnTimeout bool `toml:"notify_on_timeout"`

	JournalPath  string `toml:"journal_path"`
	EventLogPath string `toml:"event_log_path"`
}

// RetryConfig controls how read timeouts are retried inside a single poll.
type RetryConfig struct {
	Attempts   int     `toml:"attempts"`
	BaseDelay  string  `toml:"base_delay"`
	Multiplier float64 `toml:"multiplier"`
	MaxDelay   string  `toml:"max_delay"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		APIURL:                DefaultAPIURL,
		TelegramAPIURL:        DefaultTelegramAPIURL,
		RequestTimeoutSeconds: 90,
		CooldownSeconds:       10,
		MaxMessageLen:         4096,
		Retry: RetryConfig{
			Attempts:   3,
			BaseDelay:  "1s",
			Multiplier: 2,
			MaxDelay:   "1m",
		},
		NotifyOnStart:   true,
		NotifyOnTimeout: true,
	}
}

// DataDir returns the lessonbot data directory.
// Uses LESSONBOT_DATA_DIR env var if set, otherwise ~/.lessonbot
func DataDir() string {
	if dir := os.Getenv("LESSONBOT_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lessonbot")
}

// DefaultConfigPath returns the path to the config file
func DefaultConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// LoadFrom loads the configuration from a specific path.
// A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process
// environment. Variables that are already set are left alone.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides file values with environment variables.
// lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIToken); ok && v != "" {
		c.APIToken = v
	}
	if v, ok := lookup(EnvAPIURL); ok && v != "" {
		c.APIURL = v
	}
	if v, ok := lookup(EnvBotToken); ok && v != "" {
		c.BotToken = v
	}
	if v, ok := lookup(EnvChatID); ok && v != "" {
		c.ChatID = v
	}
	if v, ok := lookup(EnvRequestTimeout); ok && strings.TrimSpace(v) != "" {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || secs <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", EnvRequestTimeout, v)
		}
		c.RequestTimeoutSeconds = secs
	}
	return nil
}

// Validate reports every required setting that is missing.
func (c *Config) Validate() error {
	var missing []string
	if c.APIToken == "" {
		missing = append(missing, "api_token ("+EnvAPIToken+")")
	}
	if c.BotToken == "" {
		missing = append(missing, "bot_token ("+EnvBotToken+")")
	}
	if c.ChatID == "" {
		missing = append(missing, "chat_id ("+EnvChatID+")")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.APIURL == "" {
		return fmt.Errorf("api_url must not be empty")
	}
	return nil
}

// RequestTimeout returns the client-side timeout for one poll request.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Cooldown returns the pause applied after a connection or transport failure.
func (c *Config) Cooldown() time.Duration {
	if c.CooldownSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.CooldownSeconds) * time.Second
}

// MessageLimit returns the maximum characters per chat message.
func (c *Config) MessageLimit() int {
	if c.MaxMessageLen <= 0 {
		return 4096
	}
	return c.MaxMessageLen
}

// RetryAttempts returns the number of attempts per poll, at least 1.
func (c *Config) RetryAttempts() int {
	if c.Retry.Attempts <= 0 {
		return 1
	}
	return c.Retry.Attempts
}

// RetryBaseDelay parses the base backoff delay, falling back to 1s.
func (c *Config) RetryBaseDelay() time.Duration {
	d, err := time.ParseDuration(c.Retry.BaseDelay)
	if err != nil || d < 0 {
		return time.Second
	}
	return d
}

// RetryMaxDelay parses the cap on a single backoff pause, falling back
// to one minute.
func (c *Config) RetryMaxDelay() time.Duration {
	d, err := time.ParseDuration(c.Retry.MaxDelay)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// RetryMultiplier returns the backoff growth factor, falling back to 2.
func (c *Config) RetryMultiplier() float64 {
	if c.Retry.Multiplier < 1 {
		return 2
	}
	return c.Retry.Multiplier
}

// ResolveJournalPath returns the journal database path.
func (c *Config) ResolveJournalPath() string {
	if c.JournalPath != "" {
		return c.JournalPath
	}
	return filepath.Join(DataDir(), "journal.db")
}

// ResolveEventLogPath returns the JSONL event log path.
func (c *Config) ResolveEventLogPath() string {
	if c.EventLogPath != "" {
		return c.EventLogPath
	}
	return filepath.Join(DataDir(), "events.log")
}

// Save writes the configuration to path
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
