// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	AppEnv         string
	LogLevel       slog.Level
	AllowedOrigins []string
	GRPCHealthAddr string // empty disables the gRPC health server

	Broadcast BroadcastConfig
	Store     StoreConfig
	Tabs      TabConfig
	Recorder  RecorderConfig
}

// BroadcastConfig controls the message bus.
type BroadcastConfig struct {
	Topic string
}

// StoreConfig controls the transcript sink.
type StoreConfig struct {
	Enabled        bool
	DBPath         string
	RetryAttempts  int
	RetryBaseDelay time.Duration
}

// TabConfig controls tab session lifetime.
type TabConfig struct {
	IdleTTL       time.Duration
	ReapInterval  time.Duration
	QueueSize     int
	OutboundQueue int
}

// RecorderConfig holds the recorder overrides exposed through the environment.
type RecorderConfig struct {
	VocabularyFile string
	MaxChecks      int
	RescanInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		GRPCHealthAddr: getEnv("GRPC_HEALTH_ADDR", ""),
		Broadcast: BroadcastConfig{
			Topic: getEnv("BROADCAST_TOPIC", "llm_chat_messages"),
		},
		Store: StoreConfig{
			Enabled:        getEnvBool("STORE_ENABLED", true),
			DBPath:         getEnv("DB_PATH", "./data/recorder.db"),
			RetryAttempts:  getEnvInt("STORE_RETRY_ATTEMPTS", 3),
			RetryBaseDelay: getEnvDuration("STORE_RETRY_BASE_DELAY", 50*time.Millisecond),
		},
		Tabs: TabConfig{
			IdleTTL:       getEnvDuration("TAB_IDLE_TTL", 30*time.Minute),
			ReapInterval:  getEnvDuration("TAB_REAP_INTERVAL", time.Minute),
			QueueSize:     getEnvInt("TAB_QUEUE_SIZE", 256),
			OutboundQueue: getEnvInt("TAB_OUTBOUND_QUEUE", 64),
		},
		Recorder: RecorderConfig{
			VocabularyFile: getEnv("VOCABULARY_FILE", ""),
			MaxChecks:      getEnvInt("RECORDER_MAX_CHECKS", 15),
			RescanInterval: getEnvDuration("RECORDER_RESCAN_INTERVAL", 3*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Broadcast.Topic == "" {
		return fmt.Errorf("BROADCAST_TOPIC cannot be empty")
	}
	if c.Store.Enabled && c.Store.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty when STORE_ENABLED")
	}
	if c.Store.RetryAttempts <= 0 {
		return fmt.Errorf("STORE_RETRY_ATTEMPTS must be > 0")
	}
	if c.Tabs.IdleTTL <= 0 {
		return fmt.Errorf("TAB_IDLE_TTL must be > 0")
	}
	if c.Tabs.ReapInterval <= 0 {
		return fmt.Errorf("TAB_REAP_INTERVAL must be > 0")
	}
	if c.Tabs.QueueSize <= 0 || c.Tabs.OutboundQueue <= 0 {
		return fmt.Errorf("TAB_QUEUE_SIZE and TAB_OUTBOUND_QUEUE must be > 0")
	}
	if c.Recorder.MaxChecks <= 0 {
		return fmt.Errorf("RECORDER_MAX_CHECKS must be > 0")
	}
	if c.Recorder.RescanInterval <= 0 {
		return fmt.Errorf("RECORDER_RESCAN_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.AppEnv)
	return env == "" || env == "development" || env == "dev" || env == "local"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}
