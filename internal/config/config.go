package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Operator-owned settings read by the poll engine.
	Settings Settings

	NWSBaseURL   string
	ScheduleTick time.Duration
	SettingsFile string

	DatabaseDriver string
	DatabaseDSN    string
	StateBackend   string
	BadgerPath     string

	// Kafka sink for newly stored alerts.
	KafkaBrokers     []string
	KafkaSinkTopic   string
	KafkaSinkEnabled bool

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	PollLogFile     string
	ShutdownTimeout time.Duration
}

// State backends.
const (
	StateBackendDatabase = "database"
	StateBackendBadger   = "badger"
)

// Load reads configuration from environment variables, applying defaults where
// unset. If SETTINGS_FILE is set, its values override the environment.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	interval, err := ParsePollInterval(sharedcfg.EnvOrDefault("POLL_INTERVAL", "300s"))
	if err != nil {
		return nil, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
	}

	tick, err := time.ParseDuration(sharedcfg.EnvOrDefault("SCHEDULE_TICK", "60s"))
	if err != nil || tick <= 0 {
		return nil, errors.New("invalid SCHEDULE_TICK")
	}

	var brokers []string
	if raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}
	sinkEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_SINK_ENABLED"); v != "" {
		sinkEnabled = v == "true"
	}

	cfg := &Config{
		Settings: Settings{
			PollInterval: interval,
			UserAgent:    sharedcfg.EnvOrDefault("NWS_USER_AGENT", "nws-alert-ingest"),
		},
		NWSBaseURL:   strings.TrimRight(sharedcfg.EnvOrDefault("NWS_API_BASE_URL", "https://api.weather.gov"), "/"),
		ScheduleTick: tick,
		SettingsFile: os.Getenv("SETTINGS_FILE"),

		DatabaseDriver: strings.ToLower(sharedcfg.EnvOrDefault("DATABASE_DRIVER", "sqlite")),
		DatabaseDSN:    sharedcfg.EnvOrDefault("DATABASE_DSN", "file:alerts.db?_pragma=busy_timeout(5000)"),
		StateBackend:   strings.ToLower(sharedcfg.EnvOrDefault("STATE_BACKEND", StateBackendDatabase)),
		BadgerPath:     sharedcfg.EnvOrDefault("BADGER_PATH", "data/state"),

		KafkaBrokers:     brokers,
		KafkaSinkTopic:   sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "nws-alerts"),
		KafkaSinkEnabled: sinkEnabled,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		PollLogFile:     os.Getenv("POLL_LOG_FILE"),
		ShutdownTimeout: shutdownTimeout,
	}

	if cfg.SettingsFile != "" {
		settings, err := LoadSettingsFile(cfg.SettingsFile, cfg.Settings)
		if err != nil {
			return nil, err
		}
		cfg.Settings = settings
	}

	if strings.TrimSpace(cfg.Settings.UserAgent) == "" {
		return nil, errors.New("NWS_USER_AGENT is required")
	}
	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	switch cfg.StateBackend {
	case StateBackendDatabase, StateBackendBadger:
	default:
		return nil, fmt.Errorf("unsupported STATE_BACKEND %q", cfg.StateBackend)
	}
	if cfg.KafkaSinkEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_SINK_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaSinkEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}
