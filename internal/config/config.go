package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all runtime configuration for the bidding engine.
type Config struct {
	Port           int
	LogLevel       string
	CloseInterval  time.Duration
	WebhookTimeout time.Duration
	EventEncoding  string

	BidMaxRetries  int
	BidSlotTimeout time.Duration

	AntiSnipingEnabled       bool
	AntiSnipingWindow        time.Duration
	AntiSnipingMaxExtensions int

	Storage     string
	DatabaseURL string
	DBMaxConns  int
	DBMinConns  int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. If CONFIG_FILE names a YAML file, its keys (the
// lowercase variable names) seed values the environment does not set.
func Load() (*Config, error) {
	src, err := newSource(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	port, err := src.getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := src.getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	closeInterval, err := src.getDuration("CLOSE_INTERVAL", 1*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid CLOSE_INTERVAL: %w", err)
	}
	if closeInterval <= 0 {
		return nil, fmt.Errorf("invalid CLOSE_INTERVAL: must be positive")
	}

	webhookTimeout, err := src.getDuration("WEBHOOK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WEBHOOK_TIMEOUT: %w", err)
	}

	eventEncoding := src.getStr("EVENT_ENCODING", "json")
	if eventEncoding != "json" && eventEncoding != "cbor" {
		return nil, fmt.Errorf("invalid EVENT_ENCODING: %q, must be one of: json, cbor", eventEncoding)
	}

	maxRetries, err := src.getInt("BID_MAX_RETRIES", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid BID_MAX_RETRIES: %w", err)
	}
	if maxRetries < 1 {
		return nil, fmt.Errorf("invalid BID_MAX_RETRIES: must be at least 1")
	}

	slotTimeout, err := src.getDuration("BID_SLOT_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid BID_SLOT_TIMEOUT: %w", err)
	}

	antiSniping, err := src.getBool("ANTI_SNIPING_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("invalid ANTI_SNIPING_ENABLED: %w", err)
	}

	window, err := src.getDuration("ANTI_SNIPING_WINDOW", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid ANTI_SNIPING_WINDOW: %w", err)
	}

	maxExtensions, err := src.getInt("ANTI_SNIPING_MAX_EXTENSIONS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid ANTI_SNIPING_MAX_EXTENSIONS: %w", err)
	}
	if maxExtensions < 0 {
		return nil, fmt.Errorf("invalid ANTI_SNIPING_MAX_EXTENSIONS: must be non-negative")
	}

	storage := src.getStr("STORAGE", StorageMemory)
	if storage != StorageMemory && storage != StoragePostgres {
		return nil, fmt.Errorf("invalid STORAGE: %q, must be one of: memory, postgres", storage)
	}

	databaseURL := src.getStr("DATABASE_URL", "")
	if storage == StoragePostgres && databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORAGE=postgres")
	}

	maxConns, err := src.getInt("DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := src.getInt("DB_MIN_CONNS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}
	if minConns > maxConns {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %d exceeds DB_MAX_CONNS %d", minConns, maxConns)
	}

	readTimeout, err := src.getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := src.getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := src.getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := src.getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:                     port,
		LogLevel:                 logLevel,
		CloseInterval:            closeInterval,
		WebhookTimeout:           webhookTimeout,
		EventEncoding:            eventEncoding,
		BidMaxRetries:            maxRetries,
		BidSlotTimeout:           slotTimeout,
		AntiSnipingEnabled:       antiSniping,
		AntiSnipingWindow:        window,
		AntiSnipingMaxExtensions: maxExtensions,
		Storage:                  storage,
		DatabaseURL:              databaseURL,
		DBMaxConns:               maxConns,
		DBMinConns:               minConns,
		ReadTimeout:              readTimeout,
		WriteTimeout:             writeTimeout,
		IdleTimeout:              idleTimeout,
		ShutdownTimeout:          shutdownTimeout,
	}, nil
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func newSource(path string) (*source, error) {
	src := &source{file: map[string]string{}}
	if path == "" {
		return src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		src.file[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return src, nil
}

func (s *source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s *source) getStr(key, defaultVal string) string {
	v := s.lookup(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func (s *source) getInt(key string, defaultVal int) (int, error) {
	v := s.lookup(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func (s *source) getBool(key string, defaultVal bool) (bool, error) {
	v := s.lookup(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseBool(v)
}

func (s *source) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := s.lookup(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
