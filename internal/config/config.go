// Package config loads Folio configuration from command-line flags,
// environment variables and an optional .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends accepted by STORAGE_BACKEND.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Study   StudyConfig
	Reader  ReaderConfig
	Retry   RetryConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	Backend  string // badger, sqlite or memory (default: badger)
	DataPath string // Directory holding the database (default: ~/Folio/data)
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        // default: 8080
	ReadTimeout  time.Duration // default: 15s
	WriteTimeout time.Duration // default: 15s, SSE streams opt out per request
	IdleTimeout  time.Duration // default: 60s
	CORSOrigins  []string      // default: *
	RateLimitRPS float64       // Requests per second per client (default: 20)
	RateBurst    int           // default: 40
}

// StudyConfig tunes the session timer.
type StudyConfig struct {
	TickInterval time.Duration  // default: 1s
	FlushEvery   int            // Ticks between CurrentSession flushes (default: 10)
	Location     *time.Location // Zone used for calendar-day keys (default: Local)
}

// ReaderConfig identifies the single local reader who authors notes.
type ReaderConfig struct {
	UserID   string
	UserName string
}

// RetryConfig controls the background re-flush of failed writes.
type RetryConfig struct {
	Interval time.Duration // default: 30s
}

// LoadConfig loads configuration from os.Args with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load is LoadConfig over an explicit argument list.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("folio", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Directory for the reading database")
	backend := fs.String("storage-backend", "", "Storage backend (badger, sqlite, memory)")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed CORS origins (default: *)")
	rateRPS := fs.String("rate-limit-rps", "", "Requests per second per client (default: 20)")
	rateBurst := fs.String("rate-limit-burst", "", "Request burst per client (default: 40)")

	tickInterval := fs.String("study-tick-interval", "", "Study timer tick interval (default: 1s)")
	flushEvery := fs.String("study-flush-every", "", "Ticks between session flushes (default: 10)")
	timezone := fs.String("study-timezone", "", "IANA zone for day totals (default: Local)")

	userID := fs.String("reader-user-id", "", "Local reader id")
	userName := fs.String("reader-user-name", "", "Local reader display name")
	retryInterval := fs.String("retry-interval", "", "Failed write retry interval (default: 30s)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// Missing .env is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			Backend:  strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendBadger)),
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
			RateBurst:   getIntConfigValue(*rateBurst, "RATE_LIMIT_BURST", 40),
		},
		Study: StudyConfig{
			FlushEvery: getIntConfigValue(*flushEvery, "STUDY_FLUSH_EVERY", 10),
		},
		Reader: ReaderConfig{
			UserID:   getConfigValue(*userID, "READER_USER_ID", "local"),
			UserName: getConfigValue(*userName, "READER_USER_NAME", "Reader"),
		},
	}

	rps, err := strconv.ParseFloat(getConfigValue(*rateRPS, "RATE_LIMIT_RPS", "20"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit rps: %w", err)
	}
	cfg.Server.RateLimitRPS = rps

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dst       *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*tickInterval, "STUDY_TICK_INTERVAL", "1s", &cfg.Study.TickInterval},
		{*retryInterval, "RETRY_INTERVAL", "30s", &cfg.Retry.Interval},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	loc, err := loadLocation(getConfigValue(*timezone, "STUDY_TIMEZONE", "Local"))
	if err != nil {
		return nil, err
	}
	cfg.Study.Location = loc

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and in range.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	switch c.Storage.Backend {
	case BackendBadger, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("invalid storage backend: %s (must be badger, sqlite, or memory)", c.Storage.Backend)
	}

	if c.Storage.Backend != BackendMemory && c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty for a durable backend")
	}

	if c.Study.TickInterval <= 0 {
		return errors.New("study tick interval must be positive")
	}
	if c.Study.FlushEvery < 1 {
		return errors.New("study flush interval must be at least one tick")
	}
	if c.Retry.Interval <= 0 {
		return errors.New("retry interval must be positive")
	}
	if c.Server.RateLimitRPS <= 0 || c.Server.RateBurst < 1 {
		return errors.New("rate limit must allow at least one request")
	}
	if c.Reader.UserID == "" {
		return errors.New("reader user id cannot be empty")
	}

	return nil
}

// DatabasePath returns the file or directory the selected backend opens.
func (c *Config) DatabasePath() string {
	switch c.Storage.Backend {
	case BackendSQLite:
		return filepath.Join(c.Storage.DataPath, "folio.db")
	case BackendBadger:
		return filepath.Join(c.Storage.DataPath, "badger")
	default:
		return ""
	}
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid study timezone %q: %w", name, err)
	}
	return loc, nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

func (c *Config) expandDataPath() error {
	if c.Storage.Backend == BackendMemory && c.Storage.DataPath == "" {
		return nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Storage.DataPath, filepath.Join(homeDir, "Folio", "data"))
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Real env vars win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
