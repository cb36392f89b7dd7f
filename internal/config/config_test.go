package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:     AppConfig{Environment: "development"},
		Logger:  LoggerConfig{Level: "info"},
		Storage: StorageConfig{Backend: BackendBadger, DataPath: "/some/path"},
		Server:  ServerConfig{RateLimitRPS: 20, RateBurst: 40},
		Study:   StudyConfig{TickInterval: time.Second, FlushEvery: 10, Location: time.UTC},
		Reader:  ReaderConfig{UserID: "local", UserName: "Reader"},
		Retry:   RetryConfig{Interval: 30 * time.Second},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Environments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logger.Level = "trace" }},
		{"bad backend", func(c *Config) { c.Storage.Backend = "redis" }},
		{"durable backend without path", func(c *Config) { c.Storage.DataPath = "" }},
		{"zero tick", func(c *Config) { c.Study.TickInterval = 0 }},
		{"zero flush", func(c *Config) { c.Study.FlushEvery = 0 }},
		{"zero retry", func(c *Config) { c.Retry.Interval = 0 }},
		{"zero rate", func(c *Config) { c.Server.RateLimitRPS = 0 }},
		{"empty reader", func(c *Config) { c.Reader.UserID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_MemoryBackendNeedsNoPath(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Backend = BackendMemory
	cfg.Storage.DataPath = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"-env-file", filepath.Join(t.TempDir(), "missing.env"), "-data-path", t.TempDir()})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.Equal(t, BackendBadger, cfg.Storage.Backend)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Study.TickInterval)
	assert.Equal(t, 10, cfg.Study.FlushEvery)
	assert.Equal(t, time.Local, cfg.Study.Location)
	assert.Equal(t, 30*time.Second, cfg.Retry.Interval)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("STUDY_FLUSH_EVERY", "5")
	t.Setenv("STUDY_TIMEZONE", "UTC")

	cfg, err := Load([]string{
		"-env-file", filepath.Join(t.TempDir(), "missing.env"),
		"-data-path", t.TempDir(),
		"-port", "7000",
	})
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Study.FlushEvery)
	assert.Equal(t, "UTC", cfg.Study.Location.String())
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment\nFOLIO_TEST_ONLY=1\nCORS_ORIGINS=\"http://a.test, http://b.test\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("FOLIO_TEST_ONLY")
		os.Unsetenv("CORS_ORIGINS")
	})

	cfg, err := Load([]string{"-env-file", envPath, "-storage-backend", "memory"})
	require.NoError(t, err)

	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.Empty(t, cfg.Storage.DataPath)
	assert.Empty(t, cfg.DatabasePath())
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load([]string{
		"-env-file", filepath.Join(t.TempDir(), "missing.env"),
		"-storage-backend", "memory",
		"-study-tick-interval", "soon",
	})
	assert.Error(t, err)
}

func TestDatabasePath(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, filepath.Join("/some/path", "badger"), cfg.DatabasePath())

	cfg.Storage.Backend = BackendSQLite
	assert.Equal(t, filepath.Join("/some/path", "folio.db"), cfg.DatabasePath())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/Folio/data", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Folio", "data"), got)

	got, err = expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)
}
