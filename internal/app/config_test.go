package app

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "unit-test-secret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.SessionTokenTTL)
	assert.Equal(t, "hrdesk", cfg.MongoDatabase)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.RBACDefaultDeny)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigRejectsShortProductionSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("APP_ENV", "production")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLogLevelValue(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "debug"}).LogLevelValue())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "WARN"}).LogLevelValue())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "chatty"}).LogLevelValue())
	var nilCfg *Config
	assert.Equal(t, slog.LevelInfo, nilCfg.LogLevelValue())
}

func TestInTestMode(t *testing.T) {
	for value, want := range map[string]bool{"1": true, "true": true, "0": false, "": false, "yes": false} {
		t.Setenv(TestModeEnv, value)
		assert.Equal(t, want, InTestMode(), value)
	}
}

func TestNewLoggerAcceptsNilConfig(t *testing.T) {
	assert.NotNil(t, NewLogger(nil))
}

func TestNewLoggerFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"k":"v"`)
}
