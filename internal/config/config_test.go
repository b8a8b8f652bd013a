package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oof2win2/library-review-site/internal/config"
)

const configTest = `env: "test"
http:
  addr: ":9090"
  request_timeout: 3s
session:
  ttl: 3600s
  cookie_name: "seq"
  secure_cookie: true
  jwt_secret: "test-secret"
storage:
  backend: "inmemory"
kafka:
  enabled: false
`

func TestMustLoadByPath(t *testing.T) {
	path := createTempConfigFile(t, configTest)

	cfg := config.MustLoadByPath(path)

	require.NotNil(t, cfg)
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, time.Hour, cfg.SessionConfig.TTL)
	assert.Equal(t, "seq", cfg.SessionConfig.CookieName)
	assert.Equal(t, "test-secret", cfg.SessionConfig.JwtSecret)
	assert.Equal(t, "inmemory", cfg.StorageConfig.Backend)
	assert.False(t, cfg.KafkaConfig.Enabled)
}

func TestMustLoadByPathDefaults(t *testing.T) {
	path := createTempConfigFile(t, `env: "test"`)

	cfg := config.MustLoadByPath(path)

	require.NotNil(t, cfg)
	assert.Equal(t, 8760*time.Hour, cfg.SessionConfig.TTL)
	assert.Equal(t, "seq", cfg.SessionConfig.CookieName)
	assert.Equal(t, "postgres", cfg.StorageConfig.Backend)
	assert.Equal(t, "session-events", cfg.KafkaConfig.Topic)
}

func TestMustLoadByPathMissingFile(t *testing.T) {
	assert.Panics(t, func() {
		config.MustLoadByPath(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test_config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Can't create temp test config file: %v", err)
	}
	return path
}
