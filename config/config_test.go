package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/rental-engine/ledger"
	"github.com/warp/rental-engine/rental"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "rental.db", cfg.Database.Path)
	assert.Equal(t, rental.ReturnAnyCaller, cfg.ReturnPolicy())
	assert.Equal(t, DefaultOverdueScan, cfg.Scheduler.OverdueScan)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  path: ":memory:"
platform:
  admin: "0xABC"
  return_policy: renter_or_owner
log:
  level: debug
  format: json
scheduler:
  overdue_scan: ""
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.Path)
	assert.Equal(t, ledger.Address("0xabc"), cfg.AdminAddress())
	assert.Equal(t, rental.ReturnRenterOrOwner, cfg.ReturnPolicy())
	// an empty schedule falls back to the default
	assert.Equal(t, DefaultOverdueScan, cfg.Scheduler.OverdueScan)

	log := cfg.NewLogger()
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("RENTAL_PORT", "7070")
	t.Setenv("RENTAL_DB_PATH", "/tmp/env.db")
	t.Setenv("RENTAL_ADMIN", "0xEnv")
	t.Setenv("RENTAL_JWT_SECRET", "s3cret")
	t.Setenv("RENTAL_LOG_LEVEL", "warn")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, ledger.Address("0xenv"), cfg.AdminAddress())
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "server: [\n"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"no database", func(c *Config) { c.Database.Path = "" }},
		{"no admin", func(c *Config) { c.Platform.Admin = "  " }},
		{"bad return policy", func(c *Config) { c.Platform.ReturnPolicy = "nobody" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
