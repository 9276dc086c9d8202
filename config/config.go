/*
Package config loads the server configuration.

PURPOSE:
  One place for every tunable of the rental server: listen port, database
  path, platform admin, return policy, token secret, logging and the
  overdue scan schedule.

LOAD ORDER:
  1. Default() values
  2. YAML file (optional, -config flag)
  3. RENTAL_* environment variables (a .env file is loaded by cmd/server)
  4. Command-line flags (applied by cmd/server)
  5. Validate()

ENVIRONMENT:
  RENTAL_PORT        server.port
  RENTAL_DB_PATH     database.path
  RENTAL_ADMIN       platform.admin
  RENTAL_JWT_SECRET  auth.jwt_secret
  RENTAL_LOG_LEVEL   log.level

EXAMPLE (config.yaml):
  server:
    port: 8080
  database:
    path: rental.db
  platform:
    admin: "0xadmin"
    return_policy: renter_or_owner
  log:
    level: debug
    format: json
  scheduler:
    overdue_scan: "0 0/15 * * * *"

SEE ALSO:
  - cmd/server/main.go: flag overrides and wiring
  - rental/policy.go: return policy values
*/
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/warp/rental-engine/ledger"
	"github.com/warp/rental-engine/rental"
)

// DefaultOverdueScan runs the overdue sweep every 15 minutes (seconds field first).
const DefaultOverdueScan = "0 */15 * * * *"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Platform  PlatformConfig  `yaml:"platform"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	// Path of the SQLite file; ":memory:" keeps everything in memory.
	Path string `yaml:"path"`
}

type PlatformConfig struct {
	// Admin is initialized as the platform admin on first start.
	Admin        string `yaml:"admin"`
	ReturnPolicy string `yaml:"return_policy"`
}

// AuthConfig selects how callers are identified. With an empty secret
// the X-Caller-Address header is trusted.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type SchedulerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OverdueScan string `yaml:"overdue_scan"`
}

// Default returns a configuration that runs without a file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database: DatabaseConfig{Path: "rental.db"},
		Platform: PlatformConfig{
			Admin:        "0xadmin",
			ReturnPolicy: string(rental.ReturnAnyCaller),
		},
		Log:       LogConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{Enabled: true, OverdueScan: DefaultOverdueScan},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) overrideWithEnv() {
	if v := os.Getenv("RENTAL_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("RENTAL_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("RENTAL_ADMIN"); v != "" {
		c.Platform.Admin = v
	}
	if v := os.Getenv("RENTAL_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("RENTAL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the configuration and fills in the optional defaults.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if ledger.NewAddress(c.Platform.Admin).IsZero() {
		return fmt.Errorf("platform admin is required")
	}
	if _, err := rental.ParseReturnPolicy(c.Platform.ReturnPolicy); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}
	if c.Scheduler.OverdueScan == "" {
		c.Scheduler.OverdueScan = DefaultOverdueScan
	}
	return nil
}

// AdminAddress is the normalized platform admin.
func (c *Config) AdminAddress() ledger.Address {
	return ledger.NewAddress(c.Platform.Admin)
}

// ReturnPolicy parses the configured policy. Validate has already vetted it.
func (c *Config) ReturnPolicy() rental.ReturnPolicy {
	p, _ := rental.ParseReturnPolicy(c.Platform.ReturnPolicy)
	return p
}

// NewLogger builds the process logger from the log section.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(level)
	}
	if strings.EqualFold(c.Log.Format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
