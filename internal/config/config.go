package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved launcher and server configuration. Values
// resolve in three tiers: CLI flags override environment variables, which
// override config.yaml, which overrides the built-in defaults.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	QueryGrid QueryGridConfig `mapstructure:"querygrid"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the managed HTTP server bind address and the
// bounded health probe used by status.
type ServerConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	HealthCheckTimeout time.Duration `mapstructure:"health_check_timeout"`
}

// QueryGridConfig holds the QueryGrid Manager connection used by the health
// surface. Empty credentials mean "not configured"; the health endpoint
// then reports querygrid as not-configured instead of probing it.
type QueryGridConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	VerifySSL      bool          `mapstructure:"verify_ssl"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig controls the daily server log file and its rotation.
type LoggingConfig struct {
	Dir           string `mapstructure:"dir"`
	Level         string `mapstructure:"level"`
	MaxFileSizeMB int    `mapstructure:"max_file_size_mb"`
	BackupCount   int    `mapstructure:"backup_count"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Environment variable names honored by ApplyEnv. These match the names the
// launcher exports to the spawned server so both sides resolve identically.
const (
	EnvServerHost = "QG_MCP_SERVER_HOST"
	EnvServerPort = "QG_MCP_SERVER_PORT"
	EnvLogLevel   = "QG_MCP_SERVER_LOG_LEVEL"
	EnvLogDir     = "QG_MCP_SERVER_LOG_DIR"
	EnvQGMHost    = "QG_MANAGER_HOST"
	EnvQGMPort    = "QG_MANAGER_PORT"
	EnvQGMUser    = "QG_MANAGER_USERNAME"
	EnvQGMPass    = "QG_MANAGER_PASSWORD"
	EnvQGMVerify  = "QG_MANAGER_VERIFY_SSL"
)

// Default returns the built-in defaults used when config.yaml is absent or
// a section omits a key.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			HealthCheckTimeout: 5 * time.Second,
		},
		QueryGrid: QueryGridConfig{
			Host:           "localhost",
			Port:           9443,
			VerifySSL:      true,
			RequestTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Dir:           "logs",
			Level:         "INFO",
			MaxFileSizeMB: 100,
			BackupCount:   10,
			RetentionDays: 30,
		},
	}
}

// Load reads config.yaml from path and merges it over the defaults. A
// missing file yields plain defaults. A malformed file also falls back to
// defaults, returning the parse error so callers can warn and continue.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	v := viper.New()
	v.SetConfigFile(filepath.Clean(path))
	v.SetConfigType("yaml")
	applyDefaults(v, cfg)
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return Default(), fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.health_check_timeout", d.Server.HealthCheckTimeout)
	v.SetDefault("querygrid.host", d.QueryGrid.Host)
	v.SetDefault("querygrid.port", d.QueryGrid.Port)
	v.SetDefault("querygrid.verify_ssl", d.QueryGrid.VerifySSL)
	v.SetDefault("querygrid.request_timeout", d.QueryGrid.RequestTimeout)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.max_file_size_mb", d.Logging.MaxFileSizeMB)
	v.SetDefault("logging.backup_count", d.Logging.BackupCount)
	v.SetDefault("logging.retention_days", d.Logging.RetentionDays)
}

// ApplyEnv overlays environment variables on cfg. Malformed numeric values
// are ignored rather than failing resolution.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvServerHost); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvLogDir); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv(EnvQGMHost); v != "" {
		cfg.QueryGrid.Host = v
	}
	if v := os.Getenv(EnvQGMPort); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.QueryGrid.Port = p
		}
	}
	if v := os.Getenv(EnvQGMUser); v != "" {
		cfg.QueryGrid.Username = v
	}
	if v := os.Getenv(EnvQGMPass); v != "" {
		cfg.QueryGrid.Password = v
	}
	if v := os.Getenv(EnvQGMVerify); v != "" {
		cfg.QueryGrid.VerifySSL = parseBool(v)
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}

// Env renders cfg as the environment variable list passed to the spawned
// server process, so the child resolves to the same values the launcher
// did.
func (c Config) Env() []string {
	env := []string{
		EnvServerHost + "=" + c.Server.Host,
		EnvServerPort + "=" + strconv.Itoa(c.Server.Port),
		EnvLogLevel + "=" + c.Logging.Level,
		EnvLogDir + "=" + c.Logging.Dir,
		EnvQGMHost + "=" + c.QueryGrid.Host,
		EnvQGMPort + "=" + strconv.Itoa(c.QueryGrid.Port),
		EnvQGMVerify + "=" + strconv.FormatBool(c.QueryGrid.VerifySSL),
	}
	if c.QueryGrid.Username != "" {
		env = append(env, EnvQGMUser+"="+c.QueryGrid.Username)
	}
	if c.QueryGrid.Password != "" {
		env = append(env, EnvQGMPass+"="+c.QueryGrid.Password)
	}
	return env
}

// ListenAddr is the bind address for the managed server.
func (c ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ProbeHost is the host used to reach the server locally. A wildcard bind
// address is not dialable, so probes go to localhost instead.
func (c ServerConfig) ProbeHost() string {
	if c.Host == "0.0.0.0" || c.Host == "::" || c.Host == "" {
		return "localhost"
	}
	return c.Host
}

// HealthURL is the health endpoint consumed by status.
func (c ServerConfig) HealthURL() string {
	return fmt.Sprintf("http://%s:%d/health", c.ProbeHost(), c.Port)
}
