// Package config loads backend configuration in three layers: struct
// defaults, an optional YAML file, then environment variables.
//
// Environment variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT
//   - DATABASE_URL, DB_MAX_OPEN_CONNS, DB_CONNECT_TIMEOUT
//   - S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, S3_BUCKET, STORAGE_TIMEOUT,
//     S3_CONNECT_TIMEOUT
//   - ADMIN_SECRET (empty means not configured)
//   - LOG_LEVEL, LOG_FORMAT
//   - CONFIG_PATH overrides the YAML file location
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are tried in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

const ConfigPathEnvVar = "CONFIG_PATH"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Log      LogConfig      `koanf:"log"`

	// AdminSecret guards deletes when non-empty.
	AdminSecret string `koanf:"admin_secret"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	URL            string        `koanf:"url" validate:"omitempty,url"`
	MaxOpenConns   int           `koanf:"max_open_conns" validate:"min=1,max=100"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"gt=0"`
}

type StorageConfig struct {
	Endpoint  string        `koanf:"endpoint"`
	AccessKey string        `koanf:"access_key" validate:"required_with=Endpoint"`
	SecretKey string        `koanf:"secret_key" validate:"required_with=Endpoint"`
	Bucket    string        `koanf:"bucket" validate:"required_with=Endpoint"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`

	// ConnectTimeout bounds the bucket check at startup.
	ConnectTimeout time.Duration `koanf:"connect_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5002,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:   10,
			ConnectTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Bucket:         "panoramas",
			Timeout:        30 * time.Second,
			ConnectTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from defaults, the config file and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	"port":               "server.port",
	"host":               "server.host",
	"shutdown_timeout":   "server.shutdown_timeout",
	"database_url":       "database.url",
	"db_max_open_conns":  "database.max_open_conns",
	"db_connect_timeout": "database.connect_timeout",
	"s3_endpoint":        "storage.endpoint",
	"s3_access_key":      "storage.access_key",
	"s3_secret_key":      "storage.secret_key",
	"s3_bucket":          "storage.bucket",
	"storage_timeout":    "storage.timeout",
	"s3_connect_timeout": "storage.connect_timeout",
	"admin_secret":       "admin_secret",
	"log_level":          "log.level",
	"log_format":         "log.format",
}

// envTransformFunc maps known variable names to config paths. Unknown
// variables map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// AdminSecretOption returns the admin secret, or nil when none is
// configured.
func (c *Config) AdminSecretOption() *string {
	if c.AdminSecret == "" {
		return nil
	}
	s := c.AdminSecret
	return &s
}

// StorageConfigured reports whether object storage settings are present.
func (c *Config) StorageConfigured() bool {
	return c.Storage.Endpoint != ""
}
