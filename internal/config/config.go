package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm/logger"
)

// Common errors
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")
	ErrInvalidLogLevel    = errors.New("DB_LOG_LEVEL must be one of silent, error, warn, info")
)

const (
	DefaultPort    = "5050"
	DefaultDataDir = "data"
)

// Config holds runtime configuration for the server and the loaders.
type Config struct {
	DatabaseURL string
	Port        string

	// DataDir is the root for input files. Background imports may only read below it.
	DataDir string

	// DBLogLevel is one of silent, error, warn, info.
	DBLogLevel string

	AllowedOrigins []string

	// ProvinceMapFile optionally overrides the built-in province translation table.
	ProvinceMapFile string
}

// LoadFromEnv loads configuration from environment variables.
//
// Environment variables:
//   - DATABASE_URL: postgres://, mysql:// or sqlite:// URL (required)
//   - PORT: listen port (default: 5050)
//   - DATA_DIR: input file root (default: data)
//   - DB_LOG_LEVEL: silent, error, warn or info (default: warn)
//   - CORS_ORIGINS: comma separated allow-list
//   - PROVINCE_MAP: path to a YAML province translation table
func LoadFromEnv() Config {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = DefaultPort
	}

	dataDir := strings.TrimSpace(os.Getenv("DATA_DIR"))
	if dataDir == "" {
		dataDir = DefaultDataDir
	}

	level := strings.ToLower(strings.TrimSpace(os.Getenv("DB_LOG_LEVEL")))
	if level == "" {
		level = "warn"
	}

	return Config{
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Port:            port,
		DataDir:         dataDir,
		DBLogLevel:      level,
		AllowedOrigins:  splitList(os.Getenv("CORS_ORIGINS")),
		ProvinceMapFile: strings.TrimSpace(os.Getenv("PROVINCE_MAP")),
	}
}

// Validate checks that the configuration can be used to start.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if _, ok := logLevels[c.DBLogLevel]; !ok {
		return fmt.Errorf("%w: got %q", ErrInvalidLogLevel, c.DBLogLevel)
	}
	return nil
}

var logLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

// GormLogLevel maps DBLogLevel onto gorm's levels, falling back to Warn.
func (c Config) GormLogLevel() logger.LogLevel {
	if lvl, ok := logLevels[c.DBLogLevel]; ok {
		return lvl
	}
	return logger.Warn
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
