package config

import (
	"os"
	"strconv"

	"phenotab/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Paths    PathConfig
}

// DatabaseConfig holds run-archive connection settings. The archive is
// optional: with no DATABASE_URL the pipeline runs without one.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// ServerConfig holds the review API settings
type ServerConfig struct {
	Port string
}

// PathConfig holds file system paths
type PathConfig struct {
	RulesFile string
	Workbook  string
	OutputDir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	// Load database configuration
	dbConfig := loadDatabaseConfig()
	config.Database = *dbConfig

	// Load server configuration
	serverConfig := loadServerConfig()
	config.Server = *serverConfig

	// Load path configuration
	pathConfig := loadPathConfig()
	config.Paths = *pathConfig

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:          getEnvOrDefault("DATABASE_URL", ""),
		MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 8),
		MaxIdleConns: getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 4),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadPathConfig() *PathConfig {
	return &PathConfig{
		RulesFile: getEnvOrDefault("RULES_FILE", ""),
		Workbook:  getEnvOrDefault("WORKBOOK_FILE", ""),
		OutputDir: getEnvOrDefault("OUTPUT_DIR", "output"),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Paths.OutputDir == "" {
		return errors.ConfigInvalid("output directory is required")
	}
	if config.Database.MaxOpenConns <= 0 {
		return errors.ConfigInvalid("DB_MAX_OPEN_CONNS must be positive")
	}
	if config.Database.MaxIdleConns <= 0 {
		return errors.ConfigInvalid("DB_MAX_IDLE_CONNS must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
