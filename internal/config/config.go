package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// GitHub
	GitHubToken string

	// Files
	DataFile     string
	StateFile    string
	MetadataFile string

	// Sync tuning
	ListRateInterval time.Duration
	ItemRateInterval time.Duration
	SyncWorkers      int
	ListWorkers      int
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		GitHubToken:      getEnv("GITHUB_TOKEN", ""),
		DataFile:         getEnv("DATA_FILE", "organized_stars.json"),
		StateFile:        getEnv("STATE_FILE", ".sync_to_github_state.json"),
		MetadataFile:     getEnv("METADATA_FILE", "starred_repos.json"),
		ListRateInterval: getDurationEnv("LIST_RATE_INTERVAL_MS", 300*time.Millisecond),
		ItemRateInterval: getDurationEnv("ITEM_RATE_INTERVAL_MS", 300*time.Millisecond),
		SyncWorkers:      getIntEnv("SYNC_WORKERS", 8),
		ListWorkers:      getIntEnv("LIST_WORKERS", 8),
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv returns an integer environment variable or a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

// getDurationEnv reads a millisecond count from the environment
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.GitHubToken == "" {
		return &ConfigError{Field: "GITHUB_TOKEN", Message: "GitHub token is required"}
	}
	if c.DataFile == "" {
		return &ConfigError{Field: "DATA_FILE", Message: "categorized data file path is required"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
