// Package config loads the explicit configuration value threaded into every
// component at construction time. Nothing reads the environment after startup.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings for the botforge pipeline.
type Config struct {
	// HTTP surface
	Port string

	// Completion service
	OllamaURL   string
	OllamaModel string

	// Where assembled projects are persisted
	WorkspaceRoot string

	// Run archive database
	DatabasePath string

	// Fixed service ports for deployed projects
	BackendPort  int
	FrontendPort int

	// Overall deadline for a run's generation phase
	GenerationDeadline time.Duration

	// Interval the coordinator polls for worker results
	ResultPollInterval time.Duration
}

// Load builds a Config from the environment, applying defaults for anything
// unset. Call after godotenv has populated the process environment.
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		OllamaURL:          getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:        getEnv("OLLAMA_MODEL", "deepseek-r1:latest"),
		WorkspaceRoot:      getEnv("WORKSPACE_ROOT", defaultWorkspace()),
		DatabasePath:       getEnv("DATABASE_PATH", "botforge.db"),
		BackendPort:        getEnvInt("BACKEND_PORT", 8000),
		FrontendPort:       getEnvInt("FRONTEND_PORT", 3000),
		GenerationDeadline: getEnvDuration("GENERATION_DEADLINE", 120*time.Second),
		ResultPollInterval: getEnvDuration("RESULT_POLL_INTERVAL", time.Second),
	}
}

func defaultWorkspace() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
