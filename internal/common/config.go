package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Files  FilesConfig
	Gemini GeminiConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr          string
	HistoryDBPath string // optional; empty disables the processing-history store
}

// FilesConfig holds input/output and config-file locations
type FilesConfig struct {
	InputDir         string
	OutputDir        string
	SchemaPath       string
	SystemPromptPath string
}

// GeminiConfig holds Vertex AI Gemini configuration
type GeminiConfig struct {
	ProjectID   string
	Location    string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          getEnv("HTTP_ADDR", ":8080"),
			HistoryDBPath: getEnv("HISTORY_DB_PATH", ""),
		},
		Files: FilesConfig{
			InputDir:         getEnv("INPUT_FILES_DIR", "input-files"),
			OutputDir:        getEnv("OUTPUT_DATA_DIR", "output-data"),
			SchemaPath:       getEnv("SCHEMA_PATH", "config/invoice_output_schema.json"),
			SystemPromptPath: getEnv("SYSTEM_PROMPT_PATH", "config/gemini_system_prompt.txt"),
		},
		Gemini: GeminiConfig{
			ProjectID:   getEnv("GEMINI_PROJECT_ID", ""),
			Location:    getEnv("GEMINI_LOCATION", "us-central1"),
			Model:       getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Temperature: getEnvAsFloat32("GEMINI_TEMPERATURE", 0.2),
			Timeout:     getEnvAsDuration("GEMINI_TIMEOUT", 120*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Files.InputDir == "" {
		return NewAppError("CONFIG_ERROR", "INPUT_FILES_DIR is required", ErrInvalidInput)
	}
	if c.Files.OutputDir == "" {
		return NewAppError("CONFIG_ERROR", "OUTPUT_DATA_DIR is required", ErrInvalidInput)
	}
	if c.Files.SchemaPath == "" {
		return NewAppError("CONFIG_ERROR", "SCHEMA_PATH is required", ErrInvalidInput)
	}
	if c.Gemini.ProjectID == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_PROJECT_ID is required", ErrInvalidInput)
	}
	return nil
}
