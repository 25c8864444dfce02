// Package config provides YAML-based configuration for the helpdesk service.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. HELPDESK_CONFIG environment variable
//  3. ~/.helpdesk/config.yaml
//  4. ./helpdesk.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Watsonx configures the answer generation endpoint.
	Watsonx WatsonxConfig `yaml:"watsonx"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Index configures the vector index backend.
	Index IndexConfig `yaml:"index"`

	// Qdrant configures the Qdrant connection when it is the index backend.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Catalog configures QA record persistence.
	Catalog CatalogConfig `yaml:"catalog"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// WatsonxConfig holds settings for the watsonx chat endpoint.
type WatsonxConfig struct {
	// URL is the full chat completion endpoint URL.
	URL string `yaml:"url"`
	// APIKey is the IBM Cloud API key. Prefer env var WATSONX_API_KEY.
	APIKey string `yaml:"api_key"`
	// ProjectID is the watsonx project identifier.
	ProjectID string `yaml:"project_id"`
	// ModelID is the foundation model identifier.
	ModelID string `yaml:"model_id"`
	// IAMURL overrides the IAM token endpoint.
	IAMURL string `yaml:"iam_url"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (ollama, openai).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// OllamaHost is the Ollama API endpoint for the ollama provider.
	OllamaHost string `yaml:"ollama_host"`
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	// Backend selects the index implementation: chromem (default) or qdrant.
	Backend string `yaml:"backend"`
	// Path is the on-disk location for the chromem backend.
	Path string `yaml:"path"`
	// Collection is the collection name.
	Collection string `yaml:"collection"`
}

// QdrantConfig holds Qdrant settings for the qdrant index backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// CatalogConfig holds QA record catalog settings.
type CatalogConfig struct {
	// DBPath is the SQLite database path.
	DBPath string `yaml:"db_path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var HELPDESK_API_KEY.
	APIKey string `yaml:"api_key"`
	// RateLimit is the sustained requests/second allowed per client IP.
	RateLimit int `yaml:"rate_limit"`
	// RateBurst is the per-IP burst allowance.
	RateBurst int `yaml:"rate_burst"`
	// AllowedOrigins is the CORS allow list, comma separated. "*" allows all.
	AllowedOrigins string `yaml:"allowed_origins"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"WATSONX_URL", func(c *Config) string { return c.Watsonx.URL }},
	{"WATSONX_API_KEY", func(c *Config) string { return c.Watsonx.APIKey }},
	{"WATSONX_PROJECT_ID", func(c *Config) string { return c.Watsonx.ProjectID }},
	{"WATSONX_MODEL_ID", func(c *Config) string { return c.Watsonx.ModelID }},
	{"WATSONX_IAM_URL", func(c *Config) string { return c.Watsonx.IAMURL }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Embedding.OllamaHost }},
	{"INDEX_BACKEND", func(c *Config) string { return c.Index.Backend }},
	{"INDEX_PATH", func(c *Config) string { return c.Index.Path }},
	{"INDEX_COLLECTION", func(c *Config) string { return c.Index.Collection }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"CATALOG_DB", func(c *Config) string { return c.Catalog.DBPath }},
	{"HELPDESK_HOST", func(c *Config) string { return c.Server.Host }},
	{"HELPDESK_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"HELPDESK_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"HELPDESK_RATE_LIMIT", func(c *Config) string { return intStr(c.Server.RateLimit) }},
	{"HELPDESK_RATE_BURST", func(c *Config) string { return intStr(c.Server.RateBurst) }},
	{"HELPDESK_ALLOWED_ORIGINS", func(c *Config) string { return c.Server.AllowedOrigins }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set, do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("HELPDESK_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".helpdesk", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("helpdesk.yaml"); err == nil {
		return "helpdesk.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
