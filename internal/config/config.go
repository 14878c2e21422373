package config

import (
	"fmt"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Config holds all runtime settings.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Logging   LoggingConfig   `koanf:"logging"`
	MCP       MCPConfig       `koanf:"mcp"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type EmbeddingConfig struct {
	URL   string `koanf:"url"`
	Model string `koanf:"model"`
}

type CatalogConfig struct {
	Seed bool `koanf:"seed"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type MCPConfig struct {
	Stdio bool `koanf:"stdio"`
}

func defaultConfig() Config {
	return Config{
		Server:    ServerConfig{Port: 8650},
		Database:  DatabaseConfig{Path: "./moodcue.duckdb"},
		Embedding: EmbeddingConfig{URL: "http://localhost:11434", Model: "paraphrase-multilingual-MiniLM-L12-v2"},
		Catalog:   CatalogConfig{Seed: true},
		Logging:   LoggingConfig{Level: "info", Format: "console"},
		MCP:       MCPConfig{Stdio: false},
	}
}

// envMapping translates known environment variables to koanf paths. Unmapped
// variables are dropped so unrelated environment noise cannot reach the
// config tree.
var envMapping = map[string]string{
	"HTTP_PORT":       "server.port",
	"DUCKDB_PATH":     "database.path",
	"EMBEDDING_URL":   "embedding.url",
	"EMBEDDING_MODEL": "embedding.model",
	"SEED_CATALOG":    "catalog.seed",
	"LOG_LEVEL":       "logging.level",
	"LOG_FORMAT":      "logging.format",
	"MCP_STDIO":       "mcp.stdio",
}

// Load builds the configuration from defaults layered under environment
// variable overrides.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	envProvider := env.Provider("", ".", func(key string) string {
		return envMapping[key]
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Embedding.URL == "" {
		return fmt.Errorf("embedding url is required")
	}
	return nil
}
