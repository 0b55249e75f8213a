package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Ollama  OllamaConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 5000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "all-minilm",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".helpdesk"
	}
	return filepath.Join(home, ".helpdesk")
}

// Load reads an optional .env file from the working directory and applies
// HELPDESK_* environment variables on top of the built-in defaults.
// Environment variables always win over .env values already present in the
// process environment.
func Load() (Config, error) {
	// Missing .env is fine; the process environment is the source of truth.
	_ = godotenv.Load()
	return loadFromEnv(defaults())
}

func loadFromEnv(cfg Config) (Config, error) {
	if v := os.Getenv("HELPDESK_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing HELPDESK_PORT %q: %w", v, err)
		}
		if port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("HELPDESK_PORT %d out of range", port)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("HELPDESK_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("HELPDESK_OLLAMA_URL"); v != "" {
		cfg.Ollama.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("HELPDESK_EMBED_MODEL"); v != "" {
		cfg.Ollama.EmbedModel = v
	}
	if v := os.Getenv("HELPDESK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, nil
}

// SlogLevel maps the configured log level string to a slog.Level.
// Unknown values fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
