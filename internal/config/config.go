package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig holds everything the service needs at startup. Values come from
// the environment, optionally overlaid by a YAML file named in CONFIG_FILE.
type AppConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	ShutdownTimeout time.Duration `yaml:"-"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads .env if present, then the environment, then the optional YAML
// overlay. The overlay wins where it sets a value.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{
		ListenAddr:      ":8080",
		ShutdownTimeout: 15 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	cfg.LogFormat = strings.TrimSpace(os.Getenv("LOG_FORMAT"))

	if v := strings.TrimSpace(os.Getenv("SHUTDOWN_TIMEOUT_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ShutdownTimeout = time.Duration(n) * time.Second
		}
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}

func (c *AppConfig) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var overlay struct {
		ListenAddr      string `yaml:"listen_addr"`
		RedisURL        string `yaml:"redis_url"`
		DatabaseURL     string `yaml:"database_url"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		LogLevel        string `yaml:"log_level"`
		LogFormat       string `yaml:"log_format"`
	}
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if overlay.ListenAddr != "" {
		c.ListenAddr = overlay.ListenAddr
	}
	if overlay.RedisURL != "" {
		c.RedisURL = overlay.RedisURL
	}
	if overlay.DatabaseURL != "" {
		c.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.ShutdownTimeout != "" {
		d, err := time.ParseDuration(overlay.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("parse shutdown_timeout: %w", err)
		}
		c.ShutdownTimeout = d
	}
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.LogFormat != "" {
		c.LogFormat = overlay.LogFormat
	}
	return nil
}
