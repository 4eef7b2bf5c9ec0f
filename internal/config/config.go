package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration. Values come from an optional
// YAML file, overridden by FORKY_* environment variables.
type Config struct {
	Port       int    `yaml:"port" validate:"gt=0,lte=65535"`
	DBPath     string `yaml:"db_path" validate:"required"`
	EMTBaseURL string `yaml:"emt_base_url" validate:"required,url"`

	// Optional EMT credentials. When set, the server can authenticate
	// on startup without an interactive login.
	Email    string `yaml:"email"`
	Password string `yaml:"password"`

	PageSize       int `yaml:"page_size" validate:"gt=0"`
	SearchLimit    int `yaml:"search_limit" validate:"gt=0"`
	HTTPTimeoutSec int `yaml:"http_timeout_sec" validate:"gt=0"`
}

// Load reads the YAML file at path (if non-empty), applies environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Port:           8080,
		DBPath:         "./forky.db",
		EMTBaseURL:     "https://openapi.emtmadrid.es",
		PageSize:       50,
		SearchLimit:    50,
		HTTPTimeoutSec: 15,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = envInt("FORKY_PORT", cfg.Port)
	cfg.DBPath = envStr("FORKY_DB_PATH", cfg.DBPath)
	cfg.EMTBaseURL = envStr("FORKY_EMT_URL", cfg.EMTBaseURL)
	cfg.Email = envStr("FORKY_EMAIL", cfg.Email)
	cfg.Password = envStr("FORKY_PASSWORD", cfg.Password)
	cfg.PageSize = envInt("FORKY_PAGE_SIZE", cfg.PageSize)
	cfg.SearchLimit = envInt("FORKY_SEARCH_LIMIT", cfg.SearchLimit)
	cfg.HTTPTimeoutSec = envInt("FORKY_HTTP_TIMEOUT_SEC", cfg.HTTPTimeoutSec)

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
