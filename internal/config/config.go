// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port           int           `yaml:"port"`
	APIKey         string        `yaml:"api_key"`
	JWTSecret      string        `yaml:"jwt_secret"`
	CookieDomain   string        `yaml:"cookie_domain"`
	SecureCookie   bool          `yaml:"secure_cookie"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PageSize       int           `yaml:"page_size"`   // plans per page
	WindowSize     int           `yaml:"window_size"` // page links between < and >
	LoginLimit     int           `yaml:"login_limit"` // login attempts per minute per IP
	Lang           string        `yaml:"lang"`        // UI language, locales/<lang>.yaml
}

type DatabaseConfig struct {
	URL      string `yaml:"url"` // empty -> in-memory plans
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty -> no cache, no login limit
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates required fields.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Admin.RequestTimeout <= 0 {
		cfg.Admin.RequestTimeout = 15 * time.Second
	}
	if cfg.Admin.PageSize <= 0 {
		cfg.Admin.PageSize = 10
	}
	if cfg.Admin.WindowSize <= 0 {
		cfg.Admin.WindowSize = 5
	}
	if cfg.Admin.LoginLimit <= 0 {
		cfg.Admin.LoginLimit = 5
	}
	if cfg.Admin.Lang == "" {
		cfg.Admin.Lang = "en"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Admin.APIKey == "" {
		return nil, errors.New("admin.api_key is required")
	}
	if len(cfg.Admin.JWTSecret) < 16 {
		return nil, errors.New("admin.jwt_secret must be at least 16 characters")
	}
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
