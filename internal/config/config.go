package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is the desktop browser identification sent on every outbound request.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	HTTP     HTTPConfig     `yaml:"http"`
	Origin   OriginConfig   `yaml:"origin"`
	Resolver ResolverConfig `yaml:"resolver"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
}

// HTTPConfig configures the shared outbound client.
type HTTPConfig struct {
	UserAgent             string        `yaml:"user_agent" envconfig:"HTTP_USER_AGENT"`
	Referer               string        `yaml:"referer" envconfig:"HTTP_REFERER"`
	MaxRedirects          int           `yaml:"max_redirects" envconfig:"HTTP_MAX_REDIRECTS"`
	DialTimeout           time.Duration `yaml:"dial_timeout" envconfig:"HTTP_DIAL_TIMEOUT"`
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout" envconfig:"HTTP_RESPONSE_HEADER_TIMEOUT"`
}

// OriginConfig holds content-type probing and stream relay settings.
type OriginConfig struct {
	ProbeTimeout       time.Duration `yaml:"probe_timeout" envconfig:"ORIGIN_PROBE_TIMEOUT"`
	StreamTimeout      time.Duration `yaml:"stream_timeout" envconfig:"ORIGIN_STREAM_TIMEOUT"`
	ChunkSize          int           `yaml:"chunk_size" envconfig:"ORIGIN_CHUNK_SIZE"`
	DefaultContentType string        `yaml:"default_content_type" envconfig:"ORIGIN_DEFAULT_CONTENT_TYPE"`
	SniffGeneric       bool          `yaml:"sniff_generic" envconfig:"ORIGIN_SNIFF_GENERIC"`
}

// ResolverConfig holds settings for the external share-link parsing service.
type ResolverConfig struct {
	BaseURL         string        `yaml:"base_url" envconfig:"RESOLVER_BASE_URL"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"RESOLVER_TIMEOUT"`
	DefaultTitle    string        `yaml:"default_title" envconfig:"RESOLVER_DEFAULT_TITLE"`
	PlaceholderBase string        `yaml:"placeholder_base" envconfig:"RESOLVER_PLACEHOLDER_BASE"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"RESOLVER_MAX_BODY_BYTES"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format     string `yaml:"format" envconfig:"LOG_FORMAT"`
	File       string `yaml:"file" envconfig:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" envconfig:"LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"LOG_MAX_AGE_DAYS"`
}

// Defaults returns the configuration used when neither a file nor the
// environment sets a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		HTTP: HTTPConfig{
			UserAgent:             DefaultUserAgent,
			MaxRedirects:          10,
			DialTimeout:           10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
		},
		Origin: OriginConfig{
			ProbeTimeout:       5 * time.Second,
			StreamTimeout:      30 * time.Second,
			ChunkSize:          64 * 1024,
			DefaultContentType: "video/mp4",
		},
		Resolver: ResolverConfig{
			Timeout:         60 * time.Second,
			DefaultTitle:    "无标题",
			PlaceholderBase: "https://via.placeholder.com/150/000000/FFFFFF/",
			MaxBodyBytes:    4 << 20, // 4MB
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads configuration from an optional .env file, an optional YAML
// file, and environment variables. Environment variables override file values.
func Load(configPath, envPath string) (*Config, error) {
	cfg := Defaults()

	// Values already present in the environment win over the .env file
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables that are actually set
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = DefaultUserAgent
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Resolver.BaseURL == "" {
		return fmt.Errorf("RESOLVER_BASE_URL is required")
	}
	u, err := url.Parse(c.Resolver.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("RESOLVER_BASE_URL must be an absolute http(s) URL, got %q", c.Resolver.BaseURL)
	}
	if c.Origin.ChunkSize <= 0 {
		return fmt.Errorf("ORIGIN_CHUNK_SIZE must be positive")
	}
	if c.Origin.DefaultContentType == "" {
		return fmt.Errorf("ORIGIN_DEFAULT_CONTENT_TYPE is required")
	}
	if c.HTTP.MaxRedirects < 0 {
		return fmt.Errorf("HTTP_MAX_REDIRECTS must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
