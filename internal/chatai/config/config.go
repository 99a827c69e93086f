// Package config loads the chatai configuration from viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/longkey1/chatai/internal/chatai/api"
	"github.com/longkey1/chatai/internal/chatai/cache"
)

// Config holds the configuration for the chat client
type Config struct {
	BaseURL        string        `toml:"base_url" mapstructure:"base_url"`
	RequestTimeout time.Duration `toml:"request_timeout" mapstructure:"request_timeout"` // Directory and auth calls only; streams have no timeout
	PromptDirs     []string      `toml:"prompt_dirs" mapstructure:"prompt_dirs"`
	CacheDriver    string        `toml:"cache_driver" mapstructure:"cache_driver"` // none, memory or redis
	RedisURL       string        `toml:"redis_url" mapstructure:"redis_url"`
	CacheTTL       time.Duration `toml:"cache_ttl" mapstructure:"cache_ttl"`
	LogLevel       string        `toml:"log_level" mapstructure:"log_level"`
	LogFormat      string        `toml:"log_format" mapstructure:"log_format"` // text or json
}

// File is the on-disk shape written by 'chatai init'. Durations are kept
// as strings so the TOML stays readable.
type File struct {
	BaseURL        string   `toml:"base_url"`
	RequestTimeout string   `toml:"request_timeout"`
	PromptDirs     []string `toml:"prompt_dirs"`
	CacheDriver    string   `toml:"cache_driver"`
	RedisURL       string   `toml:"redis_url"`
	CacheTTL       string   `toml:"cache_ttl"`
	LogLevel       string   `toml:"log_level"`
	LogFormat      string   `toml:"log_format"`
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig(promptDir string) *Config {
	return &Config{
		BaseURL:        api.DefaultBaseURL,
		RequestTimeout: api.DefaultTimeout,
		PromptDirs:     []string{promptDir},
		CacheDriver:    string(cache.StoreTypeMemory),
		RedisURL:       "$CHATAI_REDIS_URL",
		CacheTTL:       10 * time.Minute,
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

// File returns c in its on-disk shape.
func (c *Config) File() File {
	return File{
		BaseURL:        c.BaseURL,
		RequestTimeout: c.RequestTimeout.String(),
		PromptDirs:     c.PromptDirs,
		CacheDriver:    c.CacheDriver,
		RedisURL:       c.RedisURL,
		CacheTTL:       c.CacheTTL.String(),
		LogLevel:       c.LogLevel,
		LogFormat:      c.LogFormat,
	}
}

// SetDefaults registers the default values with viper.
func SetDefaults(v *viper.Viper) {
	d := NewDefaultConfig("prompts")
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("cache_driver", d.CacheDriver)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	return Load(viper.GetViper())
}

// Load loads configuration from v, expanding environment references and
// resolving prompt directories against the config file location.
func Load(v *viper.Viper) (*Config, error) {
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}

	// Expand environment variable references
	var err error
	if config.BaseURL, err = expandEnvVar(config.BaseURL); err != nil {
		return nil, err
	}
	if config.RedisURL, err = expandEnvVar(config.RedisURL); err != nil {
		return nil, err
	}

	// Convert prompt directories to absolute paths
	for i, promptDir := range config.PromptDirs {
		absPath, err := resolvePath(v, promptDir)
		if err != nil {
			return nil, fmt.Errorf("error resolving prompt directory path '%s': %v", promptDir, err)
		}
		config.PromptDirs[i] = absPath
	}

	// Validate the resolved values
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is not configured. Set it in config file (base_url) or environment variable (CHATAI_BASE_URL)")
	}
	switch cache.StoreType(c.CacheDriver) {
	case cache.StoreTypeNone, cache.StoreTypeMemory, "":
	case cache.StoreTypeRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("cache_driver is redis but redis_url is not configured. Set it in config file (redis_url) or environment variable (CHATAI_REDIS_URL)")
		}
	default:
		return fmt.Errorf("unsupported cache driver: %s", c.CacheDriver)
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.LogFormat)
	}
	return nil
}
