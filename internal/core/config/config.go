package config

import (
	"time"

	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/infra/ratelimit"
	redisclient "github.com/vietddude/landplan/internal/infra/redis"
	"github.com/vietddude/landplan/internal/infra/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	Redis      redisclient.Config `yaml:"redis"`
	Generation GenerationConfig   `yaml:"generation"`
	Retry      retry.Policy       `yaml:"retry"`
	RateLimits []RateLimitConfig  `yaml:"rate_limits"`
}

// ServerConfig holds status server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// GenerationConfig holds settings for the external generation service.
type GenerationConfig struct {
	Endpoint   string        `yaml:"endpoint"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	PlanModel  string        `yaml:"plan_model"`
	ImageModel string        `yaml:"image_model"`
}

// RateLimitConfig overrides or adds one named bucket.
type RateLimitConfig struct {
	Name                   domain.ResourceName `yaml:"name"`
	ratelimit.BucketConfig `yaml:",inline"`
}

// BucketOverrides returns the configured buckets keyed by resource name.
func (c *AppConfig) BucketOverrides() map[domain.ResourceName]ratelimit.BucketConfig {
	out := make(map[domain.ResourceName]ratelimit.BucketConfig, len(c.RateLimits))
	for _, rl := range c.RateLimits {
		out[rl.Name] = rl.BucketConfig
	}
	return out
}
