package config

import (
	"fmt"
	"os"
	"time"

	"github.com/vietddude/landplan/internal/infra/ratelimit"
	"github.com/vietddude/landplan/internal/infra/retry"
	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	// Retry starts from the defaults so only keys present in the file
	// override them; an explicit zero such as max_retries: 0 is kept.
	cfg := AppConfig{Retry: retry.DefaultPolicy()}
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	cfg := AppConfig{Retry: retry.DefaultPolicy()}
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 60 * time.Second
	}

	for i := range cfg.RateLimits {
		if cfg.RateLimits[i].RefillInterval == 0 {
			cfg.RateLimits[i].RefillInterval = ratelimit.DefaultRefillInterval
		}
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay (%v) is below retry.base_delay (%v)", cfg.Retry.MaxDelay, cfg.Retry.BaseDelay)
	}

	seen := make(map[string]bool)
	for _, rl := range cfg.RateLimits {
		if rl.Name == "" {
			return fmt.Errorf("rate_limits entry without name")
		}
		if seen[string(rl.Name)] {
			return fmt.Errorf("duplicate rate limit %q", rl.Name)
		}
		seen[string(rl.Name)] = true
		if err := rl.Validate(); err != nil {
			return fmt.Errorf("rate limit %s: %w", rl.Name, err)
		}
	}
	return nil
}
