package config

import (
	"os"
	"testing"
	"time"

	"github.com/vietddude/landplan/internal/core/domain"
	"github.com/vietddude/landplan/internal/infra/ratelimit"
	"github.com/vietddude/landplan/internal/infra/retry"
)

func TestLoad_EnvSubstitution(t *testing.T) {
	// Setup env var
	os.Setenv("TEST_GEN_API_KEY", "sk-test-123")
	defer os.Unsetenv("TEST_GEN_API_KEY")

	// Create temp config file
	configContent := `
generation:
  endpoint: https://gen.example.com
  api_key: ${TEST_GEN_API_KEY}
`
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write([]byte(configContent)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()

	// Load config
	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Generation.APIKey != "sk-test-123" {
		t.Errorf("Expected API key sk-test-123, got %s", cfg.Generation.APIKey)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Generation.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Generation.Timeout)
	}

	def := retry.DefaultPolicy()
	if cfg.Retry.MaxRetries != def.MaxRetries || cfg.Retry.BaseDelay != def.BaseDelay || cfg.Retry.MaxDelay != def.MaxDelay {
		t.Errorf("Retry = %+v, want defaults", cfg.Retry)
	}
	if len(cfg.Retry.RetryableCodes) != 5 {
		t.Errorf("RetryableCodes = %v, want 5 defaults", cfg.Retry.RetryableCodes)
	}
	if len(cfg.BucketOverrides()) != 0 {
		t.Errorf("expected no bucket overrides, got %v", cfg.BucketOverrides())
	}
}

func TestParse_RetryAndRateLimits(t *testing.T) {
	content := `
retry:
  max_retries: 0
  base_delay: 250ms
  max_delay: 2s
  retryable_errors: [429, ETIMEDOUT]
rate_limits:
  - name: text-generation
    capacity: 20
    refill_rate: 0.5
  - name: image-generation
    capacity: 3
    refill_rate: 0.05
    refill_interval: 2s
`
	cfg, err := Parse([]byte(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want explicit 0 kept", cfg.Retry.MaxRetries)
	}
	if !cfg.Retry.Allows(retry.HTTPStatus(429)) || !cfg.Retry.Allows(retry.Symbol("ETIMEDOUT")) || cfg.Retry.Allows(retry.HTTPStatus(503)) {
		t.Errorf("unexpected retryable codes %v", cfg.Retry.RetryableCodes)
	}

	overrides := cfg.BucketOverrides()
	text := overrides[domain.ResourceTextGeneration]
	if text.Capacity != 20 || text.RefillRate != 0.5 || text.RefillInterval != time.Second {
		t.Errorf("text-generation = %+v", text)
	}
	image := overrides[domain.ResourceImageGeneration]
	if image.Capacity != 3 || image.RefillInterval != 2*time.Second {
		t.Errorf("image-generation = %+v", image)
	}
}

func TestParse_PartialRetryKeepsExplicitZero(t *testing.T) {
	cfg, err := Parse([]byte("retry:\n  max_retries: 0\n  base_delay: 2s\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Retry.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want explicit 0 kept", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.MaxAttempts() != 1 {
		t.Errorf("MaxAttempts = %d, want 1", cfg.Retry.MaxAttempts())
	}
	if cfg.Retry.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay = %v, want 2s", cfg.Retry.BaseDelay)
	}

	def := retry.DefaultPolicy()
	if cfg.Retry.MaxDelay != def.MaxDelay {
		t.Errorf("MaxDelay = %v, want default %v", cfg.Retry.MaxDelay, def.MaxDelay)
	}
	if len(cfg.Retry.RetryableCodes) != len(def.RetryableCodes) {
		t.Errorf("RetryableCodes = %v, want defaults", cfg.Retry.RetryableCodes)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative retries", "retry:\n  max_retries: -1\n  retryable_errors: [429]\n"},
		{"max below base", "retry:\n  base_delay: 5s\n  max_delay: 1s\n"},
		{"zero capacity", "rate_limits:\n  - name: text-generation\n    capacity: 0\n    refill_rate: 1\n"},
		{"missing name", "rate_limits:\n  - capacity: 1\n    refill_rate: 1\n"},
		{"duplicate", "rate_limits:\n  - {name: a, capacity: 1, refill_rate: 1}\n  - {name: a, capacity: 2, refill_rate: 1}\n"},
		{"bad code", "retry:\n  retryable_errors: [[1]]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestLoad_ExampleMatchesDefaultRefill(t *testing.T) {
	cfg, err := Load("../../../config.example.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := map[domain.ResourceName]time.Duration{
		domain.ResourceTextGeneration:  6 * time.Second,
		domain.ResourceImageGeneration: 12 * time.Second,
	}
	for name, cfgBucket := range cfg.BucketOverrides() {
		b, err := ratelimit.NewTokenBucket(cfgBucket, fixedClock{now: time.Unix(0, 0)})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		for b.TryConsume(1) {
		}
		if got := b.WaitTime(1); got != want[name] {
			t.Errorf("%s: WaitTime(1) after exhaustion = %v, want %v", name, got, want[name])
		}
	}
}
