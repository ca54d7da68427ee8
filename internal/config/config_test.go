package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/docsmith/internal/config"
)

func TestWithDefault(t *testing.T) {
	cfg, err := config.WithDefault().Build()
	if err != nil {
		t.Fatalf("default config must build: %v", err)
	}
	if cfg.ConcurrentRequests() != 3 {
		t.Errorf("concurrentRequests: got %d", cfg.ConcurrentRequests())
	}
	if cfg.RequestsPerSecond() != 2 {
		t.Errorf("requestsPerSecond: got %v", cfg.RequestsPerSecond())
	}
	if cfg.MaxRetries() != 2 {
		t.Errorf("maxRetries: got %d", cfg.MaxRetries())
	}
	if cfg.Timeout() != 15*time.Second {
		t.Errorf("timeout: got %v", cfg.Timeout())
	}
	if !cfg.RespectRobots() {
		t.Error("robots should be respected by default")
	}
	if cfg.UserAgent() == "" {
		t.Error("default user agent must not be empty")
	}
	if cfg.OutputDir() != "output" {
		t.Errorf("outputDir: got %q", cfg.OutputDir())
	}
}

func TestBuilder_Overrides(t *testing.T) {
	cfg, err := config.WithDefault().
		WithConcurrentRequests(8).
		WithRequestsPerSecond(0.5).
		WithMaxRetries(0).
		WithRespectRobots(false).
		WithUserAgent("custom/2.0").
		WithDryRun(true).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ConcurrentRequests() != 8 || cfg.RequestsPerSecond() != 0.5 {
		t.Error("overrides not applied")
	}
	if cfg.MaxRetries() != 0 {
		t.Errorf("maxRetries: got %d", cfg.MaxRetries())
	}
	if cfg.RespectRobots() {
		t.Error("expected robots disabled")
	}
	if cfg.UserAgent() != "custom/2.0" {
		t.Errorf("userAgent: got %q", cfg.UserAgent())
	}
	if !cfg.DryRun() {
		t.Error("expected dry run")
	}
}

func TestBuilder_Validation(t *testing.T) {
	cases := []struct {
		name    string
		builder config.Builder
	}{
		{"zero concurrency", config.WithDefault().WithConcurrentRequests(0)},
		{"negative rps", config.WithDefault().WithRequestsPerSecond(-1)},
		{"negative retries", config.WithDefault().WithMaxRetries(-1)},
		{"zero timeout", config.WithDefault().WithTimeout(0)},
		{"blank user agent", config.WithDefault().WithUserAgent("  ")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.builder.Build(); !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestWithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"concurrentRequests": 5,
		"requestsPerSecond": 1.5,
		"maxRetries": 0,
		"timeoutMs": 5000,
		"userAgent": "filetest/1.0",
		"respectRobots": false,
		"outputDir": "out"
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.WithConfigFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ConcurrentRequests() != 5 {
		t.Errorf("concurrentRequests: got %d", cfg.ConcurrentRequests())
	}
	if cfg.RequestsPerSecond() != 1.5 {
		t.Errorf("requestsPerSecond: got %v", cfg.RequestsPerSecond())
	}
	if cfg.MaxRetries() != 0 {
		t.Errorf("maxRetries zero in file must stick, got %d", cfg.MaxRetries())
	}
	if cfg.Timeout() != 5*time.Second {
		t.Errorf("timeout: got %v", cfg.Timeout())
	}
	if cfg.RespectRobots() {
		t.Error("respectRobots false in file must stick")
	}
	if cfg.OutputDir() != "out" {
		t.Errorf("outputDir: got %q", cfg.OutputDir())
	}
	// Omitted fields keep defaults.
	if cfg.BaseDelay() != 250*time.Millisecond {
		t.Errorf("baseDelay default: got %v", cfg.BaseDelay())
	}
}

func TestWithConfigFile_Missing(t *testing.T) {
	_, err := config.WithConfigFile(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, config.ErrFileDoesNotExist) {
		t.Errorf("expected ErrFileDoesNotExist, got %v", err)
	}
}

func TestWithConfigFile_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"concurency": 4}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.WithConfigFile(path); !errors.Is(err, config.ErrConfigParsingFail) {
		t.Errorf("expected ErrConfigParsingFail for unknown key, got %v", err)
	}
}

func TestWithConfigFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.WithConfigFile(path); !errors.Is(err, config.ErrConfigParsingFail) {
		t.Errorf("expected ErrConfigParsingFail, got %v", err)
	}
}
