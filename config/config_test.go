package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type testEngine struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

type testConfig struct {
	ServiceConfig `mapstructure:",squash"`
	Engine        testEngine `mapstructure:"engine"`
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "name: flows\nengine:\n  max_concurrency: 2\n  default_timeout: 30s\n")
	t.Setenv("PIPEFLOW_ENGINE__MAX_CONCURRENCY", "9")

	var cfg testConfig
	if err := LoadConfig("pipeflow", &cfg, WithConfigFile(path), WithEnvFile(filepath.Join(dir, "missing.env"))); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "flows" {
		t.Errorf("expected name flows, got %q", cfg.Name)
	}
	if cfg.Engine.MaxConcurrency != 9 {
		t.Errorf("expected env override 9, got %d", cfg.Engine.MaxConcurrency)
	}
	if cfg.Engine.DefaultTimeout != 30*time.Second {
		t.Errorf("expected 30s, got %v", cfg.Engine.DefaultTimeout)
	}
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yml", "name: flows\n")
	envPath := writeFile(t, dir, "test.env", "PIPEFLOW_ENVIRONMENT=staging\n")
	t.Cleanup(func() { os.Unsetenv("PIPEFLOW_ENVIRONMENT") })

	var cfg testConfig
	if err := LoadConfig("pipeflow", &cfg, WithConfigFile(path), WithEnvFile(envPath)); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Environment != "staging" {
		t.Errorf("expected staging from .env, got %q", cfg.Environment)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("pipeflow", &cfg,
		WithFileSystem(emptyFS{}),
		WithDefaults(map[string]any{"engine.max_concurrency": 4}),
	)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Engine.MaxConcurrency != 4 {
		t.Errorf("expected default 4, got %d", cfg.Engine.MaxConcurrency)
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	var cfg testConfig
	err := LoadConfig("pipeflow", &cfg, WithConfigFile(filepath.Join(t.TempDir(), "nope.yml")))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"ENGINE__MAX_CONCURRENCY": "engine.max_concurrency",
		"NAME":                    "name",
		"TRACKER__SQL__DSN":       "tracker.sql.dsn",
		"__":                      "",
	}
	for in, want := range tests {
		if got := EnvKey(in); got != want {
			t.Errorf("EnvKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServiceConfig_DefaultsAndValidate(t *testing.T) {
	var cfg ServiceConfig
	cfg.ApplyDefaults()
	if cfg.Name != "pipeflow" || cfg.Environment != "development" || !cfg.Debug {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Logging.ServiceName != "pipeflow" {
		t.Errorf("expected logging service name propagated, got %q", cfg.Logging.ServiceName)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	cfg.Environment = "qa"
	if err := cfg.Validate(); err == nil {
		t.Error("expected invalid environment error")
	}
}

type emptyFS struct{}

func (emptyFS) Exists(string) bool    { return false }
func (emptyFS) LoadEnv(string) error { return nil }
