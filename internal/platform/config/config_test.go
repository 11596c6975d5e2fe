package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PORT", "")
	t.Setenv("SERVER_MODE", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Verification.AutoAcceptConfidence != 0.85 || cfg.Verification.RejectConfidence != 0.40 {
		t.Errorf("verification thresholds = %v/%v", cfg.Verification.AutoAcceptConfidence, cfg.Verification.RejectConfidence)
	}
	if cfg.Auth.OTPMaxAttempts != 5 {
		t.Errorf("otp_max_attempts = %d, want 5", cfg.Auth.OTPMaxAttempts)
	}
	if cfg.Jobs.RetryBackoff != 30*time.Second {
		t.Errorf("retry_backoff = %v, want 30s", cfg.Jobs.RetryBackoff)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SERVER_MODE", "")

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
  mode: production
verification:
  auto_accept_confidence: 0.9
  reject_confidence: 0.5
jobs:
  retry_backoff: 1m
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Server.Mode != "production" {
		t.Errorf("server = %q/%q", cfg.Server.Port, cfg.Server.Mode)
	}
	if cfg.Verification.AutoAcceptConfidence != 0.9 || cfg.Verification.RejectConfidence != 0.5 {
		t.Errorf("verification thresholds = %v/%v", cfg.Verification.AutoAcceptConfidence, cfg.Verification.RejectConfidence)
	}
	if cfg.Jobs.RetryBackoff != time.Minute {
		t.Errorf("retry_backoff = %v, want 1m", cfg.Jobs.RetryBackoff)
	}
	// Untouched sections keep their defaults.
	if cfg.Media.MaxUploadBytes != 25<<20 {
		t.Errorf("max_upload_bytes = %d", cfg.Media.MaxUploadBytes)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PORT", "7070")
	t.Setenv("SERVER_MODE", "production")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port = %q, want env override 7070", cfg.Server.Port)
	}
	if cfg.Server.Mode != "production" {
		t.Errorf("mode = %q, want production", cfg.Server.Mode)
	}
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SERVER_MODE", "")
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SERVER_MODE", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
verification:
  auto_accept_confidence: 0.3
  reject_confidence: 0.6
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("accept threshold below reject threshold should fail validation")
	}
}
