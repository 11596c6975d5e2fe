package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/urbanwatch/urbanwatch-backend/internal/platform/envutil"
)

// Config is the file-backed tuning surface. Secrets and connection strings
// stay in the environment; the YAML file holds the knobs operators actually
// adjust between deployments.
type Config struct {
	Server struct {
		Port            string        `yaml:"port"`
		Mode            string        `yaml:"mode"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Verification struct {
		// Detections at or above AutoAcceptConfidence become accident records
		// even if the verdict text is ambiguous; below RejectConfidence they
		// become false alarms regardless.
		AutoAcceptConfidence float64 `yaml:"auto_accept_confidence"`
		RejectConfidence     float64 `yaml:"reject_confidence"`
	} `yaml:"verification"`

	Auth struct {
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
		OTPTTL          time.Duration `yaml:"otp_ttl"`
		OTPMaxAttempts  int           `yaml:"otp_max_attempts"`
	} `yaml:"auth"`

	Jobs struct {
		RetryBackoff time.Duration `yaml:"retry_backoff"`
	} `yaml:"jobs"`

	Media struct {
		MaxUploadBytes int64 `yaml:"max_upload_bytes"`
		UseLocalStore  bool  `yaml:"use_local_store"`
	} `yaml:"media"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Mode = "development"
	cfg.Server.ShutdownTimeout = 15 * time.Second
	cfg.Verification.AutoAcceptConfidence = 0.85
	cfg.Verification.RejectConfidence = 0.40
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	cfg.Auth.OTPTTL = 5 * time.Minute
	cfg.Auth.OTPMaxAttempts = 5
	cfg.Jobs.RetryBackoff = 30 * time.Second
	cfg.Media.MaxUploadBytes = 25 << 20
	return cfg
}

// Load reads CONFIG_PATH (or the given path) over the defaults. A missing
// file is not an error; the defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = envutil.String("CONFIG_PATH", "")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if p := envutil.String("PORT", ""); p != "" {
		cfg.Server.Port = p
	}
	if m := envutil.String("SERVER_MODE", ""); m != "" {
		cfg.Server.Mode = m
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Verification.AutoAcceptConfidence < c.Verification.RejectConfidence {
		return fmt.Errorf("verification: auto_accept_confidence %.2f below reject_confidence %.2f",
			c.Verification.AutoAcceptConfidence, c.Verification.RejectConfidence)
	}
	if c.Auth.OTPMaxAttempts <= 0 {
		return fmt.Errorf("auth: otp_max_attempts must be positive")
	}
	if c.Media.MaxUploadBytes <= 0 {
		return fmt.Errorf("media: max_upload_bytes must be positive")
	}
	return nil
}
