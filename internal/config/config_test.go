package config

import (
	"errors"
	"testing"

	"github.com/rebeccahihi/pseudo/internal/entity"
)

func TestGetDefaults(t *testing.T) {
	cfg := GetDefaults()

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Pseudonym.RoleWindow != 60 {
		t.Errorf("default role window = %d, want 60", cfg.Pseudonym.RoleWindow)
	}
	if cfg.Pseudonym.DateShiftRangeDays != 7300 {
		t.Errorf("default date shift range = %d, want 7300", cfg.Pseudonym.DateShiftRangeDays)
	}
	if cfg.NER.Backend != "http" {
		t.Errorf("default NER backend = %q, want http", cfg.NER.Backend)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if !cfg.Server.RateLimit.Enabled || cfg.Server.RateLimit.RequestsPerMin != 120 {
		t.Errorf("unexpected rate limit defaults: %+v", cfg.Server.RateLimit)
	}
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config { return GetDefaults() }

	t.Run("defaults are valid", func(t *testing.T) {
		if err := validateConfig(valid()); err != nil {
			t.Errorf("defaults failed validation: %v", err)
		}
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := valid()
		cfg.Server.Port = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("expected error for port 0")
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		cfg := valid()
		cfg.Logging.Level = "verbose"
		if err := validateConfig(cfg); err == nil {
			t.Error("expected error for unknown log level")
		}
	})

	t.Run("bad ner backend", func(t *testing.T) {
		cfg := valid()
		cfg.NER.Backend = "grpc"
		if err := validateConfig(cfg); err == nil {
			t.Error("expected error for unknown NER backend")
		}
	})

	t.Run("http backend needs endpoint", func(t *testing.T) {
		cfg := valid()
		cfg.NER.Endpoint = ""
		if err := validateConfig(cfg); err == nil {
			t.Error("expected error for http backend without endpoint")
		}
	})

	t.Run("role window must be positive", func(t *testing.T) {
		cfg := valid()
		cfg.Pseudonym.RoleWindow = 0
		if err := validateConfig(cfg); err == nil {
			t.Error("expected error for zero role window")
		}
	})

	t.Run("malformed pattern override", func(t *testing.T) {
		cfg := valid()
		cfg.Pseudonym.PatternOverrides = map[string]string{"email": "[bad"}
		err := validateConfig(cfg)
		if !errors.Is(err, entity.ErrPatternCompilation) {
			t.Errorf("want ErrPatternCompilation, got %v", err)
		}
	})

	t.Run("valid pattern override", func(t *testing.T) {
		cfg := valid()
		cfg.Pseudonym.PatternOverrides = map[string]string{"email": `\bx@y\.com\b`}
		if err := validateConfig(cfg); err != nil {
			t.Errorf("valid override rejected: %v", err)
		}
	})
}
