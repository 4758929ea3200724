package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "portal:\n  filter_year: 2025\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Portal.BaseURL == "" || cfg.Gazette.BaseURL == "" {
		t.Fatal("portal URLs should default")
	}
	if cfg.Gazette.CaptchaAutoAttempts != 3 {
		t.Fatalf("captcha attempts = %d, want 3", cfg.Gazette.CaptchaAutoAttempts)
	}
	if cfg.Gazette.CaptchaManualTimeout != 5*time.Minute {
		t.Fatalf("manual timeout = %v, want 5m", cfg.Gazette.CaptchaManualTimeout)
	}
	if cfg.PortalTimeout() != 20*time.Second {
		t.Fatalf("portal timeout = %v, want 20s", cfg.PortalTimeout())
	}
}

func TestLoadRejectsBadFilterYear(t *testing.T) {
	path := writeConfig(t, "portal:\n  filter_year: 1200\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for out-of-range filter year")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FILTER_YEAR", "2024")
	t.Setenv("TIMEOUT_SECONDS", "45")
	t.Setenv("DATA_DIR", "/tmp/audit")

	path := writeConfig(t, "portal:\n  filter_year: 2025\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Portal.FilterYear != 2024 {
		t.Fatalf("filter year = %d, want env override 2024", cfg.Portal.FilterYear)
	}
	if cfg.Portal.TimeoutSeconds != 45 || cfg.Gazette.TimeoutSeconds != 45 {
		t.Fatal("timeout env override not applied to both portals")
	}
	if cfg.Run.DataDir != "/tmp/audit" {
		t.Fatalf("data dir = %s, want env override", cfg.Run.DataDir)
	}
}

func TestYAMLValuesWin(t *testing.T) {
	path := writeConfig(t, `
portal:
  filter_year: 2023
  timeout_seconds: 30
gazette:
  max_candidates: 10
run:
  max_companies: 7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Portal.FilterYear != 2023 || cfg.Portal.TimeoutSeconds != 30 {
		t.Fatal("yaml portal values not honored")
	}
	if cfg.Gazette.MaxCandidates != 10 {
		t.Fatal("yaml gazette values not honored")
	}
	if cfg.Run.MaxCompanies != 7 {
		t.Fatal("yaml run values not honored")
	}
}
