package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/talentflow/pkg/config"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	p := cfg.Faults.Policy()
	if p.Rate("jobs.reorder") != 0.05 || p.Rate("assessments.submit") != 0 || p.Rate("jobs.update") != 0.1 {
		t.Errorf("default policy = %+v", p)
	}
}

func TestHTTPConfig_PortRange(t *testing.T) {
	cfg := HTTPConfig{Port: 70000}
	if err := cfg.Validate(); err == nil {
		t.Fatal("port 70000 should fail validation")
	}
	cfg.Port = 9090
	if cfg.Address() != ":9090" {
		t.Errorf("address = %q", cfg.Address())
	}
}

func TestFaultsConfig_RejectsBadRates(t *testing.T) {
	cfg := FaultsConfig{FailureRate: 1.5}
	if err := cfg.Validate(); err == nil {
		t.Error("failure rate 1.5 should fail validation")
	}

	cfg = FaultsConfig{Rates: map[string]float64{"jobs.delete": 0.5}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown operation") {
		t.Errorf("unknown op: %v", err)
	}

	cfg = FaultsConfig{Rates: map[string]float64{"jobs.reorder": -1}}
	if err := cfg.Validate(); err == nil {
		t.Error("negative rate should fail validation")
	}
}

func TestFaultsConfig_LatencyOrder(t *testing.T) {
	cfg := FaultsConfig{LatencyMin: time.Second, LatencyMax: time.Millisecond}
	if err := cfg.Validate(); err == nil {
		t.Error("latency_max below latency_min should fail validation")
	}
}

func TestFullConfig_SectionErrorsAreNamed(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Fixtures.Path = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "fixtures") {
		t.Errorf("error = %v, want it to name the fixtures section", err)
	}
}

func TestLoadYAMLWithEnvExpansion(t *testing.T) {
	t.Setenv("TALENTFLOW_TEST_DB", "/tmp/expanded.db")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
app:
  log_level: debug
  http:
    port: 9000
sqlite:
  path: ${TALENTFLOW_TEST_DB}
faults:
  enabled: true
  failure_rate: 0.2
  latency_min: 10ms
  latency_max: 50ms
  rates:
    jobs.reorder: 0.5
client:
  settle_delay: 100ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SQLite.Path != "/tmp/expanded.db" {
		t.Errorf("sqlite path = %q", cfg.SQLite.Path)
	}
	if cfg.App.HTTP.Port != 9000 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Faults.LatencyMax != 50*time.Millisecond || cfg.Faults.Policy().Rate("jobs.reorder") != 0.5 {
		t.Errorf("faults = %+v", cfg.Faults)
	}
	if cfg.Client.SettleDelay != 100*time.Millisecond {
		t.Errorf("settle delay = %v", cfg.Client.SettleDelay)
	}
	if cfg.Fixtures.Path != "./data" {
		t.Errorf("unset sections keep defaults, got fixtures path %q", cfg.Fixtures.Path)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  http:\n    port: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := NewDefaultConfig()
	err := pkgconfig.Load(path, cfg)
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("error = %v", err)
	}
}
