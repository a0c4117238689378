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
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address :8080, got %s", cfg.Server.Address)
	}
	if cfg.Upstream.Mode != UpstreamEcho {
		t.Errorf("expected default upstream mode echo, got %s", cfg.Upstream.Mode)
	}
	if !cfg.Policy.Watch {
		t.Error("expected policy watching to default on")
	}
	if cfg.Embedding.Timeout != 30*time.Second {
		t.Errorf("expected default embedding timeout 30s, got %v", cfg.Embedding.Timeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9191"
policy:
  path: "/etc/arbiter/policy.yaml"
  watch: false
embedding:
  base_url: "http://embeddings:11434"
  model: "all-minilm"
upstream:
  mode: http
  base_url: "http://llm:11434"
  model: "llama3"
audit:
  path: "/var/log/arbiter/audit.log"
  sqlite_path: "/var/lib/arbiter/audit.db"
telemetry:
  otlp_endpoint: "otel-collector:4317"
  insecure: true
logging:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Address != ":9191" {
		t.Errorf("expected address :9191, got %s", cfg.Server.Address)
	}
	if cfg.Policy.Watch {
		t.Error("expected policy watching disabled")
	}
	if cfg.Upstream.Mode != UpstreamHTTP || cfg.Upstream.BaseURL != "http://llm:11434" {
		t.Errorf("unexpected upstream config: %+v", cfg.Upstream)
	}
	if cfg.Audit.SQLitePath != "/var/lib/arbiter/audit.db" {
		t.Errorf("unexpected sqlite path: %s", cfg.Audit.SQLitePath)
	}
	if cfg.Telemetry.OTLPEndpoint != "otel-collector:4317" || !cfg.Telemetry.Insecure {
		t.Errorf("unexpected telemetry config: %+v", cfg.Telemetry)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Pretty {
		t.Errorf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ARBITER_ADDR", ":7070")
	t.Setenv("ARBITER_UPSTREAM_MODE", "http")
	t.Setenv("ARBITER_UPSTREAM_URL", "http://override:11434")
	t.Setenv("ARBITER_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Server.Address != ":7070" {
		t.Errorf("expected env override :7070, got %s", cfg.Server.Address)
	}
	if cfg.Upstream.BaseURL != "http://override:11434" {
		t.Errorf("expected env override upstream url, got %s", cfg.Upstream.BaseURL)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected env override log level warn, got %s", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateRejectsBadUpstreamMode(t *testing.T) {
	path := writeConfig(t, `
upstream:
  mode: grpc
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for unknown upstream mode")
	}
}

func TestValidateRequiresHTTPUpstreamURL(t *testing.T) {
	path := writeConfig(t, `
upstream:
  mode: http
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for http upstream without base_url")
	}
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	path := writeConfig(t, `
intent:
  threshold: 1.5
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for out-of-range threshold")
	}
}
