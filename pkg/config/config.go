// Package config provides configuration structures and loading logic for the gateway.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Upstream modes.
const (
	UpstreamEcho = "echo"
	UpstreamHTTP = "http"
)

// Config holds the global configuration for the gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Policy    PolicyConfig    `yaml:"policy"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Intent    IntentConfig    `yaml:"intent"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Audit     AuditConfig     `yaml:"audit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// PolicyConfig points at the policy document and controls hot reload.
type PolicyConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// EmbeddingConfig holds configuration for the embedding backend.
type EmbeddingConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// IntentConfig tunes the classifier.
type IntentConfig struct {
	// Threshold is the minimum cosine similarity for a semantic match.
	// Zero means the classifier default.
	Threshold float64 `yaml:"threshold"`
}

// UpstreamConfig selects and configures the model upstream.
type UpstreamConfig struct {
	// Mode is "echo" or "http".
	Mode    string        `yaml:"mode"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// AuditConfig holds configuration for audit sinks. Empty paths disable
// the corresponding sink.
type AuditConfig struct {
	Path       string `yaml:"path"`
	SQLitePath string `yaml:"sqlite_path"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		// Defaults
		Server: ServerConfig{
			Address: ":8080",
		},
		Policy: PolicyConfig{
			Path:  "config/policy.yaml",
			Watch: true,
		},
		Embedding: EmbeddingConfig{
			BaseURL: "http://localhost:11434",
			Model:   "nomic-embed-text",
			Timeout: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			Mode: UpstreamEcho,
		},
		Audit: AuditConfig{
			Path: "logs/audit.log",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if path != "" {
		//nolint:gosec // Config file path is controlled by admin/operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("ARBITER_ADDR"); val != "" {
		cfg.Server.Address = val
	}
	if val := os.Getenv("ARBITER_POLICY_PATH"); val != "" {
		cfg.Policy.Path = val
	}
	if val := os.Getenv("ARBITER_EMBEDDING_URL"); val != "" {
		cfg.Embedding.BaseURL = val
	}
	if val := os.Getenv("ARBITER_EMBEDDING_MODEL"); val != "" {
		cfg.Embedding.Model = val
	}
	if val := os.Getenv("ARBITER_UPSTREAM_MODE"); val != "" {
		cfg.Upstream.Mode = val
	}
	if val := os.Getenv("ARBITER_UPSTREAM_URL"); val != "" {
		cfg.Upstream.BaseURL = val
	}
	if val := os.Getenv("ARBITER_AUDIT_PATH"); val != "" {
		cfg.Audit.Path = val
	}
	if val := os.Getenv("ARBITER_AUDIT_SQLITE_PATH"); val != "" {
		cfg.Audit.SQLitePath = val
	}
	if val := os.Getenv("ARBITER_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("ARBITER_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("ARBITER_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Policy.Path == "" {
		return fmt.Errorf("policy.path must not be empty")
	}
	switch c.Upstream.Mode {
	case UpstreamEcho:
	case UpstreamHTTP:
		if c.Upstream.BaseURL == "" {
			return fmt.Errorf("upstream.base_url is required when upstream.mode is %q", UpstreamHTTP)
		}
	default:
		return fmt.Errorf("upstream.mode must be %q or %q, got %q", UpstreamEcho, UpstreamHTTP, c.Upstream.Mode)
	}
	if c.Intent.Threshold < 0 || c.Intent.Threshold > 1 {
		return fmt.Errorf("intent.threshold must be within [0, 1], got %v", c.Intent.Threshold)
	}
	return nil
}
