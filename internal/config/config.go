// Package config provides the configuration schema, loader, and provider
// registry for the vibecoding transcript cleanup daemon.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Rewrite    RewriteConfig    `yaml:"rewrite"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	MCP        MCPConfig        `yaml:"mcp"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the daemon listens on. Default:
	// "127.0.0.1:7777". Keep it on loopback unless TLS is configured.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures HTTPS. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// MaxBodyBytes caps request bodies. Default: 1 MiB.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// BatchConcurrency bounds how many items of a batch request are cleaned
	// at once. Default: 4.
	BatchConcurrency int `yaml:"batch_concurrency"`

	// AllowedOrigins lists extra origin host patterns (e.g. "localhost:*")
	// accepted for WebSocket upgrades besides the server's own host.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// ShutdownTimeout bounds graceful shutdown. Default: 15s.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// FeedbackFile, when set, enables POST /v1/feedback. Reports are
	// appended to this file as JSON lines.
	FeedbackFile string `yaml:"feedback_file"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// RewriteConfig controls the optional LLM rewrite stage.
type RewriteConfig struct {
	// Enabled turns the stage on. At least one provider is then required.
	Enabled bool `yaml:"enabled"`

	// Providers lists rewrite backends in failover order. The first entry is
	// the primary.
	Providers []ProviderEntry `yaml:"providers"`

	// Temperature is the sampling temperature in [0, 2]. Default: 0.3.
	Temperature *float64 `yaml:"temperature"`

	// MaxTokens caps the completion length. Default: 500.
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds a single rewrite attempt, failover included.
	// Default: 10s.
	Timeout time.Duration `yaml:"timeout"`

	// MinOverlap is the minimum word overlap between input and rewrite in
	// [0, 1]; 0 disables the drift check. Default: 0.5.
	MinOverlap *float64 `yaml:"min_overlap"`

	// SystemPrompt replaces the built-in professional-writing prompt.
	SystemPrompt string `yaml:"system_prompt"`

	// LowConfidence is the recognizer word confidence below which words are
	// flagged to the model as possibly misheard. Default: 0.5.
	LowConfidence float64 `yaml:"low_confidence"`

	// CircuitBreaker tunes the per-provider breakers.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig mirrors the tunables of the resilience package.
// Zero values select its defaults.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// ProviderEntry configures one LLM backend. Name selects the constructor in
// the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "openai",
	// "anthropic", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// APIKeyEnv names an environment variable holding the key. Used when
	// APIKey is empty.
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects the model within the provider (e.g. "gpt-4o-mini").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// VocabularyConfig lists the user's custom terms and tunes the matcher.
type VocabularyConfig struct {
	// Terms are names and jargon that misheard words are snapped onto.
	Terms []string `yaml:"terms"`

	// PhoneticThreshold is the minimum similarity for a term that also
	// sounds alike. Default: 0.70.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum similarity for a term that does not
	// sound alike. Default: 0.85.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// MinLetters skips spoken phrases shorter than this. Default: 3.
	MinLetters int `yaml:"min_letters"`
}

// TelemetryConfig controls OpenTelemetry setup.
type TelemetryConfig struct {
	// ServiceName is reported in telemetry. Default: "vibecoding".
	ServiceName string `yaml:"service_name"`

	// Metrics exposes /metrics. Default: true.
	Metrics *bool `yaml:"metrics"`
}

// MetricsEnabled reports whether /metrics should be served.
func (t TelemetryConfig) MetricsEnabled() bool {
	return t.Metrics == nil || *t.Metrics
}

// MCPConfig controls the Model Context Protocol endpoint.
type MCPConfig struct {
	// Enabled mounts the MCP server on the HTTP listener.
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the streamable MCP endpoint. Default: "/mcp".
	Path string `yaml:"path"`
}
