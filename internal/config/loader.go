package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr       = "127.0.0.1:7777"
	DefaultMaxBodyBytes     = 1 << 20
	DefaultBatchConcurrency = 4
	DefaultShutdownTimeout  = 15 * time.Second
	DefaultTemperature      = 0.3
	DefaultMaxTokens        = 500
	DefaultRewriteTimeout   = 10 * time.Second
	DefaultMinOverlap       = 0.5
	DefaultLowConfidence    = 0.5
	DefaultPhoneticThresh   = 0.70
	DefaultFuzzyThresh      = 0.85
	DefaultMinLetters       = 3
	DefaultServiceName      = "vibecoding"
	DefaultMCPPath          = "/mcp"
)

// ValidProviderNames lists the LLM provider names that ship with the daemon.
// Used by [Validate] to warn about unrecognised names.
var ValidProviderNames = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Unknown keys are rejected. An empty document yields the
// default config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default applied, as used when the
// daemon runs without a config file.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.BatchConcurrency == 0 {
		s.BatchConcurrency = DefaultBatchConcurrency
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}

	rw := &cfg.Rewrite
	if rw.Temperature == nil {
		rw.Temperature = ptr(DefaultTemperature)
	}
	if rw.MaxTokens == 0 {
		rw.MaxTokens = DefaultMaxTokens
	}
	if rw.Timeout == 0 {
		rw.Timeout = DefaultRewriteTimeout
	}
	if rw.MinOverlap == nil {
		rw.MinOverlap = ptr(DefaultMinOverlap)
	}
	if rw.LowConfidence == 0 {
		rw.LowConfidence = DefaultLowConfidence
	}

	v := &cfg.Vocabulary
	if v.PhoneticThreshold == 0 {
		v.PhoneticThreshold = DefaultPhoneticThresh
	}
	if v.FuzzyThreshold == 0 {
		v.FuzzyThreshold = DefaultFuzzyThresh
	}
	if v.MinLetters == 0 {
		v.MinLetters = DefaultMinLetters
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = DefaultMCPPath
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.Server.ListenAddr); err != nil {
			errs = append(errs, fmt.Errorf("server.listen_addr %q is invalid: %w", cfg.Server.ListenAddr, err))
		}
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes %d must not be negative", cfg.Server.MaxBodyBytes))
	}
	if cfg.Server.BatchConcurrency < 0 {
		errs = append(errs, fmt.Errorf("server.batch_concurrency %d must not be negative", cfg.Server.BatchConcurrency))
	}

	// Rewrite
	rw := cfg.Rewrite
	if rw.Enabled && len(rw.Providers) == 0 {
		errs = append(errs, errors.New("rewrite.enabled requires at least one entry in rewrite.providers"))
	}
	for i, p := range rw.Providers {
		prefix := fmt.Sprintf("rewrite.providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
		validateProviderName(p.Name)
	}
	if rw.Temperature != nil && (*rw.Temperature < 0 || *rw.Temperature > 2) {
		errs = append(errs, fmt.Errorf("rewrite.temperature %.2f is out of range [0, 2]", *rw.Temperature))
	}
	if rw.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("rewrite.max_tokens %d must not be negative", rw.MaxTokens))
	}
	if rw.Timeout < 0 {
		errs = append(errs, fmt.Errorf("rewrite.timeout %s must not be negative", rw.Timeout))
	}
	if rw.MinOverlap != nil && (*rw.MinOverlap < 0 || *rw.MinOverlap > 1) {
		errs = append(errs, fmt.Errorf("rewrite.min_overlap %.2f is out of range [0, 1]", *rw.MinOverlap))
	}
	if rw.LowConfidence < 0 || rw.LowConfidence > 1 {
		errs = append(errs, fmt.Errorf("rewrite.low_confidence %.2f is out of range [0, 1]", rw.LowConfidence))
	}

	// Vocabulary
	v := cfg.Vocabulary
	for name, val := range map[string]float64{
		"phonetic_threshold": v.PhoneticThreshold,
		"fuzzy_threshold":    v.FuzzyThreshold,
	} {
		if val < 0 || val > 1 {
			errs = append(errs, fmt.Errorf("vocabulary.%s %.2f is out of range [0, 1]", name, val))
		}
	}
	if v.MinLetters < 0 {
		errs = append(errs, fmt.Errorf("vocabulary.min_letters %d must not be negative", v.MinLetters))
	}
	for i, term := range v.Terms {
		if strings.TrimSpace(term) == "" {
			slog.Warn("vocabulary term is blank and will be ignored", "index", i)
		}
	}

	// MCP
	if cfg.MCP.Path != "" && !strings.HasPrefix(cfg.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}
	if slices.Contains([]string{"/v1/format", "/v1/clean", "/v1/stream", "/healthz", "/readyz", "/metrics"}, cfg.MCP.Path) {
		errs = append(errs, fmt.Errorf("mcp.path %q collides with a built-in endpoint", cfg.MCP.Path))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is not one of
// [ValidProviderNames].
func validateProviderName(name string) {
	if slices.Contains(ValidProviderNames, strings.ToLower(name)) {
		return
	}
	slog.Warn("unknown provider name; may be a typo or third-party provider",
		"name", name,
		"known", ValidProviderNames,
	)
}

// ResolveAPIKey returns e.APIKey, or the value of the APIKeyEnv variable when
// the key is not set inline.
func (e ProviderEntry) ResolveAPIKey() string {
	if e.APIKey != "" || e.APIKeyEnv == "" {
		return e.APIKey
	}
	return os.Getenv(e.APIKeyEnv)
}

func ptr[T any](v T) *T { return &v }
