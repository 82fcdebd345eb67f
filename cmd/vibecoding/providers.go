package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/vibecoding/internal/config"
	"github.com/MrWong99/vibecoding/pkg/provider/llm"
	"github.com/MrWong99/vibecoding/pkg/provider/llm/anyllm"
	"github.com/MrWong99/vibecoding/pkg/provider/llm/openai"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in rewrite backends into reg.
//
// "openai" uses the native openai-go client, which honours organization and
// timeout options. Every other hosted backend goes through any-llm-go and
// shares the same pattern: optional API key plus optional base URL.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLLM("openai", newOpenAI)

	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if key := entry.ResolveAPIKey(); key != "" {
				opts = append(opts, anyllmlib.WithAPIKey(key))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New("ollama", entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	for _, name := range reg.Names() {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

func newOpenAI(entry config.ProviderEntry) (llm.Provider, error) {
	key := entry.ResolveAPIKey()
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}

	var opts []openai.Option
	if entry.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(entry.BaseURL))
	}
	if org := optString(entry.Options, "organization"); org != "" {
		opts = append(opts, openai.WithOrganization(org))
	}
	if raw := optString(entry.Options, "timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("openai: options.timeout: %w", err)
		}
		opts = append(opts, openai.WithTimeout(d))
	}
	p, err := openai.New(key, entry.Model, opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
