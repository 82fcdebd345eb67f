package llm

import "strings"

// ModelLimits describes the token budget of an LLM model.
type ModelLimits struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int
}

// ClampOutput returns requested capped to MaxOutputTokens. A zero or
// negative request, or unknown limits, pass through unchanged.
func (l ModelLimits) ClampOutput(requested int) int {
	if requested <= 0 || l.MaxOutputTokens <= 0 {
		return requested
	}
	return min(requested, l.MaxOutputTokens)
}

// defaultLimits is used for models no family rule recognises.
var defaultLimits = ModelLimits{ContextWindow: 128_000, MaxOutputTokens: 4_096}

// limitRules are checked in order; the first matching prefix wins, so more
// specific names come first.
var limitRules = []struct {
	prefix string
	limits ModelLimits
}{
	{"gpt-4o", ModelLimits{128_000, 16_384}},
	{"gpt-4.1", ModelLimits{1_047_576, 32_768}},
	{"gpt-4-turbo", ModelLimits{128_000, 4_096}},
	{"gpt-4", ModelLimits{8_192, 4_096}},
	{"gpt-3.5-turbo", ModelLimits{16_385, 4_096}},
	{"o1-mini", ModelLimits{128_000, 65_536}},
	{"o1", ModelLimits{200_000, 100_000}},
	{"o3", ModelLimits{200_000, 100_000}},
	{"claude-3-opus", ModelLimits{200_000, 4_096}},
	{"claude", ModelLimits{200_000, 8_192}},
	{"gemini-1.5-pro", ModelLimits{2_097_152, 8_192}},
	{"gemini", ModelLimits{1_048_576, 8_192}},
	{"llama3", ModelLimits{8_192, 2_048}},
	{"mistral", ModelLimits{32_768, 4_096}},
}

// LimitsFor returns the known limits for model, matched by family prefix
// (case-insensitive). Unknown models get conservative defaults.
func LimitsFor(model string) ModelLimits {
	lower := strings.ToLower(model)
	for _, r := range limitRules {
		if strings.HasPrefix(lower, r.prefix) {
			return r.limits
		}
	}
	return defaultLimits
}
