package resilience

import (
	"context"

	"github.com/MrWong99/vibecoding/pkg/provider/llm"
)

// LLMFallback implements [llm.Provider] with failover across several rewrite
// backends, each behind its own circuit breaker.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback creates an [LLMFallback] with primary as the preferred
// backend.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional backend.
func (f *LLMFallback) AddFallback(name string, provider llm.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete sends the request to the first healthy backend.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Limits returns the tightest output limit across all backends, so a request
// sized for it fits whichever backend ends up serving it.
func (f *LLMFallback) Limits() llm.ModelLimits {
	var out llm.ModelLimits
	for i, e := range f.group.entries {
		l := e.value.Limits()
		if i == 0 {
			out = l
			continue
		}
		if l.MaxOutputTokens > 0 && (out.MaxOutputTokens == 0 || l.MaxOutputTokens < out.MaxOutputTokens) {
			out.MaxOutputTokens = l.MaxOutputTokens
		}
		if l.ContextWindow > 0 && (out.ContextWindow == 0 || l.ContextWindow < out.ContextWindow) {
			out.ContextWindow = l.ContextWindow
		}
	}
	return out
}

// Status reports each backend's breaker state.
func (f *LLMFallback) Status() []EntryStatus { return f.group.Status() }

// Available reports whether any backend currently admits calls.
func (f *LLMFallback) Available() bool { return f.group.Available() }
