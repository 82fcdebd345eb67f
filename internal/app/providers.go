package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/vibecoding/internal/config"
	"github.com/MrWong99/vibecoding/internal/observe"
	"github.com/MrWong99/vibecoding/internal/resilience"
	"github.com/MrWong99/vibecoding/pkg/provider/llm"
)

// instrumentedLLM records a span and request/error counters around every
// completion of the wrapped provider.
type instrumentedLLM struct {
	name    string
	inner   llm.Provider
	metrics *observe.Metrics
}

var _ llm.Provider = (*instrumentedLLM)(nil)

func (p *instrumentedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	ctx, span := observe.StartSpan(ctx, "llm.complete",
		trace.WithAttributes(attribute.String("llm.provider", p.name)),
	)
	defer span.End()

	resp, err := p.inner.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		p.metrics.RecordProviderRequest(ctx, p.name, "error")
		p.metrics.RecordProviderError(ctx, p.name, errorKind(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("llm.usage.prompt_tokens", resp.Usage.PromptTokens),
		attribute.Int("llm.usage.completion_tokens", resp.Usage.CompletionTokens),
		attribute.String("llm.finish_reason", resp.FinishReason),
	)
	p.metrics.RecordProviderRequest(ctx, p.name, "ok")
	return resp, nil
}

func (p *instrumentedLLM) Limits() llm.ModelLimits { return p.inner.Limits() }

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}

// entryName labels a provider entry in logs, metrics and /readyz.
func entryName(e config.ProviderEntry) string {
	if e.Model == "" {
		return e.Name
	}
	return e.Name + "/" + e.Model
}

// buildRewriteProvider instantiates every configured rewrite backend, wraps
// each in metrics, and chains them behind circuit breakers in config order.
// Returns nil when the rewrite stage is disabled.
func buildRewriteProvider(cfg config.RewriteConfig, reg *config.Registry, metrics *observe.Metrics) (*resilience.LLMFallback, error) {
	if !cfg.Enabled || len(cfg.Providers) == 0 {
		return nil, nil
	}

	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.CircuitBreaker.MaxFailures,
			ResetTimeout: cfg.CircuitBreaker.ResetTimeout,
			HalfOpenMax:  cfg.CircuitBreaker.HalfOpenMax,
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("rewrite provider circuit changed", "provider", name, "from", from, "to", to)
			},
		},
	}

	var fb *resilience.LLMFallback
	for i, entry := range cfg.Providers {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("rewrite provider %d (%s): %w", i, entry.Name, err)
		}
		name := entryName(entry)
		wrapped := &instrumentedLLM{name: name, inner: p, metrics: metrics}
		if fb == nil {
			fb = resilience.NewLLMFallback(wrapped, name, fbCfg)
		} else {
			fb.AddFallback(name, wrapped)
		}
		slog.Info("rewrite provider ready", "provider", name, "position", i)
	}
	return fb, nil
}
