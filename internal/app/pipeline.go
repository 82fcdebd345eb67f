package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/vibecoding/internal/config"
	"github.com/MrWong99/vibecoding/internal/observe"
	"github.com/MrWong99/vibecoding/internal/resilience"
	"github.com/MrWong99/vibecoding/internal/transcript"
	"github.com/MrWong99/vibecoding/internal/transcript/llmrewrite"
	"github.com/MrWong99/vibecoding/internal/transcript/phonetic"
	"github.com/MrWong99/vibecoding/pkg/types"
)

// runtime is one immutable generation of the cleanup stack. Hot reload
// builds a new one and swaps it in whole.
type runtime struct {
	pipeline *transcript.CleanupPipeline
	rewrite  *resilience.LLMFallback
}

// buildRuntime assembles the cleanup pipeline described by cfg.
func buildRuntime(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*runtime, error) {
	fb, err := buildRewriteProvider(cfg.Rewrite, reg, metrics)
	if err != nil {
		return nil, err
	}

	opts := []transcript.PipelineOption{
		transcript.WithMetrics(metrics),
		transcript.WithLowConfidenceThreshold(cfg.Rewrite.LowConfidence),
	}

	if v := cfg.Vocabulary; len(v.Terms) > 0 {
		matcher := phonetic.New(
			phonetic.WithPhoneticThreshold(v.PhoneticThreshold),
			phonetic.WithFuzzyThreshold(v.FuzzyThreshold),
			phonetic.WithMinLetters(v.MinLetters),
		)
		opts = append(opts, transcript.WithVocabulary(matcher, v.Terms))
	}

	if fb != nil {
		rw := cfg.Rewrite
		rwOpts := []llmrewrite.Option{llmrewrite.WithMaxTokens(rw.MaxTokens)}
		if rw.Temperature != nil {
			rwOpts = append(rwOpts, llmrewrite.WithTemperature(*rw.Temperature))
		}
		if rw.MinOverlap != nil {
			rwOpts = append(rwOpts, llmrewrite.WithMinOverlap(*rw.MinOverlap))
		}
		if rw.SystemPrompt != "" {
			rwOpts = append(rwOpts, llmrewrite.WithSystemPrompt(rw.SystemPrompt))
		}
		opts = append(opts,
			transcript.WithRewriter(llmrewrite.New(fb, rwOpts...)),
			transcript.WithRewriteTimeout(rw.Timeout),
		)
	}

	return &runtime{pipeline: transcript.NewPipeline(opts...), rewrite: fb}, nil
}

// Clean runs the current pipeline generation. It makes the App usable as a
// [transcript.Cleaner] across hot reloads.
func (a *App) Clean(ctx context.Context, t types.Transcript, opts ...transcript.CleanOption) (*transcript.CleanedTranscript, error) {
	return a.live.Load().pipeline.Clean(ctx, t, opts...)
}

// RewriteStatus reports the circuit state of every rewrite backend, or nil
// when the rewrite stage is disabled.
func (a *App) RewriteStatus() []resilience.EntryStatus {
	if fb := a.live.Load().rewrite; fb != nil {
		return fb.Status()
	}
	return nil
}

var errCanary = errors.New("pipeline canary failed")

// canary is an interim transcript so the check never reaches an LLM.
var canary = types.Transcript{Text: "um the the pipeline works", IsFinal: false}

// checkPipeline cleans a fixed canary transcript. Vocabulary snapping may
// legitimately alter the words, so only the shape of the result is checked.
func (a *App) checkPipeline(ctx context.Context) error {
	res, err := a.Clean(ctx, canary)
	if err != nil {
		return err
	}
	if res.Text == "" || res.Method != transcript.MethodRules {
		return fmt.Errorf("%w: text %q, method %q", errCanary, res.Text, res.Method)
	}
	return nil
}

func (a *App) rewriteAvailable() bool {
	fb := a.live.Load().rewrite
	return fb == nil || fb.Available()
}
