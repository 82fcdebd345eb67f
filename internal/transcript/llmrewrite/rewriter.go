// Package llmrewrite implements the optional language-model rewrite stage of
// the cleanup pipeline.
//
// The [Rewriter] sends the transcript to an [llm.Provider] with a system
// prompt asking for a professional, filler-free version of the text and
// nothing else. The answer is accepted only when it looks like a rewrite of
// the input: a blank, truncated or drifting answer is reported as an error so
// the caller can fall back to the rule-based formatter.
package llmrewrite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	llm "github.com/MrWong99/vibecoding/pkg/provider/llm"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 500
	defaultMinOverlap  = 0.5
)

// DefaultSystemPrompt asks the model for the cleaned text only.
const DefaultSystemPrompt = `You are a professional writing assistant.
Your job is to clean up voice transcriptions for professional communication.

Rules:
- Fix grammar and punctuation
- Improve clarity and flow
- Maintain the original meaning
- Keep the tone professional but warm
- Remove filler words (um, uh, like)
- Add proper capitalization

Respond with ONLY the cleaned up text, no explanations.`

// Rejection reasons. Wrapped errors carry details; test with errors.Is.
var (
	ErrEmpty     = errors.New("llmrewrite: empty rewrite")
	ErrTruncated = errors.New("llmrewrite: rewrite truncated")
	ErrDrift     = errors.New("llmrewrite: rewrite drifted from input")
)

// Option is a functional option for configuring a [Rewriter].
type Option func(*Rewriter)

// WithTemperature sets the sampling temperature. Default: 0.3.
func WithTemperature(temp float64) Option {
	return func(r *Rewriter) {
		r.temperature = temp
	}
}

// WithMaxTokens caps the completion length. Default: 500.
func WithMaxTokens(n int) Option {
	return func(r *Rewriter) {
		r.maxTokens = n
	}
}

// WithMinOverlap sets the minimum [Overlap] between the rule-formatted input
// and the rewrite. Zero disables the drift check. Default: 0.5.
func WithMinOverlap(ratio float64) Option {
	return func(r *Rewriter) {
		r.minOverlap = ratio
	}
}

// WithSystemPrompt replaces [DefaultSystemPrompt].
func WithSystemPrompt(prompt string) Option {
	return func(r *Rewriter) {
		r.systemPrompt = prompt
	}
}

// Rewriter rewrites transcripts with an LLM. It is safe for concurrent use.
//
// Model selection follows the one-provider-per-model pattern: construct the
// [llm.Provider] with the desired model instead of overriding per request.
type Rewriter struct {
	llm          llm.Provider
	temperature  float64
	maxTokens    int
	minOverlap   float64
	systemPrompt string
}

// New returns a [Rewriter] backed by provider.
func New(provider llm.Provider, opts ...Option) *Rewriter {
	r := &Rewriter{
		llm:          provider,
		temperature:  defaultTemperature,
		maxTokens:    defaultMaxTokens,
		minOverlap:   defaultMinOverlap,
		systemPrompt: DefaultSystemPrompt,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Result is an accepted rewrite.
type Result struct {
	// Text is the rewritten transcript with code fences and wrapping quotes
	// removed.
	Text string

	// Overlap is the word overlap ratio that passed the drift check.
	Overlap float64

	// Usage is the token accounting reported by the provider.
	Usage llm.Usage
}

// Rewrite asks the model to clean text. terms, when non-empty, are listed in
// the system prompt as spellings the model must keep. uncertain lists words
// the recognizer was unsure about; they are pointed out to the model as
// possibly misheard.
//
// Provider failures (including context cancellation) are returned wrapped.
// A response that is blank, cut off at the token limit, or too far from the
// input yields [ErrEmpty], [ErrTruncated] or [ErrDrift].
func (r *Rewriter) Rewrite(ctx context.Context, text string, terms, uncertain []string) (*Result, error) {
	userMsg := text
	if len(uncertain) > 0 {
		userMsg = fmt.Sprintf("%s\n\n(Possibly misheard words: %s)", text, strings.Join(uncertain, ", "))
	}

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(r.systemPrompt, terms),
		Messages:     []llm.Message{{Role: "user", Content: userMsg}},
		Temperature:  r.temperature,
		MaxTokens:    r.maxTokens,
	}

	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llmrewrite: complete: %w", err)
	}
	if resp == nil {
		return nil, ErrEmpty
	}
	if resp.Truncated() {
		return nil, ErrTruncated
	}

	out := cleanResponse(resp.Content)
	if out == "" {
		return nil, ErrEmpty
	}

	overlap := Overlap(text, out)
	if r.minOverlap > 0 && overlap < r.minOverlap {
		return nil, fmt.Errorf("%w: overlap %.2f below %.2f", ErrDrift, overlap, r.minOverlap)
	}

	return &Result{Text: out, Overlap: overlap, Usage: resp.Usage}, nil
}

func buildSystemPrompt(base string, terms []string) string {
	if len(terms) == 0 {
		return base
	}
	var sb strings.Builder
	sb.WriteString(base)
	sb.WriteString("\n\nKeep these names and terms spelled exactly as listed:\n")
	for _, t := range terms {
		sb.WriteString("- ")
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// cleanResponse removes markdown code fences and a pair of wrapping quotes
// that some models add around the answer.
func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```"); ok {
		// Drop an optional language tag on the fence line.
		if nl := strings.IndexByte(after, '\n'); nl >= 0 && !strings.ContainsAny(after[:nl], " \t") {
			after = after[nl+1:]
		}
		s = after
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	s = strings.TrimSpace(s)
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			inner := s[len(q[0]) : len(s)-len(q[1])]
			if !strings.Contains(inner, q[0]) {
				s = strings.TrimSpace(inner)
			}
			break
		}
	}
	return s
}
