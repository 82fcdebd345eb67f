// Package transcript turns raw dictation into clean, paste-ready text.
//
// Speech recognizers emit lower-case, unpunctuated text full of fillers and
// misheard names. The [Cleaner] fixes that in up to three stages:
//
//  1. Vocabulary snapping ([PhoneticMatcher]): words that sound like one of
//     the user's terms (product names, colleagues, jargon) are replaced by
//     the term's canonical spelling. In-process, no network calls.
//
//  2. LLM rewrite ([llmrewrite.Rewriter]): a language model rewrites the text
//     for professional communication. Optional; any failure other than the
//     caller giving up falls back to stage 3.
//
//  3. Rule formatting ([tidy.Format]): the deterministic formatter. Always
//     available, used whenever stage 2 is disabled or rejected.
//
// Each [Correction] records which stage produced a substitution, so callers
// can audit, display, or selectively roll back changes.
package transcript

import (
	"context"

	"github.com/MrWong99/vibecoding/pkg/types"
)

// Cleanup methods reported in [CleanedTranscript.Method].
const (
	MethodRules = "rules"
	MethodLLM   = "llm"
)

// Fallback reasons reported in [CleanedTranscript.FallbackReason].
const (
	ReasonDrift       = "drift"
	ReasonEmpty       = "empty"
	ReasonTruncated   = "truncated"
	ReasonTimeout     = "timeout"
	ReasonUnavailable = "unavailable"
	ReasonError       = "error"
)

// Correction captures a single substitution made by the pipeline.
type Correction struct {
	// Original is the text as produced by the recognizer.
	Original string `json:"original"`

	// Corrected is the replacement selected by the pipeline.
	Corrected string `json:"corrected"`

	// Confidence is the similarity behind this substitution (0.0–1.0).
	Confidence float64 `json:"confidence"`

	// Method is the stage that produced the substitution. Currently always
	// "phonetic".
	Method string `json:"method"`
}

// CleanedTranscript is the output of [Cleaner.Clean].
type CleanedTranscript struct {
	// Original is the transcript as received.
	Original types.Transcript `json:"-"`

	// Text is the cleaned text. Empty when the input held nothing to keep.
	Text string `json:"text"`

	// Method is [MethodRules] or [MethodLLM].
	Method string `json:"method"`

	// Fallback is true when a rewrite was attempted and discarded.
	Fallback bool `json:"fallback"`

	// FallbackReason is one of the Reason constants when Fallback is set.
	FallbackReason string `json:"fallback_reason,omitempty"`

	// Corrections lists the vocabulary substitutions in text order. Never
	// nil.
	Corrections []Correction `json:"corrections"`
}

// CleanOption adjusts a single [Cleaner.Clean] call.
type CleanOption func(*cleanSettings)

type cleanSettings struct {
	skipRewrite bool
}

// SkipRewrite forces rule formatting for this call even when a rewriter is
// configured.
func SkipRewrite() CleanOption {
	return func(s *cleanSettings) { s.skipRewrite = true }
}

// Cleaner cleans raw transcripts.
//
// Implementations must be safe for concurrent use.
type Cleaner interface {
	// Clean returns the cleaned form of t. An error is returned only when
	// ctx ends before the result is ready; rewrite failures degrade to rule
	// formatting and are reported through [CleanedTranscript.Fallback].
	Clean(ctx context.Context, t types.Transcript, opts ...CleanOption) (*CleanedTranscript, error)
}

// PhoneticMatcher resolves a spoken phrase to one of the known terms based
// on pronunciation similarity. It must not make network calls.
//
// Implementations must be safe for concurrent use.
type PhoneticMatcher interface {
	// Match returns the term from terms most similar to phrase. When matched
	// is false, corrected equals phrase and confidence is 0.
	Match(phrase string, terms []string) (corrected string, confidence float64, matched bool)
}
