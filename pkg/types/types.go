// Package types defines the value types shared between the cleanup pipeline,
// the LLM providers and the transport layer.
//
// They are intentionally minimal. Each package defines its own domain types;
// only cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// Transcript is a raw speech-to-text result as handed to the cleanup
// pipeline. Only Text is required; the remaining fields are optional metadata
// reported by the recognizer.
type Transcript struct {
	// Text is the unprocessed recognizer output.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) transcript. Partial transcripts are never sent to an LLM.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). Zero when the
	// recognizer does not report one.
	Confidence float64

	// Words contains per-word detail when available. May be nil.
	Words []WordDetail

	// Language is the BCP-47 language tag detected or requested for the
	// recording (e.g. "en", "en-US"). Empty means unknown.
	Language string

	// Duration is the length of the recorded audio.
	Duration time.Duration
}

// WordDetail holds per-word metadata from recognizers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// LowConfidenceWords returns the words of t whose confidence is below
// threshold, in order. Words without confidence data (0) are skipped.
func (t Transcript) LowConfidenceWords(threshold float64) []string {
	var out []string
	for _, w := range t.Words {
		if w.Confidence > 0 && w.Confidence < threshold {
			out = append(out, w.Word)
		}
	}
	return out
}
