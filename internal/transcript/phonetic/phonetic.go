// Package phonetic snaps misheard words onto a user's custom vocabulary
// (product names, colleagues, jargon) using Double Metaphone phonetic
// encoding combined with Jaro-Winkler string similarity.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word of the spoken phrase and for each vocabulary term. A term whose
//     codes overlap the phrase's codes becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the term with the
//     highest Jaro-Winkler similarity (case-insensitive) is selected, provided
//     its score reaches the phonetic threshold. When no phonetic candidate
//     exists, pure Jaro-Winkler similarity against all terms is tested using
//     the stricter fuzzy threshold.
//
// Multi-word terms (e.g. "Visual Studio Code") are supported: the matcher
// compares full strings, space-stripped strings and aligned word pairs.
package phonetic

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
	defaultMinLetters        = 3
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// WithMinLetters sets the minimum number of letters a spoken phrase must
// contain before it is considered at all. Short function words ("a", "to")
// otherwise collide with short terms. Default: 3.
func WithMinLetters(n int) Option {
	return func(m *Matcher) {
		m.minLetters = n
	}
}

// Matcher is a phonetic vocabulary matcher. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	minLetters        int
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		minLetters:        defaultMinLetters,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match finds the term in terms most similar to phrase. It prepares the
// vocabulary on every call; use [PrepareVocabulary] and
// [Matcher.MatchPrepared] when matching many phrases against the same terms.
//
// When matched is false, corrected equals phrase unchanged and confidence
// is 0.
func (m *Matcher) Match(phrase string, terms []string) (corrected string, confidence float64, matched bool) {
	return m.MatchPrepared(phrase, PrepareVocabulary(terms))
}

// MatchPrepared is [Matcher.Match] against a prepared vocabulary.
func (m *Matcher) MatchPrepared(phrase string, v *Vocabulary) (corrected string, confidence float64, matched bool) {
	if v == nil || len(v.terms) == 0 || countLetters(phrase) < m.minLetters {
		return phrase, 0, false
	}

	lower := strings.ToLower(strings.TrimSpace(phrase))
	tokens := strings.Fields(lower)
	codes := codesForTokens(tokens)

	var (
		best         *term
		bestScore    float64
		bestPhonetic bool
	)
	for i := range v.terms {
		t := &v.terms[i]
		if len(t.tokens) > len(tokens) {
			// One spoken word never stands for a longer term.
			continue
		}
		score := bestJWScore(tokens, t.tokens, lower, t.lower)

		if codesOverlap(codes, t.codes) {
			if score >= m.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = t, score, true
			}
			continue
		}
		if !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore {
			best, bestScore = t, score
		}
	}

	if best == nil {
		return phrase, 0, false
	}
	return best.text, bestScore, true
}

// Vocabulary is a precomputed set of terms. It is immutable and safe for
// concurrent use.
type Vocabulary struct {
	terms    []term
	maxWords int
}

type term struct {
	text   string
	lower  string
	tokens []string
	codes  map[string]struct{}
}

// PrepareVocabulary computes phonetic codes for every non-blank term once.
// Duplicate terms (case-insensitive) keep their first spelling.
func PrepareVocabulary(terms []string) *Vocabulary {
	v := &Vocabulary{terms: make([]term, 0, len(terms))}
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		text := strings.TrimSpace(t)
		lower := strings.ToLower(text)
		if lower == "" {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}

		tokens := strings.Fields(lower)
		v.terms = append(v.terms, term{
			text:   text,
			lower:  lower,
			tokens: tokens,
			codes:  codesForTokens(tokens),
		})
		v.maxWords = max(v.maxWords, len(tokens))
	}
	return v
}

// MaxWords returns the word count of the longest term, or 0 for an empty
// vocabulary.
func (v *Vocabulary) MaxWords() int {
	if v == nil {
		return 0
	}
	return v.maxWords
}

// Len returns the number of distinct terms.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Terms returns the distinct terms in their original spelling.
func (v *Vocabulary) Terms() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.terms))
	for i, t := range v.terms {
		out[i] = t.text
	}
	return out
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity over the full strings,
// the space-stripped strings and, for phrases with as many words as the term,
// the mean of the word-by-word scores. Comparing arbitrary word pairs would let
// a single shared word ("visual") stand in for a whole term.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		joined := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(termTokens, ""), false)
		score = max(score, joined)
	}

	if n := len(inputTokens); n > 1 && n == len(termTokens) {
		var sum float64
		for i := range n {
			sum += matchr.JaroWinkler(inputTokens[i], termTokens[i], false)
		}
		score = max(score, sum/float64(n))
	}
	return score
}

func countLetters(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}
