package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/vibecoding/internal/transcript/phonetic"
)

// spokenToken is a whitespace-separated token split into the word and the
// punctuation glued to it.
type spokenToken struct {
	raw   string
	lead  string
	core  string
	trail string
}

func splitToken(raw string) spokenToken {
	isWord := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
	start := strings.IndexFunc(raw, isWord)
	if start < 0 {
		return spokenToken{raw: raw, lead: raw}
	}
	end := strings.LastIndexFunc(raw, isWord)
	_, size := utf8.DecodeRuneInString(raw[end:])
	end += size
	return spokenToken{raw: raw, lead: raw[:start], core: raw[start:end], trail: raw[end:]}
}

// snap replaces phrases that sound like vocabulary terms. Windows are tried
// longest first, never span interior punctuation, and keep the punctuation
// around their edges. Text without any substitution is returned unchanged.
func (p *CleanupPipeline) snap(text string) (string, []Correction) {
	fields := strings.Fields(text)
	tokens := make([]spokenToken, len(fields))
	for i, f := range fields {
		tokens[i] = splitToken(f)
	}

	match := p.matchFunc()
	maxWords := p.vocab.MaxWords()

	var (
		out         = make([]string, 0, len(tokens))
		corrections = []Correction{}
		changed     bool
	)
	for i := 0; i < len(tokens); {
		n := p.longestMatch(tokens, i, maxWords, match)
		if n == 0 {
			out = append(out, tokens[i].raw)
			i++
			continue
		}
		phrase := joinCores(tokens[i : i+n])
		term, conf, _ := match(phrase)
		if term != phrase {
			changed = true
			corrections = append(corrections, Correction{
				Original:   phrase,
				Corrected:  term,
				Confidence: conf,
				Method:     "phonetic",
			})
		}
		out = append(out, tokens[i].lead+term+tokens[i+n-1].trail)
		i += n
	}
	if !changed {
		return text, corrections
	}
	return strings.Join(out, " "), corrections
}

// longestMatch returns the length of the longest window starting at i that
// snaps to a term, or 0. A window is rejected when dropping its first or last
// word matches the same term at least as well, so "the kubernetes" does not
// swallow "the".
func (p *CleanupPipeline) longestMatch(tokens []spokenToken, i, maxWords int, match func(string) (string, float64, bool)) int {
	maxN := min(maxWords, len(tokens)-i)
	for n := maxN; n >= 1; n-- {
		window := tokens[i : i+n]
		if !snappable(window) {
			continue
		}
		term, conf, ok := match(joinCores(window))
		if !ok {
			continue
		}
		if n > 1 && (beatenBy(window[1:], term, conf, match) || beatenBy(window[:n-1], term, conf, match)) {
			continue
		}
		return n
	}
	return 0
}

func beatenBy(window []spokenToken, term string, conf float64, match func(string) (string, float64, bool)) bool {
	t, c, ok := match(joinCores(window))
	return ok && t == term && c >= conf
}

// snappable reports whether window holds words only joined by plain spaces.
func snappable(window []spokenToken) bool {
	for k, tok := range window {
		if tok.core == "" {
			return false
		}
		if k > 0 && tok.lead != "" {
			return false
		}
		if k < len(window)-1 && tok.trail != "" {
			return false
		}
	}
	return true
}

func joinCores(window []spokenToken) string {
	if len(window) == 1 {
		return window[0].core
	}
	parts := make([]string, len(window))
	for k, tok := range window {
		parts[k] = tok.core
	}
	return strings.Join(parts, " ")
}

func (p *CleanupPipeline) matchFunc() func(string) (string, float64, bool) {
	if pm, ok := p.matcher.(*phonetic.Matcher); ok {
		return func(phrase string) (string, float64, bool) {
			return pm.MatchPrepared(phrase, p.vocab)
		}
	}
	terms := p.vocab.Terms()
	return func(phrase string) (string, float64, bool) {
		return p.matcher.Match(phrase, terms)
	}
}
