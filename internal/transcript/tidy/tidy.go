// Package tidy turns raw, disfluent speech-to-text output into written prose.
//
// [Format] runs a fixed, ordered list of rewriting stages over a single
// string: hesitation and filler removal, repeated-word collapse, whitespace
// and capitalization fixes, contraction and proper-noun normalization,
// question-mark inference and punctuation cleanup. Later stages assume the
// normalization done by earlier ones, so the order is part of the contract
// and is exposed through [Stages] and [Trace].
//
// Everything in this package is pure: no I/O, no logging, and the rule
// tables are read-only after init. All functions are safe for concurrent use.
package tidy

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Stage is a single named rewriting pass.
type Stage struct {
	// Name identifies the stage in traces and debug output.
	Name string

	// Apply rewrites the text. It must be deterministic and side-effect free.
	Apply func(string) string

	// stopIfEmpty ends the pipeline with "" when Apply returns "".
	stopIfEmpty bool
}

// stages is the formatting pipeline in execution order.
var stages = []Stage{
	{Name: "hesitations", Apply: removeHesitations},
	{Name: "discourse-markers", Apply: removeDiscourseMarkers},
	{Name: "repetitions", Apply: collapseRepetitions},
	{Name: "whitespace", Apply: normalizeWhitespace, stopIfEmpty: true},
	{Name: "leading-capital", Apply: capitalizeFirst},
	{Name: "standalone-i", Apply: capitalizeStandaloneI},
	{Name: "contractions", Apply: normalizeContractions},
	{Name: "proper-nouns", Apply: capitalizeProperNouns},
	{Name: "sentence-capitals", Apply: capitalizeAfterTerminal},
	{Name: "question-marks", Apply: inferQuestionMarks},
	{Name: "duplicate-punctuation", Apply: dedupePunctuation},
	{Name: "terminal-punctuation", Apply: ensureTerminal},
	{Name: "punctuation-spacing", Apply: fixPunctuationSpacing},
	{Name: "trim", Apply: strings.TrimSpace},
}

// Format cleans a raw transcript. Empty and whitespace-only input yields "".
// Any other input yields text that starts with a capital letter (when it
// starts with a letter at all) and ends in exactly one of '.', '!' or '?'.
func Format(text string) string {
	for _, s := range stages {
		text = s.Apply(text)
		if s.stopIfEmpty && text == "" {
			return ""
		}
	}
	return text
}

// StageResult is the text as it stood after one stage ran.
type StageResult struct {
	Stage string `json:"name"`
	Text  string `json:"text"`
}

// Trace runs the same pipeline as [Format] and records the intermediate text
// after each stage. The last element's Text equals Format(text). When the
// whitespace stage empties the text the trace ends there.
func Trace(text string) []StageResult {
	out := make([]StageResult, 0, len(stages))
	for _, s := range stages {
		text = s.Apply(text)
		out = append(out, StageResult{Stage: s.Name, Text: text})
		if s.stopIfEmpty && text == "" {
			break
		}
	}
	return out
}

// Stages returns the stage names in execution order.
func Stages() []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}

// PreserveCase returns replacement with its first letter upper-cased when
// matched starts with an upper-case letter, and lower-cased otherwise.
func PreserveCase(matched, replacement string) string {
	if replacement == "" {
		return replacement
	}
	first, _ := utf8.DecodeRuneInString(matched)
	r, size := utf8.DecodeRuneInString(replacement)
	if unicode.IsUpper(first) {
		r = unicode.ToUpper(r)
	} else {
		r = unicode.ToLower(r)
	}
	return string(r) + replacement[size:]
}

// ── Stage 1: hesitations ─────────────────────────────────────────────────────

const hesitation = `(?:um|uh|er|ah|hmm|hm)`

var (
	hesitationStart   = regexp.MustCompile(`(?i)^` + hesitation + `[,.]?(?:\s+|$)`)
	hesitationMiddle  = regexp.MustCompile(`(?i)\s+` + hesitation + `,?\s+`)
	hesitationEnd     = regexp.MustCompile(`(?i),?\s+` + hesitation + `[,.]?\s*$`)
	hesitationCommas  = regexp.MustCompile(`(?i),\s*` + hesitation + `\s*,`)
	hesitationPattern = []*regexp.Regexp{hesitationStart, hesitationMiddle, hesitationEnd, hesitationCommas}
)

func removeHesitations(s string) string {
	s = strings.TrimSpace(s)
	for _, re := range hesitationPattern {
		s = replaceUntilStable(re, s, " ")
	}
	return strings.TrimSpace(s)
}

// ── Stage 2: discourse markers ───────────────────────────────────────────────

var (
	leadingMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^like,\s*`),
		regexp.MustCompile(`(?i)^you know\b,?\s*`),
		regexp.MustCompile(`(?i)^i mean\b,?\s*`),
		regexp.MustCompile(`(?i)^(?:so|anyway|anyways),\s*`),
		regexp.MustCompile(`(?i)^(?:basically|actually)\b,?\s*`),
	}
	interjectedLike    = regexp.MustCompile(`(?i)\s*,\s*like\s*,\s*`)
	interjectedYouKnow = regexp.MustCompile(`(?i)\s*,\s*you know\b\s*,?\s*`)
	interjectedIMean   = regexp.MustCompile(`(?i)\s*,\s*i mean\b\s*,?\s*`)
)

func removeDiscourseMarkers(s string) string {
	// Leading markers stack ("like, basically ..."), so strip until none match.
	for {
		before := s
		for _, re := range leadingMarkers {
			s = re.ReplaceAllLiteralString(s, "")
		}
		if s == before {
			break
		}
	}
	s = interjectedLike.ReplaceAllLiteralString(s, ", ")
	s = interjectedYouKnow.ReplaceAllLiteralString(s, " ")
	s = interjectedIMean.ReplaceAllLiteralString(s, " ")
	return strings.TrimSpace(s)
}

// ── Stage 3: repeated words ──────────────────────────────────────────────────

var repeatWord = regexp.MustCompile(`[\p{L}\p{N}_']+`)

// collapseRepetitions drops the second word of each adjacent, case-insensitive
// duplicate pair. Pairs do not overlap: "we we we" becomes "we we".
func collapseRepetitions(s string) string {
	locs := repeatWord.FindAllStringIndex(s, -1)
	if len(locs) < 2 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for i := 0; i+1 < len(locs); {
		first, second := locs[i], locs[i+1]
		gap := s[first[1]:second[0]]
		if gap != "" && strings.TrimSpace(gap) == "" &&
			strings.EqualFold(s[first[0]:first[1]], s[second[0]:second[1]]) {
			b.WriteString(s[last:first[1]])
			last = second[1]
			i += 2
			continue
		}
		i++
	}
	b.WriteString(s[last:])
	return b.String()
}

// ── Stage 4: whitespace ──────────────────────────────────────────────────────

var whitespaceRun = regexp.MustCompile(`\s+`)

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllLiteralString(s, " "))
}

// ── Stages 5 and 6: capitals ─────────────────────────────────────────────────

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError || unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// capitalizeStandaloneI works on byte offsets so bytes that are not valid
// UTF-8 pass through untouched. 'i' never appears inside a multi-byte rune.
func capitalizeStandaloneI(s string) string {
	if !strings.Contains(s, "i") {
		return s
	}
	var b []byte
	for k := 0; k < len(s); k++ {
		if s[k] != 'i' {
			continue
		}
		if prev, size := utf8.DecodeLastRuneInString(s[:k]); size > 0 && isWordRune(prev) {
			continue
		}
		if next, size := utf8.DecodeRuneInString(s[k+1:]); size > 0 && isWordRune(next) {
			continue
		}
		if b == nil {
			b = []byte(s)
		}
		b[k] = 'I'
	}
	if b == nil {
		return s
	}
	return string(b)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ── Stages 7 and 8: table lookups ────────────────────────────────────────────

func normalizeContractions(s string) string {
	return replaceWholeWords(s, func(word, key string) (string, bool) {
		canonical, ok := contractions[key]
		if !ok {
			return "", false
		}
		if strings.Contains(word, "’") {
			canonical = strings.ReplaceAll(canonical, "'", "’")
		}
		return PreserveCase(word, canonical), true
	})
}

// capitalizeProperNouns also matches the possessive of a listed word
// ("api's" becomes "API's").
func capitalizeProperNouns(s string) string {
	return replaceWholeWords(s, func(word, key string) (string, bool) {
		if repl, ok := properNoun(key); ok {
			return repl, true
		}
		stem, suffix := splitPossessive(word)
		if suffix == "" {
			return "", false
		}
		repl, ok := properNoun(lookupKey(stem))
		if !ok {
			return "", false
		}
		return repl + suffix, true
	})
}

func properNoun(key string) (string, bool) {
	if _, ok := alwaysCapitalize[key]; !ok {
		return "", false
	}
	if IsAcronym(key) {
		return strings.ToUpper(key), true
	}
	r, size := utf8.DecodeRuneInString(key)
	return string(unicode.ToUpper(r)) + key[size:], true
}

// splitPossessive cuts a trailing "'s" or "’s" off word. suffix is empty
// when word has no such ending.
func splitPossessive(word string) (stem, suffix string) {
	for _, apos := range []string{"'", "’"} {
		for _, s := range []string{"s", "S"} {
			if end := apos + s; strings.HasSuffix(word, end) && len(word) > len(end) {
				return word[:len(word)-len(end)], end
			}
		}
	}
	return word, ""
}

// ── Stage 9: capitals after sentence ends ────────────────────────────────────

var lowerAfterTerminal = regexp.MustCompile(`[.!?]\s+\p{Ll}`)

func capitalizeAfterTerminal(s string) string {
	return lowerAfterTerminal.ReplaceAllStringFunc(s, func(m string) string {
		r, size := utf8.DecodeLastRuneInString(m)
		return m[:len(m)-size] + string(unicode.ToUpper(r))
	})
}

// ── Stage 10: question marks ─────────────────────────────────────────────────

var (
	leadWord  = regexp.MustCompile(`^[\p{L}'’]+`)
	tagEnding = buildTagEnding(tagQuestions)
)

func buildTagEnding(tags []string) *regexp.Regexp {
	alts := make([]string, len(tags))
	for i, t := range tags {
		alts[i] = strings.ReplaceAll(regexp.QuoteMeta(t), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_'])(?:` + strings.Join(alts, "|") + `)$`)
}

func inferQuestionMarks(s string) string {
	sentences := splitSentences(s)
	out := make([]string, 0, len(sentences))
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if !endsWithTerminal(sentence) && isQuestion(sentence) {
			sentence += "?"
		}
		out = append(out, sentence)
	}
	return strings.Join(out, " ")
}

// splitSentences cuts s after every run of terminal punctuation that is
// followed by whitespace or the end of the text. "3.5" and "gmail.com" stay
// whole.
func splitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); {
		if !isTerminal(s[i]) {
			i++
			continue
		}
		j := i
		for j < len(s) && isTerminal(s[j]) {
			j++
		}
		if j == len(s) || s[j] == ' ' {
			out = append(out, s[start:j])
			start = j
		}
		i = j
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func isQuestion(sentence string) bool {
	if first := leadWord.FindString(sentence); first != "" {
		if _, ok := questionWords[lookupKey(first)]; ok {
			return true
		}
	}
	return tagEnding.MatchString(strings.TrimRight(sentence, " ,"))
}

// ── Stage 11: duplicate punctuation ──────────────────────────────────────────

var (
	commaRun       = regexp.MustCompile(`,(?:\s*,)+`)
	commaBeforeEnd = regexp.MustCompile(`,\s*([.!?])`)
	terminalRun    = regexp.MustCompile(`[.!?](?:\s*[.!?])+`)
)

func dedupePunctuation(s string) string {
	s = commaRun.ReplaceAllLiteralString(s, ",")
	s = commaBeforeEnd.ReplaceAllString(s, "$1")
	return terminalRun.ReplaceAllStringFunc(s, func(m string) string {
		return m[:1]
	})
}

// ── Stage 12: terminal punctuation ───────────────────────────────────────────

func ensureTerminal(s string) string {
	s = strings.TrimRight(s, " ,")
	if !endsWithTerminal(s) {
		s += "."
	}
	return s
}

// ── Stage 13: punctuation spacing ────────────────────────────────────────────

var spaceBeforePunct = regexp.MustCompile(`\s+([,.!?])`)

// fixPunctuationSpacing drops whitespace before punctuation and puts one
// space after every comma or period that is glued to the next character.
// A period at the end of the text and punctuation directly followed by more
// punctuation are left alone.
func fixPunctuationSpacing(s string) string {
	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	if !strings.ContainsAny(s, ",.") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		b.WriteByte(s[i])
		if s[i] != ',' && s[i] != '.' {
			continue
		}
		if i+1 < len(s) && !isSpace(s[i+1]) && !isPunct(s[i+1]) {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// ── helpers ──────────────────────────────────────────────────────────────────

func isTerminal(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isPunct(c byte) bool {
	return c == ',' || isTerminal(c)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func endsWithTerminal(s string) bool {
	return s != "" && isTerminal(s[len(s)-1])
}

// replaceUntilStable applies re until the text stops changing. Each match
// consumes its surrounding whitespace, so back-to-back matches ("um um") need
// another pass.
func replaceUntilStable(re *regexp.Regexp, s, repl string) string {
	for {
		next := re.ReplaceAllLiteralString(s, repl)
		if next == s {
			return s
		}
		s = next
	}
}
