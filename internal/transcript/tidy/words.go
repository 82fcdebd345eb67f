package tidy

import (
	"regexp"
	"strings"
)

// wordToken matches a maximal run of word characters plus inner apostrophes
// and hyphens. Treating "mis-it's-take" as one token keeps table lookups from
// rewriting pieces of a larger word.
var wordToken = regexp.MustCompile(`[\p{L}\p{N}_'’-]+`)

// replaceWholeWords calls fn for every token in s and substitutes the token's
// core (the token without leading or trailing apostrophes and hyphens) with
// the returned string when fn reports ok. word is the core as written, key
// is its lookup form.
func replaceWholeWords(s string, fn func(word, key string) (string, bool)) string {
	return wordToken.ReplaceAllStringFunc(s, func(tok string) string {
		core := strings.TrimLeft(tok, "'’-")
		lead := tok[:len(tok)-len(core)]
		core = strings.TrimRight(core, "'’-")
		if core == "" {
			return tok
		}
		trail := tok[len(lead)+len(core):]

		repl, ok := fn(core, lookupKey(core))
		if !ok {
			return tok
		}
		return lead + repl + trail
	})
}

// lookupKey folds a word to the form used as a table key.
func lookupKey(word string) string {
	return strings.ToLower(strings.ReplaceAll(word, "’", "'"))
}
