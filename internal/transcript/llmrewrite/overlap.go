package llmrewrite

import (
	"strings"
	"unicode"

	"github.com/MrWong99/vibecoding/internal/transcript/tidy"
)

// Overlap measures how much of a rewrite is still the original transcript.
// Both sides are reduced to lowercase words; the input is first put through
// [tidy.Format] so removed fillers do not count against the rewrite. The
// result is the longest common word subsequence divided by the longer of the
// two word counts, in [0, 1].
func Overlap(original, rewritten string) float64 {
	a := words(tidy.Format(original))
	b := words(rewritten)
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return float64(lcsLen(a, b)) / float64(max(len(a), len(b)))
}

// words splits s on whitespace and strips surrounding punctuation.
func words(s string) []string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			out = append(out, strings.ToLower(f))
		}
	}
	return out
}

// lcsLen is the length of the longest common subsequence of two token
// slices. Two rolling rows keep memory at O(len(b)).
func lcsLen(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
