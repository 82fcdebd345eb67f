package phonetic_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/vibecoding/internal/transcript/phonetic"
)

func TestMatcher_Match(t *testing.T) {
	t.Parallel()

	vocab := []string{"PostgreSQL", "Grimjaw", "Tower of Whispers", "Eldrinax", "Visual Studio Code"}

	tests := []struct {
		name    string
		phrase  string
		want    string
		matched bool
		minConf float64
	}{
		{"exact", "grimjaw", "Grimjaw", true, 0.99},
		{"upper case input", "ELDRINAX", "Eldrinax", true, 0.99},
		{"misheard suffix", "postgres", "PostgreSQL", true, 0.85},
		{"multi word", "tower of wispers", "Tower of Whispers", true, 0.9},
		{"multi word one word off", "visual studio coat", "Visual Studio Code", true, 0.9},
		{"single word never stands for a longer term", "visual", "visual", false, 0},
		{"unrelated", "hello", "hello", false, 0},
		{"too short", "it", "it", false, 0},
		{"blank", "  ", "  ", false, 0},
	}
	m := phonetic.New()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, conf, ok := m.Match(tc.phrase, vocab)
			if ok != tc.matched {
				t.Fatalf("Match(%q): matched=%v, want %v (got %q, conf %f)", tc.phrase, ok, tc.matched, got, conf)
			}
			if got != tc.want {
				t.Errorf("Match(%q): corrected=%q, want %q", tc.phrase, got, tc.want)
			}
			if !tc.matched && conf != 0 {
				t.Errorf("Match(%q): confidence=%f, want 0", tc.phrase, conf)
			}
			if tc.matched && conf < tc.minConf {
				t.Errorf("Match(%q): confidence=%f, want >= %f", tc.phrase, conf, tc.minConf)
			}
		})
	}
}

func TestMatcher_Thresholds(t *testing.T) {
	t.Parallel()

	m := phonetic.New(
		phonetic.WithPhoneticThreshold(0.99),
		phonetic.WithFuzzyThreshold(0.99),
	)
	if _, _, ok := m.Match("postgres", []string{"PostgreSQL"}); ok {
		t.Error("Match with threshold 0.99 should reject near-matches")
	}
	if got, _, ok := m.Match("postgresql", []string{"PostgreSQL"}); !ok || got != "PostgreSQL" {
		t.Errorf("exact match rejected: got %q, matched=%v", got, ok)
	}
}

func TestMatcher_MinLetters(t *testing.T) {
	t.Parallel()

	vocab := []string{"Go"}
	if _, _, ok := phonetic.New().Match("go", vocab); ok {
		t.Error("default matcher should ignore two-letter phrases")
	}
	got, _, ok := phonetic.New(phonetic.WithMinLetters(2)).Match("go", vocab)
	if !ok || got != "Go" {
		t.Errorf("WithMinLetters(2): got %q, matched=%v, want Go", got, ok)
	}
}

func TestMatcher_EmptyVocabulary(t *testing.T) {
	t.Parallel()

	m := phonetic.New()
	got, conf, ok := m.Match("postgres", nil)
	if ok || got != "postgres" || conf != 0 {
		t.Errorf("Match with nil vocabulary = (%q, %f, %v), want unchanged", got, conf, ok)
	}
	if _, _, ok := m.MatchPrepared("postgres", nil); ok {
		t.Error("MatchPrepared with nil vocabulary matched")
	}
}

func TestPrepareVocabulary(t *testing.T) {
	t.Parallel()

	v := phonetic.PrepareVocabulary([]string{" Kubernetes ", "kubernetes", "", "Visual Studio Code", "Go"})
	if v.Len() != 3 {
		t.Errorf("Len() = %d, want 3", v.Len())
	}
	if v.MaxWords() != 3 {
		t.Errorf("MaxWords() = %d, want 3", v.MaxWords())
	}
	want := []string{"Kubernetes", "Visual Studio Code", "Go"}
	if got := v.Terms(); !slices.Equal(got, want) {
		t.Errorf("Terms() = %v, want %v", got, want)
	}

	var nilVocab *phonetic.Vocabulary
	if nilVocab.Len() != 0 || nilVocab.MaxWords() != 0 || nilVocab.Terms() != nil {
		t.Error("nil Vocabulary should behave as empty")
	}
}
