package tidy_test

import (
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/vibecoding/internal/transcript/tidy"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		// empty input
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"hesitation only", "um", ""},
		{"hesitations only", "um uh hmm", ""},

		// capitalization and terminal punctuation
		{"single word", "hello", "Hello."},
		{"two words", "hello world", "Hello world."},
		{"keeps exclamation", "hello world!", "Hello world!"},
		{"keeps question", "is it working?", "Is it working?"},
		{"collapses spaces", "hello    world", "Hello world."},
		{"capital after period", "first sentence. second sentence", "First sentence. Second sentence."},

		// hesitations
		{"leading um", "um hello there", "Hello there."},
		{"leading uh with comma", "uh, I think so", "I think so."},
		{"leading hmm", "hmm I think so", "I think so."},
		{"hesitation between commas", "the answer is, hmm, yes", "The answer is, yes."},
		{"hesitation mid text", "I think, um, that works", "I think, that works."},
		{"trailing hesitation", "that works, uh", "That works."},
		{"hesitation prefix is not a hesitation", "umbrellas are useful", "Umbrellas are useful."},

		// discourse markers
		{"stacked leading markers", "um, like, basically it works", "It works."},
		{"leading like", "like, that was cool", "That was cool."},
		{"leading basically", "basically we need to fix it", "We need to fix it."},
		{"leading i mean", "I mean, this is great", "This is great."},
		{"interjected you know", "I think, you know, we should go", "I think we should go."},
		{"interjected like", "it was, like, really big", "It was, really big."},
		{"content like is kept", "I like apples", "I like apples."},
		{"so without comma is kept", "so we went home", "So we went home."},

		// repetitions
		{"pair", "the the cat", "The cat."},
		{"pair of i", "I I think so", "I think so."},
		{"triple keeps one duplicate", "we we we need help", "We we need help."},
		{"case insensitive pair", "The the end", "The end."},

		// standalone i and contractions
		{"standalone i", "i am here", "I am here."},
		{"question with i", "can i help", "Can I help?"},
		{"i'm", "i'm going", "I'm going."},
		{"don't", "i don't know", "I don't know."},
		{"let's", "let's go", "Let's go."},
		{"that's", "that's cool", "That's cool."},
		{"we're", "we're ready", "We're ready."},
		{"they've", "they've arrived", "They've arrived."},
		{"mid sentence contraction", "I think that's cool", "I think that's cool."},
		{"gmail", "i'm going to gmail now", "I'm going to Gmail now."},
		{"curly apostrophe kept", "i’m fine", "I’m fine."},
		{"curly apostrophe capitalized", "I’m fine", "I’m fine."},
		{"invalid utf-8 kept", "\xff i go", "\xff I go."},

		// proper nouns and acronyms
		{"acronyms", "the html and css files", "The HTML and CSS files."},
		{"weekday", "see you on monday", "See you on Monday."},
		{"possessive acronym", "check the api's docs", "Check the API's docs."},
		{"possessive curly", "i like monday’s meeting", "I like Monday’s meeting."},
		{"platform upper mixed", "post on LINKEDIN", "Post on Linkedin."},
		{"may and march are left alone", "we may go in march", "We may go in march."},

		// question marks
		{"question word", "what do you think", "What do you think?"},
		{"how", "how does this work", "How does this work?"},
		{"is", "is this correct", "Is this correct?"},
		{"can you", "can you help me", "Can you help me?"},
		{"tag right", "this works right", "This works right?"},
		{"tag can you", "you can do it, can you", "You can do it, can you?"},
		{"tag inside a word", "that is upright", "That is upright."},
		{"second sentence question", "it broke. why did it break", "It broke. Why did it break?"},

		// punctuation cleanup
		{"double period", "hello..", "Hello."},
		{"double question", "what??", "What?"},
		{"triple bang", "wow!!!", "Wow!"},
		{"comma before period", "ok then,.", "Ok then."},
		{"space before comma", "hello , world", "Hello, world."},
		{"missing comma space", "one,two,three", "One, two, three."},
		{"trailing comma", "and then,", "And then."},
		{"punctuation only", "...", "."},

		// glued punctuation always gets its space
		{"glued period", "hello.world", "Hello. world."},
		{"digit list", "pick 1,2,3", "Pick 1, 2, 3."},
		{"thousands separator", "it costs 1,000 dollars", "It costs 1, 000 dollars."},
		{"decimal", "the version is 3.5 now", "The version is 3. 5 now."},
		{"domain", "email me at gmail.com", "Email me at Gmail. com."},
		{"period before comma", "etc.,and more", "Etc., and more."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tidy.Format(tc.in); got != tc.want {
				t.Errorf("Format(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFormat_RealWorldTranscript(t *testing.T) {
	t.Parallel()

	in := "um so basically i was, you know, thinking about the the api and, uh, how it works with gmail"
	got := tidy.Format(in)

	for _, re := range []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bum\b`),
		regexp.MustCompile(`(?i)\buh\b`),
		regexp.MustCompile(`(?i)\byou know\b`),
		regexp.MustCompile(`(?i)\bthe the\b`),
	} {
		if re.MatchString(got) {
			t.Errorf("Format() = %q, must not match %s", got, re)
		}
	}
	for _, want := range []string{"API", "Gmail"} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() = %q, want it to contain %q", got, want)
		}
	}
}

func TestFormat_WholeWordsOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"its fine", "Its fine."},
		{"she said hi", "She said hi."},
		{"a mis-it's-take", "A mis-it's-take."},
		{"the aim is clear", "The aim is clear."},
		{"googled it", "Googled it."},
		{"mondays are long", "Mondays are long."},
		{"hurl the ball", "Hurl the ball."},
	}
	for _, tc := range tests {
		if got := tidy.Format(tc.in); got != tc.want {
			t.Errorf("Format(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

var doubledPunct = regexp.MustCompile(`[.!?]{2}|,,`)

func TestFormat_Invariants(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"hello",
		"wow!!! really??",
		"so,, um,, what.. now",
		"like, you know, i mean it",
		"a , b , c , ,",
		"?!?!",
		"  trailing spaces   ",
		"the api api api is down. is it",
		"é ça va",
		"42",
	}
	for _, in := range inputs {
		got := tidy.Format(in)
		if got == "" {
			t.Errorf("Format(%q) = \"\", want non-empty", in)
			continue
		}
		if last := got[len(got)-1]; last != '.' && last != '!' && last != '?' {
			t.Errorf("Format(%q) = %q, want terminal punctuation", in, got)
		}
		if doubledPunct.MatchString(got) {
			t.Errorf("Format(%q) = %q, contains doubled punctuation", in, got)
		}
		if got != strings.TrimSpace(got) || strings.Contains(got, "  ") {
			t.Errorf("Format(%q) = %q, has stray whitespace", in, got)
		}
	}
}

func TestFormat_StableOnCanonicalText(t *testing.T) {
	t.Parallel()

	for _, in := range []string{
		"Hello world.",
		"I'm going to Gmail now.",
		"What do you think?",
		"You can do it, can you?",
		"The answer is, yes.",
		"First sentence. Second sentence.",
		"It costs 1, 000 dollars.",
	} {
		once := tidy.Format(in)
		if twice := tidy.Format(once); twice != once {
			t.Errorf("Format(Format(%q)) = %q, want %q", in, twice, once)
		}
		if once != in {
			t.Errorf("Format(%q) = %q, want unchanged", in, once)
		}
	}
}

func TestFormat_Concurrent(t *testing.T) {
	t.Parallel()

	const in = "um i'm checking gmail, can you"
	want := tidy.Format(in)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := tidy.Format(in); got != want {
				t.Errorf("Format(%q) = %q, want %q", in, got, want)
			}
		}()
	}
	wg.Wait()
}

func TestStages(t *testing.T) {
	t.Parallel()

	names := tidy.Stages()
	if len(names) != 14 {
		t.Fatalf("len(Stages()) = %d, want 14", len(names))
	}
	if names[0] != "hesitations" {
		t.Errorf("first stage = %q, want %q", names[0], "hesitations")
	}
	if names[len(names)-1] != "trim" {
		t.Errorf("last stage = %q, want %q", names[len(names)-1], "trim")
	}
}

func TestTrace(t *testing.T) {
	t.Parallel()

	t.Run("matches Format", func(t *testing.T) {
		t.Parallel()
		const in = "um, the the api is down, right"
		steps := tidy.Trace(in)
		if len(steps) != len(tidy.Stages()) {
			t.Fatalf("len(Trace) = %d, want %d", len(steps), len(tidy.Stages()))
		}
		for i, name := range tidy.Stages() {
			if steps[i].Stage != name {
				t.Errorf("steps[%d].Stage = %q, want %q", i, steps[i].Stage, name)
			}
		}
		if got, want := steps[len(steps)-1].Text, tidy.Format(in); got != want {
			t.Errorf("last trace text = %q, want %q", got, want)
		}
	})

	t.Run("stops after whitespace on empty text", func(t *testing.T) {
		t.Parallel()
		steps := tidy.Trace("  um  ")
		if len(steps) != 4 {
			t.Fatalf("len(Trace) = %d, want 4", len(steps))
		}
		if steps[3].Stage != "whitespace" || steps[3].Text != "" {
			t.Errorf("steps[3] = %+v, want empty whitespace stage", steps[3])
		}
	})
}

func TestPreserveCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		matched, replacement, want string
	}{
		{"Dont", "don't", "Don't"},
		{"don't", "don't", "don't"},
		{"i'm", "I'm", "i'm"},
		{"I'm", "I'm", "I'm"},
		{"Éte", "été", "Été"},
		{"", "word", "word"},
		{"Word", "", ""},
	}
	for _, tc := range tests {
		if got := tidy.PreserveCase(tc.matched, tc.replacement); got != tc.want {
			t.Errorf("PreserveCase(%q, %q) = %q, want %q", tc.matched, tc.replacement, got, tc.want)
		}
	}
}

func TestTables(t *testing.T) {
	t.Parallel()

	c := tidy.Contractions()
	for k, want := range map[string]string{
		"i'm": "I'm", "don't": "don't", "can't": "can't",
		"let's": "let's", "that's": "that's", "we're": "we're", "they've": "they've",
	} {
		if c[k] != want {
			t.Errorf("Contractions()[%q] = %q, want %q", k, c[k], want)
		}
	}
	c["i'm"] = "broken"
	if tidy.Contractions()["i'm"] != "I'm" {
		t.Error("mutating the returned contraction map changed the package table")
	}

	caps := tidy.AlwaysCapitalize()
	for _, w := range []string{"gmail", "slack", "notion", "linkedin", "ai", "api", "url", "monday", "friday", "sunday"} {
		if _, ok := caps[w]; !ok {
			t.Errorf("AlwaysCapitalize() missing %q", w)
		}
	}

	if _, ok := tidy.QuestionWords()["what"]; !ok {
		t.Error(`QuestionWords() missing "what"`)
	}
	if !tidy.IsAcronym("css") || tidy.IsAcronym("gmail") {
		t.Error("IsAcronym classification wrong")
	}
}
