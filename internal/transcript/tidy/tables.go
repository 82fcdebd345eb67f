package tidy

import "maps"

// contractions maps the lowercase spoken form of a contraction to its
// canonical written form. Only the first-person "I" forms carry an upper-case
// letter; every other value is lowercase and picks up sentence case from the
// matched text via [PreserveCase].
var contractions = map[string]string{
	"i'm":  "I'm",
	"i'd":  "I'd",
	"i'll": "I'll",
	"i've": "I've",

	"don't":     "don't",
	"doesn't":   "doesn't",
	"didn't":    "didn't",
	"can't":     "can't",
	"won't":     "won't",
	"wouldn't":  "wouldn't",
	"couldn't":  "couldn't",
	"shouldn't": "shouldn't",
	"isn't":     "isn't",
	"aren't":    "aren't",
	"wasn't":    "wasn't",
	"weren't":   "weren't",
	"haven't":   "haven't",
	"hasn't":    "hasn't",
	"hadn't":    "hadn't",
	"mustn't":   "mustn't",
	"needn't":   "needn't",

	"let's":   "let's",
	"that's":  "that's",
	"it's":    "it's",
	"what's":  "what's",
	"there's": "there's",
	"here's":  "here's",
	"who's":   "who's",
	"where's": "where's",
	"how's":   "how's",
	"he's":    "he's",
	"she's":   "she's",

	"we're":   "we're",
	"we've":   "we've",
	"we'll":   "we'll",
	"we'd":    "we'd",
	"they're": "they're",
	"they've": "they've",
	"they'll": "they'll",
	"they'd":  "they'd",
	"you're":  "you're",
	"you've":  "you've",
	"you'll":  "you'll",
	"you'd":   "you'd",
	"he'll":   "he'll",
	"she'll":  "she'll",
	"he'd":    "he'd",
	"she'd":   "she'd",
}

// acronyms is the closed set of capitalization-list entries rendered fully
// upper-case. Everything else in [alwaysCapitalize] gets proper case, no
// matter how short it is.
var acronyms = map[string]struct{}{
	"ai":   {},
	"api":  {},
	"url":  {},
	"html": {},
	"css":  {},
}

// alwaysCapitalize lists platform names, weekdays, months and acronyms that
// are capitalized whenever they appear as a whole word. "may" and "march" are
// left out on purpose: they are far more common as a verb than as a month.
var alwaysCapitalize = toSet(
	// platforms
	"gmail", "google", "slack", "notion", "linkedin", "github", "gitlab",
	"twitter", "youtube", "facebook", "instagram", "whatsapp", "chrome",
	"firefox", "safari", "figma", "jira", "trello", "outlook", "microsoft",
	"netflix", "spotify", "reddit", "dropbox", "android", "javascript",
	"typescript",

	// days
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",

	// months
	"january", "february", "april", "june", "july", "august", "september",
	"october", "november", "december",

	// acronyms
	"ai", "api", "url", "html", "css",
)

// questionWords are the lead words that turn an unterminated sentence into a
// question.
var questionWords = toSet(
	"what", "when", "where", "who", "whom", "whose", "why", "how", "which",
	"is", "are", "am", "was", "were",
	"do", "does", "did",
	"can", "could", "would", "will", "should", "shall", "may", "might",
	"have", "has", "had",
	"isn't", "aren't", "wasn't", "weren't",
	"don't", "doesn't", "didn't",
	"can't", "couldn't", "won't", "wouldn't", "shouldn't",
	"haven't", "hasn't",
)

// tagQuestions are sentence endings that mark a statement as a question.
// Multi-word tags are listed with a single space; matching is
// case-insensitive and anchored on a word boundary.
var tagQuestions = []string{
	"right",
	"correct",
	"okay",
	"ok",
	"isn't it",
	"aren't you",
	"don't you",
	"won't you",
	"can you",
	"could you",
	"would you",
}

func toSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Contractions returns a copy of the contraction table, keyed by the
// lowercase spoken form.
func Contractions() map[string]string {
	return maps.Clone(contractions)
}

// AlwaysCapitalize returns a copy of the words capitalized on every
// whole-word match.
func AlwaysCapitalize() map[string]struct{} {
	return maps.Clone(alwaysCapitalize)
}

// QuestionWords returns a copy of the question lead-word set.
func QuestionWords() map[string]struct{} {
	return maps.Clone(questionWords)
}

// IsAcronym reports whether word (lowercase) is rendered fully upper-case.
func IsAcronym(word string) bool {
	_, ok := acronyms[word]
	return ok
}
