package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VocabularyChanged is true when the terms or matcher thresholds changed.
	VocabularyChanged bool
	AddedTerms        []string
	RemovedTerms      []string

	// RewriteChanged is true when any rewrite setting changed, providers
	// included. The pipeline must be rebuilt.
	RewriteChanged bool

	// RestartRequired lists settings that changed but only take effect after
	// a restart (e.g. "server.listen_addr").
	RestartRequired []string
}

// PipelineChanged reports whether the cleanup pipeline must be rebuilt.
func (d ConfigDiff) PipelineChanged() bool {
	return d.VocabularyChanged || d.RewriteChanged
}

// Empty reports whether nothing relevant changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.PipelineChanged() && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	d.AddedTerms = termsMissing(new.Vocabulary.Terms, old.Vocabulary.Terms)
	d.RemovedTerms = termsMissing(old.Vocabulary.Terms, new.Vocabulary.Terms)
	ov, nv := old.Vocabulary, new.Vocabulary
	d.VocabularyChanged = len(d.AddedTerms) > 0 || len(d.RemovedTerms) > 0 ||
		!slices.Equal(ov.Terms, nv.Terms) ||
		ov.PhoneticThreshold != nv.PhoneticThreshold ||
		ov.FuzzyThreshold != nv.FuzzyThreshold ||
		ov.MinLetters != nv.MinLetters

	d.RewriteChanged = !reflect.DeepEqual(old.Rewrite, new.Rewrite)

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if !reflect.DeepEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server.tls")
	}
	if old.Server.FeedbackFile != new.Server.FeedbackFile {
		d.RestartRequired = append(d.RestartRequired, "server.feedback_file")
	}
	if old.MCP != new.MCP {
		d.RestartRequired = append(d.RestartRequired, "mcp")
	}
	if old.Telemetry.ServiceName != new.Telemetry.ServiceName ||
		old.Telemetry.MetricsEnabled() != new.Telemetry.MetricsEnabled() {
		d.RestartRequired = append(d.RestartRequired, "telemetry")
	}

	return d
}

// termsMissing returns the entries of a not present in b, in order.
func termsMissing(a, b []string) []string {
	var out []string
	for _, t := range a {
		if !slices.Contains(b, t) {
			out = append(out, t)
		}
	}
	return out
}
