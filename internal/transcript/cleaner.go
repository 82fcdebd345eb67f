package transcript

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/vibecoding/internal/observe"
	"github.com/MrWong99/vibecoding/internal/resilience"
	"github.com/MrWong99/vibecoding/internal/transcript/llmrewrite"
	"github.com/MrWong99/vibecoding/internal/transcript/phonetic"
	"github.com/MrWong99/vibecoding/internal/transcript/tidy"
	"github.com/MrWong99/vibecoding/pkg/types"
)

const defaultLowConfidence = 0.5

// PipelineOption is a functional option for configuring a [CleanupPipeline].
type PipelineOption func(*CleanupPipeline)

// WithVocabulary enables vocabulary snapping against terms using m. Blank
// and duplicate terms are ignored. A nil matcher or an empty term list
// leaves the stage disabled.
func WithVocabulary(m PhoneticMatcher, terms []string) PipelineOption {
	return func(p *CleanupPipeline) {
		p.matcher = m
		p.rawTerms = terms
	}
}

// WithRewriter enables the LLM rewrite stage.
func WithRewriter(r *llmrewrite.Rewriter) PipelineOption {
	return func(p *CleanupPipeline) {
		p.rewriter = r
	}
}

// WithRewriteTimeout bounds a single rewrite attempt. When it expires the
// pipeline falls back to rule formatting with reason "timeout". Zero means
// no bound beyond the caller's context.
func WithRewriteTimeout(d time.Duration) PipelineOption {
	return func(p *CleanupPipeline) {
		p.rewriteTimeout = d
	}
}

// WithLowConfidenceThreshold sets the recognizer word confidence below which
// a word is pointed out to the rewriter as possibly misheard. Default: 0.5.
func WithLowConfidenceThreshold(threshold float64) PipelineOption {
	return func(p *CleanupPipeline) {
		p.lowConfidence = threshold
	}
}

// WithMetrics records cleanup metrics to m instead of
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) PipelineOption {
	return func(p *CleanupPipeline) {
		p.metrics = m
	}
}

// CleanupPipeline is the standard [Cleaner]. It is immutable after
// construction and safe for concurrent use; build a new one to change
// settings.
type CleanupPipeline struct {
	matcher        PhoneticMatcher
	rawTerms       []string
	vocab          *phonetic.Vocabulary
	canonical      []canonicalTerm
	rewriter       *llmrewrite.Rewriter
	rewriteTimeout time.Duration
	lowConfidence  float64
	metrics        *observe.Metrics
}

var _ Cleaner = (*CleanupPipeline)(nil)

// canonicalTerm restores a term's spelling after rule formatting changed its
// case.
type canonicalTerm struct {
	text string
	re   *regexp.Regexp
}

// NewPipeline constructs a [CleanupPipeline]. Without options it is a plain
// rule formatter.
func NewPipeline(opts ...PipelineOption) *CleanupPipeline {
	p := &CleanupPipeline{lowConfidence: defaultLowConfidence}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.matcher != nil {
		p.vocab = phonetic.PrepareVocabulary(p.rawTerms)
		for _, term := range p.vocab.Terms() {
			if !hasUpper(term) {
				continue
			}
			words := strings.Fields(term)
			for i, w := range words {
				words[i] = regexp.QuoteMeta(w)
			}
			p.canonical = append(p.canonical, canonicalTerm{
				text: term,
				re:   regexp.MustCompile(`(?i)` + strings.Join(words, `\s+`)),
			})
		}
	}
	p.rawTerms = nil
	return p
}

// Terms returns the active vocabulary, or nil when snapping is disabled.
func (p *CleanupPipeline) Terms() []string { return p.vocab.Terms() }

// RewriteEnabled reports whether the LLM rewrite stage is configured.
func (p *CleanupPipeline) RewriteEnabled() bool { return p.rewriter != nil }

// Clean runs the configured stages over t.
//
// Empty or whitespace-only text short-circuits to an empty result without
// touching any stage. Interim transcripts (IsFinal false) are never sent to
// the rewriter.
func (p *CleanupPipeline) Clean(ctx context.Context, t types.Transcript, opts ...CleanOption) (*CleanedTranscript, error) {
	var settings cleanSettings
	for _, o := range opts {
		o(&settings)
	}

	ctx, span := observe.StartSpan(ctx, "transcript.clean")
	defer span.End()

	res := &CleanedTranscript{
		Original:    t,
		Method:      MethodRules,
		Corrections: []Correction{},
	}
	if strings.TrimSpace(t.Text) == "" {
		p.metrics.RecordCleanup(ctx, res.Method, "ok")
		return res, nil
	}

	text := t.Text
	if p.vocab.Len() > 0 {
		text, res.Corrections = p.snap(text)
	}

	if p.rewriter != nil && t.IsFinal && !settings.skipRewrite {
		out, reason, err := p.rewrite(ctx, text, t, res.Corrections)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rewrite canceled")
			p.metrics.RecordCleanup(ctx, MethodLLM, "error")
			return nil, err
		}
		if reason == "" {
			res.Method = MethodLLM
			res.Text = p.restoreTerms(out)
			p.finish(ctx, span, res)
			return res, nil
		}
		res.Fallback = true
		res.FallbackReason = reason
		p.metrics.RecordFallback(ctx, reason)
	}

	start := time.Now()
	res.Text = p.restoreTerms(tidy.Format(text))
	p.metrics.RecordFormat(ctx, time.Since(start))
	p.finish(ctx, span, res)
	return res, nil
}

func (p *CleanupPipeline) finish(ctx context.Context, span trace.Span, res *CleanedTranscript) {
	span.SetAttributes(
		attribute.String("cleanup.method", res.Method),
		attribute.Bool("cleanup.fallback", res.Fallback),
		attribute.Int("cleanup.corrections", len(res.Corrections)),
	)
	p.metrics.RecordCleanup(ctx, res.Method, "ok")
}

// rewrite returns the accepted rewrite, or a fallback reason. An error is
// returned only when ctx itself is done.
func (p *CleanupPipeline) rewrite(ctx context.Context, text string, t types.Transcript, corrections []Correction) (string, string, error) {
	rctx := ctx
	if p.rewriteTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, p.rewriteTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := p.rewriter.Rewrite(rctx, text, p.vocab.Terms(), uncertainWords(t, corrections, p.lowConfidence))
	if err == nil {
		p.metrics.RecordRewrite(ctx, time.Since(start), "ok")
		return res.Text, "", nil
	}
	p.metrics.RecordRewrite(ctx, time.Since(start), "rejected")

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", "", fmt.Errorf("transcript: rewrite: %w", ctxErr)
	}
	reason := fallbackReason(err)
	observe.Logger(ctx).Warn("rewrite rejected, using rule formatting", "reason", reason, "err", err)
	return "", reason, nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, llmrewrite.ErrDrift):
		return ReasonDrift
	case errors.Is(err, llmrewrite.ErrEmpty):
		return ReasonEmpty
	case errors.Is(err, llmrewrite.ErrTruncated):
		return ReasonTruncated
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrAllFailed):
		return ReasonUnavailable
	default:
		return ReasonError
	}
}

// uncertainWords lists low-confidence recognizer words that vocabulary
// snapping did not already replace.
func uncertainWords(t types.Transcript, corrections []Correction, threshold float64) []string {
	low := t.LowConfidenceWords(threshold)
	if len(low) == 0 || len(corrections) == 0 {
		return low
	}
	replaced := make(map[string]struct{})
	for _, c := range corrections {
		for _, w := range strings.Fields(c.Original) {
			replaced[strings.ToLower(w)] = struct{}{}
		}
	}
	var out []string
	for _, w := range low {
		if _, ok := replaced[strings.ToLower(strings.TrimFunc(w, notWordChar))]; !ok {
			out = append(out, w)
		}
	}
	return out
}

// restoreTerms puts back the canonical spelling of mixed-case vocabulary
// terms ("iPhone", "LinkedIn") that rule formatting re-cased. Only letter case
// changes, so every formatting guarantee still holds.
func (p *CleanupPipeline) restoreTerms(s string) string {
	for _, c := range p.canonical {
		locs := c.re.FindAllStringIndex(s, -1)
		if locs == nil {
			continue
		}
		var sb strings.Builder
		last := 0
		for _, loc := range locs {
			if !boundaryAt(s, loc[0], loc[1]) {
				continue
			}
			sb.WriteString(s[last:loc[0]])
			sb.WriteString(c.text)
			last = loc[1]
		}
		sb.WriteString(s[last:])
		s = sb.String()
	}
	return s
}

// boundaryAt reports whether s[start:end] is not glued to a word character on
// either side.
func boundaryAt(s string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); !notWordChar(r) {
			return false
		}
	}
	if end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); !notWordChar(r) {
			return false
		}
	}
	return true
}

func notWordChar(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
