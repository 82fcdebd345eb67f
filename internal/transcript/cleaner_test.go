package transcript_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/vibecoding/internal/observe"
	"github.com/MrWong99/vibecoding/internal/resilience"
	"github.com/MrWong99/vibecoding/internal/transcript"
	"github.com/MrWong99/vibecoding/internal/transcript/llmrewrite"
	"github.com/MrWong99/vibecoding/internal/transcript/phonetic"
	"github.com/MrWong99/vibecoding/pkg/provider/llm"
	llmmock "github.com/MrWong99/vibecoding/pkg/provider/llm/mock"
	"github.com/MrWong99/vibecoding/pkg/types"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// fakeMatcher snaps exact lower-case phrases from a fixed table.
type fakeMatcher map[string]fakeMatch

type fakeMatch struct {
	term string
	conf float64
}

func (f fakeMatcher) Match(phrase string, _ []string) (string, float64, bool) {
	if m, ok := f[strings.ToLower(phrase)]; ok {
		return m.term, m.conf, true
	}
	return phrase, 0, false
}

func final(text string) types.Transcript {
	return types.Transcript{Text: text, IsFinal: true}
}

func rewriting(p *llmmock.Provider, opts ...transcript.PipelineOption) *transcript.CleanupPipeline {
	return transcript.NewPipeline(append(opts, transcript.WithRewriter(llmrewrite.New(p)))...)
}

func TestClean_RulesOnly(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline()
	got, err := p.Clean(context.Background(), final("um so, like, the the api is down, right"))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if got.Text != "The API is down, right?" {
		t.Errorf("Text = %q, want %q", got.Text, "The API is down, right?")
	}
	if got.Method != transcript.MethodRules || got.Fallback || got.FallbackReason != "" {
		t.Errorf("got method=%q fallback=%v reason=%q, want plain rules", got.Method, got.Fallback, got.FallbackReason)
	}
	if got.Corrections == nil || len(got.Corrections) != 0 {
		t.Errorf("Corrections = %#v, want empty non-nil", got.Corrections)
	}
	if p.RewriteEnabled() {
		t.Error("RewriteEnabled() = true without a rewriter")
	}
}

func TestClean_EmptyInput(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Something."}}
	p := rewriting(provider)
	for _, in := range []string{"", "   ", "\n\t"} {
		got, err := p.Clean(context.Background(), final(in))
		if err != nil {
			t.Fatalf("Clean(%q): %v", in, err)
		}
		if got.Text != "" || got.Method != transcript.MethodRules || got.Fallback {
			t.Errorf("Clean(%q) = %+v, want empty rules result", in, got)
		}
	}
	if n := len(provider.Calls()); n != 0 {
		t.Errorf("provider called %d times for blank input, want 0", n)
	}
}

func TestClean_HesitationOnly(t *testing.T) {
	t.Parallel()

	got, err := transcript.NewPipeline().Clean(context.Background(), final("um uh"))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if got.Text != "" {
		t.Errorf("Text = %q, want empty", got.Text)
	}
}

func TestClean_Vocabulary(t *testing.T) {
	t.Parallel()

	matcher := fakeMatcher{
		"visual studio coat": {"Visual Studio Code", 0.95},
		"the kubernetes":     {"Kubernetes", 0.8},
		"kubernetes":         {"Kubernetes", 1},
		"grimjow":            {"Grimjaw", 0.9},
	}
	terms := []string{"Visual Studio Code", "Kubernetes", "Grimjaw"}

	tests := []struct {
		name        string
		in          string
		want        string
		corrections []transcript.Correction
	}{
		{
			name: "multi word term keeps trailing punctuation",
			in:   "open visual studio coat, please",
			want: "Open Visual Studio Code, please.",
			corrections: []transcript.Correction{
				{Original: "visual studio coat", Corrected: "Visual Studio Code", Confidence: 0.95, Method: "phonetic"},
			},
		},
		{
			name: "window does not swallow a neighbour",
			in:   "deploy the kubernetes cluster",
			want: "Deploy the Kubernetes cluster.",
			corrections: []transcript.Correction{
				{Original: "kubernetes", Corrected: "Kubernetes", Confidence: 1, Method: "phonetic"},
			},
		},
		{
			name: "window never spans punctuation",
			in:   "open visual, studio coat",
			want: "Open visual, studio coat.",
		},
		{
			name: "leading punctuation kept",
			in:   `ask "grimjow" first`,
			want: `Ask "Grimjaw" first.`,
			corrections: []transcript.Correction{
				{Original: "grimjow", Corrected: "Grimjaw", Confidence: 0.9, Method: "phonetic"},
			},
		},
	}

	p := transcript.NewPipeline(transcript.WithVocabulary(matcher, terms))
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := p.Clean(context.Background(), final(tc.in))
			if err != nil {
				t.Fatalf("Clean: %v", err)
			}
			if got.Text != tc.want {
				t.Errorf("Text = %q, want %q", got.Text, tc.want)
			}
			if len(got.Corrections) != len(tc.corrections) {
				t.Fatalf("Corrections = %+v, want %+v", got.Corrections, tc.corrections)
			}
			for i := range tc.corrections {
				if got.Corrections[i] != tc.corrections[i] {
					t.Errorf("Corrections[%d] = %+v, want %+v", i, got.Corrections[i], tc.corrections[i])
				}
			}
		})
	}
}

func TestClean_PhoneticMatcher(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline(transcript.WithVocabulary(phonetic.New(), []string{"Grimjaw", "LinkedIn"}))
	if got := p.Terms(); len(got) != 2 {
		t.Fatalf("Terms() = %v, want 2 terms", got)
	}

	tests := []struct {
		in, want string
	}{
		{"i talked to grimjaw yesterday", "I talked to Grimjaw yesterday."},
		{"post it on linkedin", "Post it on LinkedIn."},
		{"linkedin is down", "LinkedIn is down."},
	}
	for _, tc := range tests {
		got, err := p.Clean(context.Background(), final(tc.in))
		if err != nil {
			t.Fatalf("Clean(%q): %v", tc.in, err)
		}
		if got.Text != tc.want {
			t.Errorf("Clean(%q).Text = %q, want %q", tc.in, got.Text, tc.want)
		}
	}
}

func TestClean_Rewrite(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Hello, world.", FinishReason: "stop"}}
	p := rewriting(provider)
	if !p.RewriteEnabled() {
		t.Fatal("RewriteEnabled() = false")
	}

	got, err := p.Clean(context.Background(), final("um hello world"))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if got.Method != transcript.MethodLLM || got.Fallback {
		t.Errorf("method=%q fallback=%v, want llm without fallback", got.Method, got.Fallback)
	}
	if got.Text != "Hello, world." {
		t.Errorf("Text = %q, want %q", got.Text, "Hello, world.")
	}
	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(calls))
	}
	if msg := calls[0].Req.Messages[0].Content; msg != "um hello world" {
		t.Errorf("user message = %q, want raw text", msg)
	}
}

func TestClean_RewriteSkipped(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Rewritten."}}
	p := rewriting(provider)

	interim, err := p.Clean(context.Background(), types.Transcript{Text: "hello there", IsFinal: false})
	if err != nil {
		t.Fatalf("Clean interim: %v", err)
	}
	skipped, err := p.Clean(context.Background(), final("hello there"), transcript.SkipRewrite())
	if err != nil {
		t.Fatalf("Clean with SkipRewrite: %v", err)
	}
	for _, got := range []*transcript.CleanedTranscript{interim, skipped} {
		if got.Text != "Hello there." || got.Method != transcript.MethodRules || got.Fallback {
			t.Errorf("got %+v, want plain rules result", got)
		}
	}
	if n := len(provider.Calls()); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestClean_Fallback(t *testing.T) {
	t.Parallel()

	const in = "um so the deploy failed again"
	const want = "So the deploy failed again."

	tests := []struct {
		name     string
		provider *llmmock.Provider
		reason   string
	}{
		{"provider error", &llmmock.Provider{CompleteErr: errors.New("502 bad gateway")}, transcript.ReasonError},
		{"circuit open", &llmmock.Provider{CompleteErr: resilience.ErrCircuitOpen}, transcript.ReasonUnavailable},
		{"all backends failed", &llmmock.Provider{CompleteErr: resilience.ErrAllFailed}, transcript.ReasonUnavailable},
		{"empty answer", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  "}}, transcript.ReasonEmpty},
		{"truncated answer", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "The deploy", FinishReason: "length"}}, transcript.ReasonTruncated},
		{"drift", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Bananas are a great source of potassium."}}, transcript.ReasonDrift},
		{"timeout", &llmmock.Provider{CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}}, transcript.ReasonTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := rewriting(tc.provider, transcript.WithRewriteTimeout(20*time.Millisecond))
			got, err := p.Clean(context.Background(), final(in))
			if err != nil {
				t.Fatalf("Clean: %v", err)
			}
			if got.Text != want {
				t.Errorf("Text = %q, want %q", got.Text, want)
			}
			if got.Method != transcript.MethodRules || !got.Fallback || got.FallbackReason != tc.reason {
				t.Errorf("method=%q fallback=%v reason=%q, want rules fallback %q",
					got.Method, got.Fallback, got.FallbackReason, tc.reason)
			}
		})
	}
}

func TestClean_CallerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	provider := &llmmock.Provider{CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
		cancel()
		return nil, ctx.Err()
	}}
	got, err := rewriting(provider).Clean(ctx, final("hello world"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got != nil {
		t.Errorf("result = %+v, want nil on cancellation", got)
	}
}

func TestClean_UncertainWords(t *testing.T) {
	t.Parallel()

	provider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Ask Grimjaw about the map."}}
	p := rewriting(provider, transcript.WithVocabulary(fakeMatcher{"grimjow": {"Grimjaw", 0.9}}, []string{"Grimjaw"}))

	tr := final("ask grimjow about teh map")
	tr.Words = []types.WordDetail{
		{Word: "ask", Confidence: 0.95},
		{Word: "grimjow", Confidence: 0.3},
		{Word: "about", Confidence: 0.9},
		{Word: "teh", Confidence: 0.2},
		{Word: "map", Confidence: 0.8},
	}
	got, err := p.Clean(context.Background(), tr)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if got.Text != "Ask Grimjaw about the map." || got.Method != transcript.MethodLLM {
		t.Errorf("got %+v, want accepted rewrite", got)
	}

	req := provider.Calls()[0].Req
	wantMsg := "ask Grimjaw about teh map\n\n(Possibly misheard words: teh)"
	if req.Messages[0].Content != wantMsg {
		t.Errorf("user message = %q, want %q", req.Messages[0].Content, wantMsg)
	}
	if !strings.Contains(req.SystemPrompt, "- Grimjaw") {
		t.Errorf("system prompt does not list the vocabulary:\n%s", req.SystemPrompt)
	}
}

func TestClean_Metrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	provider := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Completely different words entirely here."}}
	p := rewriting(provider, transcript.WithMetrics(m))
	for range 2 {
		if _, err := p.Clean(context.Background(), final("the build is green")); err != nil {
			t.Fatalf("Clean: %v", err)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if sum, ok := met.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					counts[met.Name] += dp.Value
				}
			}
		}
	}
	if counts["vibecoding.cleanups"] != 2 {
		t.Errorf("cleanups = %d, want 2", counts["vibecoding.cleanups"])
	}
	if counts["vibecoding.rewrite.fallbacks"] != 2 {
		t.Errorf("rewrite.fallbacks = %d, want 2", counts["vibecoding.rewrite.fallbacks"])
	}
}

func TestClean_Concurrent(t *testing.T) {
	t.Parallel()

	p := transcript.NewPipeline(transcript.WithVocabulary(phonetic.New(), []string{"Grimjaw"}))
	const in = "um tell grimjaw, you know, the the plan"
	want, err := p.Clean(context.Background(), final(in))
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			got, err := p.Clean(context.Background(), final(in))
			if err != nil || got.Text != want.Text {
				t.Errorf("concurrent Clean = (%v, %v), want %q", got, err, want.Text)
			}
		})
	}
	wg.Wait()
}
