// Package llm defines the Provider interface for Large Language Model backends
// used to rewrite transcripts.
//
// A provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance, ...) and exposes a single blocking completion call. The
// rewrite stage never streams: it needs the whole answer before it can decide
// whether to keep it.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Message is a single chat message.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is injected before Messages as a "system"-role message.
	SystemPrompt string

	// Messages is the ordered conversation. The last message is typically
	// from the "user" role and carries the transcript.
	Messages []Message

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// leaves the provider default in place.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider
	// default.
	MaxTokens int
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// FinishReason reports why generation stopped ("stop", "length", ...).
	// Empty when the backend does not say.
	FinishReason string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Truncated reports whether the model stopped because it hit MaxTokens.
func (r *CompletionResponse) Truncated() bool {
	return r != nil && r.FinishReason == "length"
}

// Provider is the abstraction over any LLM backend.
//
// Complete must propagate context cancellation promptly: when ctx is
// cancelled it must return as quickly as possible with an error wrapping
// ctx.Err().
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Limits returns static metadata about the configured model. The result
	// is constant for the lifetime of the Provider.
	Limits() ModelLimits
}
