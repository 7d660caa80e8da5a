// Package llm defines the Provider interface for generative model backends.
//
// A provider wraps a hosted model API (Gemini, or any backend reachable
// through any-llm-go) and exposes the two call shapes hearscribe needs: a
// single-shot completion that returns the full text, and a streaming
// completion that yields text fragments as they are produced.
//
// Requests are multimodal: a [Message] is an ordered list of [Part] values,
// each either text or raw bytes tagged with their media type. Providers that
// cannot interpret binary parts must reject the request with a
// [*ServiceError] instead of silently dropping content.
//
// Providers apply exactly one attempt per call. There is no retry, backoff or
// timeout at this layer; callers decide how to surface failures.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import "context"

// Usage holds token accounting information returned by the backend.
type Usage struct {
	// PromptTokens is the number of tokens consumed by the request content,
	// including binary parts that the model tokenises (documents, video).
	PromptTokens int

	// CompletionTokens is the number of tokens generated in the response.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens.
	TotalTokens int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation. hearscribe sends a single "user"
	// message whose parts combine the instruction text and the media payload.
	Messages []Message

	// SystemPrompt is an optional high-priority instruction. Providers without
	// a dedicated system slot prepend it as a "system"-role message.
	SystemPrompt string

	// Temperature controls output randomness. Zero requests the provider
	// default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider
	// default.
	MaxTokens int
}

// FinishReasonError is the FinishReason of the final chunk of a stream that
// terminated abnormally. Such a chunk carries the cause in [Chunk.Err].
const FinishReasonError = "error"

// Chunk is a single fragment emitted by a streaming completion.
type Chunk struct {
	// Text is the incremental text of this chunk. May be empty on the final
	// chunk.
	Text string

	// FinishReason is set on the final chunk. Common values are "stop",
	// "length" and [FinishReasonError].
	FinishReason string

	// Err is set together with FinishReason == FinishReasonError. It is
	// always a [*ServiceError].
	Err error
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the model's reply.
	Content string

	// FinishReason reports why generation stopped.
	FinishReason string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any generative backend.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits Chunk values in order as they arrive. The channel is finite,
	// cannot be replayed, and is closed by the implementation when generation
	// finishes or ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors that
	// occur after the channel is opened are surfaced as a final Chunk with
	// FinishReason [FinishReasonError]; fragments delivered before it remain
	// valid. The initial error return is non-nil only for failures that
	// prevent the stream from starting.
	//
	// The returned channel must never be nil when error is nil.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing what the provider's
	// model accepts.
	Capabilities() ModelCapabilities
}
