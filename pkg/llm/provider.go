package llm

import "context"

// Provider streams chat completions.
type Provider interface {
	// Name returns the canonical provider name (e.g., "ollama", "openai").
	Name() string

	// StreamCompletion runs the request and delivers cumulative chunks to
	// fn until the final chunk or an error. There is no out-of-band
	// cancellation: callers cancel via ctx.
	StreamCompletion(ctx context.Context, req *ChatRequest, fn StreamFunc) error

	// Close releases any resources held by the provider client.
	Close() error
}
