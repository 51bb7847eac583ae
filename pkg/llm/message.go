// Package llm defines the internal chat-completion types and the narrow
// provider interface the engine streams completions through. Provider
// wire formats never leak past their client packages.
package llm

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is a provider-agnostic completion request.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`

	// Options carries provider-specific tuning (temperature, ...).
	Options map[string]any `json:"options,omitempty"`
}
