package llm

// StreamChunk is one step of a streaming completion. Content is the
// assistant message accumulated so far, not an increment: each chunk is a
// cumulative snapshot, and callers replace their stored assistant content
// wholesale rather than concatenating.
type StreamChunk struct {
	Model string `json:"model"`

	// Content is the full assistant content up to this chunk.
	Content string `json:"content"`

	// Done marks the final chunk.
	Done bool `json:"done"`
}

// StreamFunc receives chunks in order. Returning an error stops the
// stream and propagates out of StreamCompletion.
type StreamFunc func(StreamChunk) error
