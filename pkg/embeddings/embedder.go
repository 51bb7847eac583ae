// Package embeddings
package embeddings

import "context"

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts several texts into embeddings, in input order.
	// Implementations may fall back to sequential Embed calls.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// CheckReachable reports whether the embedding backend is responding.
	CheckReachable(ctx context.Context) bool

	// Close releases any resources held by the embedder.
	Close() error
}
