// Package memindex provides per-memory-node similarity indexes over
// embedded document chunks, with cosine-similarity top-K search.
//
// Each memory node on the canvas owns one Index. The in-memory driver is
// the default; a sqlite-vec backed driver provides durable indexes that
// survive restarts. Both merge upserts by chunk id (last write wins) and
// skip chunks that have no embedding yet.
package memindex

import "context"

// Chunk is a stored piece of document text with provenance metadata and,
// once embedded, its vector. The Embedding field stays nil between parse
// and embed; such chunks are never eligible for search.
type Chunk struct {
	// ID is stable and content-addressed (derived from the source name and
	// positional index), so re-uploading a file overwrites its chunks
	// instead of duplicating them.
	ID string `json:"id"`

	// Text is the chunk's content.
	Text string `json:"text"`

	// Embedding is the chunk's vector representation, absent until embedded.
	Embedding []float32 `json:"embedding,omitempty"`

	// Metadata carries provenance; at minimum "source" (originating file
	// name) and "type".
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Result is a search hit with its cosine similarity score.
type Result struct {
	Chunk Chunk
	Score float64
}

// Index stores embedded chunks for one memory node and answers
// similarity queries against them.
type Index interface {
	// Upsert merges chunks by id; an existing id is replaced in place.
	Upsert(ctx context.Context, chunks []Chunk) error

	// Remove deletes chunks by id. Unknown ids are ignored.
	Remove(ctx context.Context, ids []string) error

	// Search returns at most topK chunks ranked by descending cosine
	// similarity against the query vector. Chunks without an embedding are
	// skipped; an empty index yields an empty result. A query whose length
	// differs from a stored embedding's is a hard ErrDimensionMismatch;
	// silently truncating or padding would corrupt rankings.
	Search(ctx context.Context, query []float32, topK int) ([]Result, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the index.
	Close() error
}
