// Package inmemory implements memindex.Index using an in-memory map.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/weave/pkg/memindex"
)

// Index holds chunks in a mutex-guarded map. It is the default index
// driver; contents are lost on shutdown.
type Index struct {
	mu     sync.RWMutex
	chunks map[string]memindex.Chunk
	closed bool
}

// NewIndex creates an empty in-memory index.
func NewIndex() *Index {
	return &Index{
		chunks: make(map[string]memindex.Chunk),
	}
}

// Upsert merges chunks by id, last write wins.
func (x *Index) Upsert(_ context.Context, chunks []memindex.Chunk) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return memindex.ErrClosed
	}
	for _, c := range chunks {
		x.chunks[c.ID] = cloneChunk(c)
	}
	return nil
}

// Remove deletes chunks by id.
func (x *Index) Remove(_ context.Context, ids []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return memindex.ErrClosed
	}
	for _, id := range ids {
		delete(x.chunks, id)
	}
	return nil
}

// Search scans every embedded chunk and returns the topK by descending
// cosine similarity. A dimension mismatch on any compared pair fails the
// whole search.
func (x *Index) Search(_ context.Context, query []float32, topK int) ([]memindex.Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return nil, memindex.ErrClosed
	}
	if topK <= 0 {
		return nil, nil
	}

	results := make([]memindex.Result, 0, len(x.chunks))
	for _, c := range x.chunks {
		if c.Embedding == nil {
			continue
		}
		score, err := memindex.Cosine(query, c.Embedding)
		if err != nil {
			return nil, err
		}
		results = append(results, memindex.Result{Chunk: cloneChunk(c), Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (x *Index) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return 0, memindex.ErrClosed
	}
	return len(x.chunks), nil
}

// Close marks the index closed and drops its contents.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.closed = true
	x.chunks = nil
	return nil
}

func cloneChunk(c memindex.Chunk) memindex.Chunk {
	out := c
	if c.Embedding != nil {
		out.Embedding = make([]float32, len(c.Embedding))
		copy(out.Embedding, c.Embedding)
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
