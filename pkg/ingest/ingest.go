// Package ingest turns parsed document chunks into embedded, stored
// chunks inside a memory node's similarity index.
//
// Ingestion is deliberately tolerant: a chunk whose embedding request
// fails is logged and skipped, because a retrieval index missing some
// chunks is still useful. Chunk ids are content-addressed from the source
// name and positional index, so re-uploading the same file overwrites its
// chunks in place instead of duplicating them.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/weave/pkg/embeddings"
	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/memindex"
	"github.com/papercomputeco/weave/pkg/parser"
)

// ChunkID derives the stable, content-addressed id for a chunk from its
// source file name and position within that file.
func ChunkID(source string, index int) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s#%d", source, index))
	return hex.EncodeToString(sum[:])[:16]
}

// Config holds the pipeline's collaborators.
type Config struct {
	// Embedder generates chunk embeddings.
	Embedder embeddings.Embedder

	// ProviderID and ModelID identify the embedder; recorded on the memory
	// node after a fully successful ingestion for later vector-space
	// consistency checks.
	ProviderID string
	ModelID    string

	// Registry owns the per-node indexes and upsert serialization.
	Registry *memindex.Registry

	// Graph receives payload updates (embed provenance, counters).
	Graph *graph.Store

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Pipeline ingests parsed chunks into memory node indexes.
type Pipeline struct {
	config Config
	logger *zap.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(c Config) *Pipeline {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{config: c, logger: logger}
}

// Result summarizes one ingestion run.
type Result struct {
	NodeID    string `json:"node_id"`
	Source    string `json:"source"`
	Parsed    int    `json:"parsed"`
	Embedded  int    `json:"embedded"`
	Skipped   int    `json:"skipped"`
	NewChunks int    `json:"new_chunks"`
}

// Ingest embeds the parsed chunks and upserts them into the memory node's
// index. Concurrent ingestions into the same node serialize on the
// registry's per-node lock so no upsert is lost to a race.
func (p *Pipeline) Ingest(ctx context.Context, nodeID, source string, parsed []parser.Chunk) (*Result, error) {
	if len(parsed) == 0 {
		return &Result{NodeID: nodeID, Source: source}, nil
	}

	chunks := make([]memindex.Chunk, 0, len(parsed))
	skipped := 0
	for i, pc := range parsed {
		vec, err := p.config.Embedder.Embed(ctx, pc.Text)
		if err != nil {
			// Partial ingestion is acceptable; keep going.
			skipped++
			p.logger.Warn("embedding chunk failed, skipping",
				zap.String("node_id", nodeID),
				zap.String("source", source),
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		chunks = append(chunks, memindex.Chunk{
			ID:        ChunkID(source, i),
			Text:      pc.Text,
			Embedding: vec,
			Metadata:  pc.Metadata,
		})
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("ingesting %s into %s: every chunk embedding failed", source, nodeID)
	}

	index, err := p.config.Registry.GetOrCreate(nodeID)
	if err != nil {
		return nil, fmt.Errorf("creating index for node %s: %w", nodeID, err)
	}

	lock := p.config.Registry.IngestLock(nodeID)
	lock.Lock()
	before, err := index.Count(ctx)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("counting index for node %s: %w", nodeID, err)
	}
	if err := index.Upsert(ctx, chunks); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("upserting chunks for node %s: %w", nodeID, err)
	}
	after, err := index.Count(ctx)
	lock.Unlock()
	if err != nil {
		return nil, fmt.Errorf("counting index for node %s: %w", nodeID, err)
	}

	result := &Result{
		NodeID:    nodeID,
		Source:    source,
		Parsed:    len(parsed),
		Embedded:  len(chunks),
		Skipped:   skipped,
		NewChunks: after - before,
	}

	if p.config.Graph != nil {
		// A re-upload adds no new chunk rows and therefore no new document.
		docDelta := 0
		if result.NewChunks > 0 {
			docDelta = 1
		}
		if err := p.config.Graph.AddMemoryCounts(nodeID, result.NewChunks, docDelta); err != nil {
			p.logger.Warn("updating memory counters failed",
				zap.String("node_id", nodeID),
				zap.Error(err),
			)
		}

		// Provenance is only recorded when every chunk embedded with this
		// provider, so a later query never trusts a half-mixed index.
		if skipped == 0 {
			if err := p.config.Graph.SetMemoryEmbedding(nodeID, p.config.ProviderID, p.config.ModelID); err != nil {
				p.logger.Warn("tagging embed provenance failed",
					zap.String("node_id", nodeID),
					zap.Error(err),
				)
			}
		}
	}

	p.logger.Info("ingested document",
		zap.String("node_id", nodeID),
		zap.String("source", source),
		zap.Int("parsed", result.Parsed),
		zap.Int("embedded", result.Embedded),
		zap.Int("skipped", result.Skipped),
		zap.Int("new_chunks", result.NewChunks),
	)
	return result, nil
}
