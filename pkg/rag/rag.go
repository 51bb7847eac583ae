// Package rag resolves a chat node's attached memory indexes at send
// time, embeds the query once, searches every attached index, and merges
// the hits into one ranked context block.
//
// Retrieval is best-effort: an unconfigured or unreachable embedding
// backend aborts only the retrieval step, never the send. The one hard
// failure is an embedding-dimension mismatch, which means query and index
// vectors live in different spaces and any ranking would be garbage.
package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/weave/pkg/embeddings"
	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/llm"
	"github.com/papercomputeco/weave/pkg/memindex"
)

const (
	// perIndexTopK is how many hits each attached index contributes
	// before the global merge.
	perIndexTopK = 3

	// globalTopK is how many hits survive the global merge.
	globalTopK = 5
)

// EmbedderFactory returns the embedder for a provider/model pair.
type EmbedderFactory func(providerID, modelID string) (embeddings.Embedder, error)

// Config holds the engine's collaborators.
type Config struct {
	// Graph is the canvas graph; attachments are derived from its edges.
	Graph *graph.Store

	// Registry resolves each memory node's index.
	Registry *memindex.Registry

	// Embedders builds the embedder for the chosen provider/model.
	Embedders EmbedderFactory

	// DefaultProviderID and DefaultModelID are used when no attached
	// memory node records embed provenance.
	DefaultProviderID string
	DefaultModelID    string

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Engine performs retrieval for chat nodes.
type Engine struct {
	config Config
	logger *zap.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(c Config) *Engine {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{config: c, logger: logger}
}

// Result is one retrieved chunk with its origin and rank.
type Result struct {
	Rank      int            `json:"rank"`
	NodeID    string         `json:"node_id"`
	NodeTitle string         `json:"node_title"`
	Chunk     memindex.Chunk `json:"chunk"`
	Score     float64        `json:"score"`
}

// Context is the outcome of one retrieval run.
type Context struct {
	Results    []Result `json:"results"`
	ProviderID string   `json:"provider_id"`
	ModelID    string   `json:"model_id"`
}

// Block formats the results into the context block injected ahead of the
// receiver's conversation: each result prefixed with its rank and the
// originating memory node's title.
func (c *Context) Block() string {
	if c == nil || len(c.Results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Relevant context retrieved from attached memory:\n")
	for _, r := range c.Results {
		fmt.Fprintf(&b, "%d. [%s] %s\n", r.Rank, r.NodeTitle, r.Chunk.Text)
	}
	return b.String()
}

// Message wraps the block as the dedicated instruction segment placed
// after donor transcripts and before the live conversation.
func (c *Context) Message() (llm.Message, bool) {
	block := c.Block()
	if block == "" {
		return llm.Message{}, false
	}
	return llm.Message{Role: graph.RoleSystem, Content: block}, true
}

// Retrieve runs retrieval for one send. A chat node without attached
// memory nodes, or an empty query, skips retrieval entirely and returns
// (nil, nil): a no-op, not an error.
func (e *Engine) Retrieve(ctx context.Context, chatID, query string) (*Context, error) {
	attached := e.config.Graph.Attachments(chatID)
	if len(attached) == 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}

	providerID, modelID := e.chooseSpace(attached)

	embedder, err := e.config.Embedders(providerID, modelID)
	if err != nil {
		return nil, fmt.Errorf("resolving embedder %s/%s: %w", providerID, modelID, err)
	}

	queryVec, err := embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var merged []Result
	for _, nodeID := range attached {
		node, ok := e.config.Graph.Node(nodeID)
		if !ok || node.Memory == nil {
			// Node may have been deleted mid-send.
			continue
		}

		if node.Memory.EmbeddingProviderID != "" &&
			(node.Memory.EmbeddingProviderID != providerID || node.Memory.EmbeddingModelID != modelID) {
			// Cross-space comparison. Proceed, but the ranking quality for
			// this index is suspect until its chunks are re-embedded.
			e.logger.Warn("query and index embedded with different providers",
				zap.String("chat_id", chatID),
				zap.String("memory_id", nodeID),
				zap.String("query_provider", providerID),
				zap.String("query_model", modelID),
				zap.String("index_provider", node.Memory.EmbeddingProviderID),
				zap.String("index_model", node.Memory.EmbeddingModelID),
			)
		}

		index, ok := e.config.Registry.Get(nodeID)
		if !ok {
			// Attached but nothing uploaded yet.
			continue
		}

		hits, err := index.Search(ctx, queryVec, perIndexTopK)
		if err != nil {
			return nil, fmt.Errorf("searching index of node %s: %w", nodeID, err)
		}
		for _, hit := range hits {
			merged = append(merged, Result{
				NodeID:    nodeID,
				NodeTitle: node.Memory.Title,
				Chunk:     hit.Chunk,
				Score:     hit.Score,
			})
		}
	}

	if len(merged) == 0 {
		return nil, nil
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > globalTopK {
		merged = merged[:globalTopK]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}

	e.logger.Debug("retrieval complete",
		zap.String("chat_id", chatID),
		zap.Int("attached", len(attached)),
		zap.Int("results", len(merged)),
	)

	return &Context{
		Results:    merged,
		ProviderID: providerID,
		ModelID:    modelID,
	}, nil
}

// chooseSpace picks the embedding provider/model for the query: the first
// attached memory node recording provenance, in edge-insertion order.
// Nodes without provenance fall through to the configured default.
func (e *Engine) chooseSpace(attached []string) (string, string) {
	for _, nodeID := range attached {
		node, ok := e.config.Graph.Node(nodeID)
		if !ok || node.Memory == nil {
			continue
		}
		if node.Memory.EmbeddingProviderID != "" {
			return node.Memory.EmbeddingProviderID, node.Memory.EmbeddingModelID
		}
	}
	return e.config.DefaultProviderID, e.config.DefaultModelID
}
