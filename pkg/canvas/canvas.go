// Package canvas is the engine tying the node graph to its backing
// services: completion streaming, document ingestion, retrieval, session
// persistence, and the event stream. The HTTP API and the CLI both drive
// the canvas through this one facade.
package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/papercomputeco/weave/pkg/eventstream"
	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/ingest"
	"github.com/papercomputeco/weave/pkg/llm"
	"github.com/papercomputeco/weave/pkg/memindex"
	"github.com/papercomputeco/weave/pkg/parser"
	"github.com/papercomputeco/weave/pkg/propagate"
	"github.com/papercomputeco/weave/pkg/rag"
	"github.com/papercomputeco/weave/pkg/session"
)

// Config holds the engine's collaborators.
type Config struct {
	// Graph is the canvas node graph.
	Graph *graph.Store

	// Registry owns the per-memory-node similarity indexes.
	Registry *memindex.Registry

	// Sessions persists and restores the canvas.
	Sessions *session.Orchestrator

	// Provider streams chat completions.
	Provider llm.Provider

	// DefaultModelID is used when a chat node has no model configured.
	DefaultModelID string

	// Parsers routes uploads to a document parser by extension.
	Parsers *parser.Registry

	// Pipeline embeds and stores parsed chunks.
	Pipeline *ingest.Pipeline

	// Retrieval runs memory retrieval at send time. Nil disables it.
	Retrieval *rag.Engine

	// Publisher receives canvas change events. Nil disables publishing.
	Publisher eventstream.Publisher

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Engine is the canvas facade.
type Engine struct {
	config Config
	logger *zap.Logger

	// sendMu guards inflight. One streaming completion per chat node.
	sendMu   sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewEngine creates the engine and installs itself as the graph store's
// event listener, fanning mutations out to the session orchestrator and
// the event stream.
func NewEngine(c Config) *Engine {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		config:   c,
		logger:   logger,
		inflight: make(map[string]context.CancelFunc),
	}
	c.Graph.SetListener(e.onGraphEvent)
	return e
}

// Graph exposes the underlying node graph for read and mutation paths
// that need no engine coordination.
func (e *Engine) Graph() *graph.Store {
	return e.config.Graph
}

// Sessions exposes the session orchestrator.
func (e *Engine) Sessions() *session.Orchestrator {
	return e.config.Sessions
}

func (e *Engine) onGraphEvent(ev graph.Event) {
	if e.config.Sessions != nil {
		e.config.Sessions.HandleGraphEvent(ev)
	}

	if e.config.Publisher == nil {
		return
	}
	if !ev.Structural() && ev.Type != graph.EventMessageAppended {
		return
	}

	sessionID := ""
	if e.config.Sessions != nil {
		sessionID = e.config.Sessions.SessionID()
	}
	if err := e.config.Publisher.Publish(context.Background(), eventstream.FromGraphEvent(ev, sessionID)); err != nil {
		e.logger.Warn("publishing canvas event failed",
			zap.String("event_type", string(ev.Type)),
			zap.Error(err),
		)
	}
}

// DeleteNode removes a node, cancelling any in-flight completion on it
// and dropping its memory index.
func (e *Engine) DeleteNode(id string) error {
	e.sendMu.Lock()
	if cancel, ok := e.inflight[id]; ok {
		cancel()
	}
	e.sendMu.Unlock()

	node, ok := e.config.Graph.Node(id)
	if !ok {
		return graph.ErrNotFound
	}

	if err := e.config.Graph.DeleteNode(id); err != nil {
		return err
	}

	if node.Kind == graph.NodeKindMemory && e.config.Registry != nil {
		if err := e.config.Registry.Drop(id); err != nil {
			e.logger.Warn("dropping memory index failed",
				zap.String("node_id", id),
				zap.Error(err),
			)
		}
	}
	return nil
}

// CancelSend cancels the node's in-flight completion, if any.
func (e *Engine) CancelSend(nodeID string) bool {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	cancel, ok := e.inflight[nodeID]
	if ok {
		cancel()
	}
	return ok
}

// Send runs one user turn on a chat node: append the user message,
// assemble the request (system prompt, inherited context, retrieved
// memory, live conversation), then stream the completion into the node's
// trailing assistant message. Chunks are cumulative snapshots; each one
// replaces the assistant content wholesale and is forwarded to fn.
//
// A second Send on the same node while one is streaming returns
// ErrSendInFlight. Deleting the node mid-stream cancels the completion
// and discards its output.
func (e *Engine) Send(ctx context.Context, nodeID, prompt string, fn llm.StreamFunc) error {
	node, ok := e.config.Graph.Node(nodeID)
	if !ok {
		return graph.ErrNotFound
	}
	if node.Kind != graph.NodeKindChat || node.Chat == nil {
		return ErrNotChatNode
	}

	e.sendMu.Lock()
	if _, busy := e.inflight[nodeID]; busy {
		e.sendMu.Unlock()
		return ErrSendInFlight
	}
	sendCtx, cancel := context.WithCancel(ctx)
	e.inflight[nodeID] = cancel
	e.sendMu.Unlock()

	defer func() {
		cancel()
		e.sendMu.Lock()
		delete(e.inflight, nodeID)
		e.sendMu.Unlock()
	}()

	if _, err := e.config.Graph.AppendMessage(nodeID, graph.RoleUser, prompt); err != nil {
		return err
	}

	messages, err := e.assembleRequest(sendCtx, nodeID, prompt)
	if err != nil {
		return err
	}

	model := node.Chat.ModelID
	if model == "" {
		model = e.config.DefaultModelID
	}

	// Placeholder the stream replaces chunk by chunk.
	if _, err := e.config.Graph.AppendMessage(nodeID, graph.RoleAssistant, ""); err != nil {
		return err
	}

	streamErr := e.config.Provider.StreamCompletion(sendCtx, &llm.ChatRequest{
		Model:    model,
		Messages: messages,
	}, func(chunk llm.StreamChunk) error {
		if err := e.config.Graph.ReplaceLastAssistant(nodeID, chunk.Content); err != nil {
			return err
		}
		if fn != nil {
			return fn(chunk)
		}
		return nil
	})

	if streamErr != nil {
		// A node deleted mid-stream cancels the context and removes the
		// message log with it; that is a discard, not a failure.
		if _, stillThere := e.config.Graph.Node(nodeID); !stillThere {
			e.logger.Info("completion discarded, node deleted mid-stream",
				zap.String("node_id", nodeID),
			)
			return nil
		}
		return fmt.Errorf("streaming completion for node %s: %w", nodeID, streamErr)
	}

	return nil
}

// assembleRequest builds the ordered message list for one completion:
// the node's system prompt, the inherited donor transcript, the retrieved
// memory block, then the node's own conversation.
func (e *Engine) assembleRequest(ctx context.Context, nodeID, prompt string) ([]llm.Message, error) {
	node, ok := e.config.Graph.Node(nodeID)
	if !ok {
		return nil, graph.ErrNotFound
	}

	var messages []llm.Message
	if node.Chat.SystemPrompt != "" {
		messages = append(messages, llm.Message{Role: graph.RoleSystem, Content: node.Chat.SystemPrompt})
	}

	messages = append(messages, propagate.BuildTranscript(e.config.Graph, nodeID)...)

	if e.config.Retrieval != nil {
		retrieved, err := e.config.Retrieval.Retrieve(ctx, nodeID, prompt)
		switch {
		case errors.Is(err, memindex.ErrDimensionMismatch):
			// Query and index in different vector spaces: surfacing beats
			// silently ranking noise.
			return nil, fmt.Errorf("retrieving memory for node %s: %w", nodeID, err)
		case err != nil:
			e.logger.Warn("memory retrieval failed, continuing without it",
				zap.String("node_id", nodeID),
				zap.Error(err),
			)
		case retrieved != nil:
			if msg, ok := retrieved.Message(); ok {
				messages = append(messages, msg)
			}
		}
	}

	for _, m := range node.Chat.Messages {
		if m.Role != graph.RoleUser && m.Role != graph.RoleAssistant {
			continue
		}
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	return messages, nil
}

// Ingest parses an uploaded document and ingests it into a memory node's
// index.
func (e *Engine) Ingest(ctx context.Context, nodeID, filename string, data []byte) (*ingest.Result, error) {
	node, ok := e.config.Graph.Node(nodeID)
	if !ok {
		return nil, graph.ErrNotFound
	}
	if node.Kind != graph.NodeKindMemory {
		return nil, ErrNotMemoryNode
	}

	p, err := e.config.Parsers.For(filename)
	if err != nil {
		return nil, err
	}

	chunks, err := p.Parse(filename, data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	return e.config.Pipeline.Ingest(ctx, nodeID, filename, chunks)
}

// Close shuts the engine down: pending saves flush, indexes close, and
// the provider and publisher release their connections.
func (e *Engine) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	e.sendMu.Lock()
	for _, cancel := range e.inflight {
		cancel()
	}
	e.sendMu.Unlock()

	if e.config.Sessions != nil {
		record(e.config.Sessions.Close())
	}
	if e.config.Registry != nil {
		record(e.config.Registry.Close())
	}
	if e.config.Provider != nil {
		record(e.config.Provider.Close())
	}
	if e.config.Publisher != nil {
		record(e.config.Publisher.Close())
	}
	return firstErr
}
