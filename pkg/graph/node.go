// Package graph holds the canonical model for the weave canvas: nodes,
// typed edges, and the owned store that applies every mutation atomically.
//
// Two node kinds exist. Chat nodes carry an ordered conversation and the
// provider/model used to extend it. Memory nodes own a similarity index
// built from uploaded documents and record the embedding provider/model
// in effect when their chunks were last embedded.
//
// Relationships that earlier designs cached on the node (the set of memory
// nodes attached to a chat node) are never stored here. They are derived on
// demand from the edge list; see Store.Attachments.
package graph

import "time"

// NodeKind discriminates the payload carried by a Node.
type NodeKind string

const (
	// NodeKindChat is a conversation node.
	NodeKindChat NodeKind = "chat"

	// NodeKindMemory is a document-memory node backing retrieval.
	NodeKindMemory NodeKind = "memory"
)

// Position is a node's canvas position. Layout is opaque to the engine.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a node's rendered size on the canvas.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport is the canvas pan/zoom state.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Message roles. Messages only ever carry one of these three.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a chat node's conversation. Messages are
// immutable once appended, except the trailing assistant message while a
// completion is streaming (its content is replaced wholesale per chunk).
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatPayload is the payload of a chat node.
type ChatPayload struct {
	Title        string    `json:"title"`
	ProviderID   string    `json:"provider_id,omitempty"`
	ModelID      string    `json:"model_id,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
}

// MemoryPayload is the payload of a memory node. The embedding fields
// record the provider/model used when the node's chunks were last embedded
// and are consulted later to detect query/index vector-space mismatch.
type MemoryPayload struct {
	Title               string `json:"title"`
	ChunkCount          int    `json:"chunk_count"`
	DocumentCount       int    `json:"document_count"`
	EmbeddingProviderID string `json:"embedding_provider_id,omitempty"`
	EmbeddingModelID    string `json:"embedding_model_id,omitempty"`
}

// Node is a single canvas node. Exactly one of Chat or Memory is set,
// matching Kind.
type Node struct {
	ID       string         `json:"id"`
	Kind     NodeKind       `json:"kind"`
	Position Position       `json:"position"`
	Size     Size           `json:"size"`
	Chat     *ChatPayload   `json:"chat,omitempty"`
	Memory   *MemoryPayload `json:"memory,omitempty"`
}

// clone returns a deep copy so callers never share interior pointers with
// the store.
func (n *Node) clone() Node {
	out := *n
	if n.Chat != nil {
		chat := *n.Chat
		chat.Messages = make([]Message, len(n.Chat.Messages))
		copy(chat.Messages, n.Chat.Messages)
		out.Chat = &chat
	}
	if n.Memory != nil {
		mem := *n.Memory
		out.Memory = &mem
	}
	return out
}
