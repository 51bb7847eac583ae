package graph

// EdgeKind discriminates how an edge is interpreted at send time.
type EdgeKind string

const (
	// EdgeKindContext propagates conversation history between two chat nodes.
	EdgeKindContext EdgeKind = "context"

	// EdgeKindRag attaches a memory node's index to a chat node for retrieval.
	EdgeKindRag EdgeKind = "rag"
)

// Edge is a directed, typed connection between two nodes.
type Edge struct {
	ID     string   `json:"id"`
	Source string   `json:"source"`
	Target string   `json:"target"`
	Kind   EdgeKind `json:"kind"`
}

// InferEdgeKind returns the edge kind implied by the endpoint kinds:
// Rag iff the edge runs from a memory node into a chat node, Context
// for every other combination.
func InferEdgeKind(source, target NodeKind) EdgeKind {
	if source == NodeKindMemory && target == NodeKindChat {
		return EdgeKindRag
	}
	return EdgeKindContext
}
