package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/weave/pkg/graph"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// eventTypePrefix namespaces canvas events on the stream.
	eventTypePrefix = "weave."
)

// Event type constants for the canvas change stream. Structural graph
// changes and session saves are published; cosmetic changes (moves,
// viewport pans) are not.
const (
	EventTypeNodeAdded       = "weave.node.added"
	EventTypeNodeDeleted     = "weave.node.deleted"
	EventTypeEdgeAdded       = "weave.edge.added"
	EventTypeEdgeDeleted     = "weave.edge.deleted"
	EventTypeMessageAppended = "weave.message.appended"
	EventTypeSessionSaved    = "weave.session.saved"
)

// CanvasEvent is a transport-neutral event payload for a canvas change.
type CanvasEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	SessionID     string    `json:"session_id,omitempty"`
	NodeID        string    `json:"node_id,omitempty"`
	EdgeID        string    `json:"edge_id,omitempty"`
}

// FromGraphEvent converts a graph store event into a stream payload.
func FromGraphEvent(e graph.Event, sessionID string) *CanvasEvent {
	return &CanvasEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventTypePrefix + string(e.Type),
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		SessionID:     sessionID,
		NodeID:        e.NodeID,
		EdgeID:        e.EdgeID,
	}
}

// SessionSaved builds the event emitted after a session snapshot is
// persisted.
func SessionSaved(sessionID string) *CanvasEvent {
	return &CanvasEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeSessionSaved,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		SessionID:     sessionID,
	}
}
