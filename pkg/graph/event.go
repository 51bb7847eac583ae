package graph

// EventType names a single applied mutation.
type EventType string

const (
	EventNodeAdded       EventType = "node.added"
	EventNodeDeleted     EventType = "node.deleted"
	EventNodeMoved       EventType = "node.moved"
	EventNodeUpdated     EventType = "node.updated"
	EventEdgeAdded       EventType = "edge.added"
	EventEdgeDeleted     EventType = "edge.deleted"
	EventMessageAppended EventType = "message.appended"
	EventViewportChanged EventType = "viewport.changed"
)

// Event describes one mutation applied to the store. Structural events
// (node/edge add and delete) trigger an immediate session save; the rest
// are cosmetic or content edits and are debounced.
type Event struct {
	Type   EventType
	NodeID string
	EdgeID string
}

// Structural reports whether the event changes graph topology.
func (e Event) Structural() bool {
	switch e.Type {
	case EventNodeAdded, EventNodeDeleted, EventEdgeAdded, EventEdgeDeleted:
		return true
	default:
		return false
	}
}

// Listener receives mutation events. Called synchronously while the store's
// lock is released, after the mutation has been applied.
type Listener func(Event)
