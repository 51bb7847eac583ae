package canvas

import "errors"

var (
	// ErrSendInFlight is returned when a chat node already has a streaming
	// completion running. One completion per node at a time; the caller
	// waits or cancels rather than interleaving streams.
	ErrSendInFlight = errors.New("send already in flight for node")

	// ErrNotChatNode is returned when a chat-only operation targets a
	// non-chat node.
	ErrNotChatNode = errors.New("node is not a chat node")

	// ErrNotMemoryNode is returned when a memory-only operation targets a
	// non-memory node.
	ErrNotMemoryNode = errors.New("node is not a memory node")
)
