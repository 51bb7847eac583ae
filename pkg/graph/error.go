package graph

import "errors"

var (
	// ErrNotFound is returned when a referenced node or edge does not exist.
	// Callers racing against deletion treat this as a no-op, not a crash.
	ErrNotFound = errors.New("graph: not found")

	// ErrKindMismatch is returned when an operation targets a node of the
	// wrong kind (e.g. appending a message to a memory node).
	ErrKindMismatch = errors.New("graph: node kind mismatch")

	// ErrDuplicateEdge is returned when an edge with the same source and
	// target already exists.
	ErrDuplicateEdge = errors.New("graph: duplicate edge")

	// ErrCycle is returned when adding a context edge would close a cycle
	// of two or more chat nodes.
	ErrCycle = errors.New("graph: context edge would create a cycle")
)
