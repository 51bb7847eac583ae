// Package kvstore
package kvstore

import (
	"context"
	"time"
)

// Record is one persisted session: an opaque serialized snapshot plus the
// metadata shown in session listings.
type Record struct {
	// ID is the session's unique identifier.
	ID string `json:"id"`

	// Name is the human-readable session name.
	Name string `json:"name"`

	// Data is the serialized session snapshot. Drivers never interpret it.
	Data []byte `json:"data"`

	// CreatedAt is when the session was first persisted.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the session was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// Driver defines the interface for persisting and retrieving session
// records in a storage backend.
type Driver interface {
	// Put upserts a record by id.
	Put(ctx context.Context, rec Record) error

	// Get retrieves a record by its id.
	Get(ctx context.Context, id string) (Record, error)

	// List returns all records, most recently updated first. Data payloads
	// are included; callers that only need metadata ignore them.
	List(ctx context.Context) ([]Record, error)

	// Delete removes a record by id. Deleting an unknown id returns
	// NotFoundError.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}
