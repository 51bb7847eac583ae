package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/weave/pkg/kvstore"
)

// Driver implements kvstore.Driver using an in-memory map. Contents are
// lost on shutdown; it is the default for tests and throwaway runs.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of records
	mu sync.RWMutex

	// records is the in memory map of session records keyed by session id
	records map[string]kvstore.Record
}

// NewDriver creates a new in-memory session store.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]kvstore.Record),
	}
}

// Put upserts a record by id.
func (s *Driver) Put(_ context.Context, rec kvstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

// Get retrieves a record by its id.
func (s *Driver) Get(_ context.Context, id string) (kvstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return kvstore.Record{}, kvstore.NotFoundError{ID: id}
	}

	return cloneRecord(rec), nil
}

// List returns all records, most recently updated first.
func (s *Driver) List(_ context.Context) ([]kvstore.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]kvstore.Record, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, cloneRecord(rec))
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})

	return records, nil
}

// Delete removes a record by id.
func (s *Driver) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return kvstore.NotFoundError{ID: id}
	}

	delete(s.records, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Driver) Close() error {
	return nil
}

func cloneRecord(rec kvstore.Record) kvstore.Record {
	out := rec
	if rec.Data != nil {
		out.Data = make([]byte, len(rec.Data))
		copy(out.Data, rec.Data)
	}
	return out
}
