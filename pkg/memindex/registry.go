package memindex

import (
	"sync"

	"go.uber.org/zap"
)

// Factory creates the index for a memory node. Drivers decide where the
// node's data lives (an in-memory map, a per-node database file, ...).
type Factory func(nodeID string) (Index, error)

// Registry owns the index lifecycle per memory node: created lazily on
// first upload, dropped when the node is deleted. It also hands out the
// per-node lock that serializes concurrent uploads into the same index,
// so racing ingestions cannot lose chunks.
type Registry struct {
	mu      sync.Mutex
	indexes map[string]Index
	locks   map[string]*sync.Mutex
	factory Factory
	logger  *zap.Logger
}

// NewRegistry creates a registry backed by the given factory.
func NewRegistry(factory Factory, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		indexes: make(map[string]Index),
		locks:   make(map[string]*sync.Mutex),
		factory: factory,
		logger:  logger,
	}
}

// Get returns the node's index if it exists.
func (r *Registry) Get(nodeID string) (Index, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.indexes[nodeID]
	return idx, ok
}

// GetOrCreate returns the node's index, creating it on first use.
func (r *Registry) GetOrCreate(nodeID string) (Index, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.indexes[nodeID]; ok {
		return idx, nil
	}
	idx, err := r.factory(nodeID)
	if err != nil {
		return nil, err
	}
	r.indexes[nodeID] = idx
	r.logger.Debug("memory index created", zap.String("node_id", nodeID))
	return idx, nil
}

// IngestLock returns the mutex serializing uploads into one node's index.
func (r *Registry) IngestLock(nodeID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[nodeID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[nodeID] = l
	}
	return l
}

// Drop closes and removes the node's index. Dropping an unknown node is a
// no-op: the node may have been deleted before its first upload.
func (r *Registry) Drop(nodeID string) error {
	r.mu.Lock()
	idx, ok := r.indexes[nodeID]
	delete(r.indexes, nodeID)
	delete(r.locks, nodeID)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	r.logger.Debug("memory index dropped", zap.String("node_id", nodeID))
	return idx.Close()
}

// Close closes every index in the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for id, idx := range r.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.indexes, id)
	}
	return firstErr
}
