package graph

// Snapshot is a full copy of canvas state suitable for persistence and
// export. It is a plain value: mutating a snapshot never touches the store.
type Snapshot struct {
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
	Viewport Viewport `json:"viewport"`
}

// Snapshot captures the full graph state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Nodes:    make([]Node, 0, len(s.order)),
		Edges:    make([]Edge, len(s.edges)),
		Viewport: s.viewport,
	}
	for _, id := range s.order {
		if n, ok := s.nodes[id]; ok {
			snap.Nodes = append(snap.Nodes, n.clone())
		}
	}
	for i, e := range s.edges {
		snap.Edges[i] = *e
	}
	return snap
}

// Restore replaces the live state with the snapshot's contents and runs
// the reconciliation pass over the restored edges. No mutation events are
// emitted: a restore is not an edit, and the session orchestrator
// suppresses saves while one is in progress anyway.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*Node, len(snap.Nodes))
	s.order = s.order[:0]
	for i := range snap.Nodes {
		n := snap.Nodes[i].clone()
		s.nodes[n.ID] = &n
		s.order = append(s.order, n.ID)
	}

	s.edges = make([]*Edge, 0, len(snap.Edges))
	for i := range snap.Edges {
		e := snap.Edges[i]
		s.edges = append(s.edges, &e)
	}
	s.viewport = snap.Viewport

	s.reconcileLocked()
}
