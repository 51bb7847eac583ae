package graph

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the owned, single source of truth for canvas state. Every
// mutation is a named method applied atomically under one lock; no two
// mutations interleave mid-update. Readers receive deep copies.
type Store struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	order    []string
	edges    []*Edge
	viewport Viewport
	listener Listener
	logger   *zap.Logger
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		nodes:  make(map[string]*Node),
		logger: logger,
	}
}

// SetListener registers the mutation listener. Events are delivered
// synchronously after each mutation, outside the store's lock.
func (s *Store) SetListener(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

func (s *Store) emit(events ...Event) {
	s.mu.RLock()
	fn := s.listener
	s.mu.RUnlock()
	if fn == nil {
		return
	}
	for _, ev := range events {
		fn(ev)
	}
}

// AddNode inserts a node. A missing ID is generated. The payload matching
// the node's kind is created empty when absent, so callers may add bare
// nodes and fill them in afterwards.
func (s *Store) AddNode(n Node) (Node, error) {
	if n.Kind != NodeKindChat && n.Kind != NodeKindMemory {
		return Node{}, ErrKindMismatch
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	switch n.Kind {
	case NodeKindChat:
		if n.Chat == nil {
			n.Chat = &ChatPayload{}
		}
		n.Memory = nil
	case NodeKindMemory:
		if n.Memory == nil {
			n.Memory = &MemoryPayload{}
		}
		n.Chat = nil
	}

	s.mu.Lock()
	stored := n.clone()
	s.nodes[n.ID] = &stored
	s.order = append(s.order, n.ID)
	s.mu.Unlock()

	s.logger.Debug("node added",
		zap.String("node_id", n.ID),
		zap.String("kind", string(n.Kind)),
	)
	s.emit(Event{Type: EventNodeAdded, NodeID: n.ID})
	return n, nil
}

// DeleteNode removes a node and every edge touching it.
func (s *Store) DeleteNode(id string) error {
	s.mu.Lock()
	if _, ok := s.nodes[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.nodes, id)
	for i, nid := range s.order {
		if nid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	var events []Event
	kept := s.edges[:0]
	for _, e := range s.edges {
		if e.Source == id || e.Target == id {
			events = append(events, Event{Type: EventEdgeDeleted, EdgeID: e.ID})
			continue
		}
		kept = append(kept, e)
	}
	s.edges = kept
	s.mu.Unlock()

	events = append(events, Event{Type: EventNodeDeleted, NodeID: id})
	s.logger.Debug("node deleted",
		zap.String("node_id", id),
		zap.Int("cascaded_edges", len(events)-1),
	)
	s.emit(events...)
	return nil
}

// MoveNode updates a node's canvas position.
func (s *Store) MoveNode(id string, pos Position) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	n.Position = pos
	s.mu.Unlock()

	s.emit(Event{Type: EventNodeMoved, NodeID: id})
	return nil
}

// ResizeNode updates a node's canvas size.
func (s *Store) ResizeNode(id string, size Size) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	n.Size = size
	s.mu.Unlock()

	s.emit(Event{Type: EventNodeMoved, NodeID: id})
	return nil
}

// SetTitle updates the title of either node kind.
func (s *Store) SetTitle(id, title string) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	switch {
	case n.Chat != nil:
		n.Chat.Title = title
	case n.Memory != nil:
		n.Memory.Title = title
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventNodeUpdated, NodeID: id})
	return nil
}

// SetSystemPrompt updates a chat node's system prompt.
func (s *Store) SetSystemPrompt(id, prompt string) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if n.Chat == nil {
		s.mu.Unlock()
		return ErrKindMismatch
	}
	n.Chat.SystemPrompt = prompt
	s.mu.Unlock()

	s.emit(Event{Type: EventNodeUpdated, NodeID: id})
	return nil
}

// SetChatModel updates the provider/model a chat node sends with.
func (s *Store) SetChatModel(id, providerID, modelID string) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if n.Chat == nil {
		s.mu.Unlock()
		return ErrKindMismatch
	}
	n.Chat.ProviderID = providerID
	n.Chat.ModelID = modelID
	s.mu.Unlock()

	s.emit(Event{Type: EventNodeUpdated, NodeID: id})
	return nil
}

// AppendMessage appends a message to a chat node's conversation and
// returns the stored message with its timestamp filled in.
func (s *Store) AppendMessage(id, role, content string) (Message, error) {
	msg := Message{Role: role, Content: content, Timestamp: time.Now()}

	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return Message{}, ErrNotFound
	}
	if n.Chat == nil {
		s.mu.Unlock()
		return Message{}, ErrKindMismatch
	}
	n.Chat.Messages = append(n.Chat.Messages, msg)
	s.mu.Unlock()

	s.emit(Event{Type: EventMessageAppended, NodeID: id})
	return msg, nil
}

// ReplaceLastAssistant replaces the content of the trailing assistant
// message, appending one if the conversation does not end with an
// assistant message yet. Streaming providers send cumulative content
// snapshots, so each chunk replaces rather than extends the stored text.
func (s *Store) ReplaceLastAssistant(id, content string) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if n.Chat == nil {
		s.mu.Unlock()
		return ErrKindMismatch
	}
	msgs := n.Chat.Messages
	if len(msgs) > 0 && msgs[len(msgs)-1].Role == RoleAssistant {
		msgs[len(msgs)-1].Content = content
	} else {
		n.Chat.Messages = append(msgs, Message{
			Role:      RoleAssistant,
			Content:   content,
			Timestamp: time.Now(),
		})
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventMessageAppended, NodeID: id})
	return nil
}

// SetMemoryEmbedding records the embedding provider/model a memory node's
// chunks were last embedded with.
func (s *Store) SetMemoryEmbedding(id, providerID, modelID string) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if n.Memory == nil {
		s.mu.Unlock()
		return ErrKindMismatch
	}
	n.Memory.EmbeddingProviderID = providerID
	n.Memory.EmbeddingModelID = modelID
	s.mu.Unlock()

	s.emit(Event{Type: EventNodeUpdated, NodeID: id})
	return nil
}

// AddMemoryCounts adjusts a memory node's chunk and document counters.
func (s *Store) AddMemoryCounts(id string, chunkDelta, docDelta int) error {
	s.mu.Lock()
	n, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	if n.Memory == nil {
		s.mu.Unlock()
		return ErrKindMismatch
	}
	n.Memory.ChunkCount += chunkDelta
	n.Memory.DocumentCount += docDelta
	s.mu.Unlock()

	s.emit(Event{Type: EventNodeUpdated, NodeID: id})
	return nil
}

// SetViewport updates the canvas pan/zoom state.
func (s *Store) SetViewport(v Viewport) {
	s.mu.Lock()
	s.viewport = v
	s.mu.Unlock()

	s.emit(Event{Type: EventViewportChanged})
}

// AddEdge connects source to target. The edge kind is inferred from the
// endpoint kinds, never supplied by the caller. A context edge that would
// close a cycle of two or more nodes is rejected; self-loops are allowed
// by the model but carry no semantic effect (a node is never its own
// donor).
func (s *Store) AddEdge(source, target string) (Edge, error) {
	s.mu.Lock()
	src, ok := s.nodes[source]
	if !ok {
		s.mu.Unlock()
		return Edge{}, ErrNotFound
	}
	tgt, ok := s.nodes[target]
	if !ok {
		s.mu.Unlock()
		return Edge{}, ErrNotFound
	}
	for _, e := range s.edges {
		if e.Source == source && e.Target == target {
			s.mu.Unlock()
			return Edge{}, ErrDuplicateEdge
		}
	}

	kind := InferEdgeKind(src.Kind, tgt.Kind)
	if kind == EdgeKindContext && source != target && s.contextReachable(target, source) {
		s.mu.Unlock()
		return Edge{}, ErrCycle
	}

	edge := &Edge{
		ID:     uuid.NewString(),
		Source: source,
		Target: target,
		Kind:   kind,
	}
	s.edges = append(s.edges, edge)
	out := *edge
	s.mu.Unlock()

	s.logger.Debug("edge added",
		zap.String("edge_id", out.ID),
		zap.String("source", source),
		zap.String("target", target),
		zap.String("kind", string(out.Kind)),
	)
	s.emit(Event{Type: EventEdgeAdded, EdgeID: out.ID})
	return out, nil
}

// contextReachable reports whether `to` is reachable from `from` by
// following context edges. Caller holds the lock.
func (s *Store) contextReachable(from, to string) bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == to {
			return true
		}
		for _, e := range s.edges {
			if e.Kind != EdgeKindContext || e.Source != cur {
				continue
			}
			if !seen[e.Target] {
				seen[e.Target] = true
				stack = append(stack, e.Target)
			}
		}
	}
	return false
}

// DeleteEdge removes an edge by id.
func (s *Store) DeleteEdge(id string) error {
	s.mu.Lock()
	found := false
	for i, e := range s.edges {
		if e.ID == id {
			s.edges = append(s.edges[:i], s.edges[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return ErrNotFound
	}
	s.emit(Event{Type: EventEdgeDeleted, EdgeID: id})
	return nil
}

// Node returns a deep copy of the node with the given id.
func (s *Store) Node(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Nodes returns deep copies of all nodes in insertion order.
func (s *Store) Nodes() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.order))
	for _, id := range s.order {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n.clone())
		}
	}
	return out
}

// Edges returns copies of all edges in insertion order.
func (s *Store) Edges() []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Edge, len(s.edges))
	for i, e := range s.edges {
		out[i] = *e
	}
	return out
}

// EdgesInto returns edges of the given kind targeting a node, in edge
// insertion order. Insertion order is the ordering contract for both donor
// transcripts and attachment sets.
func (s *Store) EdgesInto(target string, kind EdgeKind) []Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Edge
	for _, e := range s.edges {
		if e.Target == target && e.Kind == kind {
			out = append(out, *e)
		}
	}
	return out
}

// Attachments derives the set of memory node ids feeding retrieval for a
// chat node: the sources of its incoming rag edges, in edge insertion
// order. This is computed from the edge list on every call and never
// cached, so it cannot drift from the graph.
func (s *Store) Attachments(chatID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, e := range s.edges {
		if e.Target == chatID && e.Kind == EdgeKindRag {
			out = append(out, e.Source)
		}
	}
	return out
}

// Viewport returns the current canvas viewport.
func (s *Store) Viewport() Viewport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewport
}

// Reconcile repairs the edge list in place: edges referencing a missing
// endpoint are dropped, and edges whose stored kind is absent or Context
// while their endpoints match the memory-to-chat pattern are re-classified
// as Rag. Data written before kind inference existed, or written through a
// path that bypassed it, is healed here on load. Returns the number of
// edges repaired or dropped.
func (s *Store) Reconcile() int {
	s.mu.Lock()
	changed := s.reconcileLocked()
	s.mu.Unlock()
	return changed
}

func (s *Store) reconcileLocked() int {
	changed := 0
	kept := s.edges[:0]
	for _, e := range s.edges {
		src, srcOK := s.nodes[e.Source]
		tgt, tgtOK := s.nodes[e.Target]
		if !srcOK || !tgtOK {
			s.logger.Warn("dropping dangling edge",
				zap.String("edge_id", e.ID),
				zap.String("source", e.Source),
				zap.String("target", e.Target),
			)
			changed++
			continue
		}
		if want := InferEdgeKind(src.Kind, tgt.Kind); e.Kind != want {
			s.logger.Info("re-classified edge",
				zap.String("edge_id", e.ID),
				zap.String("from", string(e.Kind)),
				zap.String("to", string(want)),
			)
			e.Kind = want
			changed++
		}
		kept = append(kept, e)
	}
	s.edges = kept
	return changed
}
