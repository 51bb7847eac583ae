// Package session keeps the live canvas and its persisted record in sync.
//
// A session is created lazily: the orchestrator starts with no session at
// all and creates one on the first graph mutation. Structural changes
// (node and edge adds and deletes) persist immediately; everything else
// (typing, moves, pans) is debounced so rapid edits collapse into one
// write. Loading swaps the canvas wholesale, and every save that was
// scheduled before the swap is discarded rather than written into the
// newly loaded session.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/weave/pkg/eventstream"
	"github.com/papercomputeco/weave/pkg/graph"
	"github.com/papercomputeco/weave/pkg/kvstore"
)

// State is the orchestrator's lifecycle phase.
type State string

const (
	// StateNoSession means no session exists yet; the canvas is scratch
	// space until the first mutation.
	StateNoSession State = "no_session"

	// StateCreating means the first mutation arrived and the session
	// record is being established.
	StateCreating State = "creating"

	// StateActive means a session exists and saves flow normally.
	StateActive State = "active"

	// StateLoading means a stored session is being restored; all saves
	// are suppressed until the restore completes.
	StateLoading State = "loading"
)

const (
	// DefaultDebounce is the quiet period collapsing rapid content edits
	// into a single save.
	DefaultDebounce = 800 * time.Millisecond

	// DefaultPeriodicSave bounds how stale a dirty session can get even
	// under continuous debounce resets.
	DefaultPeriodicSave = 30 * time.Second
)

// Config holds the orchestrator's collaborators.
type Config struct {
	// Store is the session persistence driver.
	Store kvstore.Driver

	// Graph is the live canvas the orchestrator snapshots and restores.
	Graph *graph.Store

	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	// PeriodicSave overrides DefaultPeriodicSave when positive; negative
	// disables the periodic saver.
	PeriodicSave time.Duration

	// Publisher receives session.saved events. Nil disables publishing.
	Publisher eventstream.Publisher

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Orchestrator owns the session lifecycle. It is the graph store's event
// listener: wire it with graph.SetListener(o.HandleGraphEvent).
type Orchestrator struct {
	store     kvstore.Driver
	graph     *graph.Store
	publisher eventstream.Publisher
	logger    *zap.Logger
	debounce  time.Duration

	// mu serializes every state transition and every load/save. Holding
	// it across store IO is what makes load and save mutually exclusive.
	mu        sync.Mutex
	state     State
	sessionID string
	name      string
	createdAt time.Time
	dirty     bool
	timer     *time.Timer
	closed    bool

	stopPeriodic chan struct{}
	periodicDone chan struct{}
}

// NewOrchestrator creates a session orchestrator in the no-session state
// and starts its periodic saver.
func NewOrchestrator(c Config) *Orchestrator {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	debounce := c.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	periodic := c.PeriodicSave
	if periodic == 0 {
		periodic = DefaultPeriodicSave
	}

	o := &Orchestrator{
		store:     c.Store,
		graph:     c.Graph,
		publisher: c.Publisher,
		logger:    logger,
		debounce:  debounce,
		state:     StateNoSession,
	}

	if periodic > 0 {
		o.stopPeriodic = make(chan struct{})
		o.periodicDone = make(chan struct{})
		go o.runPeriodic(periodic)
	}

	return o
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SessionID returns the active session's id, or "" before lazy creation.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// HandleGraphEvent reacts to one canvas mutation. The first mutation
// creates the session; structural mutations save immediately, the rest
// arm the debounce timer. Events arriving while a load is in flight are
// dropped: they describe the outgoing canvas, not the loaded one.
func (o *Orchestrator) HandleGraphEvent(e graph.Event) {
	o.mu.Lock()

	if o.closed || o.state == StateLoading {
		o.mu.Unlock()
		return
	}

	if o.state == StateNoSession {
		o.state = StateCreating
		o.sessionID = uuid.NewString()
		o.name = time.Now().Format("Session 2006-01-02 15:04")
		o.createdAt = time.Now().UTC()
		o.logger.Info("session created",
			zap.String("session_id", o.sessionID),
			zap.String("name", o.name),
		)
		o.state = StateActive
	}

	o.dirty = true

	if e.Structural() {
		o.saveLocked(context.Background())
		o.mu.Unlock()
		return
	}

	o.armTimerLocked()
	o.mu.Unlock()
}

// Flush forces any pending debounced save to disk now.
func (o *Orchestrator) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.state != StateActive || !o.dirty {
		return nil
	}
	o.stopTimerLocked()
	return o.saveLocked(ctx)
}

// Save persists the current canvas immediately, regardless of dirtiness.
func (o *Orchestrator) Save(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.state != StateActive {
		return ErrNoActiveSession
	}
	o.stopTimerLocked()
	return o.saveLocked(ctx)
}

// Load restores a stored session onto the canvas. Any pending save for
// the outgoing session is discarded first, and saves stay suppressed
// until the restore completes.
func (o *Orchestrator) Load(ctx context.Context, id string) (*Document, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, ErrClosed
	}

	o.stopTimerLocked()
	o.state = StateLoading
	o.dirty = false

	rec, err := o.store.Get(ctx, id)
	if err != nil {
		o.state = o.stateAfterLoadFailure()
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	doc, err := DecodeDocument(rec.Data)
	if err != nil {
		o.state = o.stateAfterLoadFailure()
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	o.graph.Restore(doc.Canvas)

	o.sessionID = doc.ID
	o.name = doc.Name
	o.createdAt = doc.CreatedAt
	o.state = StateActive

	o.logger.Info("session loaded",
		zap.String("session_id", doc.ID),
		zap.String("name", doc.Name),
		zap.Int("nodes", len(doc.Canvas.Nodes)),
	)
	return doc, nil
}

// New abandons the current session (flushing it first) and starts fresh
// with an empty canvas and no session record until the next mutation.
func (o *Orchestrator) New(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}

	if o.state == StateActive && o.dirty {
		o.stopTimerLocked()
		if err := o.saveLocked(ctx); err != nil {
			return err
		}
	}

	o.graph.Restore(graph.Snapshot{})
	o.sessionID = ""
	o.name = ""
	o.dirty = false
	o.state = StateNoSession
	return nil
}

// Rename changes the active session's name and persists it.
func (o *Orchestrator) Rename(ctx context.Context, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.state != StateActive {
		return ErrNoActiveSession
	}
	o.name = name
	return o.saveLocked(ctx)
}

// List returns stored session metadata, most recently updated first.
func (o *Orchestrator) List(ctx context.Context) ([]kvstore.Record, error) {
	records, err := o.store.List(ctx)
	if err != nil {
		return nil, err
	}
	// Callers listing sessions want metadata, not megabytes of canvas.
	for i := range records {
		records[i].Data = nil
	}
	return records, nil
}

// Delete removes a stored session. Deleting the active session leaves the
// canvas intact but detaches it, so the next mutation starts a new record.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.Delete(ctx, id); err != nil {
		return err
	}
	if o.sessionID == id {
		o.stopTimerLocked()
		o.sessionID = ""
		o.name = ""
		o.dirty = false
		o.state = StateNoSession
	}
	return nil
}

// Export returns a stored session's document, self-contained for
// round-tripping through Import.
func (o *Orchestrator) Export(ctx context.Context, id string) ([]byte, error) {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Data, nil
}

// Import stores an exported document under a fresh id, so importing never
// clobbers an existing session. The imported session is not activated.
func (o *Orchestrator) Import(ctx context.Context, data []byte) (*Document, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("importing session: %w", err)
	}

	doc.ID = uuid.NewString()
	doc.UpdatedAt = time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}

	encoded, err := doc.Encode()
	if err != nil {
		return nil, err
	}

	if err := o.store.Put(ctx, kvstore.Record{
		ID:        doc.ID,
		Name:      doc.Name,
		Data:      encoded,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}); err != nil {
		return nil, fmt.Errorf("importing session: %w", err)
	}

	o.logger.Info("session imported",
		zap.String("session_id", doc.ID),
		zap.String("name", doc.Name),
	)
	return doc, nil
}

// Close flushes any pending save and stops the periodic saver.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.stopTimerLocked()

	var err error
	if o.state == StateActive && o.dirty {
		err = o.saveLocked(context.Background())
	}
	o.mu.Unlock()

	if o.stopPeriodic != nil {
		close(o.stopPeriodic)
		<-o.periodicDone
	}
	return err
}

// armTimerLocked schedules (or reschedules) the debounced save.
func (o *Orchestrator) armTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
	}
	id := o.sessionID
	o.timer = time.AfterFunc(o.debounce, func() {
		o.debouncedSave(id)
	})
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// debouncedSave runs when the quiet period elapses. The session id was
// captured when the timer was armed; if a load or reset swapped the
// session since, the stale save is dropped instead of written into the
// wrong record.
func (o *Orchestrator) debouncedSave(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.state != StateActive || o.sessionID != id || !o.dirty {
		return
	}
	if err := o.saveLocked(context.Background()); err != nil {
		o.logger.Error("debounced save failed",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}
}

// saveLocked snapshots the canvas and writes the session record. Callers
// hold o.mu.
func (o *Orchestrator) saveLocked(ctx context.Context) error {
	now := time.Now().UTC()
	doc := Document{
		ID:        o.sessionID,
		Name:      o.name,
		CreatedAt: o.createdAt,
		UpdatedAt: now,
		Canvas:    o.graph.Snapshot(),
	}

	data, err := doc.Encode()
	if err != nil {
		return err
	}

	if err := o.store.Put(ctx, kvstore.Record{
		ID:        doc.ID,
		Name:      doc.Name,
		Data:      data,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("saving session %s: %w", doc.ID, err)
	}

	o.dirty = false
	o.logger.Debug("session saved", zap.String("session_id", doc.ID))

	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, eventstream.SessionSaved(doc.ID)); err != nil {
			// The save succeeded; a stream hiccup is not a save failure.
			o.logger.Warn("publishing session.saved failed", zap.Error(err))
		}
	}
	return nil
}

// stateAfterLoadFailure decides where a failed load lands: back in active
// if a session was live before, otherwise no-session.
func (o *Orchestrator) stateAfterLoadFailure() State {
	if o.sessionID != "" {
		return StateActive
	}
	return StateNoSession
}

func (o *Orchestrator) runPeriodic(every time.Duration) {
	defer close(o.periodicDone)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopPeriodic:
			return
		case <-ticker.C:
			o.mu.Lock()
			if !o.closed && o.state == StateActive && o.dirty {
				if err := o.saveLocked(context.Background()); err != nil {
					o.logger.Error("periodic save failed", zap.Error(err))
				}
			}
			o.mu.Unlock()
		}
	}
}
