// Package editor implements the aggregate workflow store behind the canvas:
// the open graph with its dirty/version bookkeeping, the viewport, the
// caller's scopes and the derived UI flags.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/petrijr/flowcanvas/internal/persistence"
	"github.com/petrijr/flowcanvas/pkg/api"
	"github.com/petrijr/flowcanvas/pkg/eventbus"
)

// DefaultUndoLimit is the number of graph snapshots kept for undo.
const DefaultUndoLimit = 40

const stateEvent = "state"

// Options configures a Store. The zero value is usable.
type Options struct {
	// Bounds limits the viewport zoom. Invalid bounds fall back to
	// api.DefaultZoomBounds.
	Bounds api.ZoomBounds

	// Resolver computes the workflow permissions from the current scopes.
	// The zero value resolves api.CRUDActions for api.ResourceWorkflow.
	Resolver api.PermissionResolver

	// Flags is read through for StoreState.AuditLogsEnabled.
	Flags api.FeatureFlags

	// State persists the viewport per workflow. Nil disables it.
	State persistence.StateStore

	Observer api.Observer
	Logger   *slog.Logger

	// UndoLimit bounds the undo history. 0 means DefaultUndoLimit and a
	// negative value disables undo.
	UndoLimit int
}

// Store is the editor's WorkflowState. It is safe for concurrent use; every
// change is applied under a lock and subscribers are notified after the lock
// is released, so they may call back into the store. Subscribers see the
// snapshots in the order the changes were applied; a snapshot overtaken by a
// newer one before it was dispatched is skipped.
type Store struct {
	mu         sync.Mutex
	graph      *api.Graph
	dirty      bool
	version    uint64
	generation uint64
	viewport   api.Viewport
	scopes     []string
	undo       []*api.Graph
	redo       []*api.Graph

	bounds    api.ZoomBounds
	resolver  api.PermissionResolver
	flags     api.FeatureFlags
	state     persistence.StateStore
	observer  api.Observer
	logger    *slog.Logger
	undoLimit int
	listeners *eventbus.Bus[api.StoreState]

	// seq numbers the snapshots handed to notify, in the order the changes
	// were applied under mu.
	seq uint64

	dispatchMu  sync.Mutex
	dispatching bool
	queuedSeq   uint64
	pending     []pendingState
}

type pendingState struct {
	ctx context.Context
	st  api.StoreState
}

var _ api.WorkflowState = (*Store)(nil)

// New creates an unloaded Store.
func New(opts Options) *Store {
	bounds := opts.Bounds
	if !bounds.Valid() {
		bounds = api.DefaultZoomBounds()
	}
	resolver := opts.Resolver
	if resolver.Resource == "" {
		resolver.Resource = api.ResourceWorkflow
	}
	observer := opts.Observer
	if observer == nil {
		observer = api.NoopObserver{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.UndoLimit
	if limit == 0 {
		limit = DefaultUndoLimit
	}

	return &Store{
		viewport:  api.DefaultViewport(),
		bounds:    bounds,
		resolver:  resolver,
		flags:     opts.Flags,
		state:     opts.State,
		observer:  observer,
		logger:    logger,
		undoLimit: limit,
		listeners: eventbus.New[api.StoreState](),
	}
}

// Bounds returns the zoom bounds the store clamps into.
func (s *Store) Bounds() api.ZoomBounds {
	return s.bounds
}

// LoadWorkflow replaces the current graph with a copy of g. The store
// becomes clean at version 0, the undo history is cleared and any
// in-flight asynchronous load is superseded.
func (s *Store) LoadWorkflow(ctx context.Context, g *api.Graph) error {
	if g == nil {
		return api.Violation(api.ErrCodeInvalidPayload, "cannot load a nil graph")
	}
	g = g.Clone()
	vp := s.restoreViewport(ctx, g.ID)

	s.mu.Lock()
	s.generation++
	s.install(g, vp)
	st, seq := s.publishLocked()
	s.mu.Unlock()

	s.observer.OnWorkflowLoaded(ctx, st)
	s.notify(ctx, st, seq)
	return nil
}

// BeginLoad starts an asynchronous load. Only the newest ticket can be
// completed; LoadWorkflow, Unload and later BeginLoad calls supersede it.
func (s *Store) BeginLoad() api.LoadTicket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return api.LoadTicket{Generation: s.generation}
}

// CompleteLoad installs g if ticket is still current. A superseded ticket
// is reported to the observer and returns false.
func (s *Store) CompleteLoad(ctx context.Context, ticket api.LoadTicket, g *api.Graph) (bool, error) {
	if g == nil {
		return false, api.Violation(api.ErrCodeInvalidPayload, "cannot load a nil graph")
	}
	g = g.Clone()
	vp := s.restoreViewport(ctx, g.ID)

	s.mu.Lock()
	if ticket.Generation != s.generation {
		current := s.generation
		s.mu.Unlock()
		s.observer.OnStaleLoad(ctx, ticket.Generation, current)
		return false, nil
	}
	// A ticket completes at most once.
	s.generation++
	s.install(g, vp)
	st, seq := s.publishLocked()
	s.mu.Unlock()

	s.observer.OnWorkflowLoaded(ctx, st)
	s.notify(ctx, st, seq)
	return true, nil
}

func (s *Store) install(g *api.Graph, vp api.Viewport) {
	s.graph = g
	s.dirty = false
	s.version = 0
	s.undo = nil
	s.redo = nil
	s.viewport = vp
}

// MutateGraph applies m to a copy of the current graph. If m fails the store
// is unchanged and the error is returned; otherwise the copy replaces the
// graph, the store turns dirty and the version is bumped.
func (s *Store) MutateGraph(ctx context.Context, m api.Mutation) error {
	if m == nil {
		return api.Violation(api.ErrCodeInvalidMutation, "nil mutation")
	}

	s.mu.Lock()
	if s.graph == nil {
		s.mu.Unlock()
		return notLoaded("mutate graph")
	}
	next := s.graph.Clone()
	if err := applyMutation(m, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.pushUndo(s.graph)
	s.redo = nil
	s.graph = next
	s.dirty = true
	s.version++
	st, seq := s.publishLocked()
	s.mu.Unlock()

	s.observer.OnGraphMutated(ctx, st, m.Kind())
	s.notify(ctx, st, seq)
	return nil
}

// applyMutation turns a panicking Apply into an error so the caller can
// release the lock.
func applyMutation(m api.Mutation, g *api.Graph) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = api.Violation(api.ErrCodeInvalidMutation, "mutation panicked",
				"mutation", fmt.Sprintf("%T", m), "panic", fmt.Sprint(r))
		}
	}()
	return m.Apply(g)
}

func (s *Store) pushUndo(g *api.Graph) {
	if s.undoLimit < 0 {
		return
	}
	s.undo = append(s.undo, g)
	if over := len(s.undo) - s.undoLimit; over > 0 {
		s.undo = slices.Delete(s.undo, 0, over)
	}
}

// Undo restores the graph before the last mutation. It returns false when
// there is nothing to undo. Undo counts as a mutation: the store turns dirty
// and the version is bumped.
func (s *Store) Undo(ctx context.Context) (bool, error) {
	return s.step(ctx, "undo", &s.undo, &s.redo)
}

// Redo reapplies the last undone mutation.
func (s *Store) Redo(ctx context.Context) (bool, error) {
	return s.step(ctx, "redo", &s.redo, &s.undo)
}

func (s *Store) step(ctx context.Context, kind string, from, to *[]*api.Graph) (bool, error) {
	s.mu.Lock()
	if s.graph == nil {
		s.mu.Unlock()
		return false, notLoaded(kind)
	}
	if len(*from) == 0 {
		s.mu.Unlock()
		return false, nil
	}
	last := len(*from) - 1
	prev := (*from)[last]
	*from = (*from)[:last]
	*to = append(*to, s.graph)
	s.graph = prev
	s.dirty = true
	s.version++
	st, seq := s.publishLocked()
	s.mu.Unlock()

	s.observer.OnGraphMutated(ctx, st, kind)
	s.notify(ctx, st, seq)
	return true, nil
}

// MarkSaved clears the dirty flag if version is the current version. An
// older version means a newer edit happened after the save was issued: the
// call is reported as a stale save and returns false.
func (s *Store) MarkSaved(ctx context.Context, version uint64) (bool, error) {
	s.mu.Lock()
	if s.graph == nil {
		s.mu.Unlock()
		return false, notLoaded("mark saved")
	}
	if version != s.version {
		current := s.version
		s.mu.Unlock()
		s.observer.OnStaleSave(ctx, version, current)
		return false, nil
	}
	if !s.dirty {
		s.mu.Unlock()
		return true, nil
	}
	s.dirty = false
	st, seq := s.publishLocked()
	s.mu.Unlock()

	s.observer.OnWorkflowSaved(ctx, st)
	s.notify(ctx, st, seq)
	return true, nil
}

// Unload drops the current graph, for example when the editor unmounts.
// Pending asynchronous loads are superseded.
func (s *Store) Unload(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.graph = nil
	s.dirty = false
	s.version = 0
	s.undo = nil
	s.redo = nil
	s.viewport = api.DefaultViewport()
	st, seq := s.publishLocked()
	s.mu.Unlock()

	s.notify(ctx, st, seq)
}

// Viewport returns the current viewport.
func (s *Store) Viewport() api.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

// SetViewport replaces the viewport. Zoom is clamped into the store bounds
// and the accepted value is returned.
func (s *Store) SetViewport(ctx context.Context, v api.Viewport) api.Viewport {
	return s.updateViewport(ctx, func(api.Viewport) api.Viewport {
		return v.Normalize(s.bounds)
	})
}

// Pan shifts the viewport by (dx, dy) screen pixels.
func (s *Store) Pan(ctx context.Context, dx, dy float64) api.Viewport {
	return s.updateViewport(ctx, func(cur api.Viewport) api.Viewport {
		return cur.Pan(dx, dy)
	})
}

// ZoomTo sets the zoom level, keeping anchor (a screen point) in place.
func (s *Store) ZoomTo(ctx context.Context, zoom float64, anchor api.Point) api.Viewport {
	return s.updateViewport(ctx, func(cur api.Viewport) api.Viewport {
		return cur.ZoomTo(zoom, anchor, s.bounds)
	})
}

// FitToView frames the whole graph inside a canvas of the given size. With
// no graph or no nodes it resets to the default viewport.
func (s *Store) FitToView(ctx context.Context, canvas api.Size, padding float64) api.Viewport {
	return s.updateViewport(ctx, func(api.Viewport) api.Viewport {
		// Called with s.mu held.
		if s.graph == nil {
			return api.DefaultViewport()
		}
		r, ok := s.graph.Bounds()
		if !ok {
			return api.DefaultViewport()
		}
		return api.FitToView(r, canvas, padding, s.bounds)
	})
}

func (s *Store) updateViewport(ctx context.Context, fn func(api.Viewport) api.Viewport) api.Viewport {
	s.mu.Lock()
	v := fn(s.viewport)
	s.viewport = v
	workflowID := ""
	if s.graph != nil {
		workflowID = s.graph.ID
	}
	st, seq := s.publishLocked()
	s.mu.Unlock()

	s.persistViewport(ctx, workflowID, v)
	s.observer.OnViewportChanged(ctx, v)
	s.notify(ctx, st, seq)
	return v
}

func (s *Store) restoreViewport(ctx context.Context, workflowID string) api.Viewport {
	if s.state == nil || workflowID == "" {
		return api.DefaultViewport()
	}
	v, err := persistence.LoadValue[api.Viewport](ctx, s.state, persistence.ViewportKey(workflowID))
	switch {
	case errors.Is(err, persistence.ErrStateNotFound):
		return api.DefaultViewport()
	case err != nil:
		s.logger.Warn("viewport_restore_failed", "workflow_id", workflowID, "error", err)
		return api.DefaultViewport()
	}
	return v.Normalize(s.bounds)
}

func (s *Store) persistViewport(ctx context.Context, workflowID string, v api.Viewport) {
	if s.state == nil || workflowID == "" {
		return
	}
	if err := persistence.SaveValue(ctx, s.state, persistence.ViewportKey(workflowID), v); err != nil {
		s.logger.Warn("viewport_persist_failed", "workflow_id", workflowID, "error", err)
	}
}

// SetScopes replaces the caller's scope list.
func (s *Store) SetScopes(ctx context.Context, scopes []string) {
	s.mu.Lock()
	s.scopes = slices.Clone(scopes)
	st, seq := s.publishLocked()
	s.mu.Unlock()

	s.notify(ctx, st, seq)
}

// Permissions resolves the workflow permissions for the current scopes.
func (s *Store) Permissions() api.PermissionSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Resolve(s.scopes)
}

// State returns a snapshot of the store. The graph in the snapshot is shared
// and must not be modified.
func (s *Store) State() api.StoreState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() api.StoreState {
	perms := s.resolver.Resolve(s.scopes)
	st := api.StoreState{
		Status:      api.StatusUnloaded,
		Graph:       s.graph,
		Dirty:       s.dirty,
		Version:     s.version,
		Viewport:    s.viewport,
		Permissions: perms,
		CanSave:     s.dirty && perms.Can(api.ActionUpdate),
		ReadOnly:    !perms.Can(api.ActionUpdate),
		CanUndo:     s.graph != nil && len(s.undo) > 0,
		CanRedo:     s.graph != nil && len(s.redo) > 0,
	}
	if s.flags != nil {
		st.AuditLogsEnabled = s.flags.Get(api.FlagEnterpriseAuditLogs)
	}
	switch {
	case s.graph == nil:
	case s.dirty:
		st.Status = api.StatusDirty
	default:
		st.Status = api.StatusClean
	}
	return st
}

// Subscribe registers fn for every accepted change. Subscribers run in
// registration order; a failing subscriber is reported to the observer and
// never undoes the change.
func (s *Store) Subscribe(fn api.StateListener) func() {
	sub := s.listeners.On(stateEvent, eventbus.Handler[api.StoreState](fn))
	return sub.Unsubscribe
}

func (s *Store) publishLocked() (api.StoreState, uint64) {
	s.seq++
	return s.snapshotLocked(), s.seq
}

// notify delivers st to the subscribers. Snapshots reach subscribers in seq
// order: one caller at a time drains the queue, and a snapshot older than
// one already queued is dropped. A notify issued from inside a subscriber
// (or concurrently with a running dispatch) is queued and delivered by the
// dispatching caller once the current round is over.
func (s *Store) notify(ctx context.Context, st api.StoreState, seq uint64) {
	s.dispatchMu.Lock()
	if seq <= s.queuedSeq {
		s.dispatchMu.Unlock()
		return
	}
	s.queuedSeq = seq
	s.pending = append(s.pending, pendingState{ctx: ctx, st: st})
	if s.dispatching {
		s.dispatchMu.Unlock()
		return
	}
	s.dispatching = true
	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.dispatchMu.Unlock()

		if err := s.listeners.Emit(next.ctx, stateEvent, next.st); err != nil {
			s.observer.OnHandlerFailed(next.ctx, "editor", err)
		}

		s.dispatchMu.Lock()
	}
	s.dispatching = false
	s.dispatchMu.Unlock()
}

// Refresh notifies subscribers with a fresh snapshot without changing the
// store. It is used when a read-through dependency such as the flag store
// changed.
func (s *Store) Refresh(ctx context.Context) {
	s.mu.Lock()
	st, seq := s.publishLocked()
	s.mu.Unlock()
	s.notify(ctx, st, seq)
}

// Close drops every subscriber.
func (s *Store) Close() {
	s.listeners.Close()
}

func notLoaded(op string) error {
	return api.Violation(api.ErrCodeNotLoaded, "no workflow loaded", "op", op)
}
