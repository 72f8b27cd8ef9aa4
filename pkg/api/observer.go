package api

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Observer receives callbacks from the editor store and the session for
// logging and telemetry.
//
// Callbacks run synchronously inside the store operation that triggered
// them, so implementations should be fast and must not call back into the
// store.
type Observer interface {
	// OnWorkflowLoaded is called after a graph replaced the current one,
	// either directly or through a completed asynchronous load.
	OnWorkflowLoaded(ctx context.Context, state StoreState)

	// OnGraphMutated is called after a mutation (including undo/redo) was
	// accepted. kind is the Mutation's Kind.
	OnGraphMutated(ctx context.Context, state StoreState, kind string)

	// OnWorkflowSaved is called when MarkSaved cleared the dirty flag.
	OnWorkflowSaved(ctx context.Context, state StoreState)

	// OnStaleSave is called when MarkSaved was given an outdated version.
	OnStaleSave(ctx context.Context, requested, current uint64)

	// OnStaleLoad is called when a superseded asynchronous load completed.
	OnStaleLoad(ctx context.Context, ticket, current uint64)

	// OnViewportChanged is called after the store accepted a new viewport.
	OnViewportChanged(ctx context.Context, v Viewport)

	// OnHandlerFailed is called for every subscriber or handler failure that
	// could not be returned to a caller. source names the dispatching
	// component (e.g. "editor", "flags", "sourceControl").
	OnHandlerFailed(ctx context.Context, source string, err error)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnWorkflowLoaded(ctx context.Context, state StoreState)            {}
func (NoopObserver) OnGraphMutated(ctx context.Context, state StoreState, kind string) {}
func (NoopObserver) OnWorkflowSaved(ctx context.Context, state StoreState)             {}
func (NoopObserver) OnStaleSave(ctx context.Context, requested, current uint64)        {}
func (NoopObserver) OnStaleLoad(ctx context.Context, ticket, current uint64)           {}
func (NoopObserver) OnViewportChanged(ctx context.Context, v Viewport)                 {}
func (NoopObserver) OnHandlerFailed(ctx context.Context, source string, err error)     {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnWorkflowLoaded(ctx context.Context, state StoreState) {
	for _, o := range c.observers {
		o.OnWorkflowLoaded(ctx, state)
	}
}

func (c *CompositeObserver) OnGraphMutated(ctx context.Context, state StoreState, kind string) {
	for _, o := range c.observers {
		o.OnGraphMutated(ctx, state, kind)
	}
}

func (c *CompositeObserver) OnWorkflowSaved(ctx context.Context, state StoreState) {
	for _, o := range c.observers {
		o.OnWorkflowSaved(ctx, state)
	}
}

func (c *CompositeObserver) OnStaleSave(ctx context.Context, requested, current uint64) {
	for _, o := range c.observers {
		o.OnStaleSave(ctx, requested, current)
	}
}

func (c *CompositeObserver) OnStaleLoad(ctx context.Context, ticket, current uint64) {
	for _, o := range c.observers {
		o.OnStaleLoad(ctx, ticket, current)
	}
}

func (c *CompositeObserver) OnViewportChanged(ctx context.Context, v Viewport) {
	for _, o := range c.observers {
		o.OnViewportChanged(ctx, v)
	}
}

func (c *CompositeObserver) OnHandlerFailed(ctx context.Context, source string, err error) {
	for _, o := range c.observers {
		o.OnHandlerFailed(ctx, source, err)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs store lifecycle events
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func graphID(state StoreState) string {
	if state.Graph == nil {
		return ""
	}
	return state.Graph.ID
}

func (o *LoggingObserver) OnWorkflowLoaded(ctx context.Context, state StoreState) {
	nodes := 0
	if state.Graph != nil {
		nodes = len(state.Graph.Nodes)
	}
	o.Logger.InfoContext(ctx, "workflow_loaded",
		slog.String("workflow_id", graphID(state)),
		slog.Int("nodes", nodes),
	)
}

func (o *LoggingObserver) OnGraphMutated(ctx context.Context, state StoreState, kind string) {
	o.Logger.DebugContext(ctx, "graph_mutated",
		slog.String("workflow_id", graphID(state)),
		slog.String("mutation", kind),
		slog.Uint64("version", state.Version),
	)
}

func (o *LoggingObserver) OnWorkflowSaved(ctx context.Context, state StoreState) {
	o.Logger.InfoContext(ctx, "workflow_saved",
		slog.String("workflow_id", graphID(state)),
		slog.Uint64("version", state.Version),
	)
}

func (o *LoggingObserver) OnStaleSave(ctx context.Context, requested, current uint64) {
	o.Logger.WarnContext(ctx, "stale_save",
		slog.Uint64("requested_version", requested),
		slog.Uint64("current_version", current),
	)
}

func (o *LoggingObserver) OnStaleLoad(ctx context.Context, ticket, current uint64) {
	o.Logger.WarnContext(ctx, "stale_load",
		slog.Uint64("ticket", ticket),
		slog.Uint64("current_generation", current),
	)
}

func (o *LoggingObserver) OnViewportChanged(ctx context.Context, v Viewport) {
	o.Logger.DebugContext(ctx, "viewport_changed",
		slog.Float64("x", v.X),
		slog.Float64("y", v.Y),
		slog.Float64("zoom", v.Zoom),
	)
}

func (o *LoggingObserver) OnHandlerFailed(ctx context.Context, source string, err error) {
	o.Logger.ErrorContext(ctx, "handler_failed",
		slog.String("source", source),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple counters. It implements Observer and can be
// combined with LoggingObserver via NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	loads         atomic.Int64
	mutations     atomic.Int64
	saves         atomic.Int64
	staleSaves    atomic.Int64
	staleLoads    atomic.Int64
	handlerFailed atomic.Int64
	viewportMoves atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	Loads         int64
	Mutations     int64
	Saves         int64
	StaleSaves    int64
	StaleLoads    int64
	HandlerFailed int64
	ViewportMoves int64
}

func (m *BasicMetrics) OnWorkflowLoaded(ctx context.Context, state StoreState) {
	m.loads.Add(1)
}

func (m *BasicMetrics) OnGraphMutated(ctx context.Context, state StoreState, kind string) {
	m.mutations.Add(1)
}

func (m *BasicMetrics) OnWorkflowSaved(ctx context.Context, state StoreState) {
	m.saves.Add(1)
}

func (m *BasicMetrics) OnStaleSave(ctx context.Context, requested, current uint64) {
	m.staleSaves.Add(1)
}

func (m *BasicMetrics) OnStaleLoad(ctx context.Context, ticket, current uint64) {
	m.staleLoads.Add(1)
}

func (m *BasicMetrics) OnViewportChanged(ctx context.Context, v Viewport) {
	m.viewportMoves.Add(1)
}

func (m *BasicMetrics) OnHandlerFailed(ctx context.Context, source string, err error) {
	m.handlerFailed.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	return BasicMetricsSnapshot{
		Loads:         m.loads.Load(),
		Mutations:     m.mutations.Load(),
		Saves:         m.saves.Load(),
		StaleSaves:    m.staleSaves.Load(),
		StaleLoads:    m.staleLoads.Load(),
		HandlerFailed: m.handlerFailed.Load(),
		ViewportMoves: m.viewportMoves.Load(),
	}
}
