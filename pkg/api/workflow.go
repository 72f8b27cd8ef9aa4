package api

import (
	"context"
	"time"
)

// StoreStatus is the lifecycle state of the editor store.
type StoreStatus string

const (
	StatusUnloaded StoreStatus = "UNLOADED"
	StatusClean    StoreStatus = "CLEAN"
	StatusDirty    StoreStatus = "DIRTY"
)

// FlagEnterpriseAuditLogs is the feature flag gating the audit log view.
const FlagEnterpriseAuditLogs = "enterpriseAuditLogs"

// StoreState is an immutable snapshot of the editor store, including the
// derived UI flags. Subscribers receive one StoreState per change and never
// observe a half-applied mutation.
type StoreState struct {
	Status   StoreStatus
	Graph    *Graph
	Dirty    bool
	Version  uint64
	Viewport Viewport

	// Permissions is resolved from the current scopes when the snapshot is
	// taken.
	Permissions PermissionSet

	// CanSave is Dirty && Permissions[update].
	CanSave bool

	// ReadOnly is !Permissions[update].
	ReadOnly bool

	// AuditLogsEnabled mirrors FlagEnterpriseAuditLogs.
	AuditLogsEnabled bool

	CanUndo bool
	CanRedo bool
}

// LoadTicket identifies one asynchronous load. A ticket goes stale as soon
// as a newer load begins or a workflow is loaded directly.
type LoadTicket struct {
	Generation uint64
}

// StateListener is notified after every accepted change of the editor store.
type StateListener func(ctx context.Context, state StoreState) error

// WorkflowState is the editor's aggregate store: the open graph, its
// dirty/version bookkeeping, the viewport and the derived UI flags.
type WorkflowState interface {
	// LoadWorkflow replaces the current graph, clears dirty, resets the
	// version to 0 and supersedes any in-flight load.
	LoadWorkflow(ctx context.Context, g *Graph) error

	// BeginLoad starts an asynchronous load and returns its ticket.
	BeginLoad() LoadTicket

	// CompleteLoad applies g only if ticket is still the newest load.
	// It returns false for a stale ticket.
	CompleteLoad(ctx context.Context, ticket LoadTicket, g *Graph) (bool, error)

	// MutateGraph applies m atomically, marks the store dirty and bumps the
	// version.
	MutateGraph(ctx context.Context, m Mutation) error

	// MarkSaved clears dirty if version is still current. It returns false,
	// and reports a stale save, otherwise.
	MarkSaved(ctx context.Context, version uint64) (bool, error)

	Undo(ctx context.Context) (bool, error)
	Redo(ctx context.Context) (bool, error)

	// Unload drops the current graph and returns to StatusUnloaded.
	Unload(ctx context.Context)

	Viewport() Viewport
	SetViewport(ctx context.Context, v Viewport) Viewport
	Pan(ctx context.Context, dx, dy float64) Viewport
	ZoomTo(ctx context.Context, zoom float64, anchor Point) Viewport

	// SetScopes replaces the caller's scope list. Permissions are resolved
	// from it on demand.
	SetScopes(ctx context.Context, scopes []string)
	Permissions() PermissionSet

	State() StoreState
	Subscribe(fn StateListener) (unsubscribe func())
}

// FlagListener is notified with the new value on every Set of its flag.
type FlagListener func(ctx context.Context, value bool) error

// FeatureFlags is a named boolean flag store with forward-only
// subscriptions: a subscriber sees every Set issued after it subscribed,
// never a replay of the current value.
type FeatureFlags interface {
	Get(flag string) bool
	Set(ctx context.Context, flag string, value bool) error
	Subscribe(flag string, fn FlagListener) (unsubscribe func())
	Snapshot() map[string]bool
}

// RetryPolicy controls how a failed save round-trip is retried.
// MaxAttempts includes the first attempt:
//
//	MaxAttempts = 1 => no retries (just the initial call)
//	MaxAttempts = 3 => initial call + up to 2 retries
//
// InitialBackoff is the delay before the first retry; each further delay is
// multiplied by BackoffMultiplier and capped at MaxBackoff (0 = no cap).
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// Delay returns the wait before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.MaxBackoff > 0 && time.Duration(d) >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && time.Duration(d) > p.MaxBackoff {
		return p.MaxBackoff
	}
	return time.Duration(d)
}

// Schema is a JSON-Schema shaped document used for parameter UI hints.
type Schema map[string]any

// FallbackSchema is returned when a schema preview cannot be fetched.
func FallbackSchema() Schema {
	return Schema{"type": "object"}
}

// SchemaQuery identifies the schema preview to fetch for a node.
type SchemaQuery struct {
	NodeType  string
	Version   float64
	Operation string
	Resource  string
}
