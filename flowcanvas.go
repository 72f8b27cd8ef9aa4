package flowcanvas

import (
	"github.com/petrijr/flowcanvas/internal/config"
	"github.com/petrijr/flowcanvas/internal/editor"
	"github.com/petrijr/flowcanvas/internal/flags"
	"github.com/petrijr/flowcanvas/internal/gitsync"
	"github.com/petrijr/flowcanvas/internal/persistence"
	"github.com/petrijr/flowcanvas/internal/restapi"
	"github.com/petrijr/flowcanvas/pkg/api"
	"github.com/petrijr/flowcanvas/pkg/eventbus"
	"github.com/petrijr/flowcanvas/pkg/worker"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Graph                  = api.Graph
	Node                   = api.Node
	Connection             = api.Connection
	Mutation               = api.Mutation
	Point                  = api.Point
	Size                   = api.Size
	Viewport               = api.Viewport
	ZoomBounds             = api.ZoomBounds
	StoreState             = api.StoreState
	StoreStatus            = api.StoreStatus
	PermissionSet          = api.PermissionSet
	PermissionResolver     = api.PermissionResolver
	RetryPolicy            = api.RetryPolicy
	SourceControlEvent     = api.SourceControlEvent
	ContractViolationError = api.ContractViolationError
	DispatchError          = api.DispatchError
	Observer               = api.Observer
	LoggingObserver        = api.LoggingObserver
	BasicMetrics           = api.BasicMetrics
	BasicMetricsSnapshot   = api.BasicMetricsSnapshot
	CompositeObserver      = api.CompositeObserver
	NoopObserver           = api.NoopObserver
)

// Components owned by a Session. The aliases let callers name them without
// importing internal packages.
type (
	Config               = config.Config
	EditorStore          = editor.Store
	FlagStore            = flags.Store
	StateStore           = persistence.StateStore
	RestClient           = restapi.Client
	GitRepo              = gitsync.Repo
	Syncer               = worker.Syncer
	Remote               = worker.Remote
	SourceControlChannel = eventbus.SourceControlChannel
)

// Re-export common observer helpers.

var (
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver
)

// Re-export status values for convenience.

const (
	StatusUnloaded = api.StatusUnloaded
	StatusClean    = api.StatusClean
	StatusDirty    = api.StatusDirty
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads the configuration from FLOWCANVAS_CONFIG_FILE and the
// FLOWCANVAS_* environment.
func LoadConfig() (Config, error) {
	return config.Load()
}

// NewSourceControlChannel returns a channel that is not bound to a session,
// for callers that bridge repository events themselves.
func NewSourceControlChannel() *SourceControlChannel {
	return eventbus.NewSourceControlChannel()
}
