// Package flags holds the session's named boolean feature flags, such as
// the enterprise audit-log gate, with synchronous change notification.
package flags

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/petrijr/flowcanvas/internal/persistence"
	"github.com/petrijr/flowcanvas/pkg/api"
	"github.com/petrijr/flowcanvas/pkg/eventbus"
)

// DefaultStoreName is used when Options.Name is empty.
const DefaultStoreName = "default"

// Options configures a Store.
type Options struct {
	// Name selects the persisted record (key flags:<Name>).
	Name string
	// Defaults seeds values when nothing usable is persisted.
	Defaults map[string]bool
	// State persists values across sessions. Nil keeps them in memory only.
	State persistence.StateStore
	// Logger receives rehydrate and persist failures. Nil uses slog.Default().
	Logger *slog.Logger
}

// Store is a named feature-flag store. Subscriptions are forward-only: a
// subscriber is called for every Set after it subscribed, even when the
// value does not change, and never with the value current at subscription.
type Store struct {
	mu     sync.RWMutex
	saveMu sync.Mutex // orders persists; the newest values land last
	name   string
	values map[string]bool
	state  persistence.StateStore
	logger *slog.Logger
	bus    *eventbus.Bus[bool]
}

var _ api.FeatureFlags = (*Store)(nil)

// New creates a Store and rehydrates it from opts.State. Missing or corrupt
// persisted data falls back to opts.Defaults; it is logged, not returned.
func New(ctx context.Context, opts Options) *Store {
	name := opts.Name
	if name == "" {
		name = DefaultStoreName
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		name:   name,
		values: make(map[string]bool),
		state:  opts.State,
		logger: logger,
		bus:    eventbus.New[bool](),
	}
	maps.Copy(s.values, opts.Defaults)
	s.rehydrate(ctx)
	return s
}

func (s *Store) rehydrate(ctx context.Context) {
	if s.state == nil {
		return
	}
	persisted, err := persistence.LoadValue[map[string]bool](ctx, s.state, persistence.FlagsKey(s.name))
	switch {
	case errors.Is(err, persistence.ErrStateNotFound):
		return
	case err != nil:
		s.logger.Warn("flags_rehydrate_failed", "store", s.name, "error", err)
		return
	}
	maps.Copy(s.values, persisted)
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Get returns the current value of flag, false when it was never set.
func (s *Store) Get(flag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[flag]
}

// AuditLogsEnabled reports the enterprise audit-log flag.
func (s *Store) AuditLogsEnabled() bool {
	return s.Get(api.FlagEnterpriseAuditLogs)
}

// Set stores value, persists the store and notifies the subscribers of flag
// before returning. The value is kept even when persisting or a subscriber
// fails; those failures are returned joined.
func (s *Store) Set(ctx context.Context, flag string, value bool) error {
	s.mu.Lock()
	s.values[flag] = value
	s.mu.Unlock()

	var persistErr error
	if err := s.persist(ctx); err != nil {
		s.logger.Error("flags_persist_failed", "store", s.name, "flag", flag, "error", err)
		persistErr = fmt.Errorf("persist flags %q: %w", s.name, err)
	}

	return errors.Join(persistErr, s.bus.Emit(ctx, flag, value))
}

// persist saves the values current once it holds saveMu, so a Set that
// persisted earlier can never overwrite a newer snapshot.
func (s *Store) persist(ctx context.Context) error {
	if s.state == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return persistence.SaveValue(ctx, s.state, persistence.FlagsKey(s.name), s.Snapshot())
}

// Subscribe registers fn for every future Set of flag.
func (s *Store) Subscribe(flag string, fn api.FlagListener) func() {
	sub := s.bus.On(flag, eventbus.Handler[bool](fn))
	return sub.Unsubscribe
}

// Snapshot returns a copy of all known flags.
func (s *Store) Snapshot() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Close drops every subscription.
func (s *Store) Close() {
	s.bus.Close()
}
