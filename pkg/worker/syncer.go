package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrijr/flowcanvas/pkg/api"
)

// Remote is the server side of the editor: where workflows are fetched from
// and saved to.
type Remote interface {
	FetchWorkflow(ctx context.Context, id string) (*api.Graph, error)
	SaveWorkflow(ctx context.Context, g *api.Graph) error
}

// Config controls how a Syncer retries saves.
type Config struct {
	// Retry is applied to SaveWorkflow. MaxAttempts <= 0 means a single
	// attempt. Loads are never retried: a newer load is the retry.
	Retry api.RetryPolicy

	Logger *slog.Logger
}

// Syncer drives the asynchronous half of the editor: it fetches and saves
// workflows against a Remote and feeds the outcome back into the store
// through its synchronous API. The network call is the only place a Syncer
// blocks; the store is never touched mid-call.
type Syncer struct {
	store  api.WorkflowState
	remote Remote
	cfg    Config
	logger *slog.Logger
}

// New creates a Syncer that saves with a single attempt.
func New(store api.WorkflowState, remote Remote) *Syncer {
	return NewWithConfig(store, remote, Config{})
}

// NewWithConfig creates a Syncer with the given retry configuration.
func NewWithConfig(store api.WorkflowState, remote Remote, cfg Config) *Syncer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		store:  store,
		remote: remote,
		cfg:    cfg,
		logger: logger,
	}
}

// Load fetches workflow id and installs it unless a newer load started in
// the meantime, in which case it returns false and the fetched graph is
// dropped.
func (s *Syncer) Load(ctx context.Context, id string) (bool, error) {
	ticket := s.store.BeginLoad()

	g, err := s.remote.FetchWorkflow(ctx, id)
	if err != nil {
		return false, fmt.Errorf("fetch workflow %s: %w", id, err)
	}
	return s.store.CompleteLoad(ctx, ticket, g)
}

// LoadResult is the outcome of LoadAsync.
type LoadResult struct {
	Applied bool
	Err     error
}

// LoadAsync runs Load on its own goroutine. The returned channel receives
// exactly one result and is then closed.
func (s *Syncer) LoadAsync(ctx context.Context, id string) <-chan LoadResult {
	// The ticket is taken before returning so that load order follows call
	// order, not goroutine scheduling.
	ticket := s.store.BeginLoad()
	out := make(chan LoadResult, 1)
	go func() {
		defer close(out)
		g, err := s.remote.FetchWorkflow(ctx, id)
		if err != nil {
			out <- LoadResult{Err: fmt.Errorf("fetch workflow %s: %w", id, err)}
			return
		}
		applied, err := s.store.CompleteLoad(ctx, ticket, g)
		out <- LoadResult{Applied: applied, Err: err}
	}()
	return out
}

// Save sends the current graph to the Remote and marks the version it sent
// as saved. It returns false when the store moved on while the save was in
// flight (a stale save): the store stays dirty.
func (s *Syncer) Save(ctx context.Context) (bool, error) {
	st := s.store.State()
	if st.Graph == nil {
		return false, api.Violation(api.ErrCodeNotLoaded, "no workflow loaded", "op", "save")
	}
	version := st.Version

	if err := s.saveWithRetry(ctx, st.Graph); err != nil {
		return false, err
	}
	return s.store.MarkSaved(ctx, version)
}

func (s *Syncer) saveWithRetry(ctx context.Context, g *api.Graph) error {
	maxAttempts := s.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = s.remote.SaveWorkflow(ctx, g)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			break
		}
		if attempt == maxAttempts {
			break
		}

		delay := s.cfg.Retry.Delay(attempt)
		s.logger.Warn("save_retry", "workflow_id", g.ID, "attempt", attempt, "delay", delay, "error", lastErr)
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			// next attempt
		}
	}
	return fmt.Errorf("save workflow %s: %w", g.ID, lastErr)
}
