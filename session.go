package flowcanvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/petrijr/flowcanvas/internal/editor"
	"github.com/petrijr/flowcanvas/internal/flags"
	"github.com/petrijr/flowcanvas/internal/gitsync"
	"github.com/petrijr/flowcanvas/internal/restapi"
	"github.com/petrijr/flowcanvas/pkg/api"
	"github.com/petrijr/flowcanvas/pkg/eventbus"
	"github.com/petrijr/flowcanvas/pkg/worker"
)

// ErrNoRepository is returned by the source-control helpers of a Session
// that was started without Config.RepoDir.
var ErrNoRepository = errors.New("session has no git repository")

// Session is one editor lifetime: the workflow store, the flag store, the
// source-control channel and the adapters around them. Everything is torn
// down by Close.
type Session struct {
	ID     string
	Config Config

	Editor        *EditorStore
	Flags         *FlagStore
	SourceControl *SourceControlChannel
	Syncer        *Syncer
	Client        *RestClient
	State         StateStore

	// Git is nil unless Config.RepoDir is set.
	Git *GitRepo

	logger    *slog.Logger
	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

type sessionOptions struct {
	logger       *slog.Logger
	observer     Observer
	state        StateStore
	remote       Remote
	httpClient   *http.Client
	retry        *RetryPolicy
	flagDefaults map[string]bool
	scopes       []string
}

// SessionOption customizes NewSession.
type SessionOption func(*sessionOptions)

// WithLogger sets the session logger. Default: a text logger on stderr at
// Config.LogLevel.
func WithLogger(l *slog.Logger) SessionOption {
	return func(o *sessionOptions) { o.logger = l }
}

// WithObserver adds an observer next to the session's logging observer.
func WithObserver(obs Observer) SessionOption {
	return func(o *sessionOptions) { o.observer = obs }
}

// WithStateStore uses s instead of opening Config.StateBackend. The session
// does not close it.
func WithStateStore(s StateStore) SessionOption {
	return func(o *sessionOptions) { o.state = s }
}

// WithRemote replaces the REST client as the syncer's remote.
func WithRemote(r Remote) SessionOption {
	return func(o *sessionOptions) { o.remote = r }
}

// WithHTTPClient sets the HTTP client used by the REST client.
func WithHTTPClient(hc *http.Client) SessionOption {
	return func(o *sessionOptions) { o.httpClient = hc }
}

// WithSaveRetry overrides the retry policy derived from the config. The
// policy is validated by NewSession; build it with SaveRetry.
func WithSaveRetry(p RetryPolicy) SessionOption {
	return func(o *sessionOptions) { o.retry = &p }
}

// WithFlagDefaults seeds the flag store when nothing is persisted.
func WithFlagDefaults(defaults map[string]bool) SessionOption {
	return func(o *sessionOptions) { o.flagDefaults = defaults }
}

// WithScopes sets the initial permission scopes of the editor.
func WithScopes(scopes ...string) SessionOption {
	return func(o *sessionOptions) { o.scopes = scopes }
}

// NewSession validates cfg and wires a session around it.
func NewSession(ctx context.Context, cfg Config, opts ...SessionOption) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := sessionOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	retry, err := SaveRetryFromConfig(cfg).Build()
	if o.retry != nil {
		retry, err = *o.retry, validateSaveRetry(*o.retry)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	id := uuid.NewString()
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}
	logger = logger.With("session", id)

	s := &Session{
		ID:     id,
		Config: cfg,
		logger: logger,
	}

	state := o.state
	if state == nil {
		opened, closeFn, err := OpenStateStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		state = opened
		s.closers = append(s.closers, closeFn)
	}
	s.State = state

	observer := NewLoggingObserver(logger)
	if o.observer != nil {
		observer = NewCompositeObserver(observer, o.observer)
	}

	s.Flags = flags.New(ctx, flags.Options{
		Name:     cfg.FlagStoreName,
		Defaults: o.flagDefaults,
		State:    state,
		Logger:   logger,
	})
	s.SourceControl = eventbus.NewSourceControlChannel()

	s.Editor = editor.New(editor.Options{
		Bounds: cfg.ZoomBounds(),
		Resolver: api.PermissionResolver{
			Resource:     api.ResourceWorkflow,
			DefaultAllow: cfg.DefaultAllow,
		},
		Flags:     s.Flags,
		State:     state,
		Observer:  observer,
		Logger:    logger,
		UndoLimit: cfg.UndoLimit,
	})
	if o.scopes != nil {
		s.Editor.SetScopes(ctx, o.scopes)
	}

	// The editor derives AuditLogsEnabled from the flag store.
	unsubscribe := s.Flags.Subscribe(api.FlagEnterpriseAuditLogs, func(ctx context.Context, _ bool) error {
		s.Editor.Refresh(ctx)
		return nil
	})
	s.closers = append([]func() error{func() error {
		unsubscribe()
		s.Editor.Close()
		s.Flags.Close()
		s.SourceControl.Close()
		return nil
	}}, s.closers...)

	clientOpts := []restapi.Option{restapi.WithLogger(logger)}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, restapi.WithHTTPClient(o.httpClient))
	}
	s.Client = restapi.New(cfg.BasePath, clientOpts...)

	var remote Remote = s.Client
	if o.remote != nil {
		remote = o.remote
	}
	s.Syncer = worker.NewWithConfig(s.Editor, remote, worker.Config{Retry: retry, Logger: logger})

	if cfg.RepoDir != "" {
		repo, err := gitsync.Open(gitsync.Options{
			Dir:      cfg.RepoDir,
			Channel:  s.SourceControl,
			Observer: observer,
		})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Git = repo
	}

	logger.Info("session_started", "state_backend", cfg.StateBackend, "git", s.Git != nil)
	return s, nil
}

// Load fetches workflow id and installs it unless a newer load superseded it.
func (s *Session) Load(ctx context.Context, id string) (bool, error) {
	return s.Syncer.Load(ctx, id)
}

// Save sends the current graph and marks the version it sent as saved.
func (s *Session) Save(ctx context.Context) (bool, error) {
	return s.Syncer.Save(ctx)
}

// CommitWorkflow writes the open workflow into the git repository and
// commits it. The channel receives a commit event on success.
func (s *Session) CommitWorkflow(ctx context.Context, message string) (string, error) {
	if s.Git == nil {
		return "", ErrNoRepository
	}
	st := s.Editor.State()
	if st.Graph == nil {
		return "", api.Violation(api.ErrCodeNotLoaded, "no workflow loaded", "op", "CommitWorkflow")
	}
	return s.Git.CommitWorkflow(ctx, st.Graph, message)
}

// SchemaPreview returns the parameter schema for q, or the fallback schema
// when the server cannot provide one.
func (s *Session) SchemaPreview(ctx context.Context, q api.SchemaQuery) api.Schema {
	return s.Client.SchemaPreview(ctx, q)
}

// Close tears down the buses and releases the state backend. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		for _, c := range s.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		s.closeErr = errors.Join(errs...)
		s.logger.Info("session_closed")
	})
	return s.closeErr
}
