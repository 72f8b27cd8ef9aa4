// Package gitsync keeps workflows in a git working copy and announces every
// successful repository operation on the session's source-control channel.
package gitsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/petrijr/flowcanvas/pkg/api"
	"github.com/petrijr/flowcanvas/pkg/eventbus"
)

const (
	remoteName    = "origin"
	workflowsDir  = "workflows"
	defaultAuthor = "flowcanvas"
)

var (
	// ErrNothingToCommit is returned by Commit when the working copy is clean.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrNoRemote is returned by Push and Pull before SetRepository was called.
	ErrNoRemote = errors.New("no remote repository configured")
)

type Options struct {
	// Dir is the working copy. It is initialized on a "main" branch when it
	// is not a repository yet.
	Dir string

	AuthorName  string
	AuthorEmail string

	// Channel receives an event after every successful operation. Nil
	// disables publishing.
	Channel *eventbus.SourceControlChannel

	// Observer is told about channel handlers that failed.
	Observer api.Observer
}

// Repo is a git working copy holding one JSON file per workflow.
type Repo struct {
	mu       sync.Mutex
	dir      string
	repo     *git.Repository
	author   string
	email    string
	channel  *eventbus.SourceControlChannel
	observer api.Observer
}

// Open opens the repository at opts.Dir, creating it if needed.
func Open(opts Options) (*Repo, error) {
	if opts.Dir == "" {
		return nil, errors.New("gitsync: empty repository dir")
	}
	repo, err := git.PlainOpen(opts.Dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = initRepo(opts.Dir)
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	author := opts.AuthorName
	if author == "" {
		author = defaultAuthor
	}
	email := opts.AuthorEmail
	if email == "" {
		email = author + "@flowcanvas.local"
	}
	observer := opts.Observer
	if observer == nil {
		observer = api.NoopObserver{}
	}

	return &Repo{
		dir:      opts.Dir,
		repo:     repo,
		author:   author,
		email:    email,
		channel:  opts.Channel,
		observer: observer,
	}, nil
}

func initRepo(dir string) (*git.Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

// Dir returns the working copy path.
func (r *Repo) Dir() string {
	return r.dir
}

// workflowPath maps id to its file below workflows/. IDs that would name a
// file anywhere else are rejected.
func workflowPath(id string) (string, error) {
	name := id + ".json"
	if id == "" || strings.ContainsAny(id, `/\`) || !filepath.IsLocal(name) {
		return "", api.Violation(api.ErrCodeInvalidPayload, "invalid workflow id", "id", id)
	}
	return filepath.Join(workflowsDir, name), nil
}

// CommitWorkflow writes g to workflows/<id>.json and commits every pending
// change with message.
func (r *Repo) CommitWorkflow(ctx context.Context, g *api.Graph, message string) (string, error) {
	if g == nil || g.ID == "" {
		return "", api.Violation(api.ErrCodeInvalidPayload, "workflow without id cannot be committed")
	}
	rel, err := workflowPath(g.ID)
	if err != nil {
		return "", err
	}
	payload, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal workflow %s: %w", g.ID, err)
	}

	r.mu.Lock()
	path := filepath.Join(r.dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		r.mu.Unlock()
		return "", fmt.Errorf("create workflows dir: %w", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		r.mu.Unlock()
		return "", fmt.Errorf("write workflow %s: %w", g.ID, err)
	}
	hash, err := r.commitLocked(ctx, message)
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	r.publish(ctx, api.CommitEvent{Message: message})
	return hash, nil
}

// ReadWorkflow reads workflows/<id>.json from the working copy.
func (r *Repo) ReadWorkflow(id string) (*api.Graph, error) {
	rel, err := workflowPath(id)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(r.dir, rel))
	if err != nil {
		return nil, fmt.Errorf("read workflow %s: %w", id, err)
	}
	var g api.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, err)
	}
	return &g, nil
}

// Commit stages every change in the working copy and commits it.
func (r *Repo) Commit(ctx context.Context, message string) (string, error) {
	r.mu.Lock()
	hash, err := r.commitLocked(ctx, message)
	r.mu.Unlock()
	if err != nil {
		return "", err
	}

	r.publish(ctx, api.CommitEvent{Message: message})
	return hash, nil
}

func (r *Repo) commitLocked(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	worktree, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("git status: %w", err)
	}
	if status.IsClean() {
		return "", ErrNothingToCommit
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.author,
			Email: r.email,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return hash.String(), nil
}

// Checkout switches to branch, creating it from HEAD when create is set.
func (r *Repo) Checkout(ctx context.Context, branch string, create bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	worktree, err := r.repo.Worktree()
	if err == nil {
		err = worktree.Checkout(&git.CheckoutOptions{
			Branch: plumbing.NewBranchReferenceName(branch),
			Create: create,
		})
	}
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}

	r.publish(ctx, api.BranchChangedEvent{BranchName: branch})
	return nil
}

// CurrentBranch returns the short name of the checked out branch.
func (r *Repo) CurrentBranch() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	return head.Name().Short(), nil
}

// SetRepository points the origin remote at url, replacing any previous one.
func (r *Repo) SetRepository(ctx context.Context, url string) error {
	if url == "" {
		return api.Violation(api.ErrCodeInvalidPayload, "empty repository url")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	err := r.repo.DeleteRemote(remoteName)
	if err != nil && !errors.Is(err, git.ErrRemoteNotFound) {
		r.mu.Unlock()
		return fmt.Errorf("delete remote: %w", err)
	}
	_, err = r.repo.CreateRemote(&config.RemoteConfig{Name: remoteName, URLs: []string{url}})
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("create remote: %w", err)
	}

	r.publish(ctx, api.RepositoryChangedEvent{RepositoryURL: url})
	return nil
}

// Push sends the current branch to origin. Being up to date is success.
func (r *Repo) Push(ctx context.Context) error {
	r.mu.Lock()
	err := r.requireRemote()
	if err == nil {
		err = r.repo.PushContext(ctx, &git.PushOptions{RemoteName: remoteName})
	}
	r.mu.Unlock()
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push: %w", err)
	}

	r.publish(ctx, api.PushEvent{})
	return nil
}

// Pull fast-forwards the current branch from origin. Being up to date is
// success.
func (r *Repo) Pull(ctx context.Context) error {
	r.mu.Lock()
	err := r.requireRemote()
	var head *plumbing.Reference
	if err == nil {
		head, err = r.repo.Head()
	}
	var worktree *git.Worktree
	if err == nil {
		worktree, err = r.repo.Worktree()
	}
	if err == nil {
		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName:    remoteName,
			ReferenceName: head.Name(),
			SingleBranch:  true,
		})
	}
	r.mu.Unlock()
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("pull: %w", err)
	}

	r.publish(ctx, api.PullEvent{})
	return nil
}

func (r *Repo) requireRemote() error {
	if _, err := r.repo.Remote(remoteName); err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return ErrNoRemote
		}
		return err
	}
	return nil
}

// publish runs with no lock held so handlers may call back into the repo.
func (r *Repo) publish(ctx context.Context, ev api.SourceControlEvent) {
	if r.channel == nil {
		return
	}
	if err := r.channel.Publish(ctx, ev); err != nil {
		r.observer.OnHandlerFailed(ctx, "sourceControl", err)
	}
}
