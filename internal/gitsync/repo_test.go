package gitsync

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/flowcanvas/pkg/api"
	"github.com/petrijr/flowcanvas/pkg/eventbus"
)

type recorder struct {
	mu     sync.Mutex
	events []api.SourceControlEvent
}

func (r *recorder) attach(ch *eventbus.SourceControlChannel) {
	for _, name := range api.SourceControlEventNames {
		ch.On(name, func(_ context.Context, ev api.SourceControlEvent) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev)
			return nil
		})
	}
}

func (r *recorder) all() []api.SourceControlEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]api.SourceControlEvent(nil), r.events...)
}

func newTestRepo(t *testing.T) (*Repo, *recorder) {
	t.Helper()
	ch := eventbus.NewSourceControlChannel()
	t.Cleanup(ch.Close)
	rec := &recorder{}
	rec.attach(ch)

	repo, err := Open(Options{Dir: filepath.Join(t.TempDir(), "work"), AuthorName: "tester", Channel: ch})
	require.NoError(t, err)
	return repo, rec
}

func sampleGraph(id string) *api.Graph {
	return &api.Graph{
		ID:    id,
		Name:  "Workflow " + id,
		Nodes: []api.Node{{ID: "trigger", Type: "manualTrigger"}},
	}
}

func requireGitTransport(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available for local transport")
	}
}

func TestOpen_InitializesMainBranch(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.CommitWorkflow(context.Background(), sampleGraph("w1"), "initial")
	require.NoError(t, err)

	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
}

func TestOpen_ReopensExistingRepository(t *testing.T) {
	repo, _ := newTestRepo(t)
	hash, err := repo.CommitWorkflow(context.Background(), sampleGraph("w1"), "initial")
	require.NoError(t, err)

	again, err := Open(Options{Dir: repo.Dir()})
	require.NoError(t, err)
	head, err := again.repo.Head()
	require.NoError(t, err)
	assert.Equal(t, hash, head.Hash().String())
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Options{})
	require.Error(t, err)
}

func TestCommitWorkflow_WritesFileAndPublishes(t *testing.T) {
	repo, rec := newTestRepo(t)
	ctx := context.Background()

	hash, err := repo.CommitWorkflow(ctx, sampleGraph("w1"), "add w1")
	require.NoError(t, err)
	assert.Len(t, hash, 40)

	got, err := repo.ReadWorkflow("w1")
	require.NoError(t, err)
	assert.Equal(t, "Workflow w1", got.Name)
	require.Len(t, got.Nodes, 1)

	commit, err := repo.repo.CommitObject(plumbing.NewHash(hash))
	require.NoError(t, err)
	assert.Equal(t, "add w1", commit.Message)
	assert.Equal(t, "tester", commit.Author.Name)

	assert.Equal(t, []api.SourceControlEvent{api.CommitEvent{Message: "add w1"}}, rec.all())
}

func TestCommitWorkflow_RejectsMissingID(t *testing.T) {
	repo, rec := newTestRepo(t)

	_, err := repo.CommitWorkflow(context.Background(), &api.Graph{Name: "anonymous"}, "nope")
	assert.Equal(t, api.ErrCodeInvalidPayload, api.ViolationCode(err))

	_, err = repo.CommitWorkflow(context.Background(), nil, "nope")
	assert.Equal(t, api.ErrCodeInvalidPayload, api.ViolationCode(err))
	assert.Empty(t, rec.all())
}

func TestCommitWorkflow_RejectsIDsOutsideWorkflowsDir(t *testing.T) {
	repo, rec := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"../../escaped", "../escaped", "a/b", `a\b`, "/abs"} {
		_, err := repo.CommitWorkflow(ctx, sampleGraph(id), "escape")
		assert.Equal(t, api.ErrCodeInvalidPayload, api.ViolationCode(err), id)

		_, err = repo.ReadWorkflow(id)
		assert.Equal(t, api.ErrCodeInvalidPayload, api.ViolationCode(err), id)
	}

	assert.NoFileExists(t, filepath.Join(filepath.Dir(repo.Dir()), "escaped.json"))
	assert.NoFileExists(t, filepath.Join(repo.Dir(), "escaped.json"))
	assert.NoDirExists(t, filepath.Join(repo.Dir(), workflowsDir, "a"))
	assert.Empty(t, rec.all())
}

func TestCommit_NothingToCommit(t *testing.T) {
	repo, rec := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CommitWorkflow(ctx, sampleGraph("w1"), "add w1")
	require.NoError(t, err)

	_, err = repo.Commit(ctx, "empty")
	assert.ErrorIs(t, err, ErrNothingToCommit)

	_, err = repo.CommitWorkflow(ctx, sampleGraph("w1"), "same content")
	assert.ErrorIs(t, err, ErrNothingToCommit)

	assert.Len(t, rec.all(), 1, "failed commits publish nothing")
}

func TestCommit_StagesUntrackedFiles(t *testing.T) {
	repo, rec := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(repo.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), "README.md"), []byte("# canvas\n"), 0o644))

	_, err := repo.Commit(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, []api.SourceControlEvent{api.CommitEvent{Message: "docs"}}, rec.all())
}

func TestCommit_CanceledContext(t *testing.T) {
	repo, rec := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.CommitWorkflow(ctx, sampleGraph("w1"), "add w1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, rec.all())
}

func TestCheckout_CreatesAndSwitchesBranches(t *testing.T) {
	repo, rec := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CommitWorkflow(ctx, sampleGraph("w1"), "add w1")
	require.NoError(t, err)

	require.NoError(t, repo.Checkout(ctx, "feature", true))
	branch, err := repo.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "feature", branch)

	require.NoError(t, repo.Checkout(ctx, "main", false))

	err = repo.Checkout(ctx, "missing", false)
	require.Error(t, err)

	assert.Equal(t, []api.SourceControlEvent{
		api.CommitEvent{Message: "add w1"},
		api.BranchChangedEvent{BranchName: "feature"},
		api.BranchChangedEvent{BranchName: "main"},
	}, rec.all())
}

func TestSetRepository_ReplacesOrigin(t *testing.T) {
	repo, rec := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetRepository(ctx, "https://example.com/a.git"))
	require.NoError(t, repo.SetRepository(ctx, "https://example.com/b.git"))

	remote, err := repo.repo.Remote("origin")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/b.git"}, remote.Config().URLs)

	err = repo.SetRepository(ctx, "")
	assert.Equal(t, api.ErrCodeInvalidPayload, api.ViolationCode(err))

	assert.Equal(t, []api.SourceControlEvent{
		api.RepositoryChangedEvent{RepositoryURL: "https://example.com/a.git"},
		api.RepositoryChangedEvent{RepositoryURL: "https://example.com/b.git"},
	}, rec.all())
}

func TestPushPull_WithoutRemote(t *testing.T) {
	repo, rec := newTestRepo(t)
	ctx := context.Background()

	assert.ErrorIs(t, repo.Push(ctx), ErrNoRemote)
	assert.ErrorIs(t, repo.Pull(ctx), ErrNoRemote)
	assert.Empty(t, rec.all())
}

func TestPushPull_RoundTrip(t *testing.T) {
	requireGitTransport(t)
	ctx := context.Background()

	bareDir := filepath.Join(t.TempDir(), "remote.git")
	bare, err := git.PlainInit(bareDir, true)
	require.NoError(t, err)
	require.NoError(t, bare.Storer.SetReference(
		plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))))

	author, authorEvents := newTestRepo(t)
	_, err = author.CommitWorkflow(ctx, sampleGraph("w1"), "add w1")
	require.NoError(t, err)
	require.NoError(t, author.SetRepository(ctx, bareDir))
	require.NoError(t, author.Push(ctx))

	cloneDir := filepath.Join(t.TempDir(), "clone")
	_, err = git.PlainClone(cloneDir, false, &git.CloneOptions{URL: bareDir})
	require.NoError(t, err)

	ch := eventbus.NewSourceControlChannel()
	t.Cleanup(ch.Close)
	readerEvents := &recorder{}
	readerEvents.attach(ch)
	reader, err := Open(Options{Dir: cloneDir, Channel: ch})
	require.NoError(t, err)

	got, err := reader.ReadWorkflow("w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", got.ID)

	// Nothing new yet.
	require.NoError(t, reader.Pull(ctx))

	_, err = author.CommitWorkflow(ctx, sampleGraph("w2"), "add w2")
	require.NoError(t, err)
	require.NoError(t, author.Push(ctx))
	require.NoError(t, reader.Pull(ctx))

	got, err = reader.ReadWorkflow("w2")
	require.NoError(t, err)
	assert.Equal(t, "Workflow w2", got.Name)

	assert.Equal(t, []api.SourceControlEvent{api.PullEvent{}, api.PullEvent{}}, readerEvents.all())
	assert.Equal(t, []api.SourceControlEvent{
		api.CommitEvent{Message: "add w1"},
		api.RepositoryChangedEvent{RepositoryURL: bareDir},
		api.PushEvent{},
		api.CommitEvent{Message: "add w2"},
		api.PushEvent{},
	}, authorEvents.all())
}

func TestPublish_HandlerFailureReportedToObserver(t *testing.T) {
	ch := eventbus.NewSourceControlChannel()
	t.Cleanup(ch.Close)
	ch.OnCommit(func(context.Context, api.CommitEvent) error {
		return errors.New("listener down")
	})
	metrics := &api.BasicMetrics{}

	repo, err := Open(Options{Dir: t.TempDir(), Channel: ch, Observer: metrics})
	require.NoError(t, err)

	_, err = repo.CommitWorkflow(context.Background(), sampleGraph("w1"), "add w1")
	require.NoError(t, err, "the commit itself succeeded")
	assert.Equal(t, int64(1), metrics.Snapshot().HandlerFailed)
}
