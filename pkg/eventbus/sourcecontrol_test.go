package eventbus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/flowcanvas/pkg/api"
)

func TestSourceControlChannel_TypedHandlers(t *testing.T) {
	ctx := context.Background()
	ch := NewSourceControlChannel()

	var got []string
	ch.OnPull(func(ctx context.Context) error { got = append(got, "pull"); return nil })
	ch.OnPush(func(ctx context.Context) error { got = append(got, "push"); return nil })
	ch.OnCommit(func(ctx context.Context, ev api.CommitEvent) error {
		got = append(got, "commit:"+ev.Message)
		return nil
	})
	ch.OnBranchChanged(func(ctx context.Context, ev api.BranchChangedEvent) error {
		got = append(got, "branch:"+ev.BranchName)
		return nil
	})
	ch.OnRepositoryChanged(func(ctx context.Context, ev api.RepositoryChangedEvent) error {
		got = append(got, "repo:"+ev.RepositoryURL)
		return nil
	})

	require.NoError(t, ch.Publish(ctx, api.PullEvent{}))
	require.NoError(t, ch.Publish(ctx, api.PushEvent{}))
	require.NoError(t, ch.Publish(ctx, api.CommitEvent{Message: "x"}))
	require.NoError(t, ch.Publish(ctx, &api.BranchChangedEvent{BranchName: "feature"}))
	require.NoError(t, ch.Publish(ctx, api.RepositoryChangedEvent{RepositoryURL: "git@example.com:flows.git"}))

	assert.Equal(t, []string{
		"pull",
		"push",
		"commit:x",
		"branch:feature",
		"repo:git@example.com:flows.git",
	}, got)
}

func TestSourceControlChannel_CommitScenario(t *testing.T) {
	ctx := context.Background()
	ch := NewSourceControlChannel()

	var h1 []api.CommitEvent
	var h2Calls int
	h2 := func(ctx context.Context, ev api.CommitEvent) error {
		h2Calls++
		return nil
	}
	ch.OnCommit(func(ctx context.Context, ev api.CommitEvent) error {
		h1 = append(h1, ev)
		if len(h1) == 1 {
			ch.OnCommit(h2)
		}
		return nil
	})

	require.NoError(t, ch.PublishNamed(ctx, "commit", api.CommitEvent{Message: "x"}))
	require.Equal(t, []api.CommitEvent{{Message: "x"}}, h1)
	assert.Equal(t, 0, h2Calls)

	require.NoError(t, ch.PublishNamed(ctx, "commit", &api.CommitEvent{Message: "y"}))
	assert.Equal(t, 1, h2Calls)
	assert.Equal(t, 2, ch.Count(api.EventCommit))
}

func TestSourceControlChannel_PublishNamedRejectsContractViolations(t *testing.T) {
	ctx := context.Background()
	ch := NewSourceControlChannel()

	called := false
	ch.On(api.EventCommit, func(ctx context.Context, ev api.SourceControlEvent) error {
		called = true
		return nil
	})

	cases := []struct {
		name    string
		event   string
		payload any
		code    api.ErrorCode
	}{
		{"unknown event", "merge", nil, api.ErrCodeInvalidEvent},
		{"empty name", "", nil, api.ErrCodeInvalidEvent},
		{"commit without payload", "commit", nil, api.ErrCodeInvalidPayload},
		{"commit with string", "commit", "x", api.ErrCodeInvalidPayload},
		{"commit with map", "commit", map[string]any{"message": "x"}, api.ErrCodeInvalidPayload},
		{"commit with branch payload", "commit", api.BranchChangedEvent{BranchName: "b"}, api.ErrCodeInvalidPayload},
		{"commit with nil pointer", "commit", (*api.CommitEvent)(nil), api.ErrCodeInvalidPayload},
		{"pull with payload", "pull", api.CommitEvent{Message: "x"}, api.ErrCodeInvalidPayload},
		{"branch with repo payload", "branchChanged", api.RepositoryChangedEvent{}, api.ErrCodeInvalidPayload},
		{"repo with string", "repositoryChanged", "https://x", api.ErrCodeInvalidPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ch.PublishNamed(ctx, tc.event, tc.payload)
			require.Error(t, err)
			assert.True(t, api.IsContractViolation(err))
			assert.Equal(t, tc.code, api.ViolationCode(err))
		})
	}
	assert.False(t, called, "no handler runs for a rejected publish")
}

func TestSourceControlChannel_PublishNamedAcceptsNilForPayloadlessEvents(t *testing.T) {
	ctx := context.Background()
	ch := NewSourceControlChannel()

	pulls := 0
	ch.OnPull(func(ctx context.Context) error { pulls++; return nil })

	require.NoError(t, ch.PublishNamed(ctx, "pull", nil))
	require.NoError(t, ch.PublishNamed(ctx, "pull", api.PullEvent{}))
	require.NoError(t, ch.PublishNamed(ctx, "pull", &api.PullEvent{}))
	assert.Equal(t, 3, pulls)
}

func TestSourceControlChannel_PublishRejectsNil(t *testing.T) {
	ctx := context.Background()
	ch := NewSourceControlChannel()

	assert.Equal(t, api.ErrCodeInvalidPayload, api.ViolationCode(ch.Publish(ctx, nil)))
	assert.Equal(t, api.ErrCodeInvalidPayload, api.ViolationCode(ch.Publish(ctx, (*api.CommitEvent)(nil))))
}

func TestSourceControlChannel_HandlerFailureReported(t *testing.T) {
	ctx := context.Background()
	ch := NewSourceControlChannel()

	boom := errors.New("refresh failed")
	after := false
	ch.OnPull(func(ctx context.Context) error { return boom })
	ch.OnPull(func(ctx context.Context) error { after = true; return nil })

	err := ch.Publish(ctx, api.PullEvent{})
	assert.ErrorIs(t, err, boom)
	assert.True(t, after)
	assert.False(t, api.IsContractViolation(err))
}

func TestSourceControlChannel_OnceAndClose(t *testing.T) {
	ctx := context.Background()
	ch := NewSourceControlChannel()

	pushes := 0
	ch.Once(api.EventPush, func(ctx context.Context, ev api.SourceControlEvent) error {
		pushes++
		return nil
	})
	require.NoError(t, ch.Publish(ctx, api.PushEvent{}))
	require.NoError(t, ch.Publish(ctx, api.PushEvent{}))
	assert.Equal(t, 1, pushes)

	sub := ch.OnPush(func(ctx context.Context) error { pushes++; return nil })
	ch.Off(sub)
	require.NoError(t, ch.Publish(ctx, api.PushEvent{}))
	assert.Equal(t, 1, pushes)

	ch.OnPush(func(ctx context.Context) error { pushes++; return nil })
	ch.Close()
	require.NoError(t, ch.Publish(ctx, api.PushEvent{}))
	assert.Equal(t, 1, pushes)

	// Contract checks still apply after close.
	assert.True(t, api.IsContractViolation(ch.PublishNamed(ctx, "merge", nil)))
}
