package eventbus

import (
	"context"
	"fmt"
	"slices"

	"github.com/petrijr/flowcanvas/pkg/api"
)

// SourceControlChannel is the session-wide bus for repository lifecycle
// events. Only the names in api.SourceControlEventNames are accepted, each
// with its fixed payload type.
type SourceControlChannel struct {
	bus *Bus[api.SourceControlEvent]
}

// NewSourceControlChannel creates an empty channel.
func NewSourceControlChannel() *SourceControlChannel {
	return &SourceControlChannel{
		bus: New(WithValidator(validateSourceControl)),
	}
}

func validateSourceControl(name string, ev api.SourceControlEvent) error {
	if !slices.Contains(api.SourceControlEventNames, api.EventName(name)) {
		return api.Violation(api.ErrCodeInvalidEvent, "event not part of the source-control contract", "event", name)
	}
	if ev == nil {
		return api.Violation(api.ErrCodeInvalidPayload, "missing payload", "event", name)
	}
	if string(ev.EventName()) != name {
		return api.Violation(api.ErrCodeInvalidPayload, "payload does not match event name",
			"event", name, "payload", fmt.Sprintf("%T", ev))
	}
	return nil
}

// Publish dispatches ev under its own name.
func (c *SourceControlChannel) Publish(ctx context.Context, ev api.SourceControlEvent) error {
	ev, err := dereference(ev)
	if err != nil {
		return err
	}
	return c.bus.Emit(ctx, string(ev.EventName()), ev)
}

// dereference turns pointer variants into values so handlers only ever see
// the value types.
func dereference(ev api.SourceControlEvent) (api.SourceControlEvent, error) {
	missing := api.Violation(api.ErrCodeInvalidPayload, "missing payload")
	switch p := ev.(type) {
	case nil:
		return nil, missing
	case *api.PullEvent:
		return api.PullEvent{}, nil
	case *api.PushEvent:
		return api.PushEvent{}, nil
	case *api.CommitEvent:
		if p == nil {
			return nil, missing
		}
		return *p, nil
	case *api.BranchChangedEvent:
		if p == nil {
			return nil, missing
		}
		return *p, nil
	case *api.RepositoryChangedEvent:
		if p == nil {
			return nil, missing
		}
		return *p, nil
	}
	return ev, nil
}

// PublishNamed is the untyped entry point used by bridges that receive
// events by name (for example from a JSON message). The payload must be the
// matching api event type, a pointer to it, or nil for pull/push; anything
// else is a contract violation.
func (c *SourceControlChannel) PublishNamed(ctx context.Context, name string, payload any) error {
	ev, err := coerceSourceControl(api.EventName(name), payload)
	if err != nil {
		return err
	}
	return c.bus.Emit(ctx, name, ev)
}

func coerceSourceControl(name api.EventName, payload any) (api.SourceControlEvent, error) {
	mismatch := func() error {
		return api.Violation(api.ErrCodeInvalidPayload, "payload does not match event name",
			"event", string(name), "payload", fmt.Sprintf("%T", payload))
	}

	switch name {
	case api.EventPull:
		switch payload.(type) {
		case nil, api.PullEvent, *api.PullEvent:
			return api.PullEvent{}, nil
		}
		return nil, mismatch()
	case api.EventPush:
		switch payload.(type) {
		case nil, api.PushEvent, *api.PushEvent:
			return api.PushEvent{}, nil
		}
		return nil, mismatch()
	case api.EventCommit:
		switch p := payload.(type) {
		case api.CommitEvent:
			return p, nil
		case *api.CommitEvent:
			if p != nil {
				return *p, nil
			}
		}
		return nil, mismatch()
	case api.EventBranchChanged:
		switch p := payload.(type) {
		case api.BranchChangedEvent:
			return p, nil
		case *api.BranchChangedEvent:
			if p != nil {
				return *p, nil
			}
		}
		return nil, mismatch()
	case api.EventRepositoryChanged:
		switch p := payload.(type) {
		case api.RepositoryChangedEvent:
			return p, nil
		case *api.RepositoryChangedEvent:
			if p != nil {
				return *p, nil
			}
		}
		return nil, mismatch()
	default:
		return nil, api.Violation(api.ErrCodeInvalidEvent, "event not part of the source-control contract", "event", string(name))
	}
}

// On registers a handler receiving the raw event for name.
func (c *SourceControlChannel) On(name api.EventName, h Handler[api.SourceControlEvent]) *Subscription {
	return c.bus.On(string(name), h)
}

// Once registers a single-shot handler for name.
func (c *SourceControlChannel) Once(name api.EventName, h Handler[api.SourceControlEvent]) *Subscription {
	return c.bus.Once(string(name), h)
}

// Off removes a registration made on this channel.
func (c *SourceControlChannel) Off(sub *Subscription) {
	c.bus.Off(sub)
}

func (c *SourceControlChannel) OnPull(fn func(ctx context.Context) error) *Subscription {
	return c.bus.On(string(api.EventPull), func(ctx context.Context, _ api.SourceControlEvent) error {
		return fn(ctx)
	})
}

func (c *SourceControlChannel) OnPush(fn func(ctx context.Context) error) *Subscription {
	return c.bus.On(string(api.EventPush), func(ctx context.Context, _ api.SourceControlEvent) error {
		return fn(ctx)
	})
}

func (c *SourceControlChannel) OnCommit(fn func(ctx context.Context, ev api.CommitEvent) error) *Subscription {
	return c.bus.On(string(api.EventCommit), func(ctx context.Context, ev api.SourceControlEvent) error {
		return fn(ctx, ev.(api.CommitEvent))
	})
}

func (c *SourceControlChannel) OnBranchChanged(fn func(ctx context.Context, ev api.BranchChangedEvent) error) *Subscription {
	return c.bus.On(string(api.EventBranchChanged), func(ctx context.Context, ev api.SourceControlEvent) error {
		return fn(ctx, ev.(api.BranchChangedEvent))
	})
}

func (c *SourceControlChannel) OnRepositoryChanged(fn func(ctx context.Context, ev api.RepositoryChangedEvent) error) *Subscription {
	return c.bus.On(string(api.EventRepositoryChanged), func(ctx context.Context, ev api.SourceControlEvent) error {
		return fn(ctx, ev.(api.RepositoryChangedEvent))
	})
}

// Count returns the number of registrations for name.
func (c *SourceControlChannel) Count(name api.EventName) int {
	return c.bus.Count(string(name))
}

// Close tears the channel down at the end of a session.
func (c *SourceControlChannel) Close() {
	c.bus.Close()
}
