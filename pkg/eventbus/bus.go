package eventbus

import (
	"context"
	"slices"
	"sync"
	"weak"

	"github.com/petrijr/flowcanvas/pkg/api"
)

// Handler receives the payload of one emitted event. Returning an error
// (or panicking) marks this handler as failed for the current round without
// affecting the others.
type Handler[P any] func(ctx context.Context, payload P) error

// Validator checks an (event name, payload) pair at the publish boundary.
// A non-nil error aborts the emit before any handler runs.
type Validator[P any] func(name string, payload P) error

// Bus is a synchronous publish/subscribe channel keyed by event name.
//
// Dispatch rules:
//   - Emit invokes the handlers registered for the name, in registration
//     order, before it returns.
//   - The handler list is snapshotted when Emit starts: handlers added during
//     dispatch only see later emits.
//   - A failing handler does not stop its siblings; failures are returned
//     together as *api.DispatchError after the round.
//
// Bus is safe for concurrent use. No lock is held while handlers run, so a
// handler may call On, Off or Emit on the same bus.
type Bus[P any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string][]*registration[P]
	validate Validator[P]
	closed   bool

	// unsubscribe is shared by every Subscription. It only holds a weak
	// pointer, so an outstanding Subscription does not keep the bus alive.
	unsubscribe func(name string, id uint64)
}

type registration[P any] struct {
	id      uint64
	handler Handler[P]
}

// Subscription identifies a single registration. It is returned by On and
// Once and is the only way to remove that registration.
type Subscription struct {
	name   string
	id     uint64
	remove func(name string, id uint64)
}

// Option configures a Bus.
type Option[P any] func(*Bus[P])

// WithValidator installs a publish-boundary check.
func WithValidator[P any](v Validator[P]) Option[P] {
	return func(b *Bus[P]) {
		b.validate = v
	}
}

// New creates an empty Bus.
func New[P any](opts ...Option[P]) *Bus[P] {
	b := &Bus[P]{handlers: make(map[string][]*registration[P])}
	wp := weak.Make(b)
	b.unsubscribe = func(name string, id uint64) {
		if bus := wp.Value(); bus != nil {
			bus.remove(name, id)
		}
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers handler for name. Registering the same handler twice creates
// two independent registrations.
//
// After Close, On returns an inert Subscription and the handler is never
// called.
func (b *Bus[P]) On(name string, handler Handler[P]) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscription{name: name, id: b.nextID, remove: b.unsubscribe}
	if b.closed {
		return sub
	}
	b.handlers[name] = append(b.handlers[name], &registration[P]{id: sub.id, handler: handler})
	return sub
}

// Once registers handler for a single invocation. The registration is
// removed before the handler runs, so it is gone even if the handler fails
// and it cannot fire again from a nested Emit.
func (b *Bus[P]) Once(name string, handler Handler[P]) *Subscription {
	var (
		mu    sync.Mutex
		fired bool
		sub   *Subscription
	)
	mu.Lock()
	defer mu.Unlock()
	sub = b.On(name, func(ctx context.Context, payload P) error {
		mu.Lock()
		if fired {
			mu.Unlock()
			return nil
		}
		fired = true
		self := sub
		mu.Unlock()

		self.Unsubscribe()
		return handler(ctx, payload)
	})
	return sub
}

// Off removes the registration behind sub. Removing an unknown or already
// removed subscription is a no-op.
func (b *Bus[P]) Off(sub *Subscription) {
	if sub == nil {
		return
	}
	b.remove(sub.name, sub.id)
}

// Unsubscribe removes this registration from its bus. It is idempotent and
// a no-op once the bus has been garbage collected.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.remove == nil {
		return
	}
	s.remove(s.name, s.id)
}

// Name returns the event name the subscription was registered for.
func (s *Subscription) Name() string {
	return s.name
}

func (b *Bus[P]) remove(name string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.handlers[name]
	i := slices.IndexFunc(regs, func(r *registration[P]) bool { return r.id == id })
	if i < 0 {
		return
	}
	// Copy on write: an in-flight Emit keeps iterating its own snapshot.
	next := make([]*registration[P], 0, len(regs)-1)
	next = append(next, regs[:i]...)
	next = append(next, regs[i+1:]...)
	if len(next) == 0 {
		delete(b.handlers, name)
		return
	}
	b.handlers[name] = next
}

// Emit dispatches payload to every handler registered for name at the time
// of the call. It returns a validation error without dispatching, nil when
// every handler succeeded, or *api.DispatchError listing the failures.
//
// Emit on a closed bus is a no-op.
func (b *Bus[P]) Emit(ctx context.Context, name string, payload P) error {
	if b.validate != nil {
		if err := b.validate(name, payload); err != nil {
			return err
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	snapshot := b.handlers[name]
	b.mu.Unlock()

	var failures []error
	for _, reg := range snapshot {
		if err := invoke(ctx, reg.handler, payload); err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return &api.DispatchError{Event: name, Failures: failures}
	}
	return nil
}

func invoke[P any](ctx context.Context, h Handler[P], payload P) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &api.HandlerPanicError{Value: r}
		}
	}()
	return h(ctx, payload)
}

// Count returns the number of registrations for name.
func (b *Bus[P]) Count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[name])
}

// Close drops every registration. Later On calls return inert
// subscriptions and later Emit calls do nothing.
func (b *Bus[P]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string][]*registration[P])
}

// Closed reports whether Close has been called.
func (b *Bus[P]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
