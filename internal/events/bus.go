// Package events provides an in-process publish/subscribe bus. Every
// subscriber is an actor with its own mailbox, so a slow subscriber only
// delays itself.
package events

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/lamp-blog/lamp/internal/baselib/actor"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrDuplicateSubscriber is returned when a subscriber name is
	// already taken.
	ErrDuplicateSubscriber = errors.New("subscriber already registered")

	// ErrBusStopped is returned by Subscribe after Stop.
	ErrBusStopped = errors.New("event bus stopped")
)

// DefaultBuffer is the mailbox size used when Subscribe is given none.
const DefaultBuffer = 64

// Handler processes one event. Returned errors are logged; delivery is not
// retried.
type Handler[E actor.Message] func(ctx context.Context, event E) error

// Bus fans events out to named subscribers.
type Bus[E actor.Message] struct {
	name string

	subs *xsync.MapOf[string, *actor.Actor[E, struct{}]]

	mu      sync.RWMutex
	stopped bool

	wg sync.WaitGroup
}

// NewBus creates an empty bus. name shows up in logs.
func NewBus[E actor.Message](name string) *Bus[E] {
	return &Bus[E]{
		name: name,
		subs: xsync.NewMapOf[string, *actor.Actor[E, struct{}]](),
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	name string
	once sync.Once
	stop func()
}

// Name returns the subscriber name.
func (s *Subscription) Name() string {
	return s.name
}

// Unsubscribe removes the subscriber. Events already queued for it are
// dropped. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.stop)
}

// handlerBehavior adapts a Handler to an actor behaviour.
type handlerBehavior[E actor.Message] struct {
	bus     string
	name    string
	handler Handler[E]
}

func (h *handlerBehavior[E]) Receive(ctx context.Context,
	event E) fn.Result[struct{}] {

	if err := h.handler(ctx, event); err != nil {
		log.WarnS(ctx, "Event handler failed", err,
			"bus", h.bus, "subscriber", h.name,
			"event_type", event.MessageType())

		return fn.Err[struct{}](err)
	}

	return fn.Ok(struct{}{})
}

// Subscribe registers handler under name. buffer is the subscriber's
// mailbox size; publishers block once it is full.
func (b *Bus[E]) Subscribe(name string, handler Handler[E],
	buffer int) (*Subscription, error) {

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		return nil, ErrBusStopped
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	created := false
	a, _ := b.subs.LoadOrCompute(name, func() *actor.Actor[E, struct{}] {
		created = true

		return actor.NewActor(actor.ActorConfig[E, struct{}]{
			ID: fmt.Sprintf("%s/%s", b.name, name),
			Behavior: &handlerBehavior[E]{
				bus:     b.name,
				name:    name,
				handler: handler,
			},
			MailboxSize: buffer,
			Wg:          &b.wg,
		})
	})
	if !created {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSubscriber, name)
	}
	a.Start()

	log.DebugS(context.Background(), "Subscriber added", "bus", b.name,
		"subscriber", name)

	return &Subscription{
		name: name,
		stop: func() {
			if a, ok := b.subs.LoadAndDelete(name); ok {
				a.Stop()
			}
		},
	}, nil
}

// Publish hands event to every current subscriber. It returns once each
// subscriber has queued the event or ctx is done.
func (b *Bus[E]) Publish(ctx context.Context, event E) {
	b.subs.Range(func(_ string, a *actor.Actor[E, struct{}]) bool {
		a.TellRef().Tell(ctx, event)
		return ctx.Err() == nil
	})
}

// Subscribers lists the registered subscriber names in order.
func (b *Bus[E]) Subscribers() []string {
	var names []string
	b.subs.Range(func(name string, _ *actor.Actor[E, struct{}]) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)

	return names
}

// Stop removes every subscriber and waits for their goroutines to exit.
func (b *Bus[E]) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	b.subs.Range(func(name string, a *actor.Actor[E, struct{}]) bool {
		b.subs.Delete(name)
		a.Stop()
		return true
	})
	b.wg.Wait()
}
