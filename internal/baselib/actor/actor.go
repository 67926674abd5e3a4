package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrBehaviorPanic is returned to an asker when the behaviour panicked while
// handling its message.
var ErrBehaviorPanic = errors.New("actor behaviour panicked")

// ActorConfig configures a new Actor.
type ActorConfig[M Message, R any] struct {
	// ID identifies the actor in logs.
	ID string

	// Behavior handles the actor's messages.
	Behavior ActorBehavior[M, R]

	// DLO receives messages left in the mailbox when the actor stops.
	// Optional.
	DLO TellOnlyRef[Message]

	// MailboxSize is the mailbox capacity. Values below one mean one.
	MailboxSize int

	// Wg, if set, is incremented on Start and released when the actor's
	// goroutine exits.
	Wg *sync.WaitGroup

	// CleanupTimeout bounds Stoppable.OnStop. Defaults to five seconds.
	CleanupTimeout fn.Option[time.Duration]
}

// Actor runs a behaviour over a mailbox on a dedicated goroutine.
type Actor[M Message, R any] struct {
	id             string
	behavior       ActorBehavior[M, R]
	mailbox        *mailbox[M, R]
	dlo            TellOnlyRef[Message]
	wg             *sync.WaitGroup
	cleanupTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	startOnce sync.Once
	stopOnce  sync.Once

	ref *actorRef[M, R]
}

// NewActor builds an actor. Nothing is processed until Start.
func NewActor[M Message, R any](cfg ActorConfig[M, R]) *Actor[M, R] {
	ctx, cancel := context.WithCancel(context.Background())

	a := &Actor[M, R]{
		id:             cfg.ID,
		behavior:       cfg.Behavior,
		mailbox:        newMailbox[M, R](ctx, cfg.MailboxSize),
		dlo:            cfg.DLO,
		wg:             cfg.Wg,
		cleanupTimeout: cfg.CleanupTimeout.UnwrapOr(5 * time.Second),
		ctx:            ctx,
		cancel:         cancel,
	}
	a.ref = &actorRef[M, R]{actor: a}

	return a
}

// Start launches the processing goroutine. Later calls do nothing.
func (a *Actor[M, R]) Start() {
	a.startOnce.Do(func() {
		log.DebugS(a.ctx, "Starting actor", "actor_id", a.id)

		if a.wg != nil {
			a.wg.Add(1)
		}
		go a.run()
	})
}

// Stop cancels the actor. Queued messages go to the DLO and pending asks
// fail with ErrActorTerminated.
func (a *Actor[M, R]) Stop() {
	a.stopOnce.Do(a.cancel)
}

// Ref returns the actor's reference.
func (a *Actor[M, R]) Ref() ActorRef[M, R] {
	return a.ref
}

// TellRef returns a reference that can only Tell.
func (a *Actor[M, R]) TellRef() TellOnlyRef[M] {
	return a.ref
}

// QueueDepth reports how many messages wait in the mailbox.
func (a *Actor[M, R]) QueueDepth() int {
	return a.mailbox.depth()
}

func (a *Actor[M, R]) run() {
	if a.wg != nil {
		defer a.wg.Done()
	}

	for env := range a.mailbox.receive(a.ctx) {
		a.handle(env)
	}

	a.mailbox.close()

	drained := 0
	for env := range a.mailbox.drain() {
		drained++

		if a.dlo != nil {
			a.dlo.Tell(context.Background(), env.message)
		}
		if env.promise != nil {
			env.promise.Complete(fn.Err[R](ErrActorTerminated))
		}
	}

	if stoppable, ok := a.behavior.(Stoppable); ok {
		ctx, cancel := context.WithTimeout(
			context.Background(), a.cleanupTimeout,
		)
		if err := stoppable.OnStop(ctx); err != nil {
			log.WarnS(ctx, "Actor cleanup failed", err,
				"actor_id", a.id)
		}
		cancel()
	}

	log.DebugS(a.ctx, "Actor terminated", "actor_id", a.id,
		"drained_messages", drained)
}

// handle runs the behaviour for a single envelope. Tell messages run under
// the actor's context only, so a sender going away does not abort work that
// was already accepted.
func (a *Actor[M, R]) handle(env envelope[M, R]) {
	ctx, cancel := a.ctx, context.CancelFunc(func() {})
	if env.promise != nil {
		ctx, cancel = mergeContexts(a.ctx, env.callerCtx)
	}
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrBehaviorPanic, r)
			log.ErrorS(ctx, "Actor behaviour panicked", err,
				"actor_id", a.id,
				"msg_type", env.message.MessageType())

			if env.promise != nil {
				env.promise.Complete(fn.Err[R](err))
			}
		}
	}()

	log.TraceS(ctx, "Actor processing message", "actor_id", a.id,
		"msg_type", env.message.MessageType(),
		"is_ask", env.promise != nil)

	result := a.behavior.Receive(ctx, env.message)
	if env.promise != nil {
		env.promise.Complete(result)
	}
}

// mergeContexts returns a context that is done as soon as either parent is,
// carrying the earlier of the two deadlines.
func mergeContexts(actorCtx, callerCtx context.Context) (context.Context,
	context.CancelFunc) {

	base := actorCtx
	if d2, ok := callerCtx.Deadline(); ok {
		if d1, ok := actorCtx.Deadline(); !ok || d2.Before(d1) {
			base = callerCtx
		}
	}

	merged, cancel := context.WithCancel(base)
	stop := context.AfterFunc(actorCtx, cancel)
	stopCaller := context.AfterFunc(callerCtx, cancel)

	return merged, func() {
		stop()
		stopCaller()
		cancel()
	}
}

// actorRef is the ActorRef handed out by Actor.
type actorRef[M Message, R any] struct {
	actor *Actor[M, R]
}

// ID returns the actor id.
func (r *actorRef[M, R]) ID() string {
	return r.actor.id
}

// Tell enqueues msg. Messages refused because the actor is gone are routed
// to the DLO; messages refused because the caller gave up are dropped.
func (r *actorRef[M, R]) Tell(ctx context.Context, msg M) {
	env := envelope[M, R]{message: msg, callerCtx: ctx}
	if r.actor.mailbox.send(ctx, env) {
		return
	}

	if ctx.Err() != nil && r.actor.ctx.Err() == nil {
		log.TraceS(ctx, "Tell dropped, caller cancelled",
			"actor_id", r.actor.id, "msg_type", msg.MessageType())

		return
	}

	log.DebugS(ctx, "Tell refused, routing to DLO",
		"actor_id", r.actor.id, "msg_type", msg.MessageType())

	if r.actor.dlo != nil {
		r.actor.dlo.Tell(context.Background(), msg)
	}
}

// Ask enqueues msg and returns a future for the reply.
func (r *actorRef[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	p := NewPromise[R]()

	if r.actor.ctx.Err() != nil {
		p.Complete(fn.Err[R](ErrActorTerminated))
		return p.Future()
	}

	env := envelope[M, R]{message: msg, promise: p, callerCtx: ctx}
	if !r.actor.mailbox.send(ctx, env) {
		err := ctx.Err()
		if err == nil || r.actor.ctx.Err() != nil {
			err = ErrActorTerminated
		}
		p.Complete(fn.Err[R](err))
	}

	return p.Future()
}
