// Package actor is a small actor runtime: every actor owns a mailbox and a
// goroutine that feeds messages to its behaviour one at a time. Callers talk
// to an actor through a reference, either fire-and-forget (Tell) or
// request-response (Ask).
package actor

import (
	"context"
	"errors"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// ErrActorTerminated is returned to askers whose message could not be
// processed because the target actor stopped.
var ErrActorTerminated = errors.New("actor terminated")

// BaseMessage is embedded by message types declared outside this package so
// they satisfy the sealed Message interface.
type BaseMessage struct{}

func (BaseMessage) messageMarker() {}

// Message is the sealed interface all actor messages implement.
type Message interface {
	messageMarker()

	// MessageType names the message for logging and routing.
	MessageType() string
}

// Future is the read side of an asynchronous result.
type Future[T any] interface {
	// Await blocks until the result is ready or ctx is done.
	Await(ctx context.Context) fn.Result[T]

	// ThenApply returns a new future holding fn applied to the value of
	// this one. Errors pass through untouched.
	ThenApply(ctx context.Context, fn func(T) T) Future[T]

	// OnComplete runs fn once the result is ready, or with ctx's error
	// if ctx finishes first.
	OnComplete(ctx context.Context, fn func(fn.Result[T]))
}

// Promise is the write side of a Future.
type Promise[T any] interface {
	// Future returns the future bound to this promise.
	Future() Future[T]

	// Complete sets the result. Only the first call wins; it reports
	// whether this call was the one that set it.
	Complete(result fn.Result[T]) bool
}

// BaseActorRef is the untyped part of every actor reference.
type BaseActorRef interface {
	// ID returns the actor's identifier.
	ID() string
}

// TellOnlyRef can only send fire-and-forget messages.
type TellOnlyRef[M Message] interface {
	BaseActorRef

	// Tell enqueues msg. If ctx ends before the mailbox accepts it, the
	// message is dropped.
	Tell(ctx context.Context, msg M)
}

// ActorRef adds request-response to TellOnlyRef.
type ActorRef[M Message, R any] interface {
	TellOnlyRef[M]

	// Ask enqueues msg and returns a future for the behaviour's reply.
	Ask(ctx context.Context, msg M) Future[R]
}

// ActorBehavior is the message handling logic of an actor.
type ActorBehavior[M Message, R any] interface {
	// Receive handles one message. For Ask messages ctx is cancelled
	// when either the actor stops or the asker gives up.
	Receive(ctx context.Context, msg M) fn.Result[R]
}

// Stoppable behaviours get a chance to release resources once the actor's
// loop has exited.
type Stoppable interface {
	OnStop(ctx context.Context) error
}
