package actorutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lamp-blog/lamp/internal/baselib/actor"
	"github.com/spaolacci/murmur3"
)

// Pool spreads messages over a fixed set of actors. Unkeyed messages are
// handed out round-robin. Keyed messages always land on the same member for
// the same key, so work sharing a key is processed in the order it was sent.
type Pool[M actor.Message, R any] struct {
	id string

	refs   []actor.ActorRef[M, R]
	actors []*actor.Actor[M, R]

	next atomic.Uint64

	wg sync.WaitGroup
}

// PoolConfig configures NewPool.
type PoolConfig[M actor.Message, R any] struct {
	// ID prefixes the member actor ids.
	ID string

	// Size is the number of member actors. Defaults to one.
	Size int

	// Factory builds the behaviour of member idx.
	Factory func(idx int) actor.ActorBehavior[M, R]

	// MailboxSize is the per-member mailbox capacity. Defaults to 100.
	MailboxSize int

	// DLO receives messages stranded in a member's mailbox on stop.
	DLO actor.TellOnlyRef[actor.Message]
}

// NewPool creates and starts the pool members.
func NewPool[M actor.Message, R any](cfg PoolConfig[M, R]) *Pool[M, R] {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 100
	}

	p := &Pool[M, R]{
		id:     cfg.ID,
		refs:   make([]actor.ActorRef[M, R], cfg.Size),
		actors: make([]*actor.Actor[M, R], cfg.Size),
	}

	for i := 0; i < cfg.Size; i++ {
		a := actor.NewActor(actor.ActorConfig[M, R]{
			ID:          fmt.Sprintf("%s-%d", cfg.ID, i),
			Behavior:    cfg.Factory(i),
			MailboxSize: cfg.MailboxSize,
			DLO:         cfg.DLO,
			Wg:          &p.wg,
		})
		a.Start()

		p.actors[i] = a
		p.refs[i] = a.Ref()
	}

	return p
}

// ID returns the pool id.
func (p *Pool[M, R]) ID() string {
	return p.id
}

// Size returns the number of members.
func (p *Pool[M, R]) Size() int {
	return len(p.refs)
}

// Slot returns the member index a key is routed to.
func (p *Pool[M, R]) Slot(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(len(p.refs)))
}

func (p *Pool[M, R]) roundRobin() actor.ActorRef[M, R] {
	return p.refs[p.next.Add(1)%uint64(len(p.refs))]
}

// Tell sends msg to the next member in round-robin order.
func (p *Pool[M, R]) Tell(ctx context.Context, msg M) {
	p.roundRobin().Tell(ctx, msg)
}

// Ask sends msg to the next member in round-robin order.
func (p *Pool[M, R]) Ask(ctx context.Context, msg M) actor.Future[R] {
	return p.roundRobin().Ask(ctx, msg)
}

// TellKeyed sends msg to the member owning key.
func (p *Pool[M, R]) TellKeyed(ctx context.Context, key string, msg M) {
	p.refs[p.Slot(key)].Tell(ctx, msg)
}

// AskKeyed asks the member owning key.
func (p *Pool[M, R]) AskKeyed(ctx context.Context, key string,
	msg M) actor.Future[R] {

	return p.refs[p.Slot(key)].Ask(ctx, msg)
}

// Broadcast tells msg to every member.
func (p *Pool[M, R]) Broadcast(ctx context.Context, msg M) {
	for _, ref := range p.refs {
		ref.Tell(ctx, msg)
	}
}

// QueueDepth sums the mailbox depth of all members.
func (p *Pool[M, R]) QueueDepth() int {
	total := 0
	for _, a := range p.actors {
		total += a.QueueDepth()
	}

	return total
}

// Stop stops every member and waits for their goroutines to exit.
func (p *Pool[M, R]) Stop() {
	for _, a := range p.actors {
		a.Stop()
	}

	p.wg.Wait()
}
