package review

import (
	"sync"

	"github.com/lamp-blog/lamp/internal/baselib/actor"
)

// ReviewActorRef is the typed actor reference for the review service.
type ReviewActorRef = actor.ActorRef[ReviewRequest, ReviewResponse]

// ReviewTellOnlyRef is a tell-only reference to the review service.
type ReviewTellOnlyRef = actor.TellOnlyRef[ReviewRequest]

// ActorID is the id of the review service actor.
const ActorID = "review-service"

// NewServiceActor wraps svc in a started actor.
func NewServiceActor(svc *Service, mailboxSize int,
	wg *sync.WaitGroup) *actor.Actor[ReviewRequest, ReviewResponse] {

	a := actor.NewActor(actor.ActorConfig[ReviewRequest, ReviewResponse]{
		ID:          ActorID,
		Behavior:    svc,
		MailboxSize: mailboxSize,
		Wg:          wg,
	})
	a.Start()

	return a
}
