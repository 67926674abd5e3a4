// Package comment manages comments on articles. Every comment is reviewed
// before it is shown.
package comment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/markdown"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/lamp-blog/lamp/internal/store"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultDedupeSize is the number of review event ids remembered.
	DefaultDedupeSize = 4096

	// MaxBodyLen bounds comment bodies.
	MaxBodyLen = 10_000

	// DefaultListLimit is used when a listing is asked for no limit.
	DefaultListLimit = 50
)

// EventPublisher receives content events.
type EventPublisher interface {
	Publish(ctx context.Context, ev content.Event)
}

// Comment is a comment as seen by callers.
type Comment struct {
	ID           int64
	ArticleID    int64
	ParentID     fn.Option[int64]
	AuthorID     int64
	Body         string
	HTML         string
	Status       content.Status
	RejectReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ref returns the content descriptor of the comment.
func (c Comment) Ref() content.Ref {
	return content.Ref{
		ID:       content.FormatID(c.ID),
		Type:     content.TypeComment,
		AuthorID: c.AuthorID,
	}
}

func fromStore(c store.Comment) Comment {
	out := Comment{
		ID:           c.ID,
		ArticleID:    c.ArticleID,
		AuthorID:     c.AuthorID,
		Body:         c.BodyMD,
		HTML:         c.BodyHTML,
		Status:       c.Status,
		RejectReason: c.RejectReason,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if c.ParentID != nil {
		out.ParentID = fn.Some(*c.ParentID)
	}

	return out
}

func fromStoreAll(rows []store.Comment) []Comment {
	out := make([]Comment, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromStore(r))
	}

	return out
}

// Config holds the dependencies of the comment service.
type Config struct {
	Store      store.Storage
	Events     EventPublisher
	Renderer   *markdown.Renderer
	DedupeSize int
}

// Service owns comments and is the review.StatusMarker for them.
type Service struct {
	store  store.Storage
	events EventPublisher
	render *markdown.Renderer
	seen   *lru.Cache[string, struct{}]
}

// NewService creates a comment service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Events == nil {
		return nil, fmt.Errorf("comment service needs a store and an " +
			"event publisher")
	}
	if cfg.Renderer == nil {
		cfg.Renderer = markdown.NewRenderer()
	}
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = DefaultDedupeSize
	}

	seen, err := lru.New[string, struct{}](cfg.DedupeSize)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:  cfg.Store,
		events: cfg.Events,
		render: cfg.Renderer,
		seen:   seen,
	}, nil
}

// CreateComment stores a comment on a published article and submits it
// for review. A reply names its parent, which must be on the same
// article.
func (s *Service) CreateComment(ctx context.Context, authorID,
	articleID int64, parentID fn.Option[int64], body string) (Comment,
	error) {

	body = strings.TrimSpace(body)
	switch {
	case authorID <= 0:
		return Comment{}, fmt.Errorf("%w: author id %d",
			review.ErrInvalidArgument, authorID)
	case body == "":
		return Comment{}, fmt.Errorf("%w: empty comment",
			review.ErrInvalidArgument)
	case len(body) > MaxBodyLen:
		return Comment{}, fmt.Errorf("%w: comment longer than %d",
			review.ErrInvalidArgument, MaxBodyLen)
	}

	var created store.Comment
	err := s.store.WithTx(ctx, func(ctx context.Context,
		tx store.Storage) error {

		a, err := tx.GetArticle(ctx, articleID)
		if errors.Is(err, sql.ErrNoRows) ||
			(err == nil && !a.Status.IsPublicVisitable()) {

			return fmt.Errorf("%w: article %d",
				content.ErrContentNotFound, articleID)
		}
		if err != nil {
			return err
		}

		var parent *int64
		if parentID.IsSome() {
			pid := parentID.UnwrapOr(0)
			p, err := s.get(ctx, tx, pid)
			if err != nil {
				return err
			}
			if p.ArticleID != articleID {
				return fmt.Errorf("%w: parent %d belongs to "+
					"another article", review.ErrInvalidArgument,
					pid)
			}
			parent = &pid
		}

		created, err = tx.CreateComment(ctx, store.CreateCommentParams{
			ArticleID: articleID,
			ParentID:  parent,
			AuthorID:  authorID,
			BodyMD:    body,
		})

		return err
	})
	if err != nil {
		return Comment{}, err
	}

	c := fromStore(created)
	s.events.Publish(ctx, content.NewStatusEvent(
		c.Ref(), fn.None[content.Status](), c.Status,
	))
	s.events.Publish(ctx, content.NewPublishEvent(
		c.Ref(), content.StageReviewing,
	))

	log.DebugS(ctx, "Comment submitted", "comment_id", c.ID,
		"article_id", articleID)

	return c, nil
}

// GetComment returns a comment by id.
func (s *Service) GetComment(ctx context.Context, id int64) (Comment,
	error) {

	c, err := s.get(ctx, s.store, id)
	if err != nil {
		return Comment{}, err
	}

	return fromStore(c), nil
}

func (s *Service) get(ctx context.Context, st store.CommentStore,
	id int64) (store.Comment, error) {

	c, err := st.GetComment(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Comment{}, fmt.Errorf("%w: comment %d",
			content.ErrContentNotFound, id)
	}

	return c, err
}

// DeleteComment removes a comment.
func (s *Service) DeleteComment(ctx context.Context, id int64) (Comment,
	error) {

	var before, after store.Comment
	err := s.store.WithTx(ctx, func(ctx context.Context,
		tx store.Storage) error {

		var err error
		before, err = s.get(ctx, tx, id)
		if err != nil {
			return err
		}

		err = content.ValidateTransition(
			before.Status, content.StatusDeleted,
		)
		if err != nil {
			return err
		}

		ok, err := tx.UpdateCommentStatus(ctx, store.UpdateStatusParams{
			ID:   id,
			From: before.Status,
			To:   content.StatusDeleted,
			At:   time.Now(),
		})
		if err != nil {
			return fmt.Errorf("update comment %d: %w", id, err)
		}
		if !ok {
			return fmt.Errorf("%w: comment %d changed concurrently",
				content.ErrInvalidTransition, id)
		}

		after, err = tx.GetComment(ctx, id)

		return err
	})
	if err != nil {
		return Comment{}, err
	}

	c := fromStore(after)
	s.events.Publish(ctx, content.NewStatusEvent(
		c.Ref(), fn.Some(before.Status), c.Status,
	))

	return c, nil
}

// ListArticleComments lists the published comments of an article, oldest
// first.
func (s *Service) ListArticleComments(ctx context.Context,
	articleID int64) ([]Comment, error) {

	rows, err := s.store.ListArticleComments(ctx, articleID)
	if err != nil {
		return nil, err
	}

	return fromStoreAll(rows), nil
}

// ListComments lists the newest published comments.
func (s *Service) ListComments(ctx context.Context, limit int) ([]Comment,
	error) {

	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.store.ListPublishedComments(ctx, limit)
	if err != nil {
		return nil, err
	}

	return fromStoreAll(rows), nil
}
