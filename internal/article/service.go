// Package article manages blog articles through their publication
// lifecycle and applies review outcomes to them.
package article

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

// DefaultDedupeSize is the number of review event ids remembered.
const DefaultDedupeSize = 4096

// MaxTitleLen bounds article titles.
const MaxTitleLen = 200

// EventPublisher receives content events. Usually the content bus.
type EventPublisher interface {
	Publish(ctx context.Context, ev content.Event)
}

// Article is an article as seen by callers.
type Article struct {
	ID           int64
	AuthorID     int64
	Title        string
	Body         string
	HTML         string
	Status       content.Status
	RejectReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	PublishedAt  fn.Option[time.Time]
}

// Ref returns the content descriptor of the article.
func (a Article) Ref() content.Ref {
	return content.Ref{
		ID:       content.FormatID(a.ID),
		Type:     content.TypeArticle,
		AuthorID: a.AuthorID,
	}
}

func fromStore(a store.Article) Article {
	out := Article{
		ID:           a.ID,
		AuthorID:     a.AuthorID,
		Title:        a.Title,
		Body:         a.BodyMD,
		HTML:         a.BodyHTML,
		Status:       a.Status,
		RejectReason: a.RejectReason,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if a.PublishedAt != nil {
		out.PublishedAt = fn.Some(*a.PublishedAt)
	}

	return out
}

// Config holds the dependencies of the article service.
type Config struct {
	Store    store.Storage
	Events   EventPublisher
	Renderer *markdown.Renderer

	// DedupeSize bounds the review event ids remembered by the marker.
	DedupeSize int
}

// Service owns articles. It is also the review.StatusMarker for the
// article content type.
type Service struct {
	store  store.Storage
	events EventPublisher
	render *markdown.Renderer
	seen   *lru.Cache[string, struct{}]
}

// NewService creates an article service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Events == nil {
		return nil, fmt.Errorf("article service needs a store and an " +
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

// CreateDraft stores a new draft. Titles are unique per author.
func (s *Service) CreateDraft(ctx context.Context, authorID int64, title,
	body string) (Article, error) {

	title = strings.TrimSpace(title)
	switch {
	case authorID <= 0:
		return Article{}, fmt.Errorf("%w: author id %d",
			review.ErrInvalidArgument, authorID)
	case title == "":
		return Article{}, fmt.Errorf("%w: empty title",
			review.ErrInvalidArgument)
	case len(title) > MaxTitleLen:
		return Article{}, fmt.Errorf("%w: title longer than %d",
			review.ErrInvalidArgument, MaxTitleLen)
	}

	a, err := s.store.CreateArticle(ctx, store.CreateArticleParams{
		AuthorID: authorID,
		Title:    title,
		BodyMD:   body,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return Article{}, fmt.Errorf("%w: %q", content.ErrTitleExists,
			title)
	}
	if err != nil {
		return Article{}, err
	}

	log.DebugS(ctx, "Draft created", "article_id", a.ID,
		"author_id", authorID)

	return fromStore(a), nil
}

// GetArticle returns an article by id.
func (s *Service) GetArticle(ctx context.Context, id int64) (Article,
	error) {

	a, err := s.get(ctx, s.store, id)
	if err != nil {
		return Article{}, err
	}

	return fromStore(a), nil
}

func (s *Service) get(ctx context.Context, st store.ArticleStore,
	id int64) (store.Article, error) {

	a, err := st.GetArticle(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Article{}, fmt.Errorf("%w: article %d",
			content.ErrContentNotFound, id)
	}

	return a, err
}

// PublishArticle submits a draft or rejected article for review. The
// article becomes public once a reviewer approves it.
func (s *Service) PublishArticle(ctx context.Context, id int64) (Article,
	error) {

	return s.move(ctx, id, func(a store.Article) (content.Status, error) {
		if a.Status != content.StatusDraft &&
			a.Status != content.StatusReviewRejected {

			return "", fmt.Errorf("%w: cannot publish %s article",
				content.ErrInvalidTransition, a.Status)
		}

		return content.StatusReviewing, nil
	})
}

// DeleteArticle removes an article from every listing. The status it had
// is remembered.
func (s *Service) DeleteArticle(ctx context.Context, id int64) (Article,
	error) {

	return s.move(ctx, id, fixed(content.StatusDeleted))
}

// RestoreArticle brings back a deleted or forbidden article. It goes
// through review again before it is public.
func (s *Service) RestoreArticle(ctx context.Context, id int64) (Article,
	error) {

	return s.move(ctx, id, func(a store.Article) (content.Status, error) {
		if !a.Status.CanRestore() {
			return "", fmt.Errorf("%w: %s article cannot be "+
				"restored", content.ErrInvalidTransition, a.Status)
		}

		return content.StatusReviewing, nil
	})
}

// HideArticle takes a published article out of public listings.
func (s *Service) HideArticle(ctx context.Context, id int64) (Article,
	error) {

	return s.move(ctx, id, fixed(content.StatusHide))
}

// ShowArticle makes a hidden article public again.
func (s *Service) ShowArticle(ctx context.Context, id int64) (Article,
	error) {

	return s.move(ctx, id, fixed(content.StatusPublished))
}

// ForbidArticle takes a published article down for a policy violation.
func (s *Service) ForbidArticle(ctx context.Context, id int64) (Article,
	error) {

	return s.move(ctx, id, fixed(content.StatusForbidden))
}

func fixed(to content.Status) func(store.Article) (content.Status, error) {
	return func(store.Article) (content.Status, error) {
		return to, nil
	}
}

// move applies a lifecycle change chosen by next and announces it.
func (s *Service) move(ctx context.Context, id int64,
	next func(store.Article) (content.Status, error)) (Article, error) {

	var (
		before store.Article
		after  store.Article
	)
	err := s.store.WithTx(ctx, func(ctx context.Context,
		tx store.Storage) error {

		var err error
		before, err = s.get(ctx, tx, id)
		if err != nil {
			return err
		}

		to, err := next(before)
		if err != nil {
			return err
		}
		err = content.ValidateTransition(before.Status, to)
		if err != nil {
			return err
		}

		ok, err := tx.UpdateArticleStatus(ctx, store.UpdateStatusParams{
			ID:         id,
			From:       before.Status,
			To:         to,
			PrevStatus: before.Status,
			At:         time.Now(),
		})
		if err != nil {
			return fmt.Errorf("update article %d: %w", id, err)
		}
		if !ok {
			return fmt.Errorf("%w: article %d changed concurrently",
				content.ErrInvalidTransition, id)
		}

		after, err = tx.GetArticle(ctx, id)

		return err
	})
	if err != nil {
		return Article{}, err
	}

	out := fromStore(after)
	s.announce(ctx, out, before.Status)

	log.InfoS(ctx, "Article status changed", "article_id", id,
		"from", before.Status, "to", out.Status)

	return out, nil
}

// announce emits the status event for a change and, when the article
// entered review or became public, the matching publish event.
func (s *Service) announce(ctx context.Context, a Article,
	prev content.Status) {

	ref := a.Ref()
	s.events.Publish(ctx, content.NewStatusEvent(ref, fn.Some(prev),
		a.Status))

	switch a.Status {
	case content.StatusReviewing:
		s.events.Publish(ctx, content.NewPublishEvent(
			ref, content.StageReviewing,
		))

	case content.StatusPublished:
		s.events.Publish(ctx, content.NewPublishEvent(
			ref, content.StagePublished,
		))
	}
}

// ListPublished pages through public articles, newest first.
func (s *Service) ListPublished(ctx context.Context, limit,
	offset int) ([]Article, error) {

	rows, err := s.store.ListPublishedArticles(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	return fromStoreAll(rows), nil
}

// ListByAuthor lists an author's articles that are not deleted or
// forbidden.
func (s *Service) ListByAuthor(ctx context.Context,
	authorID int64) ([]Article, error) {

	rows, err := s.store.ListArticlesByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}

	return fromStoreAll(rows), nil
}

func fromStoreAll(rows []store.Article) []Article {
	out := make([]Article, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromStore(r))
	}

	return out
}
