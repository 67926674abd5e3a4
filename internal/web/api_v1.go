package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/labstack/echo/v4"
	"github.com/lamp-blog/lamp/internal/article"
	"github.com/lamp-blog/lamp/internal/comment"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// registerAPIV1Routes registers the /api/v1 JSON routes.
func (s *Server) registerAPIV1Routes() {
	v1 := s.echo.Group("/api/v1")

	v1.GET("/articles", s.handleListArticles)
	v1.POST("/articles", s.handleCreateArticle)
	v1.GET("/articles/:id", s.handleGetArticle)
	v1.DELETE("/articles/:id", s.handleDeleteArticle)
	v1.POST("/articles/:id/publish", s.handlePublishArticle)
	v1.POST("/articles/:id/restore", s.handleRestoreArticle)

	v1.GET("/articles/:id/comments", s.handleListComments)
	v1.POST("/articles/:id/comments", s.handleCreateComment)
	v1.DELETE("/comments/:id", s.handleDeleteComment)

	v1.GET("/reviewers/:id/jobs", s.handleReviewerJobs)
	v1.GET("/review-jobs", s.handlePendingJobs)
	v1.GET("/review-jobs/:id", s.handleGetReviewJob)
	v1.POST("/review-jobs/:id/decision", s.handleDecision)
	v1.GET("/contents/:type/:id/review", s.handleContentReview)

	v1.GET("/dispatch/failures", s.handleDispatchFailures)
}

// APIV1Article represents an article in the JSON API.
type APIV1Article struct {
	ID           int64   `json:"id"`
	AuthorID     int64   `json:"author_id"`
	Title        string  `json:"title"`
	Body         string  `json:"body"`
	HTML         string  `json:"html,omitempty"`
	Status       string  `json:"status"`
	RejectReason string  `json:"reject_reason,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	PublishedAt  *string `json:"published_at,omitempty"`
}

// APIV1Comment represents a comment in the JSON API.
type APIV1Comment struct {
	ID           int64  `json:"id"`
	ArticleID    int64  `json:"article_id"`
	ParentID     *int64 `json:"parent_id,omitempty"`
	AuthorID     int64  `json:"author_id"`
	Body         string `json:"body"`
	HTML         string `json:"html,omitempty"`
	Status       string `json:"status"`
	RejectReason string `json:"reject_reason,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optionalTime(o fn.Option[time.Time]) *string {
	if o.IsNone() {
		return nil
	}
	s := formatTime(o.UnwrapOr(time.Time{}))

	return &s
}

func toAPIV1Article(a article.Article) APIV1Article {
	return APIV1Article{
		ID:           a.ID,
		AuthorID:     a.AuthorID,
		Title:        a.Title,
		Body:         a.Body,
		HTML:         a.HTML,
		Status:       a.Status.String(),
		RejectReason: a.RejectReason,
		CreatedAt:    formatTime(a.CreatedAt),
		UpdatedAt:    formatTime(a.UpdatedAt),
		PublishedAt:  optionalTime(a.PublishedAt),
	}
}

func toAPIV1Comment(c comment.Comment) APIV1Comment {
	out := APIV1Comment{
		ID:           c.ID,
		ArticleID:    c.ArticleID,
		AuthorID:     c.AuthorID,
		Body:         c.Body,
		HTML:         c.HTML,
		Status:       c.Status.String(),
		RejectReason: c.RejectReason,
		CreatedAt:    formatTime(c.CreatedAt),
	}
	if c.ParentID.IsSome() {
		parent := c.ParentID.UnwrapOr(0)
		out.ParentID = &parent
	}

	return out
}

// createArticleRequest is the body of POST /api/v1/articles.
type createArticleRequest struct {
	AuthorID int64  `json:"author_id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// Validate implements validation.Validatable.
func (r createArticleRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AuthorID, validation.Required,
			validation.Min(int64(1))),
		validation.Field(&r.Title, validation.Required,
			validation.RuneLength(1, article.MaxTitleLen)),
		validation.Field(&r.Body, validation.Required),
	)
}

// createCommentRequest is the body of POST /api/v1/articles/:id/comments.
type createCommentRequest struct {
	AuthorID int64  `json:"author_id"`
	ParentID *int64 `json:"parent_id"`
	Body     string `json:"body"`
}

// Validate implements validation.Validatable.
func (r createCommentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AuthorID, validation.Required,
			validation.Min(int64(1))),
		validation.Field(&r.ParentID, validation.NilOrNotEmpty),
		validation.Field(&r.Body, validation.Required,
			validation.RuneLength(1, comment.MaxBodyLen)),
	)
}

// bindValid decodes the JSON body into req and validates it.
func bindValid(c echo.Context, req validation.Validatable) error {
	if err := c.Bind(req); err != nil {
		return err
	}

	return req.Validate()
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad %s %q", review.ErrInvalidArgument,
			name, c.Param(name))
	}

	return id, nil
}

// queryInt parses an optional bounded integer query parameter.
func queryInt(c echo.Context, name string, def, max int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad %s %q", review.ErrInvalidArgument,
			name, raw)
	}
	if max > 0 && n > max {
		n = max
	}

	return n, nil
}

// handleListArticles handles GET /api/v1/articles.
func (s *Server) handleListArticles(c echo.Context) error {
	limit, err := queryInt(c, "limit", defaultPageSize, maxPageSize)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0, 0)
	if err != nil {
		return err
	}

	articles, err := s.cfg.Articles.ListPublished(
		c.Request().Context(), limit, offset,
	)
	if err != nil {
		return err
	}

	out := make([]APIV1Article, 0, len(articles))
	for _, a := range articles {
		out = append(out, toAPIV1Article(a))
	}

	return c.JSON(http.StatusOK, map[string]any{"articles": out})
}

// handleCreateArticle handles POST /api/v1/articles.
func (s *Server) handleCreateArticle(c echo.Context) error {
	var req createArticleRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	a, err := s.cfg.Articles.CreateDraft(
		c.Request().Context(), req.AuthorID, req.Title, req.Body,
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toAPIV1Article(a))
}

// handleGetArticle handles GET /api/v1/articles/:id.
func (s *Server) handleGetArticle(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	a, err := s.cfg.Articles.GetArticle(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAPIV1Article(a))
}

// handlePublishArticle handles POST /api/v1/articles/:id/publish. The
// article enters review; the job is created asynchronously, hence 202.
func (s *Server) handlePublishArticle(c echo.Context) error {
	return s.moveArticle(c, http.StatusAccepted,
		s.cfg.Articles.PublishArticle)
}

// handleDeleteArticle handles DELETE /api/v1/articles/:id.
func (s *Server) handleDeleteArticle(c echo.Context) error {
	return s.moveArticle(c, http.StatusOK, s.cfg.Articles.DeleteArticle)
}

// handleRestoreArticle handles POST /api/v1/articles/:id/restore. Restored
// articles go back through review.
func (s *Server) handleRestoreArticle(c echo.Context) error {
	return s.moveArticle(c, http.StatusAccepted,
		s.cfg.Articles.RestoreArticle)
}

func (s *Server) moveArticle(c echo.Context, status int,
	move func(ctx context.Context, id int64) (article.Article, error)) error {

	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	a, err := move(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(status, toAPIV1Article(a))
}

// handleListComments handles GET /api/v1/articles/:id/comments.
func (s *Server) handleListComments(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	comments, err := s.cfg.Comments.ListArticleComments(
		c.Request().Context(), id,
	)
	if err != nil {
		return err
	}

	out := make([]APIV1Comment, 0, len(comments))
	for _, cm := range comments {
		out = append(out, toAPIV1Comment(cm))
	}

	return c.JSON(http.StatusOK, map[string]any{"comments": out})
}

// handleCreateComment handles POST /api/v1/articles/:id/comments.
func (s *Server) handleCreateComment(c echo.Context) error {
	articleID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req createCommentRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}

	parent := fn.None[int64]()
	if req.ParentID != nil {
		parent = fn.Some(*req.ParentID)
	}

	cm, err := s.cfg.Comments.CreateComment(
		c.Request().Context(), req.AuthorID, articleID, parent,
		req.Body,
	)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, toAPIV1Comment(cm))
}

// handleDeleteComment handles DELETE /api/v1/comments/:id.
func (s *Server) handleDeleteComment(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	cm, err := s.cfg.Comments.DeleteComment(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAPIV1Comment(cm))
}
