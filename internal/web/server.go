// Package web serves the lampd JSON API, the live moderation feed and the
// metrics endpoint.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lamp-blog/lamp/internal/article"
	"github.com/lamp-blog/lamp/internal/comment"
	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/events"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FeedSubscriber is the bus subscription name of the moderation feed.
const FeedSubscriber = "web-moderation-feed"

// Config holds the dependencies of the web server.
type Config struct {
	Addr string

	Articles *article.Service
	Comments *comment.Service

	// Review is the review service actor. Review calls go through its
	// mailbox like every other client.
	Review review.ReviewActorRef

	// Failures is the dispatcher's error sink. Optional.
	Failures *review.ErrorSink

	// Feed is the content event bus streamed to /ws/moderation. Optional.
	Feed *events.Bus[content.Event]

	// Gatherer backs /metrics. Defaults to the prometheus default
	// registry.
	Gatherer prometheus.Gatherer
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr: "127.0.0.1:8080",
	}
}

// Server is the lampd HTTP server.
type Server struct {
	cfg  *Config
	echo *echo.Echo
	hub  *Hub
	feed *events.Subscription
}

// NewServer creates the server and registers its routes. The moderation
// hub starts immediately so no feed event is missed before Start.
func NewServer(cfg *Config) (*Server, error) {
	switch {
	case cfg.Articles == nil || cfg.Comments == nil:
		return nil, fmt.Errorf("web server needs article and comment " +
			"services")
	case cfg.Review == nil:
		return nil, fmt.Errorf("web server needs the review actor")
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(requestLogger)

	s := &Server{
		cfg:  cfg,
		echo: e,
		hub:  NewHub(),
	}
	go s.hub.Run()

	if cfg.Feed != nil {
		sub, err := cfg.Feed.Subscribe(
			FeedSubscriber, s.hub.handleContentEvent,
			events.DefaultBuffer,
		)
		if err != nil {
			s.hub.Stop()
			return nil, fmt.Errorf("subscribe moderation feed: %w", err)
		}
		s.feed = sub
	}

	s.registerAPIV1Routes()
	e.GET("/ws/moderation", s.handleWebSocket)
	e.GET("/metrics", echo.WrapHandler(
		promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}),
	))

	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Hub returns the moderation feed hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.echo.Server.ReadTimeout = 15 * time.Second
	s.echo.Server.IdleTimeout = 60 * time.Second

	log.Infof("Starting web server on %s", s.cfg.Addr)

	err := s.echo.Start(s.cfg.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown stops the feed and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.feed != nil {
		s.feed.Unsubscribe()
	}
	s.hub.Stop()

	return s.echo.Shutdown(ctx)
}

// requestLogger logs every request at debug level.
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		req := c.Request()
		log.DebugS(req.Context(), "HTTP request",
			"method", req.Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"took", time.Since(start),
		)

		return err
	}
}
