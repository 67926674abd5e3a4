// Package mcp exposes the moderation queue as MCP tools so assistants can
// triage review jobs.
package mcp

import (
	"context"
	"fmt"

	"github.com/lamp-blog/lamp/internal/build"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with the review dependencies.
type Server struct {
	server *mcp.Server

	review    *review.Service
	reviewRef review.ReviewActorRef
	failures  *review.ErrorSink
}

// Config holds configuration for the MCP server.
type Config struct {
	// Review is the review service. Required.
	Review *review.Service

	// ReviewActorRef is an optional actor reference for the review
	// service. If set, calls go through its mailbox.
	ReviewActorRef review.ReviewActorRef

	// Failures is the dispatcher's error sink. Optional.
	Failures *review.ErrorSink
}

// NewServer creates a new MCP server with the moderation tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Review == nil {
		return nil, fmt.Errorf("mcp server needs the review service")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "lampd",
		Version: build.Version(),
	}, nil)

	s := &Server{
		server:    mcpServer,
		review:    cfg.Review,
		reviewRef: cfg.ReviewActorRef,
		failures:  cfg.Failures,
	}
	s.registerTools()

	return s, nil
}

// Run serves the tools on the given transport until ctx ends or the peer
// disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	log.InfoS(ctx, "MCP server running")

	return s.server.Run(ctx, transport)
}

// registerTools registers the moderation tools.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "list_review_jobs",
		Description: "List review jobs of a reviewer, or the undecided " +
			"jobs of every reviewer when reviewer_id is omitted",
	}, s.handleListReviewJobs)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "make_review",
		Description: "Approve or reject a review job",
	}, s.handleMakeReview)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "get_review_info",
		Description: "Get a review job by id, or the newest job of a " +
			"content item",
	}, s.handleGetReviewInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_dispatch_failures",
		Description: "List status markers that failed to apply decisions",
	}, s.handleListDispatchFailures)
}
