package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	lamprpc "github.com/lamp-blog/lamp/internal/api/grpc"
	"github.com/lamp-blog/lamp/internal/article"
	"github.com/lamp-blog/lamp/internal/baselib/actor"
	"github.com/lamp-blog/lamp/internal/build"
	"github.com/lamp-blog/lamp/internal/comment"
	"github.com/lamp-blog/lamp/internal/config"
	"github.com/lamp-blog/lamp/internal/content"
	"github.com/lamp-blog/lamp/internal/db"
	"github.com/lamp-blog/lamp/internal/events"
	"github.com/lamp-blog/lamp/internal/markdown"
	"github.com/lamp-blog/lamp/internal/mcp"
	"github.com/lamp-blog/lamp/internal/review"
	"github.com/lamp-blog/lamp/internal/store"
	"github.com/lamp-blog/lamp/internal/web"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 5 * time.Second

var (
	serveREST      string
	serveGRPC      string
	serveMCP       bool
	serveReviewers []int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review daemon",
	Long: `Run the HTTP API, the gRPC health server and, optionally, the MCP
moderation tools on stdio. Decided review jobs that were never dispatched
are re-published on startup.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(
		&serveREST, "rest", "",
		"HTTP listen address (overrides config)",
	)
	serveCmd.Flags().StringVar(
		&serveGRPC, "grpc", "",
		"gRPC listen address (overrides config)",
	)
	serveCmd.Flags().BoolVar(
		&serveMCP, "mcp", false,
		"Serve the MCP moderation tools on stdio",
	)
	serveCmd.Flags().Int64SliceVar(
		&serveReviewers, "reviewers", nil,
		"Reviewer ids (overrides config)",
	)
}

// applyServeFlags layers the serve flags over cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("rest") {
		cfg.REST.Enabled = serveREST != ""
		cfg.REST.Listen = serveREST
	}
	if flags.Changed("grpc") {
		cfg.GRPC.Enabled = serveGRPC != ""
		cfg.GRPC.Listen = serveGRPC
	}
	if flags.Changed("mcp") {
		cfg.MCP.Enabled = serveMCP
	}
	if flags.Changed("reviewers") {
		cfg.Review.Reviewers = serveReviewers
	}

	return cfg.Validate()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, &cfg); err != nil {
		return err
	}

	logMgr, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer logMgr.Close()

	log.Infof("lampd version %s starting", build.Version())

	d, err := newDaemon(cfg, logMgr)
	if err != nil {
		return err
	}
	defer d.close()

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	return d.run(ctx)
}

// daemon holds the running components of lampd.
type daemon struct {
	cfg config.Config

	dbStore *db.Store
	store   store.Storage
	bus     *events.Bus[content.Event]

	articles *article.Service
	comments *comment.Service

	registry    *review.Registry
	dispatcher  *review.Dispatcher
	reviews     *review.Service
	submissions *events.Subscription
	reviewActor *actor.Actor[review.ReviewRequest, review.ReviewResponse]
	actorWg     sync.WaitGroup

	promReg *prometheus.Registry

	web  *web.Server
	grpc *lamprpc.Server
	mcp  *mcp.Server
}

// newDaemon opens the database and builds every component. Nothing
// listens until run.
func newDaemon(cfg config.Config, logMgr *build.LogManager) (*daemon,
	error) {

	d := &daemon{cfg: cfg}

	var err error
	d.dbStore, err = db.Open(
		cfg.Database.Path, logMgr.Slog(storeSubsystem), db.WithBackup(),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d.store = store.NewSqlcStore(d.dbStore)

	if err := d.buildServices(); err != nil {
		d.close()
		return nil, err
	}
	if err := d.buildFrontends(); err != nil {
		d.close()
		return nil, err
	}

	return d, nil
}

// buildServices wires content services, markers and the review flow.
func (d *daemon) buildServices() error {
	cfg := d.cfg

	d.bus = events.NewBus[content.Event]("content")
	renderer := markdown.NewRenderer()

	var err error
	d.articles, err = article.NewService(article.Config{
		Store:      d.store,
		Events:     d.bus,
		Renderer:   renderer,
		DedupeSize: cfg.Review.DedupeSize,
	})
	if err != nil {
		return err
	}
	d.comments, err = comment.NewService(comment.Config{
		Store:      d.store,
		Events:     d.bus,
		Renderer:   renderer,
		DedupeSize: cfg.Review.DedupeSize,
	})
	if err != nil {
		return err
	}

	d.registry, err = review.NewRegistry(d.articles, d.comments)
	if err != nil {
		return err
	}

	d.promReg = prometheus.NewRegistry()
	d.promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := review.NewMetrics(d.promReg)

	dc := cfg.Dispatch
	d.dispatcher, err = review.NewDispatcher(review.DispatcherConfig{
		Registry:      d.registry,
		Acker:         d.store,
		Workers:       dc.Workers,
		MailboxSize:   dc.MailboxSize,
		Concurrency:   dc.Concurrency,
		MarkerTimeout: dc.MarkerTimeout.Duration,
		MaxAttempts:   dc.MaxAttempts,
		RetryBackoff:  dc.RetryBackoff.Duration,
		DrainTimeout:  dc.DrainTimeout.Duration,
		Sink:          review.NewErrorSink(dc.SinkCapacity),
		Metrics:       metrics,
	})
	if err != nil {
		return err
	}

	svcCfg := review.ServiceConfig{
		Store:     d.store,
		Registry:  d.registry,
		Publisher: d.dispatcher,
		Selector:  newSelector(cfg.Review, d.store),
		Metrics:   metrics,
	}
	if len(cfg.Review.TrustedAuthors) > 0 {
		svcCfg.AutoPolicy = review.NewTrustedAuthorPolicy(
			cfg.Review.TrustedAuthors...,
		)
	}
	d.reviews, err = review.NewService(svcCfg)
	if err != nil {
		return err
	}

	d.submissions, err = review.NewSubmissionHandler(d.reviews).Subscribe(
		d.bus,
	)
	if err != nil {
		return err
	}

	d.reviewActor = review.NewServiceActor(
		d.reviews, dc.MailboxSize, &d.actorWg,
	)

	return nil
}

// newSelector builds the configured reviewer selector.
func newSelector(cfg config.Review,
	counter review.LoadCounter) review.ReviewerSelector {

	if cfg.Selector == config.SelectorLeastLoaded {
		return review.NewLeastLoadedSelector(counter, cfg.Reviewers...)
	}

	return review.NewRoundRobinSelector(cfg.Reviewers...)
}

// buildFrontends creates the enabled servers.
func (d *daemon) buildFrontends() error {
	cfg := d.cfg

	var err error
	if cfg.REST.Enabled {
		d.web, err = web.NewServer(&web.Config{
			Addr:     cfg.REST.Listen,
			Articles: d.articles,
			Comments: d.comments,
			Review:   d.reviewActor.Ref(),
			Failures: d.dispatcher.Sink(),
			Feed:     d.bus,
			Gatherer: d.promReg,
		})
		if err != nil {
			return fmt.Errorf("web server: %w", err)
		}
	}

	if cfg.GRPC.Enabled {
		grpcCfg := lamprpc.DefaultServerConfig()
		grpcCfg.ListenAddr = cfg.GRPC.Listen
		grpcCfg.Dispatcher = d.dispatcher
		d.grpc = lamprpc.NewServer(grpcCfg)
	}

	if cfg.MCP.Enabled {
		d.mcp, err = mcp.NewServer(mcp.Config{
			Review:         d.reviews,
			ReviewActorRef: d.reviewActor.Ref(),
			Failures:       d.dispatcher.Sink(),
		})
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
	}

	return nil
}

// run starts the servers, recovers undispatched decisions and blocks
// until ctx is done, a server fails or the MCP session ends.
func (d *daemon) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n, err := d.reviews.RecoverUndispatched(ctx)
	if err != nil {
		log.ErrorS(ctx, "Recovering undispatched review jobs", err)
	} else if n > 0 {
		log.InfoS(ctx, "Re-published undispatched review jobs", "count", n)
	}

	errCh := make(chan error, 3)

	if d.grpc != nil {
		if err := d.grpc.Start(); err != nil {
			d.stopFrontends()
			return fmt.Errorf("start gRPC server: %w", err)
		}
	}

	if d.web != nil {
		go func() {
			log.Infof("HTTP API listening on %s", d.cfg.REST.Listen)
			if err := d.web.Start(); err != nil {
				errCh <- fmt.Errorf("web server: %w", err)
			}
		}()
	}

	if d.mcp != nil {
		go func() {
			log.Info("Serving MCP tools on stdio")
			err := d.mcp.Run(ctx, &gomcp.StdioTransport{})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("mcp server: %w", err)
				return
			}

			// The client closed stdin.
			cancel()
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down")
	case runErr = <-errCh:
		log.ErrorS(ctx, "Server failed, shutting down", runErr)
	}

	d.stopFrontends()

	return runErr
}

// stopFrontends stops the listeners. Components behind them are stopped
// by close.
func (d *daemon) stopFrontends() {
	if d.web != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		if err := d.web.Shutdown(ctx); err != nil {
			log.Errorf("Web server shutdown: %v", err)
		}
		cancel()
	}

	if d.grpc != nil {
		if err := d.grpc.Stop(); err != nil {
			log.Errorf("gRPC server shutdown: %v", err)
		}
	}
}

// close stops the review flow and releases the database. New submissions
// stop first, then in-flight dispatches drain before the store closes.
func (d *daemon) close() {
	if d.submissions != nil {
		d.submissions.Unsubscribe()
	}
	if d.reviewActor != nil {
		d.reviewActor.Stop()
		d.actorWg.Wait()
	}
	if d.dispatcher != nil {
		d.dispatcher.Stop()
	}
	if d.bus != nil {
		d.bus.Stop()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			log.Errorf("Closing store: %v", err)
		}
	}
}
