// Package lamprpc runs the lampd gRPC endpoint: the standard health service,
// which reports whether review dispatch is running, and server reflection.
package lamprpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// DispatcherService is the health service name tracking review dispatch.
const DispatcherService = "lamp.review.Dispatcher"

// RunningChecker reports whether a component accepts work.
type RunningChecker interface {
	Running() bool
}

// ServerConfig holds configuration for the gRPC server.
type ServerConfig struct {
	// ListenAddr is the address to listen on (e.g., "localhost:10019").
	ListenAddr string

	// ServerPingTime is the duration after which the server pings the
	// client. If not set, defaults to 5 minutes.
	ServerPingTime time.Duration

	// ServerPingTimeout is the duration the server waits for ping ack.
	ServerPingTimeout time.Duration

	// ClientPingMinWait is the minimum time between client pings.
	ClientPingMinWait time.Duration

	// ClientAllowPingWithoutStream allows pings even without active
	// streams.
	ClientAllowPingWithoutStream bool

	// Dispatcher is polled for the DispatcherService status.
	Dispatcher RunningChecker

	// HealthInterval is how often Dispatcher is polled. Defaults to one
	// second.
	HealthInterval time.Duration
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr:                   "localhost:10019",
		ServerPingTime:               5 * time.Minute,
		ServerPingTimeout:            1 * time.Minute,
		ClientPingMinWait:            5 * time.Second,
		ClientAllowPingWithoutStream: true,
		HealthInterval:               time.Second,
	}
}

// Server is the lampd gRPC server.
type Server struct {
	cfg ServerConfig

	health     *health.Server
	grpcServer *grpc.Server
	listener   net.Listener

	started bool
	mu      sync.RWMutex

	// quit is closed when the server is shutting down.
	quit chan struct{}
	wg   sync.WaitGroup
}

// NewServer creates a new gRPC server instance.
func NewServer(cfg ServerConfig) *Server {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = time.Second
	}

	return &Server{
		cfg:    cfg,
		health: health.NewServer(),
		quit:   make(chan struct{}),
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("server already started")
	}

	lis, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr,
			err)
	}
	s.listener = lis

	s.grpcServer = grpc.NewServer(s.buildServerOptions()...)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	s.refreshHealth()

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()

		log.Infof("gRPC server listening on %s", lis.Addr())
		if err := s.grpcServer.Serve(lis); err != nil {
			select {
			case <-s.quit:
			default:
				log.Errorf("gRPC server error: %v", err)
			}
		}
	}()
	go s.watchHealth()

	s.started = true

	return nil
}

// Stop gracefully stops the gRPC server.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	close(s.quit)
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	s.wg.Wait()

	s.started = false
	log.Info("gRPC server stopped")

	return nil
}

// watchHealth keeps the dispatcher status current until Stop.
func (s *Server) watchHealth() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.refreshHealth()
		case <-s.quit:
			return
		}
	}
}

func (s *Server) refreshHealth() {
	st := healthpb.HealthCheckResponse_SERVING
	if s.cfg.Dispatcher != nil && !s.cfg.Dispatcher.Running() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus(DispatcherService, st)
	s.health.SetServingStatus("", st)
}

// buildServerOptions creates gRPC server options with keepalive and
// interceptors.
func (s *Server) buildServerOptions() []grpc.ServerOption {
	serverKeepalive := keepalive.ServerParameters{
		Time:    s.cfg.ServerPingTime,
		Timeout: s.cfg.ServerPingTimeout,
	}

	clientKeepalive := keepalive.EnforcementPolicy{
		MinTime:             s.cfg.ClientPingMinWait,
		PermitWithoutStream: s.cfg.ClientAllowPingWithoutStream,
	}

	return []grpc.ServerOption{
		grpc.KeepaliveParams(serverKeepalive),
		grpc.KeepaliveEnforcementPolicy(clientKeepalive),

		// Logging first, then the shutdown gate.
		grpc.ChainUnaryInterceptor(
			s.loggingUnaryInterceptor,
			s.shutdownUnaryInterceptor,
		),
		grpc.ChainStreamInterceptor(
			s.loggingStreamInterceptor,
		),
	}
}

// loggingUnaryInterceptor logs all unary RPC calls.
func (s *Server) loggingUnaryInterceptor(ctx context.Context,
	req interface{}, info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (interface{}, error) {

	start := time.Now()
	log.TraceS(ctx, "RPC request", "method", info.FullMethod)

	resp, err := handler(ctx, req)

	if err != nil {
		log.WarnS(ctx, "RPC failed", err, "method", info.FullMethod,
			"duration", time.Since(start))
	} else {
		log.DebugS(ctx, "RPC completed", "method", info.FullMethod,
			"duration", time.Since(start))
	}

	return resp, err
}

// shutdownUnaryInterceptor refuses calls once Stop has begun.
func (s *Server) shutdownUnaryInterceptor(ctx context.Context,
	req interface{}, info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler) (interface{}, error) {

	select {
	case <-s.quit:
		return nil, status.Error(codes.Unavailable,
			"server is shutting down")
	default:
	}

	return handler(ctx, req)
}

// loggingStreamInterceptor logs streaming RPC calls such as health Watch.
func (s *Server) loggingStreamInterceptor(srv interface{},
	ss grpc.ServerStream, info *grpc.StreamServerInfo,
	handler grpc.StreamHandler) error {

	start := time.Now()
	ctx := ss.Context()
	log.DebugS(ctx, "Stream RPC started", "method", info.FullMethod)

	err := handler(srv, ss)

	if err != nil {
		log.WarnS(ctx, "Stream RPC failed", err,
			"method", info.FullMethod, "duration", time.Since(start))
	} else {
		log.DebugS(ctx, "Stream RPC completed",
			"method", info.FullMethod, "duration", time.Since(start))
	}

	return err
}

// Addr returns the address the server is listening on.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.started
}
