package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"user-records-service/internal/config"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server struct holds all server dependencies
type Server struct {
	Config *config.Config
	Logger *zap.Logger
	HTTP   *http.Server
	GRPC   *grpc.Server   // nil when gRPC is disabled
	Health *health.Server // nil when gRPC is disabled
}

// New creates a new server instance around the HTTP handler
func New(cfg *config.Config, l *zap.Logger, router http.Handler) *Server {
	s := &Server{
		Config: cfg,
		Logger: l,
		HTTP:   SetupGinServer(router, httpAddress(cfg), l),
	}
	if cfg.App.GRPCEnabled {
		s.GRPC, s.Health = SetupGRPC(cfg.Logger.ServiceName, l)
	}
	return s
}

// Start listens on the configured ports and serves until one server fails
// or both are shut down.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}

	httpLis, err := lc.Listen(ctx, "tcp", httpAddress(s.Config))
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", httpAddress(s.Config), err)
	}

	var grpcLis net.Listener
	if s.GRPC != nil {
		grpcLis, err = lc.Listen(ctx, "tcp", grpcAddress(s.Config))
		if err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("failed to listen on %s: %w", grpcAddress(s.Config), err)
		}
	}

	return s.Serve(httpLis, grpcLis)
}

// Serve runs the servers on already bound listeners. grpcLis is ignored when
// gRPC is disabled. When one server fails the other is stopped so Serve
// returns the failure instead of waiting on a healthy peer.
func (s *Server) Serve(httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		s.Logger.Info("REST API running", zap.String("address", httpLis.Addr().String()))
		if err := s.HTTP.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if s.GRPC != nil && grpcLis != nil {
		g.Go(func() error {
			s.Logger.Info("gRPC server running", zap.String("address", grpcLis.Addr().String()))
			s.setServing(healthpb.HealthCheckResponse_SERVING)
			if err := s.GRPC.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	// gctx is canceled with context.Canceled when Wait returns cleanly and
	// with the first server error otherwise.
	go func() {
		<-gctx.Done()
		if cause := context.Cause(gctx); !errors.Is(cause, context.Canceled) {
			s.Logger.Error("server failed, stopping the others", zap.Error(cause))
			s.stop()
		}
	}()

	return g.Wait()
}

// stop closes both servers without draining.
func (s *Server) stop() {
	s.setServing(healthpb.HealthCheckResponse_NOT_SERVING)
	if err := s.HTTP.Close(); err != nil {
		s.Logger.Warn("failed to close HTTP server", zap.Error(err))
	}
	if s.GRPC != nil {
		s.GRPC.Stop()
	}
}

// Shutdown marks the service NOT_SERVING and drains both servers within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.setServing(healthpb.HealthCheckResponse_NOT_SERVING)

	var errs []error

	s.Logger.Info("shutting down HTTP server...")
	if err := s.HTTP.Shutdown(ctx); err != nil {
		s.Logger.Error("failed to shutdown HTTP server", zap.Error(err))
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}

	if s.GRPC != nil {
		s.Logger.Info("shutting down gRPC server...")
		done := make(chan struct{})
		go func() {
			s.GRPC.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.GRPC.Stop()
			errs = append(errs, fmt.Errorf("grpc shutdown: %w", ctx.Err()))
		}
	}

	return errors.Join(errs...)
}

func (s *Server) setServing(st healthpb.HealthCheckResponse_ServingStatus) {
	if s.Health == nil {
		return
	}
	s.Health.SetServingStatus("", st)
	s.Health.SetServingStatus(s.Config.Logger.ServiceName, st)
}

func grpcAddress(cfg *config.Config) string {
	return ":" + cfg.App.GRPCPort
}

func httpAddress(cfg *config.Config) string {
	return ":" + cfg.App.HTTPPort
}
