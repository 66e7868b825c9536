package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	proxy "github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/reflection"

	"github.com/cerbtk/registry/ledger"
	"github.com/cerbtk/registry/logging"
	"github.com/cerbtk/registry/nonce"
	"github.com/cerbtk/registry/registration"
	"github.com/cerbtk/registry/signing"
)

// HealthService is the gRPC health service name whose status follows chain validity.
const HealthService = "cerbtk.registry"

type Server struct {
	cfg    Config
	ledger *ledger.Ledger
	nonces nonce.Store
	reg    *registration.Registration

	rpcListener     net.Listener
	restListener    net.Listener
	metricsListener net.Listener
}

func listen(raw string) (net.Listener, error) {
	addr, err := net.ResolveTCPAddr("tcp", raw)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen(addr.Network(), addr.String())
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %v", err)
	}
	return listener, nil
}

func New(ctx context.Context, cfg Config) (*Server, error) {
	logger := logging.FromContext(ctx)
	logger.Info("creating registry",
		zap.Object("ledger", cfg.Ledger),
		zap.Object("nonce", cfg.Nonce),
		zap.Object("signing", cfg.Signing),
		zap.Object("registration", cfg.Registration),
	)

	if cfg.Ledger.StorageEnabled() {
		for _, dir := range []string{cfg.DataDir, cfg.DbDir} {
			if dir == "" {
				continue
			}
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, err
			}
		}
	}

	verifier, err := signing.NewVerifier(ctx, cfg.Signing)
	if err != nil {
		return nil, fmt.Errorf("creating signature verifier: %w", err)
	}
	nonces, err := nonce.New(ctx, cfg.Nonce)
	if err != nil {
		return nil, fmt.Errorf("creating nonce store: %w", err)
	}
	chain, err := ledger.New(ctx, cfg.Ledger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("creating ledger: %w", err), nonces.Close())
	}

	s := &Server{
		cfg:    cfg,
		ledger: chain,
		nonces: nonces,
		reg:    registration.New(chain, nonces, verifier, registration.WithConfig(cfg.Registration)),
	}
	if cfg.Registration.RebuildIndex {
		if _, err := s.reg.RebuildIndex(ctx); err != nil {
			return nil, errors.Join(fmt.Errorf("rebuilding device index: %w", err), s.Close())
		}
	}

	s.rpcListener, err = listen(cfg.RawRPCListener)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	s.restListener, err = listen(cfg.RawRESTListener)
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	if cfg.MetricsPort != nil {
		s.metricsListener, err = listen(fmt.Sprintf(":%d", *cfg.MetricsPort))
		if err != nil {
			return nil, errors.Join(err, s.Close())
		}
	}
	return s, nil
}

// Close releases the ledger, the nonce store and any listener Start did not get to close.
func (s *Server) Close() error {
	errs := []error{s.ledger.Close(), s.nonces.Close()}
	for _, l := range []net.Listener{s.rpcListener, s.restListener, s.metricsListener} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GrpcAddr returns the address that server is listening on for GRPC.
func (s *Server) GrpcAddr() net.Addr {
	return s.rpcListener.Addr()
}

// RestAddr returns the address that the JSON API is listening on.
func (s *Server) RestAddr() net.Addr {
	return s.restListener.Addr()
}

// MetricsAddr returns the address of the metrics listener, or nil when metrics are not exposed.
func (s *Server) MetricsAddr() net.Addr {
	if s.metricsListener == nil {
		return nil
	}
	return s.metricsListener.Addr()
}

func (s *Server) Registration() *registration.Registration {
	return s.reg
}

// Start serves the JSON API, the gRPC health service and metrics until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	serverGroup, ctx := errgroup.WithContext(ctx)

	logger := logging.FromContext(ctx)

	mux := proxy.NewServeMux()
	h := &handlers{reg: s.reg}
	if err := h.register(mux); err != nil {
		return err
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(loggerInterceptor(logger)),
		// XXX: this is done to prevent routers from cleaning up our connections (e.g aws load balances..)
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     time.Minute * 120,
			MaxConnectionAge:      time.Minute * 180,
			MaxConnectionAgeGrace: time.Minute * 10,
			Time:                  time.Minute,
			Timeout:               time.Minute * 3,
		}),
	)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	serverGroup.Go(func() error {
		s.watchChain(ctx, healthServer)
		return nil
	})

	// Start the gRPC server listening for HTTP/2 connections.
	serverGroup.Go(func() error {
		logger.Sugar().Infof("GRPC server listening on %s", s.rpcListener.Addr())
		return grpcServer.Serve(s.rpcListener)
	})

	server := &http.Server{Handler: requestLogger(logger.Named("http"), mux), ReadHeaderTimeout: time.Second * 5}
	serverGroup.Go(func() error {
		logger.Sugar().Infof("REST server starts listening on %s", s.restListener.Addr())
		err := server.Serve(s.restListener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	var metricsServer *http.Server
	if s.metricsListener != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Handler: metricsMux, ReadHeaderTimeout: time.Second * 5}
		serverGroup.Go(func() error {
			logger.Sugar().Infof("metrics exposed on %s/metrics", s.metricsListener.Addr())
			err := metricsServer.Serve(s.metricsListener)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	// Wait for the server to shut down gracefully
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("failed to shutdown server: %s", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Sugar().Errorf("failed to shutdown metrics server: %s", err)
		}
	}
	if err := serverGroup.Wait(); err != nil {
		logger.Sugar().Errorf("error when waiting to shutdown servers: %s", err)
	}
	return nil
}

// watchChain keeps the health status in line with chain validity.
func (s *Server) watchChain(ctx context.Context, healthServer *health.Server) {
	interval := s.cfg.HealthInterval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		status := healthpb.HealthCheckResponse_SERVING
		if !s.reg.ChainValid() {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if status != last {
			if status == healthpb.HealthCheckResponse_NOT_SERVING {
				logging.FromContext(ctx).Warn("chain failed validation")
			}
			healthServer.SetServingStatus(HealthService, status)
			last = status
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// loggerInterceptor returns UnaryServerInterceptor handler to log all RPC server incoming requests.
func loggerInterceptor(
	logger *zap.Logger,
) func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		logger := logger.Named(info.FullMethod).With(zap.Stringer("request_id", uuid.New()))
		ctx = logging.NewContext(ctx, logger)

		if p, ok := peer.FromContext(ctx); ok {
			logger.Debug("new GRPC", zap.Stringer("from", p.Addr))
		}

		resp, err := handler(ctx, req)
		if err != nil {
			logger.Info("FAILURE", zap.Error(err))
		}
		return resp, err
	}
}
