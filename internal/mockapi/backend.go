package mockapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"marketdash/internal/config"
	"marketdash/internal/store"
)

// ServiceName is the health-checked gRPC service name.
const ServiceName = "marketdash.Backend"

// Backend owns the fixture stores, the REST server and the gRPC health
// service.
type Backend struct {
	Series *store.ParquetStore
	DB     *store.SQLiteStore
	API    *Server
	Health *health.Server

	grpc *grpc.Server
	log  *slog.Logger
}

// Open opens the fixture stores named by cfg. Health reports NOT_SERVING
// until Serve starts.
func Open(cfg config.Mock, symbols []string, log *slog.Logger) (*Backend, error) {
	db, err := store.NewSQLiteStore(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.SQLitePath, err)
	}
	ps := store.NewParquetStore(cfg.DataDir)

	gs, hs := NewGRPCServer()
	return &Backend{
		Series: ps,
		DB:     db,
		API:    NewServer(ps, db, db, symbols, log),
		Health: hs,
		grpc:   gs,
		log:    log,
	}, nil
}

// NewGRPCServer returns a gRPC server with grpc.health.v1 registered. Both
// the overall and the named service start NOT_SERVING.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return gs, hs
}

// SetServing flips the overall and named service status.
func SetServing(hs *health.Server, serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(ServiceName, st)
}

// Serve runs the HTTP and gRPC listeners until ctx is cancelled or either
// fails, then shuts both down.
func (b *Backend) Serve(ctx context.Context, httpAddr, grpcAddr string) error {
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", grpcAddr, err)
	}
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           b.API.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.log.Info("fixture API listening", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		b.log.Info("gRPC health listening", "addr", grpcAddr)
		if err := b.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})
	SetServing(b.Health, true)

	g.Go(func() error {
		<-gctx.Done()
		b.log.Info("shutting down fixture backend")
		SetServing(b.Health, false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		b.grpc.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the stores.
func (b *Backend) Close() error {
	return b.DB.Close()
}
