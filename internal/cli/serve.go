package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/iaqflow"
	"github.com/aretw0/iaqflow/internal/presentation/graph"
	httpAdapter "github.com/aretw0/iaqflow/pkg/adapters/http"
	"github.com/aretw0/iaqflow/pkg/config"
	"github.com/aretw0/iaqflow/pkg/observability"
)

// ServeOptions are the inputs of the HTTP server.
type ServeOptions struct {
	ConfigPath string
	Addr       string
	StoreDir   string
	// WriteReports also hands every run to the configured report writers.
	WriteReports bool
}

// NewServer builds the HTTP server and returns it with the closer of its
// stores and sinks.
func NewServer(ctx context.Context, opts ServeOptions, logger *slog.Logger) (*http.Server, io.Closer, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	var cl closers
	store, storeCloser, err := BuildStore(ctx, cfg.Store, opts.StoreDir)
	if err != nil {
		return nil, nil, err
	}
	cl = append(cl, storeCloser)

	metrics := observability.NewMetrics()
	engineOpts := []iaqflow.Option{
		iaqflow.WithLogger(logger),
		iaqflow.WithLifecycleHooks(observability.Combine(metrics.Hooks(), observability.LoggingHooks(logger))),
	}
	if opts.WriteReports {
		writers, writerCloser, err := BuildWriters(ctx, cfg.Outputs, logger)
		if err != nil {
			_ = cl.Close()
			return nil, nil, err
		}
		cl = append(cl, writerCloser)
		engineOpts = append(engineOpts, iaqflow.WithWriters(writers...))
	}

	eng, err := iaqflow.New(cfg, engineOpts...)
	if err != nil {
		_ = cl.Close()
		return nil, nil, err
	}

	handler := httpAdapter.NewHandler(eng, store,
		httpAdapter.WithLogger(logger),
		httpAdapter.WithColumns(cfg.Columns),
		httpAdapter.WithGraph(graph.GenerateMermaid(cfg, nil)),
		httpAdapter.WithMetrics(metrics.Handler()),
		httpAdapter.WithVersion(iaqflow.Version),
	)

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, cl, nil
}

// Serve runs the server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, opts ServeOptions, logger *slog.Logger) error {
	srv, cl, err := NewServer(ctx, opts, logger)
	if err != nil {
		return err
	}
	defer cl.Close()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting iaqflow server", "addr", srv.Addr, "config", opts.ConfigPath)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown did not complete", "timeout", 5*time.Second, "error", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		logger.Info("iaqflow server stopped gracefully")
		return nil
	}
}
