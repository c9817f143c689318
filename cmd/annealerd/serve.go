package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/GoSim-25-26J-441/annealing-core/internal/annealerd"
	"github.com/GoSim-25-26J-441/annealing-core/internal/metrics"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/config"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the run API over HTTP and gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts.cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Close(); err != nil {
			logger.Warn("failed to close simulator connection", "error", err)
		}
	}()

	m := metrics.New(true)
	notifier := annealerd.NewNotifier(annealerd.NotifierConfig{
		Timeout:       cfg.Callbacks.Timeout,
		MaxRetries:    cfg.Callbacks.MaxRetries,
		AllowInternal: cfg.Callbacks.AllowInternal,
	})
	store := annealerd.NewRunStore()
	executor := annealerd.NewRunExecutor(store, comps.controllerConfig(m), notifier)

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		// TODO: configure TLS for the gRPC listener before exposing it outside the cluster.
		grpcServer = grpc.NewServer()
		annealerd.RegisterAnnealingServer(grpcServer, annealerd.NewAnnealingGRPCServer(store, executor, notifier))

		grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for gRPC on %s: %w", cfg.GRPCAddr, err)
		}
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(grpcLis); err != nil {
				logger.Error("gRPC server error", "error", err)
				stop()
			}
		}()
	}

	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		httpSrv = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           annealerd.NewHTTPServer(store, executor, notifier, m).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
	}
	if err := executor.Shutdown(shutdownCtx); err != nil {
		logger.Error("executor shutdown error", "error", err)
	}
	notifier.Wait()
	return nil
}
