package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/viljemd-hub/channel-manager-sub000/internal/app"
	"github.com/viljemd-hub/channel-manager-sub000/internal/clock"
	"github.com/viljemd-hub/channel-manager-sub000/internal/config"
	transporthttp "github.com/viljemd-hub/channel-manager-sub000/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	logger := log.Default()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Printf("WARN: close store: %v", err)
		}
	}()

	clk := clock.NewSystem()
	lifecycle := app.NewLifecycleService(store, clk,
		app.WithHoldTTL(cfg.HoldTTL()),
		app.WithLogger(logger),
	)
	checker := app.NewConflictChecker(store)
	autopilot := app.NewAutopilot(lifecycle, checker, clk, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", transporthttp.HealthHandler)
	mux.Handle("/units/", transporthttp.HandleUnits(transporthttp.UnitServices{
		Timeline:  lifecycle,
		Conflict:  checker,
		Holds:     lifecycle,
		Segments:  lifecycle,
		External:  lifecycle,
		Autopilot: autopilot,
		PolicyFor: cfg.AutopilotForUnit,
	}))
	mux.Handle("/", transporthttp.NotFoundHandler())

	handler := transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, mux), logger)

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: handler,
	}

	logger.Printf("availd listening on %s (storage=%s data_dir=%s)", cfg.Listen, cfg.Storage, cfg.DataDir)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-stopCtx.Done():
		logger.Printf("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("server shutdown error: %v", err)
	}
	logger.Printf("server stopped")
	return nil
}
