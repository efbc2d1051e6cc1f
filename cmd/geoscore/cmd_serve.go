package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-geoscore/infrastructure/httpapi"
	"github.com/ahrav/go-geoscore/infrastructure/middleware"
	"github.com/ahrav/go-geoscore/internal/application"
	"github.com/ahrav/go-geoscore/internal/logging"
	"github.com/ahrav/go-geoscore/internal/ports"
)

var serveFlags struct {
	addr   string
	config string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scoring HTTP API",
	Long: `Starts an HTTP server with POST /v1/scans/score, GET /healthz and
GET /metrics. SIGINT or SIGTERM drains in-flight requests before exiting.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.addr, "addr", ":8080", "Listen address")
	f.StringVarP(&serveFlags.config, "config", "c", "", "Scoring config YAML")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(serveFlags.config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New("http")
	reg := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(reg)

	api := httpapi.New(cfg,
		httpapi.WithMetrics(metrics),
		httpapi.WithGatherer(reg),
		httpapi.WithLogger(logger),
		httpapi.WithScorerOptions(application.WithUnitMiddleware(func(u ports.Unit) ports.Unit {
			return middleware.NewInstrumentedUnit(u, metrics)
		})),
	)

	srv := &http.Server{
		Addr:         serveFlags.addr,
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", serveFlags.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
