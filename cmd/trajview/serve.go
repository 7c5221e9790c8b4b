package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/trajview"
	"github.com/aretw0/trajview/internal/cli"
	"github.com/aretw0/trajview/internal/presentation/tui"
	httpAdapter "github.com/aretw0/trajview/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the viewer HTTP API",
	Long: `Starts the engine and exposes viewer sessions over HTTP: JSON endpoints,
an SSE snapshot stream per session and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, map[string]string{
			"addr":             "http.addr",
			"surface-feedback": "http.surface_feedback",
			"metrics":          "http.metrics",
		})
		if err != nil {
			return err
		}

		rt, err := cli.NewRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				logger.Warn("Runtime close failed", "err", err)
			}
		}()

		handlerOpts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithCORSOrigin(cfg.HTTP.CORSOrigin),
		}
		if rt.Registry != nil {
			handlerOpts = append(handlerOpts, httpAdapter.WithMetrics(rt.Registry))
		}

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpAdapter.NewHandler(rt.Engine, handlerOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		tui.PrintBanner(os.Stderr, trajview.Version)

		sigCtx, stop := shutdownContext(context.Background())
		defer stop()

		janitorErrors := make(chan error, 1)
		go func() {
			janitorErrors <- rt.Engine.Run(sigCtx)
		}()

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting trajview server", "addr", srv.Addr, "structure_url", cfg.Services.StructureURL)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case err := <-janitorErrors:
			if err != nil {
				return fmt.Errorf("cache janitor stopped: %w", err)
			}
			// Run only returns nil once sigCtx is done.
		}

		logger.Info("Start shutdown")

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Event streams never finish on their own, so close the sessions first.
		if err := rt.Engine.Close(); err != nil {
			logger.Warn("Closing sessions failed", "err", err)
		}
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
			if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("error killing server: %w", err)
			}
		}
		logger.Info("trajview server stopped gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("surface-feedback", false, "Keep the status loading until the surface reports it rendered the source")
	serveCmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")
}
