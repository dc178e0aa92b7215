package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/lmstrack/api"
	"github.com/use-agent/lmstrack/pipeline"
	"github.com/use-agent/lmstrack/scraper"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the history API and scrapes on a schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireCredentials(); err != nil {
			return err
		}
		ctx := cmd.Context()

		slog.Info("lmstrack starting",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"mode", cfg.Server.Mode,
			"interval", cfg.Server.Interval,
		)

		sc, err := scraper.NewScraper(cfg.Browser, cfg.LMS)
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		defer sc.Close()

		runner, notifier := newRunner(cfg, sc)
		sched := pipeline.NewScheduler(ctx, runner.Run, cfg.Server.Interval)
		sched.Start()

		router := api.NewRouter(ctx, cfg, sched, time.Now())
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			slog.Info("HTTP server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("HTTP server: %w", err)
			}
		case <-ctx.Done():
			slog.Info("shutdown signal received")
		}

		// Give in-flight requests 5 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
		} else {
			slog.Info("HTTP server drained gracefully")
		}

		// A cancelled run still saves what it collected before returning.
		sched.Wait()
		if notifier != nil {
			notifier.Wait()
		}
		slog.Info("lmstrack stopped")
		return nil
	},
}
