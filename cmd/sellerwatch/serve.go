package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/sellerwatch/api"
	"github.com/use-agent/sellerwatch/models"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and execute tasks on a fixed cadence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(os.Stdout)
			if err != nil {
				return err
			}
			slog.Info("sellerwatch starting",
				"host", cfg.Server.Host,
				"port", cfg.Server.Port,
				"interval", cfg.Engine.Interval,
				"task_concurrency", cfg.Engine.TaskConcurrency,
				"item_concurrency", cfg.Crawl.ItemConcurrency,
				"db_type", cfg.DB.Type,
			)

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// ── Trigger loop ────────────────────────────────────────
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				triggerLoop(ctx, a.orch, cfg.Engine.Interval)
			}()

			// ── HTTP server ─────────────────────────────────────────
			router := api.NewRouter(ctx, cfg, api.Deps{
				Store:    a.store,
				Runs:     a.orch,
				Hub:      a.hub,
				Gatherer: a.registry,
			}, time.Now())

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

			// ── Graceful shutdown ───────────────────────────────────
			select {
			case <-ctx.Done():
				slog.Info("shutdown signal received")
			case err := <-serveErr:
				if err != nil {
					stop()
					wg.Wait()
					return fmt.Errorf("http server: %w", err)
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("HTTP server forced shutdown", "error", err)
			} else {
				slog.Info("HTTP server drained gracefully")
			}

			// In-flight runs observe ctx and close their browser.
			wg.Wait()
			slog.Info("sellerwatch stopped")
			return nil
		},
	}
}

// taskExecutor is the engine entry point driven by the trigger loop.
type taskExecutor interface {
	ExecuteTasks(ctx context.Context) (*models.RunSummary, error)
}

// triggerLoop runs the engine once immediately and then every interval
// until ctx is done. A tick that lands during a run is absorbed by the
// run guard.
func triggerLoop(ctx context.Context, orch taskExecutor, interval time.Duration) {
	var runs sync.WaitGroup
	defer runs.Wait()

	fire := func() {
		runs.Add(1)
		go func() {
			defer runs.Done()
			summary, err := orch.ExecuteTasks(ctx)
			if err != nil {
				slog.Error("run failed", "code", models.CodeOf(err), "error", err)
				return
			}
			if summary.Skipped {
				slog.Debug("tick skipped", "run_id", summary.RunID)
			}
		}()
	}

	fire()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire()
		}
	}
}
