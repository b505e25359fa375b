package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"imgdb/internal/database"
	"imgdb/internal/handlers"
	"imgdb/internal/logging"
	"imgdb/internal/metrics"
	"imgdb/internal/startup"
	"imgdb/internal/workers"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline periodically and serve health, stats and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startTime := time.Now()

			dbStart := time.Now()
			a, err := openApp(cmd, opts, true)
			if err != nil {
				return err
			}
			defer a.Close()

			startup.LogConfig(a.cfg)
			startup.LogDatabaseInit(time.Since(dbStart))
			startup.LogTextEngineInit(a.text, a.cfg.OcrLanguage)

			metrics.InitializeMetrics()
			metrics.WorkerPoolSize.Set(float64(workers.ForCPU(a.cfg.Workers)))
			collector := metrics.NewCollector(catalogStats(a.db), collectorInterval)
			collector.Start()
			defer collector.Stop()

			startup.LogIndexerInit(a.cfg.RunInterval, workers.ForCPU(a.cfg.Workers))
			a.idx.Start(a.cfg.RunInterval)
			startup.LogIndexerStarted()

			router := handlers.NewRouter(handlers.New(a.idx))
			startup.LogHTTPRoutes(router)

			srv := &http.Server{
				Addr:              a.cfg.Listen,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			startup.LogServerStarted(startup.ServerConfig{
				Listen:          a.cfg.Listen,
				StartupDuration: time.Since(startTime),
			})

			select {
			case err := <-serveErr:
				a.idx.Stop()
				return err
			case <-cmd.Context().Done():
				startup.LogShutdownInitiated(context.Cause(cmd.Context()).Error())
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			startup.LogShutdownStep("Stopping pipeline")
			a.idx.Stop()
			if waitIdle(shutdownCtx, a.idx) {
				startup.LogShutdownStepComplete("Pipeline stopped")
			} else {
				logging.Warn("Pipeline did not stop within %v", shutdownTimeout)
			}

			startup.LogShutdownStep("Shutting down HTTP server")
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logging.Warn("Server shutdown error: %v", err)
			} else {
				startup.LogShutdownStepComplete("HTTP server stopped")
			}

			startup.LogShutdownComplete()
			return nil
		},
	}
}

type runner interface {
	IsRunning() bool
}

// waitIdle polls until r has no active run. It reports false when ctx ends
// first.
func waitIdle(ctx context.Context, r runner) bool {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for r.IsRunning() {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

func catalogStats(db *database.Database) metrics.StatsFunc {
	return func(ctx context.Context) (metrics.Stats, error) {
		s, err := db.Stats(ctx)
		if err != nil {
			return metrics.Stats{}, err
		}
		return metrics.Stats{
			Files:    s.Files,
			Unhashed: s.Unhashed,
			DHashes:  s.DHashes,
			Palettes: s.Palettes,
			Ocr:      s.Ocr,
		}, nil
	}
}
