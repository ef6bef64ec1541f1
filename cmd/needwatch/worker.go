package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/givefood/needwatch/internal/metrics"
	"github.com/givefood/needwatch/internal/tasks"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the task queue workers",
	Long:  "Claims queued notification, translation, decache, and crawl tasks and executes them until interrupted.",
	RunE:  runWorker,
}

var (
	workerQueues      []string
	workerMetricsAddr string
)

func init() {
	workerCmd.Flags().StringSliceVar(&workerQueues, "queue", nil, "Queues to drain (default: all)")
	workerCmd.Flags().StringVar(&workerMetricsAddr, "metrics-addr", "", "Listen address for Prometheus metrics (e.g. :9090)")

	rootCmd.AddCommand(workerCmd)
}

func runWorker(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.close()

	handlers, err := app.newHandlers(ctx)
	if err != nil {
		return err
	}

	pool := tasks.NewPool(app.store, tasks.PoolConfig{
		Queues:  workerQueues,
		Workers: app.cfg.WorkerCount,
	}, app.collector, app.logger)
	handlers.Register(pool)

	if workerMetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(app.registry))
		server := &http.Server{Addr: workerMetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer server.Close()
		app.logger.Info("metrics listening", zap.String("addr", workerMetricsAddr))
	}

	app.logger.Info("worker pool starting", zap.Int("workers", app.cfg.WorkerCount))
	return pool.Run(ctx)
}
