package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/givefood/needwatch/internal/db"
	"github.com/givefood/needwatch/internal/metrics"
)

// Handler executes one task. Handlers run at-least-once and must be
// safe against duplicate delivery.
type Handler func(ctx context.Context, args []string) error

// workerStore is the slice of the database layer workers need.
type workerStore interface {
	ClaimTask(ctx context.Context, queues []string) (*db.Task, error)
	CompleteTask(ctx context.Context, id int64) error
	FailTask(ctx context.Context, id int64, errMsg string, retry bool) error
}

// defaults for pool tuning knobs left at zero.
const (
	defaultWorkers      = 4
	defaultPollInterval = 2 * time.Second
	defaultMaxAttempts  = 3
)

// Pool claims and executes queued tasks with a fixed set of workers.
type Pool struct {
	store        workerStore
	handlers     map[string]Handler
	queues       []string
	workers      int
	pollInterval time.Duration
	maxAttempts  int
	collector    *metrics.Collector
	logger       *zap.Logger
}

// PoolConfig tunes a worker pool. Zero values fall back to defaults.
type PoolConfig struct {
	Queues       []string
	Workers      int
	PollInterval time.Duration
	MaxAttempts  int
}

// NewPool creates a pool draining the configured queues.
func NewPool(store workerStore, cfg PoolConfig, collector *metrics.Collector, logger *zap.Logger) *Pool {
	if len(cfg.Queues) == 0 {
		cfg.Queues = AllQueues()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	return &Pool{
		store:        store,
		handlers:     make(map[string]Handler),
		queues:       cfg.Queues,
		workers:      cfg.Workers,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
		collector:    collector,
		logger:       logger,
	}
}

// Register binds a handler to a task name. Not safe to call once Run
// has started.
func (p *Pool) Register(name string, handler Handler) {
	p.handlers[name] = handler
}

// Run executes tasks until the context is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			return p.runWorker(ctx, worker)
		})
	}
	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (p *Pool) runWorker(ctx context.Context, worker int) error {
	logger := p.logger.With(zap.Int("worker", worker))
	for {
		task, err := p.store.ClaimTask(ctx, p.queues)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("failed to claim task", zap.Error(err))
		}
		if task == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.pollInterval):
			}
			continue
		}
		p.runTask(ctx, logger, task)
	}
}

// runTask executes one claimed task and records its outcome. Handler
// errors send the row back to pending until the attempt budget is
// spent.
func (p *Pool) runTask(ctx context.Context, logger *zap.Logger, task *db.Task) {
	logger = logger.With(
		zap.Int64("task_id", task.ID),
		zap.String("name", task.Name),
		zap.Int("attempt", task.Attempts))

	handler, ok := p.handlers[task.Name]
	if !ok {
		logger.Error("no handler registered for task")
		p.finishFailed(ctx, logger, task, fmt.Errorf("no handler for task %s", task.Name), false)
		return
	}

	if err := handler(ctx, task.Args); err != nil {
		retry := task.Attempts < p.maxAttempts
		logger.Error("task failed", zap.Error(err), zap.Bool("retry", retry))
		p.finishFailed(ctx, logger, task, err, retry)
		return
	}

	if err := p.store.CompleteTask(ctx, task.ID); err != nil {
		logger.Error("failed to mark task done", zap.Error(err))
		return
	}
	p.collector.RecordTaskRun(task.Name, db.TaskDone)
	logger.Info("task done")
}

func (p *Pool) finishFailed(ctx context.Context, logger *zap.Logger, task *db.Task, taskErr error, retry bool) {
	status := db.TaskFailed
	if retry {
		status = db.TaskPending
	}
	if err := p.store.FailTask(ctx, task.ID, taskErr.Error(), retry); err != nil {
		logger.Error("failed to record task failure", zap.Error(err))
		return
	}
	p.collector.RecordTaskRun(task.Name, status)
}
