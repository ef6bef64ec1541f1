package tasks

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// queueStore is the slice of the database layer the dispatcher needs.
type queueStore interface {
	EnqueueTask(ctx context.Context, name, queue string, priority int, args []string) (int64, error)
}

// PGDispatcher enqueues tasks as postgres rows.
type PGDispatcher struct {
	store  queueStore
	logger *zap.Logger
}

// NewPGDispatcher creates a dispatcher writing to the tasks table.
func NewPGDispatcher(store queueStore, logger *zap.Logger) *PGDispatcher {
	return &PGDispatcher{store: store, logger: logger}
}

// Dispatch inserts the task. The row becomes visible to workers as
// soon as the insert commits.
func (d *PGDispatcher) Dispatch(ctx context.Context, task Task) error {
	queue := task.Queue
	if queue == "" {
		queue = QueueDefault
	}

	id, err := d.store.EnqueueTask(ctx, task.Name, queue, task.Priority, task.Args)
	if err != nil {
		return fmt.Errorf("failed to dispatch task %s: %w", task.Name, err)
	}
	d.logger.Debug("dispatched task",
		zap.Int64("task_id", id),
		zap.String("name", task.Name),
		zap.String("queue", queue),
		zap.Int("priority", task.Priority))
	return nil
}
