package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// EnqueueTask inserts a pending task row. Insertion is the whole enqueue
// operation; the worker pool picks the row up out-of-band.
func (db *DB) EnqueueTask(ctx context.Context, name, queue string, priority int, args []string) (int64, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal task args: %w", err)
	}

	var id int64
	err = db.pool.QueryRow(ctx,
		`INSERT INTO tasks (name, queue, priority, args)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		name, queue, priority, argsJSON).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue task %s: %w", name, err)
	}
	return id, nil
}

// ClaimTask atomically claims the highest-priority pending task on any of
// the given queues. Returns nil when no work is available. SKIP LOCKED
// lets concurrent workers claim disjoint rows.
func (db *DB) ClaimTask(ctx context.Context, queues []string) (*Task, error) {
	var t Task
	var argsJSON []byte
	err := db.pool.QueryRow(ctx,
		`UPDATE tasks SET status = $1, started_at = NOW(), attempts = attempts + 1
		 WHERE id = (
			SELECT id FROM tasks
			WHERE status = $2 AND queue = ANY($3)
			ORDER BY priority DESC, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, name, queue, priority, args, status, attempts,
			last_error, created_at, started_at, finished_at`,
		TaskRunning, TaskPending, queues).
		Scan(&t.ID, &t.Name, &t.Queue, &t.Priority, &argsJSON, &t.Status,
			&t.Attempts, &t.LastError, &t.CreatedAt, &t.StartedAt, &t.FinishedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}

	if argsJSON != nil {
		if err := json.Unmarshal(argsJSON, &t.Args); err != nil {
			return nil, fmt.Errorf("failed to unmarshal task args: %w", err)
		}
	}
	return &t, nil
}

// CompleteTask marks a claimed task as done.
func (db *DB) CompleteTask(ctx context.Context, id int64) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE tasks SET status = $1, finished_at = NOW() WHERE id = $2`,
		TaskDone, id)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	return nil
}

// FailTask records a task failure. When retry is true the row returns to
// pending for re-delivery; otherwise it is terminal.
func (db *DB) FailTask(ctx context.Context, id int64, errMsg string, retry bool) error {
	status := TaskFailed
	if retry {
		status = TaskPending
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE tasks SET status = $1, last_error = $2, finished_at = NOW() WHERE id = $3`,
		status, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to fail task: %w", err)
	}
	return nil
}
