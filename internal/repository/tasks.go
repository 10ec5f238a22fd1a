package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"tekmax-dispatch/internal/domain"
)

// TaskRepo is the scheduler's view of the durable task queue. Tasks are
// created inside state machine transactions and consumed here.
type TaskRepo struct {
	db *pgxpool.Pool
}

// NewTaskRepo creates a new TaskRepo.
func NewTaskRepo(db *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{db: db}
}

// Due returns tasks whose earliest-execution time has passed, oldest first.
func (r *TaskRepo) Due(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledTask, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, kind, delivery_id, run_at, attempts, max_attempts, last_error
        FROM scheduled_tasks
        WHERE run_at <= $1
        ORDER BY run_at ASC
        LIMIT $2
    `, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledTask
	for rows.Next() {
		var t domain.ScheduledTask
		var kind string
		if err := rows.Scan(&t.ID, &kind, &t.DeliveryID, &t.RunAt, &t.Attempts, &t.MaxAttempts, &t.LastError); err != nil {
			return nil, err
		}
		t.Kind = domain.TaskKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Reschedule pushes a task into the future after a transient failure.
func (r *TaskRepo) Reschedule(ctx context.Context, id uuid.UUID, runAt time.Time, attempts int, lastError string) error {
	ct, err := r.db.Exec(ctx, `
        UPDATE scheduled_tasks
        SET run_at = $2, attempts = $3, last_error = $4
        WHERE id = $1
    `, id, runAt, attempts, lastError)
	if err != nil {
		return fmt.Errorf("reschedule task %s: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("task %s not found", id)
	}
	return nil
}

// Delete removes a task after success or terminal failure.
func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM scheduled_tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return nil
}
