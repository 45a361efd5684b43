package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/avatar-api/internal/platform/logger"
	"github.com/phrazzld/avatar-api/internal/store"
	"github.com/phrazzld/avatar-api/internal/task"
)

// PostgresTaskStore implements task.TaskStore.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a task store on db.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{db: db}
}

var _ task.TaskStore = (*PostgresTaskStore)(nil)

// SaveTask persists t with its current status.
func (s *PostgresTaskStore) SaveTask(ctx context.Context, t task.Task) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID(), t.Type(), string(t.Payload()), string(t.Status()), now, now)
	if err != nil {
		logger.FromContext(ctx).Error("failed to save task",
			slog.String("task_id", t.ID().String()),
			slog.String("task_type", t.Type()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to save task: %w", MapError(err))
	}
	return nil
}

// UpdateTaskStatus sets the status and error message of taskID.
func (s *PostgresTaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status task.TaskStatus, errorMsg string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, error_message = NULLIF($2, ''), updated_at = $3
		WHERE id = $4`,
		string(status), errorMsg, time.Now().UTC(), taskID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to update task status",
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)),
			slog.String("error", err.Error()))
		return wrapWriteError("task", "update_status", store.ErrUpdateFailed, err)
	}
	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// GetPendingTasks returns pending tasks, oldest first.
func (s *PostgresTaskStore) GetPendingTasks(ctx context.Context) ([]task.Record, error) {
	return s.byStatus(ctx, task.TaskStatusPending, 0)
}

// GetProcessingTasks returns processing tasks, limited to those not updated
// for olderThan when it is non-zero.
func (s *PostgresTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]task.Record, error) {
	return s.byStatus(ctx, task.TaskStatusProcessing, olderThan)
}

func (s *PostgresTaskStore) byStatus(ctx context.Context, status task.TaskStatus, olderThan time.Duration) ([]task.Record, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, type, payload, status, error_message, created_at, updated_at
		FROM tasks
		WHERE status = $1`
	args := []any{string(status)}
	if olderThan > 0 {
		query += ` AND updated_at < $2`
		args = append(args, time.Now().UTC().Add(-olderThan))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks", slog.String("status", string(status)), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to query tasks: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var records []task.Record
	for rows.Next() {
		var (
			rec       task.Record
			recStatus string
			errMsg    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Payload, &recStatus, &errMsg, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		rec.Status = task.TaskStatus(recStatus)
		rec.ErrorMessage = errMsg.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate task rows: %w", err)
	}
	return records, nil
}

// WithTx returns a store bound to tx.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) task.TaskStore {
	return &PostgresTaskStore{db: tx}
}
