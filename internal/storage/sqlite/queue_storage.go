// -----------------------------------------------------------------------
// Queue Storage - Durable per-stage work queue over processing_queue
// -----------------------------------------------------------------------

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/refnet/internal/interfaces"
	"github.com/ternarybob/refnet/internal/models"
)

// QueueStore implements interfaces.QueueStorage. The partial unique index
// on (paper_id, task_type, status) backs the at-most-one-non-terminal-row
// guarantee; this code relies on it rather than re-checking.
type QueueStore struct {
	db     *SQLiteDB
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.QueueStorage = (*QueueStore)(nil)

// NewQueueStore creates the queue storage facet.
func NewQueueStore(db *SQLiteDB, logger arbor.ILogger) *QueueStore {
	return &QueueStore{db: db, logger: logger}
}

const queueColumns = `id, paper_id, task_type, status, priority, retry_count, max_retries,
	error_message, worker_id, parameters, execution_time_ms, created_at, started_at, completed_at`

// Enqueue inserts a pending item, deduplicating against the existing
// non-terminal row for the same (paper, stage). When a pending row already
// exists its priority is raised to the max of old and new; a running row
// is left alone. Returns the id of the row that represents the work.
func (s *QueueStore) Enqueue(ctx context.Context, item *models.QueueItem) (string, error) {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin enqueue: %w", err)
	}
	defer tx.Rollback()

	var existingID, existingStatus string
	var existingPriority int
	err = tx.QueryRowContext(ctx, `
		SELECT id, status, priority FROM processing_queue
		WHERE paper_id = ? AND task_type = ? AND status IN (?,?)`,
		item.PaperID, item.TaskType, models.QueuePending, models.QueueRunning).
		Scan(&existingID, &existingStatus, &existingPriority)

	switch {
	case err == nil:
		if existingStatus == models.QueuePending && item.Priority > existingPriority {
			if _, err := tx.ExecContext(ctx,
				`UPDATE processing_queue SET priority = ? WHERE id = ?`,
				item.Priority, existingID); err != nil {
				return "", fmt.Errorf("failed to raise priority of %s: %w", existingID, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return "", err
		}
		return existingID, nil

	case errors.Is(err, sql.ErrNoRows):
		// fall through to insert

	default:
		return "", fmt.Errorf("failed to check queue for %s/%s: %w", item.PaperID, item.TaskType, err)
	}

	var params any
	if len(item.Parameters) > 0 {
		params = string(item.Parameters)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO processing_queue (id, paper_id, task_type, status, priority, retry_count, max_retries,
			error_message, worker_id, parameters, execution_time_ms, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		item.ID, item.PaperID, item.TaskType, models.QueuePending, item.Priority,
		item.RetryCount, item.MaxRetries, "", "", params, 0, item.CreatedAt.UTC().Unix())
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s/%s: %w", item.PaperID, item.TaskType, err)
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return item.ID, nil
}

// Claim atomically moves the highest-priority pending row for stage to
// running. Ties break FIFO on created_at. Returns nil when nothing is
// pending.
func (s *QueueStore) Claim(ctx context.Context, stage, workerID string) (*models.QueueItem, error) {
	row := s.db.db.QueryRowContext(ctx, `
		UPDATE processing_queue
		SET status = ?, worker_id = ?, started_at = ?
		WHERE id = (
			SELECT id FROM processing_queue
			WHERE task_type = ? AND status = ?
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
		) AND status = ?
		RETURNING `+queueColumns,
		models.QueueRunning, workerID, time.Now().UTC().Unix(),
		stage, models.QueuePending, models.QueuePending)

	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim %s item: %w", stage, err)
	}
	return item, nil
}

// Complete finishes a running item with completed or failed.
func (s *QueueStore) Complete(ctx context.Context, itemID, status, errMsg string, execTime time.Duration) error {
	if status != models.QueueCompleted && status != models.QueueFailed {
		return fmt.Errorf("invalid completion status %q", status)
	}

	result, err := s.db.db.ExecContext(ctx, `
		UPDATE processing_queue
		SET status = ?, error_message = ?, execution_time_ms = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		status, errMsg, execTime.Milliseconds(), time.Now().UTC().Unix(),
		itemID, models.QueueRunning)
	if err != nil {
		return fmt.Errorf("failed to complete %s: %w", itemID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("item %s is not running", itemID)
	}
	return nil
}

// Reclaim reverts running rows whose lease expired back to pending with
// retry_count incremented; rows already at max_retries go failed instead.
func (s *QueueStore) Reclaim(ctx context.Context, lease time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-lease).Unix()

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin reclaim: %w", err)
	}
	defer tx.Rollback()

	failed, err := tx.ExecContext(ctx, `
		UPDATE processing_queue
		SET status = ?, error_message = 'lease expired', completed_at = ?
		WHERE status = ? AND started_at < ? AND retry_count >= max_retries`,
		models.QueueFailed, time.Now().UTC().Unix(), models.QueueRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to fail expired items: %w", err)
	}

	requeued, err := tx.ExecContext(ctx, `
		UPDATE processing_queue
		SET status = ?, retry_count = retry_count + 1, worker_id = '', started_at = NULL
		WHERE status = ? AND started_at < ?`,
		models.QueuePending, models.QueueRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue expired items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	failedCount, _ := failed.RowsAffected()
	requeuedCount, _ := requeued.RowsAffected()
	total := int(failedCount + requeuedCount)
	if total > 0 {
		s.logger.Warn().
			Int64("requeued", requeuedCount).
			Int64("failed", failedCount).
			Msg("Reclaimed expired queue leases")
	}
	return total, nil
}

// Purge deletes terminal rows older than the retention window.
func (s *QueueStore) Purge(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-retention).Unix()

	result, err := s.db.db.ExecContext(ctx, `
		DELETE FROM processing_queue
		WHERE status IN (?,?) AND completed_at < ?`,
		models.QueueCompleted, models.QueueFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge queue: %w", err)
	}

	count, _ := result.RowsAffected()
	return int(count), nil
}

// GetItem loads one queue row, or sql.ErrNoRows when absent.
func (s *QueueStore) GetItem(ctx context.Context, itemID string) (*models.QueueItem, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT `+queueColumns+` FROM processing_queue WHERE id = ?`, itemID)
	return scanQueueItem(row)
}

// CountByStatus returns row counts per status for one stage, or for all
// stages when stage is empty.
func (s *QueueStore) CountByStatus(ctx context.Context, stage string) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM processing_queue GROUP BY status`
	args := []any{}
	if stage != "" {
		query = `SELECT status, COUNT(*) FROM processing_queue WHERE task_type = ? GROUP BY status`
		args = append(args, stage)
	}

	rows, err := s.db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// HasNonTerminal reports whether a pending or running row exists for the
// (paper, stage) pair.
func (s *QueueStore) HasNonTerminal(ctx context.Context, paperID, stage string) (bool, error) {
	var exists int
	err := s.db.db.QueryRowContext(ctx, `
		SELECT 1 FROM processing_queue
		WHERE paper_id = ? AND task_type = ? AND status IN (?,?)
		LIMIT 1`,
		paperID, stage, models.QueuePending, models.QueueRunning).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check queue for %s/%s: %w", paperID, stage, err)
	}
	return true, nil
}

func scanQueueItem(row rowScanner) (*models.QueueItem, error) {
	var item models.QueueItem
	var params sql.NullString
	var execMs, created int64
	var started, completed sql.NullInt64

	err := row.Scan(
		&item.ID, &item.PaperID, &item.TaskType, &item.Status, &item.Priority,
		&item.RetryCount, &item.MaxRetries, &item.ErrorMessage, &item.WorkerID,
		&params, &execMs, &created, &started, &completed,
	)
	if err != nil {
		return nil, err
	}

	if params.Valid {
		item.Parameters = []byte(params.String)
	}
	item.ExecutionTime = time.Duration(execMs) * time.Millisecond
	item.CreatedAt = time.Unix(created, 0).UTC()
	if started.Valid {
		t := time.Unix(started.Int64, 0).UTC()
		item.StartedAt = &t
	}
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		item.CompletedAt = &t
	}
	return &item, nil
}
