// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
)

var ErrRunNotFound = fmt.Errorf("workflow run not found")

// PostgresNotificationRepository stores the dedup ledger and the run log.
type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// --- Dedup ledger ---

func (r *PostgresNotificationRepository) WasSent(ctx context.Context, key notification.DedupKey) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM notification_ledger WHERE dedup_key = $1)`
	if err := r.db.QueryRowContext(ctx, query, key.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking dedup ledger: %w", err)
	}
	return exists, nil
}

// MarkSent is idempotent: concurrent writers of the same key converge.
func (r *PostgresNotificationRepository) MarkSent(ctx context.Context, key notification.DedupKey) error {
	query := `INSERT INTO notification_ledger (dedup_key, recipient_id, subject_id, stage)
               VALUES ($1, $2, $3, $4)
               ON CONFLICT (dedup_key) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, key.String(), key.RecipientID, key.SubjectID, int(key.Stage)); err != nil {
		return fmt.Errorf("error writing dedup ledger: %w", err)
	}
	return nil
}

// --- Run log ---

func (r *PostgresNotificationRepository) CreateRun(ctx context.Context, run *notification.WorkflowRun, details []notification.RunDetail) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflow_runs (id, workflow_id, trigger, mode, sent, failed, skipped, error, started_at, finished_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.WorkflowID, run.Trigger, run.Mode, run.Sent, run.Failed, run.Skipped, run.Error, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating workflow run: %w", err)
	}

	if len(details) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO workflow_run_details (run_id, recipient_id, subject_id, stage, channel, outcome, reason)
               VALUES ($1, $2, $3, $4, $5, $6, $7)`)
		if err != nil {
			return fmt.Errorf("error preparing run detail insert: %w", err)
		}
		defer stmt.Close()
		for _, d := range details {
			if _, err := stmt.ExecContext(ctx, run.ID, d.RecipientID, d.SubjectID, d.Stage, d.Channel, d.Outcome, d.Reason); err != nil {
				return fmt.Errorf("error creating run detail: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing workflow run: %w", err)
	}
	return nil
}

// HasRunBetween reports whether a run of workflow that did not abort
// started within [from, to).
func (r *PostgresNotificationRepository) HasRunBetween(ctx context.Context, workflow notification.WorkflowID, from, to time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM workflow_runs
               WHERE workflow_id = $1 AND started_at >= $2 AND started_at < $3 AND error = '')`
	if err := r.db.QueryRowContext(ctx, query, workflow, from, to).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking workflow runs: %w", err)
	}
	return exists, nil
}

const runColumns = `id, workflow_id, trigger, mode, sent, failed, skipped, error, started_at, finished_at`

func scanRun(row rowScanner) (*notification.WorkflowRun, error) {
	run := &notification.WorkflowRun{}
	err := row.Scan(&run.ID, &run.WorkflowID, &run.Trigger, &run.Mode, &run.Sent, &run.Failed, &run.Skipped, &run.Error, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *PostgresNotificationRepository) ListRecentRuns(ctx context.Context, limit int) ([]*notification.WorkflowRun, error) {
	query := `SELECT ` + runColumns + ` FROM workflow_runs ORDER BY started_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing workflow runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*notification.WorkflowRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning workflow run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow runs: %w", err)
	}
	return runs, nil
}

func (r *PostgresNotificationRepository) GetRun(ctx context.Context, id string) (*notification.WorkflowRun, error) {
	query := `SELECT ` + runColumns + ` FROM workflow_runs WHERE id = $1`
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("error getting workflow run: %w", err)
	}
	return run, nil
}

func (r *PostgresNotificationRepository) ListRunDetails(ctx context.Context, runID string) ([]notification.RunDetail, error) {
	query := `SELECT run_id, recipient_id, subject_id, stage, channel, outcome, reason
               FROM workflow_run_details WHERE run_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("error listing run details: %w", err)
	}
	defer rows.Close()

	details := make([]notification.RunDetail, 0)
	for rows.Next() {
		var d notification.RunDetail
		if err := rows.Scan(&d.RunID, &d.RecipientID, &d.SubjectID, &d.Stage, &d.Channel, &d.Outcome, &d.Reason); err != nil {
			return nil, fmt.Errorf("error scanning run detail: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run details: %w", err)
	}
	return details, nil
}
