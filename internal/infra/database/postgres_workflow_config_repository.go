package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
)

type PostgresWorkflowConfigRepository struct {
	db *sql.DB
}

func NewPostgresWorkflowConfigRepository(db *sql.DB) *PostgresWorkflowConfigRepository {
	return &PostgresWorkflowConfigRepository{db: db}
}

func (r *PostgresWorkflowConfigRepository) GetWorkflowFlags(ctx context.Context) (map[notification.WorkflowID]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT workflow_id, enabled FROM workflow_config`)
	if err != nil {
		return nil, fmt.Errorf("error reading workflow config: %w", err)
	}
	defer rows.Close()

	flags := make(map[notification.WorkflowID]bool)
	for rows.Next() {
		var id notification.WorkflowID
		var enabled bool
		if err := rows.Scan(&id, &enabled); err != nil {
			return nil, fmt.Errorf("error scanning workflow config: %w", err)
		}
		flags[id] = enabled
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow config: %w", err)
	}
	return flags, nil
}

func (r *PostgresWorkflowConfigRepository) SetWorkflowFlags(ctx context.Context, flags map[notification.WorkflowID]bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	// Rows are written in AllWorkflows order.
	for _, id := range notification.AllWorkflows {
		enabled, ok := flags[id]
		if !ok {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO workflow_config (workflow_id, enabled, updated_at) VALUES ($1, $2, now())
               ON CONFLICT (workflow_id) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()`,
			id, enabled)
		if err != nil {
			return fmt.Errorf("error saving workflow flag %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing workflow config: %w", err)
	}
	return nil
}
