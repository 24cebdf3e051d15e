// internal/domain/notification/repository.go
package notification

import (
	"context"
	"time"
)

// Ledger is the dedup store answering "was this stage already sent?".
type Ledger interface {
	WasSent(ctx context.Context, key DedupKey) (bool, error)
	// MarkSent is an idempotent set; concurrent writers converge.
	MarkSent(ctx context.Context, key DedupKey) error
}

// RunRepository persists workflow run history.
type RunRepository interface {
	CreateRun(ctx context.Context, run *WorkflowRun, details []RunDetail) error
	// HasRunBetween reports whether workflowID has a recorded run that started in [from, to).
	HasRunBetween(ctx context.Context, workflowID WorkflowID, from, to time.Time) (bool, error)
	ListRecentRuns(ctx context.Context, limit int) ([]*WorkflowRun, error)
	GetRun(ctx context.Context, runID string) (*WorkflowRun, error)
	ListRunDetails(ctx context.Context, runID string) ([]RunDetail, error)
}

// ConfigRepository stores the per-workflow enabled flags.
type ConfigRepository interface {
	GetWorkflowFlags(ctx context.Context) (map[WorkflowID]bool, error)
	SetWorkflowFlags(ctx context.Context, flags map[WorkflowID]bool) error
}
