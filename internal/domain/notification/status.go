// internal/domain/notification/status.go
package notification

import (
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
)

// DedupKey identifies one (recipient, subject, stage) dispatch.
type DedupKey struct {
	RecipientID string
	SubjectID   string
	Stage       cadence.Stage
}

// String renders the key deterministically so lookups survive restarts.
func (k DedupKey) String() string {
	return fmt.Sprintf("%s_%s_%d", k.RecipientID, k.SubjectID, int(k.Stage))
}

// LedgerEntry is a persisted "already sent" record.
type LedgerEntry struct {
	Key    DedupKey
	SentAt time.Time
}
