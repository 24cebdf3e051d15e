package opportunity

import (
	"context"
	"time"
)

// Repository reads opportunities and their shifts.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Opportunity, error)
	// ListByDateRange returns approved opportunities dated within [from, to] (YYYY-MM-DD).
	ListByDateRange(ctx context.Context, from, to string) ([]*Opportunity, error)
	// ListCreatedSince returns approved opportunities created at or after since.
	ListCreatedSince(ctx context.Context, since time.Time) ([]*Opportunity, error)
	ListShifts(ctx context.Context, opportunityIDs []string) ([]*Shift, error)
}
