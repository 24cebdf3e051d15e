package volunteer

import (
	"context"
)

// Repository defines the operations for retrieving volunteers and their
// compliance records.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Volunteer, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*Volunteer, error)
	ListActive(ctx context.Context) ([]*Volunteer, error)
	ListSMOEligible(ctx context.Context) ([]*Volunteer, error)
	ListComplianceExpiringBetween(ctx context.Context, from, to string) ([]*ComplianceItem, error)
}
