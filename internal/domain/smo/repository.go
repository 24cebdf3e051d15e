package smo

import (
	"context"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/opportunity"
)

// Repository persists SMO cycles. Update is the only way to mutate
// membership: fn runs against a row-locked copy inside one transaction, so
// concurrent polls cannot both promote the same waitlisted volunteer.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Cycle, error)
	GetByServiceDate(ctx context.Context, service cadence.Date) (*Cycle, error)
	ListOpen(ctx context.Context) ([]*Cycle, error)
	// Create stores the cycle together with its training and service calendar entries.
	Create(ctx context.Context, c *Cycle, training, service *opportunity.Opportunity) error
	Update(ctx context.Context, id string, fn func(c *Cycle) error) (*Cycle, error)
}
