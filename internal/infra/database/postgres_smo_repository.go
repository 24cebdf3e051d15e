package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/opportunity"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/smo"

	"github.com/lib/pq"
)

var ErrCycleNotFound = fmt.Errorf("smo cycle not found")
var ErrCycleExists = fmt.Errorf("smo cycle already exists for this service date")

const cycleColumns = `id, training_date::text, service_date::text, status, capacity,
	registered_volunteers, waitlist, thursday_attendees, self_reported, lead_confirmed,
	removed_volunteers, promoted_volunteers, training_opportunity_id, service_opportunity_id,
	created_at, updated_at`

type PostgresSMORepository struct {
	db *sql.DB
}

func NewPostgresSMORepository(db *sql.DB) *PostgresSMORepository {
	return &PostgresSMORepository{db: db}
}

func scanCycle(row rowScanner) (*smo.Cycle, error) {
	c := &smo.Cycle{}
	var training, service, status string
	err := row.Scan(
		&c.ID, &training, &service, &status, &c.Capacity,
		pq.Array(&c.RegisteredVolunteers), pq.Array(&c.Waitlist), pq.Array(&c.ThursdayAttendees),
		pq.Array(&c.SelfReported), pq.Array(&c.LeadConfirmed),
		pq.Array(&c.RemovedVolunteers), pq.Array(&c.PromotedVolunteers),
		&c.TrainingOpportunityID, &c.ServiceOpportunityID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.TrainingDate, err = cadence.ParseDate(training); err != nil {
		return nil, err
	}
	if c.ServiceDate, err = cadence.ParseDate(service); err != nil {
		return nil, err
	}
	c.Status = smo.Status(status)
	return c, nil
}

func (r *PostgresSMORepository) GetByID(ctx context.Context, id string) (*smo.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM smo_cycles WHERE id = $1`
	c, err := scanCycle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting smo cycle by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresSMORepository) GetByServiceDate(ctx context.Context, service cadence.Date) (*smo.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM smo_cycles WHERE service_date = $1`
	c, err := scanCycle(r.db.QueryRowContext(ctx, query, service.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting smo cycle by service date: %w", err)
	}
	return c, nil
}

func (r *PostgresSMORepository) ListOpen(ctx context.Context) ([]*smo.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM smo_cycles WHERE status <> 'completed' ORDER BY service_date`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing open smo cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*smo.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning smo cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating smo cycles: %w", err)
	}
	return cycles, nil
}

// Create inserts the cycle and its two calendar entries in one transaction.
// A cycle already stored for the same service date yields ErrCycleExists.
func (r *PostgresSMORepository) Create(ctx context.Context, c *smo.Cycle, training, service *opportunity.Opportunity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO smo_cycles (id, training_date, service_date, status, capacity,
               training_opportunity_id, service_opportunity_id, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               ON CONFLICT DO NOTHING`,
		c.ID, c.TrainingDate.String(), c.ServiceDate.String(), c.Status, c.Capacity,
		c.TrainingOpportunityID, c.ServiceOpportunityID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating smo cycle: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("error creating smo cycle: %w", err)
	} else if n == 0 {
		return ErrCycleExists
	}

	for _, o := range []*opportunity.Opportunity{training, service} {
		if o == nil {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO opportunities (id, title, category, event_date, start_time, end_time, location, status, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               ON CONFLICT (id) DO NOTHING`,
			o.ID, o.Title, o.Category, o.Date.String(), o.StartTime, o.EndTime, o.Location, o.Status, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("error creating smo calendar entry %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing smo cycle: %w", err)
	}
	return nil
}

// Update locks the cycle row, applies fn and writes the membership lists
// back in the same transaction. The service-day opportunity RSVP list is
// kept equal to the registered list.
func (r *PostgresSMORepository) Update(ctx context.Context, id string, fn func(c *smo.Cycle) error) (*smo.Cycle, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + cycleColumns + ` FROM smo_cycles WHERE id = $1 FOR UPDATE`
	c, err := scanCycle(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error locking smo cycle: %w", err)
	}

	if err := fn(c); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE smo_cycles SET status = $2, capacity = $3,
               registered_volunteers = $4, waitlist = $5, thursday_attendees = $6,
               self_reported = $7, lead_confirmed = $8, removed_volunteers = $9,
               promoted_volunteers = $10, updated_at = $11
               WHERE id = $1`,
		c.ID, c.Status, c.Capacity,
		textArray(c.RegisteredVolunteers), textArray(c.Waitlist), textArray(c.ThursdayAttendees),
		textArray(c.SelfReported), textArray(c.LeadConfirmed), textArray(c.RemovedVolunteers),
		textArray(c.PromotedVolunteers), c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error updating smo cycle: %w", err)
	}

	if c.ServiceOpportunityID != "" {
		_, err = tx.ExecContext(ctx, `UPDATE opportunities SET rsvps = $2 WHERE id = $1`,
			c.ServiceOpportunityID, textArray(c.RegisteredVolunteers))
		if err != nil {
			return nil, fmt.Errorf("error syncing smo service roster: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing smo cycle update: %w", err)
	}
	return c, nil
}
