package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/opportunity"

	"github.com/lib/pq"
)

var ErrOpportunityNotFound = fmt.Errorf("opportunity not found")

const opportunityColumns = `id, title, category, event_date::text, start_time, end_time, location, status,
	rsvps, event_rsvps, created_at`

type PostgresOpportunityRepository struct {
	db *sql.DB
}

func NewPostgresOpportunityRepository(db *sql.DB) *PostgresOpportunityRepository {
	return &PostgresOpportunityRepository{db: db}
}

func scanOpportunity(row rowScanner) (*opportunity.Opportunity, error) {
	o := &opportunity.Opportunity{}
	var date, status string
	err := row.Scan(
		&o.ID, &o.Title, &o.Category, &date, &o.StartTime, &o.EndTime, &o.Location, &status,
		pq.Array(&o.RSVPs), pq.Array(&o.EventRSVPs), &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if o.Date, err = cadence.ParseDate(date); err != nil {
		return nil, err
	}
	o.Status = opportunity.Status(status)
	return o, nil
}

func (r *PostgresOpportunityRepository) GetByID(ctx context.Context, id string) (*opportunity.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1`
	o, err := scanOpportunity(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOpportunityNotFound
		}
		return nil, fmt.Errorf("error getting opportunity by ID: %w", err)
	}
	return o, nil
}

func (r *PostgresOpportunityRepository) ListByDateRange(ctx context.Context, from, to string) ([]*opportunity.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities
               WHERE event_date BETWEEN $1 AND $2 AND status = 'approved'
               ORDER BY event_date, start_time, id`
	opps, err := r.list(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing opportunities by date range: %w", err)
	}
	return opps, nil
}

func (r *PostgresOpportunityRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]*opportunity.Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities
               WHERE created_at >= $1 AND status = 'approved'
               ORDER BY created_at, id`
	opps, err := r.list(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("error listing new opportunities: %w", err)
	}
	return opps, nil
}

func (r *PostgresOpportunityRepository) list(ctx context.Context, query string, args ...interface{}) ([]*opportunity.Opportunity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opps []*opportunity.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

func (r *PostgresOpportunityRepository) ListShifts(ctx context.Context, opportunityIDs []string) ([]*opportunity.Shift, error) {
	if len(opportunityIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id, opportunity_id, start_time, end_time, assigned_volunteer_ids FROM shifts
               WHERE opportunity_id = ANY($1) ORDER BY opportunity_id, start_time, id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(opportunityIDs))
	if err != nil {
		return nil, fmt.Errorf("error listing shifts: %w", err)
	}
	defer rows.Close()

	var shifts []*opportunity.Shift
	for rows.Next() {
		s := &opportunity.Shift{}
		if err := rows.Scan(&s.ID, &s.OpportunityID, &s.StartTime, &s.EndTime, pq.Array(&s.AssignedVolunteerIDs)); err != nil {
			return nil, fmt.Errorf("error scanning shift: %w", err)
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shifts: %w", err)
	}
	return shifts, nil
}
