package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/volunteer"

	"github.com/lib/pq"
)

var ErrVolunteerNotFound = fmt.Errorf("volunteer not found")

const volunteerColumns = `id, first_name, last_name, email, phone, birth_month, birth_day, status,
	email_alerts, sms_alerts, opportunity_alerts, smo_eligible, event_types, created_at, updated_at`

type PostgresVolunteerRepository struct {
	db *sql.DB
}

func NewPostgresVolunteerRepository(db *sql.DB) *PostgresVolunteerRepository {
	return &PostgresVolunteerRepository{db: db}
}

func scanVolunteer(row rowScanner) (*volunteer.Volunteer, error) {
	v := &volunteer.Volunteer{}
	var month int
	var status string
	err := row.Scan(
		&v.ID, &v.FirstName, &v.LastName, &v.Email, &v.Phone, &month, &v.BirthDay, &status,
		&v.Preferences.EmailAlerts, &v.Preferences.SMSAlerts, &v.Preferences.OpportunityAlerts,
		&v.SMOEligible, pq.Array(&v.EventTypes), &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.BirthMonth = time.Month(month)
	v.Status = volunteer.Status(status)
	v.Phone = volunteer.NormalizePhone(v.Phone)
	return v, nil
}

func (r *PostgresVolunteerRepository) GetByID(ctx context.Context, id string) (*volunteer.Volunteer, error) {
	query := `SELECT ` + volunteerColumns + ` FROM volunteers WHERE id = $1`
	v, err := scanVolunteer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrVolunteerNotFound
		}
		return nil, fmt.Errorf("error getting volunteer by ID: %w", err)
	}
	return v, nil
}

func (r *PostgresVolunteerRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*volunteer.Volunteer, error) {
	out := make(map[string]*volunteer.Volunteer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query := `SELECT ` + volunteerColumns + ` FROM volunteers WHERE id = ANY($1)`
	vols, err := r.list(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("error getting volunteers by IDs: %w", err)
	}
	for _, v := range vols {
		out[v.ID] = v
	}
	return out, nil
}

func (r *PostgresVolunteerRepository) ListActive(ctx context.Context) ([]*volunteer.Volunteer, error) {
	query := `SELECT ` + volunteerColumns + ` FROM volunteers WHERE status = 'active' ORDER BY created_at, id`
	vols, err := r.list(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active volunteers: %w", err)
	}
	return vols, nil
}

func (r *PostgresVolunteerRepository) ListSMOEligible(ctx context.Context) ([]*volunteer.Volunteer, error) {
	query := `SELECT ` + volunteerColumns + ` FROM volunteers WHERE status = 'active' AND smo_eligible ORDER BY created_at, id`
	vols, err := r.list(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing SMO eligible volunteers: %w", err)
	}
	return vols, nil
}

func (r *PostgresVolunteerRepository) list(ctx context.Context, query string, args ...interface{}) ([]*volunteer.Volunteer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vols []*volunteer.Volunteer
	for rows.Next() {
		v, err := scanVolunteer(rows)
		if err != nil {
			return nil, err
		}
		vols = append(vols, v)
	}
	return vols, rows.Err()
}

func (r *PostgresVolunteerRepository) ListComplianceExpiringBetween(ctx context.Context, from, to string) ([]*volunteer.ComplianceItem, error) {
	query := `SELECT id, volunteer_id, kind, expires_on::text FROM compliance_items
               WHERE expires_on BETWEEN $1 AND $2 ORDER BY expires_on, id`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error listing compliance items: %w", err)
	}
	defer rows.Close()

	var items []*volunteer.ComplianceItem
	for rows.Next() {
		it := &volunteer.ComplianceItem{}
		var expires string
		if err := rows.Scan(&it.ID, &it.VolunteerID, &it.Kind, &expires); err != nil {
			return nil, fmt.Errorf("error scanning compliance item: %w", err)
		}
		if it.ExpiresOn, err = cadence.ParseDate(expires); err != nil {
			return nil, fmt.Errorf("error parsing compliance expiry: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating compliance items: %w", err)
	}
	return items, nil
}
