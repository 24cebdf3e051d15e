// Package opportunity models scheduled volunteer events and their shifts.
package opportunity

import (
	"fmt"
	"strings"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
)

// Status of an opportunity; only approved ones generate notifications.
type Status string

const (
	StatusApproved  Status = "approved"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// Opportunity is a scheduled event volunteers sign up for.
type Opportunity struct {
	ID        string
	Title     string
	Category  string
	Date      cadence.Date
	StartTime string // HH:MM local
	EndTime   string // HH:MM local
	Location  string
	Status    Status
	// RSVPs is the opportunity's own sign-up list.
	RSVPs []string
	// EventRSVPs is the RSVP sub-document on the linked calendar event.
	EventRSVPs []string
	CreatedAt  time.Time
}

func (o *Opportunity) SubjectID() string                { return o.ID }
func (o *Opportunity) SubjectKind() cadence.SubjectKind { return cadence.SubjectOpportunity }

// StartsAt is the start instant in loc. Opportunities without a start time
// are treated as starting at 09:00.
func (o *Opportunity) StartsAt(loc *time.Location) (time.Time, error) {
	clock := strings.TrimSpace(o.StartTime)
	if clock == "" {
		clock = "09:00"
	}
	t, err := o.Date.At(clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("opportunity %s start: %w", o.ID, err)
	}
	return t, nil
}

// EndsAt is the end instant in loc. Without an end time the event is
// assumed to last three hours.
func (o *Opportunity) EndsAt(loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(o.EndTime) == "" {
		start, err := o.StartsAt(loc)
		if err != nil {
			return time.Time{}, err
		}
		return start.Add(3 * time.Hour), nil
	}
	t, err := o.Date.At(o.EndTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("opportunity %s end: %w", o.ID, err)
	}
	return t, nil
}

// Shift is a slot within an opportunity with assigned volunteers.
type Shift struct {
	ID                   string
	OpportunityID        string
	StartTime            string
	EndTime              string
	AssignedVolunteerIDs []string
}

// Recipients unions every association path to o (shift assignments, the
// opportunity RSVP list and the event-level RSVP sub-document). Order is
// first-seen; duplicates and blanks are dropped.
func Recipients(o *Opportunity, shifts []*Shift) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	add := func(ids []string) {
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, s := range shifts {
		if s.OpportunityID == o.ID {
			add(s.AssignedVolunteerIDs)
		}
	}
	add(o.RSVPs)
	add(o.EventRSVPs)
	return out
}
