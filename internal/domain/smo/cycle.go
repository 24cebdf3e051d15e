// Package smo models the recurring monthly SMO cycle: a Thursday training
// day followed by a Saturday service day, with registration, waitlist and
// attendance tracking.
package smo

import (
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
)

// Status is the cycle lifecycle. Transitions only move forward.
type Status string

const (
	StatusRegistrationOpen Status = "registration_open"
	StatusTrainingComplete Status = "training_complete"
	StatusEventDay         Status = "event_day"
	StatusCompleted        Status = "completed"
)

var statusRank = map[Status]int{
	StatusRegistrationOpen: 0,
	StatusTrainingComplete: 1,
	StatusEventDay:         2,
	StatusCompleted:        3,
}

// Rank orders statuses; unknown statuses rank below every known one.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// AttendanceSource tells which list an attendance confirmation lands in.
type AttendanceSource string

const (
	SourceThursday AttendanceSource = "thursday"
	SourceSelf     AttendanceSource = "self"
	SourceLead     AttendanceSource = "lead"
)

// DefaultCapacity is the registration limit for a new cycle.
const DefaultCapacity = 20

// Cycle is one month's SMO training + service pair.
type Cycle struct {
	ID                    string
	TrainingDate          cadence.Date
	ServiceDate           cadence.Date
	Status                Status
	Capacity              int
	RegisteredVolunteers  []string
	Waitlist              []string
	ThursdayAttendees     []string
	SelfReported          []string
	LeadConfirmed         []string
	RemovedVolunteers     []string
	PromotedVolunteers    []string
	TrainingOpportunityID string
	ServiceOpportunityID  string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (c *Cycle) SubjectID() string                { return c.ID }
func (c *Cycle) SubjectKind() cadence.SubjectKind { return cadence.SubjectSMOCycle }

// CycleID is the deterministic id of the cycle serving on date.
func CycleID(service cadence.Date) string {
	return "smo-" + service.String()
}
