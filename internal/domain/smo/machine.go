package smo

import (
	"errors"
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
)

var (
	ErrNotEligible      = errors.New("volunteer is not eligible for SMO")
	ErrRegistrationShut = errors.New("cycle is not open for registration")
	ErrUnknownSource    = errors.New("unknown attendance source")
	ErrNotRegistered    = errors.New("volunteer is not registered for this cycle")
)

// EnforcementHour is the local hour on training day at which no-shows are removed.
const EnforcementHour = 23

// CreationLookaheadDays is how far ahead of the service day a cycle opens.
const CreationLookaheadDays = 30

// ThirdSaturday returns the third Saturday of the month.
func ThirdSaturday(year int, month time.Month) cadence.Date {
	first := cadence.Date{Year: year, Month: month, Day: 1}
	offset := (int(time.Saturday) - int(first.Weekday()) + 7) % 7
	return first.AddDays(offset + 14)
}

// TrainingDateFor is the Thursday before the service Saturday.
func TrainingDateFor(service cadence.Date) cadence.Date {
	return service.AddDays(-2)
}

// NextServiceDate is this month's third Saturday, or next month's once it has passed.
func NextServiceDate(today cadence.Date) cadence.Date {
	d := ThirdSaturday(today.Year, today.Month)
	if today.DaysUntil(d) >= 0 {
		return d
	}
	next := cadence.Date{Year: today.Year, Month: today.Month, Day: 1}.AddDays(32)
	return ThirdSaturday(next.Year, next.Month)
}

// ShouldCreate reports whether a cycle for service should be opened today.
func ShouldCreate(today, service cadence.Date) bool {
	d := today.DaysUntil(service)
	return d >= 1 && d <= CreationLookaheadDays
}

// NewCycle builds a registration-open cycle for the service date.
func NewCycle(service cadence.Date, now time.Time) *Cycle {
	return &Cycle{
		ID:           CycleID(service),
		TrainingDate: TrainingDateFor(service),
		ServiceDate:  service,
		Status:       StatusRegistrationOpen,
		Capacity:     DefaultCapacity,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// TrainingReminderDue reports whether today is the eve of training day.
func TrainingReminderDue(c *Cycle, today cadence.Date) bool {
	return c.Status == StatusRegistrationOpen && today == c.TrainingDate.AddDays(-1)
}

// NextStatus returns the single forward transition that applies at now,
// if any. Callers apply it and ask again so a late poll walks through
// each intermediate state instead of skipping one.
func NextStatus(c *Cycle, now time.Time, loc *time.Location) (Status, bool) {
	today := cadence.DateOf(now, loc)
	switch c.Status {
	case StatusRegistrationOpen:
		cutoff := c.TrainingDate.Midnight(loc).Add(EnforcementHour * time.Hour)
		if !now.Before(cutoff) {
			return StatusTrainingComplete, true
		}
	case StatusTrainingComplete:
		if today.DaysUntil(c.ServiceDate) <= 0 {
			return StatusEventDay, true
		}
	case StatusEventDay:
		if today.DaysUntil(c.ServiceDate.AddDays(1)) <= 0 {
			return StatusCompleted, true
		}
	}
	return "", false
}

// Advance moves c to next. It refuses anything but the immediate successor.
func Advance(c *Cycle, next Status) error {
	if next.Rank() != c.Status.Rank()+1 {
		return fmt.Errorf("invalid SMO transition %s -> %s", c.Status, next)
	}
	c.Status = next
	return nil
}

// EnforcementResult is the outcome of the training-night attendance check.
type EnforcementResult struct {
	Kept     []string
	Removed  []string
	Promoted []string
}

// Enforce keeps registered volunteers who attended training (any of the
// three attendance lists), removes the rest, and promotes the same number
// from the head of the waitlist. It mutates c's membership lists.
func Enforce(c *Cycle) EnforcementResult {
	present := make(map[string]struct{})
	for _, list := range [][]string{c.ThursdayAttendees, c.SelfReported, c.LeadConfirmed} {
		for _, id := range list {
			present[id] = struct{}{}
		}
	}

	res := EnforcementResult{Kept: []string{}, Removed: []string{}, Promoted: []string{}}
	for _, id := range c.RegisteredVolunteers {
		if _, ok := present[id]; ok {
			res.Kept = append(res.Kept, id)
		} else {
			res.Removed = append(res.Removed, id)
		}
	}

	n := len(res.Removed)
	if len(c.Waitlist) < n {
		n = len(c.Waitlist)
	}
	res.Promoted = append(res.Promoted, c.Waitlist[:n]...)

	c.Waitlist = append([]string{}, c.Waitlist[n:]...)
	c.RegisteredVolunteers = append(append([]string{}, res.Kept...), res.Promoted...)
	c.RemovedVolunteers = appendUnique(c.RemovedVolunteers, res.Removed...)
	c.PromotedVolunteers = appendUnique(c.PromotedVolunteers, res.Promoted...)
	return res
}

// RegistrationResult says where a registration landed.
type RegistrationResult string

const (
	Registered        RegistrationResult = "registered"
	Waitlisted        RegistrationResult = "waitlisted"
	AlreadyRegistered RegistrationResult = "already_registered"
	AlreadyWaitlisted RegistrationResult = "already_waitlisted"
)

// Register adds volunteerID to the cycle, falling back to the waitlist at capacity.
func Register(c *Cycle, volunteerID string) (RegistrationResult, error) {
	if c.Status != StatusRegistrationOpen {
		return "", ErrRegistrationShut
	}
	if contains(c.RegisteredVolunteers, volunteerID) {
		return AlreadyRegistered, nil
	}
	if contains(c.Waitlist, volunteerID) {
		return AlreadyWaitlisted, nil
	}
	capacity := c.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if len(c.RegisteredVolunteers) < capacity {
		c.RegisteredVolunteers = append(c.RegisteredVolunteers, volunteerID)
		return Registered, nil
	}
	c.Waitlist = append(c.Waitlist, volunteerID)
	return Waitlisted, nil
}

// ConfirmAttendance records training attendance from source.
func ConfirmAttendance(c *Cycle, volunteerID string, source AttendanceSource) error {
	if !contains(c.RegisteredVolunteers, volunteerID) {
		return ErrNotRegistered
	}
	switch source {
	case SourceThursday:
		c.ThursdayAttendees = appendUnique(c.ThursdayAttendees, volunteerID)
	case SourceSelf:
		c.SelfReported = appendUnique(c.SelfReported, volunteerID)
	case SourceLead:
		c.LeadConfirmed = appendUnique(c.LeadConfirmed, volunteerID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return nil
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func appendUnique(list []string, ids ...string) []string {
	for _, id := range ids {
		if !contains(list, id) {
			list = append(list, id)
		}
	}
	return list
}
