package smo_test

import (
	"errors"
	"testing"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/smo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThirdSaturday(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		day   int
	}{
		{2026, time.January, 17},
		{2026, time.February, 21},
		{2026, time.August, 15},
		{2026, time.October, 17},
	}
	for _, tt := range tests {
		got := smo.ThirdSaturday(tt.year, tt.month)
		assert.Equal(t, cadence.Date{Year: tt.year, Month: tt.month, Day: tt.day}, got)
		assert.Equal(t, time.Saturday, got.Weekday())
	}
}

func TestNextServiceDateAndCreation(t *testing.T) {
	today := cadence.Date{Year: 2026, Month: time.October, Day: 18}
	next := smo.NextServiceDate(today)
	assert.Equal(t, cadence.Date{Year: 2026, Month: time.November, Day: 21}, next)
	assert.False(t, smo.ShouldCreate(today, next), "34 days out is beyond the lookahead")
	assert.True(t, smo.ShouldCreate(cadence.Date{Year: 2026, Month: time.October, Day: 25}, next))

	service := cadence.Date{Year: 2026, Month: time.October, Day: 17}
	assert.Equal(t, service, smo.NextServiceDate(cadence.Date{Year: 2026, Month: time.October, Day: 17}))
	assert.False(t, smo.ShouldCreate(service, service))
	assert.Equal(t, cadence.Date{Year: 2026, Month: time.October, Day: 15}, smo.TrainingDateFor(service))
}

func newCycle(registered, waitlist, thursday []string) *smo.Cycle {
	c := smo.NewCycle(cadence.Date{Year: 2026, Month: time.November, Day: 21}, time.Now())
	c.RegisteredVolunteers = registered
	c.Waitlist = waitlist
	c.ThursdayAttendees = thursday
	return c
}

func TestEnforce_RemovesNoShowsAndPromotesWaitlist(t *testing.T) {
	c := newCycle([]string{"A", "B", "C"}, []string{"D", "E"}, []string{"A"})

	res := smo.Enforce(c)

	assert.Equal(t, []string{"A"}, res.Kept)
	assert.Equal(t, []string{"B", "C"}, res.Removed)
	assert.Equal(t, []string{"D", "E"}, res.Promoted)
	assert.Equal(t, []string{"A", "D", "E"}, c.RegisteredVolunteers)
	assert.Empty(t, c.Waitlist)
	assert.Equal(t, []string{"B", "C"}, c.RemovedVolunteers)
	assert.Equal(t, []string{"D", "E"}, c.PromotedVolunteers)
}

func TestEnforce_AnyAttendanceListKeeps(t *testing.T) {
	c := newCycle([]string{"A", "B", "C"}, []string{"D"}, nil)
	c.SelfReported = []string{"B"}
	c.LeadConfirmed = []string{"C"}

	res := smo.Enforce(c)
	assert.Equal(t, []string{"A"}, res.Removed)
	assert.Equal(t, []string{"D"}, res.Promoted)
	assert.Equal(t, []string{"B", "C", "D"}, c.RegisteredVolunteers)
}

func TestEnforce_ShortWaitlist(t *testing.T) {
	c := newCycle([]string{"A", "B", "C"}, []string{"D"}, nil)

	res := smo.Enforce(c)
	assert.Equal(t, []string{"A", "B", "C"}, res.Removed)
	assert.Equal(t, []string{"D"}, res.Promoted)
	assert.Equal(t, []string{"D"}, c.RegisteredVolunteers)
	assert.Empty(t, c.Waitlist)
}

func TestNextStatus_ForwardOnlyOneStepAtATime(t *testing.T) {
	loc := time.UTC
	c := newCycle(nil, nil, nil)

	beforeCutoff := time.Date(2026, time.November, 19, 22, 59, 0, 0, loc)
	_, ok := smo.NextStatus(c, beforeCutoff, loc)
	assert.False(t, ok)

	// A poll long after the service day still walks every state in order.
	late := time.Date(2026, time.November, 23, 10, 0, 0, 0, loc)
	var walked []smo.Status
	for {
		next, ok := smo.NextStatus(c, late, loc)
		if !ok {
			break
		}
		require.NoError(t, smo.Advance(c, next))
		walked = append(walked, next)
	}
	assert.Equal(t, []smo.Status{smo.StatusTrainingComplete, smo.StatusEventDay, smo.StatusCompleted}, walked)
}

func TestNextStatus_Cutoffs(t *testing.T) {
	loc := time.UTC
	c := newCycle(nil, nil, nil)

	next, ok := smo.NextStatus(c, time.Date(2026, time.November, 19, 23, 0, 0, 0, loc), loc)
	require.True(t, ok)
	assert.Equal(t, smo.StatusTrainingComplete, next)
	require.NoError(t, smo.Advance(c, next))

	_, ok = smo.NextStatus(c, time.Date(2026, time.November, 20, 23, 0, 0, 0, loc), loc)
	assert.False(t, ok, "event day starts on the service date")

	next, ok = smo.NextStatus(c, time.Date(2026, time.November, 21, 0, 1, 0, 0, loc), loc)
	require.True(t, ok)
	assert.Equal(t, smo.StatusEventDay, next)
}

func TestAdvance_RejectsSkipsAndRegressions(t *testing.T) {
	c := newCycle(nil, nil, nil)
	assert.Error(t, smo.Advance(c, smo.StatusEventDay))
	assert.Error(t, smo.Advance(c, smo.StatusRegistrationOpen))
	assert.Equal(t, smo.StatusRegistrationOpen, c.Status)

	c.Status = smo.StatusCompleted
	assert.Error(t, smo.Advance(c, smo.StatusTrainingComplete))
}

func TestRegister(t *testing.T) {
	c := newCycle(nil, nil, nil)
	c.Capacity = 2

	for id, want := range map[string]smo.RegistrationResult{"A": smo.Registered, "B": smo.Registered} {
		got, err := smo.Register(c, id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := smo.Register(c, "C")
	require.NoError(t, err)
	assert.Equal(t, smo.Waitlisted, got)

	got, _ = smo.Register(c, "A")
	assert.Equal(t, smo.AlreadyRegistered, got)
	got, _ = smo.Register(c, "C")
	assert.Equal(t, smo.AlreadyWaitlisted, got)
	assert.Equal(t, []string{"C"}, c.Waitlist)

	c.Status = smo.StatusTrainingComplete
	_, err = smo.Register(c, "D")
	assert.ErrorIs(t, err, smo.ErrRegistrationShut)
}

func TestConfirmAttendance(t *testing.T) {
	c := newCycle([]string{"A"}, nil, nil)

	require.NoError(t, smo.ConfirmAttendance(c, "A", smo.SourceSelf))
	require.NoError(t, smo.ConfirmAttendance(c, "A", smo.SourceSelf))
	assert.Equal(t, []string{"A"}, c.SelfReported)

	assert.ErrorIs(t, smo.ConfirmAttendance(c, "Z", smo.SourceLead), smo.ErrNotRegistered)
	err := smo.ConfirmAttendance(c, "A", smo.AttendanceSource("fax"))
	assert.True(t, errors.Is(err, smo.ErrUnknownSource))
}

func TestTrainingReminderDue(t *testing.T) {
	c := newCycle(nil, nil, nil)
	assert.True(t, smo.TrainingReminderDue(c, cadence.Date{Year: 2026, Month: time.November, Day: 18}))
	assert.False(t, smo.TrainingReminderDue(c, cadence.Date{Year: 2026, Month: time.November, Day: 19}))
	assert.Equal(t, "smo-2026-11-21", c.ID)
}
