package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/opportunity"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/volunteer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tuesday morning.
var tuesday = time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)

func date(y int, m time.Month, d int) cadence.Date {
	return cadence.Date{Year: y, Month: m, Day: d}
}

func approvedOpp(id string, d cadence.Date, start string, rsvps ...string) *opportunity.Opportunity {
	return &opportunity.Opportunity{
		ID:        id,
		Title:     "Health Fair " + id,
		Category:  "health",
		Date:      d,
		StartTime: start,
		Location:  "Community Center",
		Status:    opportunity.StatusApproved,
		RSVPs:     rsvps,
	}
}

func TestShiftReminder_AtMostOncePerStage(t *testing.T) {
	h := newHarness(tuesday)
	inactive := activeVolunteer("c")
	inactive.Status = volunteer.StatusInactive
	h.volunteers = newMemVolunteers(activeVolunteer("a"), activeVolunteer("b"), inactive)
	h.opportunities.opps = []*opportunity.Opportunity{
		approvedOpp("o1", date(2026, time.March, 11), "10:00", "a", "c", "ghost"),
		approvedOpp("o-later", date(2026, time.March, 12), "10:00", "a"),
	}
	h.opportunities.shifts = []*opportunity.Shift{{OpportunityID: "o1", AssignedVolunteerIDs: []string{"b", "a"}}}
	wf := app.NewShiftReminder(h.deps())

	rec, err := h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, notification.Counts{Sent: 2, Failed: 1}, rec.Counts())
	assert.ElementsMatch(t, []string{"a", "b"}, h.sender.recipients())
	for _, c := range h.sender.calls {
		assert.Equal(t, notification.ChannelSMS, c.Opts.Preferred)
		assert.Contains(t, c.Msg.SMS, "Health Fair o1")
	}
	assert.True(t, h.ledger.has("a", "o1", cadence.StageShiftReminder))

	reasons := map[string]notification.Reason{}
	for _, d := range rec.Details() {
		reasons[d.RecipientID] = d.Reason
	}
	assert.Equal(t, notification.ReasonLookupFailed, reasons["ghost"])
	assert.NotContains(t, reasons, "c", "inactive volunteers are skipped silently")

	rec, err = h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Counts().Sent)
	assert.Len(t, h.sender.calls, 2, "a second run sends nothing new")
}

func TestShiftReminder_StoreErrorAbortsRun(t *testing.T) {
	h := newHarness(tuesday)
	h.opportunities.listErr = errStore

	_, err := h.run(app.NewShiftReminder(h.deps()), app.ModeDefault)
	assert.ErrorIs(t, err, notification.ErrTransientStore)
}

func TestDeliver_SendFailureIsCountedAndRecorded(t *testing.T) {
	h := newHarness(tuesday)
	h.volunteers = newMemVolunteers(activeVolunteer("a"), activeVolunteer("b"))
	h.opportunities.opps = []*opportunity.Opportunity{approvedOpp("o1", date(2026, time.March, 11), "10:00", "a", "b")}
	h.sender.fail["a"] = true

	rec, err := h.run(app.NewShiftReminder(h.deps()), app.ModeDefault)
	require.NoError(t, err, "one recipient failing never aborts the batch")
	assert.Equal(t, notification.Counts{Sent: 1, Failed: 1}, rec.Counts())
	assert.True(t, h.ledger.has("a", "o1", cadence.StageShiftReminder), "provider failures are not retried by the next poll")
}

func TestDeliver_LedgerLookupFailure(t *testing.T) {
	h := newHarness(tuesday)
	h.volunteers = newMemVolunteers(activeVolunteer("a"))
	h.opportunities.opps = []*opportunity.Opportunity{approvedOpp("o1", date(2026, time.March, 11), "10:00", "a")}
	h.ledger.lookErr = errStore

	rec, err := h.run(app.NewShiftReminder(h.deps()), app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, notification.Counts{Failed: 1}, rec.Counts())
	assert.Empty(t, h.sender.calls)
}

func TestThankYou_YesterdaysAttendees(t *testing.T) {
	h := newHarness(tuesday)
	h.volunteers = newMemVolunteers(activeVolunteer("a"), activeVolunteer("b"))
	h.opportunities.opps = []*opportunity.Opportunity{
		approvedOpp("yesterday", date(2026, time.March, 9), "10:00"),
		approvedOpp("today", date(2026, time.March, 10), "10:00", "b"),
	}
	h.opportunities.shifts = []*opportunity.Shift{{OpportunityID: "yesterday", AssignedVolunteerIDs: []string{"a"}}}

	rec, err := h.run(app.NewThankYou(h.deps()), app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Counts().Sent)
	require.Len(t, h.sender.calls, 1)
	assert.Equal(t, "a", h.sender.calls[0].VolunteerID)
	assert.Equal(t, notification.ChannelEmail, h.sender.calls[0].Opts.Preferred)
}

func TestNewOpportunity_OptInAndEventTypes(t *testing.T) {
	h := newHarness(tuesday)
	noAlerts := activeVolunteer("b")
	noAlerts.Preferences.OpportunityAlerts = false
	otherType := activeVolunteer("c")
	otherType.EventTypes = []string{"food"}
	h.volunteers = newMemVolunteers(activeVolunteer("a"), noAlerts, otherType)

	fresh := approvedOpp("fresh", date(2026, time.March, 20), "10:00")
	fresh.CreatedAt = tuesday.Add(-2 * time.Hour)
	old := approvedOpp("old", date(2026, time.March, 20), "10:00")
	old.CreatedAt = tuesday.Add(-72 * time.Hour)
	past := approvedOpp("past", date(2026, time.March, 9), "10:00")
	past.CreatedAt = tuesday.Add(-time.Hour)
	pending := approvedOpp("pending", date(2026, time.March, 20), "10:00")
	pending.Status = opportunity.StatusPending
	pending.CreatedAt = tuesday.Add(-time.Hour)
	h.opportunities.opps = []*opportunity.Opportunity{fresh, old, past, pending}

	wf := app.NewNewOpportunity(h.deps())
	rec, err := h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Counts().Sent)
	assert.Equal(t, []string{"a"}, h.sender.recipients())
	assert.True(t, h.ledger.has("a", "fresh", cadence.StageNewOpportunity))

	_, err = h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Len(t, h.sender.calls, 1)
}

func TestBirthday_OncePerYear(t *testing.T) {
	h := newHarness(tuesday)
	bday := activeVolunteer("a")
	bday.BirthMonth, bday.BirthDay = time.March, 10
	other := activeVolunteer("b")
	other.BirthMonth, other.BirthDay = time.March, 11
	h.volunteers = newMemVolunteers(bday, other)
	wf := app.NewBirthday(h.deps())

	rec, err := h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Counts().Sent)
	assert.True(t, h.ledger.has("a", "birthday-2026", cadence.StageBirthday))

	_, err = h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Len(t, h.sender.calls, 1)
}

func TestCompliance_PicksMostUrgentStage(t *testing.T) {
	h := newHarness(tuesday)
	h.volunteers = newMemVolunteers(activeVolunteer("a"))
	h.volunteers.compliance = []*volunteer.ComplianceItem{
		{ID: "bg-check", VolunteerID: "a", Kind: "Background check", ExpiresOn: date(2026, time.March, 15)},
		{ID: "tb-test", VolunteerID: "a", Kind: "TB test", ExpiresOn: date(2026, time.March, 30)},
		{ID: "cpr", VolunteerID: "ghost", Kind: "CPR", ExpiresOn: date(2026, time.March, 20)},
		{ID: "far", VolunteerID: "a", Kind: "First aid", ExpiresOn: date(2026, time.May, 1)},
	}
	wf := app.NewCompliance(h.deps())

	rec, err := h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, notification.Counts{Sent: 2, Failed: 1}, rec.Counts())
	assert.True(t, h.ledger.has("a", "bg-check", cadence.StageCompliance7Day))
	assert.True(t, h.ledger.has("a", "tb-test", cadence.StageCompliance30Day))
	assert.False(t, h.ledger.has("a", "bg-check", cadence.StageCompliance30Day))

	for _, c := range h.sender.calls {
		assert.NotContains(t, c.Msg.Text, "compliance requirement", "the item kind is filled in")
	}

	rec, err = h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Counts().Sent)
	assert.Len(t, h.sender.calls, 2)
}

func TestEventCadence_SevenDayStageThenNothing(t *testing.T) {
	h := newHarness(tuesday)
	h.volunteers = newMemVolunteers(activeVolunteer("a"))
	// Seven days and two hours out.
	h.opportunities.opps = []*opportunity.Opportunity{approvedOpp("o7", date(2026, time.March, 17), "11:00", "a")}
	wf := app.NewEventCadence(h.deps())

	rec, err := h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Counts().Sent)
	require.Len(t, h.sender.calls, 1)
	assert.Equal(t, notification.ChannelEmail, h.sender.calls[0].Opts.Preferred)
	assert.True(t, h.ledger.has("a", "o7", cadence.StageEvent7Day))
	assert.False(t, h.ledger.has("a", "o7", cadence.StageEvent72Hour))

	rec, err = h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, notification.Counts{}, rec.Counts())
	assert.Len(t, h.sender.calls, 1)
}

func TestEventCadence_ThreeHourTrack(t *testing.T) {
	h := newHarness(tuesday)
	h.volunteers = newMemVolunteers(activeVolunteer("a"))
	// Starts in three hours: inside both the 24-hour window and the SMS window.
	h.opportunities.opps = []*opportunity.Opportunity{approvedOpp("soon", date(2026, time.March, 10), "12:00", "a")}
	wf := app.NewEventCadence(h.deps())

	rec, err := h.run(wf, app.ModeThreeHourOnly)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Counts().Sent)
	require.Len(t, h.sender.calls, 1)
	assert.Equal(t, app.DispatchOptions{Preferred: notification.ChannelSMS, NoFallback: true}, h.sender.calls[0].Opts)
	assert.True(t, h.ledger.has("a", "soon", cadence.StageEvent3HourSMS))
	assert.False(t, h.ledger.has("a", "soon", cadence.StageEvent24Hour), "three-hour mode skips the day stages")

	rec, err = h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Counts().Sent)
	require.Len(t, h.sender.calls, 2)
	assert.Equal(t, notification.ChannelEmail, h.sender.calls[1].Opts.Preferred)
	assert.True(t, h.ledger.has("a", "soon", cadence.StageEvent24Hour))
}

func TestEventCadence_MissingVolunteerReportedByFullRunOnly(t *testing.T) {
	h := newHarness(tuesday)
	h.volunteers = newMemVolunteers(activeVolunteer("a"))
	h.opportunities.opps = []*opportunity.Opportunity{approvedOpp("soon", date(2026, time.March, 10), "12:00", "a", "ghost")}
	wf := app.NewEventCadence(h.deps())

	rec, err := h.run(wf, app.ModeThreeHourOnly)
	require.NoError(t, err)
	assert.Equal(t, notification.Counts{Sent: 1}, rec.Counts())
	assert.Empty(t, rec.Details()[0].Reason)

	rec, err = h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Counts().Failed)
	var ghost notification.RunDetail
	for _, d := range rec.Details() {
		if d.RecipientID == "ghost" {
			ghost = d
		}
	}
	assert.Equal(t, notification.ReasonLookupFailed, ghost.Reason)
	assert.Equal(t, cadence.StageEvent24Hour.String(), ghost.Stage)
}

func TestDebrief_OnlyWithinWindow(t *testing.T) {
	h := newHarness(tuesday)
	h.volunteers = newMemVolunteers(activeVolunteer("a"), activeVolunteer("b"))
	due := approvedOpp("due", date(2026, time.March, 10), "06:00", "a")
	due.EndTime = "08:40"
	stale := approvedOpp("stale", date(2026, time.March, 10), "06:00", "b")
	stale.EndTime = "08:00"
	h.opportunities.opps = []*opportunity.Opportunity{due, stale}
	wf := app.NewDebrief(h.deps())

	rec, err := h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Counts().Sent)
	assert.Equal(t, []string{"a"}, h.sender.recipients())
	assert.Equal(t, notification.ChannelSMS, h.sender.calls[0].Opts.Preferred)

	_, err = h.run(wf, app.ModeDefault)
	require.NoError(t, err)
	assert.Len(t, h.sender.calls, 1)
}

func TestDebrief_WindowCrossingMidnight(t *testing.T) {
	h := newHarness(time.Date(2026, time.March, 11, 0, 5, 0, 0, time.UTC))
	h.volunteers = newMemVolunteers(activeVolunteer("a"), activeVolunteer("b"))
	late := approvedOpp("late", date(2026, time.March, 10), "20:00", "a")
	late.EndTime = "23:50"
	early := approvedOpp("early", date(2026, time.March, 10), "06:00", "b")
	early.EndTime = "08:00"
	h.opportunities.opps = []*opportunity.Opportunity{late, early}

	rec, err := h.run(app.NewDebrief(h.deps()), app.ModeDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Counts().Sent)
	assert.Equal(t, []string{"a"}, h.sender.recipients())
	assert.True(t, h.ledger.has("a", "late", cadence.StageDebrief))
}

func TestWorkflow_CancelledContextStopsBatch(t *testing.T) {
	h := newHarness(tuesday)
	h.volunteers = newMemVolunteers(activeVolunteer("a"))
	h.opportunities.opps = []*opportunity.Opportunity{approvedOpp("o1", date(2026, time.March, 11), "10:00", "a")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := app.NewRecorder("run-test", notification.WorkflowShiftReminder, app.ModeDefault)
	err := app.NewShiftReminder(h.deps()).Run(ctx, rec)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.sender.calls)
}
