package cadence

import "time"

const (
	msPerHour = float64(time.Hour / time.Millisecond)
	msPerDay  = 24 * msPerHour
)

// DaysUntil is the fractional number of days from now to t.
func DaysUntil(now, t time.Time) float64 {
	return float64(t.Sub(now).Milliseconds()) / msPerDay
}

// HoursUntil is the fractional number of hours from now to t.
func HoursUntil(now, t time.Time) float64 {
	return float64(t.Sub(now).Milliseconds()) / msPerHour
}

// window is a half-open (lo, hi] interval of days-until-event.
type window struct {
	stage  Stage
	lo, hi float64
}

// eventDayWindows is ordered most time-urgent first.
var eventDayWindows = []window{
	{stage: StageEvent24Hour, lo: 0, hi: 1.5},
	{stage: StageEvent72Hour, lo: 1.5, hi: 3.5},
	{stage: StageEvent7Day, lo: 3.5, hi: 7.5},
}

// EventDayStages lists the day-granularity stages of the event cadence.
func EventDayStages() []Stage {
	stages := make([]Stage, 0, len(eventDayWindows))
	for _, w := range eventDayWindows {
		stages = append(stages, w.stage)
	}
	return stages
}

// ResolveEventDayStage returns the single day-stage whose window contains
// now and that has not been sent yet. The windows never overlap, so at
// most one stage can qualify at any instant.
func ResolveEventDayStage(now, start time.Time, sent SentSet) (Stage, bool) {
	days := DaysUntil(now, start)
	for _, w := range eventDayWindows {
		if days > w.lo && days <= w.hi && !sent.Has(w.stage) {
			return w.stage, true
		}
	}
	return 0, false
}

// ResolveThreeHourStage is the SMS track of the event cadence. It is
// independent of the day stages: [1h, 4h] before start.
func ResolveThreeHourStage(now, start time.Time, sent SentSet) (Stage, bool) {
	hours := HoursUntil(now, start)
	if hours >= 1 && hours <= 4 && !sent.Has(StageEvent3HourSMS) {
		return StageEvent3HourSMS, true
	}
	return 0, false
}

// ComplianceLookaheadDays bounds the compliance-expiry warning window.
const ComplianceLookaheadDays = 30

// ComplianceStages lists the compliance cadence, most urgent first.
func ComplianceStages() []Stage {
	return []Stage{StageCompliance7Day, StageCompliance30Day}
}

// ResolveComplianceStage picks the most urgent unsent warning for an item
// expiring on expiry, or nothing when outside the lookahead window.
func ResolveComplianceStage(today, expiry Date, sent SentSet) (Stage, bool) {
	left := today.DaysUntil(expiry)
	if left < 0 || left > ComplianceLookaheadDays {
		return 0, false
	}
	if left <= 7 {
		if sent.Has(StageCompliance7Day) {
			return 0, false
		}
		return StageCompliance7Day, true
	}
	if sent.Has(StageCompliance30Day) {
		return 0, false
	}
	return StageCompliance30Day, true
}

// BirthdayMatches reports whether a month/day birthday falls on today.
// Feb 29 birthdays are observed on Feb 28 in common years.
func BirthdayMatches(month time.Month, day int, today Date) bool {
	if month == 0 || day == 0 {
		return false
	}
	if month == time.February && day == 29 && !isLeap(today.Year) {
		return today.Month == time.February && today.Day == 28
	}
	return today.Month == month && today.Day == day
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

const (
	DebriefDelay  = 15 * time.Minute
	DebriefWindow = 10 * time.Minute
)

// DebriefDue reports whether now is within [end+15m, end+25m).
func DebriefDue(now, end time.Time) bool {
	since := now.Sub(end)
	return since >= DebriefDelay && since < DebriefDelay+DebriefWindow
}
