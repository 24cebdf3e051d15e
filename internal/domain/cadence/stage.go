// Package cadence holds the stage catalogue and the pure stage resolvers
// every workflow uses to decide which notification, if any, is due.
package cadence

import "fmt"

// Stage is an ordered point in a subject's lifecycle at which one
// notification is due. The numeric value is part of the dedup key.
type Stage int

const (
	StageEvent3HourSMS Stage = 0
	StageEvent24Hour   Stage = 1
	StageEvent72Hour   Stage = 3
	StageEvent7Day     Stage = 7

	StageShiftReminder   Stage = 10
	StageThankYou        Stage = 20
	StageNewOpportunity  Stage = 30
	StageBirthday        Stage = 40
	StageCompliance30Day Stage = 50
	StageCompliance7Day  Stage = 51
	StageDebrief         Stage = 80

	StageSMOTrainingReminder Stage = 100
	StageSMORemoved          Stage = 101
	StageSMOPromoted         Stage = 102
	StageSMOInvite           Stage = 103
)

var stageNames = map[Stage]string{
	StageEvent3HourSMS:       "3-hour-sms",
	StageEvent24Hour:         "24-hour",
	StageEvent72Hour:         "72-hour",
	StageEvent7Day:           "7-day",
	StageShiftReminder:       "shift-reminder",
	StageThankYou:            "thank-you",
	StageNewOpportunity:      "new-opportunity",
	StageBirthday:            "birthday",
	StageCompliance30Day:     "compliance-30-day",
	StageCompliance7Day:      "compliance-7-day",
	StageDebrief:             "debrief",
	StageSMOTrainingReminder: "smo-training-reminder",
	StageSMORemoved:          "smo-no-show-removal",
	StageSMOPromoted:         "smo-waitlist-promotion",
	StageSMOInvite:           "smo-registration-open",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage-%d", int(s))
}

// SentSet holds the stages already recorded in the ledger for one
// (recipient, subject) pair.
type SentSet map[Stage]bool

// Has reports whether s was already sent. A nil set has nothing sent.
func (s SentSet) Has(stage Stage) bool {
	return s[stage]
}

// SubjectKind tags the variant of a notification subject.
type SubjectKind string

const (
	SubjectOpportunity SubjectKind = "opportunity"
	SubjectVolunteer   SubjectKind = "volunteer"
	SubjectCompliance  SubjectKind = "compliance"
	SubjectSMOCycle    SubjectKind = "smo_cycle"
)

// Subject is the thing a reminder is about.
type Subject interface {
	SubjectID() string
	SubjectKind() SubjectKind
}
