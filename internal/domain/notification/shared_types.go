// internal/domain/notification/shared_types.go
package notification

// Channel is a delivery medium for a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Reason explains why a dispatch did not go out.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonNotConfigured   Reason = "not_configured"
	ReasonOptedOut        Reason = "opted_out"
	ReasonSendFailed      Reason = "send_failed"
	ReasonNoContactMethod Reason = "no_contact_method"
	ReasonLookupFailed    Reason = "lookup_failed"
)

// Outcome is the per-recipient tally bucket of a workflow run.
type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// OutcomeFor maps a dispatch reason to the bucket a workflow counts it in.
// Only a provider error is a failure; missing configuration, opt-outs and
// missing contact details are skips.
func OutcomeFor(sent bool, reason Reason) Outcome {
	if sent {
		return OutcomeSent
	}
	switch reason {
	case ReasonSendFailed, ReasonLookupFailed:
		return OutcomeFailed
	default:
		return OutcomeSkipped
	}
}

// WorkflowID names one workflow executor.
type WorkflowID string

const (
	WorkflowShiftReminder   WorkflowID = "w1"
	WorkflowThankYou        WorkflowID = "w2"
	WorkflowNewOpportunity  WorkflowID = "w3"
	WorkflowBirthday        WorkflowID = "w4"
	WorkflowComplianceAlert WorkflowID = "w5"
	WorkflowEventCadence    WorkflowID = "w6"
	WorkflowSMOCycle        WorkflowID = "w7"
	WorkflowDebrief         WorkflowID = "w8"
)

// AllWorkflows lists every workflow in trigger order.
var AllWorkflows = []WorkflowID{
	WorkflowShiftReminder,
	WorkflowThankYou,
	WorkflowNewOpportunity,
	WorkflowBirthday,
	WorkflowComplianceAlert,
	WorkflowEventCadence,
	WorkflowSMOCycle,
	WorkflowDebrief,
}

// Valid reports whether id is a known workflow.
func (id WorkflowID) Valid() bool {
	for _, w := range AllWorkflows {
		if w == id {
			return true
		}
	}
	return false
}

// Counts aggregates per-recipient outcomes.
type Counts struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Add increments the bucket for o.
func (c *Counts) Add(o Outcome) {
	switch o {
	case OutcomeSent:
		c.Sent++
	case OutcomeFailed:
		c.Failed++
	default:
		c.Skipped++
	}
}

// Merge adds other into c.
func (c *Counts) Merge(other Counts) {
	c.Sent += other.Sent
	c.Failed += other.Failed
	c.Skipped += other.Skipped
}
