package notification

import "time"

// Trigger records what started a workflow run.
type Trigger string

const (
	TriggerCron     Trigger = "cron"
	TriggerStartup  Trigger = "startup"
	TriggerEndpoint Trigger = "endpoint"
	TriggerManual   Trigger = "manual"
)

// WorkflowRun is the audit record of one workflow execution.
type WorkflowRun struct {
	ID         string     `json:"id"`
	WorkflowID WorkflowID `json:"workflowId"`
	Trigger    Trigger    `json:"trigger"`
	Mode       string     `json:"mode,omitempty"`
	Counts
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// RunDetail is one recipient processed during a run.
type RunDetail struct {
	RunID       string  `json:"runId"`
	RecipientID string  `json:"recipientId"`
	SubjectID   string  `json:"subjectId"`
	Stage       string  `json:"stage"`
	Channel     Channel `json:"channel,omitempty"`
	Outcome     Outcome `json:"outcome"`
	Reason      Reason  `json:"reason,omitempty"`
}
