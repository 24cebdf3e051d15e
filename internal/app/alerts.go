package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	domainTelegram "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/telegram"

	"github.com/sirupsen/logrus"
)

// RunAlerter tells the admin chat about runs that failed or had failures.
type RunAlerter struct {
	notifier domainTelegram.AdminNotifier
	logger   *logrus.Entry
}

func NewRunAlerter(notifier domainTelegram.AdminNotifier, logger *logrus.Entry) *RunAlerter {
	return &RunAlerter{notifier: notifier, logger: logger.WithField("component", "run_alerter")}
}

func (a *RunAlerter) ObserveRun(run *notification.WorkflowRun, took time.Duration) {
	if run.Failed == 0 && run.Error == "" {
		return
	}
	actions := []domainTelegram.Action{
		{Label: "Details", Data: domainTelegram.ActionRunDetails + run.ID},
		{Label: "Run again", Data: domainTelegram.RetryData(string(run.WorkflowID), run.Mode)},
	}
	if err := a.notifier.NotifyAdmin(FormatRun(run, took), actions...); err != nil {
		a.logger.WithError(err).WithField("run_id", run.ID).Error("Failed to send run alert")
	}
}

// FormatRun renders a run for a chat message.
func FormatRun(run *notification.WorkflowRun, took time.Duration) string {
	var b strings.Builder
	status := "finished"
	if run.Error != "" {
		status = "aborted"
	}
	trigger := string(run.Trigger)
	if run.Mode != "" {
		trigger += ", " + run.Mode
	}
	fmt.Fprintf(&b, "Workflow %s %s (%s)\n", run.WorkflowID, status, trigger)
	fmt.Fprintf(&b, "Sent: %d, failed: %d, skipped: %d\n", run.Sent, run.Failed, run.Skipped)
	if took > 0 {
		fmt.Fprintf(&b, "Took: %s\n", took.Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", run.Error)
	}
	fmt.Fprintf(&b, "Run ID: %s", run.ID)
	return b.String()
}
