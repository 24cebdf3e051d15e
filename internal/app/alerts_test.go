package app_test

import (
	"errors"
	"testing"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	domainTelegram "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/telegram"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	texts   []string
	actions [][]domainTelegram.Action
	err     error
}

func (f *fakeNotifier) NotifyAdmin(text string, actions ...domainTelegram.Action) error {
	f.texts = append(f.texts, text)
	f.actions = append(f.actions, actions)
	return f.err
}

func TestRunAlerter_OnlyAlertsOnFailures(t *testing.T) {
	n := &fakeNotifier{}
	a := app.NewRunAlerter(n, testLogger())

	a.ObserveRun(&notification.WorkflowRun{ID: "ok", WorkflowID: "w1", Counts: notification.Counts{Sent: 3, Skipped: 1}}, time.Second)
	assert.Empty(t, n.texts)

	a.ObserveRun(&notification.WorkflowRun{ID: "r1", WorkflowID: "w6", Counts: notification.Counts{Sent: 1, Failed: 2}}, time.Second)
	require.Len(t, n.texts, 1)
	assert.Contains(t, n.texts[0], "Workflow w6 finished")
	assert.Contains(t, n.texts[0], "failed: 2")
	assert.Equal(t, []domainTelegram.Action{
		{Label: "Details", Data: domainTelegram.ActionRunDetails + "r1"},
		{Label: "Run again", Data: domainTelegram.ActionRunRetry + "w6"},
	}, n.actions[0])

	n.err = errors.New("telegram down")
	a.ObserveRun(&notification.WorkflowRun{ID: "r2", WorkflowID: "w7", Error: "store operation failed"}, 0)
	require.Len(t, n.texts, 2)
	assert.Contains(t, n.texts[1], "aborted")
}

func TestRunAlerter_RetryKeepsMode(t *testing.T) {
	n := &fakeNotifier{}
	a := app.NewRunAlerter(n, testLogger())

	a.ObserveRun(&notification.WorkflowRun{
		ID: "r3", WorkflowID: notification.WorkflowEventCadence, Trigger: notification.TriggerCron,
		Mode: string(app.ModeThreeHourOnly), Counts: notification.Counts{Failed: 1},
	}, 0)

	require.Len(t, n.actions, 1)
	assert.Equal(t, "run_retry:w6:three_hour", n.actions[0][1].Data)
	assert.Contains(t, n.texts[0], "Workflow w6 finished (cron, three_hour)")
}

func TestFormatRun(t *testing.T) {
	text := app.FormatRun(&notification.WorkflowRun{
		ID:         "run-9",
		WorkflowID: notification.WorkflowBirthday,
		Trigger:    notification.TriggerManual,
		Counts:     notification.Counts{Sent: 4},
	}, 1500*time.Millisecond)

	assert.Equal(t, "Workflow w4 finished (manual)\nSent: 4, failed: 0, skipped: 0\nTook: 1.5s\nRun ID: run-9", text)
}
