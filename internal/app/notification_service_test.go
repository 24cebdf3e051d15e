package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorkflow struct {
	id    notification.WorkflowID
	once  bool
	runs  int
	modes []app.Mode
	err   error
	panic bool
}

func (s *stubWorkflow) ID() notification.WorkflowID { return s.id }

func (s *stubWorkflow) Run(_ context.Context, rec *app.Recorder) error {
	s.runs++
	s.modes = append(s.modes, rec.Mode)
	if s.panic {
		panic("boom")
	}
	return s.err
}

type onceStub struct{ *stubWorkflow }

// Only the default mode is guarded, like the event cadence SMS track.
func (s onceStub) OncePerDay(mode app.Mode) bool { return mode == app.ModeDefault }

type staticFlags map[notification.WorkflowID]bool

func (f staticFlags) IsEnabled(_ context.Context, id notification.WorkflowID) bool {
	enabled, ok := f[id]
	return !ok || enabled
}

type runSpy struct{ runs []*notification.WorkflowRun }

func (s *runSpy) ObserveRun(run *notification.WorkflowRun, _ time.Duration) {
	s.runs = append(s.runs, run)
}

func newTestRunner(runs *memRuns, flags app.FlagSource, wfs ...app.Workflow) *app.Runner {
	return app.NewRunner(runs, flags, fixedCalendar(tuesday), testLogger(), wfs...)
}

func TestRunner_UnknownWorkflow(t *testing.T) {
	r := newTestRunner(newMemRuns(), nil)
	_, err := r.RunWorkflow(context.Background(), "w42", app.RunOptions{})
	assert.ErrorIs(t, err, app.ErrUnknownWorkflow)
}

func TestRunner_OncePerDayGuard(t *testing.T) {
	runs := newMemRuns()
	wf := onceStub{&stubWorkflow{id: notification.WorkflowShiftReminder}}
	r := newTestRunner(runs, nil, wf)
	ctx := context.Background()

	run, err := r.RunWorkflow(ctx, wf.id, app.RunOptions{Trigger: notification.TriggerCron})
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, notification.TriggerCron, run.Trigger)

	_, err = r.RunWorkflow(ctx, wf.id, app.RunOptions{Trigger: notification.TriggerStartup})
	assert.ErrorIs(t, err, app.ErrAlreadyRanToday)
	assert.Equal(t, 1, wf.runs)

	run, err = r.RunWorkflow(ctx, wf.id, app.RunOptions{Mode: app.ModeThreeHourOnly})
	require.NoError(t, err, "the unguarded mode still runs")
	assert.Equal(t, "three_hour", run.Mode)

	_, err = r.RunWorkflow(ctx, wf.id, app.RunOptions{Trigger: notification.TriggerManual, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 3, wf.runs)
	assert.Len(t, runs.runs, 3)
}

func TestRunner_AbortedRunDoesNotCountAsDone(t *testing.T) {
	runs := newMemRuns()
	wf := onceStub{&stubWorkflow{id: notification.WorkflowThankYou, err: notification.ErrTransientStore}}
	r := newTestRunner(runs, nil, wf)

	run, err := r.RunWorkflow(context.Background(), wf.id, app.RunOptions{})
	require.Error(t, err)
	require.NotNil(t, run)
	assert.NotEmpty(t, run.Error)

	wf.err = nil
	_, err = r.RunWorkflow(context.Background(), wf.id, app.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, wf.runs)
}

func TestRunner_DisabledFlag(t *testing.T) {
	wf := &stubWorkflow{id: notification.WorkflowEventCadence}
	r := newTestRunner(newMemRuns(), staticFlags{notification.WorkflowEventCadence: false}, wf)

	_, err := r.RunWorkflow(context.Background(), wf.id, app.RunOptions{})
	assert.ErrorIs(t, err, app.ErrWorkflowDisabled)
	assert.Zero(t, wf.runs)

	_, err = r.RunWorkflow(context.Background(), wf.id, app.RunOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, wf.runs)
}

func TestRunner_RecoversPanicsAndNotifiesObservers(t *testing.T) {
	runs := newMemRuns()
	wf := &stubWorkflow{id: notification.WorkflowDebrief, panic: true}
	r := newTestRunner(runs, nil, wf)
	spy := &runSpy{}
	r.AddObserver(spy)

	run, err := r.RunWorkflow(context.Background(), wf.id, app.RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	require.Len(t, spy.runs, 1)
	assert.Equal(t, run.ID, spy.runs[0].ID)
	require.Len(t, runs.runs, 1)
	assert.Contains(t, runs.runs[0].Error, "boom")
}

func TestRunner_RunGroupContinuesPastFailures(t *testing.T) {
	failing := &stubWorkflow{id: notification.WorkflowShiftReminder, err: errors.New("db down")}
	disabled := &stubWorkflow{id: notification.WorkflowThankYou}
	ok := &stubWorkflow{id: notification.WorkflowEventCadence}
	r := newTestRunner(newMemRuns(), staticFlags{notification.WorkflowThankYou: false}, failing, disabled, ok)

	results := r.RunGroup(context.Background(), []notification.WorkflowID{
		notification.WorkflowShiftReminder,
		notification.WorkflowThankYou,
		notification.WorkflowEventCadence,
		notification.WorkflowBirthday,
	}, app.RunOptions{Trigger: notification.TriggerEndpoint})

	require.Len(t, results, 4)
	assert.Equal(t, app.RunStatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "db down")
	assert.Equal(t, app.RunStatusDisabled, results[1].Status)
	assert.Equal(t, app.RunStatusCompleted, results[2].Status)
	assert.NotEmpty(t, results[2].RunID)
	assert.Equal(t, app.RunStatusUnknown, results[3].Status)
	assert.Equal(t, 1, ok.runs)
}

func TestRunner_Workflows(t *testing.T) {
	r := newTestRunner(newMemRuns(), nil,
		&stubWorkflow{id: notification.WorkflowBirthday},
		&stubWorkflow{id: notification.WorkflowShiftReminder},
	)
	assert.Equal(t, []notification.WorkflowID{notification.WorkflowBirthday, notification.WorkflowShiftReminder}, r.Workflows())
}
