// internal/app/notification_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

var (
	ErrUnknownWorkflow  = errors.New("unknown workflow")
	ErrWorkflowDisabled = errors.New("workflow is disabled")
	ErrAlreadyRanToday  = errors.New("workflow already ran today")
)

// Trigger groups.
var (
	DailyGroup = []notification.WorkflowID{
		notification.WorkflowShiftReminder,
		notification.WorkflowThankYou,
		notification.WorkflowEventCadence,
		notification.WorkflowSMOCycle,
	}
	ScheduledGroup = []notification.WorkflowID{
		notification.WorkflowNewOpportunity,
		notification.WorkflowBirthday,
		notification.WorkflowComplianceAlert,
	}
)

// NotificationService is what the scheduler, the HTTP API and the admin
// bot use to run workflows.
type NotificationService interface {
	RunWorkflow(ctx context.Context, id notification.WorkflowID, opts RunOptions) (*notification.WorkflowRun, error)
	RunGroup(ctx context.Context, ids []notification.WorkflowID, opts RunOptions) []RunResult
	Workflows() []notification.WorkflowID
}

// RunOptions controls one invocation.
type RunOptions struct {
	Trigger notification.Trigger
	Mode    Mode
	// Force ignores the enabled flag and the once-per-day guard.
	Force bool
}

// RunResult summarises one workflow of a group run.
type RunResult struct {
	Workflow notification.WorkflowID `json:"workflow"`
	RunID    string                  `json:"runId,omitempty"`
	Status   string                  `json:"status"`
	Counts   notification.Counts     `json:"counts"`
	Error    string                  `json:"error,omitempty"`
}

const (
	RunStatusCompleted  = "completed"
	RunStatusFailed     = "failed"
	RunStatusDisabled   = "disabled"
	RunStatusAlreadyRan = "already_ran"
	RunStatusUnknown    = "unknown"
)

// FlagSource answers whether a workflow is enabled.
type FlagSource interface {
	IsEnabled(ctx context.Context, id notification.WorkflowID) bool
}

// RunObserver is told about every finished run.
type RunObserver interface {
	ObserveRun(run *notification.WorkflowRun, took time.Duration)
}

// Runner owns the workflow registry. It applies the enabled flags and the
// once-per-day guard, collapses overlapping invocations of the same
// workflow and writes the run log.
type Runner struct {
	workflows map[notification.WorkflowID]Workflow
	order     []notification.WorkflowID
	runs      notification.RunRepository
	flags     FlagSource
	calendar  *cadence.Calendar
	observers []RunObserver
	logger    *logrus.Entry
	inflight  singleflight.Group
}

func NewRunner(runs notification.RunRepository, flags FlagSource, calendar *cadence.Calendar, logger *logrus.Entry, workflows ...Workflow) *Runner {
	r := &Runner{
		workflows: make(map[notification.WorkflowID]Workflow, len(workflows)),
		runs:      runs,
		flags:     flags,
		calendar:  calendar,
		logger:    logger.WithField("component", "runner"),
	}
	for _, wf := range workflows {
		r.workflows[wf.ID()] = wf
		r.order = append(r.order, wf.ID())
	}
	return r
}

// AddObserver registers o for run notifications.
func (r *Runner) AddObserver(o RunObserver) {
	r.observers = append(r.observers, o)
}

// Workflows lists registered workflow ids in registration order.
func (r *Runner) Workflows() []notification.WorkflowID {
	return append([]notification.WorkflowID(nil), r.order...)
}

// RunWorkflow runs one workflow to completion and logs the run. A run that
// is skipped by a guard returns the guard error and no run record.
func (r *Runner) RunWorkflow(ctx context.Context, id notification.WorkflowID, opts RunOptions) (*notification.WorkflowRun, error) {
	wf, ok := r.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, id)
	}
	key := string(id) + "/" + string(opts.Mode)
	v, err, shared := r.inflight.Do(key, func() (interface{}, error) {
		return r.run(ctx, wf, opts)
	})
	if shared {
		r.logger.WithField("workflow", id).Debug("Joined in-flight run")
	}
	run, _ := v.(*notification.WorkflowRun)
	return run, err
}

// RunGroup runs ids one after another. Failures of one workflow do not
// stop the rest.
func (r *Runner) RunGroup(ctx context.Context, ids []notification.WorkflowID, opts RunOptions) []RunResult {
	results := make([]RunResult, 0, len(ids))
	for _, id := range ids {
		run, err := r.RunWorkflow(ctx, id, opts)
		res := RunResult{Workflow: id, Status: RunStatusCompleted}
		if run != nil {
			res.RunID = run.ID
			res.Counts = run.Counts
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrWorkflowDisabled):
			res.Status = RunStatusDisabled
		case errors.Is(err, ErrAlreadyRanToday):
			res.Status = RunStatusAlreadyRan
		case errors.Is(err, ErrUnknownWorkflow):
			res.Status = RunStatusUnknown
			res.Error = err.Error()
		default:
			res.Status = RunStatusFailed
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

func (r *Runner) run(ctx context.Context, wf Workflow, opts RunOptions) (*notification.WorkflowRun, error) {
	id := wf.ID()
	entry := r.logger.WithFields(logrus.Fields{"workflow": id, "trigger": opts.Trigger, "mode": opts.Mode})

	if !opts.Force {
		if r.flags != nil && !r.flags.IsEnabled(ctx, id) {
			entry.Info("Workflow disabled, skipping")
			return nil, ErrWorkflowDisabled
		}
		if once, ok := wf.(OncePerDay); ok && once.OncePerDay(opts.Mode) {
			from, to := r.calendar.DayRange(r.calendar.Today())
			ran, err := r.runs.HasRunBetween(ctx, id, from, to)
			if err != nil {
				return nil, storeErr("check previous runs", err)
			}
			if ran {
				entry.Info("Workflow already ran today, skipping")
				return nil, ErrAlreadyRanToday
			}
		}
	}

	run := &notification.WorkflowRun{
		ID:         uuid.NewString(),
		WorkflowID: id,
		Trigger:    opts.Trigger,
		Mode:       string(opts.Mode),
		StartedAt:  r.calendar.Now(),
	}
	rec := NewRecorder(run.ID, id, opts.Mode)
	entry = entry.WithField("run_id", run.ID)
	entry.Info("Workflow run started")

	started := time.Now()
	err := runSafely(ctx, wf, rec)

	run.Counts = rec.Counts()
	run.FinishedAt = r.calendar.Now()
	if err != nil {
		run.Error = err.Error()
		entry.WithError(err).Error("Workflow run aborted")
	}

	// The run record is written even when the caller has gone away.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if saveErr := r.runs.CreateRun(saveCtx, run, rec.Details()); saveErr != nil {
		entry.WithError(saveErr).Error("Failed to write workflow run log")
	}

	entry.WithFields(logrus.Fields{
		"sent":    run.Sent,
		"failed":  run.Failed,
		"skipped": run.Skipped,
	}).Info("Workflow run finished")

	for _, o := range r.observers {
		o.ObserveRun(run, time.Since(started))
	}
	return run, err
}

func runSafely(ctx context.Context, wf Workflow, rec *Recorder) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("workflow %s panicked: %v", wf.ID(), p)
		}
	}()
	return wf.Run(ctx, rec)
}
