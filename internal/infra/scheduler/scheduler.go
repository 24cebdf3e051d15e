package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	groupJobTimeout  = 15 * time.Minute
	singleJobTimeout = 5 * time.Minute
)

// Specs are the cron expressions of each trigger.
type Specs struct {
	Daily          string // w1, w2, w6, w7
	Scheduled      string // w3, w4, w5
	ThreeHour      string // w6 SMS track
	TenMinute      string // w8
	SMOEnforcement string // w7 at the training-night cutoff
}

// WorkflowScheduler is the in-process trigger. The run endpoint hit by an
// external scheduler is the durable mechanism; this covers the time the
// process happens to be up, plus a catch-up pass at start.
type WorkflowScheduler struct {
	cronEngine   *cron.Cron
	service      app.NotificationService
	logger       *logrus.Entry
	specs        Specs
	catchupDelay time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

func NewWorkflowScheduler(service app.NotificationService, loc *time.Location, specs Specs, catchupDelay time.Duration, logger *logrus.Entry) *WorkflowScheduler {
	entry := logger.WithField("component", "scheduler")
	cronLogger := cron.PrintfLogger(entry)
	return &WorkflowScheduler{
		cronEngine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		service:      service,
		logger:       entry,
		specs:        specs,
		catchupDelay: catchupDelay,
		done:         make(chan struct{}),
	}
}

// Start registers the jobs, starts cron and schedules the catch-up pass.
func (s *WorkflowScheduler) Start() error {
	s.logger.Info("Starting workflow scheduler...")

	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"daily", s.specs.Daily, func() { s.runGroup("daily", app.DailyGroup, notification.TriggerCron) }},
		{"scheduled", s.specs.Scheduled, func() { s.runGroup("scheduled", app.ScheduledGroup, notification.TriggerCron) }},
		{"three-hour", s.specs.ThreeHour, func() { s.runOne(notification.WorkflowEventCadence, app.ModeThreeHourOnly) }},
		{"ten-minute", s.specs.TenMinute, func() { s.runOne(notification.WorkflowDebrief, app.ModeDefault) }},
		{"smo-enforcement", s.specs.SMOEnforcement, func() { s.runOne(notification.WorkflowSMOCycle, app.ModeDefault) }},
	}
	for _, j := range jobs {
		if j.spec == "" {
			s.logger.WithField("job", j.name).Info("No cron spec, job not scheduled")
			continue
		}
		if _, err := s.cronEngine.AddFunc(j.spec, j.fn); err != nil {
			return fmt.Errorf("could not add %s cron job (%q): %w", j.name, j.spec, err)
		}
	}

	s.cronEngine.Start()

	s.wg.Add(1)
	go s.catchup()

	s.logger.Info("Workflow scheduler started with jobs.")
	return nil
}

// catchup runs the daily and scheduled groups once shortly after start.
// The once-per-day guard makes this a no-op when cron already ran them.
func (s *WorkflowScheduler) catchup() {
	defer s.wg.Done()
	select {
	case <-time.After(s.catchupDelay):
	case <-s.done:
		return
	}
	s.logger.Info("Running startup catch-up pass")
	s.runGroup("daily", app.DailyGroup, notification.TriggerStartup)
	s.runGroup("scheduled", app.ScheduledGroup, notification.TriggerStartup)
}

func (s *WorkflowScheduler) runGroup(name string, ids []notification.WorkflowID, trigger notification.Trigger) {
	ctx, cancel := context.WithTimeout(context.Background(), groupJobTimeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{"job": name, "trigger": trigger})
	log.Info("Cron job triggered")
	for _, res := range s.service.RunGroup(ctx, ids, app.RunOptions{Trigger: trigger}) {
		entry := log.WithFields(logrus.Fields{
			"workflow": res.Workflow,
			"status":   res.Status,
			"sent":     res.Counts.Sent,
			"failed":   res.Counts.Failed,
			"skipped":  res.Counts.Skipped,
		})
		if res.Status == app.RunStatusFailed {
			entry.WithField("error", res.Error).Error("Workflow failed")
			continue
		}
		entry.Info("Workflow done")
	}
}

func (s *WorkflowScheduler) runOne(id notification.WorkflowID, mode app.Mode) {
	ctx, cancel := context.WithTimeout(context.Background(), singleJobTimeout)
	defer cancel()

	log := s.logger.WithFields(logrus.Fields{"workflow": id, "mode": mode})
	_, err := s.service.RunWorkflow(ctx, id, app.RunOptions{Trigger: notification.TriggerCron, Mode: mode})
	if err != nil {
		log.WithError(err).Warn("Scheduled workflow did not complete")
	}
}

func (s *WorkflowScheduler) Stop() {
	s.logger.Info("Stopping workflow scheduler...")
	close(s.done)
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("Workflow scheduler gracefully stopped.")
}
