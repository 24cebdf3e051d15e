package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/opportunity"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/smo"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/volunteer"
	idb "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// errStaleTransition means another poll moved the cycle first.
var errStaleTransition = errors.New("cycle status changed concurrently")

// SMOCycle (w7) drives the monthly SMO cycle: it opens the next cycle,
// reminds registrants the day before training, enforces training
// attendance and advances the status. Every step is time-gated, so the
// workflow is safe to run on any schedule.
type SMOCycle struct {
	base
}

func NewSMOCycle(deps Deps) *SMOCycle {
	return &SMOCycle{base: newBase(notification.WorkflowSMOCycle, deps)}
}

func (w *SMOCycle) Run(ctx context.Context, rec *Recorder) error {
	now := w.now()
	today := w.Calendar.Today()

	if err := w.ensureUpcoming(ctx, rec, today, now); err != nil {
		return err
	}

	cycles, err := w.Cycles.ListOpen(ctx)
	if err != nil {
		return storeErr("list smo cycles", err)
	}

	var errs []error
	for _, c := range cycles {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if smo.TrainingReminderDue(c, today) {
			if err := w.remindTraining(ctx, rec, c); err != nil {
				errs = append(errs, err)
			}
		}
		if c.Status.Rank() >= smo.StatusTrainingComplete.Rank() {
			// Notices from an earlier enforcement that did not finish. The
			// cycle is held in place until they go out.
			if err := w.notifyEnforcement(ctx, rec, c, false); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if err := w.advance(ctx, rec, c, now); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ensureUpcoming opens the next cycle once its service day is within the
// creation window and invites every eligible volunteer.
func (w *SMOCycle) ensureUpcoming(ctx context.Context, rec *Recorder, today cadence.Date, now time.Time) error {
	service := smo.NextServiceDate(today)
	if !smo.ShouldCreate(today, service) {
		return nil
	}
	if _, err := w.Cycles.GetByServiceDate(ctx, service); err == nil {
		return nil
	} else if !errors.Is(err, idb.ErrCycleNotFound) {
		return storeErr("get smo cycle", err)
	}

	c := smo.NewCycle(service, now)
	training := &opportunity.Opportunity{
		ID:        c.ID + "-training",
		Title:     "SMO Training",
		Category:  "smo",
		Date:      c.TrainingDate,
		StartTime: "18:00",
		EndTime:   "20:00",
		Status:    opportunity.StatusApproved,
		CreatedAt: now,
	}
	serviceDay := &opportunity.Opportunity{
		ID:        c.ID + "-service",
		Title:     "SMO Service Day",
		Category:  "smo",
		Date:      c.ServiceDate,
		StartTime: "08:00",
		EndTime:   "14:00",
		Status:    opportunity.StatusApproved,
		CreatedAt: now,
	}
	c.TrainingOpportunityID = training.ID
	c.ServiceOpportunityID = serviceDay.ID

	if err := w.Cycles.Create(ctx, c, training, serviceDay); err != nil {
		if errors.Is(err, idb.ErrCycleExists) {
			return nil
		}
		return storeErr("create smo cycle", err)
	}
	w.logger.WithFields(logrus.Fields{
		"subject_id":    c.ID,
		"training_date": c.TrainingDate.String(),
		"service_date":  c.ServiceDate.String(),
	}).Info("SMO cycle opened")

	vols, err := w.Volunteers.ListSMOEligible(ctx)
	if err != nil {
		return storeErr("list smo eligible volunteers", err)
	}
	for _, v := range vols {
		if !v.IsActive() {
			continue
		}
		w.deliver(ctx, rec, delivery{
			volunteer: v,
			subject:   c,
			stage:     cadence.StageSMOInvite,
			data:      w.cycleData(c, v),
			opts:      DispatchOptions{Preferred: notification.ChannelEmail},
		})
	}
	return nil
}

func (w *SMOCycle) remindTraining(ctx context.Context, rec *Recorder, c *smo.Cycle) error {
	return w.notifyMembers(ctx, rec, c, c.RegisteredVolunteers, cadence.StageSMOTrainingReminder, notification.ChannelSMS, true)
}

// notifyEnforcement sends the removal and promotion notices from the stored
// enforcement lists. The ledger makes repeats no-ops. Missing volunteers are
// only reported on the poll that ran the enforcement.
func (w *SMOCycle) notifyEnforcement(ctx context.Context, rec *Recorder, c *smo.Cycle, reportMissing bool) error {
	if err := w.notifyMembers(ctx, rec, c, c.RemovedVolunteers, cadence.StageSMORemoved, notification.ChannelEmail, reportMissing); err != nil {
		return err
	}
	return w.notifyMembers(ctx, rec, c, c.PromotedVolunteers, cadence.StageSMOPromoted, notification.ChannelSMS, reportMissing)
}

// advance applies every transition that is due, one step at a time.
func (w *SMOCycle) advance(ctx context.Context, rec *Recorder, c *smo.Cycle, now time.Time) error {
	loc := w.Calendar.Location
	for {
		next, ok := smo.NextStatus(c, now, loc)
		if !ok {
			return nil
		}

		var enforced smo.EnforcementResult
		updated, err := w.Cycles.Update(ctx, c.ID, func(cur *smo.Cycle) error {
			n, ok := smo.NextStatus(cur, now, loc)
			if !ok || n != next {
				return errStaleTransition
			}
			if err := smo.Advance(cur, n); err != nil {
				return err
			}
			if n == smo.StatusTrainingComplete {
				enforced = smo.Enforce(cur)
			}
			cur.UpdatedAt = now
			return nil
		})
		if errors.Is(err, errStaleTransition) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("advance smo cycle %s to %s: %w", c.ID, next, err)
		}

		entry := w.logger.WithFields(logrus.Fields{"subject_id": c.ID, "from": c.Status, "to": next})
		if next == smo.StatusTrainingComplete {
			entry = entry.WithFields(logrus.Fields{
				"kept":     len(enforced.Kept),
				"removed":  len(enforced.Removed),
				"promoted": len(enforced.Promoted),
			})
		}
		entry.Info("SMO cycle advanced")

		if next == smo.StatusTrainingComplete {
			if err := w.notifyEnforcement(ctx, rec, updated, true); err != nil {
				return err
			}
		}
		c = updated
	}
}

func (w *SMOCycle) notifyMembers(ctx context.Context, rec *Recorder, c *smo.Cycle, ids []string, stage cadence.Stage, preferred notification.Channel, reportMissing bool) error {
	if len(ids) == 0 {
		return nil
	}
	vols, err := w.Volunteers.GetByIDs(ctx, ids)
	if err != nil {
		return storeErr("load smo members", err)
	}
	for _, id := range ids {
		v, ok := vols[id]
		if !ok {
			if reportMissing {
				w.lookupFailed(rec, id, c, stage)
			}
			continue
		}
		w.deliver(ctx, rec, delivery{
			volunteer: v,
			subject:   c,
			stage:     stage,
			data:      w.cycleData(c, v),
			opts:      DispatchOptions{Preferred: preferred},
		})
	}
	return nil
}

func (w *SMOCycle) cycleData(c *smo.Cycle, v *volunteer.Volunteer) MessageData {
	return MessageData{
		Name:         v.DisplayName(),
		Title:        "SMO Service Day",
		TrainingDate: humanDate(c.TrainingDate),
		ServiceDate:  humanDate(c.ServiceDate),
		Link:         w.link("/smo/" + c.ID),
	}
}
