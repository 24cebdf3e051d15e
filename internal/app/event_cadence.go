package app

import (
	"context"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/opportunity"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/volunteer"
)

// EventCadenceHorizonDays is how far ahead w6 looks for opportunities.
const EventCadenceHorizonDays = 8

// EventCadence (w6) walks each attendee of the upcoming opportunities
// through the 7-day, 72-hour and 24-hour reminders, plus an independent
// SMS-only nudge a few hours before start.
type EventCadence struct {
	base
}

func NewEventCadence(deps Deps) *EventCadence {
	return &EventCadence{base: newBase(notification.WorkflowEventCadence, deps)}
}

func (w *EventCadence) Run(ctx context.Context, rec *Recorder) error {
	today := w.Calendar.Today()
	opps, err := w.Opportunities.ListByDateRange(ctx, today.String(), today.AddDays(EventCadenceHorizonDays).String())
	if err != nil {
		return storeErr("list opportunities", err)
	}
	if len(opps) == 0 {
		return nil
	}
	byOpp, vols, err := w.audience(ctx, opps)
	if err != nil {
		return err
	}

	now := w.now()
	for _, o := range opps {
		start, err := o.StartsAt(w.Calendar.Location)
		if err != nil {
			w.logger.WithError(err).WithField("subject_id", o.ID).Warn("Skipping opportunity with unreadable start time")
			continue
		}
		for _, id := range byOpp[o.ID] {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			v, ok := vols[id]
			if !ok {
				// Only the full run reports it, under the day stage that is due.
				if rec.Mode != ModeThreeHourOnly {
					if stage, due := cadence.ResolveEventDayStage(now, start, nil); due {
						w.lookupFailed(rec, id, o, stage)
					}
				}
				continue
			}
			if !v.IsActive() {
				continue
			}
			if rec.Mode != ModeThreeHourOnly {
				w.dayStage(ctx, rec, o, v, now, start)
			}
			w.threeHourStage(ctx, rec, o, v, now, start)
		}
	}
	return nil
}

func (w *EventCadence) dayStage(ctx context.Context, rec *Recorder, o *opportunity.Opportunity, v *volunteer.Volunteer, now, start time.Time) {
	sent, err := w.sentStages(ctx, v.ID, o.ID, cadence.EventDayStages()...)
	if err != nil {
		w.ledgerFailed(rec, v.ID, o.ID, err)
		return
	}
	stage, ok := cadence.ResolveEventDayStage(now, start, sent)
	if !ok {
		return
	}
	w.deliver(ctx, rec, delivery{
		volunteer: v,
		subject:   o,
		stage:     stage,
		data:      w.opportunityData(o, v),
		opts:      DispatchOptions{Preferred: notification.ChannelEmail},
	})
}

func (w *EventCadence) threeHourStage(ctx context.Context, rec *Recorder, o *opportunity.Opportunity, v *volunteer.Volunteer, now, start time.Time) {
	if _, ok := cadence.ResolveThreeHourStage(now, start, nil); !ok {
		return
	}
	// deliver consults the ledger itself.
	w.deliver(ctx, rec, delivery{
		volunteer: v,
		subject:   o,
		stage:     cadence.StageEvent3HourSMS,
		data:      w.opportunityData(o, v),
		opts:      DispatchOptions{Preferred: notification.ChannelSMS, NoFallback: true},
	})
}
