package app

import (
	"context"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/opportunity"
)

// Debrief (w8) asks attendees for a debrief shortly after an opportunity
// ends. It polls every few minutes, so the due window is narrow.
type Debrief struct {
	base
}

func NewDebrief(deps Deps) *Debrief {
	return &Debrief{base: newBase(notification.WorkflowDebrief, deps)}
}

func (w *Debrief) Run(ctx context.Context, rec *Recorder) error {
	// Yesterday too: a late evening opportunity's window can cross midnight.
	today := w.Calendar.Today()
	opps, err := w.Opportunities.ListByDateRange(ctx, today.AddDays(-1).String(), today.String())
	if err != nil {
		return storeErr("list opportunities", err)
	}

	now := w.now()
	due := make([]*opportunity.Opportunity, 0)
	for _, o := range opps {
		end, err := o.EndsAt(w.Calendar.Location)
		if err != nil {
			w.logger.WithError(err).WithField("subject_id", o.ID).Warn("Skipping opportunity with unreadable end time")
			continue
		}
		if cadence.DebriefDue(now, end) {
			due = append(due, o)
		}
	}
	return w.notifyAttendees(ctx, rec, due, cadence.StageDebrief, DispatchOptions{Preferred: notification.ChannelSMS})
}
