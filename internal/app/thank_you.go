package app

import (
	"context"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
)

// ThankYou (w2) thanks attendees of yesterday's opportunities.
type ThankYou struct {
	base
}

func NewThankYou(deps Deps) *ThankYou {
	return &ThankYou{base: newBase(notification.WorkflowThankYou, deps)}
}

func (w *ThankYou) OncePerDay(Mode) bool { return true }

func (w *ThankYou) Run(ctx context.Context, rec *Recorder) error {
	yesterday := w.Calendar.Today().AddDays(-1)
	opps, err := w.Opportunities.ListByDateRange(ctx, yesterday.String(), yesterday.String())
	if err != nil {
		return storeErr("list opportunities", err)
	}
	return w.notifyAttendees(ctx, rec, opps, cadence.StageThankYou, DispatchOptions{Preferred: notification.ChannelEmail})
}
