package app

import (
	"context"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
)

// ShiftReminder (w1) reminds everyone attending an opportunity dated tomorrow.
type ShiftReminder struct {
	base
}

func NewShiftReminder(deps Deps) *ShiftReminder {
	return &ShiftReminder{base: newBase(notification.WorkflowShiftReminder, deps)}
}

func (w *ShiftReminder) OncePerDay(Mode) bool { return true }

func (w *ShiftReminder) Run(ctx context.Context, rec *Recorder) error {
	tomorrow := w.Calendar.Today().AddDays(1)
	opps, err := w.Opportunities.ListByDateRange(ctx, tomorrow.String(), tomorrow.String())
	if err != nil {
		return storeErr("list opportunities", err)
	}
	w.logger.WithField("opportunities", len(opps)).Info("Sending shift reminders")
	return w.notifyAttendees(ctx, rec, opps, cadence.StageShiftReminder, DispatchOptions{Preferred: notification.ChannelSMS})
}
