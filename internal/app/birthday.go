package app

import (
	"context"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/volunteer"
)

// Birthday (w4) sends birthday greetings once per volunteer per year.
type Birthday struct {
	base
}

func NewBirthday(deps Deps) *Birthday {
	return &Birthday{base: newBase(notification.WorkflowBirthday, deps)}
}

func (w *Birthday) OncePerDay(Mode) bool { return true }

func (w *Birthday) Run(ctx context.Context, rec *Recorder) error {
	today := w.Calendar.Today()
	vols, err := w.Volunteers.ListActive(ctx)
	if err != nil {
		return storeErr("list volunteers", err)
	}
	subject := volunteer.BirthdaySubject{Year: today.Year}
	for _, v := range vols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !cadence.BirthdayMatches(v.BirthMonth, v.BirthDay, today) {
			continue
		}
		w.deliver(ctx, rec, delivery{
			volunteer: v,
			subject:   subject,
			stage:     cadence.StageBirthday,
			data:      MessageData{Name: v.DisplayName(), Link: w.link("/")},
			opts:      DispatchOptions{Preferred: notification.ChannelEmail},
		})
	}
	return nil
}
