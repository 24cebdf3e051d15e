package app

import (
	"context"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
)

// Compliance (w5) warns volunteers whose compliance items expire within
// the lookahead window. Each item gets at most a 30-day and a 7-day notice.
type Compliance struct {
	base
}

func NewCompliance(deps Deps) *Compliance {
	return &Compliance{base: newBase(notification.WorkflowComplianceAlert, deps)}
}

func (w *Compliance) OncePerDay(Mode) bool { return true }

func (w *Compliance) Run(ctx context.Context, rec *Recorder) error {
	today := w.Calendar.Today()
	horizon := today.AddDays(cadence.ComplianceLookaheadDays)
	items, err := w.Volunteers.ListComplianceExpiringBetween(ctx, today.String(), horizon.String())
	if err != nil {
		return storeErr("list compliance items", err)
	}
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.VolunteerID)
	}
	vols, err := w.Volunteers.GetByIDs(ctx, ids)
	if err != nil {
		return storeErr("load volunteers", err)
	}

	for _, it := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		v, ok := vols[it.VolunteerID]
		if !ok {
			w.lookupFailed(rec, it.VolunteerID, it, cadence.StageCompliance30Day)
			continue
		}
		if !v.IsActive() {
			continue
		}
		sent, err := w.sentStages(ctx, v.ID, it.ID, cadence.ComplianceStages()...)
		if err != nil {
			w.ledgerFailed(rec, v.ID, it.ID, err)
			continue
		}
		stage, ok := cadence.ResolveComplianceStage(today, it.ExpiresOn, sent)
		if !ok {
			continue
		}
		w.deliver(ctx, rec, delivery{
			volunteer: v,
			subject:   it,
			stage:     stage,
			data: MessageData{
				Name:      v.DisplayName(),
				Item:      it.Kind,
				ExpiresOn: humanDate(it.ExpiresOn),
				Link:      w.link("/profile/compliance"),
			},
			opts: DispatchOptions{Preferred: notification.ChannelEmail},
		})
	}
	return nil
}
