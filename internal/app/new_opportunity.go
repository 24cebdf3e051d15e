package app

import (
	"context"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/opportunity"
)

// NewOpportunityLookback is how far back w3 looks for newly created opportunities.
const NewOpportunityLookback = 24 * time.Hour

// NewOpportunity (w3) announces opportunities created in the last day to
// volunteers who opted in to alerts for that event type.
type NewOpportunity struct {
	base
}

func NewNewOpportunity(deps Deps) *NewOpportunity {
	return &NewOpportunity{base: newBase(notification.WorkflowNewOpportunity, deps)}
}

func (w *NewOpportunity) OncePerDay(Mode) bool { return true }

func (w *NewOpportunity) Run(ctx context.Context, rec *Recorder) error {
	today := w.Calendar.Today()
	created, err := w.Opportunities.ListCreatedSince(ctx, w.now().Add(-NewOpportunityLookback))
	if err != nil {
		return storeErr("list new opportunities", err)
	}

	opps := make([]*opportunity.Opportunity, 0, len(created))
	for _, o := range created {
		if o.Status == opportunity.StatusApproved && !o.Date.Before(today) {
			opps = append(opps, o)
		}
	}
	if len(opps) == 0 {
		return nil
	}

	vols, err := w.Volunteers.ListActive(ctx)
	if err != nil {
		return storeErr("list volunteers", err)
	}

	for _, o := range opps {
		for _, v := range vols {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !v.Preferences.OpportunityAlerts || !v.WantsEventType(o.Category) {
				continue
			}
			w.deliver(ctx, rec, delivery{
				volunteer: v,
				subject:   o,
				stage:     cadence.StageNewOpportunity,
				data:      w.opportunityData(o, v),
				opts:      DispatchOptions{Preferred: notification.ChannelEmail},
			})
		}
	}
	return nil
}
