package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/opportunity"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/smo"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/volunteer"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Mode selects a variant of a workflow's per-poll behaviour.
type Mode string

const (
	ModeDefault Mode = ""
	// ModeThreeHourOnly runs only the SMS track of the event cadence.
	ModeThreeHourOnly Mode = "three_hour"
)

// Workflow is one batch job of the cadence engine.
type Workflow interface {
	ID() notification.WorkflowID
	Run(ctx context.Context, rec *Recorder) error
}

// OncePerDay is implemented by workflows that must not do work twice on
// the same calendar day regardless of how often they are triggered.
type OncePerDay interface {
	OncePerDay(mode Mode) bool
}

// DispatchObserver receives one event per processed recipient.
type DispatchObserver interface {
	ObserveDispatch(workflow notification.WorkflowID, channel notification.Channel, outcome notification.Outcome)
}

// Recorder accumulates the counts and per-recipient details of one run.
type Recorder struct {
	RunID    string
	Workflow notification.WorkflowID
	Mode     Mode

	counts  notification.Counts
	details []notification.RunDetail
}

// NewRecorder starts an empty run record.
func NewRecorder(runID string, workflow notification.WorkflowID, mode Mode) *Recorder {
	return &Recorder{RunID: runID, Workflow: workflow, Mode: mode}
}

func (r *Recorder) record(d notification.RunDetail) {
	d.RunID = r.RunID
	r.counts.Add(d.Outcome)
	r.details = append(r.details, d)
}

// Counts returns the tallies so far.
func (r *Recorder) Counts() notification.Counts { return r.counts }

// Details returns the per-recipient records so far.
func (r *Recorder) Details() []notification.RunDetail { return r.details }

// Deps are the collaborators shared by every workflow executor.
type Deps struct {
	Volunteers    volunteer.Repository
	Opportunities opportunity.Repository
	Cycles        smo.Repository
	Ledger        notification.Ledger
	Sender        Sender
	Templates     *Templates
	Calendar      *cadence.Calendar
	Observer      DispatchObserver
	BaseURL       string
	Logger        *logrus.Entry
}

type base struct {
	Deps
	id     notification.WorkflowID
	logger *logrus.Entry
}

func newBase(id notification.WorkflowID, deps Deps) base {
	return base{
		Deps:   deps,
		id:     id,
		logger: deps.Logger.WithFields(logrus.Fields{"component": "workflow", "workflow": id}),
	}
}

func (b *base) ID() notification.WorkflowID { return b.id }

func (b *base) now() time.Time { return b.Calendar.Now() }

func (b *base) link(path string) string {
	if b.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(b.BaseURL, "/") + path
}

// sentStages reads the ledger for each stage of one (recipient, subject) pair.
func (b *base) sentStages(ctx context.Context, recipientID, subjectID string, stages ...cadence.Stage) (cadence.SentSet, error) {
	sent := make(cadence.SentSet, len(stages))
	for _, st := range stages {
		ok, err := b.Ledger.WasSent(ctx, notification.DedupKey{RecipientID: recipientID, SubjectID: subjectID, Stage: st})
		if err != nil {
			return nil, err
		}
		if ok {
			sent[st] = true
		}
	}
	return sent, nil
}

type delivery struct {
	volunteer *volunteer.Volunteer
	subject   cadence.Subject
	stage     cadence.Stage
	data      MessageData
	opts      DispatchOptions
}

// deliver is the per-recipient isolation boundary: ledger check, render,
// dispatch, ledger write, tally. Nothing that goes wrong here escapes to
// the batch loop.
func (b *base) deliver(ctx context.Context, rec *Recorder, d delivery) (outcome notification.Outcome) {
	key := notification.DedupKey{RecipientID: d.volunteer.ID, SubjectID: d.subject.SubjectID(), Stage: d.stage}
	entry := b.logger.WithFields(logrus.Fields{
		"recipient_id": key.RecipientID,
		"subject_id":   key.SubjectID,
		"stage":        d.stage.String(),
	})
	detail := notification.RunDetail{
		RecipientID: key.RecipientID,
		SubjectID:   key.SubjectID,
		Stage:       d.stage.String(),
		Channel:     d.opts.Preferred,
	}

	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Error("Recipient processing panicked")
			detail.Outcome = notification.OutcomeFailed
			detail.Reason = notification.ReasonSendFailed
			rec.record(detail)
			outcome = notification.OutcomeFailed
		}
	}()

	already, err := b.Ledger.WasSent(ctx, key)
	if err != nil {
		entry.WithError(err).Error("Dedup ledger lookup failed")
		detail.Outcome = notification.OutcomeFailed
		detail.Reason = notification.ReasonLookupFailed
		rec.record(detail)
		b.observe(detail)
		return notification.OutcomeFailed
	}
	if already {
		entry.Debug("Stage already sent, skipping")
		return ""
	}

	msg, err := b.Templates.Render(d.stage, d.data)
	if err != nil {
		entry.WithError(err).Error("Failed to render message")
		detail.Outcome = notification.OutcomeFailed
		detail.Reason = notification.ReasonSendFailed
		rec.record(detail)
		b.observe(detail)
		return notification.OutcomeFailed
	}

	res := b.Sender.Send(ctx, d.volunteer, msg, d.opts)
	detail.Channel = res.Channel
	detail.Reason = res.Reason
	detail.Outcome = notification.OutcomeFor(res.Sent, res.Reason)

	if res.Sent || res.Reason == notification.ReasonSendFailed {
		if err := b.markSent(ctx, key); err != nil {
			// Unmarked, the next poll resends this stage.
			entry.WithError(err).Error("Failed to record stage in dedup ledger")
		}
	}

	switch detail.Outcome {
	case notification.OutcomeSent:
		entry.WithField("channel", res.Channel).Info("Notification sent")
	case notification.OutcomeFailed:
		entry.WithField("reason", res.Reason).Warn("Notification failed")
	default:
		entry.WithField("reason", res.Reason).Info("Notification skipped")
	}
	rec.record(detail)
	b.observe(detail)
	return detail.Outcome
}

func (b *base) markSent(ctx context.Context, key notification.DedupKey) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.MaxElapsedTime = 5 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, 2), ctx)
	return backoff.Retry(func() error {
		return b.Ledger.MarkSent(ctx, key)
	}, policy)
}

func (b *base) observe(d notification.RunDetail) {
	if b.Observer != nil {
		b.Observer.ObserveDispatch(b.id, d.Channel, d.Outcome)
	}
}

// lookupFailed records a recipient referenced by a subject that could not be loaded.
func (b *base) lookupFailed(rec *Recorder, recipientID string, subject cadence.Subject, stage cadence.Stage) {
	b.logger.WithFields(logrus.Fields{
		"recipient_id": recipientID,
		"subject_id":   subject.SubjectID(),
	}).Warn("Recipient referenced by subject not found")
	d := notification.RunDetail{
		RecipientID: recipientID,
		SubjectID:   subject.SubjectID(),
		Stage:       stage.String(),
		Outcome:     notification.OutcomeFailed,
		Reason:      notification.ReasonLookupFailed,
	}
	rec.record(d)
	b.observe(d)
}

// audience resolves the recipient ids of each opportunity and loads the
// referenced volunteers in one query.
func (b *base) audience(ctx context.Context, opps []*opportunity.Opportunity) (map[string][]string, map[string]*volunteer.Volunteer, error) {
	ids := make([]string, 0, len(opps))
	for _, o := range opps {
		ids = append(ids, o.ID)
	}
	shifts, err := b.Opportunities.ListShifts(ctx, ids)
	if err != nil {
		return nil, nil, storeErr("list shifts", err)
	}

	byOpp := make(map[string][]string, len(opps))
	all := make([]string, 0)
	seen := make(map[string]struct{})
	for _, o := range opps {
		recipients := opportunity.Recipients(o, shifts)
		byOpp[o.ID] = recipients
		for _, id := range recipients {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				all = append(all, id)
			}
		}
	}

	vols := map[string]*volunteer.Volunteer{}
	if len(all) > 0 {
		vols, err = b.Volunteers.GetByIDs(ctx, all)
		if err != nil {
			return nil, nil, storeErr("load volunteers", err)
		}
	}
	return byOpp, vols, nil
}

func (b *base) opportunityData(o *opportunity.Opportunity, v *volunteer.Volunteer) MessageData {
	return MessageData{
		Name:     v.DisplayName(),
		Title:    o.Title,
		Date:     humanDate(o.Date),
		Time:     humanClock(o.StartTime),
		Location: o.Location,
		Link:     b.link("/opportunities/" + o.ID),
	}
}

func humanDate(d cadence.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Midnight(time.UTC).Format("Monday, January 2")
}

func humanClock(clock string) string {
	t, err := time.Parse("15:04", strings.TrimSpace(clock))
	if err != nil {
		return ""
	}
	return t.Format("3:04 PM")
}

// notifyAttendees sends one stage to every active attendee of each opportunity.
func (b *base) notifyAttendees(ctx context.Context, rec *Recorder, opps []*opportunity.Opportunity, stage cadence.Stage, opts DispatchOptions) error {
	if len(opps) == 0 {
		return nil
	}
	byOpp, vols, err := b.audience(ctx, opps)
	if err != nil {
		return err
	}
	for _, o := range opps {
		for _, id := range byOpp[o.ID] {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			v, ok := vols[id]
			if !ok {
				b.lookupFailed(rec, id, o, stage)
				continue
			}
			if !v.IsActive() {
				continue
			}
			b.deliver(ctx, rec, delivery{
				volunteer: v,
				subject:   o,
				stage:     stage,
				data:      b.opportunityData(o, v),
				opts:      opts,
			})
		}
	}
	return nil
}

func storeErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", notification.ErrTransientStore, what, err)
}

func (b *base) ledgerFailed(rec *Recorder, recipientID, subjectID string, err error) {
	b.logger.WithError(err).WithFields(logrus.Fields{
		"recipient_id": recipientID,
		"subject_id":   subjectID,
	}).Error("Dedup ledger lookup failed")
	d := notification.RunDetail{
		RecipientID: recipientID,
		SubjectID:   subjectID,
		Outcome:     notification.OutcomeFailed,
		Reason:      notification.ReasonLookupFailed,
	}
	rec.record(d)
	b.observe(d)
}
