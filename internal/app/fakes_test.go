package app_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/opportunity"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/smo"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/volunteer"
	idb "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/database"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func fixedCalendar(now time.Time) *cadence.Calendar {
	return &cadence.Calendar{Location: time.UTC, Now: func() time.Time { return now }}
}

type memLedger struct {
	mu      sync.Mutex
	sent    map[string]bool
	lookErr error
}

func newMemLedger() *memLedger { return &memLedger{sent: map[string]bool{}} }

func (l *memLedger) WasSent(_ context.Context, k notification.DedupKey) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lookErr != nil {
		return false, l.lookErr
	}
	return l.sent[k.String()], nil
}

func (l *memLedger) MarkSent(_ context.Context, k notification.DedupKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent[k.String()] = true
	return nil
}

func (l *memLedger) has(recipient, subject string, stage cadence.Stage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent[notification.DedupKey{RecipientID: recipient, SubjectID: subject, Stage: stage}.String()]
}

type sendCall struct {
	VolunteerID string
	Msg         notification.Message
	Opts        app.DispatchOptions
}

// recordingSender delivers everything on the preferred channel unless the
// recipient is listed in fail.
type recordingSender struct {
	mu    sync.Mutex
	calls []sendCall
	fail  map[string]bool
}

func (s *recordingSender) Send(_ context.Context, v *volunteer.Volunteer, msg notification.Message, opts app.DispatchOptions) notification.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sendCall{VolunteerID: v.ID, Msg: msg, Opts: opts})
	ch := opts.Preferred
	if ch == "" {
		ch = notification.ChannelEmail
	}
	if s.fail[v.ID] {
		return notification.Result{Channel: ch, Reason: notification.ReasonSendFailed}
	}
	return notification.Result{Sent: true, Channel: ch}
}

func (s *recordingSender) recipients() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.VolunteerID)
	}
	return out
}

type memVolunteers struct {
	byID       map[string]*volunteer.Volunteer
	compliance []*volunteer.ComplianceItem
	// failBatch makes the next N GetByIDs calls fail.
	failBatch int
}

func newMemVolunteers(vs ...*volunteer.Volunteer) *memVolunteers {
	m := &memVolunteers{byID: map[string]*volunteer.Volunteer{}}
	for _, v := range vs {
		m.byID[v.ID] = v
	}
	return m
}

func (m *memVolunteers) GetByID(_ context.Context, id string) (*volunteer.Volunteer, error) {
	v, ok := m.byID[id]
	if !ok {
		return nil, idb.ErrVolunteerNotFound
	}
	return v, nil
}

func (m *memVolunteers) GetByIDs(_ context.Context, ids []string) (map[string]*volunteer.Volunteer, error) {
	if m.failBatch > 0 {
		m.failBatch--
		return nil, errors.New("volunteer store unavailable")
	}
	out := map[string]*volunteer.Volunteer{}
	for _, id := range ids {
		if v, ok := m.byID[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memVolunteers) ListActive(context.Context) ([]*volunteer.Volunteer, error) {
	out := []*volunteer.Volunteer{}
	for _, v := range m.byID {
		if v.IsActive() {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memVolunteers) ListSMOEligible(context.Context) ([]*volunteer.Volunteer, error) {
	out := []*volunteer.Volunteer{}
	for _, v := range m.byID {
		if v.IsActive() && v.SMOEligible {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memVolunteers) ListComplianceExpiringBetween(_ context.Context, from, to string) ([]*volunteer.ComplianceItem, error) {
	out := []*volunteer.ComplianceItem{}
	for _, it := range m.compliance {
		d := it.ExpiresOn.String()
		if d >= from && d <= to {
			out = append(out, it)
		}
	}
	return out, nil
}

type memOpportunities struct {
	opps    []*opportunity.Opportunity
	shifts  []*opportunity.Shift
	listErr error
}

func (m *memOpportunities) GetByID(_ context.Context, id string) (*opportunity.Opportunity, error) {
	for _, o := range m.opps {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, idb.ErrOpportunityNotFound
}

func (m *memOpportunities) ListByDateRange(_ context.Context, from, to string) ([]*opportunity.Opportunity, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*opportunity.Opportunity{}
	for _, o := range m.opps {
		d := o.Date.String()
		if o.Status == opportunity.StatusApproved && d >= from && d <= to {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOpportunities) ListCreatedSince(_ context.Context, since time.Time) ([]*opportunity.Opportunity, error) {
	out := []*opportunity.Opportunity{}
	for _, o := range m.opps {
		if !o.CreatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOpportunities) ListShifts(context.Context, []string) ([]*opportunity.Shift, error) {
	return m.shifts, nil
}

type memCycles struct {
	mu      sync.Mutex
	byID    map[string]*smo.Cycle
	created []*opportunity.Opportunity
}

func newMemCycles(cs ...*smo.Cycle) *memCycles {
	m := &memCycles{byID: map[string]*smo.Cycle{}}
	for _, c := range cs {
		m.byID[c.ID] = c
	}
	return m
}

func cloneCycle(c *smo.Cycle) *smo.Cycle {
	cp := *c
	cp.RegisteredVolunteers = append([]string(nil), c.RegisteredVolunteers...)
	cp.Waitlist = append([]string(nil), c.Waitlist...)
	cp.ThursdayAttendees = append([]string(nil), c.ThursdayAttendees...)
	cp.SelfReported = append([]string(nil), c.SelfReported...)
	cp.LeadConfirmed = append([]string(nil), c.LeadConfirmed...)
	cp.RemovedVolunteers = append([]string(nil), c.RemovedVolunteers...)
	cp.PromotedVolunteers = append([]string(nil), c.PromotedVolunteers...)
	return &cp
}

func (m *memCycles) GetByID(_ context.Context, id string) (*smo.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, idb.ErrCycleNotFound
	}
	return cloneCycle(c), nil
}

func (m *memCycles) GetByServiceDate(_ context.Context, service cadence.Date) (*smo.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.ServiceDate == service {
			return cloneCycle(c), nil
		}
	}
	return nil, idb.ErrCycleNotFound
}

func (m *memCycles) ListOpen(context.Context) ([]*smo.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*smo.Cycle{}
	for _, c := range m.byID {
		if c.Status != smo.StatusCompleted {
			out = append(out, cloneCycle(c))
		}
	}
	return out, nil
}

func (m *memCycles) Create(_ context.Context, c *smo.Cycle, training, service *opportunity.Opportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; ok {
		return idb.ErrCycleExists
	}
	m.byID[c.ID] = cloneCycle(c)
	m.created = append(m.created, training, service)
	return nil
}

func (m *memCycles) Update(_ context.Context, id string, fn func(c *smo.Cycle) error) (*smo.Cycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, idb.ErrCycleNotFound
	}
	cp := cloneCycle(c)
	if err := fn(cp); err != nil {
		return nil, err
	}
	m.byID[id] = cp
	return cloneCycle(cp), nil
}

func (m *memCycles) get(id string) *smo.Cycle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneCycle(m.byID[id])
}

type memRuns struct {
	mu      sync.Mutex
	runs    []*notification.WorkflowRun
	details map[string][]notification.RunDetail
	hasErr  error
}

func newMemRuns() *memRuns { return &memRuns{details: map[string][]notification.RunDetail{}} }

func (m *memRuns) CreateRun(_ context.Context, run *notification.WorkflowRun, details []notification.RunDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs = append(m.runs, &cp)
	m.details[run.ID] = append([]notification.RunDetail(nil), details...)
	return nil
}

func (m *memRuns) HasRunBetween(_ context.Context, id notification.WorkflowID, from, to time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasErr != nil {
		return false, m.hasErr
	}
	for _, r := range m.runs {
		if r.WorkflowID == id && r.Error == "" && !r.StartedAt.Before(from) && r.StartedAt.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRuns) ListRecentRuns(_ context.Context, limit int) ([]*notification.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*notification.WorkflowRun{}
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

func (m *memRuns) GetRun(_ context.Context, id string) (*notification.WorkflowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, idb.ErrRunNotFound
}

func (m *memRuns) ListRunDetails(_ context.Context, id string) ([]notification.RunDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.details[id], nil
}

type memConfig struct {
	flags  map[notification.WorkflowID]bool
	reads  int
	getErr error
}

func (m *memConfig) GetWorkflowFlags(context.Context) (map[notification.WorkflowID]bool, error) {
	m.reads++
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := map[notification.WorkflowID]bool{}
	for k, v := range m.flags {
		out[k] = v
	}
	return out, nil
}

func (m *memConfig) SetWorkflowFlags(_ context.Context, flags map[notification.WorkflowID]bool) error {
	m.flags = map[notification.WorkflowID]bool{}
	for k, v := range flags {
		m.flags[k] = v
	}
	return nil
}

var errStore = errors.New("store unavailable")

func activeVolunteer(id string) *volunteer.Volunteer {
	return &volunteer.Volunteer{
		ID:        id,
		FirstName: "Vol " + id,
		Email:     id + "@example.org",
		Phone:     "555-010-0000",
		Status:    volunteer.StatusActive,
		Preferences: volunteer.Preferences{
			EmailAlerts:       true,
			SMSAlerts:         true,
			OpportunityAlerts: true,
		},
	}
}

type harness struct {
	now           time.Time
	calendar      *cadence.Calendar
	ledger        *memLedger
	sender        *recordingSender
	volunteers    *memVolunteers
	opportunities *memOpportunities
	cycles        *memCycles
}

func newHarness(now time.Time) *harness {
	return &harness{
		now:           now,
		calendar:      fixedCalendar(now),
		ledger:        newMemLedger(),
		sender:        &recordingSender{fail: map[string]bool{}},
		volunteers:    newMemVolunteers(),
		opportunities: &memOpportunities{},
		cycles:        newMemCycles(),
	}
}

func (h *harness) deps() app.Deps {
	tpl, err := app.NewTemplates("https://portal.example.org")
	if err != nil {
		panic(err)
	}
	return app.Deps{
		Volunteers:    h.volunteers,
		Opportunities: h.opportunities,
		Cycles:        h.cycles,
		Ledger:        h.ledger,
		Sender:        h.sender,
		Templates:     tpl,
		Calendar:      h.calendar,
		BaseURL:       "https://portal.example.org",
		Logger:        testLogger(),
	}
}

func (h *harness) run(wf app.Workflow, mode app.Mode) (*app.Recorder, error) {
	rec := app.NewRecorder("run-test", wf.ID(), mode)
	err := wf.Run(context.Background(), rec)
	return rec, err
}
