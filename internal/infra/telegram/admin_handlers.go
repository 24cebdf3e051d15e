package telegram

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// AdminAPI is the subset of the admin service the bot needs.
type AdminAPI interface {
	Authorize(telegramID int64) error
	ListRuns(ctx context.Context, limit int) ([]*notification.WorkflowRun, error)
	GetRunDetails(ctx context.Context, runID string) (*notification.WorkflowRun, []notification.RunDetail, error)
	GetFlags(ctx context.Context) (map[notification.WorkflowID]bool, error)
	SetEnabled(ctx context.Context, id notification.WorkflowID, enabled bool) error
}

const (
	msgUnauthorized = "Error: you are not allowed to run this command."
	runsListLimit   = 10
	detailsLimit    = 20
)

// AdminHandlers implements the admin bot commands.
type AdminHandlers struct {
	ctx    context.Context
	admin  AdminAPI
	runner app.NotificationService
	logger *logrus.Entry
}

func NewAdminHandlers(ctx context.Context, admin AdminAPI, runner app.NotificationService, baseLogger *logrus.Entry) *AdminHandlers {
	return &AdminHandlers{ctx: ctx, admin: admin, runner: runner, logger: baseLogger}
}

// RegisterAdminHandlers registers handlers for admin commands.
func RegisterAdminHandlers(b *telebot.Bot, h *AdminHandlers) {
	b.Handle("/trigger", h.Trigger)
	b.Handle("/runs", h.Runs)
	b.Handle("/workflows", h.Workflows)
	b.Handle("/enable", h.Enable)
	b.Handle("/disable", h.Disable)
}

func (h *AdminHandlers) handlerLogger(c telebot.Context, name string) *logrus.Entry {
	entry := h.logger.WithField("handler", name)
	if c.Sender() != nil {
		entry = entry.WithField("sender_id", c.Sender().ID)
	}
	return entry
}

func (h *AdminHandlers) authorized(c telebot.Context, log *logrus.Entry) bool {
	if c.Sender() == nil || h.admin.Authorize(c.Sender().ID) != nil {
		log.Warn("Unauthorized access attempt")
		return false
	}
	return true
}

// Trigger runs one workflow now: /trigger <id> [three_hour]
func (h *AdminHandlers) Trigger(c telebot.Context) error {
	log := h.handlerLogger(c, "/trigger")
	log.Info("Command received")
	if !h.authorized(c, log) {
		return c.Send(msgUnauthorized)
	}

	args := c.Args()
	if len(args) < 1 || len(args) > 2 {
		return c.Send("Usage: /trigger <workflow> [three_hour]")
	}
	id := notification.WorkflowID(strings.ToLower(args[0]))
	opts := app.RunOptions{Trigger: notification.TriggerManual, Force: true}
	if len(args) == 2 {
		opts.Mode = app.Mode(strings.ToLower(args[1]))
	}
	return h.runAndReport(c, log, id, opts)
}

func (h *AdminHandlers) runAndReport(c telebot.Context, log *logrus.Entry, id notification.WorkflowID, opts app.RunOptions) error {
	log = log.WithField("workflow", id)
	run, err := h.runner.RunWorkflow(h.ctx, id, opts)
	if errors.Is(err, app.ErrUnknownWorkflow) {
		return c.Send(fmt.Sprintf("Unknown workflow %q. Use /workflows to list them.", id))
	}
	if run == nil {
		log.WithError(err).Error("Manual trigger failed")
		return c.Send(fmt.Sprintf("Workflow %s did not run: %v", id, err))
	}
	log.WithField("run_id", run.ID).Info("Manual trigger finished")
	return c.Send(app.FormatRun(run, 0))
}

// Runs lists the most recent runs: /runs [N]
func (h *AdminHandlers) Runs(c telebot.Context) error {
	log := h.handlerLogger(c, "/runs")
	log.Info("Command received")
	if !h.authorized(c, log) {
		return c.Send(msgUnauthorized)
	}

	limit := runsListLimit
	if args := c.Args(); len(args) == 1 {
		limit = parseLimit(args[0], runsListLimit)
	}
	runs, err := h.admin.ListRuns(h.ctx, limit)
	if err != nil {
		log.WithError(err).Error("Failed to list runs")
		return c.Send("Could not load workflow runs.")
	}
	if len(runs) == 0 {
		return c.Send("No workflow runs recorded yet.")
	}

	var b strings.Builder
	b.WriteString("Recent workflow runs:\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "%s %s %s sent=%d failed=%d skipped=%d",
			r.StartedAt.Format("01-02 15:04"), r.WorkflowID, r.Trigger, r.Sent, r.Failed, r.Skipped)
		if r.Error != "" {
			b.WriteString(" (aborted)")
		}
		b.WriteString("\n")
	}
	return c.Send(b.String())
}

// Workflows lists registered workflows and their enabled flags.
func (h *AdminHandlers) Workflows(c telebot.Context) error {
	log := h.handlerLogger(c, "/workflows")
	log.Info("Command received")
	if !h.authorized(c, log) {
		return c.Send(msgUnauthorized)
	}

	flags, err := h.admin.GetFlags(h.ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load workflow flags")
		return c.Send("Could not load workflow flags.")
	}
	ids := h.runner.Workflows()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	b.WriteString("Workflows:\n")
	for _, id := range ids {
		state := "enabled"
		if enabled, ok := flags[id]; ok && !enabled {
			state = "disabled"
		}
		fmt.Fprintf(&b, "%s: %s\n", id, state)
	}
	return c.Send(b.String())
}

func (h *AdminHandlers) Enable(c telebot.Context) error  { return h.toggle(c, "/enable", true) }
func (h *AdminHandlers) Disable(c telebot.Context) error { return h.toggle(c, "/disable", false) }

func (h *AdminHandlers) toggle(c telebot.Context, name string, enabled bool) error {
	log := h.handlerLogger(c, name)
	log.Info("Command received")
	if !h.authorized(c, log) {
		return c.Send(msgUnauthorized)
	}

	args := c.Args()
	if len(args) != 1 {
		return c.Send(fmt.Sprintf("Usage: %s <workflow>", name))
	}
	id := notification.WorkflowID(strings.ToLower(args[0]))
	if err := h.admin.SetEnabled(h.ctx, id, enabled); err != nil {
		if errors.Is(err, app.ErrInvalidFlags) {
			return c.Send(fmt.Sprintf("Unknown workflow %q.", id))
		}
		log.WithError(err).Error("Failed to update workflow flag")
		return c.Send("Could not update the workflow flag.")
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	log.WithFields(logrus.Fields{"workflow": id, "enabled": enabled}).Info("Workflow flag updated")
	return c.Send(fmt.Sprintf("Workflow %s %s.", id, state))
}

// runDetailsText renders failed and skipped recipients of a run.
func runDetailsText(run *notification.WorkflowRun, details []notification.RunDetail) string {
	var b strings.Builder
	b.WriteString(app.FormatRun(run, 0))
	shown := 0
	for _, d := range details {
		if d.Outcome == notification.OutcomeSent {
			continue
		}
		if shown == 0 {
			b.WriteString("\n\nNot delivered:\n")
		}
		if shown == detailsLimit {
			b.WriteString("...\n")
			break
		}
		fmt.Fprintf(&b, "%s %s %s: %s %s\n", d.RecipientID, d.SubjectID, d.Stage, d.Outcome, d.Reason)
		shown++
	}
	return b.String()
}

func parseLimit(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
