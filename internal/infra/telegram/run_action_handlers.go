// internal/infra/telegram/run_action_handlers.go
package telegram

import (
	"fmt"
	"strings"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	domainTelegram "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// RegisterRunActionHandlers handles the inline buttons attached to run alerts.
func RegisterRunActionHandlers(b *telebot.Bot, h *AdminHandlers) {
	b.Handle(telebot.OnCallback, h.RunAction)
}

func (h *AdminHandlers) RunAction(c telebot.Context) error {
	log := h.handlerLogger(c, "callback")
	if !h.authorized(c, log) {
		return c.Respond(&telebot.CallbackResponse{Text: msgUnauthorized})
	}
	data := strings.TrimSpace(c.Callback().Data)
	log = log.WithField("data", data)

	switch {
	case strings.HasPrefix(data, domainTelegram.ActionRunDetails):
		runID := strings.TrimPrefix(data, domainTelegram.ActionRunDetails)
		if runID == "" {
			return c.Respond(&telebot.CallbackResponse{Text: "Invalid run reference."})
		}
		run, details, err := h.admin.GetRunDetails(h.ctx, runID)
		if err != nil {
			log.WithError(err).Error("Failed to load run details")
			return c.Respond(&telebot.CallbackResponse{Text: "Could not load run details."})
		}
		if err := c.Respond(); err != nil {
			log.WithError(err).Warn("Failed to ack callback")
		}
		return c.Send(runDetailsText(run, details))

	case strings.HasPrefix(data, domainTelegram.ActionRunRetry):
		workflow, mode, _ := domainTelegram.ParseRetry(data)
		id := notification.WorkflowID(workflow)
		if !id.Valid() {
			return c.Respond(&telebot.CallbackResponse{Text: "Unknown workflow."})
		}
		if err := c.Respond(&telebot.CallbackResponse{Text: fmt.Sprintf("Running %s...", id)}); err != nil {
			log.WithError(err).Warn("Failed to ack callback")
		}
		return h.runAndReport(c, log, id, app.RunOptions{Trigger: notification.TriggerManual, Mode: app.Mode(mode), Force: true})
	}

	log.Warn("Unhandled callback data")
	return c.Respond(&telebot.CallbackResponse{Text: "Unknown action."})
}
