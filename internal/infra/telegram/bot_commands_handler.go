// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"fmt"
	"strings"

	"gopkg.in/telebot.v3"
)

// RegisterBotCommands registers /start and /help.
func RegisterBotCommands(b *telebot.Bot, h *AdminHandlers) {
	b.Handle("/start", h.Start)
	b.Handle("/help", h.Help)
}

func (h *AdminHandlers) Start(c telebot.Context) error {
	log := h.handlerLogger(c, "/start")
	log.Info("Processing /start command")
	if !h.authorized(c, log) {
		return c.Send("Hi! This bot only talks to the volunteer portal administrators.")
	}
	return c.Send(fmt.Sprintf("Hi %s! I will post workflow alerts here. Use /help for the command list.", c.Sender().FirstName))
}

func (h *AdminHandlers) Help(c telebot.Context) error {
	log := h.handlerLogger(c, "/help")
	log.Info("Processing /help command")
	if !h.authorized(c, log) {
		return c.Send("There are no commands available to you.")
	}

	var helpText strings.Builder
	helpText.WriteString("Admin commands:\n\n")
	helpText.WriteString("`/trigger <workflow> [three_hour]`\n - Run one workflow now, ignoring its schedule and enabled flag.\n\n")
	helpText.WriteString("`/runs [N]`\n - Show the most recent workflow runs.\n\n")
	helpText.WriteString("`/workflows`\n - List workflows and whether they are enabled.\n\n")
	helpText.WriteString("`/enable <workflow>` / `/disable <workflow>`\n - Turn scheduled runs of a workflow on or off.\n\n")
	helpText.WriteString("`/help`\n - Show this message.")
	return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
}
