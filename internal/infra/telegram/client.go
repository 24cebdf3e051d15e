// internal/infra/telegram/client.go
package telegram

import (
	domainTelegram "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

type messageSender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements domain AdminNotifier using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot     messageSender
	adminID int64
}

func NewTelebotAdapter(b *telebot.Bot, adminID int64) *TelebotAdapter {
	return &TelebotAdapter{bot: b, adminID: adminID}
}

// SendMessage sends a text message to the specified recipient.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	_, err := tba.bot.Send(&telebot.User{ID: recipientChatID}, text, options)
	return err
}

// NotifyAdmin sends text to the admin chat with one row of inline buttons.
func (tba *TelebotAdapter) NotifyAdmin(text string, actions ...domainTelegram.Action) error {
	opts := &telebot.SendOptions{}
	if len(actions) > 0 {
		markup := &telebot.ReplyMarkup{}
		row := make(telebot.Row, 0, len(actions))
		for _, a := range actions {
			row = append(row, markup.Data(a.Label, "", a.Data))
		}
		markup.Inline(row)
		opts.ReplyMarkup = markup
	}
	return tba.SendMessage(tba.adminID, text, opts)
}
