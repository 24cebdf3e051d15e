package telegram

import "strings"

// Action is an inline button attached to an admin message. Data is
// delivered back to the bot's callback handler when pressed.
type Action struct {
	Label string
	Data  string
}

// Callback data prefixes understood by the admin bot.
const (
	ActionRunDetails = "run_details:"
	ActionRunRetry   = "run_retry:"
)

// RetryData is the callback data of a "run again" button. The mode, when
// set, follows the workflow id after a colon.
func RetryData(workflow, mode string) string {
	if mode == "" {
		return ActionRunRetry + workflow
	}
	return ActionRunRetry + workflow + ":" + mode
}

// ParseRetry splits data built by RetryData.
func ParseRetry(data string) (workflow, mode string, ok bool) {
	rest, ok := strings.CutPrefix(data, ActionRunRetry)
	if !ok || rest == "" {
		return "", "", false
	}
	workflow, mode, _ = strings.Cut(rest, ":")
	return workflow, mode, workflow != ""
}

// AdminNotifier posts operational messages to the administrators' chat.
type AdminNotifier interface {
	NotifyAdmin(text string, actions ...Action) error
}
