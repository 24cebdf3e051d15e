package app

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
)

// MessageData feeds the notification templates. Every field has a
// placeholder so a missing upstream value never renders as blank.
type MessageData struct {
	Name         string
	Title        string
	Date         string
	Time         string
	Location     string
	Link         string
	Item         string
	ExpiresOn    string
	TrainingDate string
	ServiceDate  string
}

func (d MessageData) withDefaults(baseURL string) MessageData {
	def := func(v, fallback string) string {
		if strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	}
	d.Name = def(d.Name, "Volunteer")
	d.Title = def(d.Title, "your upcoming event")
	d.Date = def(d.Date, "the scheduled date")
	d.Time = def(d.Time, "the scheduled time")
	d.Location = def(d.Location, "the event location")
	d.Link = def(d.Link, def(baseURL, "the volunteer portal"))
	d.Item = def(d.Item, "compliance requirement")
	d.ExpiresOn = def(d.ExpiresOn, "soon")
	d.TrainingDate = def(d.TrainingDate, "training day")
	d.ServiceDate = def(d.ServiceDate, "service day")
	return d
}

type messageTemplate struct {
	subject string
	body    string
	sms     string
}

var builtinTemplates = map[cadence.Stage]messageTemplate{
	cadence.StageShiftReminder: {
		subject: "Reminder: {{.Title}} is tomorrow",
		body:    "Hi {{.Name}}, this is a reminder that you are scheduled for {{.Title}} tomorrow, {{.Date}} at {{.Time}} at {{.Location}}. Details: {{.Link}}",
		sms:     "Hi {{.Name}}! Reminder: {{.Title}} tomorrow {{.Date}} at {{.Time}}, {{.Location}}.",
	},
	cadence.StageThankYou: {
		subject: "Thank you for volunteering at {{.Title}}",
		body:    "Hi {{.Name}}, thank you for serving at {{.Title}} on {{.Date}}. Your time makes a real difference. Log your hours and share feedback at {{.Link}}",
		sms:     "Thank you {{.Name}} for volunteering at {{.Title}}!",
	},
	cadence.StageNewOpportunity: {
		subject: "New volunteer opportunity: {{.Title}}",
		body:    "Hi {{.Name}}, a new opportunity is open: {{.Title}} on {{.Date}} at {{.Time}} at {{.Location}}. Sign up at {{.Link}}",
		sms:     "New opportunity: {{.Title}} on {{.Date}}. Sign up: {{.Link}}",
	},
	cadence.StageBirthday: {
		subject: "Happy birthday, {{.Name}}!",
		body:    "Happy birthday, {{.Name}}! Thank you for everything you do for our community.",
		sms:     "Happy birthday, {{.Name}}! Thank you for all you do.",
	},
	cadence.StageCompliance30Day: {
		subject: "Your {{.Item}} expires on {{.ExpiresOn}}",
		body:    "Hi {{.Name}}, your {{.Item}} expires on {{.ExpiresOn}}. Please renew it before then to keep volunteering: {{.Link}}",
		sms:     "Hi {{.Name}}, your {{.Item}} expires {{.ExpiresOn}}. Renew at {{.Link}}",
	},
	cadence.StageCompliance7Day: {
		subject: "Action needed: your {{.Item}} expires in a week",
		body:    "Hi {{.Name}}, your {{.Item}} expires on {{.ExpiresOn}}. Renew it now to avoid being removed from upcoming shifts: {{.Link}}",
		sms:     "Action needed {{.Name}}: your {{.Item}} expires {{.ExpiresOn}}. {{.Link}}",
	},
	cadence.StageEvent7Day: {
		subject: "{{.Title}} is one week away",
		body:    "Hi {{.Name}}, {{.Title}} is coming up on {{.Date}} at {{.Time}} at {{.Location}}. Details: {{.Link}}",
		sms:     "{{.Title}} is one week away: {{.Date}} {{.Time}}, {{.Location}}.",
	},
	cadence.StageEvent72Hour: {
		subject: "{{.Title}} is in 3 days",
		body:    "Hi {{.Name}}, {{.Title}} is in three days: {{.Date}} at {{.Time}} at {{.Location}}. Can't make it? Update your RSVP at {{.Link}}",
		sms:     "{{.Title}} in 3 days: {{.Date}} {{.Time}}, {{.Location}}.",
	},
	cadence.StageEvent24Hour: {
		subject: "{{.Title}} is tomorrow",
		body:    "Hi {{.Name}}, see you tomorrow at {{.Title}}: {{.Date}} at {{.Time}} at {{.Location}}. Details: {{.Link}}",
		sms:     "See you tomorrow at {{.Title}}, {{.Time}}, {{.Location}}.",
	},
	cadence.StageEvent3HourSMS: {
		subject: "{{.Title}} starts soon",
		body:    "Hi {{.Name}}, {{.Title}} starts at {{.Time}} at {{.Location}}.",
		sms:     "Hi {{.Name}}! {{.Title}} starts at {{.Time}} at {{.Location}}. See you soon!",
	},
	cadence.StageDebrief: {
		subject: "How did {{.Title}} go?",
		body:    "Hi {{.Name}}, thanks for serving at {{.Title}} today. Please take two minutes to complete the debrief: {{.Link}}",
		sms:     "Thanks for serving at {{.Title}}, {{.Name}}! Debrief: {{.Link}}",
	},
	cadence.StageSMOInvite: {
		subject: "SMO registration is open for {{.ServiceDate}}",
		body:    "Hi {{.Name}}, registration is open for the next SMO cycle. Training is on {{.TrainingDate}} and service day is {{.ServiceDate}}. Register at {{.Link}}",
		sms:     "SMO registration open: training {{.TrainingDate}}, service {{.ServiceDate}}. {{.Link}}",
	},
	cadence.StageSMOTrainingReminder: {
		subject: "SMO training is tomorrow",
		body:    "Hi {{.Name}}, SMO training is tomorrow, {{.TrainingDate}}. Attendance is required to keep your spot for service day on {{.ServiceDate}}.",
		sms:     "Reminder {{.Name}}: SMO training is tomorrow ({{.TrainingDate}}). Attendance required to keep your spot.",
	},
	cadence.StageSMORemoved: {
		subject: "Your SMO spot for {{.ServiceDate}} was released",
		body:    "Hi {{.Name}}, we did not record your attendance at SMO training on {{.TrainingDate}}, so your spot for {{.ServiceDate}} was released to the waitlist. We hope to see you next month.",
		sms:     "Hi {{.Name}}, your SMO spot for {{.ServiceDate}} was released (no training attendance).",
	},
	cadence.StageSMOPromoted: {
		subject: "You're in! SMO service day {{.ServiceDate}}",
		body:    "Hi {{.Name}}, a spot opened up and you have been moved from the waitlist to the SMO roster for {{.ServiceDate}}. Details: {{.Link}}",
		sms:     "Good news {{.Name}}! You're off the waitlist for SMO on {{.ServiceDate}}.",
	},
}

const htmlLayout = `<!DOCTYPE html>
<html><body style="font-family:Arial,sans-serif;line-height:1.5;color:#222">
<p>{{.Body}}</p>
<p style="color:#777;font-size:12px">You are receiving this because you volunteer with us. Manage notification preferences in the volunteer portal.</p>
</body></html>`

type compiledTemplate struct {
	subject *texttemplate.Template
	body    *texttemplate.Template
	sms     *texttemplate.Template
}

// Templates renders stage messages.
type Templates struct {
	baseURL  string
	layout   *htmltemplate.Template
	compiled map[cadence.Stage]compiledTemplate
}

// NewTemplates compiles the builtin templates.
func NewTemplates(baseURL string) (*Templates, error) {
	layout, err := htmltemplate.New("layout").Parse(htmlLayout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html layout: %w", err)
	}
	t := &Templates{
		baseURL:  baseURL,
		layout:   layout,
		compiled: make(map[cadence.Stage]compiledTemplate, len(builtinTemplates)),
	}
	for stage, mt := range builtinTemplates {
		var ct compiledTemplate
		if ct.subject, err = texttemplate.New(stage.String() + "-subject").Parse(mt.subject); err != nil {
			return nil, fmt.Errorf("failed to parse %s subject: %w", stage, err)
		}
		if ct.body, err = texttemplate.New(stage.String() + "-body").Parse(mt.body); err != nil {
			return nil, fmt.Errorf("failed to parse %s body: %w", stage, err)
		}
		if ct.sms, err = texttemplate.New(stage.String() + "-sms").Parse(mt.sms); err != nil {
			return nil, fmt.Errorf("failed to parse %s sms: %w", stage, err)
		}
		t.compiled[stage] = ct
	}
	return t, nil
}

// Render builds the message for stage.
func (t *Templates) Render(stage cadence.Stage, data MessageData) (notification.Message, error) {
	ct, ok := t.compiled[stage]
	if !ok {
		return notification.Message{}, fmt.Errorf("no template for stage %s", stage)
	}
	data = data.withDefaults(t.baseURL)

	var msg notification.Message
	var err error
	if msg.Subject, err = renderText(ct.subject, data); err != nil {
		return notification.Message{}, err
	}
	if msg.Text, err = renderText(ct.body, data); err != nil {
		return notification.Message{}, err
	}
	if msg.SMS, err = renderText(ct.sms, data); err != nil {
		return notification.Message{}, err
	}

	var buf bytes.Buffer
	if err := t.layout.Execute(&buf, struct{ Body string }{Body: msg.Text}); err != nil {
		return notification.Message{}, fmt.Errorf("failed to render html for %s: %w", stage, err)
	}
	msg.HTML = buf.String()
	return msg, nil
}

func renderText(tpl *texttemplate.Template, data MessageData) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", tpl.Name(), err)
	}
	return buf.String(), nil
}
