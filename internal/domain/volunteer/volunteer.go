package volunteer

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
)

// Status of a volunteer account. Only active volunteers receive notifications.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Preferences are the per-category opt-in flags.
type Preferences struct {
	EmailAlerts       bool `json:"emailAlerts"`
	SMSAlerts         bool `json:"smsAlerts"`
	OpportunityAlerts bool `json:"opportunityAlerts"`
}

// Volunteer is a notification recipient.
type Volunteer struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Phone       string // canonical 10-digit form, empty if unusable
	BirthMonth  time.Month
	BirthDay    int
	Status      Status
	Preferences Preferences
	SMOEligible bool
	EventTypes  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (v *Volunteer) SubjectID() string                { return v.ID }
func (v *Volunteer) SubjectKind() cadence.SubjectKind { return cadence.SubjectVolunteer }

// DisplayName is the first name, or a neutral greeting when missing.
func (v *Volunteer) DisplayName() string {
	if name := strings.TrimSpace(v.FirstName); name != "" {
		return name
	}
	return "Volunteer"
}

// FullName joins first and last name.
func (v *Volunteer) FullName() string {
	return strings.TrimSpace(v.FirstName + " " + v.LastName)
}

// IsActive reports whether the volunteer may be notified at all.
func (v *Volunteer) IsActive() bool {
	return v.Status == StatusActive
}

// WantsEventType reports whether v opted into opportunities of category.
// An empty list means every category.
func (v *Volunteer) WantsEventType(category string) bool {
	if len(v.EventTypes) == 0 {
		return true
	}
	for _, t := range v.EventTypes {
		if strings.EqualFold(t, category) {
			return true
		}
	}
	return false
}

// NormalizePhone reduces a phone number to 10 digits, dropping a leading
// US country code. Anything else normalizes to "".
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return ""
	}
	return digits
}

// E164 formats a normalized 10-digit number for SMS providers.
func E164(phone string) string {
	if n := NormalizePhone(phone); n != "" {
		return "+1" + n
	}
	return ""
}

// ComplianceItem is a credential with an expiry date (background check,
// training certificate, TB test...).
type ComplianceItem struct {
	ID          string
	VolunteerID string
	Kind        string
	ExpiresOn   cadence.Date
}

func (c *ComplianceItem) SubjectID() string                { return c.ID }
func (c *ComplianceItem) SubjectKind() cadence.SubjectKind { return cadence.SubjectCompliance }

// BirthdaySubject scopes a birthday greeting to one calendar year so the
// ledger allows one greeting per year.
type BirthdaySubject struct {
	Year int
}

func (b BirthdaySubject) SubjectID() string                { return "birthday-" + strconv.Itoa(b.Year) }
func (b BirthdaySubject) SubjectKind() cadence.SubjectKind { return cadence.SubjectVolunteer }
