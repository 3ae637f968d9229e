package assistant

import (
	"strings"

	"github.com/dagalow/coach-assistant/internal/models"
)

// NotProvided is the neutral sentinel for contact fields. It is stored
// instead of NULL because the pitch-request schema requires a non-null
// phone; a storage accommodation, not a business rule.
const NotProvided = "Not provided"

// AppointmentInput is a reconciled, dispatch-ready consultation booking.
type AppointmentInput struct {
	Date            string
	Time            string
	DurationRaw     string
	DurationMinutes int
	Name            string
	Email           string
	Phone           string
	UserID          *uint64
	Timezone        string
}

type SubscriptionInput struct {
	Plan   string
	Name   string
	Email  string
	Phone  string
	UserID *uint64
}

type PitchDeckInput struct {
	Project string
	Name    string
	Email   string
	Phone   string
	Role    string
	UserID  *uint64
}

// pick applies the precedence rule: a non-empty profile value beats the
// parsed value, which beats the default. Holds uniformly for name, email
// and phone across all three action types.
func pick(profileVal, parsedVal, def string) string {
	if strings.TrimSpace(profileVal) != "" {
		return profileVal
	}
	if strings.TrimSpace(parsedVal) != "" {
		return parsedVal
	}
	return def
}

// pickPhone treats a parsed "not provided" as absent: it is the model
// echoing the prompt's placeholder, not user data.
func pickPhone(profile *models.Profile, parsed string) string {
	var profilePhone string
	if profile != nil {
		profilePhone = profile.Phone
	}
	if strings.EqualFold(strings.TrimSpace(parsed), "not provided") {
		parsed = ""
	}
	return pick(profilePhone, parsed, NotProvided)
}

func profileName(p *models.Profile) string {
	if p == nil {
		return ""
	}
	return p.FullName
}

func profileEmail(p *models.Profile) string {
	if p == nil {
		return ""
	}
	return p.Email
}

// ReconcileAppointment merges a parsed appointment directive with the known
// profile. Date, time and duration always come from the directive; the
// profile never carries them.
func ReconcileAppointment(d *AppointmentRequest, profile *models.Profile) AppointmentInput {
	return AppointmentInput{
		Date:        d.Date,
		Time:        d.Time,
		DurationRaw: d.Duration,
		Name:        pick(profileName(profile), d.Name, NotProvided),
		Email:       pick(profileEmail(profile), d.Email, NotProvided),
		Phone:       pickPhone(profile, d.Phone),
		Timezone:    "Europe/Madrid",
	}
}

func ReconcileSubscription(d *SubscriptionRequest, profile *models.Profile) SubscriptionInput {
	return SubscriptionInput{
		Plan:  strings.ToLower(strings.TrimSpace(d.Plan)),
		Name:  pick(profileName(profile), d.Name, NotProvided),
		Email: pick(profileEmail(profile), d.Email, NotProvided),
		Phone: pickPhone(profile, d.Phone),
	}
}

func ReconcilePitchDeck(d *PitchDeckRequest, profile *models.Profile) PitchDeckInput {
	return PitchDeckInput{
		Project: d.Project,
		Name:    pick(profileName(profile), d.Name, NotProvided),
		Email:   pick(profileEmail(profile), d.Email, NotProvided),
		Phone:   pickPhone(profile, d.Phone),
		Role:    pick("", d.Role, NotProvided),
	}
}
