package assistant

import (
	"strings"
)

// Assistant replies may embed one structured directive: a literal marker
// followed by "Key: Value" lines. The markers are part of the prompt
// contract and must match it byte for byte.
const (
	MarkerAppointment  = "**BOOK_APPOINTMENT**"
	MarkerSubscription = "**BOOK_SUBSCRIPTION**"
	MarkerPitchDeck    = "**REQUEST_PITCH_DECK**"
)

type DirectiveKind string

const (
	DirectiveAppointment  DirectiveKind = "appointment"
	DirectiveSubscription DirectiveKind = "subscription"
	DirectivePitchDeck    DirectiveKind = "pitch_deck"
)

// AllowedProjects enumerates the offerings a pitch deck can be requested
// for. Canonical casing is what the downstream records use.
var AllowedProjects = []string{"GalowClub", "Perspectiv"}

// Directive is the typed form of a parsed reply command. Exactly one of the
// request fields is set, matching Kind. Numeric-looking fields (Duration)
// stay strings here; the dispatcher coerces them.
type Directive struct {
	Kind         DirectiveKind
	Appointment  *AppointmentRequest
	Subscription *SubscriptionRequest
	PitchDeck    *PitchDeckRequest
}

type AppointmentRequest struct {
	Date     string
	Time     string
	Duration string
	Name     string
	Email    string
	Phone    string
}

type SubscriptionRequest struct {
	Plan  string
	Name  string
	Email string
	Phone string
}

type PitchDeckRequest struct {
	Project string
	Name    string
	Email   string
	Phone   string
	Role    string
}

// ParseDirective scans a reply for the first directive marker and validates
// the key/value block after it into a typed directive. It returns nil when
// no marker is present or required fields are missing; the conversation
// then simply continues and the model re-emits once it has gathered the
// rest. Markers past the first are ignored.
func ParseDirective(reply string) *Directive {
	kind, idx := firstMarker(reply)
	if idx < 0 {
		return nil
	}

	var markerLen int
	switch kind {
	case DirectiveAppointment:
		markerLen = len(MarkerAppointment)
	case DirectiveSubscription:
		markerLen = len(MarkerSubscription)
	case DirectivePitchDeck:
		markerLen = len(MarkerPitchDeck)
	}

	fields := parseFields(reply[idx+markerLen:])

	switch kind {
	case DirectiveAppointment:
		if fields["Date"] == "" || fields["Time"] == "" || fields["Duration"] == "" {
			return nil
		}
		return &Directive{
			Kind: DirectiveAppointment,
			Appointment: &AppointmentRequest{
				Date:     fields["Date"],
				Time:     fields["Time"],
				Duration: fields["Duration"],
				Name:     fields["Name"],
				Email:    fields["Email"],
				Phone:    fields["Phone"],
			},
		}
	case DirectiveSubscription:
		if fields["Plan"] == "" {
			return nil
		}
		return &Directive{
			Kind: DirectiveSubscription,
			Subscription: &SubscriptionRequest{
				Plan:  fields["Plan"],
				Name:  fields["Name"],
				Email: fields["Email"],
				Phone: fields["Phone"],
			},
		}
	case DirectivePitchDeck:
		project := canonicalProject(fields["Project"])
		if project == "" {
			return nil
		}
		return &Directive{
			Kind: DirectivePitchDeck,
			PitchDeck: &PitchDeckRequest{
				Project: project,
				Name:    fields["Name"],
				Email:   fields["Email"],
				Phone:   fields["Phone"],
				Role:    fields["Role"],
			},
		}
	}
	return nil
}

// firstMarker returns the kind and byte offset of the earliest marker, or
// -1 when the reply carries none.
func firstMarker(reply string) (DirectiveKind, int) {
	best := -1
	var kind DirectiveKind
	for _, c := range []struct {
		marker string
		kind   DirectiveKind
	}{
		{MarkerAppointment, DirectiveAppointment},
		{MarkerSubscription, DirectiveSubscription},
		{MarkerPitchDeck, DirectivePitchDeck},
	} {
		if i := strings.Index(reply, c.marker); i >= 0 && (best < 0 || i < best) {
			best = i
			kind = c.kind
		}
	}
	return kind, best
}

// parseFields builds the flat key/value map from the text after a marker.
// Blank lines and lines carrying another marker token are dropped, as are
// lines without a colon or with an empty key or value.
func parseFields(section string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(section, "\n") {
		if strings.TrimSpace(line) == "" || strings.Contains(line, "**") {
			continue
		}
		colon := strings.Index(line, ":")
		if colon <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		if key == "" || value == "" {
			continue
		}
		fields[key] = value
	}
	return fields
}

func canonicalProject(name string) string {
	for _, p := range AllowedProjects {
		if strings.EqualFold(strings.TrimSpace(name), p) {
			return p
		}
	}
	return ""
}
