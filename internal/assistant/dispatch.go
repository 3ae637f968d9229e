package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dagalow/coach-assistant/internal/models"
)

// Result is what a booking collaborator reports back: whether the durable
// record (or checkout link) was created, and the user-facing confirmation.
type Result struct {
	Success bool
	Message string
}

// AppointmentBooker schedules consultations. ScheduleWithPayment initiates
// a hosted checkout; Schedule books directly without payment.
type AppointmentBooker interface {
	ScheduleWithPayment(ctx context.Context, in AppointmentInput) (Result, error)
	Schedule(ctx context.Context, in AppointmentInput) (Result, error)
}

type SubscriptionBooker interface {
	SubscribeWithPayment(ctx context.Context, in SubscriptionInput) (Result, error)
	Subscribe(ctx context.Context, in SubscriptionInput) (Result, error)
}

type PitchDeckRequester interface {
	Request(ctx context.Context, in PitchDeckInput) (Result, error)
}

// ActionOutcome is the dispatcher's verdict. Message is always safe to show
// the user, whatever went wrong; Action tags which path ran.
type ActionOutcome struct {
	Success bool
	Message string
	Action  string
}

const (
	ActionAppointment        = "appointment"
	ActionAppointmentFailed  = "appointment_failed"
	ActionSubscription       = "subscription"
	ActionSubscriptionFailed = "subscription_failed"
	ActionPitchDeck          = "pitch_deck"
	ActionPitchDeckFailed    = "pitch_deck_failed"
)

// Dispatcher routes a parsed directive to its collaborator. Appointment and
// subscription are payment-first with a direct fallback; pitch deck is
// single-stage. Dispatch never panics and never returns an error: failures
// degrade to a scripted message and the conversation continues.
type Dispatcher struct {
	Appointments  AppointmentBooker
	Subscriptions SubscriptionBooker
	PitchDecks    PitchDeckRequester
}

func (d *Dispatcher) Dispatch(ctx context.Context, dir *Directive, profile *models.Profile, userID *uint64) ActionOutcome {
	switch dir.Kind {
	case DirectiveAppointment:
		in := ReconcileAppointment(dir.Appointment, profile)
		in.UserID = userID
		return d.dispatchAppointment(ctx, in)
	case DirectiveSubscription:
		in := ReconcileSubscription(dir.Subscription, profile)
		in.UserID = userID
		return d.dispatchSubscription(ctx, in)
	case DirectivePitchDeck:
		in := ReconcilePitchDeck(dir.PitchDeck, profile)
		in.UserID = userID
		return d.dispatchPitchDeck(ctx, in)
	}
	return ActionOutcome{
		Success: false,
		Message: "I wasn't able to process that request. Could you try rephrasing it?",
		Action:  "unknown",
	}
}

func (d *Dispatcher) dispatchAppointment(ctx context.Context, in AppointmentInput) ActionOutcome {
	minutes, err := parseMinutes(in.DurationRaw)
	if err != nil {
		log.Printf("[Dispatcher] bad appointment duration %q: %v", in.DurationRaw, err)
		return ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("I tried to book your appointment but encountered an issue: %v. Please let me know if you'd like to try again or if you need help with a different approach.", err),
			Action:  ActionAppointmentFailed,
		}
	}
	in.DurationMinutes = minutes

	if d.Appointments == nil {
		return unavailable("appointment booking", ActionAppointmentFailed)
	}

	res, err := d.Appointments.ScheduleWithPayment(ctx, in)
	if err != nil || !res.Success {
		log.Printf("[Dispatcher] payment booking failed, trying direct booking: %v", dispatchErr(res, err))
		res, err = d.Appointments.Schedule(ctx, in)
	}
	if err != nil || !res.Success {
		final := dispatchErr(res, err)
		log.Printf("[Dispatcher] all booking attempts failed: %v", final)
		return ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("I tried to book your appointment but encountered an issue: %v. Please let me know if you'd like to try again or if you need help with a different approach.", final),
			Action:  ActionAppointmentFailed,
		}
	}
	return ActionOutcome{Success: true, Message: res.Message, Action: ActionAppointment}
}

func (d *Dispatcher) dispatchSubscription(ctx context.Context, in SubscriptionInput) ActionOutcome {
	if d.Subscriptions == nil {
		return unavailable("subscriptions", ActionSubscriptionFailed)
	}

	res, err := d.Subscriptions.SubscribeWithPayment(ctx, in)
	if err != nil || !res.Success {
		log.Printf("[Dispatcher] payment subscription failed, trying direct subscription: %v", dispatchErr(res, err))
		res, err = d.Subscriptions.Subscribe(ctx, in)
	}
	if err != nil || !res.Success {
		final := dispatchErr(res, err)
		log.Printf("[Dispatcher] all subscription attempts failed: %v", final)
		return ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("I tried to set up your %s subscription but encountered an issue: %v. Please let me know if you'd like to try again.", in.Plan, final),
			Action:  ActionSubscriptionFailed,
		}
	}
	return ActionOutcome{Success: true, Message: res.Message, Action: ActionSubscription}
}

func (d *Dispatcher) dispatchPitchDeck(ctx context.Context, in PitchDeckInput) ActionOutcome {
	if d.PitchDecks == nil {
		return unavailable("pitch deck requests", ActionPitchDeckFailed)
	}

	res, err := d.PitchDecks.Request(ctx, in)
	if err != nil {
		log.Printf("[Dispatcher] pitch deck request failed project=%s: %v", in.Project, err)
		return ActionOutcome{
			Success: false,
			Message: fmt.Sprintf("I tried to request the %s pitch deck but encountered an issue: %v. Please try again or contact support.", in.Project, err),
			Action:  ActionPitchDeckFailed,
		}
	}
	if !res.Success {
		return ActionOutcome{Success: false, Message: res.Message, Action: ActionPitchDeckFailed}
	}
	return ActionOutcome{Success: true, Message: res.Message, Action: ActionPitchDeck}
}

func unavailable(what, action string) ActionOutcome {
	return ActionOutcome{
		Success: false,
		Message: fmt.Sprintf("Sorry, %s are not available right now. Please try again later.", what),
		Action:  action,
	}
}

func dispatchErr(res Result, err error) error {
	if err != nil {
		return err
	}
	if res.Message != "" {
		return errors.New(res.Message)
	}
	return errors.New("collaborator reported failure")
}

// parseMinutes coerces the directive's Duration field. The prompt asks for
// minutes as a bare number but models occasionally append units, so "90",
// "90 minutes", "1h" and "1h30min" are all accepted. Anything else is
// rejected rather than guessed at: "1h15min" read as 1 minute would
// misprice the consultation.
func parseMinutes(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))

	n, rest := leadingInt(s)
	if n < 0 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	rest = strings.TrimSpace(rest)

	if rest == "" || isMinuteUnit(rest) {
		if n <= 0 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return n, nil
	}

	for _, u := range []string{"hours", "hour", "hrs", "hr", "h"} {
		if !strings.HasPrefix(rest, u) {
			continue
		}
		tail := strings.TrimSpace(strings.TrimPrefix(rest, u))
		if tail == "" {
			if n <= 0 {
				return 0, fmt.Errorf("invalid duration %q", raw)
			}
			return n * 60, nil
		}
		m, mrest := leadingInt(tail)
		if m >= 0 {
			mrest = strings.TrimSpace(mrest)
			if total := n*60 + m; total > 0 && (mrest == "" || isMinuteUnit(mrest)) {
				return total, nil
			}
		}
		break
	}
	return 0, fmt.Errorf("invalid duration %q", raw)
}

func isMinuteUnit(s string) bool {
	switch s {
	case "m", "min", "mins", "minute", "minutes":
		return true
	}
	return false
}

// leadingInt splits off a decimal prefix; n is -1 when there is none.
func leadingInt(s string) (n int, rest string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		n = n*10 + int(s[i]-'0')
		i++
	}
	if i == 0 {
		return -1, s
	}
	return n, s[i:]
}
