package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dagalow/coach-assistant/internal/models"
)

type fakeAppointments struct {
	calls       []string
	paymentRes  Result
	paymentErr  error
	directRes   Result
	directErr   error
	lastPayment AppointmentInput
	lastDirect  AppointmentInput
}

func (f *fakeAppointments) ScheduleWithPayment(ctx context.Context, in AppointmentInput) (Result, error) {
	f.calls = append(f.calls, "payment")
	f.lastPayment = in
	return f.paymentRes, f.paymentErr
}

func (f *fakeAppointments) Schedule(ctx context.Context, in AppointmentInput) (Result, error) {
	f.calls = append(f.calls, "direct")
	f.lastDirect = in
	return f.directRes, f.directErr
}

type fakeSubscriptions struct {
	calls      []string
	paymentRes Result
	paymentErr error
	directRes  Result
	directErr  error
	last       SubscriptionInput
}

func (f *fakeSubscriptions) SubscribeWithPayment(ctx context.Context, in SubscriptionInput) (Result, error) {
	f.calls = append(f.calls, "payment")
	f.last = in
	return f.paymentRes, f.paymentErr
}

func (f *fakeSubscriptions) Subscribe(ctx context.Context, in SubscriptionInput) (Result, error) {
	f.calls = append(f.calls, "direct")
	f.last = in
	return f.directRes, f.directErr
}

type fakePitchDecks struct {
	res  Result
	err  error
	last PitchDeckInput
}

func (f *fakePitchDecks) Request(ctx context.Context, in PitchDeckInput) (Result, error) {
	f.last = in
	return f.res, f.err
}

func appointmentDirective() *Directive {
	return &Directive{
		Kind: DirectiveAppointment,
		Appointment: &AppointmentRequest{
			Date: "2026-09-15", Time: "14:30", Duration: "60",
			Name: "Maria", Email: "maria@example.com",
		},
	}
}

func TestDispatch_AppointmentPaymentFirst(t *testing.T) {
	app := &fakeAppointments{paymentRes: Result{Success: true, Message: "pay here"}}
	d := &Dispatcher{Appointments: app}

	out := d.Dispatch(context.Background(), appointmentDirective(), nil, nil)
	if !out.Success || out.Action != ActionAppointment {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(app.calls) != 1 || app.calls[0] != "payment" {
		t.Fatalf("expected a single payment attempt, got %v", app.calls)
	}
	if app.lastPayment.DurationMinutes != 60 {
		t.Fatalf("duration not coerced: %+v", app.lastPayment)
	}
}

func TestDispatch_AppointmentFallsBackToDirect(t *testing.T) {
	app := &fakeAppointments{
		paymentErr: errors.New("checkout down"),
		directRes:  Result{Success: true, Message: "booked"},
	}
	d := &Dispatcher{Appointments: app}

	out := d.Dispatch(context.Background(), appointmentDirective(), nil, nil)
	if !out.Success || out.Message != "booked" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(app.calls) != 2 || app.calls[0] != "payment" || app.calls[1] != "direct" {
		t.Fatalf("expected payment then direct, got %v", app.calls)
	}
}

func TestDispatch_AppointmentBothFail(t *testing.T) {
	app := &fakeAppointments{
		paymentErr: errors.New("checkout down"),
		directErr:  errors.New("db down"),
	}
	d := &Dispatcher{Appointments: app}

	out := d.Dispatch(context.Background(), appointmentDirective(), nil, nil)
	if out.Success || out.Action != ActionAppointmentFailed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !strings.Contains(out.Message, "I tried to book your appointment") {
		t.Fatalf("failure copy missing: %q", out.Message)
	}
	if !strings.Contains(out.Message, "db down") {
		t.Fatalf("final error should be surfaced: %q", out.Message)
	}
}

func TestDispatch_AppointmentBadDuration(t *testing.T) {
	app := &fakeAppointments{}
	d := &Dispatcher{Appointments: app}

	dir := appointmentDirective()
	dir.Appointment.Duration = "an hour"
	out := d.Dispatch(context.Background(), dir, nil, nil)
	if out.Success || out.Action != ActionAppointmentFailed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(app.calls) != 0 {
		t.Fatalf("no booking attempt should run on a bad duration, got %v", app.calls)
	}
}

func TestDispatch_SubscriptionProfileAndUserID(t *testing.T) {
	sub := &fakeSubscriptions{paymentRes: Result{Success: true, Message: "pay"}}
	d := &Dispatcher{Subscriptions: sub}

	uid := uint64(7)
	profile := &models.Profile{FullName: "Maria", Email: "maria@example.com", Phone: "600"}
	dir := &Directive{
		Kind:         DirectiveSubscription,
		Subscription: &SubscriptionRequest{Plan: "Premium", Name: "Other"},
	}

	out := d.Dispatch(context.Background(), dir, profile, &uid)
	if !out.Success || out.Action != ActionSubscription {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if sub.last.Plan != "premium" {
		t.Fatalf("plan not normalized: %q", sub.last.Plan)
	}
	if sub.last.Name != "Maria" || sub.last.Email != "maria@example.com" {
		t.Fatalf("profile should win: %+v", sub.last)
	}
	if sub.last.UserID == nil || *sub.last.UserID != 7 {
		t.Fatalf("user id not threaded: %+v", sub.last.UserID)
	}
}

func TestDispatch_PitchDeckFailureNamesProject(t *testing.T) {
	pd := &fakePitchDecks{err: errors.New("mailer down")}
	d := &Dispatcher{PitchDecks: pd}

	dir := &Directive{
		Kind:      DirectivePitchDeck,
		PitchDeck: &PitchDeckRequest{Project: "Perspectiv"},
	}
	out := d.Dispatch(context.Background(), dir, nil, nil)
	if out.Success || out.Action != ActionPitchDeckFailed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if !strings.Contains(out.Message, "Perspectiv") {
		t.Fatalf("apology should name the project: %q", out.Message)
	}
}

func TestDispatch_NoCollaborator(t *testing.T) {
	d := &Dispatcher{}
	out := d.Dispatch(context.Background(), appointmentDirective(), nil, nil)
	if out.Success || out.Action != ActionAppointmentFailed {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestParseMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"60", 60, true},
		{" 90 ", 90, true},
		{"45 minutes", 45, true},
		{"30min", 30, true},
		{"1h", 60, true},
		{"2 hours", 120, true},
		{"1h15min", 75, true},
		{"1h15", 75, true},
		{"0", 0, false},
		{"an hour", 0, false},
		{"90 bananas", 0, false},
		{"1.5h", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, err := parseMinutes(c.in)
		if c.ok && (err != nil || got != c.want) {
			t.Fatalf("parseMinutes(%q) = %d, %v; want %d", c.in, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Fatalf("parseMinutes(%q) should fail", c.in)
		}
	}
}
