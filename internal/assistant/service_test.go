package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dagalow/coach-assistant/internal/ai"
	"github.com/dagalow/coach-assistant/internal/models"
)

type scriptedProvider struct {
	reply string
	err   error
	last  []ai.Message
	// onChat runs inside Chat, before returning; lets tests interleave
	// writes with an in-flight generation.
	onChat func()
}

func (p *scriptedProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.last = append([]ai.Message(nil), messages...)
	if p.onChat != nil {
		p.onChat()
	}
	return p.reply, p.err
}

func newTestService(t *testing.T, prov ai.Provider, dispatcher *Dispatcher) (*Service, *Repo) {
	t.Helper()
	repo := NewRepo(openTestDB(t))
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		return prov, nil
	})
	return NewService(repo, reg, dispatcher, "fake", "", 20), repo
}

func TestSendMessage_PersistsBothTurns(t *testing.T) {
	prov := &scriptedProvider{reply: "hello there"}
	svc, repo := newTestService(t, prov, nil)
	sid := NewSessionID()

	reply, action, err := svc.SendMessage(context.Background(), sid, nil, nil, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if reply.Content != "hello there" || action != "" {
		t.Fatalf("unexpected reply: %q action=%q", reply.Content, action)
	}

	msgs, err := repo.ListHistory(context.Background(), sid, nil)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != RoleUser || msgs[1].Role != RoleAssistant {
		t.Fatalf("unexpected transcript: %+v", msgs)
	}

	if len(prov.last) == 0 || prov.last[0].Role != ai.RoleSystem {
		t.Fatalf("transcript must start with the system prompt")
	}
	if prov.last[len(prov.last)-1].Content != "hi" {
		t.Fatalf("pending user turn must be the transcript tail: %+v", prov.last)
	}
}

func TestSendMessage_ProviderFailureFallsBack(t *testing.T) {
	prov := &scriptedProvider{err: errors.New("upstream exploded")}
	svc, repo := newTestService(t, prov, nil)
	sid := NewSessionID()

	reply, _, err := svc.SendMessage(context.Background(), sid, nil, nil, "hi")
	if err != nil {
		t.Fatalf("send must not surface provider errors: %v", err)
	}
	if !strings.Contains(reply.Content, "having trouble") {
		t.Fatalf("expected fallback copy, got %q", reply.Content)
	}

	msgs, _ := repo.ListHistory(context.Background(), sid, nil)
	if len(msgs) != 2 {
		t.Fatalf("fallback reply must still be persisted, got %d rows", len(msgs))
	}
}

func TestSendMessage_QuotaCopy(t *testing.T) {
	prov := &scriptedProvider{err: errors.New("insufficient_quota: billing limit")}
	svc, _ := newTestService(t, prov, nil)

	reply, _, err := svc.SendMessage(context.Background(), NewSessionID(), nil, nil, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(reply.Content, "usage limit") {
		t.Fatalf("expected quota-specific copy, got %q", reply.Content)
	}
}

func TestSendMessage_DirectiveDispatched(t *testing.T) {
	prov := &scriptedProvider{reply: "All set!\n**BOOK_SUBSCRIPTION**\nPlan: Premium\nName: Typed Name\n"}
	sub := &fakeSubscriptions{paymentRes: Result{Success: true, Message: "Pay here: link"}}
	svc, repo := newTestService(t, prov, &Dispatcher{Subscriptions: sub})

	uid := uint64(3)
	profile := &models.Profile{FullName: "Maria", Email: "maria@example.com"}
	sid := NewSessionID()

	reply, action, err := svc.SendMessage(context.Background(), sid, &uid, profile, "sign me up for premium")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if action != ActionSubscription {
		t.Fatalf("expected subscription action, got %q", action)
	}
	if reply.Content != "Pay here: link" {
		t.Fatalf("outcome message must replace the raw reply: %q", reply.Content)
	}
	if sub.last.Plan != "premium" || sub.last.Name != "Maria" {
		t.Fatalf("reconciled input wrong: %+v", sub.last)
	}
	if sub.last.UserID == nil || *sub.last.UserID != 3 {
		t.Fatalf("user id not threaded: %+v", sub.last.UserID)
	}

	msgs, _ := repo.ListHistory(context.Background(), sid, &uid)
	if len(msgs) != 2 || msgs[1].Content != "Pay here: link" {
		t.Fatalf("persisted assistant turn must be the outcome message: %+v", msgs)
	}
}

func TestSendMessage_IncompleteDirectivePassesThrough(t *testing.T) {
	raw := "I still need a date.\n**BOOK_APPOINTMENT**\nTime: 14:00\n"
	prov := &scriptedProvider{reply: raw}
	app := &fakeAppointments{}
	svc, _ := newTestService(t, prov, &Dispatcher{Appointments: app})

	reply, action, err := svc.SendMessage(context.Background(), NewSessionID(), nil, nil, "book me")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if action != "" || reply.Content != raw {
		t.Fatalf("incomplete directive must pass through untouched: action=%q reply=%q", action, reply.Content)
	}
	if len(app.calls) != 0 {
		t.Fatalf("no dispatch should run: %v", app.calls)
	}
}

func TestEnsureWelcome_Once(t *testing.T) {
	prov := &scriptedProvider{reply: "Welcome aboard!"}
	svc, repo := newTestService(t, prov, nil)
	sid := NewSessionID()

	msg, created, err := svc.EnsureWelcome(context.Background(), sid, nil, nil)
	if err != nil || !created || msg == nil {
		t.Fatalf("first welcome: msg=%+v created=%v err=%v", msg, created, err)
	}

	_, created, err = svc.EnsureWelcome(context.Background(), sid, nil, nil)
	if err != nil {
		t.Fatalf("second welcome: %v", err)
	}
	if created {
		t.Fatalf("second welcome must not create a row")
	}

	msgs, _ := repo.ListHistory(context.Background(), sid, nil)
	if len(msgs) != 1 {
		t.Fatalf("expected a single welcome row, got %d", len(msgs))
	}
}

func TestEnsureWelcome_DiscardedWhenContentArrives(t *testing.T) {
	var svc *Service
	var repo *Repo
	sid := NewSessionID()

	prov := &scriptedProvider{reply: "Welcome aboard!"}
	prov.onChat = func() {
		// a real turn lands while the welcome is being generated
		key := MessageKey(sid, RoleUser, "quick question", false, time.Now())
		_, _ = repo.AppendMessage(context.Background(), &Message{
			SessionID: sid, Role: RoleUser, Content: "quick question", IdempotencyKey: &key,
		})
	}
	svc, repo = newTestService(t, prov, nil)

	_, created, err := svc.EnsureWelcome(context.Background(), sid, nil, nil)
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if created {
		t.Fatalf("welcome must be discarded when content arrived mid-generation")
	}

	msgs, _ := repo.ListHistory(context.Background(), sid, nil)
	if len(msgs) != 1 || msgs[0].Content != "quick question" {
		t.Fatalf("only the real turn should remain: %+v", msgs)
	}
}

func TestEnsureWelcome_ProviderDownUsesScriptedGreeting(t *testing.T) {
	prov := &scriptedProvider{err: errors.New("connection refused")}
	svc, _ := newTestService(t, prov, nil)

	msg, created, err := svc.EnsureWelcome(context.Background(), NewSessionID(), nil, &models.Profile{FullName: "Maria Santos"})
	if err != nil || !created {
		t.Fatalf("welcome: created=%v err=%v", created, err)
	}
	if !strings.Contains(msg.Content, "Maria") {
		t.Fatalf("scripted greeting should address the user: %q", msg.Content)
	}
}

func TestGenerateAssistantReply_UsesStoredTurns(t *testing.T) {
	prov := &scriptedProvider{reply: "stored context reply"}
	svc, repo := newTestService(t, prov, nil)
	sid := NewSessionID()

	key := MessageKey(sid, RoleUser, "already stored", false, time.Now())
	if _, err := repo.AppendMessage(context.Background(), &Message{
		SessionID: sid, Role: RoleUser, Content: "already stored", IdempotencyKey: &key,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	reply, _, err := svc.GenerateAssistantReply(context.Background(), sid, nil, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply.ID == 0 {
		t.Fatalf("assistant turn must be persisted with an id")
	}
	if prov.last[len(prov.last)-1].Content != "already stored" {
		t.Fatalf("stored turn must be in the transcript: %+v", prov.last)
	}
}
