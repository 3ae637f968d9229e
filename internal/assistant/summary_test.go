package assistant

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestConversationSummaries(t *testing.T) {
	prov := &scriptedProvider{reply: "ok"}
	svc, repo := newTestService(t, prov, nil)
	uid := uint64(1)

	seed := func(sid, role, content string, at time.Time) {
		t.Helper()
		key := MessageKey(sid, role, content, false, at)
		if _, err := repo.AppendMessage(context.Background(), &Message{
			SessionID: sid, UserID: &uid, Role: role, Content: content,
			IdempotencyKey: &key, CreatedAt: at,
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	base := time.Now().Add(-time.Hour)
	seed("sess-old", RoleAssistant, "welcome!", base)
	seed("sess-old", RoleUser, "how much is a consultation?", base.Add(time.Minute))
	seed("sess-new", RoleUser, "tell me about the premium plan", base.Add(30*time.Minute))
	seed("sess-new", RoleAssistant, "gladly", base.Add(31*time.Minute))

	out, err := svc.ConversationSummaries(context.Background(), uid)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(out))
	}
	if out[0].SessionID != "sess-new" {
		t.Fatalf("newest activity must sort first: %+v", out)
	}
	if out[1].Title != "How much is a consultation?" {
		t.Fatalf("title should be the capitalized first user turn: %q", out[1].Title)
	}
	if out[0].MessageCount != 2 || out[1].MessageCount != 2 {
		t.Fatalf("unexpected counts: %+v", out)
	}
}

func TestTitleize(t *testing.T) {
	if got := titleize(""); got != "Conversation" {
		t.Fatalf("empty seed: %q", got)
	}
	if got := titleize("hello   there\nworld"); got != "Hello there world" {
		t.Fatalf("whitespace collapse: %q", got)
	}
	long := strings.Repeat("a", 50)
	got := titleize(long)
	if len([]rune(got)) != 38 || !strings.HasSuffix(got, "…") {
		t.Fatalf("long seed should clip with ellipsis: %q (%d runes)", got, len([]rune(got)))
	}
}
