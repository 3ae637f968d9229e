package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Session{}, &Message{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func appendOrFail(t *testing.T, repo *Repo, m *Message) bool {
	t.Helper()
	inserted, err := repo.AppendMessage(context.Background(), m)
	if err != nil {
		t.Fatalf("append message: %v", err)
	}
	return inserted
}

func TestAppendMessage_Idempotent(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sid := NewSessionID()

	now := time.Now()
	key := MessageKey(sid, RoleUser, "hello", false, now)

	first := &Message{SessionID: sid, Role: RoleUser, Content: "hello", IdempotencyKey: &key, CreatedAt: now}
	if !appendOrFail(t, repo, first) {
		t.Fatalf("first append should insert")
	}

	key2 := key
	second := &Message{SessionID: sid, Role: RoleUser, Content: "hello", IdempotencyKey: &key2, CreatedAt: now}
	if appendOrFail(t, repo, second) {
		t.Fatalf("duplicate key should not insert")
	}

	var cnt int64
	if err := repo.db.Model(&Message{}).Where("session_id = ?", sid).Count(&cnt).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 row, got %d", cnt)
	}
}

func TestAppendMessage_DedupeAcrossKeyBuckets(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sid := NewSessionID()

	// identical appends nanoseconds apart but in adjacent key buckets:
	// the keys differ, so only the duplicate-window check can collapse them
	edge := time.Now().Truncate(keyBucket).Add(keyBucket)
	t1 := edge.Add(-time.Nanosecond)
	t2 := edge.Add(time.Nanosecond)

	k1 := MessageKey(sid, RoleUser, "yes", false, t1)
	k2 := MessageKey(sid, RoleUser, "yes", false, t2)
	if k1 == k2 {
		t.Fatalf("keys across the bucket edge should differ")
	}

	if !appendOrFail(t, repo, &Message{SessionID: sid, Role: RoleUser, Content: "yes", IdempotencyKey: &k1, CreatedAt: t1}) {
		t.Fatalf("first append should insert")
	}
	if appendOrFail(t, repo, &Message{SessionID: sid, Role: RoleUser, Content: "yes", IdempotencyKey: &k2, CreatedAt: t2}) {
		t.Fatalf("identical append across the bucket edge must not insert")
	}

	var cnt int64
	if err := repo.db.Model(&Message{}).Where("session_id = ?", sid).Count(&cnt).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected exactly 1 row, got %d", cnt)
	}
}

func TestAppendMessage_SameTextLaterPersists(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sid := NewSessionID()

	base := time.Now()
	k1 := MessageKey(sid, RoleUser, "yes", false, base)
	k2 := MessageKey(sid, RoleUser, "yes", false, base.Add(time.Minute))
	if k1 == k2 {
		t.Fatalf("keys for distant repeats should differ")
	}

	appendOrFail(t, repo, &Message{SessionID: sid, Role: RoleUser, Content: "yes", IdempotencyKey: &k1, CreatedAt: base})
	if !appendOrFail(t, repo, &Message{SessionID: sid, Role: RoleUser, Content: "yes", IdempotencyKey: &k2, CreatedAt: base.Add(time.Minute)}) {
		t.Fatalf("a genuine repeat a minute later should insert")
	}
}

func TestListHistory_OrderAndRoles(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sid := NewSessionID()

	base := time.Now().Add(-time.Minute)
	for i, turn := range []struct {
		role, content string
	}{
		{RoleUser, "hi"},
		{RoleAssistant, "hello"},
		{RoleSystem, "hidden marker"},
		{RoleUser, "book me in"},
	} {
		k := MessageKey(sid, turn.role, turn.content, false, base.Add(time.Duration(i)*10*time.Second))
		appendOrFail(t, repo, &Message{
			SessionID: sid, Role: turn.role, Content: turn.content,
			IdempotencyKey: &k, CreatedAt: base.Add(time.Duration(i) * 10 * time.Second),
		})
	}

	msgs, err := repo.ListHistory(context.Background(), sid, nil)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("system turns must be filtered, got %d rows", len(msgs))
	}
	if msgs[0].Content != "hi" || msgs[2].Content != "book me in" {
		t.Fatalf("unexpected order: %+v", msgs)
	}
}

func TestListHistory_Visibility(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sid := NewSessionID()
	owner := uint64(1)
	other := uint64(2)

	kGuest := MessageKey(sid, RoleUser, "guest turn", false, time.Now())
	appendOrFail(t, repo, &Message{SessionID: sid, Role: RoleUser, Content: "guest turn", IdempotencyKey: &kGuest})

	kOwned := MessageKey(sid, RoleUser, "owned turn", false, time.Now())
	appendOrFail(t, repo, &Message{SessionID: sid, UserID: &owner, Role: RoleUser, Content: "owned turn", IdempotencyKey: &kOwned})

	guestView, err := repo.ListHistory(context.Background(), sid, nil)
	if err != nil {
		t.Fatalf("guest list: %v", err)
	}
	if len(guestView) != 1 || guestView[0].Content != "guest turn" {
		t.Fatalf("guests see ownerless rows only: %+v", guestView)
	}

	ownerView, err := repo.ListHistory(context.Background(), sid, &owner)
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	if len(ownerView) != 2 {
		t.Fatalf("owner sees own plus ownerless rows, got %d", len(ownerView))
	}

	otherView, err := repo.ListHistory(context.Background(), sid, &other)
	if err != nil {
		t.Fatalf("other list: %v", err)
	}
	if len(otherView) != 1 || otherView[0].Content != "guest turn" {
		t.Fatalf("other users must not see owned rows: %+v", otherView)
	}
}

func TestEnsureSession_KeepsOwner(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sid := NewSessionID()
	owner := uint64(1)

	if _, err := repo.EnsureSession(context.Background(), sid, &owner); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// a guest resolving the same shared link must not strip ownership
	s, err := repo.EnsureSession(context.Background(), sid, nil)
	if err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	if s.UserID == nil || *s.UserID != owner {
		t.Fatalf("existing session ownership changed: %+v", s)
	}
}

func TestCreateJobOrGetExisting(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	sid := NewSessionID()
	key := "client-key-1"

	j1 := &Job{ID: "01JOBAAAAAAAAAAAAAAAAAAAA1", SessionID: sid, Prompt: "hi", IdempotencyKey: &key, Status: JobQueued}
	got, created, err := repo.CreateJobOrGetExisting(context.Background(), j1)
	if err != nil || !created || got.ID != j1.ID {
		t.Fatalf("first create: got=%+v created=%v err=%v", got, created, err)
	}

	key2 := key
	j2 := &Job{ID: "01JOBAAAAAAAAAAAAAAAAAAAA2", SessionID: sid, Prompt: "hi", IdempotencyKey: &key2, Status: JobQueued}
	got, created, err = repo.CreateJobOrGetExisting(context.Background(), j2)
	if err != nil {
		t.Fatalf("retry create: %v", err)
	}
	if created || got.ID != j1.ID {
		t.Fatalf("retry should return the existing job: got=%+v created=%v", got, created)
	}
}
