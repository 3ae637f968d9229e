package assistant

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dupeWindow bounds the fallback near-duplicate check: a row with the same
// session, role and content inserted this recently is the same logical
// event.
const dupeWindow = 5 * time.Second

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// EnsureSession records a session id in the durable tier. Existing rows are
// left untouched so re-resolving a shared link never reassigns ownership.
func (r *Repo) EnsureSession(ctx context.Context, sessionID string, userID *uint64) (*Session, error) {
	s, err := r.GetSessionBySessionID(ctx, sessionID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	s = &Session{SessionID: sessionID, UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(s).Error; err != nil {
		return nil, err
	}
	if s.ID == 0 {
		// lost a concurrent insert race; read the winner
		return r.GetSessionBySessionID(ctx, sessionID)
	}
	return s, nil
}

// LatestSessionForUser backs the durable tier of session resolution.
func (r *Repo) LatestSessionForUser(ctx context.Context, userID uint64) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// AppendMessage persists a turn at most once. The near-duplicate check
// (same session, role and content inside the dedupe window) runs before
// every insert: the idempotency key quantizes time, so two identical
// appends straddling a bucket edge carry different keys and only this
// check collapses them. The unique index then closes the in-bucket race.
// Returns whether a new row was written.
func (r *Repo) AppendMessage(ctx context.Context, m *Message) (bool, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	var cnt int64
	if err := r.db.WithContext(ctx).Model(&Message{}).
		Where("session_id = ? AND role = ? AND content = ? AND created_at > ?",
			m.SessionID, m.Role, m.Content, m.CreatedAt.Add(-dupeWindow)).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	if cnt > 0 {
		return false, nil
	}

	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// visibleTo scopes a message query to what the caller may read: their own
// rows plus ownerless rows for signed-in callers, ownerless rows only for
// guests. Mirrors the row-level policy enforced by the database.
func visibleTo(q *gorm.DB, userID *uint64) *gorm.DB {
	if userID != nil {
		return q.Where("user_id = ? OR user_id IS NULL", *userID)
	}
	return q.Where("user_id IS NULL")
}

// ListHistory returns the caller-visible user/assistant turns of a session
// in creation order. System markers stay in storage but are not returned.
func (r *Repo) ListHistory(ctx context.Context, sessionID string, userID *uint64) ([]Message, error) {
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Where("role IN ?", []string{RoleUser, RoleAssistant})
	q = visibleTo(q, userID)

	var msgs []Message
	if err := q.Order("created_at ASC, id ASC").Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) CountMessages(ctx context.Context, sessionID string, userID *uint64) (int64, error) {
	q := r.db.WithContext(ctx).Model(&Message{}).
		Where("session_id = ?", sessionID).
		Where("role IN ?", []string{RoleUser, RoleAssistant})
	q = visibleTo(q, userID)

	var cnt int64
	if err := q.Count(&cnt).Error; err != nil {
		return 0, err
	}
	return cnt, nil
}

// ListRecentDesc returns the newest visible turns (newest first) for
// building the LLM context window.
func (r *Repo) ListRecentDesc(ctx context.Context, sessionID string, userID *uint64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Where("role IN ?", []string{RoleUser, RoleAssistant})
	q = visibleTo(q, userID)

	var msgs []Message
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListMessagesForUser returns every turn owned by a user across sessions,
// oldest first. Backs the conversation-history summaries.
func (r *Repo) ListMessagesForUser(ctx context.Context, userID uint64) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("role IN ?", []string{RoleUser, RoleAssistant}).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}
