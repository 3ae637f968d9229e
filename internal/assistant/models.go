package assistant

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Session is one conversation thread. UserID is nil for guest threads; a
// thread is never deleted, starting over just mints a fresh session id.
type Session struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_id"`
	UserID    *uint64   `gorm:"index" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "assistant_sessions" }

// Message is an append-only conversation turn. UserID nil marks an
// ownerless row (guest or system), which stays readable to everyone who
// holds the session id. IdempotencyKey dedupes logical duplicates.
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID      string    `gorm:"type:varchar(64);not null;index:idx_asst_msg_session_created,priority:1" json:"session_id"`
	UserID         *uint64   `gorm:"index" json:"-"`
	Role           string    `gorm:"type:varchar(16);index;not null" json:"role"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	IdempotencyKey *string   `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	CreatedAt      time.Time `gorm:"index:idx_asst_msg_session_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "assistant_messages" }

// NewSessionID mints a UUIDv4 session identifier, degrading to a
// timestamp+random string if the secure source is unavailable.
func NewSessionID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000_000))
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 1_000_000_000)
	}
	return fmt.Sprintf("%d-%09d", time.Now().UnixMilli(), n.Int64())
}

// keyBucket is the dedupe window for regular turns. Retries of the same
// logical append inside one bucket share a key; a genuine repeat of the
// same text later maps to a new key and is persisted again.
const keyBucket = 5 * time.Second

// MessageKey is the deterministic idempotency key for a turn, derived from
// (session, role, content, welcome-ness) plus a coarse time bucket.
// Welcome turns hash a fixed tag with no bucket: two concurrently
// generated welcomes differ in wording but are the same logical event and
// must collapse to one row, whenever they land.
func MessageKey(sessionID, role, content string, welcome bool, at time.Time) string {
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte{0})
	h.Write([]byte(role))
	h.Write([]byte{0})
	if welcome {
		h.Write([]byte("welcome"))
	} else {
		h.Write([]byte(content))
		h.Write([]byte{0})
		fmt.Fprintf(h, "%d", at.UnixNano()/int64(keyBucket))
	}
	return hex.EncodeToString(h.Sum(nil))
}
