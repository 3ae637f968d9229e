package assistant

import (
	"context"
	"errors"
	"log"
	"strings"

	"gorm.io/gorm"
)

// EphemeralStore is the short-lived session-pointer tier (redis in
// production). Implementations return "" (not an error) on cache miss.
type EphemeralStore interface {
	GetCurrentSession(ctx context.Context, subject string) (string, error)
	SetCurrentSession(ctx context.Context, subject, sessionID string) error
}

// Resolver derives the session id for a request. Priority: explicit URL
// parameter, then the durable tier (the caller's latest session row), then
// the ephemeral tier, then a freshly minted id. The winner is written back
// to both tiers so subsequent lookups agree. A changed URL parameter
// always wins, so switching sessions never merges two threads.
type Resolver struct {
	repo  *Repo
	cache EphemeralStore // optional
}

func NewResolver(repo *Repo, cache EphemeralStore) *Resolver {
	return &Resolver{repo: repo, cache: cache}
}

// Resolve picks the session id for a caller. subject identifies the caller
// for the ephemeral tier ("" disables it); userID scopes the durable tier.
func (r *Resolver) Resolve(ctx context.Context, urlParam, subject string, userID *uint64) (string, error) {
	sid := strings.TrimSpace(urlParam)

	if sid == "" && userID != nil {
		s, err := r.repo.LatestSessionForUser(ctx, *userID)
		if err == nil {
			sid = s.SessionID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[SessionResolver] durable lookup failed user=%d: %v", *userID, err)
		}
	}

	if sid == "" && r.cache != nil && subject != "" {
		cached, err := r.cache.GetCurrentSession(ctx, subject)
		if err != nil {
			log.Printf("[SessionResolver] ephemeral lookup failed subject=%s: %v", subject, err)
		} else {
			sid = cached
		}
	}

	if sid == "" {
		sid = NewSessionID()
	}

	// Write-back keeps the tiers consistent; failures only cost a fresh
	// resolution next time, so they are logged and ignored.
	if _, err := r.repo.EnsureSession(ctx, sid, userID); err != nil {
		log.Printf("[SessionResolver] durable write-back failed session=%s: %v", sid, err)
	}
	if r.cache != nil && subject != "" {
		if err := r.cache.SetCurrentSession(ctx, subject, sid); err != nil {
			log.Printf("[SessionResolver] ephemeral write-back failed subject=%s: %v", subject, err)
		}
	}

	return sid, nil
}
