package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "assistant:current_session:"

// Default lifetime of the ephemeral session pointer. Long enough to survive
// a page reload, short enough that stale threads age out.
const sessionTTL = 12 * time.Hour

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// GetCurrentSession returns the cached session id for a caller, or "" when
// none is cached.
func (s *Store) GetCurrentSession(ctx context.Context, subject string) (string, error) {
	v, err := s.rdb.Get(ctx, sessionKeyPrefix+subject).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (s *Store) SetCurrentSession(ctx context.Context, subject, sessionID string) error {
	return s.rdb.Set(ctx, sessionKeyPrefix+subject, sessionID, sessionTTL).Err()
}
