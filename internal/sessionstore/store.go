// Package sessionstore keeps the active quiz session of each user.
package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adaptive_quiz/internal/quiz"

	"github.com/go-redis/redis/v8"
)

const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// Store maps a user identity to its active session. Get returns
// quiz.ErrNoActiveSession when the user has none.
type Store interface {
	Get(ctx context.Context, userID uint) (*quiz.State, error)
	Save(ctx context.Context, state *quiz.State) error
	Delete(ctx context.Context, userID uint) error
}

// ErrSessionBusy is returned when another request kept the user's session
// locked past the wait limit. The request can be retried.
var ErrSessionBusy = errors.New("session is busy, retry later")

// Locker is implemented by stores shared between processes. Lock blocks
// until the caller holds the user's session exclusively, and the returned
// func releases it.
type Locker interface {
	Lock(ctx context.Context, userID uint) (unlock func(), err error)
}

// New builds the store named by kind. rdb may be nil for the memory store.
func New(kind string, rdb *redis.Client, ttl time.Duration) (Store, error) {
	switch kind {
	case "", TypeMemory:
		return NewMemoryStore(ttl), nil
	case TypeRedis:
		if rdb == nil {
			return nil, fmt.Errorf("session store %q requires a redis client", kind)
		}
		return NewRedisStore(rdb, ttl), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}
