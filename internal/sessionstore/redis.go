package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"adaptive_quiz/internal/quiz"
	"adaptive_quiz/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	keyPrefix  = "quiz:session:"
	lockPrefix = "quiz:lock:"

	DefaultLockTTL  = 10 * time.Second
	DefaultLockWait = 5 * time.Second
	lockRetry       = 10 * time.Millisecond
)

// Deletes the lock only while it still carries our token, so a holder whose
// lock expired cannot release the next owner's.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStore keeps sessions as JSON documents so that several API
// instances can share them. Lock guards the read-modify-write of a session
// across those instances.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration

	LockTTL  time.Duration
	LockWait time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, LockTTL: DefaultLockTTL, LockWait: DefaultLockWait}
}

func sessionKey(userID uint) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}

func lockKey(userID uint) string {
	return fmt.Sprintf("%s%d", lockPrefix, userID)
}

func (r *RedisStore) Get(ctx context.Context, userID uint) (*quiz.State, error) {
	raw, err := r.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, quiz.ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var state quiz.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if state.TopicStats == nil {
		state.TopicStats = map[string]*quiz.TopicStat{}
	}
	return &state, nil
}

func (r *RedisStore) Save(ctx context.Context, state *quiz.State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, sessionKey(state.UserID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID uint) error {
	return r.rdb.Del(ctx, sessionKey(userID)).Err()
}

// Lock takes quiz:lock:<userID> with SET NX PX, polling until it is free.
// It gives up with ErrSessionBusy after LockWait. The lock expires on its
// own after LockTTL if the holder dies.
func (r *RedisStore) Lock(ctx context.Context, userID uint) (func(), error) {
	key := lockKey(userID)
	token := uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, r.LockWait)
	defer cancel()

	for {
		ok, err := r.rdb.SetNX(waitCtx, key, token, r.LockTTL).Result()
		if err != nil && waitCtx.Err() == nil {
			return nil, fmt.Errorf("acquire session lock: %w", err)
		}
		if ok {
			return func() { r.unlock(key, token) }, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrSessionBusy
		case <-time.After(lockRetry):
		}
	}
}

func (r *RedisStore) unlock(key, token string) {
	// the request context may already be done
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, r.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		logger.Log.Warn("Failed to release session lock", zap.String("key", key), zap.Error(err))
	}
}
