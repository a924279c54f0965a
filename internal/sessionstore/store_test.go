package sessionstore

import (
	"context"
	"testing"
	"time"

	"adaptive_quiz/internal/quiz"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(t *testing.T, userID uint) *quiz.State {
	t.Helper()
	bank := []quiz.Question{
		{ID: 1, Topic: "math", Difficulty: 2, Prompt: "1+1", Choices: []string{"1", "2"}, AnswerIndex: 1},
		{ID: 2, Topic: "art", Difficulty: 4, Prompt: "Who?", Choices: []string{"Monet", "Dali"}, AnswerIndex: 0},
	}
	s, err := quiz.NewState(userID, bank, quiz.Settings{Scheme: quiz.DefaultScheme})
	require.NoError(t, err)
	s.TopicStats["math"] = &quiz.TopicStat{Attempts: 2, Correct: 1, Score: 48}
	s.Asked = append(s.Asked, 1)
	s.CurrentQuestionID = 2
	return s
}

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, 9)
	assert.ErrorIs(t, err, quiz.ErrNoActiveSession)

	s := sampleState(t, 9)
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, []uint{1}, got.Asked)
	assert.Equal(t, uint(2), got.CurrentQuestionID)
	assert.Equal(t, 48, got.TopicStats["math"].Score)
	assert.Equal(t, []string{"Monet", "Dali"}, got.Bank[1].Choices)

	got.TopicStats["math"].Score = 99
	again, err := store.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 48, again.TopicStats["math"].Score, "mutating a loaded state must not leak into the store")

	require.NoError(t, store.Delete(ctx, 9))
	_, err = store.Get(ctx, 9)
	assert.ErrorIs(t, err, quiz.ErrNoActiveSession)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(context.Background(), sampleState(t, 3)))
	_, err := store.Get(context.Background(), 3)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(context.Background(), 3)
	assert.ErrorIs(t, err, quiz.ErrNoActiveSession)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	exerciseStore(t, NewRedisStore(rdb, time.Hour))
}

func TestRedisStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, 30*time.Minute)
	require.NoError(t, store.Save(context.Background(), sampleState(t, 4)))
	assert.Equal(t, 30*time.Minute, mr.TTL(sessionKey(4)))

	mr.FastForward(31 * time.Minute)
	_, err := store.Get(context.Background(), 4)
	assert.ErrorIs(t, err, quiz.ErrNoActiveSession)
}

func TestNew(t *testing.T) {
	s, err := New("", nil, 0)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = New(TypeRedis, nil, 0)
	assert.Error(t, err)

	_, err = New("etcd", nil, 0)
	assert.Error(t, err)
}

func TestRedisStore_Lock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, time.Hour)
	store.LockWait = 50 * time.Millisecond
	ctx := context.Background()

	unlock, err := store.Lock(ctx, 5)
	require.NoError(t, err)
	assert.True(t, mr.Exists(lockKey(5)))
	assert.Equal(t, DefaultLockTTL, mr.TTL(lockKey(5)))

	_, err = store.Lock(ctx, 5)
	assert.ErrorIs(t, err, ErrSessionBusy)

	other, err := store.Lock(ctx, 6)
	require.NoError(t, err, "locks are per user")
	other()

	unlock()
	assert.False(t, mr.Exists(lockKey(5)))

	again, err := store.Lock(ctx, 5)
	require.NoError(t, err)
	again()
}

func TestRedisStore_LockWaitsForRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	unlock, err := store.Lock(ctx, 5)
	require.NoError(t, err)
	go func() {
		time.Sleep(30 * time.Millisecond)
		unlock()
	}()

	next, err := store.Lock(ctx, 5)
	require.NoError(t, err)
	next()
}

func TestRedisStore_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	stale, err := store.Lock(ctx, 5)
	require.NoError(t, err)
	mr.FastForward(DefaultLockTTL + time.Second)

	current, err := store.Lock(ctx, 5)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists(lockKey(5)), "the expired holder must not free the new lock")
	current()
	assert.False(t, mr.Exists(lockKey(5)))
}

func TestRedisStore_LockHonoursContext(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb, time.Hour)
	unlock, err := store.Lock(context.Background(), 5)
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = store.Lock(ctx, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
