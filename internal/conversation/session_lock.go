package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL   = 30 * time.Second
	lockRetryDelay   = 50 * time.Millisecond
	sessionLockScope = "session-lock:"
)

// ErrSessionBusy is returned when another message for the same patient holds the lock too long.
var ErrSessionBusy = errors.New("conversation: session busy")

// SessionLocker serialises turns for one patient.
type SessionLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSessionLocker is a token lock shared by every API instance.
type RedisSessionLocker struct {
	redis redis.UniversalClient
	ttl   time.Duration
	wait  time.Duration
}

// NewRedisSessionLocker builds a locker; the lock expires after ttl and
// Lock gives up after waiting the same duration.
func NewRedisSessionLocker(client redis.UniversalClient, ttl time.Duration) *RedisSessionLocker {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisSessionLocker{redis: client, ttl: ttl, wait: ttl}
}

func (l *RedisSessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := sessionLockScope + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.redis.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("conversation: acquire session lock: %w", err)
		}
		if ok {
			return func() {
				// Release even if the request context is already done.
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(ctx, l.redis, []string{lockKey}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrSessionBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}

// LocalSessionLocker serialises turns within one process.
type LocalSessionLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalSessionLocker() *LocalSessionLocker {
	return &LocalSessionLocker{locks: make(map[string]*localLock)}
}

func (l *LocalSessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &localLock{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-entry.ch
				l.release(key, entry)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, entry)
		return nil, ctx.Err()
	}
}

func (l *LocalSessionLocker) release(key string, entry *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}
