package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "syllabus:lock:"

// Owner-checked mutations. KEYS[1] is the lock key, ARGV[1] the token.
var (
	unlockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) ~= ARGV[1] then
			return 0
		end
		return redis.call("del", KEYS[1])
	`)
	refreshScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) ~= ARGV[1] then
			return 0
		end
		return redis.call("pexpire", KEYS[1], ARGV[2])
	`)
)

// Lock is a DistributedLock backed by Redis keys that expire.
// Each instance writes its own token as the key value, so only the holder
// can release or refresh; an expired holder never clobbers a newer one.
type Lock struct {
	client *redis.Client
	token  string
}

// NewLock creates a lock client with a token unique to this process.
func NewLock(client *redis.Client) *Lock {
	host, _ := os.Hostname()
	return &Lock{
		client: client,
		token:  fmt.Sprintf("%s/%d/%s", host, os.Getpid(), uuid.NewString()),
	}
}

func lockKey(name string) string {
	return lockPrefix + name
}

func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(name), l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// Release is a no-op when the lock expired or belongs to someone else.
func (l *Lock) Release(ctx context.Context, name string) error {
	err := unlockScript.Run(ctx, l.client, []string{lockKey(name)}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Extend resets the TTL of a lock this instance still holds, otherwise
// it returns domain.ErrLockNotAcquired.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, l.client, []string{lockKey(name)}, l.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("lock %s lost: %w", name, domain.ErrLockNotAcquired)
	}
	return nil
}

func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
