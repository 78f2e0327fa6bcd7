package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"hypeledger/internal/ledger"
)

type Options struct {
	TTL           time.Duration
	RetryInterval time.Duration
	MaxRetries    int
}

// RedisLocker is a ledger.Locker shared by every instance pointing at the
// same redis. Keys are user ids; they are locked in sorted order and any
// partially acquired set is released before an error is returned.
type RedisLocker struct {
	client Client
	opts   Options
}

var _ ledger.Locker = (*RedisLocker)(nil)

func NewRedisLocker(client Client, opts Options) *RedisLocker {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 100 * time.Millisecond
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 30
	}
	return &RedisLocker{client: client, opts: opts}
}

func (r *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := ledger.SortKeys(keys)
	held := make([]*DistributedLock, 0, len(ordered))

	for _, key := range ordered {
		l := NewDistributedLock(r.client, UserLockKey(key), uuid.NewString(), r.opts.TTL)
		if err := l.Lock(ctx, r.opts.RetryInterval, r.opts.MaxRetries); err != nil {
			release(held)
			return nil, fmt.Errorf("lock user %s: %w: %w", key, ledger.ErrStorageUnavailable, err)
		}
		held = append(held, l)
	}

	var once sync.Once
	return func() { once.Do(func() { release(held) }) }, nil
}

// release runs on its own context: the caller's may already be cancelled.
func release(held []*DistributedLock) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		if err := held[i].Unlock(ctx); err != nil {
			log.WithError(err).WithField("key", held[i].key).Warn("[RedisLocker] unlock failed, key will expire")
		}
	}
}
