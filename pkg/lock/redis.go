package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisMinBackoff = 5 * time.Millisecond
	redisMaxBackoff = 100 * time.Millisecond
)

// releaseScript deletes the key only if it still carries our token, so an
// expired holder can never release somebody else's lock.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// extendScript pushes the expiry out only while the key still carries our token.
var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	end
	return 0
`)

// RedisLocker shares per-key exclusion between app instances. The TTL bounds
// how long a crashed holder can keep a key; a live holder renews it every
// third of the TTL until it unlocks.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client: client,
		prefix: "lock:",
		ttl:    ttl,
		log:    log.With(zap.String("locker", "redis")),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, wait time.Duration) (Unlock, error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	var deadline time.Time
	if wait > 0 {
		deadline = time.Now().Add(wait)
	}
	backoff := redisMinBackoff

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			stop, done := make(chan struct{}), make(chan struct{})
			go l.renew(redisKey, token, stop, done)
			return l.unlockFunc(redisKey, token, stop, done), nil
		}

		if !deadline.IsZero() && time.Now().Add(backoff).After(deadline) {
			return nil, ErrBusy
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > redisMaxBackoff {
			backoff = redisMaxBackoff
		}
	}
}

// renew keeps the lease alive until stop is closed. It gives up once the key
// no longer carries token, which means the TTL ran out and someone else may
// hold it now.
func (l *RedisLocker) renew(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.ttl / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := extendScript.Run(ctx, l.client, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		cancel()

		switch {
		case err != nil:
			l.log.Warn("Failed to renew lock",
				zap.Error(err),
				zap.String("key", redisKey),
			)
		case n == 0:
			l.log.Warn("Lock lease lost before unlock",
				zap.String("key", redisKey),
				zap.Duration("ttl", l.ttl),
			)
			return
		}
	}
}

func (l *RedisLocker) unlockFunc(redisKey, token string, stop chan<- struct{}, done <-chan struct{}) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// the caller's ctx may already be done, release on our own clock
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.log.Warn("Failed to release lock, waiting for TTL",
					zap.Error(err),
					zap.String("key", redisKey),
					zap.Duration("ttl", l.ttl),
				)
			}
		})
	}
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}
