// Package runlock provides a Redis-backed advisory lock so that overlapping
// run triggers (cron plus manual, or two runner replicas) do not process the
// same batch twice. The lock is best effort: the engine stays correct without
// it, the lock only avoids duplicate provider sends.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed holder can block the next run.
const DefaultTTL = 2 * time.Minute

// ErrHeld is returned by Acquire when another run holds the lock.
var ErrHeld = errors.New("run lock already held")

// releaseScript deletes the key only when it still carries our token, so a
// slow run cannot release a lock that expired and was re-acquired.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

type Lock struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

func New(client redis.UniversalClient, key string, ttl time.Duration, logger *slog.Logger) *Lock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Lock{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.With("module", "runlock", "key", key),
	}
}

// Acquire takes the lock without blocking and returns the release token.
func (l *Lock) Acquire(ctx context.Context) (string, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire run lock: %w", err)
	}

	if !ok {
		return "", ErrHeld
	}

	return token, nil
}

// Release frees the lock if the token still owns it. An expired or stolen
// token is logged, not an error: the run it guarded already finished.
func (l *Lock) Release(ctx context.Context, token string) error {
	deleted, err := l.client.Eval(ctx, releaseScript, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}

	if deleted == 0 {
		l.logger.WarnContext(ctx, "Run lock expired before release, run exceeded the lock TTL")
	}

	return nil
}
