// Package lock implements the per-request lease lock that keeps the
// offer-write path and the evaluation pass from interleaving.
package lock

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/partsbid/matching-engine/internal/config"
	"github.com/partsbid/matching-engine/internal/resilience"
)

// ErrBusy is returned when the lock is held and retries are exhausted.
// Callers surface it as a retryable conflict, not a generic failure.
var ErrBusy = eris.New("lock: request is busy")

// ErrNotHeld is returned by Release when the lease no longer matches the
// stored token (expired and reacquired by another holder).
var ErrNotHeld = eris.New("lock: lease not held")

// client is the subset of redis commands the guard issues. *redis.Client
// satisfies it; tests provide a fake.
type client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// releaseScript deletes the key only when the stored token matches, so an
// expired holder cannot release a lease reacquired by someone else.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Lease is a time-bounded, token-verified mutual-exclusion grant for one
// request.
type Lease struct {
	RequestID string
	Token     string
	ExpiresAt time.Time
}

// Guard is the per-request lock over a redis key with TTL.
type Guard struct {
	rdb client
	cfg config.LockConfig
}

// New creates a Guard. The configured TTL must exceed the worst-case
// evaluation timeout (validated at config load).
func New(rdb client, cfg config.LockConfig) *Guard {
	return &Guard{rdb: rdb, cfg: cfg}
}

// TryAcquire attempts to take the lock for a request with a bounded lease.
// A held lock fails fast; acquisition is retried with jittered backoff up
// to the configured attempt budget before giving up with ErrBusy.
func (g *Guard) TryAcquire(ctx context.Context, requestID string) (*Lease, error) {
	token := uuid.NewString()

	retryCfg := resilience.RetryConfig{
		MaxAttempts:    g.cfg.MaxAttempts,
		InitialBackoff: time.Duration(g.cfg.BackoffMS) * time.Millisecond,
		JitterFraction: 0.25,
		ShouldRetry: func(err error) bool {
			return eris.Is(err, ErrBusy) || resilience.IsTransient(err)
		},
		OnRetry: resilience.RetryLogger("redis", "lock acquire"),
	}

	lease, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*Lease, error) {
		ok, err := g.rdb.SetNX(ctx, g.key(requestID), token, g.cfg.TTL()).Result()
		if err != nil {
			return nil, eris.Wrapf(err, "lock: acquire %s", requestID)
		}
		if !ok {
			return nil, ErrBusy
		}
		return &Lease{
			RequestID: requestID,
			Token:     token,
			ExpiresAt: time.Now().Add(g.cfg.TTL()),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// Release frees the lock if the lease token still matches. Returns
// ErrNotHeld when the lease expired and the key was taken by another
// holder (or already released).
func (g *Guard) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return eris.New("lock: nil lease")
	}

	res, err := g.rdb.Eval(ctx, releaseScript, []string{g.key(lease.RequestID)}, lease.Token).Result()
	if err != nil {
		return eris.Wrapf(err, "lock: release %s", lease.RequestID)
	}
	if n, ok := res.(int64); !ok || n == 0 {
		return ErrNotHeld
	}
	return nil
}

// IsLocked is the cheap existence check used by the offer-submission path
// to reject writes with a retryable conflict instead of blocking.
func (g *Guard) IsLocked(ctx context.Context, requestID string) (bool, error) {
	n, err := g.rdb.Exists(ctx, g.key(requestID)).Result()
	if err != nil {
		return false, eris.Wrapf(err, "lock: check %s", requestID)
	}
	return n > 0, nil
}

// ForceRelease unconditionally drops the lock. Administrative override
// only; the reason is required and audit-logged.
func (g *Guard) ForceRelease(ctx context.Context, requestID, reason string) error {
	if reason == "" {
		return eris.New("lock: force release requires a reason")
	}

	zap.L().Warn("force releasing request lock",
		zap.String("request_id", requestID),
		zap.String("reason", reason),
	)

	if err := g.rdb.Del(ctx, g.key(requestID)).Err(); err != nil {
		return eris.Wrapf(err, "lock: force release %s", requestID)
	}
	return nil
}

func (g *Guard) key(requestID string) string {
	return g.cfg.KeyPrefix + requestID
}
