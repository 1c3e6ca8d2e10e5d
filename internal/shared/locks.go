package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLockKey builds redis keys for pipeline critical sections.
func RunLockKey(operation string, tenantID int64) string {
	return fmt.Sprintf("billflow:%s:%d:lock", operation, tenantID)
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RunLock enforces at most one concurrent execution per (operation, tenant)
// across service instances. The hold is bounded by maxHold so a crashed
// holder cannot block the next scheduled run forever.
type RunLock struct {
	client  *redis.Client
	maxHold time.Duration
}

// NewRunLock constructs a RunLock.
func NewRunLock(client *redis.Client, maxHold time.Duration) *RunLock {
	if maxHold <= 0 {
		maxHold = 10 * time.Minute
	}
	return &RunLock{client: client, maxHold: maxHold}
}

// Acquire takes the (operation, tenant) lock. It returns ErrRunInProgress when
// another holder owns it, otherwise a release function that must be called
// when the run finishes.
func (l *RunLock) Acquire(ctx context.Context, operation string, tenantID int64) (func(context.Context), error) {
	key := RunLockKey(operation, tenantID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.maxHold).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire run lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
