package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
)

// ErrLockTimeout is returned when a queue lock could not be taken before the
// context expired.
var ErrLockTimeout = errors.New("timed out waiting for queue lock")

const (
	defaultNumberTTL    = 10 * time.Second
	defaultQueueLockTTL = 5 * time.Second
	lockRetryInterval   = 20 * time.Millisecond
)

type Redis struct {
	Client       *redis.Client
	Logger       *logger.Logger
	NumberTTL    time.Duration
	QueueLockTTL time.Duration
}

func NewRedis(client *redis.Client, log *logger.Logger, numberTTL, queueLockTTL time.Duration) *Redis {
	if numberTTL <= 0 {
		numberTTL = defaultNumberTTL
	}
	if queueLockTTL <= 0 {
		queueLockTTL = defaultQueueLockTTL
	}
	return &Redis{
		Client:       client,
		Logger:       log,
		NumberTTL:    numberTTL,
		QueueLockTTL: queueLockTTL,
	}
}

func numberKey(number string) string { return "ticket_number:" + number }
func queueKey(queueID string) string { return "queue_lock:" + queueID }

// ReserveNumber claims number for owner until the reservation expires. It
// returns false when another creator holds it.
func (r *Redis) ReserveNumber(ctx context.Context, number, owner string) (bool, error) {
	return r.Client.SetNX(ctx, numberKey(number), owner, r.NumberTTL).Result()
}

// ReleaseNumber drops a reservation held by owner.
func (r *Redis) ReleaseNumber(ctx context.Context, number, owner string) error {
	return r.releaseIfOwner(ctx, numberKey(number), owner)
}

// LockQueue blocks until owner holds the queue's lock or ctx is done.
func (r *Redis) LockQueue(ctx context.Context, queueID, owner string) error {
	key := queueKey(queueID)
	for {
		ok, err := r.Client.SetNX(ctx, key, owner, r.QueueLockTTL).Result()
		if err != nil {
			return fmt.Errorf("lock queue %s: %w", queueID, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			r.Logger.Warn("REDIS", fmt.Sprintf("gave up waiting for %s", key))
			return ErrLockTimeout
		case <-time.After(lockRetryInterval):
		}
	}
}

// UnlockQueue releases the queue lock if owner still holds it.
func (r *Redis) UnlockQueue(ctx context.Context, queueID, owner string) error {
	return r.releaseIfOwner(ctx, queueKey(queueID), owner)
}

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (r *Redis) releaseIfOwner(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, r.Client, []string{key}, owner).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}
