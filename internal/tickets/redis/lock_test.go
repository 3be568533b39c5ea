package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
)

// setupTestRedis creates a Redis client backed by miniredis.
func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedis(client, logger.Discard(), time.Minute, time.Second), mr
}

func TestReserveNumber(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := r.ReserveNumber(ctx, "AB12", "creator-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ReserveNumber(ctx, "AB12", "creator-2")
	require.NoError(t, err)
	assert.False(t, ok, "second creator must not get the same number")

	// A non-owner release leaves the reservation in place.
	require.NoError(t, r.ReleaseNumber(ctx, "AB12", "creator-2"))
	assert.True(t, mr.Exists("ticket_number:AB12"))

	require.NoError(t, r.ReleaseNumber(ctx, "AB12", "creator-1"))
	assert.False(t, mr.Exists("ticket_number:AB12"))
}

func TestReservationExpires(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := r.ReserveNumber(ctx, "CD34", "creator-1")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = r.ReserveNumber(ctx, "CD34", "creator-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConcurrentReservationsHaveOneWinner(t *testing.T) {
	r, _ := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := r.ReserveNumber(ctx, "EF56", string(rune('a'+i)))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestLockQueue(t *testing.T) {
	r, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.LockQueue(ctx, "q1", "owner-1"))

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	err := r.LockQueue(waitCtx, "q1", "owner-2")
	assert.ErrorIs(t, err, ErrLockTimeout)

	require.NoError(t, r.UnlockQueue(ctx, "q1", "owner-1"))
	require.NoError(t, r.LockQueue(ctx, "q1", "owner-2"))
	require.NoError(t, r.UnlockQueue(ctx, "q1", "owner-2"))
}

func TestLockQueueWaitsForRelease(t *testing.T) {
	r, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.LockQueue(ctx, "q1", "owner-1"))
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = r.UnlockQueue(ctx, "q1", "owner-1")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	assert.NoError(t, r.LockQueue(waitCtx, "q1", "owner-2"))
}

func TestStaleOwnerCannotReleaseRetakenLock(t *testing.T) {
	r, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, r.LockQueue(ctx, "q1", "owner-1"))
	mr.FastForward(2 * time.Second)
	require.NoError(t, r.LockQueue(ctx, "q1", "owner-2"))

	require.NoError(t, r.UnlockQueue(ctx, "q1", "owner-1"))
	got, err := mr.Get("queue_lock:q1")
	require.NoError(t, err)
	assert.Equal(t, "owner-2", got)

	require.NoError(t, r.UnlockQueue(ctx, "q1", "owner-2"))
	assert.False(t, mr.Exists("queue_lock:q1"))

	// Releasing a key that is already gone is not an error.
	assert.NoError(t, r.UnlockQueue(ctx, "q1", "owner-2"))
}
