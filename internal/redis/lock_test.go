package redisclient

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotKey(t *testing.T) {
	provider := uuid.MustParse("6f1c2d4e-0000-4000-8000-000000000002")
	slot := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "lock:slot:6f1c2d4e-0000-4000-8000-000000000002:1893492000", SlotKey(provider, slot))

	// same instant in another zone maps to the same key
	sp := time.FixedZone("BRT", -3*3600)
	assert.Equal(t, SlotKey(provider, slot), SlotKey(provider, slot.In(sp)))
}

func TestRedisSlotLocker_OnlyOneHolder(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, Options{Addr: addr})
	require.NoError(t, err)
	defer rdb.Close()

	locker := NewRedisSlotLocker(rdb, 2*time.Second)
	provider := uuid.New()
	slot := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)

	release := make(chan struct{})
	var held, rejected int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithSlotLock(ctx, provider, slot, func(ctx context.Context) error {
				atomic.AddInt32(&held, 1)
				<-release
				return nil
			})
			if err == ErrLockNotAcquired {
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&held)+atomic.LoadInt32(&rejected) == 8
	}, time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), held)
	assert.Equal(t, int32(7), rejected)

	// released keys can be taken again
	err = locker.WithSlotLock(ctx, provider, slot, func(context.Context) error { return nil })
	assert.NoError(t, err)
}
