package redisclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisDoctorLocker(client, 5*time.Second), mr
}

func TestWithDoctorLockRunsFunction(t *testing.T) {
	locker, _ := newTestLocker(t)
	doctorID := uuid.New()

	ran := false
	err := locker.WithDoctorLock(context.Background(), doctorID, func(ctx context.Context) error {
		ran = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
}

func TestWithDoctorLockReleasesAfterRun(t *testing.T) {
	locker, mr := newTestLocker(t)
	doctorID := uuid.New()

	err := locker.WithDoctorLock(context.Background(), doctorID, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	key := fmt.Sprintf("lock:doctor:%s", doctorID)
	assert.False(t, mr.Exists(key), "lock key should be deleted after the critical section")
}

func TestWithDoctorLockContention(t *testing.T) {
	locker, _ := newTestLocker(t)
	doctorID := uuid.New()

	err := locker.WithDoctorLock(context.Background(), doctorID, func(ctx context.Context) error {
		// Second attempt for the same doctor while held must lose.
		inner := locker.WithDoctorLock(ctx, doctorID, func(ctx context.Context) error {
			t.Fatal("inner critical section must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)

		// A different doctor is unaffected.
		other := locker.WithDoctorLock(ctx, uuid.New(), func(ctx context.Context) error {
			return nil
		})
		assert.NoError(t, other)

		return nil
	})
	require.NoError(t, err)
}

func TestWithDoctorLockPropagatesError(t *testing.T) {
	locker, mr := newTestLocker(t)
	doctorID := uuid.New()

	sentinel := fmt.Errorf("boom")
	err := locker.WithDoctorLock(context.Background(), doctorID, func(ctx context.Context) error {
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	assert.False(t, mr.Exists(fmt.Sprintf("lock:doctor:%s", doctorID)))
}
