package redlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestLockAndUnlock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, WalletKey("user-1", "USD"), "holder-a")
	require.NoError(t, locker.Lock(ctx, time.Minute))

	// Second holder cannot take the same wallet lock.
	second := NewLocker(client, WalletKey("user-1", "USD"), "holder-b")
	assert.ErrorContains(t, second.Lock(ctx, time.Minute), "already held")

	// A different wallet is not blocked.
	other := NewLocker(client, WalletKey("user-2", "USD"), "holder-c")
	assert.NoError(t, other.Lock(ctx, time.Minute))

	require.NoError(t, locker.Unlock(ctx))
	assert.NoError(t, second.Lock(ctx, time.Minute))
}

func TestUnlockByNonHolder(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, WalletKey("user-1", "USD"), "holder-a")
	require.NoError(t, locker.Lock(ctx, time.Minute))

	impostor := NewLocker(client, WalletKey("user-1", "USD"), "holder-b")
	assert.Error(t, impostor.Unlock(ctx))
}

func TestExtendLock(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	locker := NewLocker(client, WalletKey("user-1", "USD"), "holder-a")
	require.NoError(t, locker.Lock(ctx, time.Minute))
	assert.NoError(t, locker.ExtendLock(ctx, 2*time.Minute))
}

func TestLock_TransportError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewLocker(client, WalletKey("user-1", "USD"), "holder-a")

	mock.ExpectSetNX("wallet:user-1:USD", "holder-a", time.Minute).SetErr(assert.AnError)

	err := locker.Lock(context.Background(), time.Minute)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlock_TransportError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locker := NewLocker(client, "wallet:user-1:USD", "holder-a")

	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	mock.ExpectEval(script, []string{"wallet:user-1:USD"}, "holder-a").SetErr(assert.AnError)

	err := locker.Unlock(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}
