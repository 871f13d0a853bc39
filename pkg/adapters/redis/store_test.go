package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glyphhq/glyph/pkg/adapters/redis"
	"github.com/glyphhq/glyph/pkg/domain"
	"github.com/glyphhq/glyph/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*backend.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err, "Failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisStore_Contract(t *testing.T) {
	client, _ := newTestClient(t)
	ports.RunSessionStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_ListPrunesExpired(t *testing.T) {
	client, _ := newTestClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	live := domain.NewSession("quote-modern", "acct_1", time.Hour)
	dead := domain.NewSession("quote-modern", "acct_1", time.Hour)
	dead.ExpiresAt = time.Now().Add(-time.Minute)

	require.NoError(t, store.Save(ctx, live))
	require.NoError(t, store.Save(ctx, dead))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, live.ID)
	assert.NotContains(t, ids, dead.ID, "expired sessions are pruned from the index")
}

func TestRedisStore_RecordEvictedAfterGrace(t *testing.T) {
	client, mr := newTestClient(t)
	store := redis.NewFromClient(client, redis.WithGrace(time.Minute))
	ctx := context.Background()

	s := domain.NewSession("quote-modern", "acct_1", time.Hour)
	require.NoError(t, store.Save(ctx, s))

	// Fast-forward past horizon + grace; redis drops the record.
	mr.FastForward(time.Hour + 2*time.Minute)

	_, err := store.Load(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	client, _ := newTestClient(t)
	locker := redis.NewLocker(client, "glyph:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "session-1", time.Minute)
	require.NoError(t, err)

	// A second acquisition attempt times out while the lock is held.
	shortCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(shortCtx, "session-1", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))

	// After release it can be acquired again.
	unlock2, err := locker.Lock(ctx, "session-1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestRedisKeyStore(t *testing.T) {
	client, _ := newTestClient(t)
	keys := redis.NewKeyStore(client, "glyph:")
	ctx := context.Background()

	_, err := keys.Verify(ctx, "gk_unknown")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, keys.Put(ctx, "gk_test", "acct_1"))
	owner, err := keys.Verify(ctx, "gk_test")
	require.NoError(t, err)
	assert.Equal(t, "acct_1", owner)

	require.NoError(t, keys.Revoke(ctx, "gk_test"))
	_, err = keys.Verify(ctx, "gk_test")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
