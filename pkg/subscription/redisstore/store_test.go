package redisstore_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billsync/pkg/subscription"
	"github.com/dmitrymomot/billsync/pkg/subscription/redisstore"
)

// newStore connects to REDIS_TEST_URL and isolates the test under a random
// key prefix. The test is skipped when the variable is not set.
func newStore(t *testing.T, opts ...redisstore.Option) *redisstore.Store {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	redisOpts, err := goredis.ParseURL(url)
	require.NoError(t, err)
	client := goredis.NewClient(redisOpts)
	t.Cleanup(func() { _ = client.Close() })

	prefix := "billsync-test-" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			_ = client.Del(ctx, keys...).Err()
		}
	})
	return redisstore.New(client, append([]redisstore.Option{redisstore.WithPrefix(prefix)}, opts...)...)
}

func TestNewRequiresClient(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { redisstore.New(nil) })
}

func TestStore_Lifecycle(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Healthcheck(ctx))

	_, err := store.Get(ctx, "sub_1")
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

	rec, err := store.Upsert(ctx, "sub_1",
		func() *subscription.Record { return &subscription.Record{CreatedAt: now} },
		func(r *subscription.Record) error {
			r.Status = subscription.StatusActive
			return nil
		})
	require.NoError(t, err)
	assert.Empty(t, rec.UserID)

	ok, err := store.Insert(ctx, &subscription.Record{ID: "sub_1", UserID: "42"})
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err = store.Update(ctx, "sub_1", func(r *subscription.Record) error {
		r.UserID = "42"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "42", rec.UserID)

	ok, err = store.Insert(ctx, &subscription.Record{ID: "sub_2", UserID: "42", CreatedAt: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, ok)

	recs, err := store.FindByUser(ctx, "42")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "sub_2", recs[0].ID)
	assert.Equal(t, subscription.StatusActive, recs[1].Status)

	got, err := store.Get(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, now, got.CreatedAt.UTC())
}

func TestStore_ConcurrentUpdates(t *testing.T) {
	store := newStore(t, redisstore.WithMaxRetries(500))
	ctx := context.Background()
	_, err := store.Insert(ctx, &subscription.Record{ID: "sub_1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "sub_1", func(r *subscription.Record) error {
				r.Quantity++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, int64(20), rec.Quantity)
}
