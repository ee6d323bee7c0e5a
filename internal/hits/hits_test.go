package hits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	hits atomic.Int64
	fail atomic.Bool
}

func (f *fakeCounter) IncrementHits(_ context.Context, _ int64) error {
	if f.fail.Load() {
		return errors.New("database is locked")
	}
	f.hits.Add(1)
	return nil
}

// dedupers returns both store implementations so every behavior is checked against each.
func dedupers(t *testing.T) map[string]Deduper {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Deduper{
		"memory": NewMemoryDeduper(10 * time.Minute),
		"redis":  NewRedisDeduper(client, 10*time.Minute),
	}
}

func TestRecorderCountsRequestOnce(t *testing.T) {
	for name, dedup := range dedupers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			counter := &fakeCounter{}
			recorder := NewRecorder(counter, dedup)

			counted, err := recorder.Record(ctx, 1, "req-1")
			require.NoError(t, err)
			assert.True(t, counted)

			counted, err = recorder.Record(ctx, 1, "req-1")
			require.NoError(t, err)
			assert.False(t, counted)

			// Same request id on another endpoint is a separate hit.
			counted, err = recorder.Record(ctx, 2, "req-1")
			require.NoError(t, err)
			assert.True(t, counted)

			assert.Equal(t, int64(2), counter.hits.Load())
		})
	}
}

func TestRecorderEmptyRequestIDAlwaysCounts(t *testing.T) {
	for name, dedup := range dedupers(t) {
		t.Run(name, func(t *testing.T) {
			counter := &fakeCounter{}
			recorder := NewRecorder(counter, dedup)

			for i := 0; i < 3; i++ {
				counted, err := recorder.Record(context.Background(), 1, "")
				require.NoError(t, err)
				assert.True(t, counted)
			}
			assert.Equal(t, int64(3), counter.hits.Load())
		})
	}
}

func TestRecorderReleasesClaimWhenIncrementFails(t *testing.T) {
	for name, dedup := range dedupers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			counter := &fakeCounter{}
			counter.fail.Store(true)
			recorder := NewRecorder(counter, dedup)

			counted, err := recorder.Record(ctx, 1, "req-retry")
			assert.Error(t, err)
			assert.False(t, counted)

			counter.fail.Store(false)
			counted, err = recorder.Record(ctx, 1, "req-retry")
			require.NoError(t, err)
			assert.True(t, counted)
			assert.Equal(t, int64(1), counter.hits.Load())
		})
	}
}

func TestRecorderCountsWithoutDedupWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	counter := &fakeCounter{}
	recorder := NewRecorder(counter, NewRedisDeduper(client, time.Minute))

	counted, err := recorder.Record(ctx, 1, "req-1")
	require.NoError(t, err)
	assert.True(t, counted)

	mr.Close()

	counted, err = recorder.Record(ctx, 1, "req-2")
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, int64(2), counter.hits.Load())
}

func TestRecorderConcurrentRequests(t *testing.T) {
	for name, dedup := range dedupers(t) {
		t.Run(name, func(t *testing.T) {
			counter := &fakeCounter{}
			recorder := NewRecorder(counter, dedup)

			const n = 40
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(2)
				go func(i int) {
					defer wg.Done()
					_, err := recorder.Record(context.Background(), 1, fmt.Sprintf("distinct-%d", i))
					assert.NoError(t, err)
				}(i)
				go func() {
					defer wg.Done()
					_, err := recorder.Record(context.Background(), 1, "shared")
					assert.NoError(t, err)
				}()
			}
			wg.Wait()

			// n distinct requests plus one for the shared id
			assert.Equal(t, int64(n+1), counter.hits.Load())
		})
	}
}

func TestMemoryDeduperExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	dedup := NewMemoryDeduper(time.Minute)
	dedup.now = func() time.Time { return now }

	ok, err := dedup.Claim(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(30 * time.Second)
	ok, _ = dedup.Claim(ctx, "a")
	assert.False(t, ok)

	now = now.Add(31 * time.Second)
	ok, _ = dedup.Claim(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, 1, dedup.Len(), "expired key should be swept")

	ok, _ = dedup.Claim(ctx, "a")
	assert.True(t, ok)
}

func TestRedisDeduperExpiry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	dedup, err := ConnectRedisDeduper(ctx, "redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dedup.Close() })

	ok, err := dedup.Claim(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists(redisKeyPrefix+"a"))

	ok, err = dedup.Claim(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = dedup.Claim(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConnectRedisDeduperErrors(t *testing.T) {
	_, err := ConnectRedisDeduper(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = ConnectRedisDeduper(context.Background(), "redis://"+addr, time.Minute)
	assert.Error(t, err)
}
