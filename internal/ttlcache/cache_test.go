package ttlcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetAndExpiry(t *testing.T) {
	c := New[string](Options{Size: 10, TTL: 30 * time.Millisecond})
	c.Set("a", "1")

	v, found, negative := c.Get("a")
	assert.True(t, found)
	assert.False(t, negative)
	assert.Equal(t, "1", v)

	time.Sleep(80 * time.Millisecond)
	_, found, _ = c.Get("a")
	assert.False(t, found)
}

func TestNegativeEntriesUseShorterTTL(t *testing.T) {
	c := New[int](Options{Size: 10, TTL: time.Hour, NegativeTTL: 30 * time.Millisecond})
	c.SetNegative("missing")

	_, found, negative := c.Get("missing")
	assert.False(t, found)
	assert.True(t, negative)

	time.Sleep(80 * time.Millisecond)
	_, _, negative = c.Get("missing")
	assert.False(t, negative)
}

func TestSizeBoundEvictsOldest(t *testing.T) {
	c := New[int](Options{Size: 2, TTL: time.Hour})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, found, _ := c.Get("a")
	assert.False(t, found)
	assert.Equal(t, 2, c.Len())
}

func TestGetOrLoadCachesPositiveAndNegative(t *testing.T) {
	c := New[int](Options{Size: 10, TTL: time.Hour, NegativeTTL: time.Hour})
	var calls int32

	load := func(found bool) Loader[int] {
		return func(context.Context) (int, bool, error) {
			atomic.AddInt32(&calls, 1)
			return 42, found, nil
		}
	}

	v, found, err := c.GetOrLoad(context.Background(), "hit", load(true))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 42, v)

	_, found, err = c.GetOrLoad(context.Background(), "hit", load(true))
	require.NoError(t, err)
	assert.True(t, found)

	_, found, err = c.GetOrLoad(context.Background(), "miss", load(false))
	require.NoError(t, err)
	assert.False(t, found)
	_, found, err = c.GetOrLoad(context.Background(), "miss", load(false))
	require.NoError(t, err)
	assert.False(t, found)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	c := New[int](Options{Size: 10, TTL: time.Hour, NegativeTTL: time.Hour})
	boom := errors.New("upstream 503")

	_, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, bool, error) {
		return 0, false, boom
	})
	require.ErrorIs(t, err, boom)

	_, found, negative := c.Get("k")
	assert.False(t, found)
	assert.False(t, negative)

	v, found, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, bool, error) {
		return 7, true, nil
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 7, v)
}

func TestGetOrLoadSurvivesCallerCancellation(t *testing.T) {
	c := New[int](Options{Size: 10, TTL: time.Hour, NegativeTTL: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	load := func(loadCtx context.Context) (int, bool, error) {
		if err := loadCtx.Err(); err != nil {
			return 0, false, err
		}
		return 27205, true, nil
	}

	_, _, err := c.GetOrLoad(ctx, "find:tt1375666", load)
	if err != nil {
		require.ErrorIs(t, err, context.Canceled)
	}

	v, found, err := c.GetOrLoad(context.Background(), "find:tt1375666", load)
	require.NoError(t, err)
	assert.True(t, found, "a departed caller must not leave a negative entry")
	assert.Equal(t, 27205, v)
}

func TestGetOrLoadWaiterLeavesOnCancel(t *testing.T) {
	c := New[int](Options{Size: 10, TTL: time.Hour})
	release := make(chan struct{})
	started := make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		v, found, err := c.GetOrLoad(context.Background(), "slow", func(context.Context) (int, bool, error) {
			close(started)
			<-release
			return 5, true, nil
		})
		assert.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 5, v)
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := c.GetOrLoad(ctx, "slow", func(context.Context) (int, bool, error) {
		t.Error("second loader must not run")
		return 0, false, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done
	_, found, _ := c.Get("slow")
	assert.True(t, found)
}

func TestGetOrLoadCollapsesConcurrentLoads(t *testing.T) {
	c := New[int](Options{Size: 10, TTL: time.Hour})
	var calls int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = c.GetOrLoad(context.Background(), "shared", func(context.Context) (int, bool, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return 1, true, nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrLoadTurnsLoaderPanicIntoError(t *testing.T) {
	c := New[int](Options{Size: 10, TTL: time.Hour})

	_, _, err := c.GetOrLoad(context.Background(), "k", func(context.Context) (int, bool, error) {
		panic("nil map")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loader panicked")

	_, found, negative := c.Get("k")
	assert.False(t, found)
	assert.False(t, negative)
}
