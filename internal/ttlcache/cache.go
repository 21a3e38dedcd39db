package ttlcache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const defaultLoadTimeout = 30 * time.Second

// Options configures a Cache. Size bounds each of the positive and negative
// stores independently; zero means unbounded. LoadTimeout bounds a single
// loader call in GetOrLoad.
type Options struct {
	Size        int
	TTL         time.Duration
	NegativeTTL time.Duration
	LoadTimeout time.Duration
}

// Cache is a size-bounded key/value store with per-entry expiry. Misses can
// be remembered as negative entries with a shorter TTL so persistently
// failing lookups are not retried on every request.
type Cache[V any] struct {
	values   *expirable.LRU[string, V]
	negative *expirable.LRU[string, struct{}]
	group    singleflight.Group
	timeout  time.Duration
}

// Loader resolves a missing key. found=false records a negative entry; an
// error is returned to the callers and nothing is cached.
type Loader[V any] func(ctx context.Context) (value V, found bool, err error)

func New[V any](opts Options) *Cache[V] {
	negTTL := opts.NegativeTTL
	if negTTL <= 0 {
		negTTL = opts.TTL
	}
	timeout := opts.LoadTimeout
	if timeout <= 0 {
		timeout = defaultLoadTimeout
	}
	return &Cache[V]{
		timeout:  timeout,
		values:   expirable.NewLRU[string, V](opts.Size, nil, opts.TTL),
		negative: expirable.NewLRU[string, struct{}](opts.Size, nil, negTTL),
	}
}

// Get returns the cached value. negative is true when the key is known to
// have no value.
func (c *Cache[V]) Get(key string) (value V, found bool, negative bool) {
	if v, ok := c.values.Get(key); ok {
		return v, true, false
	}
	if _, ok := c.negative.Get(key); ok {
		return value, false, true
	}
	return value, false, false
}

func (c *Cache[V]) Set(key string, value V) {
	c.negative.Remove(key)
	c.values.Add(key, value)
}

func (c *Cache[V]) SetNegative(key string) {
	c.values.Remove(key)
	c.negative.Add(key, struct{}{})
}

func (c *Cache[V]) Remove(key string) {
	c.values.Remove(key)
	c.negative.Remove(key)
}

func (c *Cache[V]) Purge() {
	c.values.Purge()
	c.negative.Purge()
}

// Len counts live positive entries.
func (c *Cache[V]) Len() int {
	return c.values.Len()
}

type loadResult[V any] struct {
	value V
	found bool
}

// GetOrLoad is a read-through lookup. Concurrent loads of the same key share
// one loader call. The loader runs detached from the caller's cancellation so
// a departing caller does not fail the others; a caller whose ctx ends stops
// waiting and gets ctx.Err().
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load Loader[V]) (V, bool, error) {
	var zero V
	if v, found, negative := c.Get(key); found || negative {
		return v, found, nil
	}

	ch := c.group.DoChan(key, func() (_ any, err error) {
		// DoChan re-panics on its own goroutine, which nothing could recover
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("loader panicked: %v", p)
			}
		}()
		if v, found, negative := c.Get(key); found || negative {
			return loadResult[V]{value: v, found: found}, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		v, found, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if !found {
			c.SetNegative(key)
			return loadResult[V]{}, nil
		}
		c.Set(key, v)
		return loadResult[V]{value: v, found: true}, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, fmt.Errorf("load %s: %w", key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return zero, false, fmt.Errorf("load %s: %w", key, res.Err)
		}
		out := res.Val.(loadResult[V])
		return out.value, out.found, nil
	}
}
