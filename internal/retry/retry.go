package retry

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

// Policy describes how an operation is retried.
type Policy struct {
	Name      string
	Attempts  uint
	BaseDelay time.Duration
	MaxDelay  time.Duration
	MaxJitter time.Duration
	// Retryable decides whether an error is worth another attempt. Nil means
	// IsTransient.
	Retryable func(error) bool
}

var (
	// DefaultPolicy matches the short backoff used for metadata lookups.
	DefaultPolicy = Policy{Name: "default", Attempts: 3, BaseDelay: 300 * time.Millisecond, MaxDelay: 5 * time.Second}
	// ListHostPolicy is the longer schedule the list host needs under load.
	ListHostPolicy = Policy{Name: "mdblist", Attempts: 4, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second}
)

// Delay returns the wait before retry n (1-based). Without jitter the
// sequence never decreases.
func (p Policy) Delay(n uint) time.Duration {
	if n == 0 {
		n = 1
	}
	d := p.BaseDelay
	for i := uint(1); i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxJitter > 0 {
		d += rand.N(p.MaxJitter)
	}
	return d
}

func (p Policy) options(ctx context.Context) []retrygo.Option {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	return []retrygo.Option{
		retrygo.Context(ctx),
		retrygo.Attempts(attempts),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(retryable),
		retrygo.DelayType(func(n uint, _ error, _ *retrygo.Config) time.Duration {
			// retry-go counts retries from zero
			return p.Delay(n + 1)
		}),
		retrygo.OnRetry(func(n uint, err error) {
			log.Printf("[retry] %s attempt %d/%d failed: %v", p.Name, n+1, attempts, err)
		}),
	}
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done.
func Do(ctx context.Context, p Policy, op func() error) error {
	return retrygo.Do(op, p.options(ctx)...)
}

// DoValue is Do for operations producing a value.
func DoValue[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	return retrygo.DoWithData(op, p.options(ctx)...)
}

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// StatusOf extracts the upstream HTTP status from err, or 0.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

// IsTransient reports rate limiting, unavailable upstreams and network
// timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch status := StatusOf(err); {
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	case status != 0:
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsRateLimited reports only 429 and 503, the two statuses the list host uses
// to push back.
func IsRateLimited(err error) bool {
	status := StatusOf(err)
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}
