package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"aiolists/internal/retry"
)

const userAgent = "AIOLists/1.0"

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Status int
	URL    string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: %d %s - %s", e.URL, e.Status, http.StatusText(e.Status), e.Body)
	}
	return fmt.Sprintf("%s: %d %s", e.URL, e.Status, http.StatusText(e.Status))
}

func (e *StatusError) StatusCode() int { return e.Status }

// IsStatus reports whether err carries one of the given HTTP statuses.
func IsStatus(err error, statuses ...int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	for _, s := range statuses {
		if se.Status == s {
			return true
		}
	}
	return false
}

// IsMalformed reports whether err came from decoding an unusable payload
// rather than from transport or status failures.
func IsMalformed(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Client wraps an http.Client with a request rate limit and a retry policy.
// One Client is created per upstream host.
type Client struct {
	httpc   *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
}

// Options configures a Client. A zero RatePerSecond disables limiting.
type Options struct {
	HTTPClient    *http.Client
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	Policy        retry.Policy
}

func New(opts Options) *Client {
	httpc := opts.HTTPClient
	if httpc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpc = &http.Client{Timeout: timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	policy := opts.Policy
	if policy.Attempts == 0 {
		policy = retry.DefaultPolicy
	}
	return &Client{httpc: httpc, limiter: limiter, policy: policy}
}

// Policy returns the retry policy the client applies.
func (c *Client) Policy() retry.Policy {
	return c.policy
}

// GetJSON fetches endpoint and decodes the JSON body into v, retrying transient
// failures according to the client policy.
func (c *Client) GetJSON(ctx context.Context, endpoint string, headers http.Header, v any) error {
	return c.DoJSON(ctx, http.MethodGet, endpoint, headers, nil, v)
}

// DoJSON sends body (JSON encoded when non-nil) and decodes the response
// into v when v is non-nil.
func (c *Client) DoJSON(ctx context.Context, method, endpoint string, headers http.Header, body any, v any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	return retry.Do(ctx, c.policy, func() error {
		return c.once(ctx, method, endpoint, headers, payload, v)
	})
}

// Head reports the status of a HEAD request without retrying.
func (c *Client) Head(ctx context.Context, endpoint string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *Client) once(ctx context.Context, method, endpoint string, headers http.Header, payload []byte, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vals := range headers {
		for _, val := range vals {
			req.Header.Set(k, val)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Status: resp.StatusCode, URL: redactURL(req.URL), Body: string(bytes.TrimSpace(snippet))}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// redactURL drops the query string, which carries API keys for several
// upstreams.
func redactURL(u *url.URL) string {
	return u.Scheme + "://" + u.Host + u.Path
}
