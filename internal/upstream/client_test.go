package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiolists/internal/retry"
)

func testClient() *Client {
	return New(Options{Policy: retry.Policy{Name: "test", Attempts: 3, BaseDelay: time.Millisecond}})
}

func TestGetJSONDecodesBodyAndSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Key"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"list"}`))
	}))
	defer srv.Close()

	var out struct {
		Name string `json:"name"`
	}
	err := testClient().GetJSON(context.Background(), srv.URL+"/x", http.Header{"X-Key": {"secret"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "list", out.Name)
}

func TestGetJSONRetriesUnavailable(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := testClient().GetJSON(context.Background(), srv.URL+"/x?apikey=hidden", nil, &struct{}{})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.NotContains(t, err.Error(), "hidden")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSONDoesNotRetryForbidden(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := testClient().GetJSON(context.Background(), srv.URL, nil, &struct{}{})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized, http.StatusForbidden))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHeadReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	status, err := testClient().Head(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	}))
	defer srv.Close()

	var out map[string]any
	err := testClient().GetJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)
	assert.True(t, IsMalformed(err))
	assert.False(t, IsMalformed(&StatusError{Status: http.StatusBadGateway}))
}
