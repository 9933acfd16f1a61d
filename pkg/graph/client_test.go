package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacache/pkg/config"
	errs "metacache/pkg/errors"
	"metacache/pkg/logger"
)

// newTestClient builds a client pointed at the test server with
// backoff delays collapsed so retry paths run instantly.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.RateLimit.RequestsPerMinute = 100000
	cfg.RateLimit.InitialBackoff = time.Millisecond
	cfg.RateLimit.MaxBackoff = 5 * time.Millisecond
	cfg.RateLimit.RequestTimeout = 5 * time.Second

	client := NewClient(cfg, logger.Nop())
	client.SetBaseURL(srv.URL)
	return client, srv
}

func writeGraphError(w http.ResponseWriter, status, code, subcode int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message":          message,
			"code":             code,
			"error_subcode":    subcode,
			"fbtrace_id":       "AbCdEf",
			"type":             "OAuthException",
		},
	})
}

func TestCallReturnsBodyOnSuccess(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20.0/123", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte(`{"id":"123","name":"Acme"}`))
	}))

	raw, err := client.Call(context.Background(), "123", nil, "tok")
	require.NoError(t, err)

	var page Page
	require.NoError(t, json.Unmarshal(raw, &page))
	assert.Equal(t, "Acme", page.Name)
}

func TestCallExhaustsRetriesOnPersistentRateLimit(t *testing.T) {
	var calls int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		writeGraphError(w, http.StatusBadRequest, 4, 0, "Application request limit reached")
	}))

	_, err := client.Call(context.Background(), "123/posts", nil, "tok")
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeRateLimit, apiErr.Type)
	assert.Equal(t, 4, apiErr.Code)
	assert.EqualValues(t, 5, atomic.LoadInt64(&calls))
}

func TestCallRetriesTransportThrottleThenSucceeds(t *testing.T) {
	var calls int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":"123"}`))
	}))

	raw, err := client.Call(context.Background(), "123", nil, "tok")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "123")
	assert.EqualValues(t, 3, atomic.LoadInt64(&calls))
}

func TestCallDoesNotRetryPermanentErrors(t *testing.T) {
	var calls int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		writeGraphError(w, http.StatusBadRequest, 190, 460, "Error validating access token")
	}))

	_, err := client.Call(context.Background(), "me/accounts", nil, "tok")
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
	assert.Equal(t, 190, apiErr.Code)
	assert.Equal(t, 460, apiErr.Subcode)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestCallClassifiesMissingCapability(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeGraphError(w, http.StatusBadRequest, 100, 33, "Unsupported get request")
	}))

	_, err := client.Call(context.Background(), "999/insights", nil, "tok")
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeUnavailable, apiErr.Type)
	assert.True(t, errs.IsUnavailable(apiErr))
}

func TestCallHonorsContextCancellation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeGraphError(w, http.StatusTooManyRequests, 0, 0, "slow down")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Call(ctx, "123", nil, "tok")
	require.Error(t, err)
}

func TestGetJSONReturnsParsingError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": not json`))
	}))

	var page Page
	err := client.GetJSON(context.Background(), "123", url.Values{}, "tok", &page)
	require.Error(t, err)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeParsing, apiErr.Type)
}

func TestGetLinkedIGAccount(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p1","instagram_business_account":{"id":"ig1","username":"acme"}}`))
	}))

	ig, err := client.GetLinkedIGAccount(context.Background(), "p1", "tok")
	require.NoError(t, err)
	require.NotNil(t, ig)
	assert.Equal(t, "ig1", ig.ID)
}

func TestGetLinkedIGAccountAbsent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p1"}`))
	}))

	ig, err := client.GetLinkedIGAccount(context.Background(), "p1", "tok")
	require.NoError(t, err)
	assert.Nil(t, ig)
}
