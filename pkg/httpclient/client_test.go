package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retrying/pkg/envoverride"
	errs "retrying/pkg/errors"
	"retrying/pkg/logger"
	"retrying/pkg/retry"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

// timeoutError satisfies net.Error
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// sequenceServer answers with the given statuses in order, then 200.
func sequenceServer(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(&calls, 1))
		if n <= len(statuses) {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(statuses[n-1])
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","attempt":%d}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newExecutor(t *testing.T, opts ...retry.PolicyOption) *retry.Executor {
	t.Helper()
	p, err := retry.NewPolicy(opts...)
	require.NoError(t, err)
	e, err := retry.NewExecutor(p, retry.WithName("http"), retry.WithEnvironment(envoverride.Map(nil)))
	require.NoError(t, err)
	return e
}

func TestNewClient(t *testing.T) {
	log := logger.NewTestLogger()
	client := NewClient(30*time.Second, nil, log)

	assert.NotNil(t, client.httpClient)
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
	assert.Equal(t, DefaultUserAgent, client.headers["User-Agent"])
	assert.Equal(t, log, client.logger)
}

func TestSetHeaders(t *testing.T) {
	client := NewClient(30*time.Second, nil, nil)

	t.Run("SetHeader", func(t *testing.T) {
		client.SetHeader("X-Custom-Header", "test-value")
		assert.Equal(t, "test-value", client.headers["X-Custom-Header"])
	})

	t.Run("SetHeaders", func(t *testing.T) {
		client.SetHeaders(map[string]string{
			"X-Header-1": "value1",
			"X-Header-2": "value2",
		})
		assert.Equal(t, "value1", client.headers["X-Header-1"])
		assert.Equal(t, "value2", client.headers["X-Header-2"])
	})

	t.Run("request headers win", func(t *testing.T) {
		var got string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("X-Custom-Header")
		}))
		defer srv.Close()

		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		require.NoError(t, err)
		req.Header.Set("X-Custom-Header", "per-request")

		resp, err := client.Do(context.Background(), req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, "per-request", got)
	})
}

func TestStatusType(t *testing.T) {
	tests := []struct {
		code int
		want errs.ErrorType
	}{
		{http.StatusBadRequest, errs.ErrorTypeInvalid},
		{http.StatusUnauthorized, errs.ErrorTypeAuth},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusRequestTimeout, errs.ErrorTypeTimeout},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusInternalServerError, errs.ErrorTypeServerError},
		{http.StatusBadGateway, errs.ErrorTypeUnavailable},
		{http.StatusServiceUnavailable, errs.ErrorTypeUnavailable},
		{http.StatusGatewayTimeout, errs.ErrorTypeTimeout},
		{599, errs.ErrorTypeServerError},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusType(tt.code))
		})
	}
}

func TestDoWithoutExecutor(t *testing.T) {
	srv, calls := sequenceServer(t, http.StatusServiceUnavailable)
	client := NewClient(5*time.Second, nil, logger.NewTestLogger())

	resp, err := client.Get(context.Background(), srv.URL)
	assert.Nil(t, resp)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeUnavailable, errs.TypeOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestDoRetriesTransientStatuses(t *testing.T) {
	srv, calls := sequenceServer(t, http.StatusServiceUnavailable, http.StatusTooManyRequests)
	log := logger.NewTestLogger()
	client := NewClient(5*time.Second, newExecutor(t, retry.Attempts(5), retry.Fixed(0)), log)

	var payload struct {
		Status string `json:"status"`
	}
	require.NoError(t, client.GetJSON(context.Background(), srv.URL, &payload))
	assert.Equal(t, "ok", payload.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
	assert.True(t, log.HasMessage("server error"))
	assert.True(t, log.HasMessage("request rejected"))
}

func TestDoFilterStopsOnClientErrors(t *testing.T) {
	srv, calls := sequenceServer(t, http.StatusNotFound, http.StatusNotFound)
	executor := newExecutor(t,
		retry.Attempts(5),
		retry.Fixed(0),
		retry.IfErrors(errs.ErrorTypeNetwork, errs.ErrorTypeTimeout, errs.ErrorTypeUnavailable, errs.ErrorTypeRateLimit),
	)
	client := NewClient(5*time.Second, executor, nil)

	_, err := client.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var typed *errs.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, errs.ErrorTypeNotFound, typed.Type)
	assert.Equal(t, http.StatusNotFound, typed.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestDoExhaustsAttempts(t *testing.T) {
	srv, calls := sequenceServer(t, 500, 500, 500, 500)
	client := NewClient(5*time.Second, newExecutor(t, retry.Attempts(3), retry.Fixed(0)), nil)

	_, err := client.Get(context.Background(), srv.URL)
	assert.Equal(t, errs.ErrorTypeServerError, errs.TypeOf(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestDoReplaysBody(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client := NewClient(5*time.Second, newExecutor(t, retry.Attempts(2), retry.Fixed(0)), nil)
	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewBufferString(`{"id":1}`))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []string{`{"id":1}`, `{"id":1}`}, bodies)
}

func TestTransportErrors(t *testing.T) {
	t.Run("network", func(t *testing.T) {
		client := NewClient(5*time.Second, nil, nil)
		client.httpClient.Transport = &mockRoundTripper{handler: func(*http.Request) (*http.Response, error) {
			return nil, errors.New("connection refused")
		}}

		_, err := client.Get(context.Background(), "http://example.invalid/")
		assert.Equal(t, errs.ErrorTypeNetwork, errs.TypeOf(err))
	})

	t.Run("timeout", func(t *testing.T) {
		client := NewClient(5*time.Second, nil, nil)
		client.httpClient.Transport = &mockRoundTripper{handler: func(*http.Request) (*http.Response, error) {
			return nil, timeoutError{}
		}}

		_, err := client.Get(context.Background(), "http://example.invalid/")
		assert.Equal(t, errs.ErrorTypeTimeout, errs.TypeOf(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		client := NewClient(5*time.Second, nil, nil)
		client.httpClient.Transport = &mockRoundTripper{handler: func(*http.Request) (*http.Response, error) {
			cancel()
			return nil, context.Canceled
		}}

		_, err := client.Get(ctx, "http://example.invalid/")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, errs.ErrorTypeUnknown, errs.TypeOf(err))
	})
}

func TestGetJSONParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("not json ", 40)))
	}))
	defer srv.Close()

	log := logger.NewTestLogger()
	client := NewClient(5*time.Second, newExecutor(t, retry.Attempts(3), retry.Fixed(0)), log)

	var v map[string]interface{}
	err := client.GetJSON(context.Background(), srv.URL, &v)
	assert.Equal(t, errs.ErrorTypeInvalid, errs.TypeOf(err))
	assert.Equal(t, 1, log.CountMessage("failed to parse JSON response"))
}
