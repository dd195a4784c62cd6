package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/sentinel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.ActorEmail = "ops@example.com"
	cfg.AuthHeader = "Bearer token"
	cfg.InitialDelay = time.Millisecond
	cfg.Timeout = time.Second
	return cfg
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Timeout: time.Second, ActorEmail: "a@b.c"})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://x", ActorEmail: "a@b.c"})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "http://x", Timeout: time.Second})
	assert.Error(t, err)

	c, err := NewClient(testConfig("http://x"))
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestListAppliances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/1.0/appliances", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("first"))
		assert.Equal(t, "C1", r.URL.Query().Get("after"))

		_, _ = w.Write([]byte(`{
			"data": [
				{"id": "a1", "opStatus": "LIVE", "lastHeardFromOn": "2024-01-01T10:00:00Z"},
				{"id": "a2", "opStatus": "DOWN"}
			],
			"pageInfo": {"totalCount": 4, "hasNextPage": true, "endCursor": "C2"}
		}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	page, err := c.ListAppliances(context.Background(), "C1", 2)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "a1", page.Data[0].ID)
	require.NotNil(t, page.Data[0].LastHeardFromOn)
	assert.Nil(t, page.Data[1].LastHeardFromOn)
	require.NotNil(t, page.PageInfo)
	assert.True(t, page.PageInfo.HasNextPage)
	assert.Equal(t, "C2", page.PageInfo.NextCursor())
}

func TestListAppliancesFirstPageOmitsCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.URL.Query()["after"]
		assert.False(t, ok)
		_, _ = w.Write([]byte(`{"data": [], "pageInfo": {"hasNextPage": false}}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	page, err := c.ListAppliances(context.Background(), "", 100)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.False(t, page.PageInfo.HasNextPage)
}

func TestListAppliancesRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.ListAppliances(context.Background(), "", 10)
	require.Error(t, err)
	assert.Equal(t, int32(5), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
}

func TestListAppliancesRecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data": [{"id": "a1", "opStatus": "LIVE"}], "pageInfo": {"hasNextPage": false}}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	page, err := c.ListAppliances(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDrain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/1.0/appliances/a1/drain", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body types.ActionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Appliance a1 detected as stale - automated drain", body.Reason)
		assert.Equal(t, "ops@example.com", body.Actor)

		_, _ = w.Write([]byte(`{"drainId": 42, "estimatedTimeToDrain": "PT1H"}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	result, err := c.Drain(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "42", result.DrainID.String())
	assert.Equal(t, "PT1H", result.EstimatedTimeToDrain)
}

func TestRemediate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1.0/appliances/a1/remediate", r.URL.Path)

		var body types.ActionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Appliance a1 remediation after drain", body.Reason)

		_, _ = w.Write([]byte(`{"remediationId": "R7", "remediationResult": "SUCCESS"}`))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	result, err := c.Remediate(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "R7", result.RemediationID.String())
	assert.Equal(t, "SUCCESS", result.RemediationResult)
}

func TestDrainNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Drain(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRemediateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c, err := NewClient(testConfig(srv.URL))
	require.NoError(t, err)

	_, err = c.Remediate(context.Background(), "a1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, int32(3), calls.Load())

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "boom", statusErr.Body)
}

func TestPerAttemptTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 20 * time.Millisecond
	c, err := NewClient(cfg)
	require.NoError(t, err)

	_, err = c.Drain(context.Background(), "a1")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCancelledContextStopsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.InitialDelay = time.Hour
	c, err := NewClient(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = c.ListAppliances(ctx, "", 10)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRateLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"drainId": 1, "estimatedTimeToDrain": "PT1M"}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RequestsPerSecond = 20
	cfg.Burst = 1
	c, err := NewClient(cfg)
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Drain(context.Background(), "a1")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}
