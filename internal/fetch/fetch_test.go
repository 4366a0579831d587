package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbparser/catalog-crawler/internal/catalog"
	"github.com/wbparser/catalog-crawler/internal/config"
	"github.com/wbparser/catalog-crawler/pkg/logger"
)

func testConfig() config.Fetch {
	return config.Fetch{
		RequestLimit:    4,
		AttemptsCounter: 3,
		Timeout:         2 * time.Second,
	}
}

func TestGetSucceedsOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(testConfig(), logger.NewNoop())
	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
}

func TestGetRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	cfg := testConfig()
	c := New(cfg, logger.NewNoop())
	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, 2, attempts)
}

func TestGetExhaustsRetryBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.AttemptsCounter = 2
	c := New(cfg, logger.NewNoop())
	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var upstreamErr *catalog.UpstreamUnavailable
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, 2, upstreamErr.Attempts)
}

func TestGetEmptyBodyIsEmptyResponseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.AttemptsCounter = 1
	c := New(cfg, logger.NewNoop())
	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var emptyErr *catalog.EmptyResponseError
	require.ErrorAs(t, err, &emptyErr)
}

func TestGetJSONRetriesOnDecodeFailureThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.Write([]byte(`{"truncated`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(testConfig(), logger.NewNoop())
	var target struct {
		OK bool `json:"ok"`
	}
	err := c.GetJSON(context.Background(), srv.URL, &target)
	require.NoError(t, err)
	assert.True(t, target.OK)
	assert.Equal(t, 2, attempts)
}

func TestGetJSONExhaustsRetryBudgetOnPersistentDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.AttemptsCounter = 2
	c := New(cfg, logger.NewNoop())

	var target struct{}
	err := c.GetJSON(context.Background(), srv.URL, &target)
	require.Error(t, err)

	var upstreamErr *catalog.UpstreamUnavailable
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, 2, upstreamErr.Attempts)
}

func TestGetRespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig()
	ctx, cancel := context.WithCancel(context.Background())
	c := New(cfg, logger.NewNoop())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := c.Get(ctx, srv.URL)
	require.Error(t, err)
}
