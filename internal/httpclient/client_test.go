package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/plantdoc/internal/errors"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil config", func(t *testing.T) {
		t.Parallel()
		client := New(nil)
		assert.Equal(t, DefaultTimeout, client.defaultTimeout)
		assert.Equal(t, defaultUserAgent, client.userAgent)
		assert.Equal(t, DefaultMaxBodySize, client.maxBodySize)
	})

	t.Run("custom config", func(t *testing.T) {
		t.Parallel()
		client := New(&Config{DefaultTimeout: 5 * time.Second, UserAgent: "TestAgent/1.0", MaxBodySize: 10})
		assert.Equal(t, 5*time.Second, client.defaultTimeout)
		assert.Equal(t, "TestAgent/1.0", client.userAgent)
		assert.Equal(t, int64(10), client.maxBodySize)
	})
}

func TestGetSetsUserAgent(t *testing.T) {
	t.Parallel()

	var received atomic.Value
	server := seedServer(t, func(w http.ResponseWriter, r *http.Request) {
		received.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ok"))
	})

	client := testClient(t, &Config{UserAgent: "CustomAgent/2.0"})
	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	drain(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "CustomAgent/2.0", received.Load())
}

func TestDoDefaultTimeout(t *testing.T) {
	t.Parallel()

	server := seedServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	client := testClient(t, &Config{DefaultTimeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := client.Get(t.Context(), server.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDoContextCancellation(t *testing.T) {
	t.Parallel()

	server := seedServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	client := testClient(t, nil)
	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Fetch(ctx, server.URL)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestFetch(t *testing.T) {
	t.Parallel()

	const base = "https://seeds.example.com"
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, base+"/ok.yaml",
		httpmock.NewStringResponder(http.StatusOK, "plants: []\n"))
	mock.RegisterResponder(http.MethodGet, base+"/missing.yaml",
		httpmock.NewStringResponder(http.StatusNotFound, "nope"))
	mock.RegisterResponder(http.MethodGet, base+"/huge.yaml",
		httpmock.NewStringResponder(http.StatusOK, strings.Repeat("x", 64)))

	client := testClient(t, &Config{Transport: mock, MaxBodySize: 32})

	body, err := client.Fetch(t.Context(), base+"/ok.yaml")
	require.NoError(t, err)
	assert.Equal(t, "plants: []\n", string(body))

	_, err = client.Fetch(t.Context(), base+"/missing.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))

	_, err = client.Fetch(t.Context(), base+"/huge.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = client.Fetch(t.Context(), base+"/unregistered.yaml")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))

	assert.Equal(t, 4, mock.GetTotalCallCount())
}

func TestAfterResponseHook(t *testing.T) {
	t.Parallel()

	server := seedServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	var status atomic.Int32
	client := testClient(t, nil)
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error) {
		if err == nil {
			status.Store(int32(resp.StatusCode))
		}
	})

	_, err := client.Fetch(t.Context(), server.URL)
	require.Error(t, err)
	assert.Equal(t, int32(http.StatusTeapot), status.Load())
}
