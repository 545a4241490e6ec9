package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// testClient returns a client built from cfg (nil for defaults) that is
// closed when the test ends.
func testClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	c := New(cfg)
	t.Cleanup(c.Close)
	return c
}

// seedServer serves handler for the duration of the test.
func seedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// drain closes resp.Body when the test ends.
func drain(t *testing.T, resp *http.Response) {
	t.Helper()
	require.NotNil(t, resp)
	t.Cleanup(func() { _ = resp.Body.Close() })
}
