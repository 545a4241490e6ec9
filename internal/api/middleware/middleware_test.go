package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/plantdoc/internal/logger"
)

type httpRecord struct {
	method, path string
	status       int
}

type fakeHTTPMetrics struct {
	mu      sync.Mutex
	started int
	records []httpRecord
}

func (f *fakeHTTPMetrics) RequestStarted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *fakeHTTPMetrics) RecordHTTPRequest(method, path string, status int, _ float64, _ int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, httpRecord{method, path, status})
}

func newTestEcho(m *fakeHTTPMetrics) *echo.Echo {
	e := echo.New()
	e.Use(NewRequestID())
	e.Use(NewRequestLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil), m))
	e.GET("/items/:id", func(c echo.Context) error {
		if c.Param("id") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "missing")
		}
		return c.String(http.StatusOK, CorrelationID(c))
	})
	return e
}

func TestRequestLoggerRecordsRoutePattern(t *testing.T) {
	t.Parallel()

	m := &fakeHTTPMetrics{}
	e := newTestEcho(m)

	for _, id := range []string{"1", "2", "missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/"+id, http.NoBody))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Len(t, m.records, 4)
	assert.Equal(t, 4, m.started)
	assert.Equal(t, httpRecord{http.MethodGet, "/items/:id", http.StatusOK}, m.records[0])
	assert.Equal(t, httpRecord{http.MethodGet, "/items/:id", http.StatusNotFound}, m.records[2])
	assert.Equal(t, http.StatusNotFound, m.records[3].status)
}

func TestRequestIDIsCorrelationID(t *testing.T) {
	t.Parallel()

	e := newTestEcho(&fakeHTTPMetrics{})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/1", http.NoBody))
	id := rec.Header().Get(echo.HeaderXRequestID)
	assert.Len(t, id, 36)
	assert.Equal(t, id, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/items/1", http.NoBody)
	req.Header.Set(echo.HeaderXRequestID, "client-supplied")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "client-supplied", rec.Body.String())
}

func TestBodyLimit(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(NewBodyLimit("1K"))
	e.POST("/upload", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(strings.Repeat("x", 2048))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(NewCORS(SecurityConfig{AllowedOrigins: []string{"https://app.example.com"}}))
	e.POST("/api", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodOptions, "/api", http.NoBody)
	req.Header.Set(echo.HeaderOrigin, "https://app.example.com")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}
