package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/plantdoc/internal/buildinfo"
	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/datastore"
	"github.com/tphakala/plantdoc/internal/diagnosis"
	"github.com/tphakala/plantdoc/internal/imageprep"
	"github.com/tphakala/plantdoc/internal/observability"
	"github.com/tphakala/plantdoc/internal/testutil"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	return &conf.Settings{
		Server: conf.ServerSettings{
			Host:            "127.0.0.1",
			Port:            0,
			BodyLimit:       "1M",
			ShutdownTimeout: 2 * time.Second,
		},
		Database: conf.DatabaseSettings{
			Type: conf.DatabaseSQLite,
			Path: filepath.Join(t.TempDir(), "plantdoc.db"),
		},
	}
}

func newTestServer(t *testing.T, settings *conf.Settings) (*Server, *observability.Metrics) {
	t.Helper()

	ds, err := datastore.New(&settings.Database)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	ctx := context.Background()
	require.NoError(t, ds.CreateSchema(ctx))
	seed, err := datastore.DefaultSeed()
	require.NoError(t, err)
	require.NoError(t, ds.Seed(ctx, seed))

	reg := testutil.LoadedRegistry(t,
		[]conf.PlantModel{testutil.TomatoModel()},
		map[string]classifier.Classifier{"tomato": &testutil.FakeClassifier{
			Scores: testutil.TomatoScores(1),
			// Photos with a red component favor a different label.
			ScoreFunc: func(tensor imageprep.Tensor) []float32 {
				if tensor.Data[0] > 0 {
					return testutil.TomatoScores(4)
				}
				return testutil.TomatoScores(1)
			},
		}})
	engine := classifier.NewEngine(imageprep.Dimensions{Width: 8, Height: 8}, nil)

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	srv, err := New(settings,
		WithDataStore(ds),
		WithDiagnoser(diagnosis.NewService(reg, engine, 5)),
		WithModels(reg),
		WithMetrics(m),
		WithBuildInfo(buildinfo.NewContext("0.1.0", "2026-10-16")))
	require.NoError(t, err)
	return srv, m
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(testSettings(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data store")
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	cfg := ConfigFromSettings(&conf.Settings{
		Debug: true,
		Server: conf.ServerSettings{
			Host:        "0.0.0.0",
			Port:        9000,
			CORSOrigins: []string{"https://plantdoc.example"},
		},
	})
	assert.Equal(t, "0.0.0.0:9000", cfg.Address())
	assert.Equal(t, []string{"https://plantdoc.example"}, cfg.AllowedOrigins)
	assert.Equal(t, DefaultBodyLimit, cfg.BodyLimit)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.True(t, cfg.Debug)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8000", ConfigFromSettings(nil).Address())
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"bad port", func(c *Config) { c.Port = "http" }},
		{"port out of range", func(c *Config) { c.Port = "70000" }},
		{"read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"write timeout", func(c *Config) { c.WriteTimeout = -time.Second }},
		{"shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }},
		{"body limit", func(c *Config) { c.BodyLimit = "lots" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestServerRoutesAgainstSeededStore(t *testing.T) {
	t.Parallel()
	srv, m := newTestServer(t, testSettings(t))

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/plant_list", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["tomato"]`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	assert.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))

	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	assert.Zero(t, m.HTTP.InFlight())
}

func TestServerPredictionEndToEnd(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, testSettings(t))

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("plant", "tomato"))
	part, err := w.CreateFormFile("image1", "leaf.png")
	require.NoError(t, err)
	_, err = part.Write(testutil.PNG(t, 12, 12, color.NRGBA{G: 200, A: 255}))
	require.NoError(t, err)
	part, err = w.CreateFormFile("image2", "leaf-back.png")
	require.NoError(t, err)
	_, err = part.Write(testutil.PNG(t, 16, 10, color.NRGBA{R: 90, G: 160, A: 255}))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploadfile", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var preds []v1Prediction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preds))
	require.Len(t, preds, 5)
	assert.ElementsMatch(t,
		[]string{conf.TomatoLabels[1], conf.TomatoLabels[4]},
		[]string{preds[0].Name, preds[1].Name})
	assert.InDelta(t, preds[0].Percentage, preds[1].Percentage, 1e-6)

	var total float32
	for _, p := range preds {
		total += p.Percentage
	}
	assert.Less(t, total, float32(1.0001))
}

// v1Prediction mirrors the upload response entry.
type v1Prediction struct {
	Name       string  `json:"name"`
	Percentage float32 `json:"percentage"`
}

func TestServerBodyLimit(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, testSettings(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/news", bytes.NewReader(make([]byte, 2<<20)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServerRunAndGracefulShutdown(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, testSettings(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != nil }, testutil.DefaultTestTimeout, 10*time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://%s/", srv.Addr()))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(testutil.DefaultTestTimeout):
		t.Fatal("server did not shut down")
	}
}
