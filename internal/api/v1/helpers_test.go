package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/require"

	mw "github.com/tphakala/plantdoc/internal/api/middleware"
	"github.com/tphakala/plantdoc/internal/buildinfo"
	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/diagnosis"
	"github.com/tphakala/plantdoc/internal/imageprep"
	"github.com/tphakala/plantdoc/internal/testutil"
)

type testEnv struct {
	echo       *echo.Echo
	store      *mockStore
	classifier *testutil.FakeClassifier
	controller *Controller
}

func fakeHostStats(context.Context) (*mem.VirtualMemoryStat, error) {
	return &mem.VirtualMemoryStat{Total: 8 << 30, Available: 4 << 30, UsedPercent: 50}, nil
}

// newTestEnv wires a controller with a mocked store and a tomato registry
// backed by fake.
func newTestEnv(t *testing.T, fake *testutil.FakeClassifier) *testEnv {
	t.Helper()

	reg := testutil.LoadedRegistry(t,
		[]conf.PlantModel{testutil.TomatoModel()},
		map[string]classifier.Classifier{"tomato": fake})
	env := newEnvWithRegistry(t, reg)
	env.classifier = fake
	return env
}

func newEnvWithRegistry(t *testing.T, reg *classifier.Registry) *testEnv {
	t.Helper()

	engine := classifier.NewEngine(imageprep.Dimensions{Width: 8, Height: 8}, nil)
	svc := diagnosis.NewService(reg, engine, 5)

	e := echo.New()
	e.Use(mw.NewRequestID())
	store := &mockStore{}
	c := New(e, store, svc, reg, &conf.Settings{},
		WithBuildInfo(buildinfo.NewContext("1.2.3", "2026-10-01")),
		WithHostStats(fakeHostStats),
		WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics\n"))
		})))

	t.Cleanup(func() { store.AssertExpectations(t) })
	return &testEnv{echo: e, store: store, controller: c}
}

func (env *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return req
}

// uploadRequest builds a multipart upload. Empty plant omits the field.
func uploadRequest(t *testing.T, plant string, images ...[]byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if plant != "" {
		require.NoError(t, w.WriteField("plant", plant))
	}
	for i, data := range images {
		name := "image" + string(rune('1'+i))
		part, err := w.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploadfile", body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
