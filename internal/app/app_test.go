package app

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/plantdoc/internal/buildinfo"
	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/observability"
	"github.com/tphakala/plantdoc/internal/observability/metrics"
	"github.com/tphakala/plantdoc/internal/testutil"
)

func baseSettings(t *testing.T) *conf.Settings {
	t.Helper()
	dir := t.TempDir()

	settings := &conf.Settings{}
	settings.Database.Type = conf.DatabaseSQLite
	settings.Database.Path = filepath.Join(dir, "plantdoc.db")
	settings.Models.Dir = filepath.Join(dir, "models")
	settings.Models.Threads = 1
	settings.Models.Plants = []conf.PlantModel{testutil.TomatoModel()}
	settings.Image.Width = 8
	settings.Image.Height = 8
	settings.Prediction.TopK = 5
	return settings
}

func TestOpenStoreCreatesSchema(t *testing.T) {
	t.Parallel()
	settings := baseSettings(t)
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	ds, err := OpenStore(context.Background(), settings, m)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	item, err := ds.AddNews(context.Background(), "Hello", "First post")
	require.NoError(t, err)
	assert.NotZero(t, item.ID)
	assert.FileExists(t, settings.Database.Path)
}

func TestOpenStoreRejectsUnknownType(t *testing.T) {
	t.Parallel()
	settings := baseSettings(t)
	settings.Database.Type = "oracle"

	_, err := OpenStore(context.Background(), settings, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoadModelsRecordsFailure(t *testing.T) {
	t.Parallel()
	settings := baseSettings(t)
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	reg, err := LoadModels(context.Background(), settings, m)
	require.Error(t, err)
	assert.Nil(t, reg)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
	assert.InDelta(t, 1, promtest.ToFloat64(m.Classifier.ModelLoadTotal.WithLabelValues(metrics.StatusError)), 0)
	assert.InDelta(t, 0, promtest.ToFloat64(m.Classifier.ModelsLoaded), 0)
}

func TestNewRuntimeFailsWithoutModels(t *testing.T) {
	t.Parallel()
	settings := baseSettings(t)

	rt, err := NewRuntime(context.Background(), settings, buildinfo.NewContext("test", ""))
	require.Error(t, err)
	assert.Nil(t, rt)
}

func TestNewDiagnosisWithUploadsAndCache(t *testing.T) {
	t.Parallel()
	settings := baseSettings(t)
	settings.Uploads.Enabled = true
	settings.Uploads.Path = filepath.Join(t.TempDir(), "uploads")
	settings.Prediction.CacheTTL = time.Minute

	fake := &testutil.FakeClassifier{Scores: testutil.TomatoScores(2)}
	reg := testutil.LoadedRegistry(t, []conf.PlantModel{testutil.TomatoModel()},
		map[string]classifier.Classifier{"tomato": fake})
	m, err := observability.NewMetrics()
	require.NoError(t, err)

	svc, uploads, err := NewDiagnosis(settings, reg, m)
	require.NoError(t, err)
	require.NotNil(t, uploads)
	t.Cleanup(func() { _ = uploads.Close() })

	img := testutil.PNG(t, 8, 8, color.NRGBA{G: 180, A: 255})
	first, err := svc.Diagnose(context.Background(), "tomato", img)
	require.NoError(t, err)
	assert.Equal(t, conf.TomatoLabels[2], first.Predictions[0].Label)
	assert.Len(t, first.Predictions, 5)

	second, err := svc.Diagnose(context.Background(), "tomato", img)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, fake.Calls())

	entries, err := os.ReadDir(filepath.Join(settings.Uploads.Path, "tomato"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewDiagnosisWithoutUploads(t *testing.T) {
	t.Parallel()
	settings := baseSettings(t)

	reg := testutil.LoadedRegistry(t, []conf.PlantModel{testutil.TomatoModel()},
		map[string]classifier.Classifier{"tomato": &testutil.FakeClassifier{Scores: testutil.TomatoScores(0)}})

	svc, uploads, err := NewDiagnosis(settings, reg, nil)
	require.NoError(t, err)
	assert.Nil(t, uploads)
	assert.NotNil(t, svc)
}

func TestApplySeedEmbeddedAndFile(t *testing.T) {
	t.Parallel()
	settings := baseSettings(t)
	ctx := context.Background()

	ds, err := OpenStore(ctx, settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })

	data, err := ApplySeed(ctx, ds, "")
	require.NoError(t, err)
	require.NotEmpty(t, data.Plants)

	path := filepath.Join(t.TempDir(), "pepper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`plants:
  - name: Pepper
    diseases:
      - name: Bacterial Spot
        info: Xanthomonas
        treatment: Copper sprays
`), 0o600))
	_, err = ApplySeed(ctx, ds, path)
	require.NoError(t, err)

	plants, err := ds.AllPlants(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tomato", "pepper"}, plants)

	_, err = ApplySeed(ctx, ds, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryFileIO))
}
