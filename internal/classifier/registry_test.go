package classifier_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/testutil"
)

func potatoModel() conf.PlantModel {
	return conf.PlantModel{
		Name:          "Potato",
		Path:          "potato/model.onnx",
		Labels:        []string{"potato_early_blight", "potato_late_blight", "potato_healthy"},
		Normalization: "imagenet",
		Layout:        conf.LayoutNCHW,
	}
}

func TestRegistryLoadAllAndGet(t *testing.T) {
	t.Parallel()

	tomato := &testutil.FakeClassifier{Scores: testutil.TomatoScores(1)}
	potato := &testutil.FakeClassifier{Scores: []float32{0.2, 0.3, 0.5}}
	reg := testutil.LoadedRegistry(t,
		[]conf.PlantModel{testutil.TomatoModel(), potatoModel()},
		map[string]classifier.Classifier{"tomato": tomato, "potato": potato})

	assert.Equal(t, []string{"potato", "tomato"}, reg.Plants())
	assert.Equal(t, 2, reg.Loaded())

	for _, name := range []string{"tomato", "TOMATO", "  Tomato "} {
		entry, err := reg.Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, "tomato", entry.Plant)
		assert.Same(t, tomato, entry.Classifier)
		assert.Len(t, entry.Labels, entry.Classifier.OutputSize())
	}

	entry, err := reg.Get("potato")
	require.NoError(t, err)
	assert.Equal(t, "imagenet", entry.Normalizer.Name())
	assert.EqualValues(t, conf.LayoutNCHW, entry.Layout)
	assert.True(t, reg.Has("POTATO"))
}

func TestRegistryUnknownPlantIsClientError(t *testing.T) {
	t.Parallel()

	reg := testutil.LoadedRegistry(t,
		[]conf.PlantModel{testutil.TomatoModel()},
		map[string]classifier.Classifier{"tomato": &testutil.FakeClassifier{Scores: testutil.TomatoScores(0)}})

	_, err := reg.Get("cucumber")
	require.Error(t, err)
	assert.ErrorIs(t, err, classifier.ErrUnknownPlant)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
	assert.False(t, reg.Has("cucumber"))
}

func TestRegistryGetBeforeLoadIsModelUnavailable(t *testing.T) {
	t.Parallel()

	reg := classifier.NewRegistry([]conf.PlantModel{testutil.TomatoModel()}, &testutil.FakeLoader{})

	assert.True(t, reg.Has("tomato"))
	_, err := reg.Get("tomato")
	require.Error(t, err)
	assert.ErrorIs(t, err, classifier.ErrModelUnavailable)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelUnavailable))
	assert.Equal(t, classifier.CodeModelUnavailable, errors.CodeOf(err))
}

func TestRegistryLabelCountMismatchFailsFast(t *testing.T) {
	t.Parallel()

	tomato := &testutil.FakeClassifier{Scores: testutil.TomatoScores(0)}
	// Three labels against a two-class model.
	potato := &testutil.FakeClassifier{Scores: []float32{0.5, 0.5}}
	loader := &testutil.FakeLoader{Classifiers: map[string]classifier.Classifier{"tomato": tomato, "potato": potato}}

	reg := classifier.NewRegistry([]conf.PlantModel{testutil.TomatoModel(), potatoModel()}, loader)
	err := reg.LoadAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryLabelLoad))
	assert.Contains(t, err.Error(), "label count mismatch")

	assert.True(t, tomato.Closed(), "already loaded classifiers are released")
	assert.True(t, potato.Closed(), "mismatched classifier is released")
	assert.Equal(t, 0, reg.Loaded())
}

func TestRegistryLoaderErrorStopsLoading(t *testing.T) {
	t.Parallel()

	tomato := &testutil.FakeClassifier{Scores: testutil.TomatoScores(0)}
	loader := &testutil.FakeLoader{
		Classifiers: map[string]classifier.Classifier{"tomato": tomato},
		Errs:        map[string]error{"potato": errors.NewStd("corrupt artifact")},
	}
	third := conf.PlantModel{Name: "pepper", Path: "pepper.tflite", Labels: []string{"a"}}

	reg := classifier.NewRegistry([]conf.PlantModel{testutil.TomatoModel(), potatoModel(), third}, loader)
	err := reg.LoadAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
	assert.Equal(t, []string{"tomato", "potato"}, loader.Loads())
	assert.True(t, tomato.Closed())
}

func TestRegistryUnknownNormalization(t *testing.T) {
	t.Parallel()

	model := testutil.TomatoModel()
	model.Normalization = "sepia"
	loader := &testutil.FakeLoader{Classifiers: map[string]classifier.Classifier{
		"tomato": &testutil.FakeClassifier{Scores: testutil.TomatoScores(0)},
	}}

	err := classifier.NewRegistry([]conf.PlantModel{model}, loader).LoadAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Empty(t, loader.Loads())
}

func TestRegistryLabelFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("first\n\n second \nthird\n"), 0o600))

	model := conf.PlantModel{Name: "pepper", Path: "pepper.tflite", LabelFile: path, Normalization: "unit"}
	reg := testutil.LoadedRegistry(t, []conf.PlantModel{model}, map[string]classifier.Classifier{
		"pepper": &testutil.FakeClassifier{Scores: []float32{0.1, 0.2, 0.7}},
	})

	entry, err := reg.Get("pepper")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, entry.Labels)

	missing := conf.PlantModel{Name: "bean", Path: "bean.tflite", LabelFile: filepath.Join(t.TempDir(), "nope.txt")}
	err = classifier.NewRegistry([]conf.PlantModel{missing}, &testutil.FakeLoader{}).LoadAll(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryLabelLoad))
}

func TestRegistryClose(t *testing.T) {
	t.Parallel()

	tomato := &testutil.FakeClassifier{Scores: testutil.TomatoScores(0)}
	reg := classifier.NewRegistry([]conf.PlantModel{testutil.TomatoModel()},
		&testutil.FakeLoader{Classifiers: map[string]classifier.Classifier{"tomato": tomato}})
	require.NoError(t, reg.LoadAll(context.Background()))

	require.NoError(t, reg.Close())
	assert.True(t, tomato.Closed())

	_, err := reg.Get("tomato")
	assert.ErrorIs(t, err, classifier.ErrModelUnavailable)
}

func TestBackendLoaderDispatchesByExtension(t *testing.T) {
	t.Parallel()

	var got string
	bl := classifier.NewBackendLoader()
	bl.Register(".TFLite", classifier.LoaderFunc(func(_ context.Context, m conf.PlantModel, _ classifier.LoadOptions) (classifier.Classifier, error) {
		got = m.Path
		return &testutil.FakeClassifier{}, nil
	}))

	_, err := bl.Load(context.Background(), conf.PlantModel{Path: "models/x.tflite"}, classifier.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "models/x.tflite", got)

	_, err = bl.Load(context.Background(), conf.PlantModel{Path: "models/x.pt"}, classifier.LoadOptions{})
	require.ErrorIs(t, err, classifier.ErrUnsupportedArtifact)
	assert.True(t, errors.IsCategory(err, errors.CategoryModelLoad))
}
