// Package testutil provides shared test doubles and fixtures for the
// PlantDoc packages.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/imageprep"
)

// DefaultTestTimeout is the standard timeout for async test operations.
const DefaultTestTimeout = 5 * time.Second

// FakeClassifier is an in-memory classifier returning a fixed score vector
// or one derived from the input tensor.
type FakeClassifier struct {
	Scores []float32
	Shape  []int64
	// ScoreFunc, when set, computes the scores from the tensor.
	ScoreFunc func(imageprep.Tensor) []float32
	Err       error
	// Delay blocks each Infer call, honoring context cancellation.
	Delay time.Duration

	calls  atomic.Int64
	closed atomic.Bool
}

// Infer implements classifier.Classifier.
func (f *FakeClassifier) Infer(ctx context.Context, tensor imageprep.Tensor) ([]float32, error) {
	f.calls.Add(1)
	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if f.ScoreFunc != nil {
		return f.ScoreFunc(tensor), nil
	}
	return slices.Clone(f.Scores), nil
}

// InputShape implements classifier.Classifier.
func (f *FakeClassifier) InputShape() []int64 { return f.Shape }

// OutputSize implements classifier.Classifier.
func (f *FakeClassifier) OutputSize() int { return len(f.Scores) }

// Close implements classifier.Classifier.
func (f *FakeClassifier) Close() error {
	f.closed.Store(true)
	return nil
}

// Calls returns how many times Infer was called.
func (f *FakeClassifier) Calls() int { return int(f.calls.Load()) }

// Closed reports whether Close was called.
func (f *FakeClassifier) Closed() bool { return f.closed.Load() }

// FakeLoader hands out pre-built classifiers keyed by normalized plant name.
type FakeLoader struct {
	mu          sync.Mutex
	Classifiers map[string]classifier.Classifier
	Errs        map[string]error
	loads       []string
}

// Load implements classifier.Loader.
func (l *FakeLoader) Load(_ context.Context, model conf.PlantModel, _ classifier.LoadOptions) (classifier.Classifier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	name := conf.NormalizeName(model.Name)
	l.loads = append(l.loads, name)
	if err := l.Errs[name]; err != nil {
		return nil, err
	}
	c, ok := l.Classifiers[name]
	if !ok {
		return nil, classifier.ErrUnsupportedArtifact
	}
	return c, nil
}

// Loads returns the plants loaded so far, in order.
func (l *FakeLoader) Loads() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.loads)
}

// TomatoScores returns a score vector over conf.TomatoLabels with a clear
// winner at index top.
func TomatoScores(top int) []float32 {
	scores := make([]float32, len(conf.TomatoLabels))
	for i := range scores {
		scores[i] = 0.01 * float32(i+1)
	}
	scores[top] = 0.9
	return scores
}

// TomatoModel returns a catalog entry for the tomato classifier.
func TomatoModel() conf.PlantModel {
	return conf.PlantModel{
		Name:          "tomato",
		Path:          "tomato/model.tflite",
		Labels:        slices.Clone(conf.TomatoLabels),
		Normalization: imageprep.FamilyUnit,
		Layout:        conf.LayoutNHWC,
	}
}

// LoadedRegistry builds a registry over models and loads it with the given
// classifiers.
func LoadedRegistry(t *testing.T, models []conf.PlantModel, classifiers map[string]classifier.Classifier) *classifier.Registry {
	t.Helper()
	reg := classifier.NewRegistry(models, &FakeLoader{Classifiers: classifiers})
	require.NoError(t, reg.LoadAll(context.Background()))
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

// SolidImage returns a w×h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

// PNG encodes a solid w×h image as PNG.
func PNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, SolidImage(w, h, c)))
	return buf.Bytes()
}

// JPEG encodes a solid w×h image as JPEG.
func JPEG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, jpeg.Encode(buf, SolidImage(w, h, c), nil))
	return buf.Bytes()
}
