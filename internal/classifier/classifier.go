// Package classifier routes prediction requests to the per-plant image
// classifier and runs a single preprocessed tensor through it.
package classifier

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/imageprep"
)

// CodeModelUnavailable is the numeric error code returned to clients when a
// catalogued plant has no usable classifier.
const CodeModelUnavailable = 950

var (
	// ErrUnknownPlant is returned for a plant that is not in the catalog.
	ErrUnknownPlant = errors.NewStd("unknown plant")
	// ErrModelUnavailable is returned when a plant is catalogued but its
	// classifier is not loaded.
	ErrModelUnavailable = errors.NewStd("unable to access model for plant")
	// ErrInference is returned when a classifier rejects a tensor or
	// produces unusable output.
	ErrInference = errors.NewStd("inference failed")
	// ErrUnsupportedArtifact is returned for artifact formats no backend
	// can load.
	ErrUnsupportedArtifact = errors.NewStd("unsupported model artifact")
)

// Classifier is a loaded image classification model. Implementations must
// be safe for concurrent use.
type Classifier interface {
	// Infer runs one batch-of-one tensor and returns the raw score vector.
	Infer(ctx context.Context, tensor imageprep.Tensor) ([]float32, error)
	// InputShape returns the expected input tensor shape, batch first.
	InputShape() []int64
	// OutputSize returns the length of the score vector.
	OutputSize() int
	Close() error
}

// LoadOptions tune backend construction.
type LoadOptions struct {
	Threads int
	XNNPACK bool
}

// Loader creates a Classifier for a catalog entry.
type Loader interface {
	Load(ctx context.Context, model conf.PlantModel, opts LoadOptions) (Classifier, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, model conf.PlantModel, opts LoadOptions) (Classifier, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, model conf.PlantModel, opts LoadOptions) (Classifier, error) {
	return f(ctx, model, opts)
}

// BackendLoader dispatches to a Loader by artifact file extension.
type BackendLoader struct {
	mu       sync.RWMutex
	backends map[string]Loader
}

// NewBackendLoader returns an empty BackendLoader.
func NewBackendLoader() *BackendLoader {
	return &BackendLoader{backends: make(map[string]Loader)}
}

// Register binds a file extension such as ".tflite" to a Loader.
func (b *BackendLoader) Register(ext string, l Loader) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.backends[strings.ToLower(ext)] = l
}

// Extensions returns the registered artifact extensions.
func (b *BackendLoader) Extensions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	exts := make([]string, 0, len(b.backends))
	for ext := range b.backends {
		exts = append(exts, ext)
	}
	return exts
}

// Load picks the backend registered for the artifact extension.
func (b *BackendLoader) Load(ctx context.Context, model conf.PlantModel, opts LoadOptions) (Classifier, error) {
	ext := strings.ToLower(filepath.Ext(model.Path))

	b.mu.RLock()
	l, ok := b.backends[ext]
	b.mu.RUnlock()

	if !ok {
		return nil, errors.New(ErrUnsupportedArtifact).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(model.Name, model.Path).
			Context("extension", ext).
			Build()
	}
	return l.Load(ctx, model, opts)
}
