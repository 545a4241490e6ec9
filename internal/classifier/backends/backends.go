// Package backends assembles the classifier loader with every inference
// backend compiled into the binary.
package backends

import (
	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/classifier/onnx"
	"github.com/tphakala/plantdoc/internal/classifier/tflite"
	"github.com/tphakala/plantdoc/internal/conf"
)

// NewLoader returns a loader dispatching .tflite artifacts to TensorFlow
// Lite and .onnx artifacts to onnxruntime.
func NewLoader(settings *conf.Settings) *classifier.BackendLoader {
	loader := classifier.NewBackendLoader()
	loader.Register(tflite.Extension, tflite.Loader)
	loader.Register(onnx.Extension, onnx.NewLoader(settings.Models.ONNXLib))
	return loader
}

// NewRegistry builds a registry over the settings catalog using every
// compiled-in backend.
func NewRegistry(settings *conf.Settings, opts ...classifier.RegistryOption) *classifier.Registry {
	opts = append([]classifier.RegistryOption{
		classifier.WithThreads(settings.InferenceThreads()),
		classifier.WithXNNPACK(settings.Models.XNNPACK),
	}, opts...)
	return classifier.NewRegistry(settings.Catalog(), NewLoader(settings), opts...)
}

// Shutdown releases process-wide backend state.
func Shutdown() error {
	return onnx.Shutdown()
}
