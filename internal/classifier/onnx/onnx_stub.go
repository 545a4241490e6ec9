//go:build noonnx

// Package onnx is disabled in this build.
package onnx

import (
	"context"

	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
)

// Extension is the artifact extension handled by this backend.
const Extension = ".onnx"

// NewLoader returns a loader that rejects every ONNX artifact.
func NewLoader(string) classifier.Loader {
	return classifier.LoaderFunc(func(_ context.Context, model conf.PlantModel, _ classifier.LoadOptions) (classifier.Classifier, error) {
		return nil, errors.Newf("ONNX support not compiled in (built with noonnx)").
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(model.Name, model.Path).
			Build()
	})
}

// Shutdown is a no-op without ONNX support.
func Shutdown() error { return nil }
