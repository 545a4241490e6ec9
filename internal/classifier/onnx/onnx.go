//go:build !noonnx

// Package onnx loads ONNX plant classifiers through onnxruntime.
package onnx

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/imageprep"
	"github.com/tphakala/plantdoc/internal/logger"
)

// Extension is the artifact extension handled by this backend.
const Extension = ".onnx"

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment initializes the process-wide onnxruntime environment.
func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		envErr = ort.InitializeEnvironment()
	})
	return envErr
}

// Shutdown destroys the onnxruntime environment. No session may be used
// afterwards.
func Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Classifier runs an onnxruntime session with pre-allocated tensors.
// Run writes into shared buffers, so Infer serializes callers.
type Classifier struct {
	mu           sync.Mutex
	plant        string
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputShape   []int64
	outputSize   int
}

// NewLoader returns a loader for .onnx artifacts using the onnxruntime
// shared library at libraryPath, or the platform default when empty.
func NewLoader(libraryPath string) classifier.Loader {
	return classifier.LoaderFunc(func(ctx context.Context, model conf.PlantModel, opts classifier.LoadOptions) (classifier.Classifier, error) {
		return load(ctx, model, opts, libraryPath)
	})
}

func load(_ context.Context, model conf.PlantModel, opts classifier.LoadOptions, libraryPath string) (classifier.Classifier, error) {
	start := time.Now()

	if err := initEnvironment(libraryPath); err != nil {
		return nil, errors.New(fmt.Errorf("failed to initialize ONNX environment: %w", err)).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(model.Name, model.Path).
			Context("library_path", libraryPath).
			Build()
	}

	inputs, outputs, err := ort.GetInputOutputInfo(model.Path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read model signature: %w", err)).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(model.Name, model.Path).
			Build()
	}
	if len(inputs) != 1 || len(outputs) < 1 {
		return nil, initError(model, start, fmt.Sprintf("expected one input and at least one output, got %d and %d", len(inputs), len(outputs)))
	}
	if inputs[0].DataType != ort.TensorElementDataTypeFloat {
		return nil, initError(model, start, fmt.Sprintf("unsupported input type %v, float32 required", inputs[0].DataType))
	}

	inputShape := fixedShape(inputs[0].Dimensions)
	outputShape := fixedShape(outputs[0].Dimensions)

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(inputShape...))
	if err != nil {
		return nil, initError(model, start, fmt.Sprintf("failed to create input tensor: %v", err))
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		_ = inputTensor.Destroy()
		return nil, initError(model, start, fmt.Sprintf("failed to create output tensor: %v", err))
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, initError(model, start, fmt.Sprintf("failed to create session options: %v", err))
	}
	defer func() { _ = options.Destroy() }()
	if err := options.SetIntraOpNumThreads(max(1, opts.Threads)); err != nil {
		GetLogger().Warn("failed to set ONNX thread count", logger.Error(err))
	}

	session, err := ort.NewAdvancedSession(model.Path,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		_ = inputTensor.Destroy()
		_ = outputTensor.Destroy()
		return nil, initError(model, start, fmt.Sprintf("failed to create ONNX session: %v", err))
	}

	GetLogger().Info("ONNX classifier loaded",
		logger.String("plant", model.Name),
		logger.String("model_path", model.Path),
		logger.Int("threads", max(1, opts.Threads)),
		logger.Duration("duration", time.Since(start)))

	return &Classifier{
		plant:        model.Name,
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputShape:   inputShape,
		outputSize:   int(outputShape[len(outputShape)-1]),
	}, nil
}

// fixedShape replaces dynamic dimensions, reported as non-positive, with 1.
func fixedShape(shape ort.Shape) []int64 {
	out := make([]int64, len(shape))
	for i, d := range shape {
		out[i] = max(d, 1)
	}
	return out
}

func initError(model conf.PlantModel, start time.Time, msg string) error {
	return errors.Newf("%s", msg).
		Component("classifier").
		Category(errors.CategoryModelInit).
		ModelContext(model.Name, model.Path).
		Timing("model-init", time.Since(start)).
		Build()
}

// Infer copies tensor into the session input and runs the session.
func (c *Classifier) Infer(ctx context.Context, tensor imageprep.Tensor) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, fmt.Errorf("classifier for %s is closed", c.plant)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := c.inputTensor.GetData()
	if len(dst) != len(tensor.Data) {
		return nil, fmt.Errorf("input tensor holds %d values, got %d", len(dst), len(tensor.Data))
	}
	copy(dst, tensor.Data)

	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scores := make([]float32, c.outputSize)
	copy(scores, c.outputTensor.GetData())
	return scores, nil
}

// InputShape returns the model input shape, batch first.
func (c *Classifier) InputShape() []int64 { return slices.Clone(c.inputShape) }

// OutputSize returns the number of classes.
func (c *Classifier) OutputSize() int { return c.outputSize }

// Close destroys the session and its tensors.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.session != nil {
		errs = append(errs, c.session.Destroy())
		c.session = nil
	}
	if c.inputTensor != nil {
		errs = append(errs, c.inputTensor.Destroy())
		c.inputTensor = nil
	}
	if c.outputTensor != nil {
		errs = append(errs, c.outputTensor.Destroy())
		c.outputTensor = nil
	}
	return errors.Join(errs...)
}
