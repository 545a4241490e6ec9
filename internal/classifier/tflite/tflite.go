// Package tflite loads TensorFlow Lite plant classifiers.
package tflite

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"
	"github.com/tphakala/go-tflite/delegates/xnnpack"

	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/imageprep"
	"github.com/tphakala/plantdoc/internal/logger"
)

// Extension is the artifact extension handled by this backend.
const Extension = ".tflite"

// Classifier runs a TFLite interpreter. The interpreter is not safe for
// concurrent use, so Infer serializes callers.
type Classifier struct {
	mu          sync.Mutex
	plant       string
	model       *tflite.Model
	interpreter *tflite.Interpreter
	inputShape  []int64
	outputSize  int
}

// Loader implements classifier.Loader for .tflite artifacts.
var Loader = classifier.LoaderFunc(Load)

// Load reads the model at model.Path and allocates an interpreter for it.
func Load(_ context.Context, model conf.PlantModel, opts classifier.LoadOptions) (classifier.Classifier, error) {
	start := time.Now()
	log := GetLogger()

	modelData, err := os.ReadFile(model.Path)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(model.Name, model.Path).
			Timing("model-load", time.Since(start)).
			Build()
	}

	tfModel := tflite.NewModel(modelData)
	if tfModel == nil {
		return nil, errors.New(fmt.Errorf("cannot load TensorFlow Lite model")).
			Component("classifier").
			Category(errors.CategoryModelInit).
			ModelContext(model.Name, model.Path).
			Context("model_size_mb", len(modelData)/1024/1024).
			Timing("model-init", time.Since(start)).
			Build()
	}

	threads := max(1, opts.Threads)
	options := tflite.NewInterpreterOptions()
	defer options.Delete()

	if opts.XNNPACK {
		delegate := xnnpack.New(xnnpack.DelegateOptions{NumThreads: int32(max(1, threads-1))}) //nolint:gosec // G115: thread count bounded by CPU count
		if delegate == nil {
			log.Warn("failed to create XNNPACK delegate, falling back to default CPU",
				logger.String("plant", model.Name))
			options.SetNumThread(threads)
		} else {
			options.AddDelegate(delegate)
			options.SetNumThread(1)
		}
	} else {
		options.SetNumThread(threads)
	}

	options.SetErrorReporter(func(msg string, _ any) {
		GetLogger().Error("TFLite error", logger.String("plant", model.Name), logger.String("message", msg))
	}, nil)

	interpreter := tflite.NewInterpreter(tfModel, options)
	if interpreter == nil {
		tfModel.Delete()
		return nil, initError(model, start, "cannot create interpreter")
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		tfModel.Delete()
		return nil, initError(model, start, "tensor allocation failed")
	}

	input := interpreter.GetInputTensor(0)
	output := interpreter.GetOutputTensor(0)
	if input == nil || output == nil {
		interpreter.Delete()
		tfModel.Delete()
		return nil, initError(model, start, "model has no input or output tensor")
	}
	if input.Type() != tflite.Float32 {
		interpreter.Delete()
		tfModel.Delete()
		return nil, initError(model, start, fmt.Sprintf("unsupported input tensor type %v, float32 required", input.Type()))
	}

	shape := make([]int64, input.NumDims())
	for i := range shape {
		shape[i] = int64(input.Dim(i))
	}

	// TFLite keeps its own copy of the weights.
	runtime.GC()

	c := &Classifier{
		plant:       model.Name,
		model:       tfModel,
		interpreter: interpreter,
		inputShape:  shape,
		outputSize:  output.Dim(output.NumDims() - 1),
	}

	log.Info("TFLite classifier loaded",
		logger.String("plant", model.Name),
		logger.String("model_path", model.Path),
		logger.Int("threads", threads),
		logger.Bool("xnnpack", opts.XNNPACK),
		logger.Duration("duration", time.Since(start)))
	return c, nil
}

func initError(model conf.PlantModel, start time.Time, msg string) error {
	return errors.Newf("%s", msg).
		Component("classifier").
		Category(errors.CategoryModelInit).
		ModelContext(model.Name, model.Path).
		Timing("model-init", time.Since(start)).
		Build()
}

// Infer copies tensor into the interpreter input and returns the output scores.
func (c *Classifier) Infer(ctx context.Context, tensor imageprep.Tensor) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter == nil {
		return nil, fmt.Errorf("classifier for %s is closed", c.plant)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	dst := input.Float32s()
	if len(dst) != len(tensor.Data) {
		return nil, fmt.Errorf("input tensor holds %d values, got %d", len(dst), len(tensor.Data))
	}
	copy(dst, tensor.Data)

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tensor invoke failed: %v", status)
	}

	output := c.interpreter.GetOutputTensor(0)
	scores := make([]float32, c.outputSize)
	copy(scores, output.Float32s())
	return scores, nil
}

// InputShape returns the model input shape, batch first.
func (c *Classifier) InputShape() []int64 { return slices.Clone(c.inputShape) }

// OutputSize returns the number of classes.
func (c *Classifier) OutputSize() int { return c.outputSize }

// Close releases the interpreter and model.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}
