package classifier

import (
	"context"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/fusion"
	"github.com/tphakala/plantdoc/internal/imageprep"
	"github.com/tphakala/plantdoc/internal/logger"
)

// MetricsRecorder receives inference timings. A nil recorder is allowed.
type MetricsRecorder interface {
	RecordInference(plant string, durationSeconds float64, err error)
}

// Engine preprocesses images and runs them through a registry entry.
type Engine struct {
	dims    imageprep.Dimensions
	metrics MetricsRecorder
	log     logger.Logger
}

// NewEngine returns an Engine producing tensors of size dims.
func NewEngine(dims imageprep.Dimensions, metrics MetricsRecorder) *Engine {
	return &Engine{dims: dims, metrics: metrics, log: GetLogger()}
}

// Dimensions returns the deployment input size.
func (e *Engine) Dimensions() imageprep.Dimensions {
	return e.dims
}

// Preprocess turns img into the input tensor expected by entry.
func (e *Engine) Preprocess(entry *Entry, img image.Image) (imageprep.Tensor, error) {
	if entry == nil || entry.Normalizer == nil {
		return imageprep.Tensor{}, modelUnavailable(entryPlant(entry))
	}
	return imageprep.Preprocess(img, e.dims, entry.Normalizer, entry.Layout)
}

// Infer runs one tensor through the entry's classifier and returns a score
// per label.
func (e *Engine) Infer(ctx context.Context, entry *Entry, tensor imageprep.Tensor) (fusion.Vector, error) {
	if entry == nil || entry.Classifier == nil {
		return nil, modelUnavailable(entryPlant(entry))
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryCancellation).
			Context("plant", entry.Plant).
			Build()
	}

	if want := entry.Classifier.InputShape(); len(want) > 0 && !shapeMatches(want, tensor.Shape) {
		return nil, inferenceFailure(entry,
			fmt.Errorf("%w: tensor shape %v does not match model input %v", ErrInference, tensor.Shape, want))
	}

	start := time.Now()
	scores, err := entry.Classifier.Infer(ctx, tensor)
	elapsed := time.Since(start)

	if err == nil && len(scores) != len(entry.Labels) {
		err = fmt.Errorf("%w: model returned %d scores for %d labels", ErrInference, len(scores), len(entry.Labels))
	}
	if err == nil && entry.Logits {
		scores = softmax(scores)
	}
	if err == nil {
		err = checkScores(scores)
	}
	if e.metrics != nil {
		e.metrics.RecordInference(entry.Plant, elapsed.Seconds(), err)
	}
	if err != nil {
		return nil, inferenceFailure(entry, err)
	}

	e.log.Trace("inference complete",
		logger.String("plant", entry.Plant),
		logger.Duration("duration", elapsed))
	return fusion.Vector(scores), nil
}

// shapeMatches compares shapes treating non-positive model dimensions as
// dynamic.
func shapeMatches(model, tensor []int64) bool {
	if len(model) != len(tensor) {
		return false
	}
	for i, d := range model {
		if d > 0 && d != tensor[i] {
			return false
		}
	}
	return true
}

// checkScores rejects outputs that are not usable as probabilities.
func checkScores(scores []float32) error {
	for i, s := range scores {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return fmt.Errorf("%w: invalid score %v at index %d", ErrInference, s, i)
		}
	}
	return nil
}

// softmax converts logits to probabilities. NaN input stays NaN so that
// checkScores rejects it.
func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return logits
	}
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		maxLogit = math.Max(maxLogit, float64(l))
	}
	exps := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		exps[i] = math.Exp(float64(l) - maxLogit)
		sum += exps[i]
	}
	out := make([]float32, len(logits))
	for i, x := range exps {
		out[i] = float32(x / sum)
	}
	return out
}

func inferenceFailure(entry *Entry, err error) error {
	// Cancellation during inference keeps its own category.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.New(err).
			Component("classifier").
			Category(errors.CategoryCancellation).
			Context("plant", entry.Plant).
			Build()
	}
	if !errors.Is(err, ErrInference) {
		err = fmt.Errorf("%w: %w", ErrInference, err)
	}
	return errors.New(err).
		Component("classifier").
		Category(errors.CategoryProcessing).
		ModelContext(entry.Plant, entry.ModelPath).
		Build()
}

func entryPlant(entry *Entry) string {
	if entry == nil {
		return ""
	}
	return entry.Plant
}
