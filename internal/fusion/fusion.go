// Package fusion merges the probability vectors produced for two photos of
// the same leaf and ranks the result against the classifier labels.
package fusion

import (
	"fmt"
	"math"
	"slices"

	"github.com/tphakala/plantdoc/internal/errors"
)

// Vector is a probability vector, one score per label in classifier order.
type Vector []float32

// Prediction is a label paired with its score.
type Prediction struct {
	Label string
	Score float32
}

var (
	// ErrLengthMismatch is returned when vectors or labels differ in length.
	ErrLengthMismatch = errors.NewStd("length mismatch")
	// ErrInvalidScore is returned for negative, NaN or infinite scores.
	ErrInvalidScore = errors.NewStd("invalid score")
	// ErrDegenerate is returned when scores sum to zero and cannot be normalized.
	ErrDegenerate = errors.NewStd("scores sum to zero")
)

func invalidInput(err error) error {
	return errors.New(err).
		Component("fusion").
		Category(errors.CategoryValidation).
		Build()
}

func degenerate(err error) error {
	return errors.New(err).
		Component("fusion").
		Category(errors.CategoryDegenerate).
		Build()
}

// Fuse takes the element-wise maximum of a and b and renormalizes it to sum
// to 1. A label that either photo scores highly therefore ranks highly.
// Neither input is modified.
func Fuse(a, b Vector) (Vector, error) {
	if len(a) != len(b) {
		return nil, invalidInput(fmt.Errorf("%w: cannot fuse vectors of length %d and %d", ErrLengthMismatch, len(a), len(b)))
	}

	merged := make(Vector, len(a))
	for i := range a {
		if err := checkScore(a[i], i); err != nil {
			return nil, err
		}
		if err := checkScore(b[i], i); err != nil {
			return nil, err
		}
		merged[i] = max(a[i], b[i])
	}

	return normalizeInPlace(merged)
}

// Normalize returns a copy of v scaled to sum to 1.
func Normalize(v Vector) (Vector, error) {
	out := slices.Clone(v)
	for i, s := range out {
		if err := checkScore(s, i); err != nil {
			return nil, err
		}
	}
	return normalizeInPlace(out)
}

func normalizeInPlace(v Vector) (Vector, error) {
	var sum float64
	for _, s := range v {
		sum += float64(s)
	}
	if sum == 0 {
		return nil, degenerate(fmt.Errorf("%w: cannot normalize %d scores", ErrDegenerate, len(v)))
	}

	for i := range v {
		v[i] = float32(float64(v[i]) / sum)
	}
	return v, nil
}

func checkScore(s float32, index int) error {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return invalidInput(fmt.Errorf("%w: %v at index %d", ErrInvalidScore, s, index))
	}
	return nil
}

// Rank pairs scores with labels and sorts them by descending score. Ties
// keep label order. The first topK entries are returned; topK <= 0 or a
// topK larger than the vector returns every entry.
func Rank(v Vector, labels []string, topK int) ([]Prediction, error) {
	if len(v) != len(labels) {
		return nil, invalidInput(fmt.Errorf("%w: %d scores for %d labels", ErrLengthMismatch, len(v), len(labels)))
	}

	results := make([]Prediction, len(v))
	for i, label := range labels {
		results[i] = Prediction{Label: label, Score: v[i]}
	}

	slices.SortStableFunc(results, func(a, b Prediction) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}
