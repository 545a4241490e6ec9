// Package diagnosis runs the prediction pipeline for uploaded leaf photos:
// resolve the plant's classifier, infer each image, fuse dual-image
// results and rank the labels.
package diagnosis

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/fusion"
	"github.com/tphakala/plantdoc/internal/imageprep"
	"github.com/tphakala/plantdoc/internal/logger"
	"github.com/tphakala/plantdoc/internal/observability/metrics"
)

// ErrImageCount is returned when a request carries no images or more than two.
var ErrImageCount = errors.NewStd("one or two images are required")

// Registry resolves the classifier entry of a plant.
type Registry interface {
	Get(plant string) (*classifier.Entry, error)
}

// MetricsRecorder receives pipeline timings. A nil recorder is allowed.
type MetricsRecorder interface {
	RecordPrediction(plant, mode string, durationSeconds float64, err error)
	RecordCacheLookup(hit bool)
}

// Result is the outcome of one diagnosis.
type Result struct {
	Plant string
	Mode  string
	// Scores is the full normalized vector in label order.
	Scores fusion.Vector
	// Predictions holds the top ranked labels.
	Predictions []fusion.Prediction
	Cached      bool
}

// Service runs diagnoses. It is safe for concurrent use.
type Service struct {
	registry Registry
	engine   *classifier.Engine
	topK     int
	cache    *cache.Cache
	uploads  *UploadStore
	metrics  MetricsRecorder
	log      logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records pipeline metrics.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithCache caches results for ttl, keyed by plant and image content.
// A non-positive ttl disables caching.
func WithCache(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cache = cache.New(ttl, 2*ttl)
		}
	}
}

// WithUploads persists every decoded upload to store.
func WithUploads(store *UploadStore) Option {
	return func(s *Service) { s.uploads = store }
}

// NewService returns a Service ranking the topK labels.
func NewService(registry Registry, engine *classifier.Engine, topK int, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		engine:   engine,
		topK:     topK,
		log:      GetLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Diagnose classifies one or two photos of a leaf of plant. The plant is
// resolved before any image work, so an unknown plant never reaches a
// classifier. Two images are inferred concurrently and fused.
func (s *Service) Diagnose(ctx context.Context, plant string, images ...[]byte) (result *Result, err error) {
	start := time.Now()
	mode := metrics.ModeSingle
	if len(images) == 2 {
		mode = metrics.ModeDual
	}

	entry, err := s.registry.Get(plant)
	if err != nil {
		return nil, err
	}

	defer func() {
		if s.metrics != nil {
			s.metrics.RecordPrediction(entry.Plant, mode, time.Since(start).Seconds(), err)
		}
	}()

	if len(images) == 0 || len(images) > 2 {
		return nil, errors.New(fmt.Errorf("%w: got %d", ErrImageCount, len(images))).
			Component("diagnosis").
			Category(errors.CategoryValidation).
			Context("plant", entry.Plant).
			Build()
	}

	key := cacheKey(entry.Plant, images)
	if cached, ok := s.lookup(key); ok {
		return cached, nil
	}

	decoded := make([]image.Image, len(images))
	formats := make([]string, len(images))
	for i, data := range images {
		img, format, err := imageprep.Decode(data)
		if err != nil {
			return nil, err
		}
		decoded[i], formats[i] = img, format
	}

	var scores fusion.Vector
	if len(decoded) == 1 {
		scores, err = s.single(ctx, entry, decoded[0])
	} else {
		scores, err = s.dual(ctx, entry, decoded[0], decoded[1])
	}
	if err != nil {
		return nil, err
	}

	predictions, err := fusion.Rank(scores, entry.Labels, s.topK)
	if err != nil {
		return nil, err
	}

	result = &Result{Plant: entry.Plant, Mode: mode, Scores: scores, Predictions: predictions}
	s.store(key, result)
	s.persist(entry.Plant, images, formats)

	s.log.Debug("diagnosis complete",
		logger.String("plant", entry.Plant),
		logger.String("mode", mode),
		logger.String("top_label", predictions[0].Label),
		logger.Float32("top_score", predictions[0].Score),
		logger.Duration("duration", time.Since(start)))
	return result, nil
}

func (s *Service) infer(ctx context.Context, entry *classifier.Entry, img image.Image) (fusion.Vector, error) {
	tensor, err := s.engine.Preprocess(entry, img)
	if err != nil {
		return nil, err
	}
	return s.engine.Infer(ctx, entry, tensor)
}

// single normalizes the scores so single and dual results share a scale.
func (s *Service) single(ctx context.Context, entry *classifier.Entry, img image.Image) (fusion.Vector, error) {
	scores, err := s.infer(ctx, entry, img)
	if err != nil {
		return nil, err
	}
	return fusion.Normalize(scores)
}

func (s *Service) dual(ctx context.Context, entry *classifier.Entry, a, b image.Image) (fusion.Vector, error) {
	var va, vb fusion.Vector
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		va, err = s.infer(gctx, entry, a)
		return err
	})
	g.Go(func() error {
		var err error
		vb, err = s.infer(gctx, entry, b)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return fusion.Fuse(va, vb)
}

func (s *Service) lookup(key string) (*Result, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(key)
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(ok)
	}
	if !ok {
		return nil, false
	}
	cached := v.(*Result)
	return &Result{
		Plant:       cached.Plant,
		Mode:        cached.Mode,
		Scores:      slices.Clone(cached.Scores),
		Predictions: slices.Clone(cached.Predictions),
		Cached:      true,
	}, true
}

func (s *Service) store(key string, result *Result) {
	if s.cache != nil {
		s.cache.SetDefault(key, result)
	}
}

// persist saves uploads for later training. Failures are logged only.
func (s *Service) persist(plant string, images [][]byte, formats []string) {
	if s.uploads == nil {
		return
	}
	for i, data := range images {
		if _, err := s.uploads.Save(plant, formats[i], data); err != nil {
			s.log.Warn("failed to persist upload",
				logger.String("plant", plant),
				logger.Error(err))
		}
	}
}

// cacheKey hashes the plant and each image with its length, so image
// boundaries are part of the key.
func cacheKey(plant string, images [][]byte) string {
	h := sha256.New()
	h.Write([]byte(conf.NormalizeName(plant)))
	var n [8]byte
	for _, data := range images {
		binary.BigEndian.PutUint64(n[:], uint64(len(data)))
		h.Write(n[:])
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
