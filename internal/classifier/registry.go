package classifier

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/imageprep"
	"github.com/tphakala/plantdoc/internal/logger"
)

// Entry binds a catalogued plant to its loaded classifier.
type Entry struct {
	Plant      string
	ModelPath  string
	Labels     []string
	Classifier Classifier
	Normalizer imageprep.Normalizer
	Layout     imageprep.Layout
	Logits     bool // scores need softmax before use
}

// Registry maps normalized plant names to loaded classifiers. The map is
// written only by LoadAll and read without locking afterwards.
type Registry struct {
	catalog []conf.PlantModel
	loader  Loader
	threads int
	xnnpack bool
	log     logger.Logger
	entries map[string]*Entry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithThreads sets the per-classifier inference thread count.
func WithThreads(n int) RegistryOption {
	return func(r *Registry) { r.threads = n }
}

// WithXNNPACK enables the XNNPACK delegate on backends that support it.
func WithXNNPACK(enabled bool) RegistryOption {
	return func(r *Registry) { r.xnnpack = enabled }
}

// WithLogger overrides the registry logger.
func WithLogger(l logger.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry creates a Registry for catalog. Every catalog plant is
// known to the registry immediately; classifiers are attached by LoadAll.
func NewRegistry(catalog []conf.PlantModel, loader Loader, opts ...RegistryOption) *Registry {
	r := &Registry{
		catalog: catalog,
		loader:  loader,
		threads: 1,
		entries: make(map[string]*Entry, len(catalog)),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = GetLogger()
	}
	for _, model := range catalog {
		name := conf.NormalizeName(model.Name)
		r.entries[name] = &Entry{
			Plant:     name,
			ModelPath: model.Path,
			Labels:    append([]string(nil), model.Labels...),
			Layout:    imageprep.Layout(model.Layout),
		}
	}
	return r
}

// LoadAll loads the classifier of every catalog entry. On the first
// failure all classifiers loaded so far are closed and the error returned.
func (r *Registry) LoadAll(ctx context.Context) error {
	loaded := make(map[string]*Entry, len(r.catalog))

	fail := func(err error) error {
		for _, e := range loaded {
			if cerr := e.Classifier.Close(); cerr != nil {
				r.log.Warn("failed to close classifier after load failure",
					logger.String("plant", e.Plant),
					logger.Error(cerr))
			}
		}
		return err
	}

	for _, model := range r.catalog {
		if err := ctx.Err(); err != nil {
			return fail(errors.New(err).
				Component("classifier").
				Category(errors.CategoryCancellation).
				Build())
		}

		entry, err := r.load(ctx, model)
		if err != nil {
			return fail(err)
		}
		loaded[entry.Plant] = entry
	}

	for name, entry := range loaded {
		r.entries[name] = entry
	}
	r.log.Info("classifiers loaded", logger.Strings("plants", r.Plants()))
	return nil
}

func (r *Registry) load(ctx context.Context, model conf.PlantModel) (*Entry, error) {
	name := conf.NormalizeName(model.Name)
	start := time.Now()

	labels, err := resolveLabels(model)
	if err != nil {
		return nil, err
	}

	normalizer, err := imageprep.LookupNormalizer(model.Normalization)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryConfiguration).
			ModelContext(name, model.Path).
			Build()
	}

	c, err := r.loader.Load(ctx, model, LoadOptions{Threads: r.threads, XNNPACK: r.xnnpack})
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			ModelContext(name, model.Path).
			Timing("model-load", time.Since(start)).
			Build()
	}

	if c.OutputSize() != len(labels) {
		_ = c.Close()
		return nil, errors.Newf("label count mismatch: model outputs %d classes but %d labels are configured",
			c.OutputSize(), len(labels)).
			Component("classifier").
			Category(errors.CategoryLabelLoad).
			ModelContext(name, model.Path).
			Context("expected_labels", c.OutputSize()).
			Context("actual_labels", len(labels)).
			Build()
	}

	r.log.Debug("classifier loaded",
		logger.String("plant", name),
		logger.String("model_path", model.Path),
		logger.Int("labels", len(labels)),
		logger.Duration("duration", time.Since(start)))

	return &Entry{
		Plant:      name,
		ModelPath:  model.Path,
		Labels:     labels,
		Classifier: c,
		Normalizer: normalizer,
		Layout:     imageprep.Layout(model.Layout),
		Logits:     strings.EqualFold(model.Output, conf.OutputLogits),
	}, nil
}

// Get returns the entry for plant. The lookup is case-insensitive.
func (r *Registry) Get(plant string) (*Entry, error) {
	name := conf.NormalizeName(plant)
	entry, ok := r.entries[name]
	if !ok {
		return nil, errors.New(fmt.Errorf("%w: %q", ErrUnknownPlant, plant)).
			Component("classifier").
			Category(errors.CategoryValidation).
			Context("plant", plant).
			Build()
	}
	if entry.Classifier == nil {
		return nil, modelUnavailable(name)
	}
	return entry, nil
}

// Has reports whether plant is catalogued.
func (r *Registry) Has(plant string) bool {
	_, ok := r.entries[conf.NormalizeName(plant)]
	return ok
}

// Plants returns the catalogued plant names in sorted order.
func (r *Registry) Plants() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Loaded reports how many catalogued plants have a classifier attached.
func (r *Registry) Loaded() int {
	n := 0
	for _, e := range r.entries {
		if e.Classifier != nil {
			n++
		}
	}
	return n
}

// Close releases every loaded classifier.
func (r *Registry) Close() error {
	var errs []error
	for _, e := range r.entries {
		if e.Classifier == nil {
			continue
		}
		if err := e.Classifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close classifier for %s: %w", e.Plant, err))
		}
		e.Classifier = nil
	}
	return errors.Join(errs...)
}

func modelUnavailable(plant string) error {
	return errors.New(fmt.Errorf("%w %q", ErrModelUnavailable, plant)).
		Component("classifier").
		Category(errors.CategoryModelUnavailable).
		Code(CodeModelUnavailable).
		Priority(errors.PriorityHigh).
		Context("plant", plant).
		Build()
}
