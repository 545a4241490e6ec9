// Package app assembles the PlantDoc runtime from settings: logging,
// metrics, the data store, the classifier registry and the diagnosis
// service.
package app

import (
	"context"
	"fmt"

	"github.com/tphakala/plantdoc/internal/buildinfo"
	"github.com/tphakala/plantdoc/internal/classifier"
	"github.com/tphakala/plantdoc/internal/classifier/backends"
	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/datastore"
	"github.com/tphakala/plantdoc/internal/diagnosis"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/imageprep"
	"github.com/tphakala/plantdoc/internal/logger"
	"github.com/tphakala/plantdoc/internal/observability"
)

// SetupLogging installs the global logger described by settings and
// returns its closer. Debug mode forces the debug level.
func SetupLogging(settings *conf.Settings) (func() error, error) {
	cfg := settings.Logging.LoggerConfig()
	if settings.Debug {
		cfg.DefaultLevel = "debug"
	}

	cl, err := logger.NewCentralLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(cl)
	return cl.Close, nil
}

// OpenStore opens the configured data store and creates its schema.
func OpenStore(ctx context.Context, settings *conf.Settings, m *observability.Metrics) (datastore.Interface, error) {
	var opts []datastore.Option
	if m != nil {
		opts = append(opts, datastore.WithMetrics(m.Datastore))
	}

	ds, err := datastore.New(&settings.Database, opts...)
	if err != nil {
		return nil, err
	}
	if err := ds.Open(); err != nil {
		return nil, err
	}
	if err := ds.CreateSchema(ctx); err != nil {
		_ = ds.Close()
		return nil, err
	}
	return ds, nil
}

// LoadModels builds the registry over the settings catalog and loads every
// classifier. The outcome is recorded in m when set.
func LoadModels(ctx context.Context, settings *conf.Settings, m *observability.Metrics) (*classifier.Registry, error) {
	reg := backends.NewRegistry(settings)
	err := reg.LoadAll(ctx)
	if m != nil {
		m.Classifier.RecordModelLoad(reg.Loaded(), err)
	}
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// NewDiagnosis creates the diagnosis service over reg. The returned upload
// store is nil unless uploads are enabled; the caller closes it.
func NewDiagnosis(settings *conf.Settings, reg diagnosis.Registry, m *observability.Metrics) (*diagnosis.Service, *diagnosis.UploadStore, error) {
	dims := imageprep.Dimensions{Width: settings.Image.Width, Height: settings.Image.Height}

	var engineMetrics classifier.MetricsRecorder
	var opts []diagnosis.Option
	if m != nil {
		engineMetrics = m.Classifier
		opts = append(opts, diagnosis.WithMetrics(m.Classifier))
	}
	if settings.Prediction.CacheTTL > 0 {
		opts = append(opts, diagnosis.WithCache(settings.Prediction.CacheTTL))
	}

	var uploads *diagnosis.UploadStore
	if settings.Uploads.Enabled {
		var err error
		uploads, err = diagnosis.NewUploadStore(settings.Uploads.Path,
			diagnosis.WithMinFreeSpace(uint64(settings.Uploads.MinFreeMB)<<20))
		if err != nil {
			return nil, nil, errors.New(err).
				Component("app").
				Category(errors.CategoryFileIO).
				Context("path", settings.Uploads.Path).
				Build()
		}
		opts = append(opts, diagnosis.WithUploads(uploads))
	}

	engine := classifier.NewEngine(dims, engineMetrics)
	return diagnosis.NewService(reg, engine, settings.Prediction.TopK, opts...), uploads, nil
}

// Runtime holds the components of a running server.
type Runtime struct {
	Settings  *conf.Settings
	BuildInfo *buildinfo.Context
	Metrics   *observability.Metrics
	Store     datastore.Interface
	Registry  *classifier.Registry
	Diagnosis *diagnosis.Service

	uploads *diagnosis.UploadStore
}

// NewRuntime opens the store, loads the models and creates the diagnosis
// service. Components opened before a failure are closed.
func NewRuntime(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) (*Runtime, error) {
	log := GetLogger()

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Settings: settings, BuildInfo: info, Metrics: m}

	if rt.Store, err = OpenStore(ctx, settings, m); err != nil {
		return nil, err
	}
	if rt.Registry, err = LoadModels(ctx, settings, m); err != nil {
		_ = rt.Close()
		return nil, err
	}
	if rt.Diagnosis, rt.uploads, err = NewDiagnosis(settings, rt.Registry, m); err != nil {
		_ = rt.Close()
		return nil, err
	}

	log.Info("runtime ready",
		logger.String("version", info.Version()),
		logger.String("database", settings.Database.Type),
		logger.Strings("plants", rt.Registry.Plants()),
		logger.Bool("uploads", rt.uploads != nil))
	return rt, nil
}

// Close releases every component in reverse order of creation.
func (r *Runtime) Close() error {
	var errs []error
	if r.uploads != nil {
		errs = append(errs, r.uploads.Close())
	}
	if r.Registry != nil {
		errs = append(errs, r.Registry.Close())
		errs = append(errs, backends.Shutdown())
	}
	if r.Store != nil {
		errs = append(errs, r.Store.Close())
	}
	return errors.Join(errs...)
}
