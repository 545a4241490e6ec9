package app

import (
	"context"

	"github.com/tphakala/plantdoc/internal/datastore"
	"github.com/tphakala/plantdoc/internal/httpclient"
	"github.com/tphakala/plantdoc/internal/logger"
)

// ApplySeed loads the seed at source and applies it to ds. source is a
// file path, an http(s) URL, or empty for the embedded reference data.
func ApplySeed(ctx context.Context, ds datastore.Interface, source string) (*datastore.SeedData, error) {
	client := httpclient.New(nil)
	defer client.Close()

	data, err := datastore.LoadSeed(ctx, source, client)
	if err != nil {
		return nil, err
	}
	if err := ds.Seed(ctx, data); err != nil {
		return nil, err
	}

	name := source
	if name == "" {
		name = "embedded"
	}
	GetLogger().Info("reference data seeded",
		logger.String("source", name),
		logger.Int("plants", len(data.Plants)),
		logger.Int("news", len(data.News)))
	return data, nil
}
