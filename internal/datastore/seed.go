package datastore

import (
	"context"
	_ "embed"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/httpclient"
	"github.com/tphakala/plantdoc/internal/logger"
)

//go:embed seeds/default.yaml
var defaultSeed []byte

// SeedData is the reference data format accepted by Seed.
type SeedData struct {
	Plants []SeedPlant `yaml:"plants"`
	News   []SeedNews  `yaml:"news"`
}

// SeedPlant is a plant with its diseases.
type SeedPlant struct {
	Name     string        `yaml:"name"`
	Diseases []SeedDisease `yaml:"diseases"`
}

// SeedDisease is one disease entry. Pictures are URLs.
type SeedDisease struct {
	Name      string   `yaml:"name"`
	Info      string   `yaml:"info"`
	Treatment string   `yaml:"treatment"`
	Pictures  []string `yaml:"pictures"`
}

// SeedNews is a news item created when no item with the same title exists.
type SeedNews struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// DefaultSeed returns the reference data bundled with the binary.
func DefaultSeed() (*SeedData, error) {
	return ParseSeed(defaultSeed)
}

// ParseSeed decodes YAML seed data.
func ParseSeed(data []byte) (*SeedData, error) {
	var seed SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("operation", "parse_seed").
			Build()
	}
	for i := range seed.Plants {
		if strings.TrimSpace(seed.Plants[i].Name) == "" {
			return nil, validationError("seed plant without a name", "plants.name")
		}
		for j := range seed.Plants[i].Diseases {
			if strings.TrimSpace(seed.Plants[i].Diseases[j].Name) == "" {
				return nil, validationError("seed disease without a name", "plants.diseases.name")
			}
		}
	}
	return &seed, nil
}

// LoadSeed reads seed data from a file path or an http(s) URL. An empty
// source returns the bundled default. A nil client creates one.
func LoadSeed(ctx context.Context, source string, client *httpclient.Client) (*SeedData, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return DefaultSeed()
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if client == nil {
			client = httpclient.New(nil)
			defer client.Close()
		}
		data, err := client.Fetch(ctx, source)
		if err != nil {
			return nil, err
		}
		return ParseSeed(data)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Context("operation", "load_seed").
			Build()
	}
	return ParseSeed(data)
}

// Seed upserts plants, diseases and pictures in one transaction. Names are
// stored normalized, so seeding the same data twice changes nothing.
func (ds *DataStore) Seed(ctx context.Context, data *SeedData) (err error) {
	start := time.Now()
	defer func() { ds.observe("seed", start, -1, err) }()

	if data == nil {
		return validationError("seed data is required", "seed")
	}

	db, err := ds.session(ctx)
	if err != nil {
		return err
	}

	var diseases, pictures int
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, sp := range data.Plants {
			plant := Plant{Name: conf.NormalizeName(sp.Name)}
			if err := tx.Where(Plant{Name: plant.Name}).FirstOrCreate(&plant).Error; err != nil {
				return err
			}

			for _, sd := range sp.Diseases {
				disease := Disease{PlantID: plant.ID, Name: conf.NormalizeName(sd.Name)}
				err := tx.Where(Disease{PlantID: plant.ID, Name: disease.Name}).
					Assign(Disease{Info: strings.TrimSpace(sd.Info), Treatment: strings.TrimSpace(sd.Treatment)}).
					FirstOrCreate(&disease).Error
				if err != nil {
					return err
				}
				diseases++

				for _, url := range sd.Pictures {
					url = strings.TrimSpace(url)
					if url == "" {
						continue
					}
					picture := Picture{DiseaseID: disease.ID, URL: url}
					if err := tx.Where(Picture{DiseaseID: disease.ID, URL: url}).FirstOrCreate(&picture).Error; err != nil {
						return err
					}
					pictures++
				}
			}
		}

		for _, sn := range data.News {
			news := News{Title: strings.TrimSpace(sn.Title), Body: strings.TrimSpace(sn.Body)}
			if news.Title == "" || news.Body == "" {
				continue
			}
			if err := tx.Where(News{Title: news.Title}).FirstOrCreate(&news).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return dbError(err, "seed")
	}

	ds.log.Info("reference data seeded",
		logger.Int("plants", len(data.Plants)),
		logger.Int("diseases", diseases),
		logger.Int("pictures", pictures),
		logger.Duration("duration", time.Since(start)))
	return nil
}
