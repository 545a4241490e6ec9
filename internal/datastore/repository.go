package datastore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/plantdoc/internal/conf"
	"github.com/tphakala/plantdoc/internal/errors"
	"github.com/tphakala/plantdoc/internal/logger"
)

// session returns a fresh GORM session bound to ctx.
func (ds *DataStore) session(ctx context.Context) (*gorm.DB, error) {
	if ds.DB == nil {
		return nil, errors.New(ErrNotConnected).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return ds.DB.WithContext(ctx), nil
}

func (ds *DataStore) observe(operation string, start time.Time, size int, err error) {
	if ds.metrics != nil {
		ds.metrics.RecordOperation(operation, time.Since(start).Seconds(), size, err)
	}
}

// Ping checks that the database is reachable.
func (ds *DataStore) Ping(ctx context.Context) error {
	db, err := ds.session(ctx)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return dbError(err, "ping")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dbError(err, "ping")
	}
	return nil
}

// CreateSchema creates or updates the tables. It is safe to run repeatedly.
func (ds *DataStore) CreateSchema(ctx context.Context) error {
	start := time.Now()
	db, err := ds.session(ctx)
	if err != nil {
		return err
	}
	err = db.AutoMigrate(&Plant{}, &Disease{}, &Picture{}, &News{})
	ds.observe("create_schema", start, -1, err)
	if err != nil {
		return dbError(err, "create_schema")
	}
	ds.log.Debug("schema up to date", logger.Duration("duration", time.Since(start)))
	return nil
}

// AllPlants returns every plant name ordered by id.
func (ds *DataStore) AllPlants(ctx context.Context) (names []string, err error) {
	start := time.Now()
	defer func() { ds.observe("all_plants", start, len(names), err) }()

	db, err := ds.session(ctx)
	if err != nil {
		return nil, err
	}

	var plants []Plant
	if err := db.Order("id").Find(&plants).Error; err != nil {
		return nil, dbError(err, "all_plants")
	}
	if len(plants) == 0 {
		return nil, notFound("all_plants", "plants")
	}

	names = make([]string, 0, len(plants))
	for i := range plants {
		names = append(names, projectPlant(&plants[i]))
	}
	return names, nil
}

// DiseasesForPlant lists the diseases of plant ordered by id. The plant
// name is matched case-insensitively.
func (ds *DataStore) DiseasesForPlant(ctx context.Context, plant string, fetch PictureFetch) (out []DiseaseSummary, err error) {
	start := time.Now()
	defer func() { ds.observe("diseases_for_plant", start, len(out), err) }()

	db, err := ds.session(ctx)
	if err != nil {
		return nil, err
	}

	name := conf.NormalizeName(plant)
	q := db.Model(&Disease{}).
		Joins("JOIN plant ON plant.id = disease.plant_id").
		Where("LOWER(plant.name) = ?", name).
		Order("disease.id")
	if fetch == WithPictures {
		q = q.Preload("Pictures", orderByID)
	}

	var diseases []Disease
	if err := q.Find(&diseases).Error; err != nil {
		return nil, dbError(err, "diseases_for_plant", "plant", name)
	}
	if len(diseases) == 0 {
		return nil, notFound("diseases_for_plant", "diseases for plant "+name, "plant", name)
	}

	out = make([]DiseaseSummary, 0, len(diseases))
	for i := range diseases {
		out = append(out, projectDiseaseSummary(&diseases[i]))
	}
	return out, nil
}

// DiseaseDetail returns disease of plant with its pictures. Both names are
// matched case-insensitively, so a disease of another plant is not found.
func (ds *DataStore) DiseaseDetail(ctx context.Context, disease, plant string) (detail *DiseaseDetail, err error) {
	start := time.Now()
	defer func() { ds.observe("disease_detail", start, boolSize(detail != nil), err) }()

	db, err := ds.session(ctx)
	if err != nil {
		return nil, err
	}

	diseaseName, plantName := conf.NormalizeName(disease), conf.NormalizeName(plant)
	var d Disease
	err = db.Joins("JOIN plant ON plant.id = disease.plant_id").
		Where("LOWER(plant.name) = ? AND LOWER(disease.name) = ?", plantName, diseaseName).
		Preload("Pictures", orderByID).
		Order("disease.id").
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("disease_detail", "disease "+diseaseName+" of plant "+plantName,
				"disease", diseaseName, "plant", plantName)
		}
		return nil, dbError(err, "disease_detail", "disease", diseaseName, "plant", plantName)
	}
	return projectDiseaseDetail(&d), nil
}

// DiseaseDetailByName returns the first disease named disease regardless
// of plant.
//
// Deprecated: disease names are not unique across plants. Use DiseaseDetail.
func (ds *DataStore) DiseaseDetailByName(ctx context.Context, disease string) (detail *DiseaseDetail, err error) {
	start := time.Now()
	defer func() { ds.observe("disease_detail_by_name", start, boolSize(detail != nil), err) }()

	db, err := ds.session(ctx)
	if err != nil {
		return nil, err
	}

	name := conf.NormalizeName(disease)
	var d Disease
	err = db.Where("LOWER(name) = ?", name).
		Preload("Pictures", orderByID).
		Order("id").
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("disease_detail_by_name", "disease "+name, "disease", name)
		}
		return nil, dbError(err, "disease_detail_by_name", "disease", name)
	}
	return projectDiseaseDetail(&d), nil
}

// AllNews returns every news item, newest first.
func (ds *DataStore) AllNews(ctx context.Context) (items []NewsItem, err error) {
	start := time.Now()
	defer func() { ds.observe("all_news", start, len(items), err) }()

	db, err := ds.session(ctx)
	if err != nil {
		return nil, err
	}

	var news []News
	if err := db.Order("created_at DESC").Order("id DESC").Find(&news).Error; err != nil {
		return nil, dbError(err, "all_news")
	}
	if len(news) == 0 {
		return nil, notFound("all_news", "news")
	}

	items = make([]NewsItem, 0, len(news))
	for i := range news {
		items = append(items, projectNews(&news[i]))
	}
	return items, nil
}

// AddNews appends a news item in its own transaction. Failures are
// returned once and never retried.
func (ds *DataStore) AddNews(ctx context.Context, title, body string) (item *NewsItem, err error) {
	start := time.Now()
	defer func() { ds.observe("add_news", start, boolSize(item != nil), err) }()

	title, body = strings.TrimSpace(title), strings.TrimSpace(body)
	if title == "" {
		return nil, validationError("news title is required", "title")
	}
	if body == "" {
		return nil, validationError("news body is required", "body")
	}

	db, err := ds.session(ctx)
	if err != nil {
		return nil, err
	}

	news := News{Title: title, Body: body}
	if err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&news).Error
	}); err != nil {
		return nil, dbError(err, "add_news")
	}

	ds.log.Info("news added", logger.Int("id", int(news.ID)), logger.String("title", title))
	projected := projectNews(&news)
	return &projected, nil
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func boolSize(found bool) int {
	if found {
		return 1
	}
	return 0
}
