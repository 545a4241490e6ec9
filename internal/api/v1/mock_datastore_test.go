package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/tphakala/plantdoc/internal/datastore"
)

// mockStore is a testify mock of datastore.Interface.
type mockStore struct {
	mock.Mock
}

var _ datastore.Interface = (*mockStore)(nil)

func (m *mockStore) Open() error  { return m.Called().Error(0) }
func (m *mockStore) Close() error { return m.Called().Error(0) }

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) CreateSchema(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Seed(ctx context.Context, data *datastore.SeedData) error {
	return m.Called(ctx, data).Error(0)
}

func (m *mockStore) AllPlants(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	plants, _ := args.Get(0).([]string)
	return plants, args.Error(1)
}

func (m *mockStore) DiseasesForPlant(ctx context.Context, plant string, fetch datastore.PictureFetch) ([]datastore.DiseaseSummary, error) {
	args := m.Called(ctx, plant, fetch)
	diseases, _ := args.Get(0).([]datastore.DiseaseSummary)
	return diseases, args.Error(1)
}

func (m *mockStore) DiseaseDetail(ctx context.Context, disease, plant string) (*datastore.DiseaseDetail, error) {
	args := m.Called(ctx, disease, plant)
	detail, _ := args.Get(0).(*datastore.DiseaseDetail)
	return detail, args.Error(1)
}

func (m *mockStore) DiseaseDetailByName(ctx context.Context, disease string) (*datastore.DiseaseDetail, error) {
	args := m.Called(ctx, disease)
	detail, _ := args.Get(0).(*datastore.DiseaseDetail)
	return detail, args.Error(1)
}

func (m *mockStore) AllNews(ctx context.Context) ([]datastore.NewsItem, error) {
	args := m.Called(ctx)
	news, _ := args.Get(0).([]datastore.NewsItem)
	return news, args.Error(1)
}

func (m *mockStore) AddNews(ctx context.Context, title, body string) (*datastore.NewsItem, error) {
	args := m.Called(ctx, title, body)
	item, _ := args.Get(0).(*datastore.NewsItem)
	return item, args.Error(1)
}
