package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/octobees/provider-directory/internal/catalog"
	"github.com/octobees/provider-directory/internal/entity"
	"github.com/octobees/provider-directory/internal/repository"
	"github.com/octobees/provider-directory/internal/service"
)

type stubSource struct {
	mu        sync.Mutex
	providers []entity.Provider
	err       error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Load(ctx context.Context) ([]entity.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.providers, s.err
}

type stubProvidersRepository struct {
	bulk   func(ctx context.Context, providers []entity.Provider) (repository.BulkUpsertResult, error)
	get    func(ctx context.Context, id string) (*entity.Provider, error)
	upsert func(ctx context.Context, provider *entity.Provider) error
}

func (s *stubProvidersRepository) List(ctx context.Context) ([]entity.Provider, error) {
	return nil, errors.New("not implemented")
}

func (s *stubProvidersRepository) GetByID(ctx context.Context, id string) (*entity.Provider, error) {
	if s.get != nil {
		return s.get(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (s *stubProvidersRepository) Upsert(ctx context.Context, provider *entity.Provider) error {
	if s.upsert != nil {
		return s.upsert(ctx, provider)
	}
	return errors.New("not implemented")
}

func (s *stubProvidersRepository) BulkUpsert(ctx context.Context, providers []entity.Provider) (repository.BulkUpsertResult, error) {
	if s.bulk != nil {
		return s.bulk(ctx, providers)
	}
	return repository.BulkUpsertResult{Inserted: len(providers), Total: len(providers)}, nil
}

func newDirectoryService(source catalog.Source, opts ...service.DirectoryOption) *service.DirectoryService {
	return service.NewDirectoryService(catalog.NewStore(source, 0), opts...)
}

func surveyors() []entity.Provider {
	created := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	provider := func(id, name, business, city, state string, rating, response float64, years int, band *entity.PriceRange, services ...string) entity.Provider {
		return entity.Provider{
			ID: id, Name: name, BusinessName: business, Category: "land-surveyor",
			Location:     entity.Location{City: city, State: state},
			Rating:       entity.Rating{Average: rating},
			ResponseRate: response,
			Verification: entity.Verification{IsGSTVerified: true, YearsInBusiness: years},
			Services:     services,
			PriceRange:   band,
			CreatedAt:    created,
			UpdatedAt:    created,
		}
	}
	return []entity.Provider{
		provider("1", "Rajesh Kumar", "Kumar Land Surveyors", "Patna", "Bihar", 4.5, 95, 12, &entity.PriceRange{Min: 5000, Max: 25000}, "Land Survey", "Boundary Demarcation"),
		provider("2", "Priya Sharma", "Sharma Survey Solutions", "Noida", "Uttar Pradesh", 4.2, 88, 8, &entity.PriceRange{Min: 4000, Max: 20000}, "Land Survey", "Plot Measurement"),
		provider("3", "Amit Singh", "Singh Survey & Mapping", "Patna", "Bihar", 4.0, 92, 15, &entity.PriceRange{Min: 3000, Max: 15000}, "Land Survey", "Topographic Survey"),
		provider("4", "Vikram Gupta", "Gupta Geo Surveys", "Patna", "Bihar", 3.8, 75, 5, nil, "Land Survey", "Contour Survey"),
	}
}
