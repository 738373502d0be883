package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/octobees/provider-directory/internal/cache"
	"github.com/octobees/provider-directory/internal/catalog"
	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/entity"
	"github.com/octobees/provider-directory/internal/repository"
)

type stubCatalogSource struct {
	mu        sync.Mutex
	providers []entity.Provider
	err       error
	loads     int
}

func (s *stubCatalogSource) Name() string { return "stub" }

func (s *stubCatalogSource) Load(ctx context.Context) ([]entity.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.providers, s.err
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]time.Duration
	gets    int
	deleted []string
	getErr  error
	setErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.getErr != nil {
		return nil, c.getErr
	}
	raw, ok := c.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return raw, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}

type mockProvidersRepository struct {
	bulk   func(ctx context.Context, providers []entity.Provider) (repository.BulkUpsertResult, error)
	get    func(ctx context.Context, id string) (*entity.Provider, error)
	upsert func(ctx context.Context, provider *entity.Provider) error
}

func (m *mockProvidersRepository) List(ctx context.Context) ([]entity.Provider, error) {
	return nil, errors.New("list not implemented")
}

func (m *mockProvidersRepository) GetByID(ctx context.Context, id string) (*entity.Provider, error) {
	if m.get != nil {
		return m.get(ctx, id)
	}
	return nil, errors.New("get not implemented")
}

func (m *mockProvidersRepository) Upsert(ctx context.Context, provider *entity.Provider) error {
	if m.upsert != nil {
		return m.upsert(ctx, provider)
	}
	return errors.New("upsert not implemented")
}

func (m *mockProvidersRepository) BulkUpsert(ctx context.Context, providers []entity.Provider) (repository.BulkUpsertResult, error) {
	if m.bulk != nil {
		return m.bulk(ctx, providers)
	}
	return repository.BulkUpsertResult{}, errors.New("bulk not implemented")
}

func testProviders() []entity.Provider {
	return []entity.Provider{
		{
			ID: "1", Name: "Rajesh Kumar", BusinessName: "Kumar Land Surveyors", Category: "land-surveyor",
			Location: entity.Location{City: "Patna", State: "Bihar"},
			Rating:   entity.Rating{Average: 4.5, Count: 127}, ResponseRate: 95,
			Services:     []string{"Land Survey", "Boundary Survey"},
			Verification: entity.Verification{IsGSTVerified: true, YearsInBusiness: 12},
			PriceRange:   &entity.PriceRange{Min: 5000, Max: 25000},
		},
		{
			ID: "2", Name: "Priya Sharma", BusinessName: "Sharma Survey Solutions", Category: "land-surveyor",
			Location: entity.Location{City: "Noida", State: "Uttar Pradesh"},
			Rating:   entity.Rating{Average: 4.2, Count: 89}, ResponseRate: 88,
			Services:     []string{"Land Survey", "Topographic Survey"},
			Verification: entity.Verification{IsGSTVerified: true, YearsInBusiness: 8},
		},
		{
			ID: "3", Name: "Amit Singh", BusinessName: "Singh Survey & Mapping", Category: "land-surveyor",
			Location: entity.Location{City: "Patna", State: "Bihar"},
			Rating:   entity.Rating{Average: 4.0, Count: 64}, ResponseRate: 92,
			Services:     []string{"Land Survey", "GIS Mapping"},
			Verification: entity.Verification{IsGSTVerified: true, YearsInBusiness: 15},
		},
	}
}

func newTestDirectory(t *testing.T, source *stubCatalogSource, opts ...DirectoryOption) *DirectoryService {
	t.Helper()
	return NewDirectoryService(catalog.NewStore(source, 0), opts...)
}

func TestDirectoryService_Search(t *testing.T) {
	source := &stubCatalogSource{providers: testProviders()}
	svc := newTestDirectory(t, source)

	result, err := svc.Search(context.Background(), dto.SearchFilters{Query: "land survey", Location: "patna"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 2 {
		t.Fatalf("expected 2 results, got %d", result.Total)
	}
	if result.Providers[0].Name != "Rajesh Kumar" || result.Providers[1].Name != "Amit Singh" {
		t.Fatalf("unexpected order: %s, %s", result.Providers[0].Name, result.Providers[1].Name)
	}
	if result.Page != 1 || result.Limit != dto.DefaultLimit {
		t.Fatalf("expected normalised pagination, got page %d limit %d", result.Page, result.Limit)
	}
	if len(result.Filters.Categories) != 1 || result.Filters.Categories[0].Count != 3 {
		t.Fatalf("expected catalogue-wide facets, got %+v", result.Filters.Categories)
	}
}

func TestDirectoryService_SearchUsesCache(t *testing.T) {
	source := &stubCatalogSource{providers: testProviders()}
	store := newMemoryCache()
	svc := newTestDirectory(t, source, WithResultCache(store, time.Minute))

	filters := dto.SearchFilters{Rating: ptr(4.2)}
	first, err := svc.Search(context.Background(), filters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected result to be cached, got %d entries", len(store.entries))
	}
	for key, ttl := range store.ttls {
		if !strings.HasPrefix(key, "directory:search:") || ttl != time.Minute {
			t.Fatalf("unexpected cache entry %s ttl %s", key, ttl)
		}
	}

	// Break the catalogue: a cache hit must not need it.
	source.providers = nil
	second, err := svc.Search(context.Background(), filters)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Total != first.Total || second.Providers[0].ID != first.Providers[0].ID {
		t.Fatalf("expected cached result, got %+v", second)
	}
	if store.gets != 2 {
		t.Fatalf("expected two cache lookups, got %d", store.gets)
	}
}

func TestDirectoryService_SearchIgnoresCacheFailures(t *testing.T) {
	store := newMemoryCache()
	store.getErr = errors.New("redis down")
	store.setErr = errors.New("redis down")
	svc := newTestDirectory(t, &stubCatalogSource{providers: testProviders()}, WithResultCache(store, time.Minute))

	result, err := svc.Search(context.Background(), dto.SearchFilters{})
	if err != nil {
		t.Fatalf("cache failures must not fail search: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("expected 3 results, got %d", result.Total)
	}
}

func TestDirectoryService_SearchIgnoresCorruptCacheEntry(t *testing.T) {
	source := &stubCatalogSource{providers: testProviders()}
	store := newMemoryCache()
	svc := newTestDirectory(t, source, WithResultCache(store, time.Minute))

	snap, err := catalog.NewSnapshot(testProviders(), "stub", time.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	key, err := cache.SearchKey(snap.Version, dto.SearchFilters{})
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	store.entries[key] = []byte("{not json")
	store.setErr = errors.New("read only replica")

	result, err := svc.Search(context.Background(), dto.SearchFilters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("expected fresh result, got total %d", result.Total)
	}
	if len(store.deleted) != 1 || store.deleted[0] != key {
		t.Fatalf("expected corrupt entry %s to be deleted, got %v", key, store.deleted)
	}
	if _, ok := store.entries[key]; ok {
		t.Fatalf("corrupt entry still cached")
	}
}

func TestDirectoryService_SearchUnavailable(t *testing.T) {
	svc := newTestDirectory(t, &stubCatalogSource{err: errors.New("connection refused")})

	_, err := svc.Search(context.Background(), dto.SearchFilters{})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if !errors.Is(err, catalog.ErrUnavailable) {
		t.Fatalf("expected catalog.ErrUnavailable in chain, got %v", err)
	}
}

func TestDirectoryService_GetProvider(t *testing.T) {
	svc := newTestDirectory(t, &stubCatalogSource{providers: testProviders()})

	provider, err := svc.GetProvider(context.Background(), "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.BusinessName != "Sharma Survey Solutions" {
		t.Fatalf("unexpected provider %s", provider.BusinessName)
	}

	for _, id := range []string{"99", "  "} {
		if _, err := svc.GetProvider(context.Background(), id); !errors.Is(err, ErrProviderNotFound) {
			t.Fatalf("expected ErrProviderNotFound for %q, got %v", id, err)
		}
	}
}

func TestDirectoryService_Facets(t *testing.T) {
	svc := newTestDirectory(t, &stubCatalogSource{providers: testProviders()})

	facets, err := svc.Facets(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(facets.Locations) != 2 || facets.Locations[0].Name != "Patna" || facets.Locations[0].Count != 2 {
		t.Fatalf("unexpected locations: %+v", facets.Locations)
	}
	if facets.PriceRange.Min != 5000 || facets.PriceRange.Max != 25000 {
		t.Fatalf("unexpected price range: %+v", facets.PriceRange)
	}
}

func TestDirectoryService_Reload(t *testing.T) {
	source := &stubCatalogSource{providers: testProviders()[:1]}
	svc := newTestDirectory(t, source)

	first, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Providers != 1 || first.Source != "stub" || first.Version == "" {
		t.Fatalf("unexpected summary: %+v", first)
	}

	source.providers = testProviders()
	second, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Providers != 3 || second.Version == first.Version {
		t.Fatalf("expected new snapshot, got %+v", second)
	}

	source.err = errors.New("timeout")
	if _, err := svc.Reload(context.Background()); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

const importCSV = `id,business_name,name,category,city,state,phone,email,website,rating,rating_count,gst_verified,years_in_business,response_rate,services,price_min,price_max
10,Verma Structural,Anil Verma,civil-engineer,Lucknow,Uttar Pradesh,98765 43210,Sales@Verma.IN,verma.in?utm_source=x,4.4,31,yes,9,90,Structural Design|Soil Testing,8000,40000
,Missing Id,,civil-engineer,Lucknow,Uttar Pradesh,,,,,,,,,,,
11,Yadav Borewell,Ravi Yadav,borewell,Gaya,Bihar,,not-an-email,,3.9,,false,,,Borewell Drilling,,
`

func TestDirectoryService_ImportProvidersCSV(t *testing.T) {
	source := &stubCatalogSource{providers: testProviders()}
	var received []entity.Provider
	repo := &mockProvidersRepository{
		bulk: func(ctx context.Context, providers []entity.Provider) (repository.BulkUpsertResult, error) {
			received = providers
			return repository.BulkUpsertResult{Inserted: 1, Updated: 1, Total: 2}, nil
		},
	}
	svc := newTestDirectory(t, source, WithProvidersRepository(repo, NewContactNormalizer("IN")))
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	summary, err := svc.ImportProvidersCSV(context.Background(), strings.NewReader(importCSV))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Inserted != 1 || summary.Updated != 1 || summary.Total != 2 || summary.Skipped != 1 || !summary.Reloaded {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if source.loads != 1 {
		t.Fatalf("expected catalogue reload after import, got %d loads", source.loads)
	}
	if len(received) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(received))
	}

	verma := received[0]
	if verma.Contact.Phone != "+919876543210" || verma.Contact.Email != "sales@verma.in" || verma.Contact.Website != "https://verma.in" {
		t.Fatalf("expected normalised contact, got %+v", verma.Contact)
	}
	if !verma.Verification.IsGSTVerified || verma.Verification.YearsInBusiness != 9 {
		t.Fatalf("unexpected verification: %+v", verma.Verification)
	}
	if len(verma.Services) != 2 || verma.Services[1] != "Soil Testing" {
		t.Fatalf("unexpected services: %v", verma.Services)
	}
	if verma.PriceRange == nil || verma.PriceRange.Min != 8000 || verma.PriceRange.Max != 40000 {
		t.Fatalf("unexpected price range: %+v", verma.PriceRange)
	}
	if verma.CreatedAt.IsZero() || !verma.CreatedAt.Equal(verma.UpdatedAt) {
		t.Fatalf("expected timestamps to be set")
	}

	yadav := received[1]
	if yadav.Contact.Email != "" || yadav.PriceRange != nil {
		t.Fatalf("unexpected optional fields: %+v", yadav)
	}
}

func TestDirectoryService_ImportProvidersCSVValidation(t *testing.T) {
	repo := &mockProvidersRepository{
		bulk: func(ctx context.Context, providers []entity.Provider) (repository.BulkUpsertResult, error) {
			t.Fatalf("bulk upsert must not run for invalid input")
			return repository.BulkUpsertResult{}, nil
		},
	}
	svc := newTestDirectory(t, &stubCatalogSource{}, WithProvidersRepository(repo, nil))

	tests := map[string]struct {
		csv     string
		message string
	}{
		"empty":           {csv: "", message: "csv file is empty"},
		"missing headers": {csv: "id,business_name\n1,Acme\n", message: "missing required columns: category, city, state"},
		"bad rating":      {csv: "id,business_name,category,city,state,rating\n1,Acme,x,Patna,Bihar,high\n", message: "row 2: invalid rating value"},
		"rating range":    {csv: "id,business_name,category,city,state,rating\n1,Acme,x,Patna,Bihar,7\n", message: "row 2:"},
		"duplicate id":    {csv: "id,business_name,category,city,state\n1,Acme,x,Patna,Bihar\n1,Beta,x,Gaya,Bihar\n", message: "row 3: id 1 already used on row 2"},
		"bad flag":        {csv: "id,business_name,category,city,state,premium\n1,Acme,x,Patna,Bihar,maybe\n", message: "invalid premium value"},
		"NaN rating":      {csv: "id,business_name,category,city,state,rating\n1,Acme,x,Patna,Bihar,NaN\n", message: "row 2: invalid rating value"},
		"NaN response":    {csv: "id,business_name,category,city,state,response_rate\n1,Acme,x,Patna,Bihar,nan\n", message: "row 2: invalid response_rate value"},
		"infinite price":  {csv: "id,business_name,category,city,state,price_min,price_max\n1,Acme,x,Patna,Bihar,0,+Inf\n", message: "row 2: invalid price_max value"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ImportProvidersCSV(context.Background(), strings.NewReader(tt.csv))
			var csvErr CSVValidationError
			if !errors.As(err, &csvErr) {
				t.Fatalf("expected CSVValidationError, got %v", err)
			}
			if !strings.Contains(csvErr.Message, tt.message) {
				t.Fatalf("expected message containing %q, got %q", tt.message, csvErr.Message)
			}
		})
	}
}

func TestDirectoryService_ImportDisabledWithoutRepository(t *testing.T) {
	svc := newTestDirectory(t, &stubCatalogSource{})
	if _, err := svc.ImportProvidersCSV(context.Background(), strings.NewReader("id\n")); !errors.Is(err, ErrImportDisabled) {
		t.Fatalf("expected ErrImportDisabled, got %v", err)
	}
}

func TestDirectoryService_ImportRepositoryError(t *testing.T) {
	repo := &mockProvidersRepository{
		bulk: func(ctx context.Context, providers []entity.Provider) (repository.BulkUpsertResult, error) {
			return repository.BulkUpsertResult{}, errors.New("deadlock detected")
		},
	}
	svc := newTestDirectory(t, &stubCatalogSource{}, WithProvidersRepository(repo, nil))

	_, err := svc.ImportProvidersCSV(context.Background(), strings.NewReader("id,business_name,category,city,state\n1,Acme,x,Patna,Bihar\n"))
	if err == nil || !strings.Contains(err.Error(), "deadlock detected") {
		t.Fatalf("expected repository error, got %v", err)
	}
}

func TestDirectoryService_Status(t *testing.T) {
	svc := newTestDirectory(t, &stubCatalogSource{providers: testProviders()})

	if got := svc.Status(); got.Ready || got.Providers != 0 {
		t.Fatalf("expected not ready before first load, got %+v", got)
	}

	if _, err := svc.Facets(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := svc.Status()
	if !got.Ready || got.Providers != 3 || got.Source != "stub" || got.Version == "" || got.LoadedAt.IsZero() {
		t.Fatalf("unexpected status after load: %+v", got)
	}
}

func TestDirectoryService_StoredProvider(t *testing.T) {
	repo := &mockProvidersRepository{
		get: func(ctx context.Context, id string) (*entity.Provider, error) {
			switch id {
			case "1":
				return &entity.Provider{ID: "1", BusinessName: "Kumar Land Surveyors"}, nil
			case "boom":
				return nil, errors.New("connection reset")
			}
			return nil, repository.ErrProviderNotFound
		},
	}
	svc := newTestDirectory(t, &stubCatalogSource{}, WithProvidersRepository(repo, nil))

	provider, err := svc.StoredProvider(context.Background(), " 1 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.BusinessName != "Kumar Land Surveyors" {
		t.Fatalf("unexpected provider %+v", provider)
	}

	for _, id := range []string{"missing", "  "} {
		if _, err := svc.StoredProvider(context.Background(), id); !errors.Is(err, ErrProviderNotFound) {
			t.Fatalf("id %q: expected ErrProviderNotFound, got %v", id, err)
		}
	}
	if _, err := svc.StoredProvider(context.Background(), "boom"); err == nil || errors.Is(err, ErrProviderNotFound) {
		t.Fatalf("expected repository error, got %v", err)
	}

	disabled := newTestDirectory(t, &stubCatalogSource{})
	if _, err := disabled.StoredProvider(context.Background(), "1"); !errors.Is(err, ErrImportDisabled) {
		t.Fatalf("expected ErrImportDisabled, got %v", err)
	}
}

func TestDirectoryService_SaveProvider(t *testing.T) {
	source := &stubCatalogSource{providers: testProviders()}
	var stored []entity.Provider
	repo := &mockProvidersRepository{
		upsert: func(ctx context.Context, provider *entity.Provider) error {
			stored = append(stored, *provider)
			source.mu.Lock()
			source.providers = append(source.providers, *provider)
			source.mu.Unlock()
			return nil
		},
	}
	svc := newTestDirectory(t, source, WithProvidersRepository(repo, nil))
	fixed := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	saved, reloaded, err := svc.SaveProvider(context.Background(), entity.Provider{
		ID: " 9 ", BusinessName: "Mishra Surveys", Category: "land-surveyor",
		Location: entity.Location{City: "Gaya", State: "Bihar"},
		Rating:   entity.Rating{Average: 4.1},
		Contact:  entity.Contact{Email: " INFO@Mishra.in "},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reloaded {
		t.Fatalf("expected catalogue reload")
	}
	if saved.ID != "9" || saved.Contact.Email != "info@mishra.in" {
		t.Fatalf("unexpected saved provider %+v", saved)
	}
	if !saved.CreatedAt.Equal(fixed) || !saved.UpdatedAt.Equal(fixed) {
		t.Fatalf("expected timestamps %v, got %v / %v", fixed, saved.CreatedAt, saved.UpdatedAt)
	}
	if len(stored) != 1 {
		t.Fatalf("expected one upsert, got %d", len(stored))
	}

	provider, err := svc.GetProvider(context.Background(), "9")
	if err != nil {
		t.Fatalf("saved provider not served after reload: %v", err)
	}
	if provider.BusinessName != "Mishra Surveys" {
		t.Fatalf("unexpected provider %+v", provider)
	}
	if got := svc.Status().Providers; got != 4 {
		t.Fatalf("expected 4 providers after save, got %d", got)
	}
}

func TestDirectoryService_SaveProviderRejects(t *testing.T) {
	repo := &mockProvidersRepository{
		upsert: func(ctx context.Context, provider *entity.Provider) error {
			t.Fatalf("upsert must not run for invalid providers")
			return nil
		},
	}
	svc := newTestDirectory(t, &stubCatalogSource{}, WithProvidersRepository(repo, nil))

	tests := map[string]entity.Provider{
		"missing id":      {BusinessName: "Nameless"},
		"rating too high": {ID: "9", Rating: entity.Rating{Average: 7}},
		"inverted price":  {ID: "9", PriceRange: &entity.PriceRange{Min: 10, Max: 1}},
	}
	for name, provider := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := svc.SaveProvider(context.Background(), provider); !errors.Is(err, entity.ErrInvalidProvider) {
				t.Fatalf("expected ErrInvalidProvider, got %v", err)
			}
		})
	}

	disabled := newTestDirectory(t, &stubCatalogSource{})
	if _, _, err := disabled.SaveProvider(context.Background(), entity.Provider{ID: "9"}); !errors.Is(err, ErrImportDisabled) {
		t.Fatalf("expected ErrImportDisabled, got %v", err)
	}
}

func TestDirectoryService_SaveProviderKeepsServingWhenReloadFails(t *testing.T) {
	source := &stubCatalogSource{providers: testProviders()}
	repo := &mockProvidersRepository{
		upsert: func(ctx context.Context, provider *entity.Provider) error { return nil },
	}
	svc := newTestDirectory(t, source, WithProvidersRepository(repo, nil))
	if _, err := svc.Facets(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source.mu.Lock()
	source.err = errors.New("upstream down")
	source.mu.Unlock()

	saved, reloaded, err := svc.SaveProvider(context.Background(), entity.Provider{ID: "9"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded || saved.ID != "9" {
		t.Fatalf("expected stored provider without reload, got reloaded=%v %+v", reloaded, saved)
	}
	if got := svc.Status().Providers; got != 3 {
		t.Fatalf("expected previous snapshot to keep serving, got %d providers", got)
	}
}

func ptr[T any](v T) *T { return &v }
