package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/octobees/provider-directory/internal/cache"
	"github.com/octobees/provider-directory/internal/catalog"
	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/entity"
	"github.com/octobees/provider-directory/internal/logging"
	"github.com/octobees/provider-directory/internal/repository"
	"github.com/octobees/provider-directory/internal/service/search"
)

var (
	// ErrUpstreamUnavailable is returned when no catalogue snapshot can be obtained.
	ErrUpstreamUnavailable = errors.New("catalogue unavailable")
	// ErrProviderNotFound is returned when an id is not part of the current catalogue.
	ErrProviderNotFound = errors.New("provider not found")
	// ErrImportDisabled is returned when no providers repository is configured.
	ErrImportDisabled = errors.New("provider import requires a database")
)

// CSVValidationError indicates that the provided CSV payload is invalid.
type CSVValidationError struct {
	Message string
}

// Error implements the error interface.
func (e CSVValidationError) Error() string {
	return e.Message
}

// UploadSummary reports how many rows were inserted or updated during import.
type UploadSummary struct {
	Inserted int  `json:"inserted"`
	Updated  int  `json:"updated"`
	Total    int  `json:"total"`
	Skipped  int  `json:"skipped"`
	Reloaded bool `json:"reloaded"`
}

// ReloadSummary describes the snapshot produced by a forced refresh.
type ReloadSummary struct {
	Providers int    `json:"providers"`
	Version   string `json:"version"`
	Source    string `json:"source"`
}

// CatalogStatus describes the snapshot currently served, without triggering a load.
type CatalogStatus struct {
	Ready     bool      `json:"ready"`
	Providers int       `json:"providers"`
	Version   string    `json:"version,omitempty"`
	Source    string    `json:"source,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
}

// DirectoryService answers directory queries against the current catalogue snapshot.
type DirectoryService struct {
	store      *catalog.Store
	cache      cache.Cache
	cacheTTL   time.Duration
	repo       repository.ProvidersRepository
	normalizer *ContactNormalizer
	now        func() time.Time
}

// DirectoryOption configures optional collaborators.
type DirectoryOption func(*DirectoryService)

// WithResultCache stores rendered search pages for ttl.
func WithResultCache(c cache.Cache, ttl time.Duration) DirectoryOption {
	return func(s *DirectoryService) {
		if c != nil {
			s.cache = c
		}
		s.cacheTTL = ttl
	}
}

// WithProvidersRepository enables CSV imports into the given repository.
func WithProvidersRepository(repo repository.ProvidersRepository, normalizer *ContactNormalizer) DirectoryOption {
	return func(s *DirectoryService) {
		s.repo = repo
		if normalizer != nil {
			s.normalizer = normalizer
		}
	}
}

// NewDirectoryService creates a new instance of DirectoryService.
func NewDirectoryService(store *catalog.Store, opts ...DirectoryOption) *DirectoryService {
	s := &DirectoryService{
		store:      store,
		cache:      cache.Noop{},
		normalizer: NewContactNormalizer(""),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs the filter, sort and paginate pipeline over the current catalogue.
func (s *DirectoryService) Search(ctx context.Context, filters dto.SearchFilters) (dto.SearchResult, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return dto.SearchResult{}, err
	}

	filters = filters.Normalize()
	logger := logging.FromContext(ctx).With().
		Str("catalog_version", snap.Version).
		Logger()

	key, keyErr := cache.SearchKey(snap.Version, filters)
	if keyErr != nil {
		logger.Warn().Err(keyErr).Msg("derive search cache key")
	} else if cached, ok := s.cachedResult(ctx, key); ok {
		logger.Debug().Bool("cache_hit", true).Int("total", cached.Total).Msg("directory search")
		return cached, nil
	}

	result := search.Run(snap.Providers, filters)
	logger.Debug().Bool("cache_hit", false).Int("total", result.Total).Msg("directory search")

	if keyErr == nil {
		s.storeResult(ctx, key, result)
	}
	return result, nil
}

// GetProvider returns a single provider from the current catalogue.
func (s *DirectoryService) GetProvider(ctx context.Context, id string) (entity.Provider, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return entity.Provider{}, ErrProviderNotFound
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return entity.Provider{}, err
	}
	provider, ok := snap.Lookup(id)
	if !ok {
		return entity.Provider{}, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	return provider, nil
}

// Facets returns the catalogue-wide filter options.
func (s *DirectoryService) Facets(ctx context.Context) (dto.FacetSummary, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return dto.FacetSummary{}, err
	}
	return search.BuildFacets(snap.Providers), nil
}

// Reload forces a catalogue refresh.
func (s *DirectoryService) Reload(ctx context.Context) (ReloadSummary, error) {
	snap, err := s.store.Reload(ctx)
	if err != nil {
		return ReloadSummary{}, upstreamErr(err)
	}
	logging.FromContext(ctx).Info().
		Int("provider_count", len(snap.Providers)).
		Str("catalog_version", snap.Version).
		Str("source", snap.Source).
		Msg("catalogue reloaded")
	return ReloadSummary{Providers: len(snap.Providers), Version: snap.Version, Source: snap.Source}, nil
}

// Status reports the loaded snapshot. Ready is false until the first load succeeds.
func (s *DirectoryService) Status() CatalogStatus {
	snap := s.store.Current()
	if snap == nil {
		return CatalogStatus{}
	}
	return CatalogStatus{
		Ready:     true,
		Providers: len(snap.Providers),
		Version:   snap.Version,
		Source:    snap.Source,
		LoadedAt:  snap.LoadedAt,
	}
}

// StoredProvider reads a provider straight from the repository. Unlike
// GetProvider it sees rows written since the last catalogue refresh.
func (s *DirectoryService) StoredProvider(ctx context.Context, id string) (entity.Provider, error) {
	if s.repo == nil {
		return entity.Provider{}, ErrImportDisabled
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return entity.Provider{}, ErrProviderNotFound
	}
	provider, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProviderNotFound) {
			return entity.Provider{}, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
		}
		return entity.Provider{}, fmt.Errorf("fetch stored provider: %w", err)
	}
	return *provider, nil
}

// SaveProvider normalises, validates and upserts one provider, then reloads
// the catalogue. The returned bool reports whether the reload succeeded.
func (s *DirectoryService) SaveProvider(ctx context.Context, provider entity.Provider) (entity.Provider, bool, error) {
	if s.repo == nil {
		return entity.Provider{}, false, ErrImportDisabled
	}
	provider.ID = strings.TrimSpace(provider.ID)

	now := s.now().UTC()
	provider = s.normalizer.Normalize(ctx, provider)
	if provider.CreatedAt.IsZero() {
		provider.CreatedAt = now
	}
	provider.UpdatedAt = now
	if err := provider.Validate(); err != nil {
		return entity.Provider{}, false, err
	}

	if err := s.repo.Upsert(ctx, &provider); err != nil {
		return entity.Provider{}, false, fmt.Errorf("store provider: %w", err)
	}

	if _, err := s.store.Reload(ctx); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("provider_id", provider.ID).Msg("reload after save failed; serving previous snapshot")
		return provider, false, nil
	}
	return provider, true, nil
}

// ImportProvidersCSV ingests providers from a CSV reader, persists them and reloads the catalogue.
func (s *DirectoryService) ImportProvidersCSV(ctx context.Context, r io.Reader) (UploadSummary, error) {
	if s.repo == nil {
		return UploadSummary{}, ErrImportDisabled
	}

	providers, skipped, err := s.parseProvidersCSV(ctx, r)
	if err != nil {
		return UploadSummary{}, err
	}

	result, err := s.repo.BulkUpsert(ctx, providers)
	if err != nil {
		return UploadSummary{}, fmt.Errorf("store providers: %w", err)
	}

	summary := UploadSummary{
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Total:    result.Total,
		Skipped:  skipped,
	}

	if _, err := s.store.Reload(ctx); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("reload after import failed; serving previous snapshot")
	} else {
		summary.Reloaded = true
	}
	return summary, nil
}

func (s *DirectoryService) snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, upstreamErr(err)
	}
	return snap, nil
}

func (s *DirectoryService) cachedResult(ctx context.Context, key string) (dto.SearchResult, bool) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			logging.FromContext(ctx).Warn().Err(err).Msg("read search cache")
		}
		return dto.SearchResult{}, false
	}
	var result dto.SearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("discard corrupt cache entry")
		if err := s.cache.Delete(ctx, key); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("delete corrupt cache entry")
		}
		return dto.SearchResult{}, false
	}
	return result, true
}

func (s *DirectoryService) storeResult(ctx context.Context, key string, result dto.SearchResult) {
	if s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("encode search result")
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("write search cache")
	}
}

func upstreamErr(err error) error {
	if errors.Is(err, catalog.ErrUnavailable) {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	return err
}

const listSeparator = "|"

var requiredCSVHeaders = []string{"id", "business_name", "category", "city", "state"}

func (s *DirectoryService) parseProvidersCSV(ctx context.Context, r io.Reader) ([]entity.Provider, int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, CSVValidationError{Message: "csv file is empty"}
		}
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}

	index, valErr := buildHeaderIndex(header)
	if valErr != nil {
		return nil, 0, valErr
	}

	var (
		providers []entity.Provider
		seen      = make(map[string]int)
		skipped   int
		rowNum    = 1
		now       = s.now().UTC()
	)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv row: %w", err)
		}
		rowNum++

		col := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		if col("id") == "" || col("business_name") == "" {
			skipped++
			continue
		}

		provider, parseErr := providerFromRow(col)
		if parseErr != nil {
			return nil, 0, CSVValidationError{Message: fmt.Sprintf("row %d: %v", rowNum, parseErr)}
		}
		if prev, dup := seen[provider.ID]; dup {
			return nil, 0, CSVValidationError{Message: fmt.Sprintf("row %d: id %s already used on row %d", rowNum, provider.ID, prev)}
		}
		seen[provider.ID] = rowNum

		provider = s.normalizer.Normalize(ctx, provider)
		provider.CreatedAt = now
		provider.UpdatedAt = now
		if err := provider.Validate(); err != nil {
			return nil, 0, CSVValidationError{Message: fmt.Sprintf("row %d: %v", rowNum, err)}
		}
		providers = append(providers, provider)
	}

	return providers, skipped, nil
}

func providerFromRow(col func(string) string) (entity.Provider, error) {
	p := entity.Provider{
		ID:              col("id"),
		Name:            col("name"),
		BusinessName:    col("business_name"),
		Description:     col("description"),
		Category:        col("category"),
		SubCategory:     col("sub_category"),
		Location:        entity.Location{City: col("city"), State: col("state"), Pincode: col("pincode")},
		Contact:         entity.Contact{Phone: col("phone"), Email: col("email"), Website: col("website")},
		Services:        splitList(col("services")),
		Specializations: splitList(col("specializations")),
		Tags:            splitList(col("tags")),
	}

	var err error
	if p.Rating.Average, err = parseFloatDefault(col("rating"), "rating"); err != nil {
		return p, err
	}
	if p.Rating.Count, err = parseIntDefault(col("rating_count"), "rating_count"); err != nil {
		return p, err
	}
	if p.ResponseRate, err = parseFloatDefault(col("response_rate"), "response_rate"); err != nil {
		return p, err
	}
	if p.Verification.YearsInBusiness, err = parseIntDefault(col("years_in_business"), "years_in_business"); err != nil {
		return p, err
	}
	if p.Verification.IsGSTVerified, err = parseBoolDefault(col("gst_verified"), "gst_verified"); err != nil {
		return p, err
	}
	if p.Verification.IsTrustSEAL, err = parseBoolDefault(col("trust_seal"), "trust_seal"); err != nil {
		return p, err
	}
	if p.Verification.IsVerifiedSupplier, err = parseBoolDefault(col("verified_supplier"), "verified_supplier"); err != nil {
		return p, err
	}
	if p.IsPremium, err = parseBoolDefault(col("premium"), "premium"); err != nil {
		return p, err
	}

	minPrice, maxPrice := col("price_min"), col("price_max")
	if minPrice != "" || maxPrice != "" {
		band := &entity.PriceRange{}
		if band.Min, err = parseFloatDefault(minPrice, "price_min"); err != nil {
			return p, err
		}
		if band.Max, err = parseFloatDefault(maxPrice, "price_max"); err != nil {
			return p, err
		}
		if maxPrice == "" {
			band.Max = band.Min
		}
		p.PriceRange = band
	}
	return p, nil
}

func buildHeaderIndex(header []string) (map[string]int, error) {
	index := make(map[string]int)
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}

	missing := make([]string, 0)
	for _, required := range requiredCSVHeaders {
		if _, ok := index[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, CSVValidationError{Message: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))}
	}
	return index, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, listSeparator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseFloatDefault(value, field string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s value %q", field, value)
	}
	return f, nil
}

func parseIntDefault(value, field string) (int, error) {
	if value == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", field, value)
	}
	return i, nil
}

func parseBoolDefault(value, field string) (bool, error) {
	if value == "" {
		return false, nil
	}
	switch strings.ToLower(value) {
	case "yes", "y":
		return true, nil
	case "no", "n":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q", field, value)
	}
	return b, nil
}
