package handler

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/logging"
	"github.com/octobees/provider-directory/internal/service"
)

// SeqHeader echoes the caller's sequence token so clients can drop stale responses.
const SeqHeader = "X-Search-Seq"

// DirectoryHandler exposes the public directory endpoints.
type DirectoryHandler struct {
	directory *service.DirectoryService
	prompt    *service.PromptService
}

// NewDirectoryHandler creates a new handler instance. prompt may be nil.
func NewDirectoryHandler(directory *service.DirectoryService, prompt *service.PromptService) *DirectoryHandler {
	return &DirectoryHandler{directory: directory, prompt: prompt}
}

// Search handles GET /api/directory/search requests.
func (h *DirectoryHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	params := c.QueryParams()

	filters, ignored := ParseSearchFilters(params)
	if h.prompt != nil {
		if raw := strings.TrimSpace(params.Get("prompt")); raw != "" {
			parsed, err := h.prompt.Parse(raw)
			if err == nil {
				filters = parsed.Apply(filters)
			}
		}
	}
	if len(ignored) > 0 {
		logging.FromContext(ctx).Debug().Strs("ignored_params", ignored).Msg("skipped malformed search parameters")
	}

	if seq := strings.TrimSpace(params.Get("seq")); seq != "" {
		if _, err := strconv.ParseUint(seq, 10, 64); err == nil {
			c.Response().Header().Set(SeqHeader, seq)
		}
	}

	result, err := h.directory.Search(ctx, filters)
	if err != nil {
		return h.failure(c, err, "search failed")
	}
	return Success(c, http.StatusOK, "providers retrieved", result)
}

// GetProvider handles GET /api/directory/providers/:id requests.
func (h *DirectoryHandler) GetProvider(c echo.Context) error {
	provider, err := h.directory.GetProvider(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrProviderNotFound) {
			return Error(c, http.StatusNotFound, "provider not found")
		}
		return h.failure(c, err, "lookup failed")
	}
	return Success(c, http.StatusOK, "provider retrieved", provider)
}

// Filters handles GET /api/directory/filters requests.
func (h *DirectoryHandler) Filters(c echo.Context) error {
	facets, err := h.directory.Facets(c.Request().Context())
	if err != nil {
		return h.failure(c, err, "filters failed")
	}
	return Success(c, http.StatusOK, "filters retrieved", facets)
}

// Health handles GET /healthz. The process is alive even before the catalogue loads.
func (h *DirectoryHandler) Health(c echo.Context) error {
	return Success(c, http.StatusOK, "service healthy", map[string]any{
		"status":  "ok",
		"catalog": h.directory.Status(),
	})
}

// Ready handles GET /readyz and answers 503 until a catalogue snapshot is loaded.
func (h *DirectoryHandler) Ready(c echo.Context) error {
	status := h.directory.Status()
	if !status.Ready {
		return Error(c, http.StatusServiceUnavailable, "catalogue not loaded")
	}
	return Success(c, http.StatusOK, "catalogue ready", status)
}

func (h *DirectoryHandler) failure(c echo.Context, err error, action string) error {
	if errors.Is(err, service.ErrUpstreamUnavailable) {
		logging.FromContext(c.Request().Context()).Warn().Err(err).Msg(action)
		return Error(c, http.StatusServiceUnavailable, action+": catalogue unavailable")
	}
	logging.FromContext(c.Request().Context()).Error().Err(err).Msg(action)
	return Error(c, http.StatusInternalServerError, action)
}

// ParseSearchFilters maps query parameters onto search filters. Malformed values
// are skipped and their parameter names returned so callers can log them.
func ParseSearchFilters(params url.Values) (dto.SearchFilters, []string) {
	var (
		f       dto.SearchFilters
		ignored []string
	)
	get := func(key string) string { return strings.TrimSpace(params.Get(key)) }
	skip := func(key string) { ignored = append(ignored, key) }

	f.Query = get("query")
	if f.Query == "" {
		f.Query = get("q")
	}
	f.Category = get("category")
	f.Location = get("location")
	f.City = get("city")
	f.State = get("state")

	f.Rating = floatParam(get("rating"), 0, 5, "rating", skip)
	f.ResponseRate = floatParam(get("responseRate"), 0, 100, "responseRate", skip)

	f.IsGSTVerified = boolParam(get("isGSTVerified"), "isGSTVerified", skip)
	f.IsTrustSEAL = boolParam(get("isTrustSEAL"), "isTrustSEAL", skip)
	f.IsVerifiedSupplier = boolParam(get("isVerifiedSupplier"), "isVerifiedSupplier", skip)
	f.IsPremium = boolParam(get("isPremium"), "isPremium", skip)

	if raw := get("minYearsInBusiness"); raw != "" {
		if years, err := strconv.Atoi(raw); err == nil && years >= 0 {
			f.MinYearsInBusiness = &years
		} else {
			skip("minYearsInBusiness")
		}
	}

	minPrice := floatParam(get("minPrice"), 0, -1, "minPrice", skip)
	maxPrice := floatParam(get("maxPrice"), 0, -1, "maxPrice", skip)
	switch {
	case minPrice != nil && maxPrice != nil && *minPrice > *maxPrice:
		skip("minPrice")
		skip("maxPrice")
	case minPrice != nil || maxPrice != nil:
		f.PriceRange = &dto.PriceFilter{Min: minPrice, Max: maxPrice}
	}

	if raw := get("sortBy"); raw != "" {
		switch raw {
		case dto.SortRelevance, dto.SortRating, dto.SortResponseRate, dto.SortYearsInBusiness, dto.SortName:
			f.SortBy = raw
		default:
			skip("sortBy")
		}
	}
	if raw := strings.ToLower(get("sortOrder")); raw != "" {
		if raw == dto.SortAsc || raw == dto.SortDesc {
			f.SortOrder = raw
		} else {
			skip("sortOrder")
		}
	}

	f.Page = positiveIntParam(get("page"), "page", skip)
	f.Limit = positiveIntParam(get("limit"), "limit", skip)

	if raw := strings.ToLower(get("facetScope")); raw != "" {
		if raw == dto.FacetScopeCatalog || raw == dto.FacetScopeFiltered {
			f.FacetScope = raw
		} else {
			skip("facetScope")
		}
	}

	return f, ignored
}

// floatParam parses a finite value within [lo, hi]; a negative hi means no upper bound.
func floatParam(value string, lo, hi float64, key string, skip func(string)) *float64 {
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < lo || (hi >= 0 && f > hi) {
		skip(key)
		return nil
	}
	return &f
}

func boolParam(value, key string, skip func(string)) *bool {
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		skip(key)
		return nil
	}
	return &b
}

func positiveIntParam(value, key string, skip func(string)) int {
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		skip(key)
		return 0
	}
	return n
}
