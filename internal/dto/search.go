package dto

import (
	"strings"

	"github.com/octobees/provider-directory/internal/entity"
)

// Sort keys accepted by the directory search.
const (
	SortRelevance       = "relevance"
	SortRating          = "rating"
	SortResponseRate    = "responseRate"
	SortYearsInBusiness = "yearsInBusiness"
	SortName            = "name"
)

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Facet scopes.
const (
	FacetScopeCatalog  = "catalog"
	FacetScopeFiltered = "filtered"
)

// Pagination defaults shared by the HTTP layer and the search pipeline.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// SearchFilters contains every criterion the directory search understands.
// Nil pointers and empty strings mean the filter is absent.
type SearchFilters struct {
	Query              string       `json:"query,omitempty"`
	Category           string       `json:"category,omitempty"`
	Location           string       `json:"location,omitempty"`
	City               string       `json:"city,omitempty"`
	State              string       `json:"state,omitempty"`
	Rating             *float64     `json:"rating,omitempty"`
	ResponseRate       *float64     `json:"responseRate,omitempty"`
	IsGSTVerified      *bool        `json:"isGSTVerified,omitempty"`
	IsTrustSEAL        *bool        `json:"isTrustSEAL,omitempty"`
	IsVerifiedSupplier *bool        `json:"isVerifiedSupplier,omitempty"`
	IsPremium          *bool        `json:"isPremium,omitempty"`
	MinYearsInBusiness *int         `json:"minYearsInBusiness,omitempty"`
	PriceRange         *PriceFilter `json:"priceRange,omitempty"`
	SortBy             string       `json:"sortBy,omitempty"`
	SortOrder          string       `json:"sortOrder,omitempty"`
	Page               int          `json:"page"`
	Limit              int          `json:"limit"`
	FacetScope         string       `json:"facetScope,omitempty"`
}

// PriceFilter bounds the indicative price band; either end may be open.
type PriceFilter struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Normalize returns a copy with trimmed strings, known sort keys and valid pagination.
func (f SearchFilters) Normalize() SearchFilters {
	f.Query = strings.TrimSpace(f.Query)
	f.Category = strings.TrimSpace(f.Category)
	f.Location = strings.TrimSpace(f.Location)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)

	if f.Page <= 0 {
		f.Page = DefaultPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}

	switch f.SortBy {
	case SortRating, SortResponseRate, SortYearsInBusiness, SortName, SortRelevance:
	default:
		f.SortBy = SortRelevance
	}
	switch strings.ToLower(strings.TrimSpace(f.SortOrder)) {
	case SortAsc:
		f.SortOrder = SortAsc
	default:
		f.SortOrder = SortDesc
	}
	if f.FacetScope != FacetScopeFiltered {
		f.FacetScope = FacetScopeCatalog
	}
	if f.PriceRange != nil && f.PriceRange.Min == nil && f.PriceRange.Max == nil {
		f.PriceRange = nil
	}
	return f
}

// SearchResult is the page of providers returned to the caller.
type SearchResult struct {
	Providers  []entity.Provider `json:"providers"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
	Filters    FacetSummary      `json:"filters"`
}

// FacetSummary lists the filter options available to the UI.
type FacetSummary struct {
	Categories []FacetCount      `json:"categories"`
	Locations  []FacetCount      `json:"locations"`
	PriceRange entity.PriceRange `json:"priceRange"`
}

// FacetCount represents a facet value and how many providers carry it.
type FacetCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
