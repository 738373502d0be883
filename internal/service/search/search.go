// Package search implements the directory search pipeline: filter, sort,
// paginate and assemble. Every function is pure and safe for concurrent use
// as long as callers do not mutate the catalogue slice they pass in.
package search

import (
	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/entity"
)

// Run executes the full pipeline over the catalogue.
func Run(catalog []entity.Provider, filters dto.SearchFilters) dto.SearchResult {
	filters = filters.Normalize()

	matched := Filter(catalog, filters)
	sorted := Sort(matched, filters.SortBy, filters.SortOrder, filters.Query)
	page := Paginate(sorted, filters.Page, filters.Limit)

	facetSource := catalog
	if filters.FacetScope == dto.FacetScopeFiltered {
		facetSource = matched
	}

	return Assemble(page, BuildFacets(facetSource))
}
