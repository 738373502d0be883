package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/entity"
)

// BuildFacets summarises categories, cities and the observed price band.
func BuildFacets(providers []entity.Provider) dto.FacetSummary {
	categories := make(map[string]int)
	locations := make(map[string]int)

	var (
		priceRange entity.PriceRange
		havePrice  bool
	)

	for i := range providers {
		p := &providers[i]
		if category := strings.TrimSpace(p.Category); category != "" {
			categories[category]++
		}
		if city := strings.TrimSpace(p.Location.City); city != "" {
			locations[city]++
		}
		if p.PriceRange == nil {
			continue
		}
		if !havePrice {
			priceRange = *p.PriceRange
			havePrice = true
			continue
		}
		priceRange.Min = min(priceRange.Min, p.PriceRange.Min)
		priceRange.Max = max(priceRange.Max, p.PriceRange.Max)
	}

	return dto.FacetSummary{
		Categories: facetCounts(categories),
		Locations:  facetCounts(locations),
		PriceRange: priceRange,
	}
}

// facetCounts orders entries by count descending, then name.
func facetCounts(counts map[string]int) []dto.FacetCount {
	out := make([]dto.FacetCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, dto.FacetCount{Name: name, Count: count})
	}
	slices.SortFunc(out, func(a, b dto.FacetCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Assemble packages a page and its facets into the response returned to callers.
func Assemble(page Page, facets dto.FacetSummary) dto.SearchResult {
	providers := page.Items
	if providers == nil {
		providers = []entity.Provider{}
	}
	return dto.SearchResult{
		Providers:  providers,
		Total:      page.Total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages,
		Filters:    facets,
	}
}
