package search

import (
	"cmp"
	"slices"
	"strings"

	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/entity"
	"github.com/octobees/provider-directory/internal/service/scoring"
)

// Sort returns a stably ordered copy of providers. The query is only consulted
// for relevance ordering; with an empty query relevance keeps input order.
func Sort(providers []entity.Provider, sortBy, sortOrder, query string) []entity.Provider {
	sorted := slices.Clone(providers)
	if sorted == nil {
		sorted = []entity.Provider{}
	}
	if len(sorted) < 2 {
		return sorted
	}

	direction := 1
	if sortOrder != dto.SortAsc {
		direction = -1
	}

	if sortBy == dto.SortRelevance || sortBy == "" {
		return sortByRelevance(sorted, query, direction)
	}

	compare := comparatorFor(sortBy)
	if compare == nil {
		return sorted
	}
	slices.SortStableFunc(sorted, func(a, b entity.Provider) int {
		return direction * compare(&a, &b)
	})
	return sorted
}

func comparatorFor(sortBy string) func(a, b *entity.Provider) int {
	switch sortBy {
	case dto.SortRating:
		return func(a, b *entity.Provider) int { return cmp.Compare(a.Rating.Average, b.Rating.Average) }
	case dto.SortResponseRate:
		return func(a, b *entity.Provider) int { return cmp.Compare(a.ResponseRate, b.ResponseRate) }
	case dto.SortYearsInBusiness:
		return func(a, b *entity.Provider) int {
			return cmp.Compare(a.Verification.YearsInBusiness, b.Verification.YearsInBusiness)
		}
	case dto.SortName:
		return func(a, b *entity.Provider) int {
			return strings.Compare(strings.ToLower(a.BusinessName), strings.ToLower(b.BusinessName))
		}
	default:
		return nil
	}
}

type scoredProvider struct {
	provider entity.Provider
	score    int
}

func sortByRelevance(providers []entity.Provider, query string, direction int) []entity.Provider {
	if strings.TrimSpace(query) == "" {
		return providers
	}

	scored := make([]scoredProvider, len(providers))
	for i, p := range providers {
		scored[i] = scoredProvider{
			provider: p,
			score:    scoring.ComputeRelevance(scoring.FeaturesOf(p), query).Total,
		}
	}
	slices.SortStableFunc(scored, func(a, b scoredProvider) int {
		return direction * cmp.Compare(a.score, b.score)
	})

	for i := range scored {
		providers[i] = scored[i].provider
	}
	return providers
}
