package search

import (
	"strings"

	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/entity"
)

// predicate reports whether a provider satisfies one active filter.
type predicate func(p *entity.Provider) bool

// Filter returns the providers matching every active filter, in input order.
// The result is never nil.
func Filter(providers []entity.Provider, filters dto.SearchFilters) []entity.Provider {
	preds := buildPredicates(filters)

	matched := make([]entity.Provider, 0, len(providers))
	for i := range providers {
		if matchesAll(&providers[i], preds) {
			matched = append(matched, providers[i])
		}
	}
	return matched
}

func matchesAll(p *entity.Provider, preds []predicate) bool {
	for _, pred := range preds {
		if !pred(p) {
			return false
		}
	}
	return true
}

func buildPredicates(f dto.SearchFilters) []predicate {
	var preds []predicate

	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		preds = append(preds, func(p *entity.Provider) bool {
			if containsFold(p.BusinessName, q) || containsFold(p.Category, q) {
				return true
			}
			for _, service := range p.Services {
				if containsFold(service, q) {
					return true
				}
			}
			return false
		})
	}
	if loc := strings.ToLower(strings.TrimSpace(f.Location)); loc != "" {
		preds = append(preds, func(p *entity.Provider) bool {
			return containsFold(p.Location.City, loc) || containsFold(p.Location.State, loc)
		})
	}
	if city := strings.TrimSpace(f.City); city != "" {
		preds = append(preds, func(p *entity.Provider) bool {
			return strings.EqualFold(strings.TrimSpace(p.Location.City), city)
		})
	}
	if state := strings.TrimSpace(f.State); state != "" {
		preds = append(preds, func(p *entity.Provider) bool {
			return strings.EqualFold(strings.TrimSpace(p.Location.State), state)
		})
	}
	if category := strings.TrimSpace(f.Category); category != "" {
		preds = append(preds, func(p *entity.Provider) bool {
			return p.Category == category
		})
	}
	if f.Rating != nil {
		floor := *f.Rating
		preds = append(preds, func(p *entity.Provider) bool {
			return p.Rating.Average >= floor
		})
	}
	if f.ResponseRate != nil {
		floor := *f.ResponseRate
		preds = append(preds, func(p *entity.Provider) bool {
			return p.ResponseRate >= floor
		})
	}
	if isTrue(f.IsGSTVerified) {
		preds = append(preds, func(p *entity.Provider) bool { return p.Verification.IsGSTVerified })
	}
	if isTrue(f.IsTrustSEAL) {
		preds = append(preds, func(p *entity.Provider) bool { return p.Verification.IsTrustSEAL })
	}
	if isTrue(f.IsVerifiedSupplier) {
		preds = append(preds, func(p *entity.Provider) bool { return p.Verification.IsVerifiedSupplier })
	}
	if isTrue(f.IsPremium) {
		preds = append(preds, func(p *entity.Provider) bool { return p.IsPremium })
	}
	if f.MinYearsInBusiness != nil {
		years := *f.MinYearsInBusiness
		preds = append(preds, func(p *entity.Provider) bool {
			return p.Verification.YearsInBusiness >= years
		})
	}
	if f.PriceRange != nil && (f.PriceRange.Min != nil || f.PriceRange.Max != nil) {
		bounds := *f.PriceRange
		preds = append(preds, func(p *entity.Provider) bool {
			return priceOverlaps(p.PriceRange, bounds)
		})
	}

	return preds
}

// priceOverlaps reports whether the provider band intersects the requested bounds.
// Providers without a published band never satisfy a price filter.
func priceOverlaps(band *entity.PriceRange, bounds dto.PriceFilter) bool {
	if band == nil {
		return false
	}
	if bounds.Min != nil && band.Max < *bounds.Min {
		return false
	}
	if bounds.Max != nil && band.Min > *bounds.Max {
		return false
	}
	return true
}

func containsFold(value, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(value), lowerNeedle)
}

func isTrue(flag *bool) bool {
	return flag != nil && *flag
}
