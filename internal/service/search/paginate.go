package search

import "github.com/octobees/provider-directory/internal/entity"

// Page is one window of a sorted result set.
type Page struct {
	Items      []entity.Provider
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// Paginate slices providers into the requested 1-based page. A page past the
// end yields no items but still reports the totals.
func Paginate(providers []entity.Provider, page, limit int) Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}

	total := len(providers)
	result := Page{
		Items:      []entity.Provider{},
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: TotalPages(total, limit),
	}

	// Checked before multiplying so huge page numbers cannot overflow.
	if page > result.TotalPages {
		return result
	}
	start := (page - 1) * limit
	end := total
	if limit < total-start {
		end = start + limit
	}

	result.Items = append(result.Items, providers[start:end]...)
	return result
}

// TotalPages is ceil(total/limit), zero when there is nothing to page.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total-1)/limit + 1
}
