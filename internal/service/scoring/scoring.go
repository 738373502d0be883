package scoring

import (
	"strings"
	"unicode"

	"github.com/octobees/provider-directory/internal/entity"
)

const (
	categoryBusinessName = "business_name"
	categoryServices     = "services"
	categoryCategory     = "category"
	categoryTags         = "tags"
)

// ProviderFeatures captures the text signals used for relevance scoring.
type ProviderFeatures struct {
	BusinessName    string
	Category        string
	SubCategory     string
	Services        []string
	Specializations []string
	Tags            []string
}

// ScoreResult reports the aggregate score and the per-category breakdown.
type ScoreResult struct {
	Total     int
	Breakdown map[string]int
}

// FeaturesOf extracts the scoring features from a provider record.
func FeaturesOf(p entity.Provider) ProviderFeatures {
	return ProviderFeatures{
		BusinessName:    p.BusinessName,
		Category:        p.Category,
		SubCategory:     p.SubCategory,
		Services:        p.Services,
		Specializations: p.Specializations,
		Tags:            p.Tags,
	}
}

// ComputeRelevance scores how well the provider text matches the query, from 0 to 100.
// An empty query scores zero in every category.
func ComputeRelevance(input ProviderFeatures, query string) ScoreResult {
	phrase := normalizeText(query)
	tokens := tokenize(phrase)

	breakdown := map[string]int{
		categoryBusinessName: scoreBusinessName(input, phrase, tokens),
		categoryServices:     scoreServices(input, phrase, tokens),
		categoryCategory:     scoreCategory(input, phrase, tokens),
		categoryTags:         scoreTags(input, tokens),
	}

	total := 0
	for _, value := range breakdown {
		total += value
	}

	return ScoreResult{
		Total:     total,
		Breakdown: breakdown,
	}
}

func scoreBusinessName(input ProviderFeatures, phrase string, tokens []string) int {
	if phrase == "" {
		return 0
	}
	name := normalizeText(input.BusinessName)
	if name == "" {
		return 0
	}

	score := 0
	switch {
	case name == phrase:
		score += 30
	case strings.HasPrefix(name, phrase):
		score += 20
	case strings.Contains(name, phrase):
		score += 15
	}
	score += 5 * countTokenHits(tokens, name)
	if score > 40 {
		return 40
	}
	return score
}

func scoreServices(input ProviderFeatures, phrase string, tokens []string) int {
	if phrase == "" || len(input.Services) == 0 {
		return 0
	}

	score := 0
	for _, service := range input.Services {
		if strings.Contains(normalizeText(service), phrase) {
			score += 20
			break
		}
	}
	joined := normalizeText(strings.Join(input.Services, " "))
	score += 5 * countTokenHits(tokens, joined)
	if score > 30 {
		return 30
	}
	return score
}

func scoreCategory(input ProviderFeatures, phrase string, tokens []string) int {
	if phrase == "" {
		return 0
	}
	category := normalizeText(input.Category + " " + input.SubCategory)
	if category == "" {
		return 0
	}

	score := 0
	if strings.Contains(category, phrase) {
		score += 15
	}
	if countTokenHits(tokens, category) > 0 {
		score += 5
	}
	if score > 20 {
		return 20
	}
	return score
}

func scoreTags(input ProviderFeatures, tokens []string) int {
	if len(tokens) == 0 {
		return 0
	}
	values := make([]string, 0, len(input.Tags)+len(input.Specializations))
	values = append(values, input.Tags...)
	values = append(values, input.Specializations...)
	if len(values) == 0 {
		return 0
	}

	score := 5 * countTokenHits(tokens, normalizeText(strings.Join(values, " ")))
	if score > 10 {
		return 10
	}
	return score
}

func countTokenHits(tokens []string, haystack string) int {
	hits := 0
	for _, token := range tokens {
		if strings.Contains(haystack, token) {
			hits++
		}
	}
	return hits
}

// normalizeText lower-cases and turns slug separators into spaces so that
// "land-surveyor" and "Land Surveyor" compare equal.
func normalizeText(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '/':
			return ' '
		}
		return r
	}, raw)
	return strings.Join(strings.Fields(mapped), " ")
}

func tokenize(phrase string) []string {
	if phrase == "" {
		return nil
	}
	seen := make(map[string]struct{})
	tokens := make([]string, 0)
	for _, field := range strings.FieldsFunc(phrase, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(field)) < 2 {
			continue
		}
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		tokens = append(tokens, field)
	}
	return tokens
}
