package service

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/octobees/provider-directory/internal/dto"
)

// ErrEmptyPrompt is returned when there is nothing to interpret.
var ErrEmptyPrompt = errors.New("prompt is required")

var (
	stopwordExpr     = regexp.MustCompile(`(?i)\b(find|search|show|me|need|want|looking|for|some|any|a|an|the|please|with|best|top|good|mujhe|chahiye|koi|acha|accha|wala|wale)\b`)
	locationPattern  = regexp.MustCompile(`(?i)\b(?:in|at|near)\s+([a-zA-Z][a-zA-Z\s]*)$`)
	ratingPattern    = regexp.MustCompile(`(?i)\b(?:rated\s+)?([0-5](?:\.\d)?)\s*(?:\+|stars?\b|star\s+and\s+above\b)`)
	gstPattern       = regexp.MustCompile(`(?i)\bgst(?:[\s-]*verified)?\b`)
	trustSealPattern = regexp.MustCompile(`(?i)\btrust\s*seal\b`)
	verifiedPattern  = regexp.MustCompile(`(?i)\bverified\s+suppliers?\b`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

// PromptService interprets free-form directory queries such as
// "gst verified land surveyor in Patna".
type PromptService struct{}

// PromptResult contains the structured filters derived from a prompt.
type PromptResult struct {
	Query              string
	Location           string
	Rating             *float64
	IsGSTVerified      bool
	IsTrustSEAL        bool
	IsVerifiedSupplier bool
}

// NewPromptService creates a prompt parser.
func NewPromptService() *PromptService {
	return &PromptService{}
}

// Parse converts a prompt into structured search parameters.
func (s *PromptService) Parse(prompt string) (PromptResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return PromptResult{}, ErrEmptyPrompt
	}

	var result PromptResult

	if match := ratingPattern.FindStringSubmatch(prompt); len(match) > 1 {
		if rating, err := strconv.ParseFloat(match[1], 64); err == nil {
			result.Rating = &rating
		}
		prompt = strings.Replace(prompt, match[0], " ", 1)
	}
	if verifiedPattern.MatchString(prompt) {
		result.IsVerifiedSupplier = true
		prompt = verifiedPattern.ReplaceAllString(prompt, " ")
	}
	if trustSealPattern.MatchString(prompt) {
		result.IsTrustSEAL = true
		prompt = trustSealPattern.ReplaceAllString(prompt, " ")
	}
	if gstPattern.MatchString(prompt) {
		result.IsGSTVerified = true
		prompt = gstPattern.ReplaceAllString(prompt, " ")
	}

	prompt = collapse(prompt)
	result.Location, prompt = extractLocation(prompt)
	result.Query = collapse(stopwordExpr.ReplaceAllString(prompt, " "))

	return result, nil
}

// Apply fills filters the caller left empty. Explicit parameters always win.
func (r PromptResult) Apply(filters dto.SearchFilters) dto.SearchFilters {
	if strings.TrimSpace(filters.Query) == "" {
		filters.Query = r.Query
	}
	if strings.TrimSpace(filters.Location) == "" && strings.TrimSpace(filters.City) == "" {
		filters.Location = r.Location
	}
	if filters.Rating == nil && r.Rating != nil {
		rating := *r.Rating
		filters.Rating = &rating
	}
	if filters.IsGSTVerified == nil && r.IsGSTVerified {
		filters.IsGSTVerified = boolPtr(true)
	}
	if filters.IsTrustSEAL == nil && r.IsTrustSEAL {
		filters.IsTrustSEAL = boolPtr(true)
	}
	if filters.IsVerifiedSupplier == nil && r.IsVerifiedSupplier {
		filters.IsVerifiedSupplier = boolPtr(true)
	}
	return filters
}

func extractLocation(prompt string) (string, string) {
	match := locationPattern.FindStringSubmatchIndex(prompt)
	if match == nil {
		return "", prompt
	}
	location := titleCase(prompt[match[2]:match[3]])
	return location, strings.TrimSpace(prompt[:match[0]])
}

func collapse(value string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(value, " "))
}

func titleCase(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	parts := strings.Fields(value)
	for i, p := range parts {
		lower := strings.ToLower(p)
		if len(lower) == 0 {
			continue
		}
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func boolPtr(v bool) *bool { return &v }
