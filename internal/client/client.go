// Package client is a typed HTTP client for the directory search API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/entity"
)

// SeqHeader carries the request sequence token back to the caller.
const SeqHeader = "X-Search-Seq"

// ErrUnavailable is returned when the API answers 503.
var ErrUnavailable = errors.New("directory unavailable")

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("directory api: %d %s", e.StatusCode, e.Message)
}

// SearchResponse pairs a result with the sequence token of the request that produced it.
type SearchResponse struct {
	Seq    uint64
	Result dto.SearchResult
}

// Client calls the directory HTTP API.
type Client struct {
	http    *http.Client
	baseURL string
	seq     *Sequencer
}

// New builds a client for baseURL. A nil httpClient gets a 10s timeout.
func New(httpClient *http.Client, baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api base URL must not be empty")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid api base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{http: httpClient, baseURL: baseURL, seq: &Sequencer{}}, nil
}

// Search issues a search tagged with the next sequence token.
func (c *Client) Search(ctx context.Context, filters dto.SearchFilters) (SearchResponse, error) {
	seq := c.seq.Next()

	query := EncodeFilters(filters)
	query.Set("seq", strconv.FormatUint(seq, 10))

	var result dto.SearchResult
	header, err := c.get(ctx, "/api/directory/search?"+query.Encode(), &result)
	if err != nil {
		return SearchResponse{}, err
	}

	if echoed := header.Get(SeqHeader); echoed != "" && echoed != strconv.FormatUint(seq, 10) {
		return SearchResponse{}, fmt.Errorf("sequence mismatch: sent %d, got %s", seq, echoed)
	}
	return SearchResponse{Seq: seq, Result: result}, nil
}

// SearchLatest runs Search and commits the result to latest. It reports
// whether the result was kept; false means a newer search already landed.
func (c *Client) SearchLatest(ctx context.Context, filters dto.SearchFilters, latest *Latest[dto.SearchResult]) (bool, error) {
	resp, err := c.Search(ctx, filters)
	if err != nil {
		return false, err
	}
	return latest.Commit(resp.Seq, resp.Result), nil
}

// Provider fetches a single provider.
func (c *Client) Provider(ctx context.Context, id string) (entity.Provider, error) {
	var provider entity.Provider
	_, err := c.get(ctx, "/api/directory/providers/"+url.PathEscape(id), &provider)
	return provider, err
}

// Facets fetches the catalogue-wide filter options.
func (c *Client) Facets(ctx context.Context) (dto.FacetSummary, error) {
	var facets dto.FacetSummary
	_, err := c.get(ctx, "/api/directory/filters", &facets)
	return facets, err
}

func (c *Client) get(ctx context.Context, path string, out any) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: envelope.Message}
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, apiErr)
		}
		return nil, apiErr
	}

	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	return resp.Header, nil
}

// EncodeFilters renders filters as the query parameters the search endpoint accepts.
func EncodeFilters(f dto.SearchFilters) url.Values {
	v := url.Values{}
	setString := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			v.Set(key, value)
		}
	}
	setFloat := func(key string, value *float64) {
		if value != nil {
			v.Set(key, strconv.FormatFloat(*value, 'f', -1, 64))
		}
	}
	setBool := func(key string, value *bool) {
		if value != nil {
			v.Set(key, strconv.FormatBool(*value))
		}
	}

	setString("query", f.Query)
	setString("category", f.Category)
	setString("location", f.Location)
	setString("city", f.City)
	setString("state", f.State)
	setFloat("rating", f.Rating)
	setFloat("responseRate", f.ResponseRate)
	setBool("isGSTVerified", f.IsGSTVerified)
	setBool("isTrustSEAL", f.IsTrustSEAL)
	setBool("isVerifiedSupplier", f.IsVerifiedSupplier)
	setBool("isPremium", f.IsPremium)
	if f.MinYearsInBusiness != nil {
		v.Set("minYearsInBusiness", strconv.Itoa(*f.MinYearsInBusiness))
	}
	if f.PriceRange != nil {
		setFloat("minPrice", f.PriceRange.Min)
		setFloat("maxPrice", f.PriceRange.Max)
	}
	setString("sortBy", f.SortBy)
	setString("sortOrder", f.SortOrder)
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	setString("facetScope", f.FacetScope)
	return v
}
