package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/octobees/provider-directory/internal/catalog"
	"github.com/octobees/provider-directory/internal/dto"
	"github.com/octobees/provider-directory/internal/handler"
	"github.com/octobees/provider-directory/internal/service"
)

const testSeed = `providers:
  - id: "a"
    businessName: Alpha Surveyors
    category: land-surveyor
    location: {city: Patna, state: Bihar}
    rating: {average: 4.8, count: 10}
  - id: "b"
    businessName: Beta Surveyors
    category: land-surveyor
    location: {city: Gaya, state: Bihar}
    rating: {average: 3.9, count: 4}
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidateSeed(t *testing.T) {
	out, err := run(t, "validate-seed", writeSeed(t, testSeed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "2 providers ok") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestValidateSeed_RejectsDuplicates(t *testing.T) {
	dup := testSeed + `  - id: "a"
    businessName: Alpha Again
`
	if _, err := run(t, "validate-seed", writeSeed(t, dup)); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestSeed_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := run(t, "seed", writeSeed(t, testSeed))
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected missing DATABASE_URL error, got %v", err)
	}
}

func TestSearchParams(t *testing.T) {
	values, err := searchParams([]string{"surveyor"}, []string{"city=Patna", " sortBy = rating"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values.Get("query") != "surveyor" || values.Get("city") != "Patna" || values.Get("sortBy") != "rating" {
		t.Fatalf("unexpected values: %v", values)
	}

	if _, err := searchParams(nil, []string{"novalue"}); err == nil {
		t.Fatalf("expected error for malformed pair")
	}
}

func TestSearch_AgainstServer(t *testing.T) {
	store := catalog.NewStore(catalog.NewStaticSource(writeSeed(t, testSeed)), 0)
	h := handler.NewDirectoryHandler(service.NewDirectoryService(store), nil)

	e := echo.New()
	e.GET("/api/directory/search", h.Search)
	srv := httptest.NewServer(e)
	defer srv.Close()

	out, err := run(t, "--base-url", srv.URL, "search", "-p", "city=Patna")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result dto.SearchResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if result.Total != 1 || len(result.Providers) != 1 || result.Providers[0].ID != "a" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestSearch_RejectsInvalidParams(t *testing.T) {
	_, err := run(t, "search", "-p", "rating=eleven")
	if err == nil || !strings.Contains(err.Error(), "rating") {
		t.Fatalf("expected invalid rating error, got %v", err)
	}
}

func TestLineFilters(t *testing.T) {
	filters, err := lineFilters("land  surveyor city=Patna sortBy=rating")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filters.Query != "land surveyor" || filters.City != "Patna" || filters.SortBy != "rating" {
		t.Fatalf("unexpected filters: %+v", filters)
	}

	if _, err := lineFilters("surveyor rating=high"); err == nil {
		t.Fatalf("expected invalid rating error")
	}
}

// notifyBuffer is a goroutine-safe writer that signals every write.
type notifyBuffer struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	writes chan struct{}
}

func (b *notifyBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.buf.Write(p)
	select {
	case b.writes <- struct{}{}:
	default:
	}
	return n, err
}

func (b *notifyBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_DropsResponsesOlderThanPrinted(t *testing.T) {
	store := catalog.NewStore(catalog.NewStaticSource(writeSeed(t, testSeed)), 0)
	h := handler.NewDirectoryHandler(service.NewDirectoryService(store), nil)
	e := echo.New()
	e.GET("/api/directory/search", h.Search)

	alphaArrived := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "alpha" {
			close(alphaArrived)
			<-release
		}
		e.ServeHTTP(w, r)
	}))
	defer srv.Close()

	in, feed := io.Pipe()
	out := &notifyBuffer{writes: make(chan struct{}, 1)}
	var stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--base-url", srv.URL, "watch"})

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	io.WriteString(feed, "alpha\n")
	<-alphaArrived
	io.WriteString(feed, "beta city=Gaya\n")

	select {
	case <-out.writes:
	case <-time.After(5 * time.Second):
		t.Fatalf("newer search was never printed")
	}
	close(release)
	feed.Close()

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v (stderr %q)", err, stderr.String())
	}

	var lines []watchResult
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	for scanner.Scan() {
		var line watchResult
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 1 {
		t.Fatalf("expected only the newer result, got %d lines:\n%s", len(lines), out.String())
	}
	if lines[0].Seq != 2 || lines[0].Total != 1 || lines[0].Providers[0].ID != "b" {
		t.Fatalf("unexpected result: %+v", lines[0])
	}
}

func TestWatch_SkipsMalformedLines(t *testing.T) {
	store := catalog.NewStore(catalog.NewStaticSource(writeSeed(t, testSeed)), 0)
	h := handler.NewDirectoryHandler(service.NewDirectoryService(store), nil)
	e := echo.New()
	e.GET("/api/directory/search", h.Search)
	srv := httptest.NewServer(e)
	defer srv.Close()

	cmd := newRootCmd()
	var out, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader("rating=eleven\n\n"))
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--base-url", srv.URL, "watch"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no results, got %q", out.String())
	}
	if !strings.Contains(stderr.String(), "rating") {
		t.Fatalf("expected skipped line to be reported, got %q", stderr.String())
	}
}
