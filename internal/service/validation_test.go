package service

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/octobees/provider-directory/internal/entity"
)

func TestNormalizePhone(t *testing.T) {
	tests := map[string]struct {
		raw    string
		region string
		expect string
	}{
		"indian mobile with spaces": {raw: "+91 98765 43210", region: "IN", expect: "+919876543210"},
		"national format":           {raw: "098765 43210", region: "IN", expect: "+919876543210"},
		"us number with region":     {raw: " (415) 555-1234 ", region: "US", expect: "+14155551234"},
		"too short":                 {raw: "12345", region: "IN", expect: ""},
		"empty":                     {raw: "", region: "IN", expect: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := normalizePhone(tt.raw, tt.region); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestCleanEmail(t *testing.T) {
	n := NewContactNormalizer("IN")

	if got := n.cleanEmail(context.Background(), " Info@KumarSurveyors.IN "); got != "info@kumarsurveyors.in" {
		t.Fatalf("expected lower-cased email, got %q", got)
	}
	for _, raw := range []string{"invalid@", "no-at-sign", "user@-bad.com", "user@nodot"} {
		if got := n.cleanEmail(context.Background(), raw); got != "" {
			t.Fatalf("expected %q to be dropped, got %q", raw, got)
		}
	}
}

func TestCleanEmailChecksMXWhenResolverSet(t *testing.T) {
	n := NewContactNormalizer("IN", WithDNSResolver(&stubDNSResolver{mx: map[string]bool{"example.com": true}}))

	if got := n.cleanEmail(context.Background(), "sales@example.com"); got != "sales@example.com" {
		t.Fatalf("expected email with MX to survive, got %q", got)
	}
	if got := n.cleanEmail(context.Background(), "sales@missingmx.com"); got != "" {
		t.Fatalf("expected email without MX to be dropped, got %q", got)
	}
}

func TestSanitizeWebsite(t *testing.T) {
	tests := map[string]string{
		"kumarsurveyors.in":                                 "https://kumarsurveyors.in",
		"http://kumarsurveyors.in/about?utm_source=ads&x=1": "https://kumarsurveyors.in/about?x=1",
		"not a url":                                         "",
		"":                                                  "",
	}
	for raw, expect := range tests {
		if got := sanitizeWebsite(raw); got != expect {
			t.Fatalf("sanitizeWebsite(%q): expected %q, got %q", raw, expect, got)
		}
	}
}

func TestContactNormalizer_Normalize(t *testing.T) {
	n := NewContactNormalizer("")
	if n.DefaultRegion != "IN" {
		t.Fatalf("expected default region IN, got %s", n.DefaultRegion)
	}

	input := entity.Provider{
		ID: "1",
		Contact: entity.Contact{
			Phone:   "98765 43210",
			Email:   "BAD-EMAIL",
			Website: "www.kumarsurveyors.in?utm_campaign=launch",
		},
	}
	got := n.Normalize(context.Background(), input)

	if got.Contact.Phone != "+919876543210" {
		t.Fatalf("unexpected phone: %s", got.Contact.Phone)
	}
	if got.Contact.Email != "" {
		t.Fatalf("expected invalid email to be dropped, got %s", got.Contact.Email)
	}
	if got.Contact.Website != "https://www.kumarsurveyors.in" {
		t.Fatalf("unexpected website: %s", got.Contact.Website)
	}
	if input.Contact.Email != "BAD-EMAIL" {
		t.Fatalf("input must not be modified")
	}
}

type stubDNSResolver struct {
	mx map[string]bool
}

func (s *stubDNSResolver) LookupMX(_ context.Context, domain string) ([]*net.MX, error) {
	if s.mx == nil {
		return nil, errors.New("no mx")
	}
	if ok := s.mx[domain]; ok {
		return []*net.MX{{Host: "mail." + domain, Pref: 10}}, nil
	}
	return nil, errors.New("no mx")
}
