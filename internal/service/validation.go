package service

import (
	"context"
	"errors"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/net/idna"

	"github.com/octobees/provider-directory/internal/entity"
)

var (
	emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)
	idnaProfile  = idna.Lookup
)

const (
	trackingPrefix     = "utm_"
	defaultPhoneRegion = "IN"
)

// DNSResolver abstracts DNS lookups to simplify testing.
type DNSResolver interface {
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

// ContactNormalizer cleans the public contact channels of imported providers.
// Values that cannot be normalised are dropped rather than failing the import.
type ContactNormalizer struct {
	DefaultRegion string
	dnsResolver   DNSResolver
}

// ContactNormalizerOption configures optional dependencies.
type ContactNormalizerOption func(*ContactNormalizer)

// WithDNSResolver enables MX verification of email domains.
func WithDNSResolver(resolver DNSResolver) ContactNormalizerOption {
	return func(n *ContactNormalizer) {
		n.dnsResolver = resolver
	}
}

// WithSystemDNS enables MX verification through the host resolver.
func WithSystemDNS() ContactNormalizerOption {
	return WithDNSResolver(systemDNSResolver{})
}

// NewContactNormalizer builds a normalizer for the given default phone region.
func NewContactNormalizer(defaultRegion string, opts ...ContactNormalizerOption) *ContactNormalizer {
	region := strings.ToUpper(strings.TrimSpace(defaultRegion))
	if region == "" {
		region = defaultPhoneRegion
	}
	n := &ContactNormalizer{DefaultRegion: region}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns a copy of the provider with a cleaned Contact block.
func (n *ContactNormalizer) Normalize(ctx context.Context, provider entity.Provider) entity.Provider {
	provider.Contact = entity.Contact{
		Phone:   normalizePhone(provider.Contact.Phone, n.DefaultRegion),
		Email:   n.cleanEmail(ctx, provider.Contact.Email),
		Website: sanitizeWebsite(provider.Contact.Website),
	}
	return provider
}

func (n *ContactNormalizer) cleanEmail(ctx context.Context, raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return ""
	}

	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || !isDomainValid(domain) {
		return ""
	}
	asciiDomain, err := idnaProfile.ToASCII(domain)
	if err != nil || asciiDomain == "" {
		return ""
	}
	email = local + "@" + asciiDomain
	if !emailPattern.MatchString(email) {
		return ""
	}
	if n.dnsResolver != nil && !n.hasMXRecord(ctx, asciiDomain) {
		return ""
	}
	return email
}

func (n *ContactNormalizer) hasMXRecord(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	records, err := n.dnsResolver.LookupMX(ctx, domain)
	return err == nil && len(records) > 0
}

func sanitizeWebsite(raw string) string {
	u, err := sanitizeURL(raw)
	if err != nil {
		return ""
	}
	stripTracking(u)
	return u.String()
}

func sanitizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, errors.New("invalid url")
	}
	if !isDomainValid(strings.ToLower(u.Hostname())) {
		return nil, errors.New("invalid host")
	}
	u.Scheme = "https"
	return u, nil
}

func stripTracking(u *url.URL) {
	if u == nil {
		return
	}
	query := u.Query()
	changed := false
	for key := range query {
		if strings.HasPrefix(strings.ToLower(key), trackingPrefix) {
			query.Del(key)
			changed = true
		}
	}
	if changed {
		u.RawQuery = query.Encode()
	}
}

func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if region == "" {
		region = defaultPhoneRegion
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return ""
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return ""
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

func isDomainValid(domain string) bool {
	if strings.Count(domain, ".") == 0 {
		return false
	}
	for _, part := range strings.Split(domain, ".") {
		if part == "" || strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return false
		}
	}
	return true
}

type systemDNSResolver struct{}

func (systemDNSResolver) LookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	return net.DefaultResolver.LookupMX(ctx, domain)
}
