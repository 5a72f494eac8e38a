package serp

import (
	"net/url"
	"strings"
)

// ExtractDomain returns the lowercased host of rawURL with scheme, port and
// a leading "www." removed. Bare hosts such as "shop.example" are accepted.
// Returns "" when no host can be found.
func ExtractDomain(rawURL string) string {
	s := strings.ToLower(strings.TrimSpace(rawURL))
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + strings.TrimPrefix(s, "//")
	}

	host := ""
	if u, err := url.Parse(s); err == nil {
		host = u.Hostname()
	} else {
		host = hostFallback(s)
	}

	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")
	return host
}

// hostFallback extracts a host from strings url.Parse rejects
func hostFallback(s string) string {
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s[i:], "]") {
		s = s[:i]
	}
	return s
}

// NormalizeDomain canonicalizes a caller-supplied domain the same way result
// URLs are, so both sides compare equal
func NormalizeDomain(domain string) string {
	return ExtractDomain(domain)
}
