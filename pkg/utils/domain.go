package utils

import (
	"regexp"
	"strings"
)

const (
	// MaxDomainLength is the maximum length accepted for a route domain
	MaxDomainLength = 253
)

// domainRegex validates a fully qualified domain name. It requires at least
// one dot, so bare hostnames like "localhost" are rejected on write paths.
var domainRegex = regexp.MustCompile(
	`^(?:[a-zA-Z0-9](?:[a-zA-Z0-9-_]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z0-9][a-zA-Z0-9-_]{0,61}[a-zA-Z]$`,
)

// StripPort removes any ":port" suffix from a host string.
func StripPort(host string) string {
	if i := strings.Index(host, ":"); i >= 0 {
		return host[:i]
	}
	return host
}

// NormalizeDomain strips the port and lowercases a host string so that
// lookups are case-insensitive regardless of how the route was stored.
func NormalizeDomain(host string) string {
	return strings.ToLower(strings.TrimSpace(StripPort(host)))
}

// IsValidDomain reports whether the given value is a valid domain name.
func IsValidDomain(domain string) bool {
	if domain == "" || len(domain) > MaxDomainLength {
		return false
	}
	return domainRegex.MatchString(domain)
}
