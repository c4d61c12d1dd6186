package tenants

import (
	"regexp"
	"strings"
)

var hostnamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// NormalizeDomain lowercases a domain and strips a leading "@"
func NormalizeDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
}

// ValidDomain reports whether a normalized domain is a plausible hostname
func ValidDomain(domain string) bool {
	return len(domain) <= 253 && hostnamePattern.MatchString(domain)
}

// EmailDomain returns the normalized domain part of an email address, or "" if there is none
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return NormalizeDomain(email[at+1:])
}
