// Package webguard validates outward-facing web inputs: site domains
// supplied by tenants and URLs the service fetches on their behalf
// (SSRF prevention).
package webguard

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("webguard: only http and https schemes are allowed")

// ErrPrivateAddress is returned when a URL targets a private or loopback
// address.
var ErrPrivateAddress = errors.New("webguard: URL targets a private or loopback address")

// ErrInvalidDomain is returned when a site domain is not a plain hostname.
var ErrInvalidDomain = errors.New("webguard: invalid domain")

// ValidateURL checks that rawURL uses http/https, has a hostname, and
// does not resolve to a private or loopback IP. DNS resolution is
// performed to catch internal hostnames.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("webguard: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("webguard: URL has no host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateAddress
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		// DNS failure: allow through. The caller gets a network error at
		// connection time anyway.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrPrivateAddress
		}
	}
	return nil
}

// ValidateDomain checks that domain is a bare registrable hostname:
// dotted LDH labels, no scheme, no path, no port. This is a shape check
// only; no DNS resolution happens here.
func ValidateDomain(domain string) error {
	if domain == "" || len(domain) > 253 {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	if strings.ContainsAny(domain, "/:@?#") {
		return fmt.Errorf("%w: %q must not contain a scheme, port, or path", ErrInvalidDomain, domain)
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return fmt.Errorf("%w: %q has no top-level domain", ErrInvalidDomain, domain)
	}
	for _, label := range labels {
		if label == "" || len(label) > 63 {
			return fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
		}
		for _, r := range label {
			if !isLDH(r) {
				return fmt.Errorf("%w: invalid character %q in %q", ErrInvalidDomain, r, domain)
			}
		}
	}
	return nil
}

func isLDH(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '-'
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	privateRanges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"fc00::/7",
		"::1/128",
	}
	for _, pr := range privateRanges {
		_, cidr, err := net.ParseCIDR(pr)
		if err != nil {
			continue
		}
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
