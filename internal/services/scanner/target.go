package scanner

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"inclusiv/internal/domain"
)

// Target is a validated scan URL.
type Target struct {
	URL     string // fetched as-is
	Display string // scheme and trailing slash stripped
	Domain  string // registrable domain
}

// ParseTarget normalises user input into a fetchable http(s) URL. Bare hosts
// get https://. Anything without a usable scheme and host is rejected with
// domain.ErrInvalidURL.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("%w: empty", domain.ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", domain.ErrInvalidURL, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Target{}, fmt.Errorf("%w: missing host", domain.ErrInvalidURL)
	}
	if !strings.Contains(host, ".") && host != "localhost" && net.ParseIP(host) == nil {
		return Target{}, fmt.Errorf("%w: host %q is not resolvable", domain.ErrInvalidURL, host)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment, u.RawFragment = "", ""

	display := strings.TrimSuffix(u.Host+u.EscapedPath(), "/")
	if u.RawQuery != "" {
		display += "?" + u.RawQuery
	}

	registrable := host
	if net.ParseIP(host) == nil {
		if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			registrable = etld1
		}
	}
	return Target{URL: u.String(), Display: display, Domain: registrable}, nil
}
