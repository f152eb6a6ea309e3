// Package urlnorm canonicalizes request URIs before a Destination is
// looked up (spec.md 4.10 "Canonicalize URI (punycode host, URL-encode
// path for non-ASCII)"), grounded on golang.org/x/net/idna for punycode
// and the standard library's net/url for percent-encoding, which is the
// same split the teacher's net/url-based request line construction uses
// (_teacher_ref/server.go imports "net/url" for its request URL).
package urlnorm

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Host converts a Unicode hostname to its ASCII (punycode) form, per
// spec.md 8 scenario 6 ("Go言語.com" -> "xn--go-hh0g6u.com"). Hosts that are
// already ASCII pass through unchanged.
func Host(host string) (string, error) {
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("urlnorm: invalid host %q: %w", host, err)
	}
	return ascii, nil
}

// HostEqual compares two hostnames for equality after punycode
// canonicalization, case-insensitively (spec.md 8 scenario 6 "case-
// insensitive compare").
func HostEqual(a, b string) bool {
	aa, errA := Host(a)
	bb, errB := Host(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return strings.EqualFold(aa, bb)
}

// Path URL-encodes any non-ASCII or reserved bytes in path so it is safe to
// place directly in an HTTP/1.1 or HTTP/2 request-line/:path pseudo-header
// (spec.md 4.10).
func Path(path string) string {
	u := &url.URL{Path: path}
	return u.EscapedPath()
}

// Normalize canonicalizes both host and path components of rawURL, per
// spec.md 4.10's "Canonicalize URI" step.
func Normalize(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("urlnorm: %w", err)
	}
	host := u.Hostname()
	asciiHost, err := Host(host)
	if err != nil {
		return nil, err
	}
	if port := u.Port(); port != "" {
		u.Host = asciiHost + ":" + port
	} else {
		u.Host = asciiHost
	}
	u.RawPath = Path(u.Path)
	return u, nil
}
