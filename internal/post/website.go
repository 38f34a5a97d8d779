// SPDX-License-Identifier: MIT

package post

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeWebsite canonicalizes a commenter's website URL:
// scheme is lowered and defaults to https, the host is converted to its
// ASCII (punycode) form, and userinfo/fragments are stripped.
func NormalizeWebsite(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	// Accept bare hosts like "example.com".
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse website url: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported website scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("website url %q is missing host", raw)
	}

	// Internationalized domains are stored in ASCII form so comparisons
	// and href rendering stay unambiguous.
	asciiHost, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("normalize website host %q: %w", host, err)
	}

	u.Scheme = scheme
	u.User = nil
	u.Fragment = ""
	if port := u.Port(); port != "" {
		u.Host = asciiHost + ":" + port
	} else {
		u.Host = asciiHost
	}

	return u.String(), nil
}
