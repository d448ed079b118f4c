// Package linkkey canonicalizes inbound request paths into (domain, key)
// pairs. It is pure: no I/O, and malformed input is a defined error rather
// than a panic path.
package linkkey

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jonesrussell/link-router/internal/domain"
)

// ErrMissingDomain is returned when the request host is empty after
// normalization. Callers must treat it as "not resolvable".
var ErrMissingDomain = errors.New("missing domain")

// inspectSuffix marks a request for link inspection instead of a redirect.
const inspectSuffix = "+"

// LinkKey is a canonicalized (domain, key) pair.
type LinkKey struct {
	Domain  string
	Key     string
	Inspect bool
}

// Normalize canonicalizes a request host and path into a LinkKey.
// Keys are case-insensitive and stored lowercase; a trailing "+" requests
// inspect mode and is never part of the stored key; an empty key resolves to
// the domain's root link.
func Normalize(host, path string) (LinkKey, error) {
	domainName := normalizeHost(host)
	if domainName == "" {
		return LinkKey{}, ErrMissingDomain
	}

	key := strings.Trim(path, "/")
	if decoded, err := url.PathUnescape(key); err == nil {
		key = decoded
	}
	key = strings.ToLower(key)

	inspect := strings.HasSuffix(key, inspectSuffix)
	if inspect {
		key = strings.TrimSuffix(key, inspectSuffix)
	}

	if key == "" {
		key = domain.RootKey
	}

	return LinkKey{Domain: domainName, Key: key, Inspect: inspect}, nil
}

// normalizeHost strips an optional port and lowercases the host.
func normalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSpace(host))
}
