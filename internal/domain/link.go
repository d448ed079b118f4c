// Package domain holds the data types shared by the resolver, the routing
// decision engine, and the click recorder.
package domain

import (
	"time"
)

// RootKey is the reserved key for a domain's root link. Stored links never
// use it directly; the normalizer substitutes it when the request path is
// empty.
const RootKey = "_root"

// LinkRecord is the resolved routing unit for a (domain, key) pair.
// JSON tags define the cache wire format for hash fields.
type LinkRecord struct {
	ID         string            `json:"id"`
	Domain     string            `json:"domain"`
	Key        string            `json:"key"`
	URL        string            `json:"url"`
	Password   string            `json:"password,omitempty"`
	Proxy      bool              `json:"proxy,omitempty"`
	Rewrite    bool              `json:"rewrite,omitempty"`
	Iframeable bool              `json:"iframeable,omitempty"`
	ExpiresAt  *time.Time        `json:"expiresAt,omitempty"`
	IOS        string            `json:"ios,omitempty"`
	Android    string            `json:"android,omitempty"`
	Geo        map[string]string `json:"geo,omitempty"`
	ProjectID  string            `json:"projectId"`
}

// HasPassword reports whether the link is protected by a password gate.
func (l *LinkRecord) HasPassword() bool {
	return l.Password != ""
}

// Expired reports whether the link's expiry instant, if any, is in the past.
func (l *LinkRecord) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// DomainMetadata is the per-domain record cached alongside link entries.
// It carries only what ban checks need, so a banned domain can be rejected
// without a full link lookup.
type DomainMetadata struct {
	ProjectID string `json:"projectId"`
}
