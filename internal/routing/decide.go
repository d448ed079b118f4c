// Package routing picks a response action for a resolved link and request
// context. Decide is a pure function: no I/O, no clock reads (the evaluation
// instant is passed in), so every branch is table-testable.
package routing

import (
	"net/url"
	"time"

	"github.com/jonesrussell/link-router/internal/domain"
)

// Action identifies the response produced for a redirect request.
type Action string

const (
	ActionRedirectToRoot  Action = "redirect_root"
	ActionRewriteBanned   Action = "rewrite_banned"
	ActionRewriteExpired  Action = "rewrite_expired"
	ActionRewritePassword Action = "rewrite_password"
	ActionRewriteInspect  Action = "rewrite_inspect"
	ActionRewriteProxy    Action = "rewrite_proxy"
	ActionRewriteTarget   Action = "rewrite_target"
	ActionRedirectTarget  Action = "redirect_target"
	ActionRedirectIOS     Action = "redirect_ios"
	ActionRedirectAndroid Action = "redirect_android"
	ActionRedirectGeo     Action = "redirect_geo"
)

// Decision is the routing outcome. URL is the redirect destination or the
// internal rewrite path. RecordClick tells the caller whether to schedule
// click recording; gated branches (inspect, password, banned, expired) never
// record, and a do-not-track signal suppresses recording on every branch.
type Decision struct {
	Action      Action
	URL         string
	RecordClick bool
}

// Engine holds the fixed inputs of the decision chain.
type Engine struct {
	// bannedProjectID is the reserved tenant id for links taken down for
	// legal reasons.
	bannedProjectID string
	// rootURL is the fallback destination when no record matches.
	rootURL string
}

// NewEngine creates a decision engine.
func NewEngine(bannedProjectID, rootURL string) *Engine {
	return &Engine{bannedProjectID: bannedProjectID, rootURL: rootURL}
}

// Decide picks the response action. The branch order is load-bearing: the
// conditions are not mutually exclusive, and first match wins.
func (e *Engine) Decide(
	link *domain.LinkRecord,
	meta *domain.DomainMetadata,
	req domain.RequestContext,
	now time.Time,
) Decision {
	if link == nil {
		return Decision{Action: ActionRedirectToRoot, URL: e.rootURL}
	}

	if req.InspectMode && !link.HasPassword() {
		return Decision{Action: ActionRewriteInspect, URL: innerPath("inspect", link.Domain, link.Key)}
	}

	// The password gate short-circuits everything below it: no click is
	// recorded and the target is never revealed until the credential matches.
	if link.HasPassword() && req.Password != link.Password {
		return Decision{Action: ActionRewritePassword, URL: innerPath("password", link.Domain, link.Key)}
	}

	if meta != nil && e.bannedProjectID != "" && meta.ProjectID == e.bannedProjectID {
		return Decision{Action: ActionRewriteBanned, URL: "/banned/" + url.PathEscape(link.Domain)}
	}

	if link.Expired(now) {
		return Decision{Action: ActionRewriteExpired, URL: innerPath("expired", link.Domain, link.Key)}
	}

	// Every branch from here on is a successful visit; click recording is a
	// side effect scheduled by the caller, not a branch of its own.
	record := !req.DoNotTrack

	if link.URL == "" {
		// Free-tier domain roots have no destination of their own.
		return Decision{Action: ActionRedirectToRoot, URL: e.rootURL, RecordClick: record}
	}

	if req.IsBot && link.Proxy {
		return Decision{Action: ActionRewriteProxy, URL: innerPath("proxy", link.Domain, link.Key), RecordClick: record}
	}

	if link.Rewrite {
		if link.Iframeable {
			return Decision{Action: ActionRewriteTarget, URL: decodeTarget(link.URL), RecordClick: record}
		}
		return Decision{Action: ActionRedirectTarget, URL: decodeTarget(link.URL), RecordClick: record}
	}

	if req.OS == domain.OSIOS && link.IOS != "" {
		return Decision{Action: ActionRedirectIOS, URL: link.IOS, RecordClick: record}
	}

	if req.OS == domain.OSAndroid && link.Android != "" {
		return Decision{Action: ActionRedirectAndroid, URL: link.Android, RecordClick: record}
	}

	if geoURL, ok := link.Geo[req.Country]; ok && geoURL != "" {
		return Decision{Action: ActionRedirectGeo, URL: geoURL, RecordClick: record}
	}

	return Decision{Action: ActionRedirectTarget, URL: link.URL, RecordClick: record}
}

// innerPath builds the internal rewrite path for a fixed page.
func innerPath(page, domainName, key string) string {
	return "/" + page + "/" + url.PathEscape(domainName) + "/" + url.PathEscape(key)
}

// decodeTarget unescapes a percent-encoded destination before a rewrite is
// emitted. Undecodable values are served as stored.
func decodeTarget(target string) string {
	decoded, err := url.QueryUnescape(target)
	if err != nil {
		return target
	}
	return decoded
}
