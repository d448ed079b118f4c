package routing_test

import (
	"testing"
	"time"

	"github.com/jonesrussell/link-router/internal/domain"
	"github.com/jonesrussell/link-router/internal/routing"
)

const bannedProject = "proj_banned"

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func engine() *routing.Engine {
	return routing.NewEngine(bannedProject, "https://dub.sh")
}

func baseLink() *domain.LinkRecord {
	return &domain.LinkRecord{
		ID:        "link_1",
		Domain:    "dub.sh",
		Key:       "x",
		URL:       "https://example.com",
		ProjectID: "proj_1",
	}
}

func meta(projectID string) *domain.DomainMetadata {
	return &domain.DomainMetadata{ProjectID: projectID}
}

func past() *time.Time {
	t := now.Add(-time.Hour)
	return &t
}

func TestDecide_NotFoundRedirectsToRoot(t *testing.T) {
	d := engine().Decide(nil, nil, domain.RequestContext{}, now)

	if d.Action != routing.ActionRedirectToRoot {
		t.Fatalf("action = %s, want %s", d.Action, routing.ActionRedirectToRoot)
	}
	if d.URL != "https://dub.sh" {
		t.Errorf("url = %q", d.URL)
	}
	if d.RecordClick {
		t.Error("missing record must not trigger click recording")
	}
}

func TestDecide_Precedence(t *testing.T) {
	expired := past()

	tests := []struct {
		name   string
		modify func(*domain.LinkRecord)
		meta   *domain.DomainMetadata
		req    domain.RequestContext
		want   routing.Action
	}{
		{
			name:   "inspect wins without password",
			modify: func(l *domain.LinkRecord) { l.ExpiresAt = expired },
			meta:   meta(bannedProject),
			req:    domain.RequestContext{InspectMode: true},
			want:   routing.ActionRewriteInspect,
		},
		{
			name:   "password beats inspect",
			modify: func(l *domain.LinkRecord) { l.Password = "secret" },
			req:    domain.RequestContext{InspectMode: true},
			want:   routing.ActionRewritePassword,
		},
		{
			name:   "password beats banned and expired",
			modify: func(l *domain.LinkRecord) { l.Password = "secret"; l.ExpiresAt = expired },
			meta:   meta(bannedProject),
			req:    domain.RequestContext{},
			want:   routing.ActionRewritePassword,
		},
		{
			name:   "banned beats expired",
			modify: func(l *domain.LinkRecord) { l.ExpiresAt = expired },
			meta:   meta(bannedProject),
			req:    domain.RequestContext{},
			want:   routing.ActionRewriteBanned,
		},
		{
			name:   "expired beats proxy and overrides",
			modify: func(l *domain.LinkRecord) { l.ExpiresAt = expired; l.Proxy = true; l.IOS = "https://apps.apple.com/x" },
			req:    domain.RequestContext{IsBot: true, OS: domain.OSIOS},
			want:   routing.ActionRewriteExpired,
		},
		{
			name:   "bot with proxy gets cloaked page",
			modify: func(l *domain.LinkRecord) { l.Proxy = true; l.Rewrite = true },
			req:    domain.RequestContext{IsBot: true},
			want:   routing.ActionRewriteProxy,
		},
		{
			name:   "bot without proxy falls through",
			modify: func(l *domain.LinkRecord) {},
			req:    domain.RequestContext{IsBot: true},
			want:   routing.ActionRedirectTarget,
		},
		{
			name:   "rewrite iframeable beats device overrides",
			modify: func(l *domain.LinkRecord) { l.Rewrite = true; l.Iframeable = true; l.IOS = "https://apps.apple.com/x" },
			req:    domain.RequestContext{OS: domain.OSIOS},
			want:   routing.ActionRewriteTarget,
		},
		{
			name:   "rewrite non-iframeable degrades to redirect",
			modify: func(l *domain.LinkRecord) { l.Rewrite = true },
			req:    domain.RequestContext{},
			want:   routing.ActionRedirectTarget,
		},
		{
			name:   "ios override beats android and geo",
			modify: func(l *domain.LinkRecord) { l.IOS = "https://apps.apple.com/x"; l.Android = "https://play.google.com/x"; l.Geo = map[string]string{"US": "https://example.com/us"} },
			req:    domain.RequestContext{OS: domain.OSIOS, Country: "US"},
			want:   routing.ActionRedirectIOS,
		},
		{
			name:   "android override beats geo",
			modify: func(l *domain.LinkRecord) { l.Android = "https://play.google.com/x"; l.Geo = map[string]string{"US": "https://example.com/us"} },
			req:    domain.RequestContext{OS: domain.OSAndroid, Country: "US"},
			want:   routing.ActionRedirectAndroid,
		},
		{
			name:   "geo match",
			modify: func(l *domain.LinkRecord) { l.Geo = map[string]string{"US": "https://example.com/us"} },
			req:    domain.RequestContext{Country: "US"},
			want:   routing.ActionRedirectGeo,
		},
		{
			name:   "plain redirect",
			modify: func(l *domain.LinkRecord) {},
			req:    domain.RequestContext{},
			want:   routing.ActionRedirectTarget,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link := baseLink()
			tt.modify(link)
			m := tt.meta
			if m == nil {
				m = meta("proj_1")
			}

			d := engine().Decide(link, m, tt.req, now)
			if d.Action != tt.want {
				t.Errorf("action = %s, want %s", d.Action, tt.want)
			}
		})
	}
}

func TestDecide_PasswordGateNeverLeaks(t *testing.T) {
	link := baseLink()
	link.Password = "secret"

	for _, supplied := range []string{"", "wrong", "SECRET"} {
		d := engine().Decide(link, meta("proj_1"), domain.RequestContext{Password: supplied}, now)

		if d.Action == routing.ActionRedirectTarget || d.Action == routing.ActionRewriteTarget {
			t.Fatalf("password gate leaked the target for pw=%q", supplied)
		}
		if d.RecordClick {
			t.Errorf("blocked request must not record a click (pw=%q)", supplied)
		}
		if d.URL == link.URL {
			t.Errorf("decision URL exposes the destination for pw=%q", supplied)
		}
	}
}

func TestDecide_CorrectPasswordPassesThrough(t *testing.T) {
	link := baseLink()
	link.Password = "secret"

	d := engine().Decide(link, meta("proj_1"), domain.RequestContext{Password: "secret"}, now)

	if d.Action != routing.ActionRedirectTarget {
		t.Fatalf("action = %s, want %s", d.Action, routing.ActionRedirectTarget)
	}
	if d.URL != "https://example.com" {
		t.Errorf("url = %q", d.URL)
	}
	if !d.RecordClick {
		t.Error("successful visit should record a click")
	}
}

func TestDecide_DoNotTrackSuppressesRecording(t *testing.T) {
	d := engine().Decide(baseLink(), meta("proj_1"), domain.RequestContext{DoNotTrack: true}, now)

	if d.Action != routing.ActionRedirectTarget {
		t.Fatalf("action = %s", d.Action)
	}
	if d.RecordClick {
		t.Error("do-not-track must suppress click recording")
	}
}

func TestDecide_EmptyTargetRedirectsToRoot(t *testing.T) {
	link := baseLink()
	link.URL = ""

	d := engine().Decide(link, meta("proj_1"), domain.RequestContext{}, now)

	if d.Action != routing.ActionRedirectToRoot {
		t.Fatalf("action = %s, want %s", d.Action, routing.ActionRedirectToRoot)
	}
}

func TestDecide_RewriteDecodesTarget(t *testing.T) {
	link := baseLink()
	link.Rewrite = true
	link.Iframeable = true
	link.URL = "https%3A%2F%2Fexample.com%2Fpath%3Fa%3D1"

	d := engine().Decide(link, meta("proj_1"), domain.RequestContext{}, now)

	if d.URL != "https://example.com/path?a=1" {
		t.Errorf("url = %q, want decoded destination", d.URL)
	}
}

func TestDecide_GeoScenarios(t *testing.T) {
	link := baseLink()
	link.Geo = map[string]string{"US": "https://example.com/us"}

	us := engine().Decide(link, meta("proj_1"), domain.RequestContext{Country: "US"}, now)
	if us.Action != routing.ActionRedirectGeo || us.URL != "https://example.com/us" {
		t.Errorf("US visitor: got %s %q", us.Action, us.URL)
	}

	fr := engine().Decide(link, meta("proj_1"), domain.RequestContext{Country: "FR"}, now)
	if fr.Action != routing.ActionRedirectTarget || fr.URL != "https://example.com" {
		t.Errorf("FR visitor: got %s %q", fr.Action, fr.URL)
	}
}
