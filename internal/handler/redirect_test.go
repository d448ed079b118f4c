package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/link-router/internal/clicks"
	"github.com/jonesrussell/link-router/internal/domain"
	"github.com/jonesrussell/link-router/internal/handler"
	"github.com/jonesrussell/link-router/internal/middleware"
	"github.com/jonesrussell/link-router/internal/platform/logger"
	"github.com/jonesrussell/link-router/internal/ratelimit"
	"github.com/jonesrussell/link-router/internal/resolver"
	"github.com/jonesrussell/link-router/internal/routing"
)

const (
	fallbackURL = "https://landing.example.com"
	bannedID    = "proj_banned"

	iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) " +
		"AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type fakeResolver struct {
	res resolver.Resolution
	err error
}

func (f *fakeResolver) Resolve(_ context.Context, _, _ string) (resolver.Resolution, error) {
	return f.res, f.err
}

type fakeRecorder struct {
	mu   sync.Mutex
	reqs []clicks.Request
}

func (f *fakeRecorder) Record(req clicks.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return true
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

type fakeGuard struct {
	allowed bool
	resetAt time.Time
	err     error
}

func (g *fakeGuard) Allow(_ context.Context, _ string) (ratelimit.Result, error) {
	if g.err != nil {
		return ratelimit.Result{}, g.err
	}
	return ratelimit.Result{Allowed: g.allowed, ResetAt: g.resetAt}, nil
}

type fixture struct {
	router   *gin.Engine
	recorder *fakeRecorder
}

func newFixture(res *fakeResolver, guard *fakeGuard, highValue []string) *fixture {
	gin.SetMode(gin.TestMode)

	rec := &fakeRecorder{}
	engine := routing.NewEngine(bannedID, fallbackURL)
	h := handler.NewRedirectHandler(res, engine, rec, guard, highValue, logger.NewNop())

	router := gin.New()
	router.Use(middleware.BotFilter())
	router.GET("/", h.Handle)
	router.GET("/:key", h.Handle)

	return &fixture{router: router, recorder: rec}
}

func get(f *fixture, target, userAgent string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func testLink() *domain.LinkRecord {
	return &domain.LinkRecord{
		ID:        "link_1",
		Domain:    "dub.sh",
		Key:       "abc",
		URL:       "https://example.com/landing",
		ProjectID: "proj_1",
	}
}

func resolved(link *domain.LinkRecord) *fakeResolver {
	res := resolver.Resolution{Link: link}
	if link != nil {
		res.Meta = &domain.DomainMetadata{ProjectID: link.ProjectID}
	}
	return &fakeResolver{res: res}
}

func TestHandle_PlainRedirect(t *testing.T) {
	f := newFixture(resolved(testLink()), &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/abc", chromeUA, nil)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://example.com/landing" {
		t.Errorf("location = %q", loc)
	}
	if f.recorder.count() != 1 {
		t.Errorf("recorded = %d, want 1", f.recorder.count())
	}
}

func TestHandle_NotFoundRedirectsToFallback(t *testing.T) {
	f := newFixture(&fakeResolver{}, &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/missing", chromeUA, nil)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != fallbackURL {
		t.Errorf("location = %q, want fallback", loc)
	}
	if f.recorder.count() != 0 {
		t.Errorf("not-found click recorded")
	}
}

func TestHandle_PasswordGateNeverLeaksTarget(t *testing.T) {
	link := testLink()
	link.Password = "hunter2"
	f := newFixture(resolved(link), &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/abc", chromeUA, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Password required") {
		t.Error("password form not rendered")
	}
	if strings.Contains(body, link.URL) {
		t.Error("target URL leaked into password page")
	}
	if f.recorder.count() != 0 {
		t.Errorf("gated click recorded")
	}
}

func TestHandle_PasswordMatchRedirects(t *testing.T) {
	link := testLink()
	link.Password = "hunter2"
	f := newFixture(resolved(link), &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/abc?pw=hunter2", chromeUA, nil)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != link.URL {
		t.Errorf("location = %q", loc)
	}
}

func TestHandle_DoNotTrackSuppressesRecording(t *testing.T) {
	for _, header := range []string{"DNT", "Sec-GPC"} {
		f := newFixture(resolved(testLink()), &fakeGuard{allowed: true}, nil)

		w := get(f, "http://dub.sh/abc", chromeUA, map[string]string{header: "1"})

		if w.Code != http.StatusFound {
			t.Fatalf("%s: status = %d, want 302", header, w.Code)
		}
		if f.recorder.count() != 0 {
			t.Errorf("%s: click recorded despite opt-out", header)
		}
	}
}

func TestHandle_ExpiredLink(t *testing.T) {
	link := testLink()
	past := time.Now().Add(-time.Hour)
	link.ExpiresAt = &past
	f := newFixture(resolved(link), &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/abc", chromeUA, nil)

	if w.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", w.Code)
	}
	if f.recorder.count() != 0 {
		t.Errorf("expired click recorded")
	}
}

func TestHandle_BannedTenant(t *testing.T) {
	res := resolved(testLink())
	res.res.Meta = &domain.DomainMetadata{ProjectID: bannedID}
	f := newFixture(res, &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/abc", chromeUA, nil)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
	if f.recorder.count() != 0 {
		t.Errorf("banned click recorded")
	}
}

func TestHandle_HighValueKeyRateLimited(t *testing.T) {
	guard := &fakeGuard{allowed: false, resetAt: time.Now().Add(time.Hour)}
	f := newFixture(resolved(testLink()), guard, []string{"abc"})

	w := get(f, "http://dub.sh/abc", chromeUA, nil)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if f.recorder.count() != 0 {
		t.Errorf("limited click recorded")
	}
}

func TestHandle_GuardOnlyAppliesToHighValueKeys(t *testing.T) {
	guard := &fakeGuard{allowed: false, resetAt: time.Now().Add(time.Hour)}
	f := newFixture(resolved(testLink()), guard, []string{"other"})

	w := get(f, "http://dub.sh/abc", chromeUA, nil)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 for unguarded key", w.Code)
	}
}

func TestHandle_GuardFailsOpen(t *testing.T) {
	guard := &fakeGuard{err: errors.New("redis down")}
	f := newFixture(resolved(testLink()), guard, []string{"abc"})

	w := get(f, "http://dub.sh/abc", chromeUA, nil)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 with guard down", w.Code)
	}
}

func TestHandle_BotGetsProxyPage(t *testing.T) {
	link := testLink()
	link.Proxy = true
	f := newFixture(resolved(link), &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/abc", "Googlebot/2.1 (+http://www.google.com/bot.html)", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `og:url`) {
		t.Error("proxy preview not rendered")
	}
}

func TestHandle_InspectSuffix(t *testing.T) {
	f := newFixture(resolved(testLink()), &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/abc+", chromeUA, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "https://example.com/landing") {
		t.Error("inspector does not show the destination")
	}
	if f.recorder.count() != 0 {
		t.Errorf("inspect recorded a click")
	}
}

func TestHandle_DeviceTargeting(t *testing.T) {
	link := testLink()
	link.IOS = "https://apps.apple.com/app/id123"
	f := newFixture(resolved(link), &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/abc", iphoneUA, nil)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != link.IOS {
		t.Errorf("location = %q, want iOS target", loc)
	}
}

func TestHandle_GeoTargeting(t *testing.T) {
	link := testLink()
	link.Geo = map[string]string{"US": "https://example.com/us"}
	f := newFixture(resolved(link), &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/abc", chromeUA, map[string]string{"CF-IPCountry": "US"})

	if loc := w.Header().Get("Location"); loc != "https://example.com/us" {
		t.Errorf("location = %q, want geo target", loc)
	}
}

func TestHandle_ResolverUnavailable(t *testing.T) {
	f := newFixture(&fakeResolver{err: errors.New("store down")}, &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/abc", chromeUA, nil)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestHandle_RootPath(t *testing.T) {
	link := testLink()
	link.Key = domain.RootKey
	f := newFixture(resolved(link), &fakeGuard{allowed: true}, nil)

	w := get(f, "http://dub.sh/", chromeUA, nil)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != link.URL {
		t.Errorf("location = %q", loc)
	}
}
