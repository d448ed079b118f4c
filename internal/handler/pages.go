package handler

import (
	"fmt"
	"html"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/link-router/internal/domain"
)

// The rewrite pages are deliberately plain: served under the short domain
// with no 3xx hop, so the URL bar keeps the link the visitor clicked.

const htmlContentType = "text/html; charset=utf-8"

func renderBanned(c *gin.Context) {
	c.Data(http.StatusForbidden, htmlContentType, []byte(
		`<!doctype html><html><head><title>Link unavailable</title></head>`+
			`<body><h1>Link unavailable</h1>`+
			`<p>This link has been disabled for violating our terms of service.</p>`+
			`</body></html>`))
}

func renderExpired(c *gin.Context) {
	c.Data(http.StatusGone, htmlContentType, []byte(
		`<!doctype html><html><head><title>Link expired</title></head>`+
			`<body><h1>Link expired</h1>`+
			`<p>This link has expired and no longer points anywhere.</p>`+
			`</body></html>`))
}

// renderPassword serves the credential form. Submitting reloads the short
// link with the pw query parameter; the handler never echoes the target.
func renderPassword(c *gin.Context, key string) {
	body := fmt.Sprintf(
		`<!doctype html><html><head><title>Password required</title></head>`+
			`<body><h1>Password required</h1>`+
			`<form method="get" action="%s">`+
			`<input type="password" name="pw" autofocus>`+
			`<button type="submit">Continue</button>`+
			`</form></body></html>`,
		passwordAction(key),
	)
	c.Data(http.StatusOK, htmlContentType, []byte(body))
}

// passwordAction is the form target: the short link itself.
func passwordAction(key string) string {
	if key == "" || key == domain.RootKey {
		return "/"
	}
	return "/" + url.PathEscape(key)
}

// renderInspect shows where a link points without following it.
func renderInspect(c *gin.Context, link *domain.LinkRecord) {
	body := fmt.Sprintf(
		`<!doctype html><html><head><title>Link inspector</title></head>`+
			`<body><h1>Link inspector</h1>`+
			`<p><code>%s/%s</code> points to:</p>`+
			`<p><a href="%s" rel="noreferrer nofollow">%s</a></p>`+
			`</body></html>`,
		html.EscapeString(link.Domain),
		html.EscapeString(link.Key),
		html.EscapeString(link.URL),
		html.EscapeString(link.URL),
	)
	c.Data(http.StatusOK, htmlContentType, []byte(body))
}

// renderProxy serves the social preview page crawlers see instead of the
// destination. The canonical URL stays on the short domain.
func renderProxy(c *gin.Context, link *domain.LinkRecord) {
	shortURL := "https://" + link.Domain + "/" + url.PathEscape(link.Key)
	body := fmt.Sprintf(
		`<!doctype html><html><head>`+
			`<title>%s</title>`+
			`<meta property="og:title" content="%s">`+
			`<meta property="og:url" content="%s">`+
			`<link rel="canonical" href="%s">`+
			`</head><body></body></html>`,
		html.EscapeString(link.Key),
		html.EscapeString(link.Key),
		html.EscapeString(shortURL),
		html.EscapeString(shortURL),
	)
	c.Data(http.StatusOK, htmlContentType, []byte(body))
}

// renderFrame embeds an iframeable destination under the short domain.
func renderFrame(c *gin.Context, target string) {
	body := fmt.Sprintf(
		`<!doctype html><html><head><title></title>`+
			`<style>html,body,iframe{margin:0;height:100%%;width:100%%;border:0}</style>`+
			`</head><body>`+
			`<iframe src="%s"></iframe>`+
			`</body></html>`,
		html.EscapeString(target),
	)
	c.Data(http.StatusOK, htmlContentType, []byte(body))
}

// Banned serves the takedown page at its direct address.
func (h *RedirectHandler) Banned(c *gin.Context) {
	renderBanned(c)
}

// Expired serves the expiry page at its direct address.
func (h *RedirectHandler) Expired(c *gin.Context) {
	renderExpired(c)
}

// Password serves the credential form at its direct address.
func (h *RedirectHandler) Password(c *gin.Context) {
	renderPassword(c, c.Param("key"))
}

// Inspect serves the inspector at its direct address. Password-protected
// links show the credential form instead; the target stays hidden.
func (h *RedirectHandler) Inspect(c *gin.Context) {
	link := h.lookupPage(c)
	if link == nil {
		return
	}
	if link.HasPassword() {
		renderPassword(c, link.Key)
		return
	}
	renderInspect(c, link)
}

// Proxy serves the preview page at its direct address.
func (h *RedirectHandler) Proxy(c *gin.Context) {
	link := h.lookupPage(c)
	if link == nil {
		return
	}
	renderProxy(c, link)
}

// lookupPage resolves the link named by the page route params, responding
// itself when there is nothing to render.
func (h *RedirectHandler) lookupPage(c *gin.Context) *domain.LinkRecord {
	res, err := h.resolver.Resolve(c.Request.Context(), c.Param("domain"), c.Param("key"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "resolution unavailable"})
		return nil
	}
	if res.Link == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "link not found"})
		return nil
	}
	return res.Link
}
