package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/link-router/internal/middleware"
)

func botRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.BotFilter())
	r.GET("/x", func(c *gin.Context) {
		if isBot, exists := c.Get(middleware.IsBotKey); exists && isBot == true {
			c.String(http.StatusOK, "bot")
			return
		}
		c.String(http.StatusOK, "human")
	})
	return r
}

func classify(t *testing.T, userAgent string) string {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", http.NoBody)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	botRouter().ServeHTTP(w, req)
	return w.Body.String()
}

func TestBotFilter_AllowsNormalUA(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	if got := classify(t, ua); got != "human" {
		t.Fatalf("expected 'human' for normal UA, got %q", got)
	}
}

func TestBotFilter_FlagsGooglebot(t *testing.T) {
	if got := classify(t, "Googlebot/2.1 (+http://www.google.com/bot.html)"); got != "bot" {
		t.Fatalf("expected 'bot' for Googlebot, got %q", got)
	}
}

func TestBotFilter_FlagsLinkPreviewFetcher(t *testing.T) {
	if got := classify(t, "WhatsApp/2.23.20 A"); got != "bot" {
		t.Fatalf("expected 'bot' for WhatsApp preview, got %q", got)
	}
}

func TestBotFilter_FlagsMissingUA(t *testing.T) {
	if got := classify(t, ""); got != "bot" {
		t.Fatalf("expected 'bot' for missing UA, got %q", got)
	}
}
