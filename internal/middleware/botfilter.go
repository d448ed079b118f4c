package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	ua "github.com/mileusna/useragent"
)

// IsBotKey is the context key set for bot-classified requests.
const IsBotKey = "is_bot"

// botPatterns are crawler User-Agent substrings (lowercase) that the generic
// parser misses, mostly link-preview and SEO fetchers.
var botPatterns = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot",
	"baiduspider", "yandexbot", "facebookexternalhit",
	"twitterbot", "rogerbot", "linkedinbot", "embedly",
	"quora link preview", "showyoubot", "outbrain",
	"pinterest", "applebot", "semrushbot", "ahrefsbot",
	"mj12bot", "dotbot", "petalbot", "bytespider",
	"whatsapp", "telegrambot", "slackbot", "discordbot",
}

// BotFilter sets IsBotKey for bot-classified requests. Handlers keep serving
// bots (proxied links need the cloaked page), they only skip click recording.
func BotFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawUA := c.Request.UserAgent()
		if rawUA == "" || IsBot(rawUA) {
			c.Set(IsBotKey, true)
		}
		c.Next()
	}
}

// IsBot classifies a user-agent string.
func IsBot(rawUA string) bool {
	if ua.Parse(rawUA).Bot {
		return true
	}

	lower := strings.ToLower(rawUA)
	for _, pattern := range botPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
