package clicks

import (
	ua "github.com/mileusna/useragent"

	"github.com/jonesrussell/link-router/internal/domain"
)

// unknown is the fallback for every enrichment field the parser cannot fill.
const unknown = "Unknown"

// Enrichment holds the user-agent families attached to a click event.
type Enrichment struct {
	Device  string
	Browser string
	OS      string
	Engine  string
}

// ParseUserAgent extracts device, browser, OS, and engine families from a raw
// user-agent string, with Unknown fallbacks for every field.
func ParseUserAgent(raw string) Enrichment {
	parsed := ua.Parse(raw)

	e := Enrichment{
		Device:  deviceFamily(parsed),
		Browser: parsed.Name,
		OS:      parsed.OS,
		Engine:  engineFamily(parsed.Name),
	}
	if e.Browser == "" {
		e.Browser = unknown
	}
	if e.OS == "" {
		e.OS = unknown
	}

	return e
}

// OSFamily maps a parsed user agent onto the device-targeting families the
// routing engine understands.
func OSFamily(raw string) domain.DeviceOS {
	parsed := ua.Parse(raw)
	switch parsed.OS {
	case ua.IOS:
		return domain.OSIOS
	case ua.Android:
		return domain.OSAndroid
	default:
		return domain.OSUnknown
	}
}

func deviceFamily(parsed ua.UserAgent) string {
	switch {
	case parsed.Bot:
		return "Bot"
	case parsed.Mobile:
		return "Mobile"
	case parsed.Tablet:
		return "Tablet"
	case parsed.Desktop:
		return "Desktop"
	default:
		return unknown
	}
}

// engineFamily derives the rendering engine from the browser family. The
// parser does not report engines directly; the mapping below covers the
// browsers that matter for analytics dashboards.
func engineFamily(browser string) string {
	switch browser {
	case ua.Chrome, ua.Edge, ua.Opera, ua.OperaMini, ua.Vivaldi:
		return "Blink"
	case ua.Safari:
		return "WebKit"
	case ua.Firefox:
		return "Gecko"
	default:
		return unknown
	}
}
