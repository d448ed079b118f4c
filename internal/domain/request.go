package domain

// DeviceOS is the operating system family parsed from the user agent.
type DeviceOS string

const (
	OSUnknown DeviceOS = "Unknown"
	OSIOS     DeviceOS = "iOS"
	OSAndroid DeviceOS = "Android"
)

// RequestContext is the request-scoped data consumed by the routing decision
// engine. It is built once at the edge of the handler and treated as pure
// data afterwards.
type RequestContext struct {
	IP          string
	Country     string
	OS          DeviceOS
	UserAgent   string
	Referer     string
	IsBot       bool
	DoNotTrack  bool
	InspectMode bool
	// Password is the credential supplied via the pw query parameter, if any.
	Password string
}
