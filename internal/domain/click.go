package domain

import "time"

// ClickEvent is a single recorded click, enriched and forwarded to the
// analytics sink. It is write-only from this service's perspective.
type ClickEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	LinkID    string `json:"link_id"`
	ProjectID string `json:"project_id"`
	Domain    string `json:"domain"`
	Key       string `json:"key"`
	URL       string `json:"url"`

	Country string `json:"country"`
	Device  string `json:"device"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Engine  string `json:"engine"`
	Referer string `json:"referer"`
	Bot     bool   `json:"bot"`
}
