// Package clicks records click telemetry off the redirect's critical path.
// Events flow through a non-blocking channel buffer into a background worker
// that dedups, enriches, emits to the analytics sink, and bumps counters.
// Everything here is best effort: a dropped or lost click is an accepted
// undercount, never a request failure.
package clicks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/link-router/internal/domain"
	"github.com/jonesrussell/link-router/internal/metrics"
	"github.com/jonesrussell/link-router/internal/platform/logger"
	"github.com/jonesrussell/link-router/internal/ratelimit"
)

// processTimeout bounds a single event's dedup, lookup, and emission.
const processTimeout = 5 * time.Second

// directReferer labels clicks that arrive without a referer.
const directReferer = "(direct)"

// Sink receives enriched click events.
type Sink interface {
	Emit(ctx context.Context, event domain.ClickEvent) error
}

// Counters are the best-effort primary store increments.
type Counters interface {
	IncrementLinkClicks(linkID string)
	IncrementDomainClicks(domainName string)
	IncrementProjectUsage(projectID string)
}

// DomainResolver supplies tenant identity for root clicks with no link row.
// It shares cache hydration with the link resolver.
type DomainResolver interface {
	Domain(ctx context.Context, domainName string) (*domain.DomainMetadata, error)
}

// Request is one click to record, handed over by the redirect handler.
type Request struct {
	// Link is the resolved record; nil for root clicks without one.
	Link    *domain.LinkRecord
	Domain  string
	Key     string
	URL     string
	Context domain.RequestContext
}

// Recorder buffers and processes click requests in the background.
type Recorder struct {
	dedup    ratelimit.Limiter
	sink     Sink
	counters Counters
	domains  DomainResolver
	log      logger.Logger

	requests chan Request
	closed   chan struct{}
	once     sync.Once
	wg       sync.WaitGroup

	now func() time.Time
}

// Option adjusts a Recorder.
type Option func(*Recorder)

// WithClock overrides the recorder's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a Recorder with the given dependencies and buffer size.
func NewRecorder(
	dedup ratelimit.Limiter,
	sink Sink,
	counters Counters,
	domains DomainResolver,
	log logger.Logger,
	bufferSize int,
	opts ...Option,
) *Recorder {
	r := &Recorder{
		dedup:    dedup,
		sink:     sink,
		counters: counters,
		domains:  domains,
		log:      log,
		requests: make(chan Request, bufferSize),
		closed:   make(chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the background worker.
func (r *Recorder) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop signals shutdown and waits for buffered requests to drain.
func (r *Recorder) Stop() {
	r.once.Do(func() { close(r.closed) })
	r.wg.Wait()
}

// Record performs a non-blocking hand-off of a click request.
// It returns false when the buffer is full and the click was dropped.
func (r *Recorder) Record(req Request) bool {
	select {
	case r.requests <- req:
		return true
	default:
		metrics.ClicksDropped.Inc()
		r.log.Warn("Click buffer full, dropping event",
			logger.String("domain", req.Domain),
			logger.String("key", req.Key),
		)
		return false
	}
}

// Len returns the number of buffered requests, for tests and health output.
func (r *Recorder) Len() int {
	return len(r.requests)
}

func (r *Recorder) loop() {
	defer r.wg.Done()

	for {
		select {
		case req := <-r.requests:
			r.process(req)
		case <-r.closed:
			r.drain()
			return
		}
	}
}

// drain processes whatever is still buffered at shutdown.
func (r *Recorder) drain() {
	for {
		select {
		case req := <-r.requests:
			r.process(req)
		default:
			return
		}
	}
}

// process runs the full record pipeline for one click.
func (r *Recorder) process(req Request) {
	if req.Context.IsBot {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	if !r.allow(ctx, req) {
		metrics.ClicksDeduped.Inc()
		return
	}

	linkID, projectID := r.identity(ctx, req)
	event := r.buildEvent(req, linkID, projectID)

	if err := r.sink.Emit(ctx, event); err != nil {
		metrics.SinkFailures.Inc()
		r.log.Warn("Analytics emission failed",
			logger.String("domain", req.Domain),
			logger.String("key", req.Key),
			logger.Error(err),
		)
	} else {
		metrics.ClicksEmitted.Inc()
	}

	if linkID != "" {
		r.counters.IncrementLinkClicks(linkID)
	} else {
		r.counters.IncrementDomainClicks(req.Domain)
	}
	if projectID != "" {
		r.counters.IncrementProjectUsage(projectID)
	}
}

// allow acquires a dedup slot for (ip, domain, key). A limiter failure fails
// open: a few double-counted clicks beat silently losing all of them.
func (r *Recorder) allow(ctx context.Context, req Request) bool {
	key := req.Context.IP + ":" + req.Domain + ":" + req.Key
	res, err := r.dedup.Allow(ctx, key)
	if err != nil {
		r.log.Warn("Click dedup unavailable, recording anyway",
			logger.Error(err),
		)
		return true
	}
	return res.Allowed
}

// identity resolves link and tenant ids, falling back to a domain lookup
// when the handler had no link row.
func (r *Recorder) identity(ctx context.Context, req Request) (linkID, projectID string) {
	if req.Link != nil {
		return req.Link.ID, req.Link.ProjectID
	}

	meta, err := r.domains.Domain(ctx, req.Domain)
	if err != nil {
		r.log.Warn("Domain identity lookup failed",
			logger.String("domain", req.Domain),
			logger.Error(err),
		)
		return "", ""
	}
	return "", meta.ProjectID
}

func (r *Recorder) buildEvent(req Request, linkID, projectID string) domain.ClickEvent {
	enriched := ParseUserAgent(req.Context.UserAgent)

	referer := req.Context.Referer
	if referer == "" {
		referer = directReferer
	}

	country := req.Context.Country
	if country == "" {
		country = unknown
	}

	return domain.ClickEvent{
		ID:        uuid.NewString(),
		Timestamp: r.now().UTC(),
		LinkID:    linkID,
		ProjectID: projectID,
		Domain:    req.Domain,
		Key:       req.Key,
		URL:       req.URL,
		Country:   country,
		Device:    enriched.Device,
		Browser:   enriched.Browser,
		OS:        enriched.OS,
		Engine:    enriched.Engine,
		Referer:   referer,
		Bot:       false,
	}
}
