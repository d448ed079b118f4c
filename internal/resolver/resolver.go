// Package resolver implements cache-aside link resolution: try the resolution
// cache, fall back to the primary store on miss, and write back what was
// found. Cache failures degrade to direct store lookups; they never fail a
// request on their own.
package resolver

import (
	"context"
	"errors"

	"github.com/jonesrussell/link-router/internal/domain"
	"github.com/jonesrussell/link-router/internal/metrics"
	"github.com/jonesrussell/link-router/internal/platform/logger"
	"github.com/jonesrussell/link-router/internal/storage"
)

// Cache is the resolution cache consumed by the resolver.
type Cache interface {
	Get(ctx context.Context, domainName, key string) (*domain.DomainMetadata, *domain.LinkRecord, error)
	Set(ctx context.Context, domainName, key string, meta *domain.DomainMetadata, link *domain.LinkRecord) error
}

// Store is the primary store gateway consumed by the resolver.
type Store interface {
	GetLink(ctx context.Context, domainName, key string) (*domain.LinkRecord, error)
	GetDomain(ctx context.Context, domainName string) (*domain.DomainMetadata, error)
}

// Resolution is the outcome of a lookup. Link is nil when no record exists;
// that is a routing outcome (redirect to root), not an error.
type Resolution struct {
	Link *domain.LinkRecord
	Meta *domain.DomainMetadata
	// CacheHit is true when both hash fields were served from the cache.
	CacheHit bool
}

// Resolver orchestrates cache-aside lookups.
type Resolver struct {
	cache Cache
	store Store
	log   logger.Logger
}

// New creates a Resolver with explicit dependencies.
func New(cache Cache, store Store, log logger.Logger) *Resolver {
	return &Resolver{cache: cache, store: store, log: log}
}

// Resolve looks up (domain, key), which must already be canonical.
//
// The hot path is a single multi-field cache read. On any miss the primary
// store is consulted and both hash fields are written back in one atomic
// write; the write-back is best effort. A store error is fatal for the
// request since there is no safe redirect target without it.
func (r *Resolver) Resolve(ctx context.Context, domainName, key string) (Resolution, error) {
	meta, link, cacheErr := r.cache.Get(ctx, domainName, key)
	if cacheErr != nil {
		metrics.CacheErrors.Inc()
		r.log.Warn("Resolution cache unavailable, degrading to store lookup",
			logger.String("domain", domainName),
			logger.Error(cacheErr),
		)
	}

	if meta != nil && link != nil {
		metrics.Resolutions.WithLabelValues("cache").Inc()
		return Resolution{Link: link, Meta: meta, CacheHit: true}, nil
	}

	storeLink, err := r.store.GetLink(ctx, domainName, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		metrics.Resolutions.WithLabelValues("miss").Inc()
		r.log.Debug("Link not found",
			logger.String("domain", domainName),
			logger.String("key", key),
			logger.Bool("cache_checked", cacheErr == nil),
		)
		return Resolution{Meta: meta}, nil
	case err != nil:
		return Resolution{}, err
	}

	metaWasMissing := meta == nil
	if metaWasMissing {
		meta = &domain.DomainMetadata{ProjectID: storeLink.ProjectID}
	}

	if cacheErr == nil {
		writeMeta := meta
		if !metaWasMissing {
			writeMeta = nil
		}
		if err := r.cache.Set(ctx, domainName, key, writeMeta, storeLink); err != nil {
			r.log.Warn("Cache write-back failed",
				logger.String("domain", domainName),
				logger.String("key", key),
				logger.Error(err),
			)
		}
	}

	metrics.Resolutions.WithLabelValues("store").Inc()
	r.log.Debug("Link resolved from store after cache miss",
		logger.String("domain", domainName),
		logger.String("key", key),
	)

	return Resolution{Link: storeLink, Meta: meta}, nil
}

// Domain resolves domain-level metadata alone, hydrating the cache's metadata
// field on miss. The click recorder uses it for root clicks with no link row.
func (r *Resolver) Domain(ctx context.Context, domainName string) (*domain.DomainMetadata, error) {
	meta, _, cacheErr := r.cache.Get(ctx, domainName, domain.RootKey)
	if cacheErr == nil && meta != nil {
		return meta, nil
	}

	meta, err := r.store.GetDomain(ctx, domainName)
	if err != nil {
		return nil, err
	}

	if cacheErr == nil {
		if err := r.cache.Set(ctx, domainName, "", meta, nil); err != nil {
			r.log.Warn("Domain metadata write-back failed",
				logger.String("domain", domainName),
				logger.Error(err),
			)
		}
	}

	return meta, nil
}
