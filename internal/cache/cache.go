// Package cache implements the resolution cache: one Redis hash per domain
// holding a metadata field plus one serialized LinkRecord per key. Grouping a
// domain's links into a single hash keeps the hot path at one round trip
// (HMGET metadata + key) instead of one cache entry per link.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/link-router/internal/domain"
)

// metadataField is the reserved hash field for domain-level metadata.
// Link keys are lowercased and can never collide with it.
const metadataField = "_metadata"

// linkCacheTTL bounds how long a domain hash can live without a refresh.
// The management plane invalidates on edit; the TTL is the backstop that
// keeps an unmaintained entry from serving stale redirects forever.
const linkCacheTTL = 24 * time.Hour

// keyPrefix namespaces domain hashes in the shared Redis instance.
const keyPrefix = "linkcache:"

// LinkCache is the Redis-backed resolution cache.
type LinkCache struct {
	client *redis.Client
}

// New creates a LinkCache on top of the given Redis client.
func New(client *redis.Client) *LinkCache {
	return &LinkCache{client: client}
}

// hashKey returns the Redis key for a domain's link hash.
func hashKey(domainName string) string {
	return keyPrefix + domainName
}

// Get fetches the domain metadata and the link record for key in a single
// HMGET. Either return value may be nil when the field is absent; a non-nil
// error means the cache itself was unavailable.
func (c *LinkCache) Get(
	ctx context.Context,
	domainName, key string,
) (*domain.DomainMetadata, *domain.LinkRecord, error) {
	vals, err := c.client.HMGet(ctx, hashKey(domainName), metadataField, key).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("hmget %s: %w", domainName, err)
	}

	var meta *domain.DomainMetadata
	if raw, ok := vals[0].(string); ok {
		var m domain.DomainMetadata
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			meta = &m
		}
	}

	var link *domain.LinkRecord
	if raw, ok := vals[1].(string); ok {
		var l domain.LinkRecord
		if err := json.Unmarshal([]byte(raw), &l); err == nil {
			link = &l
		}
	}

	return meta, link, nil
}

// Set writes the metadata field and the link field back in one atomic HSET,
// then refreshes the hash TTL. Callers treat failures as best-effort: a lost
// write-back only means the next request repeats the store lookup.
func (c *LinkCache) Set(
	ctx context.Context,
	domainName, key string,
	meta *domain.DomainMetadata,
	link *domain.LinkRecord,
) error {
	fields := make([]any, 0, 4)

	if meta != nil {
		rawMeta, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		fields = append(fields, metadataField, rawMeta)
	}
	if link != nil {
		rawLink, err := json.Marshal(link)
		if err != nil {
			return fmt.Errorf("marshal link: %w", err)
		}
		fields = append(fields, key, rawLink)
	}
	if len(fields) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	pipe.HSet(ctx, hashKey(domainName), fields...)
	pipe.Expire(ctx, hashKey(domainName), linkCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("hset %s: %w", domainName, err)
	}

	return nil
}

// DeleteKey removes a single link field from the domain hash.
func (c *LinkCache) DeleteKey(ctx context.Context, domainName, key string) error {
	if err := c.client.HDel(ctx, hashKey(domainName), key).Err(); err != nil {
		return fmt.Errorf("hdel %s/%s: %w", domainName, key, err)
	}
	return nil
}

// DeleteDomain removes the whole domain hash, metadata included.
func (c *LinkCache) DeleteDomain(ctx context.Context, domainName string) error {
	if err := c.client.Del(ctx, hashKey(domainName)).Err(); err != nil {
		return fmt.Errorf("del %s: %w", domainName, err)
	}
	return nil
}
