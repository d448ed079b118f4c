// Package storage is the primary store gateway: point lookups of link and
// domain rows plus best-effort counter increments against PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/link-router/internal/domain"
	"github.com/jonesrussell/link-router/internal/platform/logger"
)

// ErrNotFound is returned when no row matches a point lookup.
var ErrNotFound = errors.New("not found")

// counterTimeout bounds the detached counter increments, which run off the
// request path.
const counterTimeout = 2 * time.Second

// LinkStore reads link and domain rows and increments their counters.
type LinkStore struct {
	db  *sql.DB
	log logger.Logger
}

// NewLinkStore creates a LinkStore over the given database handle.
func NewLinkStore(db *sql.DB, log logger.Logger) *LinkStore {
	return &LinkStore{db: db, log: log}
}

const linkColumns = `id, domain, key, url,
	COALESCE(password, ''), proxy, rewrite, iframeable,
	expires_at, COALESCE(ios, ''), COALESCE(android, ''), geo, project_id`

// GetLink fetches a single link row by (domain, key). The key is expected to
// be canonical (lowercased, root sentinel applied).
func (s *LinkStore) GetLink(ctx context.Context, domainName, key string) (*domain.LinkRecord, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE domain = $1 AND key = $2`

	row := s.db.QueryRowContext(ctx, query, domainName, key)

	var (
		link      domain.LinkRecord
		expiresAt sql.NullTime
		geoRaw    []byte
	)

	err := row.Scan(
		&link.ID, &link.Domain, &link.Key, &link.URL,
		&link.Password, &link.Proxy, &link.Rewrite, &link.Iframeable,
		&expiresAt, &link.IOS, &link.Android, &geoRaw, &link.ProjectID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query link %s/%s: %w", domainName, key, err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		link.ExpiresAt = &t
	}
	if len(geoRaw) > 0 {
		if err := json.Unmarshal(geoRaw, &link.Geo); err != nil {
			return nil, fmt.Errorf("decode geo for %s/%s: %w", domainName, key, err)
		}
	}

	return &link, nil
}

// GetDomain fetches domain-level metadata by domain name.
func (s *LinkStore) GetDomain(ctx context.Context, domainName string) (*domain.DomainMetadata, error) {
	query := `SELECT project_id FROM domains WHERE slug = $1`

	var meta domain.DomainMetadata
	err := s.db.QueryRowContext(ctx, query, domainName).Scan(&meta.ProjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query domain %s: %w", domainName, err)
	}

	return &meta, nil
}

// IncrementLinkClicks bumps the click counter on a link row. Best effort:
// failures are logged, never returned to the redirect path.
func (s *LinkStore) IncrementLinkClicks(linkID string) {
	s.increment(
		`UPDATE links SET clicks = clicks + 1, last_clicked_at = NOW() WHERE id = $1`,
		linkID, "link",
	)
}

// IncrementDomainClicks bumps the click counter on a domain row, used for
// root-link clicks with no explicit link record.
func (s *LinkStore) IncrementDomainClicks(domainName string) {
	s.increment(
		`UPDATE domains SET clicks = clicks + 1, last_clicked_at = NOW() WHERE slug = $1`,
		domainName, "domain",
	)
}

// IncrementProjectUsage bumps the owning tenant's usage counter.
func (s *LinkStore) IncrementProjectUsage(projectID string) {
	s.increment(
		`UPDATE projects SET usage = usage + 1 WHERE id = $1`,
		projectID, "project",
	)
}

// increment runs a single counter update with its own timeout. Lost updates
// under partial failure are reconciled by the analytics batch job.
func (s *LinkStore) increment(query, arg, kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), counterTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, query, arg); err != nil {
		s.log.Warn("Counter increment failed",
			logger.String("kind", kind),
			logger.String("id", arg),
			logger.Error(err),
		)
	}
}

// Ping verifies database connectivity, for health checks.
func (s *LinkStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
