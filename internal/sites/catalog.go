// Package sites exposes per-site deletion metadata: whether a site has a
// registered automation profile, how hard it is to automate, and where
// erasure requests should be addressed.
package sites

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Common errors returned by catalog implementations.
var (
	// ErrProfileNotFound indicates no automation profile is registered
	// for the domain. The engine falls back to the email method.
	ErrProfileNotFound = errors.New("no automation profile for site")
)

// Profile is the automation metadata registered for one site.
type Profile struct {
	Domain       string
	DeletionURL  string
	PrivacyEmail string

	// Difficulty rates automation on a 1-10 scale. The dispatcher does
	// not interpret it; it is surfaced for operators.
	Difficulty int
}

// Catalog looks up automation profiles per site domain.
type Catalog interface {
	// Profile retrieves the automation profile for a domain.
	// Returns ErrProfileNotFound when the site has none.
	Profile(ctx context.Context, domain string) (*Profile, error)
}

// CachedCatalog wraps a Catalog with a TTL cache. Profile lookups happen
// once per dispatch decision, so the upstream catalog (typically a remote
// metadata service) would otherwise be hit on every tick.
type CachedCatalog struct {
	upstream Catalog
	cache    *gocache.Cache
	logger   *slog.Logger
}

// negative cache marker for domains with no profile
type noProfile struct{}

// NewCachedCatalog creates a caching layer over the given catalog.
func NewCachedCatalog(upstream Catalog, ttl time.Duration, logger *slog.Logger) *CachedCatalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedCatalog{
		upstream: upstream,
		cache:    gocache.New(ttl, 2*ttl),
		logger:   logger.With(slog.String("component", "site_catalog")),
	}
}

// Profile implements Catalog. Both hits and misses are cached so a site
// without a profile does not trigger an upstream lookup per tick.
func (c *CachedCatalog) Profile(ctx context.Context, domain string) (*Profile, error) {
	if cached, ok := c.cache.Get(domain); ok {
		if _, miss := cached.(noProfile); miss {
			return nil, ErrProfileNotFound
		}
		return cached.(*Profile), nil
	}

	profile, err := c.upstream.Profile(ctx, domain)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			c.cache.SetDefault(domain, noProfile{})
		} else {
			c.logger.Warn("site catalog lookup failed",
				slog.String("domain", domain),
				slog.String("error", err.Error()))
		}
		return nil, err
	}

	c.cache.SetDefault(domain, profile)
	return profile, nil
}

// StaticCatalog is a Catalog backed by a fixed in-memory profile set,
// keyed by domain. Used for tests and single-binary deployments.
type StaticCatalog struct {
	profiles map[string]*Profile
}

// NewStaticCatalog creates a catalog from the given profiles.
func NewStaticCatalog(profiles []*Profile) *StaticCatalog {
	m := make(map[string]*Profile, len(profiles))
	for _, p := range profiles {
		m[p.Domain] = p
	}
	return &StaticCatalog{profiles: m}
}

// Profile implements Catalog.
func (c *StaticCatalog) Profile(_ context.Context, domain string) (*Profile, error) {
	if p, ok := c.profiles[domain]; ok {
		return p, nil
	}
	return nil, ErrProfileNotFound
}
