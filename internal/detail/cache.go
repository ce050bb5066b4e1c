package detail

import (
	"context"
	"encoding/json"
	"io"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/coderfong/moq-pools-sub002/internal/listing"
	"github.com/coderfong/moq-pools-sub002/logger"
	"github.com/coderfong/moq-pools-sub002/services/cache"
	"github.com/coderfong/moq-pools-sub002/services/store"
)

// FetchFunc fetches a URL and returns its body.
type FetchFunc func(ctx context.Context, url string) (io.Reader, error)

const tier1Prefix = "detail:"

// Cache is the two-tier detail cache. Tier 1 is a short-TTL CacheService keyed
// by canonical URL; Tier 2 is the persisted detail JSON with its update
// timestamp, fresh for a longer window. A miss in both tiers dispatches to a
// source-specific extractor and persists the result best-effort.
//
// None of the methods return an error: a fetch or parse failure yields nil and
// the caller treats "no detail" as a valid outcome.
type Cache struct {
	tier1     cache.CacheService
	store     store.Store // optional
	fetch     FetchFunc
	ttl       time.Duration
	freshness time.Duration
	log       *logger.Logger
	now       func() time.Time
}

// NewCacheWithFetch wires a detail cache around the injected fetch function.
func NewCacheWithFetch(tier1 cache.CacheService, st store.Store, fetch FetchFunc, ttl, freshness time.Duration) *Cache {
	return &Cache{
		tier1:     tier1,
		store:     st,
		fetch:     fetch,
		ttl:       ttl,
		freshness: freshness,
		log:       logger.ForDetail(),
		now:       time.Now,
	}
}

// GetCached returns the product detail for a listing URL, serving from Tier 1,
// then fresh Tier 2, then a live fetch.
func (c *Cache) GetCached(ctx context.Context, detailURL string) *listing.ProductDetail {
	key := listing.CanonicalizeURL(detailURL)
	if key == "" {
		return nil
	}

	if d := c.fromTier1(key); d != nil {
		return d
	}
	if d := c.fromTier2(ctx, key); d != nil {
		return d
	}
	return c.fetchAndPersist(ctx, key)
}

// ForceRefresh evicts Tier 1 for the URL and performs a live fetch regardless
// of Tier 2 freshness, overwriting the stored detail on success.
func (c *Cache) ForceRefresh(ctx context.Context, detailURL string) *listing.ProductDetail {
	key := listing.CanonicalizeURL(detailURL)
	if key == "" {
		return nil
	}

	if err := c.tier1.Delete(tier1Prefix + key); err != nil && err != cache.ErrCacheMiss {
		c.log.Debug().Err(err).Str("url", key).Msg("Tier 1 evict failed")
	}
	return c.fetchAndPersist(ctx, key)
}

func (c *Cache) fromTier1(key string) *listing.ProductDetail {
	raw, err := c.tier1.Get(tier1Prefix + key)
	if err != nil {
		return nil
	}
	var d listing.ProductDetail
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil
	}
	return &d
}

// fromTier2 serves the persisted detail when it is inside the freshness
// window, promoting it into Tier 1 without a live fetch.
func (c *Cache) fromTier2(ctx context.Context, key string) *listing.ProductDetail {
	if c.store == nil {
		return nil
	}
	raw, updatedAt, err := c.store.GetDetail(ctx, key)
	if err != nil {
		if err != store.ErrNotFound {
			c.log.Debug().Err(err).Str("url", key).Msg("Detail read failed")
		}
		return nil
	}
	if c.now().Sub(updatedAt) >= c.freshness {
		return nil
	}
	var d listing.ProductDetail
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil
	}
	c.populateTier1(key, raw)
	return &d
}

// fetchAndPersist performs the live round trip: fetch, extract by host,
// normalize, then persist to both tiers best-effort.
func (c *Cache) fetchAndPersist(ctx context.Context, key string) *listing.ProductDetail {
	body, err := c.fetch(ctx, key)
	if err != nil {
		c.log.Debug().Err(err).Str("url", key).Msg("Detail fetch failed")
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		c.log.Debug().Err(err).Str("url", key).Msg("Detail parse failed")
		return nil
	}

	d := extractorForURL(key)(doc)
	if d == nil {
		return nil
	}
	d.Normalize()
	if d.IsEmpty() {
		return nil
	}

	raw, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	if c.store != nil {
		if err := c.store.SaveDetail(ctx, key, raw, c.now()); err != nil {
			c.log.Debug().Err(err).Str("url", key).Msg("Detail persist failed")
		}
	}
	c.populateTier1(key, raw)
	return d
}

func (c *Cache) populateTier1(key string, raw []byte) {
	if err := c.tier1.Set(tier1Prefix+key, raw, c.ttl); err != nil {
		c.log.Debug().Err(err).Str("url", key).Msg("Tier 1 populate failed")
	}
}

// AbsoluteURL resolves ref against base when ref is not already absolute, so
// callers can hand over bare detail paths from result pages.
func AbsoluteURL(base, ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(u).String()
}

// extractorForURL picks the source-specific extractor by the URL's host.
func extractorForURL(raw string) extractor {
	u, err := url.Parse(raw)
	if err != nil {
		return extractGeneric
	}
	switch listing.PlatformForURL(u.String()) {
	case listing.PlatformAlibaba:
		return extractAlibaba
	case listing.PlatformMadeInChina:
		return extractMadeInChina
	case listing.PlatformGlobalSources:
		return extractGlobalSources
	default:
		return extractGeneric
	}
}
