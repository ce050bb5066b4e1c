package detail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderfong/moq-pools-sub002/internal/listing"
	"github.com/coderfong/moq-pools-sub002/services/cache"
	"github.com/coderfong/moq-pools-sub002/services/store"
)

const detailPageURL = "https://www.alibaba.com/product-detail/Earbuds-TWS_1600123456789.html"

const detailPageHTML = `<html>
<head><meta name="description" content="Bulk TWS earbuds with charging case" /></head>
<body>
	<h1>Wireless Earbuds TWS X9</h1>
	<div class="product-price">US $2.30</div>
	<div class="moq-block">Min. order: 100 pieces</div>
</body></html>`

// countingFetcher serves a fixed page and counts live fetches.
type countingFetcher struct {
	html  string
	err   error
	calls int
}

func (f *countingFetcher) fetch(ctx context.Context, url string) (io.Reader, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return strings.NewReader(f.html), nil
}

// mockStore is an in-memory Store for cache tests.
type mockStore struct {
	detail    []byte
	updatedAt time.Time
	saves     int
	saveErr   error
	getErr    error
}

func (m *mockStore) UpsertListing(ctx context.Context, l *listing.ExternalListing) error {
	return nil
}

func (m *mockStore) UpsertListings(ctx context.Context, items []listing.ExternalListing) (int, error) {
	return len(items), nil
}

func (m *mockStore) GetDetail(ctx context.Context, canonicalURL string) ([]byte, time.Time, error) {
	if m.getErr != nil {
		return nil, time.Time{}, m.getErr
	}
	if m.detail == nil {
		return nil, time.Time{}, store.ErrNotFound
	}
	return m.detail, m.updatedAt, nil
}

func (m *mockStore) SaveDetail(ctx context.Context, canonicalURL string, detailJSON []byte, updatedAt time.Time) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.detail = detailJSON
	m.updatedAt = updatedAt
	return nil
}

func (m *mockStore) Close() {}

func storedDetail(t *testing.T, title string) []byte {
	t.Helper()
	raw, err := json.Marshal(&listing.ProductDetail{Title: title, PriceText: "US $9.99"})
	require.NoError(t, err)
	return raw
}

func newTestCache(fetcher *countingFetcher, st store.Store) *Cache {
	return NewCacheWithFetch(cache.NewMemoryService(), st, fetcher.fetch, 10*time.Minute, 24*time.Hour)
}

func TestGetCached_FetchesOnMissThenServesTier1(t *testing.T) {
	fetcher := &countingFetcher{html: detailPageHTML}
	st := &mockStore{}
	c := newTestCache(fetcher, st)

	d := c.GetCached(context.Background(), detailPageURL)
	require.NotNil(t, d)
	assert.Equal(t, "Wireless Earbuds TWS X9", d.Title)
	assert.Equal(t, "US $2.30", d.PriceText)
	assert.Equal(t, "Min. order: 100 pieces", d.MOQText)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, st.saves)

	// Second read inside the TTL is served from Tier 1.
	d2 := c.GetCached(context.Background(), detailPageURL)
	require.NotNil(t, d2)
	assert.Equal(t, 1, fetcher.calls)
}

func TestGetCached_ServesFreshTier2WithoutFetch(t *testing.T) {
	fetcher := &countingFetcher{html: detailPageHTML}
	st := &mockStore{
		detail:    storedDetail(t, "Stored Earbuds"),
		updatedAt: time.Now().Add(-2 * time.Hour),
	}
	c := newTestCache(fetcher, st)

	d := c.GetCached(context.Background(), detailPageURL)
	require.NotNil(t, d)
	assert.Equal(t, "Stored Earbuds", d.Title)
	assert.Equal(t, 0, fetcher.calls)

	// Promotion into Tier 1: a later read still performs no fetch and no
	// further Tier 2 round trip.
	st.getErr = errors.New("store down")
	d2 := c.GetCached(context.Background(), detailPageURL)
	require.NotNil(t, d2)
	assert.Equal(t, 0, fetcher.calls)
}

func TestGetCached_StaleTier2TriggersLiveFetch(t *testing.T) {
	fetcher := &countingFetcher{html: detailPageHTML}
	st := &mockStore{
		detail:    storedDetail(t, "Stale Earbuds"),
		updatedAt: time.Now().Add(-30 * time.Hour),
	}
	c := newTestCache(fetcher, st)

	d := c.GetCached(context.Background(), detailPageURL)
	require.NotNil(t, d)
	assert.Equal(t, "Wireless Earbuds TWS X9", d.Title)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, st.saves)
}

func TestForceRefresh_LiveFetchDespiteFreshTier2(t *testing.T) {
	fetcher := &countingFetcher{html: detailPageHTML}
	st := &mockStore{
		detail:    storedDetail(t, "Two Hours Old"),
		updatedAt: time.Now().Add(-2 * time.Hour),
	}
	c := newTestCache(fetcher, st)

	d := c.ForceRefresh(context.Background(), detailPageURL)
	require.NotNil(t, d)
	assert.Equal(t, "Wireless Earbuds TWS X9", d.Title)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, st.saves)

	var persisted listing.ProductDetail
	require.NoError(t, json.Unmarshal(st.detail, &persisted))
	assert.Equal(t, "Wireless Earbuds TWS X9", persisted.Title)
}

func TestForceRefreshThenGetCachedServedFromTier1(t *testing.T) {
	fetcher := &countingFetcher{html: detailPageHTML}
	c := newTestCache(fetcher, &mockStore{})

	require.NotNil(t, c.ForceRefresh(context.Background(), detailPageURL))
	require.NotNil(t, c.GetCached(context.Background(), detailPageURL))
	assert.Equal(t, 1, fetcher.calls)
}

func TestGetCached_FetchFailureYieldsNil(t *testing.T) {
	fetcher := &countingFetcher{err: errors.New("timeout")}
	c := newTestCache(fetcher, &mockStore{})

	assert.Nil(t, c.GetCached(context.Background(), detailPageURL))
}

func TestGetCached_PersistFailureStillReturnsDetail(t *testing.T) {
	fetcher := &countingFetcher{html: detailPageHTML}
	st := &mockStore{saveErr: errors.New("store down")}
	c := newTestCache(fetcher, st)

	d := c.GetCached(context.Background(), detailPageURL)
	require.NotNil(t, d)
	assert.Equal(t, "Wireless Earbuds TWS X9", d.Title)
}

func TestGetCached_WorksWithoutStore(t *testing.T) {
	fetcher := &countingFetcher{html: detailPageHTML}
	c := NewCacheWithFetch(cache.NewMemoryService(), nil, fetcher.fetch, 10*time.Minute, 24*time.Hour)

	require.NotNil(t, c.GetCached(context.Background(), detailPageURL))
	require.NotNil(t, c.GetCached(context.Background(), detailPageURL))
	assert.Equal(t, 1, fetcher.calls)
}

func TestGetCached_EmptyPageYieldsNil(t *testing.T) {
	fetcher := &countingFetcher{html: "<html><body></body></html>"}
	c := newTestCache(fetcher, &mockStore{})

	assert.Nil(t, c.GetCached(context.Background(), detailPageURL))
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://www.alibaba.com"

	assert.Equal(t, "https://www.alibaba.com/product-detail/Item_1600001.html",
		AbsoluteURL(base, "/product-detail/Item_1600001.html"))
	assert.Equal(t, "https://www.made-in-china.com/p/x.html",
		AbsoluteURL(base, "https://www.made-in-china.com/p/x.html"))
	assert.Equal(t, "relative.html", AbsoluteURL("://bad", "relative.html"))
}
