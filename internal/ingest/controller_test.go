package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderfong/moq-pools-sub002/config"
	"github.com/coderfong/moq-pools-sub002/internal/listing"
	"github.com/coderfong/moq-pools-sub002/internal/search"
	pkgerr "github.com/coderfong/moq-pools-sub002/pkg/errors"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		TargetPerLeaf:        60,
		TermsPerLeaf:         3,
		PrefetchSize:         40,
		EscalationThreshold:  30,
		AcceptFloor:          10,
		MinInformativeTokens: 2,
		ResumePath:           filepath.Join(t.TempDir(), "progress.json"),
	}
}

func makeListings(prefix string, n int) []listing.ExternalListing {
	items := make([]listing.ExternalListing, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, listing.ExternalListing{
			Title: fmt.Sprintf("%s Wholesale Model %d Pro", prefix, i),
			URL:   fmt.Sprintf("https://www.alibaba.com/product-detail/%s-%d_16000000%04d.html", listing.TermSlug(prefix), i, i),
			MOQ:   "Min. order: 50 pieces",
			Price: "US $2.10",
		})
	}
	return items
}

// fakeSearcher serves canned probe and full-search results per term.
type fakeSearcher struct {
	probes      map[string][]listing.ExternalListing
	full        map[string][]listing.ExternalListing
	probeCalls  []string
	searchCalls []string
	lastTarget  int
}

func (f *fakeSearcher) StaticOnly(ctx context.Context, term string, probeSize int) []listing.ExternalListing {
	f.probeCalls = append(f.probeCalls, term)
	items := f.probes[term]
	if len(items) > probeSize {
		items = items[:probeSize]
	}
	return items
}

func (f *fakeSearcher) Search(ctx context.Context, term string, targetCount int, opts search.Options) []listing.ExternalListing {
	f.searchCalls = append(f.searchCalls, term)
	f.lastTarget = targetCount
	items := f.full[term]
	if len(items) > targetCount {
		items = items[:targetCount]
	}
	return items
}

// mockStore records upserted batches.
type mockStore struct {
	upserts [][]listing.ExternalListing
}

func (m *mockStore) UpsertListing(ctx context.Context, l *listing.ExternalListing) error { return nil }

func (m *mockStore) UpsertListings(ctx context.Context, items []listing.ExternalListing) (int, error) {
	m.upserts = append(m.upserts, items)
	return len(items), nil
}

func (m *mockStore) GetDetail(ctx context.Context, canonicalURL string) ([]byte, time.Time, error) {
	return nil, time.Time{}, nil
}

func (m *mockStore) SaveDetail(ctx context.Context, canonicalURL string, detailJSON []byte, updatedAt time.Time) error {
	return nil
}

func (m *mockStore) Close() {}

func newTestProgress(t *testing.T, cfg config.Config) *Progress {
	t.Helper()
	p, err := LoadProgress(cfg.ResumePath)
	require.NoError(t, err)
	return p
}

func TestRun_SkipsTermBelowFloor(t *testing.T) {
	cfg := testConfig(t)
	searcher := &fakeSearcher{probes: map[string][]listing.ExternalListing{
		"wireless earbuds": makeListings("earbud", 2), // below floor of 10
	}}
	progress := newTestProgress(t, cfg)
	c := NewController(cfg, searcher, nil, nil, progress)

	leaf := Leaf{Key: "electronics.audio.earbuds", Terms: []string{"wireless earbuds"}}
	summary, err := c.Run(context.Background(), []Leaf{leaf}, RunOptions{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.TermsProbed)
	assert.Equal(t, 1, summary.TermsSkipped)
	assert.Equal(t, 0, summary.Accepted)
	assert.Empty(t, searcher.searchCalls)
	assert.Equal(t, 0, progress.Count(leaf.Key))
}

func TestRun_AcceptsSparseTermWithoutEscalation(t *testing.T) {
	cfg := testConfig(t)
	searcher := &fakeSearcher{probes: map[string][]listing.ExternalListing{
		"solar garden lamp": makeListings("lamp", 12), // between floor and threshold
	}}
	store := &mockStore{}
	progress := newTestProgress(t, cfg)
	c := NewController(cfg, searcher, store, nil, progress)

	leaf := Leaf{Key: "home.lighting.led", Terms: []string{"solar garden lamp"}}
	summary, err := c.Run(context.Background(), []Leaf{leaf}, RunOptions{})

	require.NoError(t, err)
	assert.Equal(t, 12, summary.Accepted)
	assert.Equal(t, 0, summary.Escalations)
	assert.Empty(t, searcher.searchCalls)
	require.Len(t, store.upserts, 1)
	assert.Equal(t, 12, progress.Count(leaf.Key))

	// Progress survives a reload from disk.
	reloaded, err := LoadProgress(cfg.ResumePath)
	require.NoError(t, err)
	assert.Equal(t, 12, reloaded.Count(leaf.Key))
}

func TestRun_EscalatesDenseTermWithBoundedTarget(t *testing.T) {
	cfg := testConfig(t)
	searcher := &fakeSearcher{
		probes: map[string][]listing.ExternalListing{
			"power bank 10000mah": makeListings("bank", 35), // at/over threshold
		},
		full: map[string][]listing.ExternalListing{
			"power bank 10000mah": makeListings("bank", 80),
		},
	}
	progress := newTestProgress(t, cfg)
	c := NewController(cfg, searcher, nil, nil, progress)

	leaf := Leaf{Key: "electronics.charging.powerbank", Terms: []string{"power bank 10000mah"}}
	summary, err := c.Run(context.Background(), []Leaf{leaf}, RunOptions{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Escalations)
	// Escalated fetch is bounded by min(quota, 3 x remaining) = min(60, 180).
	assert.Equal(t, 60, searcher.lastTarget)
	// Acceptance caps at the leaf quota.
	assert.Equal(t, 60, summary.Accepted)
	assert.Equal(t, 60, progress.Count(leaf.Key))
}

func TestRun_SkipsLeafAlreadyAtQuota(t *testing.T) {
	cfg := testConfig(t)
	searcher := &fakeSearcher{}
	progress := newTestProgress(t, cfg)
	progress.Add("home.kitchen.drinkware", 60)
	c := NewController(cfg, searcher, nil, nil, progress)

	leaf := Leaf{Key: "home.kitchen.drinkware", Terms: []string{"stainless steel water bottle"}}
	summary, err := c.Run(context.Background(), []Leaf{leaf}, RunOptions{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.LeavesSkipped)
	assert.Equal(t, 0, summary.LeavesProcessed)
	assert.Empty(t, searcher.probeCalls)
}

func TestRun_DedupsAcrossTermsWithinLeaf(t *testing.T) {
	cfg := testConfig(t)
	shared := makeListings("tent", 12)
	searcher := &fakeSearcher{probes: map[string][]listing.ExternalListing{
		"ultralight camping tent": shared,
		"folding camp chair bulk": shared, // same items back for the second term
	}}
	progress := newTestProgress(t, cfg)
	c := NewController(cfg, searcher, nil, nil, progress)

	leaf := Leaf{Key: "sports.outdoor.camping", Terms: []string{
		"ultralight camping tent", "folding camp chair bulk",
	}}
	summary, err := c.Run(context.Background(), []Leaf{leaf}, RunOptions{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 12, summary.Accepted)
}

func TestRun_RejectsRetailNoiseAndAccessories(t *testing.T) {
	cfg := testConfig(t)
	items := []listing.ExternalListing{
		{Title: "Resistance Bands Exercise Set Heavy", URL: "https://www.alibaba.com/product-detail/bands_1600000001.html", MOQ: "Min. order: 1 piece"},
		{Title: "Case for Adjustable Dumbbell Rack", URL: "https://www.alibaba.com/product-detail/case_1600000002.html", MOQ: "Min. order: 100 pieces"},
		{Title: "Replica Branded Yoga Mat Design", URL: "https://www.alibaba.com/product-detail/mat_1600000003.html", MOQ: "Min. order: 50 pieces"},
		{Title: "Hot sale!!", URL: "https://www.alibaba.com/product-detail/noise_1600000004.html", MOQ: "Min. order: 50 pieces"},
		{Title: "Adjustable Steel Dumbbell 20kg Set", URL: "https://www.alibaba.com/product-detail/dumbbell_1600000005.html", MOQ: "Min. order: 20 sets"},
	}
	// Pad past the floor with clean filler items.
	items = append(items, makeListings("fitness gear", 10)...)

	searcher := &fakeSearcher{probes: map[string][]listing.ExternalListing{
		"resistance bands set": items,
	}}
	progress := newTestProgress(t, cfg)
	c := NewController(cfg, searcher, nil, nil, progress)

	leaf := Leaf{Key: "sports.fitness.equipment", Terms: []string{"resistance bands set"}}
	summary, err := c.Run(context.Background(), []Leaf{leaf}, RunOptions{DryRun: true})

	require.NoError(t, err)
	// MOQ 1, accessory, banned keyword and uninformative title all dropped.
	assert.Equal(t, 11, summary.Accepted)
}

func TestRun_TagsAcceptedListings(t *testing.T) {
	cfg := testConfig(t)
	searcher := &fakeSearcher{probes: map[string][]listing.ExternalListing{
		"pet grooming kit wholesale": makeListings("groom", 11),
	}}
	store := &mockStore{}
	progress := newTestProgress(t, cfg)
	c := NewController(cfg, searcher, store, nil, progress)

	leaf := Leaf{Key: "pets.supplies.grooming", Terms: []string{"pet grooming kit wholesale"}}
	_, err := c.Run(context.Background(), []Leaf{leaf}, RunOptions{})

	require.NoError(t, err)
	require.Len(t, store.upserts, 1)
	first := store.upserts[0][0]
	assert.Contains(t, first.Categories, "pets.supplies.grooming")
	assert.Contains(t, first.Categories, "pet-grooming-kit-wholesale")
	assert.Contains(t, first.Terms, "pet grooming kit wholesale")
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	searcher := &fakeSearcher{probes: map[string][]listing.ExternalListing{
		"ionic hair dryer wholesale": makeListings("dryer", 12),
	}}
	store := &mockStore{}
	progress := newTestProgress(t, cfg)
	c := NewController(cfg, searcher, store, nil, progress)

	leaf := Leaf{Key: "beauty.tools.hair", Terms: []string{"ionic hair dryer wholesale"}}
	summary, err := c.Run(context.Background(), []Leaf{leaf}, RunOptions{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 12, summary.Accepted)
	assert.Empty(t, store.upserts)

	reloaded, err := LoadProgress(cfg.ResumePath)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.Count(leaf.Key))
}

func TestRun_HonorsLeafCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.LeafCap = 1
	searcher := &fakeSearcher{probes: map[string][]listing.ExternalListing{
		"wireless earbuds":          makeListings("earbud", 12),
		"portable bluetooth speaker": makeListings("speaker", 12),
	}}
	progress := newTestProgress(t, cfg)
	c := NewController(cfg, searcher, nil, nil, progress)

	leaves := []Leaf{
		{Key: "electronics.audio.earbuds", Terms: []string{"wireless earbuds"}},
		{Key: "electronics.audio.speakers", Terms: []string{"portable bluetooth speaker"}},
	}
	summary, err := c.Run(context.Background(), leaves, RunOptions{DryRun: true})

	require.NoError(t, err)
	assert.Equal(t, 1, summary.LeavesProcessed)
	assert.Equal(t, []string{"wireless earbuds"}, searcher.probeCalls)
}

func TestRun_TermFilterLimitsWork(t *testing.T) {
	cfg := testConfig(t)
	searcher := &fakeSearcher{probes: map[string][]listing.ExternalListing{
		"glass storage jar bulk": makeListings("jar", 12),
	}}
	progress := newTestProgress(t, cfg)
	c := NewController(cfg, searcher, nil, nil, progress)

	leaf := Leaf{Key: "home.kitchen.storage", Terms: []string{
		"airtight food container set", "glass storage jar bulk",
	}}
	summary, err := c.Run(context.Background(), []Leaf{leaf}, RunOptions{
		DryRun:     true,
		TermFilter: "glass storage jar bulk",
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"glass storage jar bulk"}, searcher.probeCalls)
	assert.Equal(t, 12, summary.Accepted)
}

func TestRejectReasonReportsQualityErrors(t *testing.T) {
	cfg := testConfig(t)
	c := NewController(cfg, &fakeSearcher{}, nil, nil, newTestProgress(t, cfg))

	cases := []struct {
		item    listing.ExternalListing
		message string
	}{
		{listing.ExternalListing{Title: "Wireless Earbuds Pro Max", MOQ: "1 piece"}, "minimum order of one"},
		{listing.ExternalListing{Title: "Replica Designer Watch Wholesale"}, "banned keyword"},
		{listing.ExternalListing{Title: "Hot"}, "uninformative title"},
		{listing.ExternalListing{Title: "Silicone Case for Airpods Pro"}, "accessory"},
	}
	for _, tc := range cases {
		qerr := c.rejectReason(&tc.item)
		require.NotNil(t, qerr, tc.message)
		assert.Equal(t, pkgerr.ErrorTypeQuality, qerr.Type)
		assert.Contains(t, qerr.Error(), tc.message)
	}

	ok := listing.ExternalListing{
		Platform: listing.PlatformAlibaba,
		Title:    "Wireless Earbuds TWS X9 Wholesale",
		MOQ:      "Min. order: 50 pieces",
	}
	assert.Nil(t, c.rejectReason(&ok))
}
