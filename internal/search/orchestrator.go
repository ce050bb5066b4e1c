package search

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/coderfong/moq-pools-sub002/config"
	"github.com/coderfong/moq-pools-sub002/internal/imageresolver"
	"github.com/coderfong/moq-pools-sub002/internal/listing"
	"github.com/coderfong/moq-pools-sub002/logger"
	"github.com/coderfong/moq-pools-sub002/services/imagecache"
	"github.com/coderfong/moq-pools-sub002/services/render"
)

// FetchFunc fetches a URL and returns its body.
type FetchFunc func(ctx context.Context, url string) (io.Reader, error)

// Options control per-call behavior of a search.
type Options struct {
	Headless      bool // allow the headless escalation tier
	ForceHeadless bool // always perform the headless fetch, sparse or not
	UpgradeImages bool // resolve real images for listings lacking one
	CacheImages   bool // mirror remote images into local storage
	Debug         bool
}

// Orchestrator turns a search term into a bounded, deduplicated, quality-passing
// list of external listings. A call never returns an error: every fetch or
// parse failure inside a tier counts as zero results for that tier, and the
// worst case is an empty list.
type Orchestrator struct {
	cfg      config.Config
	fetch    FetchFunc
	renderer render.Renderer         // optional
	resolver *imageresolver.Resolver // optional
	mirror   *imagecache.Mirror      // optional
	metrics  *Metrics
	log      *logger.Logger
}

// NewOrchestratorWithFetch wires an orchestrator. Renderer, resolver and
// mirror may be nil; the corresponding stages are skipped when they are.
func NewOrchestratorWithFetch(cfg config.Config, fetch FetchFunc, renderer render.Renderer, resolver *imageresolver.Resolver, mirror *imagecache.Mirror) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		fetch:    fetch,
		renderer: renderer,
		resolver: resolver,
		mirror:   mirror,
		metrics:  NewMetrics(cfg.MetricsWindow),
		log:      logger.ForSearch(),
	}
}

// Metrics exposes the rolling collector for operational visibility.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// Search runs the full tier chain for one term and returns at most targetCount
// listings.
func (o *Orchestrator) Search(ctx context.Context, term string, targetCount int, opts Options) []listing.ExternalListing {
	start := time.Now()
	results := o.search(ctx, term, targetCount, opts)
	o.metrics.Observe(time.Since(start), len(results))
	return results
}

func (o *Orchestrator) search(ctx context.Context, term string, targetCount int, opts Options) []listing.ExternalListing {
	if targetCount <= 0 || strings.TrimSpace(term) == "" {
		return nil
	}

	results := o.staticPages(ctx, term, targetCount)
	o.log.Debug().Str("term", term).Int("static", len(results)).Msg("Static tier done")

	// Headless escalation: one rendered fetch of page 1, preferred only when
	// it yields strictly more than the static tier.
	sparse := len(results) < min(o.cfg.HeadlessSparseMin, targetCount)
	if o.renderer != nil && (opts.ForceHeadless || (opts.Headless && sparse)) {
		if !opts.ForceHeadless {
			o.metrics.RecordSparseEscalation()
		}
		rendered := o.headlessPage(ctx, term)
		if len(rendered) > len(results) {
			o.metrics.RecordHeadlessPromotion()
			o.log.Debug().Str("term", term).
				Int("static", len(results)).Int("rendered", len(rendered)).
				Msg("Headless results promoted")
			results = rendered
		}
	}

	// Export fallback merges, never replaces.
	if len(results) < min(o.cfg.ExportSparseMin, targetCount) {
		exported := o.exportPage(ctx, term)
		if len(exported) > 0 {
			o.log.Debug().Str("term", term).Int("exported", len(exported)).Msg("Export tier merged")
			results = append(results, exported...)
		}
	}

	results = listing.DedupByURL(results)

	if opts.UpgradeImages && o.resolver != nil {
		o.enrichImages(ctx, results)
	}
	if opts.CacheImages && o.mirror != nil {
		o.mirrorImages(ctx, results, opts.Debug)
	}

	results = o.qualityFilter(results, opts.Debug)

	if len(results) > targetCount {
		results = results[:targetCount]
	}
	return results
}

// StaticOnly runs just the static tier at a probe size, deduplicated and
// truncated but not quality-filtered. Used by the batch controller to gauge
// term density cheaply.
func (o *Orchestrator) StaticOnly(ctx context.Context, term string, probeSize int) []listing.ExternalListing {
	if probeSize <= 0 {
		return nil
	}
	results := listing.DedupByURL(o.staticPages(ctx, term, probeSize))
	if len(results) > probeSize {
		results = results[:probeSize]
	}
	return results
}

// staticPages paginates the search endpoint, running the extraction chain per
// page. Stops early after two consecutive empty pages.
func (o *Orchestrator) staticPages(ctx context.Context, term string, targetCount int) []listing.ExternalListing {
	pages := (targetCount + o.cfg.SearchPageSize - 1) / o.cfg.SearchPageSize
	if pages > o.cfg.SearchMaxPages {
		pages = o.cfg.SearchMaxPages
	}
	if pages < 1 {
		pages = 1
	}

	var results []listing.ExternalListing
	emptyStreak := 0

	for page := 1; page <= pages; page++ {
		items := o.fetchAndExtract(ctx, o.searchPageURL(term, page), page == 1)
		if len(items) == 0 {
			emptyStreak++
			if emptyStreak >= 2 {
				o.log.Debug().Str("term", term).Int("page", page).Msg("Two empty pages, stopping pagination")
				break
			}
			continue
		}
		emptyStreak = 0
		results = append(results, items...)
	}
	return results
}

// headlessPage renders page 1 and runs the same extraction chain on the
// rendered DOM.
func (o *Orchestrator) headlessPage(ctx context.Context, term string) []listing.ExternalListing {
	pageURL := o.searchPageURL(term, 1)
	html, err := o.renderer.Render(ctx, pageURL)
	if err != nil {
		o.log.Debug().Err(err).Str("term", term).Msg("Headless render failed")
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	return extractListings(doc, pageURL, true)
}

// exportPage queries the alternate export endpoint for the same term.
func (o *Orchestrator) exportPage(ctx context.Context, term string) []listing.ExternalListing {
	exportURL := fmt.Sprintf("%s?SearchText=%s&viewtype=L",
		strings.TrimRight(o.cfg.ExportBaseURL, "/"), url.QueryEscape(term))
	return o.fetchAndExtract(ctx, exportURL, true)
}

func (o *Orchestrator) fetchAndExtract(ctx context.Context, pageURL string, firstPage bool) []listing.ExternalListing {
	body, err := o.fetch(ctx, pageURL)
	if err != nil {
		o.log.Debug().Err(err).Str("url", pageURL).Msg("Search page fetch failed")
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		o.log.Debug().Err(err).Str("url", pageURL).Msg("Search page parse failed")
		return nil
	}
	return extractListings(doc, pageURL, firstPage)
}

func (o *Orchestrator) searchPageURL(term string, page int) string {
	return fmt.Sprintf("%s/trade/search?IndexArea=product_en&SearchText=%s&page=%d",
		strings.TrimRight(o.cfg.SearchBaseURL, "/"), url.QueryEscape(term), page)
}

// enrichImages resolves real images for listings lacking one, with a fixed
// worker pool. Workers claim distinct indexes from a monotonic counter, so no
// two workers ever touch the same listing.
func (o *Orchestrator) enrichImages(ctx context.Context, items []listing.ExternalListing) {
	workers := o.cfg.ImageWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}
	if workers == 0 {
		return
	}

	var next atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= len(items) {
					return
				}
				if hasRealImage(items[i].Image) {
					continue
				}
				if best := o.resolver.ResolveBestImage(ctx, items[i].URL); best != "" {
					items[i].Image = best
				}
			}
		}()
	}
	wg.Wait()
}

// hasRealImage rejects empty and placeholder-shaped image references.
func hasRealImage(img string) bool {
	if img == "" || strings.HasPrefix(img, "data:") {
		return false
	}
	lower := strings.ToLower(img)
	return !strings.Contains(lower, "blank.") && !strings.Contains(lower, "placeholder")
}

// mirrorImages copies remote images into the local cache, best-effort.
func (o *Orchestrator) mirrorImages(ctx context.Context, items []listing.ExternalListing, debug bool) {
	for i := range items {
		if !hasRealImage(items[i].Image) {
			continue
		}
		if _, err := o.mirror.Fetch(ctx, items[i].Image); err != nil && debug {
			o.log.Debug().Err(err).Str("image", items[i].Image).Msg("Image mirror failed")
		}
	}
}

// qualityFilter applies the final acceptance rules: banned keywords, the
// title-or-signal minimum, and a detail-shaped URL for signal-less listings.
func (o *Orchestrator) qualityFilter(items []listing.ExternalListing, debug bool) []listing.ExternalListing {
	kept := make([]listing.ExternalListing, 0, len(items))
	dropped := 0
	for _, item := range items {
		switch {
		case listing.HasBannedKeyword(item.Title):
			dropped++
		case !item.IsValid():
			dropped++
		case !item.HasSignal() && !listing.LooksLikeDetailURL(item.URL):
			dropped++
		default:
			kept = append(kept, item)
			continue
		}
		if debug {
			o.log.Debug().Str("url", item.URL).Str("title", item.Title).Msg("Listing rejected by quality filter")
		}
	}
	if dropped > 0 {
		o.log.Debug().Int("dropped", dropped).Int("kept", len(kept)).Msg("Quality filter applied")
	}
	return kept
}
