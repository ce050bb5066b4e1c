package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/coderfong/moq-pools-sub002/config"
	"github.com/coderfong/moq-pools-sub002/helpers"
	"github.com/coderfong/moq-pools-sub002/internal/detail"
	"github.com/coderfong/moq-pools-sub002/internal/imageresolver"
	"github.com/coderfong/moq-pools-sub002/internal/ingest"
	"github.com/coderfong/moq-pools-sub002/internal/search"
	"github.com/coderfong/moq-pools-sub002/logger"
	"github.com/coderfong/moq-pools-sub002/services/cache"
	"github.com/coderfong/moq-pools-sub002/services/imagecache"
	"github.com/coderfong/moq-pools-sub002/services/publisher"
	"github.com/coderfong/moq-pools-sub002/services/render"
	"github.com/coderfong/moq-pools-sub002/services/store"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load configuration, then apply CLI overrides
	cfg := config.LoadConfig()

	target := flag.Int("target", cfg.TargetPerLeaf, "listings to keep per taxonomy leaf")
	terms := flag.Int("terms", cfg.TermsPerLeaf, "ranked search terms to try per leaf")
	prefetch := flag.Int("prefetch", cfg.PrefetchSize, "static probe size per term")
	threshold := flag.Int("threshold", cfg.EscalationThreshold, "probe count at which a term escalates to a full search")
	floor := flag.Int("floor", cfg.AcceptFloor, "probe count below which a term is skipped")
	headless := flag.Bool("headless", cfg.HeadlessEnabled, "enable the headless render escalation tier")
	minTokens := flag.Int("min-tokens", cfg.MinInformativeTokens, "minimum informative title tokens")
	allowAccessories := flag.Bool("allow-accessories", cfg.AllowAccessories, "keep accessory-like listings")
	debug := flag.Bool("debug", false, "debug logging")
	dryRun := flag.Bool("dry-run", false, "no store writes, publishing or resume-file updates")
	resumePath := flag.String("resume", cfg.ResumePath, "resume file path")
	leafCap := flag.Int("leaf-cap", cfg.LeafCap, "process at most this many leaves (0 = all)")
	termFilter := flag.String("term", "", "only run this exact search term")
	detailURL := flag.String("detail", "", "fetch one detail page, print it as JSON, and exit")
	refresh := flag.Bool("refresh", false, "with -detail, bypass the cache and force a live fetch")
	flag.Parse()

	cfg.TargetPerLeaf = *target
	cfg.TermsPerLeaf = *terms
	cfg.PrefetchSize = *prefetch
	cfg.EscalationThreshold = *threshold
	cfg.AcceptFloor = *floor
	cfg.HeadlessEnabled = *headless
	cfg.MinInformativeTokens = *minTokens
	cfg.AllowAccessories = *allowAccessories
	cfg.ResumePath = *resumePath
	cfg.LeafCap = *leafCap

	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	helpers.SetFetchTimeout(cfg.FetchTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Tier 1 cache backend
	var tier1 cache.CacheService
	switch cfg.CacheBackend {
	case "memcache":
		tier1 = cache.NewMemcacheService(cfg.MemcacheAddr, "moqpools")
		log.Info().Str("addr", cfg.MemcacheAddr).Msg("Using memcached cache backend")
	default:
		tier1 = cache.NewMemoryService()
	}

	// Headless renderer, shared by the orchestrator and the image resolver
	var renderer render.Renderer
	if cfg.HeadlessEnabled {
		chrome := render.NewChromeRenderer(cfg.RenderSettleDelay, cfg.RenderNavTimeout)
		defer chrome.Close()
		renderer = chrome
		log.Info().Msg("Headless renderer enabled")
	}

	// Persistent store, optional
	var st store.Store
	if cfg.PostgresDSN != "" && !*dryRun {
		pg, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Warn().Err(err).Msg("Store unavailable, continuing without persistence")
		} else {
			defer pg.Close()
			st = pg
		}
	}

	// All static fetches go through the per-host rate-limit guard so a 429
	// from an upstream backs off every component at once.
	fetch := helpers.RateLimitedFetch(tier1, helpers.FetchWithRandomHeaders)

	resolver := imageresolver.NewResolverWithFetch(fetch, renderer)
	detailCache := detail.NewCacheWithFetch(tier1, st, fetch, cfg.DetailTier1TTL, cfg.DetailFreshness)

	// One-shot detail mode for debugging extractors and the cache
	if *detailURL != "" {
		runDetail(ctx, detailCache, detail.AbsoluteURL(cfg.DetailBaseURL, *detailURL), *refresh)
		return
	}

	var mirror *imagecache.Mirror
	if cfg.ImageCacheDir != "" {
		m, err := imagecache.NewMirror(cfg.ImageCacheDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", cfg.ImageCacheDir).Msg("Image mirror unavailable")
		} else {
			mirror = m
		}
	}

	var pub publisher.Publisher
	if cfg.PublishEnabled && !*dryRun {
		rp := publisher.NewRedisPublisher(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMax)
		defer rp.Close()
		pub = rp
		log.Info().Str("stream", cfg.RedisStream).Msg("Publishing accepted listings")
	}

	progress, err := ingest.LoadProgress(cfg.ResumePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load resume file")
	}

	orch := search.NewOrchestratorWithFetch(cfg, fetch, renderer, resolver, mirror)
	controller := ingest.NewController(cfg, orch, st, pub, progress)

	log.Info().
		Int("target_per_leaf", cfg.TargetPerLeaf).
		Int("prefetch", cfg.PrefetchSize).
		Int("threshold", cfg.EscalationThreshold).
		Int("floor", cfg.AcceptFloor).
		Bool("dry_run", *dryRun).
		Msg("Starting batch ingestion")

	summary, err := controller.Run(ctx, ingest.DefaultTaxonomy(), ingest.RunOptions{
		Headless:   cfg.HeadlessEnabled,
		DryRun:     *dryRun,
		TermFilter: *termFilter,
		Debug:      *debug,
	})
	if err != nil {
		log.Error().Err(err).Int("accepted", summary.Accepted).Msg("Batch ingestion aborted")
		os.Exit(1)
	}

	snap := orch.Metrics().Snapshot()
	log.Info().
		Int("total_accepted", summary.Accepted).
		Int("leaves", summary.LeavesProcessed).
		Int("terms_skipped", summary.TermsSkipped).
		Int("escalations", summary.Escalations).
		Dur("avg_search", snap.AvgDuration).
		Dur("p95_search", snap.P95Duration).
		Msg("Batch ingestion complete")
}

func runDetail(ctx context.Context, c *detail.Cache, url string, refresh bool) {
	var d any
	if refresh {
		d = c.ForceRefresh(ctx, url)
	} else {
		d = c.GetCached(ctx, url)
	}

	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		logger.Default.Fatal().Err(err).Msg("Cannot encode detail")
	}
	fmt.Println(string(out))
}
