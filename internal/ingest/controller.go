package ingest

import (
	"context"
	"encoding/json"

	"github.com/coderfong/moq-pools-sub002/config"
	"github.com/coderfong/moq-pools-sub002/internal/listing"
	"github.com/coderfong/moq-pools-sub002/internal/search"
	"github.com/coderfong/moq-pools-sub002/logger"
	pkgerr "github.com/coderfong/moq-pools-sub002/pkg/errors"
	"github.com/coderfong/moq-pools-sub002/services/publisher"
	"github.com/coderfong/moq-pools-sub002/services/store"
)

// Searcher is the slice of the search orchestrator the controller drives.
type Searcher interface {
	Search(ctx context.Context, term string, targetCount int, opts search.Options) []listing.ExternalListing
	StaticOnly(ctx context.Context, term string, probeSize int) []listing.ExternalListing
}

// RunOptions control one batch run.
type RunOptions struct {
	Headless   bool
	DryRun     bool // no store writes, no publishing, no resume-file rewrites
	TermFilter string
	Debug      bool
}

// Summary is the final tally of a batch run.
type Summary struct {
	LeavesProcessed int
	LeavesSkipped   int
	TermsProbed     int
	TermsSkipped    int
	Escalations     int
	Accepted        int
	Persisted       int
}

// Controller walks the taxonomy leaf by leaf and fills each one up to the
// configured quota. For every term it probes density with a static-only
// prefetch, then skips / accepts as-is / escalates per the floor and
// threshold, classifies and dedups the batch, persists it, and checkpoints
// progress to the resume file.
type Controller struct {
	cfg      config.Config
	searcher Searcher
	store    store.Store         // optional
	pub      publisher.Publisher // optional
	progress *Progress
	log      *logger.Logger
}

// NewController wires a controller. Store and publisher may be nil; the
// corresponding steps turn into no-ops.
func NewController(cfg config.Config, searcher Searcher, st store.Store, pub publisher.Publisher, progress *Progress) *Controller {
	return &Controller{
		cfg:      cfg,
		searcher: searcher,
		store:    st,
		pub:      pub,
		progress: progress,
		log:      logger.ForIngest(),
	}
}

// Run drives the whole batch across the given leaves. The only error that can
// surface is a resume-file write failure; everything else degrades per the
// pipeline's soft-failure policy.
func (c *Controller) Run(ctx context.Context, leaves []Leaf, opts RunOptions) (Summary, error) {
	var summary Summary

	if c.cfg.LeafCap > 0 && len(leaves) > c.cfg.LeafCap {
		leaves = leaves[:c.cfg.LeafCap]
	}

	for _, leaf := range leaves {
		if err := ctx.Err(); err != nil {
			c.log.Warn().Err(err).Msg("Run cancelled")
			return summary, err
		}
		if err := c.runLeaf(ctx, leaf, opts, &summary); err != nil {
			return summary, err
		}
	}

	c.log.Info().
		Int("leaves", summary.LeavesProcessed).
		Int("accepted", summary.Accepted).
		Int("escalations", summary.Escalations).
		Msg("Batch run finished")
	return summary, nil
}

func (c *Controller) runLeaf(ctx context.Context, leaf Leaf, opts RunOptions, summary *Summary) error {
	remaining := c.cfg.TargetPerLeaf - c.progress.Count(leaf.Key)
	if remaining <= 0 {
		summary.LeavesSkipped++
		c.log.Debug().Str("leaf", leaf.Key).Msg("Leaf already at quota, skipping")
		return nil
	}
	summary.LeavesProcessed++

	terms := leaf.Terms
	if len(terms) > c.cfg.TermsPerLeaf {
		terms = terms[:c.cfg.TermsPerLeaf]
	}

	seen := make(map[string]bool)

	for _, term := range terms {
		if remaining <= 0 {
			break
		}
		if opts.TermFilter != "" && term != opts.TermFilter {
			continue
		}

		batch, escalated := c.fetchTerm(ctx, term, remaining, opts)
		summary.TermsProbed++
		if escalated {
			summary.Escalations++
		}
		if batch == nil {
			summary.TermsSkipped++
			continue
		}

		accepted := c.classifyBatch(batch, leaf.Key, term, seen, remaining, opts.Debug)
		if len(accepted) == 0 {
			continue
		}

		c.persistBatch(ctx, leaf.Key, accepted, opts, summary)

		c.progress.Add(leaf.Key, len(accepted))
		if !opts.DryRun {
			if err := c.progress.Save(); err != nil {
				return err
			}
		}

		remaining -= len(accepted)
		summary.Accepted += len(accepted)
		c.log.Info().
			Str("leaf", leaf.Key).Str("term", term).
			Int("accepted", len(accepted)).Int("remaining", remaining).
			Msg("Batch accepted")
	}
	return nil
}

// fetchTerm probes a term and applies the floor/threshold policy. Returns nil
// when the term is too sparse to bother with; the second result reports
// whether a full escalated search ran.
func (c *Controller) fetchTerm(ctx context.Context, term string, remaining int, opts RunOptions) ([]listing.ExternalListing, bool) {
	probe := c.searcher.StaticOnly(ctx, term, c.cfg.PrefetchSize)

	switch {
	case len(probe) < c.cfg.AcceptFloor:
		c.log.Debug().Str("term", term).Int("probe", len(probe)).Msg("Term below floor, skipped")
		return nil, false

	case len(probe) < c.cfg.EscalationThreshold:
		c.log.Debug().Str("term", term).Int("probe", len(probe)).Msg("Sparse term accepted as-is")
		return probe, false

	default:
		target := min(c.cfg.TargetPerLeaf, 3*remaining)
		c.log.Debug().Str("term", term).Int("probe", len(probe)).Int("target", target).
			Msg("Dense term, escalating")
		return c.searcher.Search(ctx, term, target, search.Options{
			Headless:      opts.Headless,
			UpgradeImages: true,
			CacheImages:   true,
			Debug:         opts.Debug,
		}), true
	}
}

// classifyBatch applies per-item classification and the per-leaf-run dedup,
// capping the result at the leaf's remaining quota.
func (c *Controller) classifyBatch(batch []listing.ExternalListing, leafKey, term string, seen map[string]bool, remaining int, debug bool) []listing.ExternalListing {
	accepted := make([]listing.ExternalListing, 0, len(batch))

	for _, item := range batch {
		if len(accepted) >= remaining {
			break
		}

		item.Title = listing.SanitizeTitle(item.Title)

		if qerr := c.rejectReason(&item); qerr != nil {
			if debug {
				c.log.Debug().Err(qerr).Str("url", item.URL).Msg("Item rejected")
			}
			continue
		}

		key := listing.CanonicalKey(&item)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		item.URL = key
		item.AddCategory(leafKey)
		item.AddCategory(listing.TermSlug(term))
		item.AddTerm(term)
		accepted = append(accepted, item)
	}
	return accepted
}

// rejectReason applies the quality predicate. An MOQ that parses to 1 or less
// marks retail noise rather than a wholesale listing; an absent or unparseable
// MOQ is not held against the item. A nil return means the item is acceptable.
func (c *Controller) rejectReason(item *listing.ExternalListing) *pkgerr.PipelineError {
	platform := string(item.Platform)
	if n := listing.ParseMOQ(item.MOQ); n > 0 && n <= 1 {
		return pkgerr.NewQuality(platform, "minimum order of one")
	}
	if listing.HasBannedKeyword(item.Title) {
		return pkgerr.NewQuality(platform, "banned keyword")
	}
	if listing.InformativeTokens(item.Title) < c.cfg.MinInformativeTokens {
		return pkgerr.NewQuality(platform, "uninformative title")
	}
	if !c.cfg.AllowAccessories && listing.IsAccessory(item.Title) {
		return pkgerr.NewQuality(platform, "accessory")
	}
	return nil
}

// persistBatch upserts and publishes the accepted items, best-effort.
func (c *Controller) persistBatch(ctx context.Context, leafKey string, accepted []listing.ExternalListing, opts RunOptions, summary *Summary) {
	if opts.DryRun {
		return
	}

	if c.store != nil {
		written, err := c.store.UpsertListings(ctx, accepted)
		if err != nil {
			c.log.Warn().Err(err).Str("leaf", leafKey).Msg("Batch persist incomplete")
		}
		summary.Persisted += written
	}

	if c.pub != nil {
		for i := range accepted {
			raw, err := json.Marshal(&accepted[i])
			if err != nil {
				continue
			}
			if err := c.pub.Publish(leafKey, raw); err != nil {
				c.log.Debug().Err(err).Str("leaf", leafKey).Msg("Publish failed")
				break
			}
		}
	}
}
