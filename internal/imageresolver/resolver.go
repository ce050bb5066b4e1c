package imageresolver

import (
	"context"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/coderfong/moq-pools-sub002/logger"
	"github.com/coderfong/moq-pools-sub002/services/render"
)

// FetchFunc fetches a URL and returns its body. Injected so tests can serve
// fixture HTML without a network.
type FetchFunc func(ctx context.Context, url string) (io.Reader, error)

// Resolver finds a representative product image for a detail page. It never
// returns an error past its boundary: any network or parse failure yields an
// empty candidate list and the caller treats "no image" as a valid outcome.
type Resolver struct {
	fetch    FetchFunc
	renderer render.Renderer // optional; enables the rendered-DOM retry
	log      *logger.Logger
}

// NewResolverWithFetch creates a resolver around the injected fetch function.
func NewResolverWithFetch(fetch FetchFunc, renderer render.Renderer) *Resolver {
	return &Resolver{
		fetch:    fetch,
		renderer: renderer,
		log:      logger.ForResolver(),
	}
}

// ResolveImageCandidates fetches the detail page and returns every plausible
// product image URL, ranked best-first.
func (r *Resolver) ResolveImageCandidates(ctx context.Context, detailURL string) []string {
	candidates := r.collectFromPage(ctx, detailURL)

	// Sparse pages are often script-rendered; retry against the rendered DOM
	// when a renderer is available.
	if len(candidates) == 0 && r.renderer != nil {
		html, err := r.renderer.Render(ctx, detailURL)
		if err != nil {
			r.log.Debug().Err(err).Str("url", detailURL).Msg("Rendered retry failed")
			return nil
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil
		}
		candidates = collectCandidates(doc, detailURL)
	}

	ranked := RankCandidates(candidates)
	urls := make([]string, 0, len(ranked))
	for _, c := range ranked {
		urls = append(urls, c.URL)
	}
	return urls
}

// ResolveBestImage returns the single best image URL, or "" when none is found.
func (r *Resolver) ResolveBestImage(ctx context.Context, detailURL string) string {
	ranked := r.ResolveImageCandidates(ctx, detailURL)
	if len(ranked) == 0 {
		return ""
	}
	return ranked[0]
}

// collectFromPage fetches and parses the static page, swallowing failures.
func (r *Resolver) collectFromPage(ctx context.Context, detailURL string) []Candidate {
	body, err := r.fetch(ctx, detailURL)
	if err != nil {
		r.log.Debug().Err(err).Str("url", detailURL).Msg("Detail page fetch failed")
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		r.log.Debug().Err(err).Str("url", detailURL).Msg("Detail page parse failed")
		return nil
	}
	return collectCandidates(doc, detailURL)
}
