package imageresolver

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fixtureFetcher(html string) FetchFunc {
	return func(ctx context.Context, url string) (io.Reader, error) {
		return strings.NewReader(html), nil
	}
}

func failingFetcher() FetchFunc {
	return func(ctx context.Context, url string) (io.Reader, error) {
		return nil, errors.New("connection refused")
	}
}

// fakeRenderer serves a fixed HTML document as the rendered DOM.
type fakeRenderer struct {
	html   string
	err    error
	called int
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (string, error) {
	f.called++
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

func (f *fakeRenderer) Close() {}

const detailURL = "https://www.alibaba.com/product-detail/Wireless-Earbuds_1600123456789.html"

func TestResolveBestImagePrefersLargeVariant(t *testing.T) {
	html := `<html><body>
		<img class="main-image" src="https://s.alicdn.com/@sc04/kf/photo/220x220/photo.jpg"
			data-zoom-image="https://s.alicdn.com/@sc04/kf/photo/1000x1000/photo.jpg" />
		<img class="product-image" src="https://s.alicdn.com/assets/sprite/flags-icons.png" />
	</body></html>`

	r := NewResolverWithFetch(fixtureFetcher(html), nil)
	best := r.ResolveBestImage(context.Background(), detailURL)

	assert.Equal(t, "https://s.alicdn.com/@sc04/kf/photo/1000x1000/photo.jpg", best)
}

func TestResolveImageCandidatesNeverReturnsBlockedPaths(t *testing.T) {
	html := `<html><body>
		<img class="main-image" src="https://s.alicdn.com/img/icons/cart.png" />
		<img class="detail-gallery-img product-image" src="https://s.alicdn.com/kf/H123/item.jpg" />
		<img class="product-image" src="https://evil.example.com/kf/H999/item.jpg" />
	</body></html>`

	r := NewResolverWithFetch(fixtureFetcher(html), nil)
	candidates := r.ResolveImageCandidates(context.Background(), detailURL)

	assert.Equal(t, []string{"https://s.alicdn.com/kf/H123/item.jpg"}, candidates)
}

func TestResolveCollectsMetaAndJSONLDAndLink(t *testing.T) {
	html := `<html><head>
		<meta property="og:image" content="https://s.alicdn.com/kf/og/600x600/main.jpg" />
		<meta name="twitter:image" content="//s.alicdn.com/kf/tw/400x400/main.jpg" />
		<link rel="image_src" href="https://s.alicdn.com/kf/rel/300x300/main.jpg" />
		<script type="application/ld+json">{"@type":"Product","image":["https://s.alicdn.com/kf/ld/800x800/main.jpg"]}</script>
	</head><body></body></html>`

	r := NewResolverWithFetch(fixtureFetcher(html), nil)
	candidates := r.ResolveImageCandidates(context.Background(), detailURL)

	assert.Equal(t, []string{
		"https://s.alicdn.com/kf/ld/800x800/main.jpg",
		"https://s.alicdn.com/kf/og/600x600/main.jpg",
		"https://s.alicdn.com/kf/tw/400x400/main.jpg",
		"https://s.alicdn.com/kf/rel/300x300/main.jpg",
	}, candidates)
}

func TestResolveInlineScriptScan(t *testing.T) {
	html := `<html><body><script>
		window.__DATA__ = {"detail":{"imageUrl":"https:\/\/s.alicdn.com\/kf\/js\/750x750\/pic.jpg"}};
	</script></body></html>`

	r := NewResolverWithFetch(fixtureFetcher(html), nil)
	candidates := r.ResolveImageCandidates(context.Background(), detailURL)

	assert.Equal(t, []string{"https://s.alicdn.com/kf/js/750x750/pic.jpg"}, candidates)
}

func TestResolveSrcsetVariants(t *testing.T) {
	html := `<html><body>
		<img class="main-image"
			src="https://s.alicdn.com/kf/a/200x200/p.jpg"
			srcset="https://s.alicdn.com/kf/a/400x400/p.jpg 400w, https://s.alicdn.com/kf/a/960x960/p.jpg 960w" />
	</body></html>`

	r := NewResolverWithFetch(fixtureFetcher(html), nil)
	best := r.ResolveBestImage(context.Background(), detailURL)

	assert.Equal(t, "https://s.alicdn.com/kf/a/960x960/p.jpg", best)
}

func TestResolveFetchFailureYieldsEmpty(t *testing.T) {
	r := NewResolverWithFetch(failingFetcher(), nil)

	candidates := r.ResolveImageCandidates(context.Background(), detailURL)
	assert.Empty(t, candidates)
	assert.Equal(t, "", r.ResolveBestImage(context.Background(), detailURL))
}

func TestResolveFallsBackToRenderedDOM(t *testing.T) {
	empty := `<html><body><div id="app"></div></body></html>`
	rendered := `<html><body><img class="main-image" src="https://s.alicdn.com/kf/r/640x640/p.jpg" /></body></html>`

	renderer := &fakeRenderer{html: rendered}
	r := NewResolverWithFetch(fixtureFetcher(empty), renderer)
	best := r.ResolveBestImage(context.Background(), detailURL)

	assert.Equal(t, 1, renderer.called)
	assert.Equal(t, "https://s.alicdn.com/kf/r/640x640/p.jpg", best)
}

func TestResolveRendererFailureYieldsEmpty(t *testing.T) {
	empty := `<html><body></body></html>`
	renderer := &fakeRenderer{err: errors.New("browser gone")}

	r := NewResolverWithFetch(fixtureFetcher(empty), renderer)
	assert.Empty(t, r.ResolveImageCandidates(context.Background(), detailURL))
}
