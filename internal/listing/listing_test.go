package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeURLStripsTrackingNoise(t *testing.T) {
	raw := "https://WWW.Alibaba.com/product-detail/Wireless-Earbuds_1600123456789.html?spm=a2700.galleryofferlist&utm_source=feed&magic=1#description"
	got := CanonicalizeURL(raw)

	assert.Equal(t, "https://www.alibaba.com/product-detail/Wireless-Earbuds_1600123456789.html?magic=1", got)
}

func TestCanonicalizeURLIdempotent(t *testing.T) {
	urls := []string{
		"https://www.alibaba.com/product-detail/Item_1600000000001.html?spm=x&b=2&a=1",
		"https://www.made-in-china.com/showroom/widget/product/Thing.html",
		"http://example.com/p?utm_campaign=q",
		"https://www.alibaba.com/product-detail/Item_1.html/",
	}
	for _, raw := range urls {
		once := CanonicalizeURL(raw)
		twice := CanonicalizeURL(once)
		assert.Equal(t, once, twice, "canonicalization must be idempotent for %s", raw)
	}
}

func TestCanonicalizeURLSortsSurvivingParams(t *testing.T) {
	a := CanonicalizeURL("https://www.alibaba.com/search?page=2&q=earbuds")
	b := CanonicalizeURL("https://www.alibaba.com/search?q=earbuds&page=2")
	assert.Equal(t, a, b)
}

func TestIsValid(t *testing.T) {
	// Long enough title, no signal: valid.
	l := ExternalListing{Title: "USB hub", URL: "https://www.alibaba.com/product-detail/x_1.html"}
	assert.True(t, l.IsValid())

	// Short title, no signal: invalid.
	l = ExternalListing{Title: "ab", URL: "https://www.alibaba.com/product-detail/x_1.html"}
	assert.False(t, l.IsValid())

	// Short title but carries a price signal: valid.
	l.Price = "$1.99"
	assert.True(t, l.IsValid())

	// Short title with image signal only: valid.
	l = ExternalListing{Title: "ab", Image: "https://s.alicdn.com/x.jpg"}
	assert.True(t, l.IsValid())
}

func TestNormalize(t *testing.T) {
	l := ExternalListing{
		Title: "  Wireless\tEarbuds  TWS ",
		URL:   "https://www.Alibaba.com/product-detail/x_160012.html?spm=abc",
		Price: " US$ 3.20 - 4.10 ",
	}
	l.Normalize()
	assert.Equal(t, "Wireless Earbuds TWS", l.Title)
	assert.Equal(t, "https://www.alibaba.com/product-detail/x_160012.html", l.URL)
	assert.Equal(t, "US$ 3.20 - 4.10", l.Price)
	assert.Equal(t, PlatformAlibaba, l.Platform)
}

func TestDedupByURL(t *testing.T) {
	items := []ExternalListing{
		{Title: "first", URL: "https://www.alibaba.com/product-detail/a_1.html?spm=1"},
		{Title: "dup", URL: "https://www.alibaba.com/product-detail/a_1.html"},
		{Title: "second", URL: "https://www.alibaba.com/product-detail/b_2.html"},
	}
	out := DedupByURL(items)
	assert.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Title)
	assert.Equal(t, "second", out[1].Title)
}

func TestAddTermAndCategoryAreSets(t *testing.T) {
	l := ExternalListing{}
	l.AddTerm("earbuds")
	l.AddTerm("earbuds")
	l.AddCategory("audio.tws")
	l.AddCategory("audio.tws")
	l.AddCategory("")
	assert.Equal(t, []string{"earbuds"}, l.Terms)
	assert.Equal(t, []string{"audio.tws"}, l.Categories)
}

func TestPlatformForURL(t *testing.T) {
	assert.Equal(t, PlatformAlibaba, PlatformForURL("https://www.alibaba.com/product-detail/x_1.html"))
	assert.Equal(t, PlatformMadeInChina, PlatformForURL("https://www.made-in-china.com/p/x"))
	assert.Equal(t, PlatformGlobalSources, PlatformForURL("https://www.globalsources.com/p/x"))
	assert.Equal(t, PlatformUnknown, PlatformForURL("https://example.com/x"))
}
