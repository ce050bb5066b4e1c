package imageresolver

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Source identifies where a candidate came from, in decreasing order of trust.
type Source int

const (
	SourcePrimaryImage Source = iota
	SourceProductImage
	SourceMetaTag
	SourceImageSrcLink
	SourceJSONLD
	SourceInlineScript
)

// Candidate is one plausible product image reference.
type Candidate struct {
	URL    string
	Source Source
}

// primarySelectors locate the named main image element on supported detail
// page layouts.
var primarySelectors = []string{
	"img#mainImage",
	"img.main-image",
	".main-image img",
	".detail-gallery-turn img",
	"img[data-role='main-image']",
}

// productSelectors locate secondary product-image-class elements.
var productSelectors = []string{
	"img[class*='product-image']",
	".detail-gallery img",
	".product-gallery img",
	".thumb-list img",
	"img[class*='gallery']",
}

// zoomAttrs are attributes that carry a larger variant of the displayed image.
var zoomAttrs = []string{"data-zoom-image", "data-large", "data-big", "data-src", "data-lazy-src", "src"}

var inlineImageRe = regexp.MustCompile(`(?i)"(?:imageUrl|imgUrl|mainImage|originalImageUrl|image)"\s*:\s*"(\\?/\\?/[^"]+?\.(?:jpe?g|png|webp)[^"]*?|https?:[^"]+?\.(?:jpe?g|png|webp)[^"]*?)"`)

// collectCandidates gathers image references from every supported source on a
// parsed detail page, in order of trust.
func collectCandidates(doc *goquery.Document, pageURL string) []Candidate {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var out []Candidate
	seen := make(map[string]bool)

	add := func(raw string, source Source) {
		abs := absolutize(raw, base)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		out = append(out, Candidate{URL: abs, Source: source})
	}

	addImgAttrs := func(s *goquery.Selection, source Source) {
		for _, attr := range zoomAttrs {
			if v, ok := s.Attr(attr); ok {
				add(v, source)
			}
		}
		if srcset, ok := s.Attr("srcset"); ok {
			for _, v := range parseSrcset(srcset) {
				add(v, source)
			}
		}
	}

	// (1) named primary image element plus its zoom/large/srcset variants
	for _, sel := range primarySelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			addImgAttrs(s, SourcePrimaryImage)
		})
	}

	// (2) other product-image-class elements
	for _, sel := range productSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			addImgAttrs(s, SourceProductImage)
		})
	}

	// (3) Open Graph / Twitter meta tags
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		name, _ := s.Attr("name")
		switch {
		case prop == "og:image" || prop == "og:image:secure_url",
			name == "twitter:image" || name == "twitter:image:src":
			if content, ok := s.Attr("content"); ok {
				add(content, SourceMetaTag)
			}
		}
	})

	// (4) rel=image_src link
	doc.Find("link[rel='image_src']").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href, SourceImageSrcLink)
		}
	})

	// (5) JSON-LD image fields
	doc.Find("script[type='application/ld+json']").Each(func(_ int, s *goquery.Selection) {
		for _, img := range jsonLDImages(s.Text()) {
			add(img, SourceJSONLD)
		}
	})

	// (6) inline-script scan for image-like URL literals near image-ish keys
	doc.Find("script:not([type='application/ld+json'])").Each(func(_ int, s *goquery.Selection) {
		for _, m := range inlineImageRe.FindAllStringSubmatch(s.Text(), -1) {
			add(strings.ReplaceAll(m[1], `\/`, `/`), SourceInlineScript)
		}
	})

	return out
}

// absolutize normalizes a raw reference to an absolute URL against the page base.
func absolutize(raw string, base *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	abs.Fragment = ""
	return abs.String()
}

// parseSrcset extracts the URL part of every srcset entry.
func parseSrcset(srcset string) []string {
	var urls []string
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(entry))
		if len(fields) > 0 {
			urls = append(urls, fields[0])
		}
	}
	return urls
}

// jsonLDImages pulls image values out of a JSON-LD block. The image field may
// be a string, a list, or an ImageObject.
func jsonLDImages(raw string) []string {
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil
	}

	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			if img, ok := t["image"]; ok {
				collectImageValue(img, &out)
			}
			if graph, ok := t["@graph"]; ok {
				walk(graph)
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		}
	}
	walk(payload)
	return out
}

func collectImageValue(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		*out = append(*out, t)
	case []any:
		for _, item := range t {
			collectImageValue(item, out)
		}
	case map[string]any:
		if u, ok := t["url"].(string); ok {
			*out = append(*out, u)
		} else if u, ok := t["contentUrl"].(string); ok {
			*out = append(*out, u)
		}
	}
}
