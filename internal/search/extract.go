package search

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/coderfong/moq-pools-sub002/helpers"
	"github.com/coderfong/moq-pools-sub002/internal/listing"
)

// cardSelectors locate structured result cards across the layouts the search
// endpoint has been observed to serve.
var cardSelectors = []string{
	".fy23-search-card",
	".organic-gallery-offer-outter",
	".J-offer-wrapper",
	"[data-content='productCard']",
	".list-no-v2-outter",
	".search-card",
}

var titleSelectors = []string{
	".search-card-e-title",
	"h2",
	"[class*='subject']",
	"[class*='title']",
}

var imageAttrs = []string{"src", "data-src", "data-image-src", "image-src"}

// offerObjectRe matches one JSON object literal in an inline script that
// carries both a title-like and a URL-like field, in either order.
var offerObjectRe = regexp.MustCompile(
	`\{[^{}]*?"(?:subject|title|productTitle)"\s*:\s*"([^"]+)"[^{}]*?"(?:detailUrl|productUrl|productDetailUrl|url)"\s*:\s*"([^"]+)"[^{}]*?\}`)

var offerObjectReversedRe = regexp.MustCompile(
	`\{[^{}]*?"(?:detailUrl|productUrl|productDetailUrl|url)"\s*:\s*"([^"]+)"[^{}]*?"(?:subject|title|productTitle)"\s*:\s*"([^"]+)"[^{}]*?\}`)

// extractListings runs the extraction strategy chain against one parsed search
// results page, stopping at the first tier that yields anything. The broad
// anchor harvest only runs on the first page, where navigation noise is
// outweighed by the chance of salvaging an otherwise empty result.
func extractListings(doc *goquery.Document, pageURL string, firstPage bool) []listing.ExternalListing {
	if items := extractStructuredCards(doc, pageURL); len(items) > 0 {
		return items
	}
	if items := extractLooseAnchors(doc, pageURL); len(items) > 0 {
		return items
	}
	if items := extractInlineScripts(doc, pageURL); len(items) > 0 {
		return items
	}
	if firstPage {
		return extractBroadAnchors(doc, pageURL)
	}
	return nil
}

// extractStructuredCards parses result cards with field-level selectors.
func extractStructuredCards(doc *goquery.Document, pageURL string) []listing.ExternalListing {
	var items []listing.ExternalListing

	for _, sel := range cardSelectors {
		doc.Find(sel).Each(func(_ int, card *goquery.Selection) {
			item := parseCard(card, pageURL)
			if item != nil {
				items = append(items, *item)
			}
		})
		if len(items) > 0 {
			break
		}
	}
	return items
}

func parseCard(card *goquery.Selection, pageURL string) *listing.ExternalListing {
	href := firstHref(card)
	if href == "" {
		return nil
	}

	item := listing.ExternalListing{
		URL:   resolveHref(href, pageURL),
		Title: firstText(card, titleSelectors),
	}
	if item.URL == "" {
		return nil
	}

	if img := card.Find("img").First(); img.Length() > 0 {
		for _, attr := range imageAttrs {
			if v, ok := img.Attr(attr); ok && v != "" {
				item.Image = resolveHref(v, pageURL)
				break
			}
		}
		if item.Title == "" {
			item.Title, _ = img.Attr("alt")
		}
	}

	item.Price = firstText(card, []string{"[class*='price']"})
	item.StoreName = firstText(card, []string{
		"[class*='company']", "[class*='supplier']", "[class*='store']",
	})
	item.Rating = firstText(card, []string{"[class*='rating']", "[class*='review']"})
	item.MOQ = cardMOQ(card)
	item.Orders = cardOrders(card)

	item.Normalize()
	if !item.IsValid() {
		return nil
	}
	return &item
}

// cardMOQ hunts for the "Min. order" feature line inside a card.
func cardMOQ(card *goquery.Selection) string {
	if v := firstText(card, []string{"[class*='moq']", "[class*='min-order']"}); v != "" {
		return v
	}
	var found string
	card.Find("div,span,p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := helpers.NormalizeSpace(s.Text())
		lower := strings.ToLower(text)
		if strings.HasPrefix(lower, "min. order") || strings.HasPrefix(lower, "min order") ||
			strings.HasPrefix(lower, "moq") {
			found = text
			return false
		}
		return true
	})
	return found
}

func cardOrders(card *goquery.Selection) string {
	var found string
	card.Find("span,div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := helpers.NormalizeSpace(s.Text())
		if strings.Contains(strings.ToLower(text), "sold") && len(text) < 40 {
			found = text
			return false
		}
		return true
	})
	return found
}

// extractLooseAnchors matches anchors whose href has a product detail shape,
// regardless of surrounding markup.
func extractLooseAnchors(doc *goquery.Document, pageURL string) []listing.ExternalListing {
	var items []listing.ExternalListing

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := resolveHref(href, pageURL)
		if abs == "" || !listing.LooksLikeDetailURL(abs) {
			return
		}

		title := helpers.NormalizeSpace(a.Text())
		if title == "" {
			title, _ = a.Attr("title")
		}

		item := listing.ExternalListing{URL: abs, Title: title}
		if img := a.Find("img").First(); img.Length() > 0 {
			for _, attr := range imageAttrs {
				if v, ok := img.Attr(attr); ok && v != "" {
					item.Image = resolveHref(v, pageURL)
					break
				}
			}
			if item.Title == "" {
				item.Title, _ = img.Attr("alt")
			}
		}

		item.Normalize()
		if item.IsValid() {
			items = append(items, item)
		}
	})

	return listing.DedupByURL(items)
}

// extractInlineScripts scans script bodies for offer-shaped JSON object
// literals. Last structured resort before the broad harvest.
func extractInlineScripts(doc *goquery.Document, pageURL string) []listing.ExternalListing {
	var items []listing.ExternalListing

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		text := s.Text()
		for _, m := range offerObjectRe.FindAllStringSubmatch(text, -1) {
			if item := scriptListing(m[1], m[2], pageURL); item != nil {
				items = append(items, *item)
			}
		}
		for _, m := range offerObjectReversedRe.FindAllStringSubmatch(text, -1) {
			if item := scriptListing(m[2], m[1], pageURL); item != nil {
				items = append(items, *item)
			}
		}
	})

	return listing.DedupByURL(items)
}

func scriptListing(rawTitle, rawURL, pageURL string) *listing.ExternalListing {
	abs := resolveHref(unescapeJSON(rawURL), pageURL)
	if abs == "" || !listing.LooksLikeDetailURL(abs) {
		return nil
	}
	item := listing.ExternalListing{
		URL:   abs,
		Title: unescapeJSON(rawTitle),
	}
	item.Normalize()
	if !item.IsValid() {
		return nil
	}
	return &item
}

func unescapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\/`, `/`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	return s
}

// extractBroadAnchors is the first-page-only harvest: every anchor on the
// page, kept when its href looks like a detail page and its text could pass
// for a product title.
func extractBroadAnchors(doc *goquery.Document, pageURL string) []listing.ExternalListing {
	var items []listing.ExternalListing

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := resolveHref(href, pageURL)
		if abs == "" || !listing.LooksLikeDetailURL(abs) {
			return
		}
		title := helpers.NormalizeSpace(a.Text())
		if title == "" {
			title, _ = a.Attr("title")
		}
		if len(title) < 4 {
			return
		}
		item := listing.ExternalListing{URL: abs, Title: title}
		item.Normalize()
		items = append(items, item)
	})

	return listing.DedupByURL(items)
}

// firstHref returns the first usable anchor href inside a card, preferring
// detail-shaped URLs.
func firstHref(card *goquery.Selection) string {
	var fallback string
	var detail string
	card.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if href == "" || strings.HasPrefix(href, "javascript:") || href == "#" {
			return true
		}
		if fallback == "" {
			fallback = href
		}
		if listing.LooksLikeDetailURL(href) {
			detail = href
			return false
		}
		return true
	})
	if detail != "" {
		return detail
	}
	return fallback
}

func firstText(root *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if s := root.Find(sel).First(); s.Length() > 0 {
			if text := helpers.NormalizeSpace(s.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// resolveHref absolutizes a reference against the page URL and rejects
// non-HTTP schemes.
func resolveHref(raw, pageURL string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
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
	return abs.String()
}
