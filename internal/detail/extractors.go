package detail

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/coderfong/moq-pools-sub002/helpers"
	"github.com/coderfong/moq-pools-sub002/internal/listing"
)

// extractor turns one parsed detail page into a ProductDetail. Returns nil
// when the page carries nothing usable.
type extractor func(doc *goquery.Document) *listing.ProductDetail

var (
	genericPriceRe = regexp.MustCompile(`(?i)(?:US\s?\$|USD|€|£)\s?\d[\d,]*(?:\.\d+)?(?:\s*-\s*(?:US\s?\$|USD)?\s?\d[\d,]*(?:\.\d+)?)?`)
	genericMOQRe   = regexp.MustCompile(`(?i)(?:min\.?\s*order|minimum\s*order|moq)\s*[:：]?\s*(\d[\d,]*\s*[a-z]*)`)
)

// extractAlibaba parses an alibaba.com product-detail page.
func extractAlibaba(doc *goquery.Document) *listing.ProductDetail {
	d := &listing.ProductDetail{
		Title:       firstText(doc, "h1", ".product-title h1", "[class*='product-title']"),
		PriceText:   firstText(doc, "[class*='product-price']", "[class*='price-text']", ".price-list .price"),
		MOQText:     firstText(doc, "[class*='moq']", "[class*='min-order']"),
		Description: metaContent(doc, "description"),
	}

	doc.Find(".price-list .price-item, [class*='price-ladder'] li").Each(func(_ int, s *goquery.Selection) {
		tier := listing.PriceTier{
			MinQuantity: firstTextIn(s, "[class*='quality']", "[class*='quantity']", "[class*='min']"),
			Price:       firstTextIn(s, "[class*='price']"),
		}
		if tier.Price != "" {
			d.PriceTiers = append(d.PriceTiers, tier)
		}
	})

	doc.Find("[class*='attribute'] tr, .do-entry-list dl").Each(func(_ int, s *goquery.Selection) {
		var attr listing.Attribute
		if cells := s.Find("td"); cells.Length() >= 2 {
			attr.Name = helpers.NormalizeSpace(cells.Eq(0).Text())
			attr.Value = helpers.NormalizeSpace(cells.Eq(1).Text())
		} else {
			attr.Name = helpers.NormalizeSpace(s.Find("dt").Text())
			attr.Value = helpers.NormalizeSpace(s.Find("dd").Text())
		}
		if attr.Name != "" {
			d.Attributes = append(d.Attributes, attr)
		}
	})

	doc.Find(".detail-gallery img, [class*='gallery'] img").Each(func(_ int, s *goquery.Selection) {
		if src := imgSrc(s); src != "" {
			d.Gallery = append(d.Gallery, src)
		}
	})

	doc.Find("[class*='sku-prop'], [class*='variation']").Each(func(_ int, s *goquery.Selection) {
		v := listing.Variation{Name: firstTextIn(s, "[class*='prop-name'], [class*='name']")}
		s.Find("li, [class*='option']").Each(func(_ int, opt *goquery.Selection) {
			if text := helpers.NormalizeSpace(opt.Text()); text != "" {
				v.Options = append(v.Options, text)
			}
		})
		if v.Name != "" || len(v.Options) > 0 {
			d.Variations = append(d.Variations, v)
		}
	})

	doc.Find("[class*='customization'] li").Each(func(_ int, s *goquery.Selection) {
		d.CustomizationOptions = append(d.CustomizationOptions, helpers.NormalizeSpace(s.Text()))
	})
	doc.Find("[class*='ability'] li, [class*='capability'] li").Each(func(_ int, s *goquery.Selection) {
		d.SupplierAbilities = append(d.SupplierAbilities, helpers.NormalizeSpace(s.Text()))
	})
	doc.Find("[class*='protection'] li, [class*='guarantee'] li").Each(func(_ int, s *goquery.Selection) {
		d.Protections = append(d.Protections, helpers.NormalizeSpace(s.Text()))
	})

	supplierBlock := doc.Find("[class*='company-name'], [class*='supplier-name']").First()
	d.Supplier.Name = helpers.NormalizeSpace(supplierBlock.Text())
	if href, ok := supplierBlock.Find("a").Attr("href"); ok {
		d.Supplier.URL = href
	} else if href, ok := supplierBlock.Attr("href"); ok {
		d.Supplier.URL = href
	}
	d.Supplier.Years = firstText(doc, "[class*='supplier-year']", "[class*='year-icon']")
	d.Supplier.Rating = firstText(doc, "[class*='supplier-rating']", "[class*='score']")

	fillGenericFallbacks(doc, d)
	return d
}

// extractMadeInChina parses a made-in-china.com product page.
func extractMadeInChina(doc *goquery.Document) *listing.ProductDetail {
	d := &listing.ProductDetail{
		Title:       firstText(doc, "h1.sr-proMainInfo-baseInfo-name", "h1"),
		PriceText:   firstText(doc, ".price-info .price", "[class*='price']"),
		MOQText:     firstText(doc, "[class*='min-order']", "[class*='moq']"),
		Description: metaContent(doc, "description"),
	}

	doc.Find(".basic-info-list .bsc-item, [class*='property'] tr").Each(func(_ int, s *goquery.Selection) {
		attr := listing.Attribute{
			Name:  firstTextIn(s, ".bac-item-label, th"),
			Value: firstTextIn(s, ".bac-item-value, td"),
		}
		if attr.Name != "" {
			d.Attributes = append(d.Attributes, attr)
		}
	})

	doc.Find(".sr-proMainInfo-slide img, [class*='swiper'] img").Each(func(_ int, s *goquery.Selection) {
		if src := imgSrc(s); src != "" {
			d.Gallery = append(d.Gallery, src)
		}
	})

	d.Supplier.Name = firstText(doc, ".sr-proMainInfo-companyName", "[class*='company-name']")

	fillGenericFallbacks(doc, d)
	return d
}

// extractGlobalSources parses a globalsources.com product page.
func extractGlobalSources(doc *goquery.Document) *listing.ProductDetail {
	d := &listing.ProductDetail{
		Title:       firstText(doc, "h1.product-name", "h1"),
		PriceText:   firstText(doc, "[class*='product-price']", "[class*='price']"),
		MOQText:     firstText(doc, "[class*='min-order']", "[class*='moq']"),
		Description: metaContent(doc, "description"),
	}

	doc.Find(".product-attributes tr, [class*='spec'] tr").Each(func(_ int, s *goquery.Selection) {
		cells := s.Find("td")
		if cells.Length() < 2 {
			return
		}
		attr := listing.Attribute{
			Name:  helpers.NormalizeSpace(cells.Eq(0).Text()),
			Value: helpers.NormalizeSpace(cells.Eq(1).Text()),
		}
		if attr.Name != "" {
			d.Attributes = append(d.Attributes, attr)
		}
	})

	doc.Find("[class*='product-image'] img, [class*='gallery'] img").Each(func(_ int, s *goquery.Selection) {
		if src := imgSrc(s); src != "" {
			d.Gallery = append(d.Gallery, src)
		}
	})

	d.Supplier.Name = firstText(doc, "[class*='supplier-name']", "[class*='company']")

	fillGenericFallbacks(doc, d)
	return d
}

// extractGeneric is the host-agnostic fallback: meta tags plus regex heuristics
// over the page text.
func extractGeneric(doc *goquery.Document) *listing.ProductDetail {
	d := &listing.ProductDetail{
		Title:       firstText(doc, "h1"),
		Description: metaContent(doc, "description"),
	}
	fillGenericFallbacks(doc, d)
	return d
}

// fillGenericFallbacks fills empty core fields with heuristic extraction from
// broader page text. Every source extractor ends here, so structured-selector
// drift degrades to heuristics instead of an empty result.
func fillGenericFallbacks(doc *goquery.Document, d *listing.ProductDetail) {
	if d.Title == "" {
		d.Title = metaContent(doc, "og:title")
	}
	if d.Title == "" {
		d.Title = helpers.NormalizeSpace(doc.Find("title").First().Text())
	}

	bodyText := doc.Find("body").Text()
	if d.PriceText == "" {
		d.PriceText = genericPriceRe.FindString(bodyText)
	}
	if d.MOQText == "" {
		if m := genericMOQRe.FindStringSubmatch(bodyText); m != nil {
			d.MOQText = helpers.NormalizeSpace(m[1])
		}
	}
	if d.Currency == "" && d.PriceText != "" {
		d.Currency = currencyOf(d.PriceText)
	}
}

func currencyOf(priceText string) string {
	switch {
	case strings.Contains(priceText, "$"), strings.Contains(strings.ToUpper(priceText), "USD"):
		return "USD"
	case strings.Contains(priceText, "€"):
		return "EUR"
	case strings.Contains(priceText, "£"):
		return "GBP"
	default:
		return ""
	}
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if text := helpers.NormalizeSpace(s.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func firstTextIn(root *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if s := root.Find(sel).First(); s.Length() > 0 {
			if text := helpers.NormalizeSpace(s.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

func imgSrc(s *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if v, ok := s.Attr(attr); ok {
			v = strings.TrimSpace(v)
			if v != "" && !strings.HasPrefix(v, "data:") {
				return v
			}
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, nameOrProp string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		prop, _ := s.Attr("property")
		if name == nameOrProp || prop == nameOrProp {
			c, _ := s.Attr("content")
			content = helpers.NormalizeSpace(c)
			return false
		}
		return true
	})
	return content
}
