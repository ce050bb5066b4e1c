package listing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/coderfong/moq-pools-sub002/helpers"
)

// bannedKeywords exclude listings we never want in the pool catalog.
var bannedKeywords = []string{
	"replica",
	"counterfeit",
	"fake brand",
	"weapon",
	"cigarette",
	"vape",
	"adult toy",
}

// accessoryMarkers flag listings that are accessories to another product
// rather than products themselves. Accessory-heavy terms drown out the actual
// leaf product, so these are dropped unless explicitly allowed.
var accessoryMarkers = []string{
	"case for",
	"cover for",
	"holder for",
	"strap for",
	"replacement for",
	"compatible with",
	"screen protector",
	"protective film",
	"spare part",
	"accessor",
}

// stopTokens carry no product information and do not count toward the
// informative-token minimum.
var stopTokens = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "new": true,
	"hot": true, "sale": true, "wholesale": true, "factory": true,
	"price": true, "cheap": true, "high": true, "quality": true,
	"custom": true, "oem": true, "odm": true, "2024": true, "2025": true,
	"2026": true, "free": true, "shipping": true,
}

var (
	promoPrefixRe = regexp.MustCompile(`(?i)^(hot sale|hot selling|new arrival|factory price|free shipping|wholesale|promotional)[\s:,-]+`)
	moqNumberRe   = regexp.MustCompile(`(\d[\d,]*)`)
	tokenSplitRe  = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	productPathRe = regexp.MustCompile(`(?i)(/product-detail/|/product/|_\d{8,}\.html|/p-\d+|prod\.html)`)
	sellerPathRe  = regexp.MustCompile(`(?i)(/company/|/supplier/|/showroom/|\.company_profile\.html)`)
)

// SanitizeTitle strips promotional boilerplate prefixes, surrounding quotes and
// collapses whitespace. Applied during batch classification, not at parse time,
// so raw scraped titles stay available upstream.
func SanitizeTitle(title string) string {
	title = helpers.NormalizeSpace(title)
	title = strings.Trim(title, `"'“”`)
	for {
		stripped := promoPrefixRe.ReplaceAllString(title, "")
		if stripped == title {
			break
		}
		title = stripped
	}
	return helpers.NormalizeSpace(title)
}

// CanonicalKey derives the dedup identity for a listing within an ingestion run.
func CanonicalKey(l *ExternalListing) string {
	return CanonicalizeURL(l.URL)
}

// ParseMOQ extracts the leading integer from a raw MOQ display string.
// Returns 0 when no number is present.
func ParseMOQ(moq string) int {
	m := moqNumberRe.FindString(moq)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// InformativeTokens counts title tokens that actually describe the product:
// at least three characters and not in the stop list.
func InformativeTokens(title string) int {
	count := 0
	for _, tok := range tokenSplitRe.Split(strings.ToLower(title), -1) {
		if len(tok) < 3 || stopTokens[tok] {
			continue
		}
		count++
	}
	return count
}

// HasBannedKeyword reports whether the title matches the exclusion list.
func HasBannedKeyword(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range bannedKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsAccessory reports whether the title reads like an accessory to some other
// product rather than a product of its own.
func IsAccessory(title string) bool {
	lower := strings.ToLower(title)
	for _, marker := range accessoryMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// LooksLikeDetailURL reports whether a URL has the shape of a genuine product
// detail page rather than a seller page, category page or navigation link.
func LooksLikeDetailURL(raw string) bool {
	u := strings.ToLower(raw)
	if sellerPathRe.MatchString(u) {
		return false
	}
	return productPathRe.MatchString(u)
}

// TermSlug converts a search term into a category-slug form for tagging.
func TermSlug(term string) string {
	slug := tokenSplitRe.ReplaceAllString(strings.ToLower(helpers.NormalizeSpace(term)), "-")
	return strings.Trim(slug, "-")
}
