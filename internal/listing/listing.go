package listing

import (
	"net/url"
	"sort"
	"strings"

	"github.com/coderfong/moq-pools-sub002/helpers"
)

// Platform identifies the source marketplace of a listing.
type Platform string

const (
	PlatformAlibaba       Platform = "alibaba"
	PlatformMadeInChina   Platform = "made-in-china"
	PlatformGlobalSources Platform = "globalsources"
	PlatformUnknown       Platform = "unknown"
)

// PlatformForURL maps a detail URL to its source platform by host.
func PlatformForURL(raw string) Platform {
	u, err := url.Parse(raw)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case strings.HasSuffix(host, "alibaba.com"):
		return PlatformAlibaba
	case strings.HasSuffix(host, "made-in-china.com"):
		return PlatformMadeInChina
	case strings.HasSuffix(host, "globalsources.com"):
		return PlatformGlobalSources
	default:
		return PlatformUnknown
	}
}

// ExternalListing is one discovered item from a search result page.
// URL is the canonical detail URL and the identity key everywhere.
type ExternalListing struct {
	Platform    Platform `json:"platform"`
	Title       string   `json:"title"`
	Image       string   `json:"image,omitempty"`
	URL         string   `json:"url"`
	Price       string   `json:"price,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	MOQ         string   `json:"moq,omitempty"`
	StoreName   string   `json:"store_name,omitempty"`
	Description string   `json:"description,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Terms       []string `json:"terms,omitempty"`
	Rating      string   `json:"rating,omitempty"`
	Orders      string   `json:"orders,omitempty"`
}

// trackingParams are query parameters that carry session or campaign state and
// must never participate in listing identity.
var trackingParams = map[string]bool{
	"spm":         true,
	"src":         true,
	"from":        true,
	"tracelog":    true,
	"ali_refid":   true,
	"ali_trackid": true,
	"mark":        true,
	"gclid":       true,
	"fbclid":      true,
	"msclkid":     true,
	"sk":          true,
	"sid":         true,
	"session_id":  true,
	"ref":         true,
	"refer":       true,
	"bm":          true,
	"cid":         true,
	"biz_type":    true,
}

func isTrackingParam(name string) bool {
	lower := strings.ToLower(name)
	if trackingParams[lower] {
		return true
	}
	return strings.HasPrefix(lower, "utm_")
}

// CanonicalizeURL strips tracking/session query noise and the fragment from a
// detail URL, producing a stable identity key. The operation is idempotent:
// canonicalizing an already-canonical URL yields the same string.
func CanonicalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	kept := url.Values{}
	for name, values := range u.Query() {
		if isTrackingParam(name) {
			continue
		}
		for _, v := range values {
			kept.Add(name, v)
		}
	}

	if len(kept) == 0 {
		u.RawQuery = ""
	} else {
		// Encode with sorted keys so repeated canonicalization is stable.
		names := make([]string, 0, len(kept))
		for name := range kept {
			names = append(names, name)
		}
		sort.Strings(names)
		var b strings.Builder
		for _, name := range names {
			for _, v := range kept[name] {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(name))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = b.String()
	}

	// Trailing slash on a non-root path is another identity split.
	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	return u.String()
}

// HasSignal reports whether the listing carries any metadata beyond its title.
func (l *ExternalListing) HasSignal() bool {
	return l.Price != "" || l.MOQ != "" || l.StoreName != "" || l.Image != ""
}

// IsValid applies the minimum acceptance rule: a usable title, or at least one
// metadata signal. Listings failing this are dropped at parse time.
func (l *ExternalListing) IsValid() bool {
	if len(strings.TrimSpace(l.Title)) >= 4 {
		return true
	}
	return l.HasSignal()
}

// Normalize canonicalizes the URL and whitespace-normalizes the text fields in
// place. Call once per parsed row before any identity comparison.
func (l *ExternalListing) Normalize() {
	l.URL = CanonicalizeURL(l.URL)
	l.Title = helpers.NormalizeSpace(l.Title)
	l.Price = helpers.NormalizeSpace(l.Price)
	l.MOQ = helpers.NormalizeSpace(l.MOQ)
	l.StoreName = helpers.NormalizeSpace(l.StoreName)
	l.Description = helpers.NormalizeSpace(l.Description)
	l.Rating = helpers.NormalizeSpace(l.Rating)
	l.Orders = helpers.NormalizeSpace(l.Orders)
	if l.Platform == "" {
		l.Platform = PlatformForURL(l.URL)
	}
}

// AddTerm records a search term that produced this listing, set-style.
func (l *ExternalListing) AddTerm(term string) {
	for _, t := range l.Terms {
		if t == term {
			return
		}
	}
	l.Terms = append(l.Terms, term)
}

// AddCategory records a taxonomy leaf key on the listing, set-style.
func (l *ExternalListing) AddCategory(key string) {
	if key == "" {
		return
	}
	for _, c := range l.Categories {
		if c == key {
			return
		}
	}
	l.Categories = append(l.Categories, key)
}

// DedupByURL returns listings with duplicate canonical URLs removed,
// preserving first-seen order.
func DedupByURL(items []ExternalListing) []ExternalListing {
	seen := make(map[string]bool, len(items))
	out := make([]ExternalListing, 0, len(items))
	for _, item := range items {
		key := CanonicalizeURL(item.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		item.URL = key
		out = append(out, item)
	}
	return out
}
