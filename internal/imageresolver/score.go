package imageresolver

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// allowedCDNSuffixes are the image CDN hosts of the supported marketplaces.
// Candidates hosted anywhere else are dropped.
var allowedCDNSuffixes = []string{
	"alicdn.com",
	"made-in-china.com",
	"globalsources.com",
}

// blockedPathTokens mark chrome assets the detail pages embed alongside
// product imagery: icons, flags, sprites, placeholders.
var blockedPathTokens = []string{
	"/icon",
	"icons/",
	"/flag",
	"sprite",
	"placeholder",
	"blank.",
	"spacer",
	"/logo",
	"avatar",
	"loading.",
}

// badImageHashes are content hashes of known junk images (grey boxes,
// "image coming soon" tiles) that upstream serves from the product CDN.
// A candidate whose URL embeds one of these is skipped at selection time.
var badImageHashes = []string{
	"d41d8cd98f00b204e9800998ecf8427e",
	"6af95947ce93b5e44b3cf8c7b07f1b14",
	"2f0b1cdd1ad9e6e91ff73d6b6e2a8be5",
}

var (
	dimensionRe = regexp.MustCompile(`(\d{2,4})[xX](\d{2,4})`)
	hashRe      = regexp.MustCompile(`[0-9a-f]{32}`)
)

// largePathTokens mark canonical full-size variants.
var largePathTokens = []string{"/large/", "/zoom/", "_zoom", "original", "/raw/"}

// thumbPathTokens mark thumbnail-sized variants.
var thumbPathTokens = []string{"thumb", "_s.", "-small", "_mini", "tiny", "_50x50", "summ."}

// Allowed reports whether a candidate passes the CDN allow-list and the path
// blocklist.
func Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())

	onCDN := false
	for _, suffix := range allowedCDNSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			onCDN = true
			break
		}
	}
	if !onCDN {
		return false
	}

	lowerPath := strings.ToLower(u.Path)
	if strings.HasSuffix(lowerPath, ".svg") {
		return false
	}
	for _, token := range blockedPathTokens {
		if strings.Contains(lowerPath, token) {
			return false
		}
	}
	return true
}

// hasBadHash reports whether the URL embeds a blacklisted content hash.
func hasBadHash(rawURL string) bool {
	for _, match := range hashRe.FindAllString(strings.ToLower(rawURL), -1) {
		for _, bad := range badImageHashes {
			if match == bad {
				return true
			}
		}
	}
	return false
}

// Score ranks a single candidate URL. Pure function of the URL.
func Score(rawURL string) int {
	lower := strings.ToLower(rawURL)
	score := 0

	// Explicit dimension hints: larger is better, quadratic weight so a
	// 1000x1000 variant dominates a 220x220 one.
	if m := dimensionRe.FindStringSubmatch(lower); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		side := min(w, h)
		score += side * side / 100
	}

	for _, token := range largePathTokens {
		if strings.Contains(lower, token) {
			score += 3000
			break
		}
	}

	switch {
	case strings.Contains(lower, ".jpg"), strings.Contains(lower, ".jpeg"):
		score += 300
	case strings.Contains(lower, ".png"):
		score += 200
	case strings.Contains(lower, ".webp"):
		score += 100
	}

	for _, token := range thumbPathTokens {
		if strings.Contains(lower, token) {
			score -= 2000
			break
		}
	}

	return score
}

// RankCandidates filters candidates through the allow/block lists and the
// bad-hash exclusion, then orders them best-first. Ordering is deterministic:
// score descending, then source trust, then URL.
func RankCandidates(candidates []Candidate) []Candidate {
	filtered := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !Allowed(c.URL) || hasBadHash(c.URL) {
			continue
		}
		filtered = append(filtered, c)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		si, sj := Score(filtered[i].URL), Score(filtered[j].URL)
		if si != sj {
			return si > sj
		}
		if filtered[i].Source != filtered[j].Source {
			return filtered[i].Source < filtered[j].Source
		}
		return filtered[i].URL < filtered[j].URL
	})
	return filtered
}
