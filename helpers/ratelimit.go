package helpers

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strconv"
	"time"

	pkgerr "github.com/coderfong/moq-pools-sub002/pkg/errors"
	"github.com/coderfong/moq-pools-sub002/services/cache"
)

const rateLimitKeyPrefix = "ratelimit:"

// RateLimitedFetch wraps fetch with a per-host soft block backed by svc. When
// the upstream answers with a rate-limit status, the host gets a block key
// with the reported Retry-After as TTL; while the key lives, fetches to that
// host fail fast with a rate-limit error instead of hitting the upstream.
// With a nil svc the fetch is returned unchanged.
func RateLimitedFetch(svc cache.CacheService, fetch func(ctx context.Context, url string) (io.Reader, error)) func(ctx context.Context, url string) (io.Reader, error) {
	if svc == nil {
		return fetch
	}

	return func(ctx context.Context, rawURL string) (io.Reader, error) {
		host := hostOf(rawURL)
		key := rateLimitKeyPrefix + host

		if raw, err := svc.Get(key); err == nil {
			secs, _ := strconv.Atoi(string(raw))
			return nil, pkgerr.NewRateLimit(host, time.Duration(secs)*time.Second)
		}

		body, err := fetch(ctx, rawURL)
		if err != nil {
			var pe *pkgerr.PipelineError
			if errors.As(err, &pe) && pe.Type == pkgerr.ErrorTypeRateLimit && pe.RetryAfter > 0 {
				secs := int(pe.RetryAfter / time.Second)
				svc.Set(key, []byte(strconv.Itoa(secs)), pe.RetryAfter)
			}
		}
		return body, err
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
