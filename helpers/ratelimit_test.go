package helpers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerr "github.com/coderfong/moq-pools-sub002/pkg/errors"
	"github.com/coderfong/moq-pools-sub002/services/cache"
)

func TestRateLimitedFetchBlocksHostAfterRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Retry-After", "45")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := cache.NewMemoryService()
	fetch := RateLimitedFetch(svc, FetchWithRandomHeaders)

	_, err := fetch(context.Background(), srv.URL+"/trade/search?SearchText=earbuds&page=1")
	var pe *pkgerr.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pkgerr.ErrorTypeRateLimit, pe.Type)
	assert.Equal(t, 45*time.Second, pe.RetryAfter)

	// The next fetch to the same host must be suppressed locally while the
	// block key lives, not sent upstream.
	_, err = fetch(context.Background(), srv.URL+"/trade/search?SearchText=earbuds&page=2")
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pkgerr.ErrorTypeRateLimit, pe.Type)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestRateLimitedFetchPassesThroughOnSuccess(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	svc := cache.NewMemoryService()
	fetch := RateLimitedFetch(svc, FetchWithRandomHeaders)

	_, err := fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	_, err = fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRateLimitedFetchNilCacheIsPassthrough(t *testing.T) {
	called := 0
	inner := func(ctx context.Context, url string) (io.Reader, error) {
		called++
		return nil, pkgerr.NewRateLimit("example.com", 30*time.Second)
	}
	fetch := RateLimitedFetch(nil, inner)

	fetch(context.Background(), "https://example.com/a")
	fetch(context.Background(), "https://example.com/b")
	assert.Equal(t, 2, called)
}
