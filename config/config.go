package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	pkgerr "github.com/coderfong/moq-pools-sub002/pkg/errors"
)

// Config represents the application configuration. Every empirically tuned
// constant in the pipeline (probe sizes, escalation floors, freshness windows)
// lives here so it can be retuned when upstream behavior drifts.
type Config struct {
	// Upstream endpoints
	SearchBaseURL string
	ExportBaseURL string
	DetailBaseURL string

	// Static fetch
	FetchTimeout   time.Duration
	SearchPageSize int
	SearchMaxPages int

	// Escalation tiers
	HeadlessEnabled    bool
	HeadlessSparseMin  int // escalate to headless below min(this, targetCount) results
	ExportSparseMin    int // escalate to export endpoint below min(this, targetCount) results
	RenderSettleDelay  time.Duration
	RenderNavTimeout   time.Duration

	// Image enrichment
	ImageWorkers  int
	ImageCacheDir string

	// Detail cache
	DetailTier1TTL  time.Duration
	DetailFreshness time.Duration
	CacheBackend    string // "memory" or "memcache"
	MemcacheAddr    string

	// Persistent store
	PostgresDSN string

	// Publisher
	PublishEnabled  bool
	RedisAddr       string
	RedisDB         int
	RedisStream     string
	RedisStreamMax  int64

	// Batch ingestion
	TargetPerLeaf        int
	TermsPerLeaf         int
	PrefetchSize         int
	EscalationThreshold  int
	AcceptFloor          int
	MinInformativeTokens int
	AllowAccessories     bool
	ResumePath           string
	LeafCap              int

	// Metrics
	MetricsWindow int

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() Config {
	return Config{
		SearchBaseURL: getEnv("SEARCH_BASE_URL", "https://www.alibaba.com"),
		ExportBaseURL: getEnv("EXPORT_BASE_URL", "https://www.alibaba.com/trade/search"),
		DetailBaseURL: getEnv("DETAIL_BASE_URL", "https://www.alibaba.com"),

		FetchTimeout:   getEnvDuration("FETCH_TIMEOUT_SECONDS", 8) * time.Second,
		SearchPageSize: getEnvInt("SEARCH_PAGE_SIZE", 20),
		SearchMaxPages: getEnvInt("SEARCH_MAX_PAGES", 5),

		HeadlessEnabled:   getEnvBool("HEADLESS_ENABLED", false),
		HeadlessSparseMin: getEnvInt("HEADLESS_SPARSE_MIN", 6),
		ExportSparseMin:   getEnvInt("EXPORT_SPARSE_MIN", 4),
		RenderSettleDelay: getEnvDuration("RENDER_SETTLE_SECONDS", 3) * time.Second,
		RenderNavTimeout:  getEnvDuration("RENDER_NAV_TIMEOUT_SECONDS", 30) * time.Second,

		ImageWorkers:  getEnvInt("IMAGE_WORKERS", 4),
		ImageCacheDir: getEnv("IMAGE_CACHE_DIR", "data/images"),

		DetailTier1TTL:  getEnvDuration("DETAIL_TIER1_TTL_MINUTES", 10) * time.Minute,
		DetailFreshness: getEnvDuration("DETAIL_FRESHNESS_HOURS", 24) * time.Hour,
		CacheBackend:    getEnv("CACHE_BACKEND", "memory"),
		MemcacheAddr:    getEnv("MEMCACHE_ADDR", "localhost:11211"),

		PostgresDSN: getEnv("POSTGRES_DSN", ""),

		PublishEnabled: getEnvBool("PUBLISH_ENABLED", false),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisStream:    getEnv("REDIS_STREAM", "listings"),
		RedisStreamMax: int64(getEnvInt("REDIS_STREAM_MAXLEN", 5000)),

		TargetPerLeaf:        getEnvInt("TARGET_PER_LEAF", 60),
		TermsPerLeaf:         getEnvInt("TERMS_PER_LEAF", 3),
		PrefetchSize:         getEnvInt("PREFETCH_SIZE", 40),
		EscalationThreshold:  getEnvInt("ESCALATION_THRESHOLD", 30),
		AcceptFloor:          getEnvInt("ACCEPT_FLOOR", 10),
		MinInformativeTokens: getEnvInt("MIN_INFORMATIVE_TOKENS", 2),
		AllowAccessories:     getEnvBool("ALLOW_ACCESSORIES", false),
		ResumePath:           getEnv("RESUME_PATH", "data/ingest-progress.json"),
		LeafCap:              getEnvInt("LEAF_CAP", 0),

		MetricsWindow: getEnvInt("METRICS_WINDOW", 50),

		Environment: getEnv("INGEST_ENVIRONMENT", "development"),
	}
}

// Validate checks that the configuration is internally consistent
func (c *Config) Validate() error {
	if c.SearchBaseURL == "" {
		return pkgerr.NewConfiguration("search base URL must not be empty", nil)
	}
	if c.SearchPageSize <= 0 {
		return pkgerr.NewConfiguration(fmt.Sprintf("search page size must be positive, got %d", c.SearchPageSize), nil)
	}
	if c.SearchMaxPages <= 0 {
		return pkgerr.NewConfiguration(fmt.Sprintf("search max pages must be positive, got %d", c.SearchMaxPages), nil)
	}
	if c.ImageWorkers <= 0 {
		return pkgerr.NewConfiguration(fmt.Sprintf("image workers must be positive, got %d", c.ImageWorkers), nil)
	}
	if c.DetailTier1TTL <= 0 || c.DetailFreshness <= 0 {
		return pkgerr.NewConfiguration("detail cache windows must be positive", nil)
	}
	if c.CacheBackend != "memory" && c.CacheBackend != "memcache" {
		return pkgerr.NewConfiguration(fmt.Sprintf("unknown cache backend %q", c.CacheBackend), nil)
	}
	if c.AcceptFloor > c.EscalationThreshold {
		return pkgerr.NewConfiguration(fmt.Sprintf("accept floor (%d) must not exceed escalation threshold (%d)",
			c.AcceptFloor, c.EscalationThreshold), nil)
	}
	if c.PrefetchSize < c.EscalationThreshold {
		return pkgerr.NewConfiguration(fmt.Sprintf("prefetch size (%d) must be at least the escalation threshold (%d)",
			c.PrefetchSize, c.EscalationThreshold), nil)
	}
	if c.MetricsWindow <= 0 {
		return pkgerr.NewConfiguration(fmt.Sprintf("metrics window must be positive, got %d", c.MetricsWindow), nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue))
}
