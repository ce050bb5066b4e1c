package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerr "github.com/coderfong/moq-pools-sub002/pkg/errors"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "https://www.alibaba.com", cfg.SearchBaseURL)
	assert.Equal(t, 20, cfg.SearchPageSize)
	assert.Equal(t, 5, cfg.SearchMaxPages)
	assert.Equal(t, 4, cfg.ImageWorkers)
	assert.Equal(t, 10*time.Minute, cfg.DetailTier1TTL)
	assert.Equal(t, 24*time.Hour, cfg.DetailFreshness)
	assert.Equal(t, 30, cfg.EscalationThreshold)
	assert.Equal(t, 10, cfg.AcceptFloor)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SEARCH_PAGE_SIZE", "48")
	t.Setenv("HEADLESS_ENABLED", "true")
	t.Setenv("ESCALATION_THRESHOLD", "20")
	t.Setenv("PREFETCH_SIZE", "25")

	cfg := LoadConfig()
	assert.Equal(t, 48, cfg.SearchPageSize)
	assert.True(t, cfg.HeadlessEnabled)
	assert.Equal(t, 20, cfg.EscalationThreshold)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsInconsistentThresholds(t *testing.T) {
	cfg := LoadConfig()
	cfg.AcceptFloor = 50
	err := cfg.Validate()
	var pe *pkgerr.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pkgerr.ErrorTypeConfiguration, pe.Type)

	cfg = LoadConfig()
	cfg.PrefetchSize = 5
	assert.Error(t, cfg.Validate())

	cfg = LoadConfig()
	cfg.CacheBackend = "etcd"
	assert.Error(t, cfg.Validate())
}
