package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRollingWindow(t *testing.T) {
	m := NewMetrics(5)

	for i := 1; i <= 10; i++ {
		m.Observe(time.Duration(i)*time.Millisecond, i)
	}

	snap := m.Snapshot()
	assert.Equal(t, 10, snap.Calls)
	assert.Equal(t, 10*time.Millisecond, snap.LastDuration)
	assert.Equal(t, 10, snap.LastCount)

	// Window holds the last five samples: 6..10ms.
	assert.Equal(t, 8*time.Millisecond, snap.AvgDuration)
	assert.Equal(t, 10*time.Millisecond, snap.P95Duration)
}

func TestMetricsEmptySnapshot(t *testing.T) {
	m := NewMetrics(50)
	snap := m.Snapshot()

	assert.Equal(t, 0, snap.Calls)
	assert.Equal(t, time.Duration(0), snap.AvgDuration)
	assert.Equal(t, time.Duration(0), snap.P95Duration)
}

func TestMetricsEscalationCounters(t *testing.T) {
	m := NewMetrics(50)
	m.RecordSparseEscalation()
	m.RecordSparseEscalation()
	m.RecordHeadlessPromotion()

	snap := m.Snapshot()
	assert.Equal(t, 2, snap.SparseEscalations)
	assert.Equal(t, 1, snap.HeadlessPromotions)
}
