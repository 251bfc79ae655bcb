package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/rgwsync/internal/model"
)

func objects(n int64) model.BucketStats {
	return model.BucketStats{NumObjects: n, SizeActual: n * 1024}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name        string
		primary     int64
		secondary   int64
		wantDelta   int64
		wantPercent float64
	}{
		{"partial", 100, 80, 20, 80},
		{"both empty", 0, 0, 0, 100},
		{"secondary ahead", 50, 60, 0, 100},
		{"secondary empty", 10, 0, 10, 0},
		{"primary empty secondary not", 0, 5, 0, 0},
		{"rounded", 3, 1, 2, 33.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := Compare(objects(tt.primary), objects(tt.secondary))
			assert.Equal(t, tt.wantDelta, cmp.DeltaObjects)
			assert.Equal(t, tt.wantDelta*1024, cmp.DeltaSize)
			assert.InDelta(t, tt.wantPercent, cmp.ProgressPct, 0.001)
			assert.Equal(t, tt.secondary, cmp.Stats.NumObjects)
		})
	}
}

func TestBuildSnapshotWorstAcrossSecondaries(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	stats := ZoneStats{
		"primary": {"b": objects(100)},
		"s1":      {"b": objects(90)},
		"s2":      {"b": objects(60)},
		"s3":      {"b": objects(100)},
	}

	snap := BuildSnapshot(ts, "b", "primary", []string{"s1", "s2", "s3"}, stats, true)

	require.NotNil(t, snap.SyncProgressPct)
	assert.Equal(t, 60.0, *snap.SyncProgressPct)
	assert.Equal(t, int64(50), snap.DeltaObjects)
	assert.Equal(t, int64(50*1024), snap.DeltaSize)
	assert.Len(t, snap.Replicas, 3)
	assert.Equal(t, "primary", snap.PrimaryZone)
	assert.Equal(t, ts, snap.Timestamp)
	assert.False(t, snap.NoSecondaryData)
	assert.False(t, snap.SingleZone)
}

func TestBuildSnapshotDeltaSum(t *testing.T) {
	stats := ZoneStats{
		"p":  {"b": objects(20)},
		"s1": {"b": objects(15)},
		"s2": {"b": objects(10)},
		"s3": {"b": objects(25)},
	}

	snap := BuildSnapshot(time.Now(), "b", "p", []string{"s1", "s2", "s3"}, stats, true)
	assert.Equal(t, int64(15), snap.DeltaObjects)
}

func TestBuildSnapshotMissingOnSecondary(t *testing.T) {
	stats := ZoneStats{
		"p":  {"b": objects(40)},
		"s1": {"other": objects(1)},
	}

	snap := BuildSnapshot(time.Now(), "b", "p", []string{"s1"}, stats, true)
	require.NotNil(t, snap.SyncProgressPct)
	assert.Equal(t, 0.0, *snap.SyncProgressPct)
	assert.Equal(t, int64(40), snap.DeltaObjects)
}

func TestBuildSnapshotWithoutSecondaryData(t *testing.T) {
	stats := ZoneStats{"p": {"b": objects(40)}}

	t.Run("single zone", func(t *testing.T) {
		snap := BuildSnapshot(time.Now(), "b", "p", nil, stats, false)
		assert.True(t, snap.SingleZone)
		assert.True(t, snap.NoSecondaryData)
		assert.Nil(t, snap.SyncProgressPct)
		assert.Zero(t, snap.DeltaObjects)
		assert.NotNil(t, snap.Replicas)
		assert.Empty(t, snap.Replicas)
	})

	t.Run("secondaries returned nothing", func(t *testing.T) {
		snap := BuildSnapshot(time.Now(), "b", "p", []string{"s1"}, stats, false)
		assert.False(t, snap.SingleZone)
		assert.True(t, snap.NoSecondaryData)
		assert.Nil(t, snap.SyncProgressPct)
		assert.Zero(t, snap.DeltaSize)
	})
}

func TestBuildSnapshotProgressNeverExceeds100(t *testing.T) {
	stats := ZoneStats{
		"p":  {"b": objects(10)},
		"s1": {"b": objects(1000)},
	}
	snap := BuildSnapshot(time.Now(), "b", "p", []string{"s1"}, stats, true)
	require.NotNil(t, snap.SyncProgressPct)
	assert.Equal(t, 100.0, *snap.SyncProgressPct)
	assert.Zero(t, snap.DeltaObjects)
}
