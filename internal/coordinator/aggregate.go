package coordinator

import (
	"math"
	"time"

	"github.com/dreamware/rgwsync/internal/model"
)

// ZoneStats holds one cycle's bucket statistics, keyed by zone then bucket.
type ZoneStats map[string]map[string]model.BucketStats

// Compare measures how far secondary lags primary for one bucket.
//
// Deltas never go negative: a secondary ahead of the primary reports zero.
// Progress is secondary/primary objects as a percentage capped at 100, or
// 100 when both are empty, rounded to two decimals.
func Compare(primary, secondary model.BucketStats) model.ZoneComparison {
	return model.ZoneComparison{
		Stats:        secondary,
		DeltaObjects: max(primary.NumObjects-secondary.NumObjects, 0),
		DeltaSize:    max(primary.SizeActual-secondary.SizeActual, 0),
		ProgressPct:  round2(progressPct(primary.NumObjects, secondary.NumObjects)),
	}
}

func progressPct(primaryObjects, secondaryObjects int64) float64 {
	switch {
	case primaryObjects > 0:
		return math.Min(float64(secondaryObjects)/float64(primaryObjects)*100, 100)
	case primaryObjects == 0 && secondaryObjects == 0:
		return 100
	default:
		return 0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BuildSnapshot assembles one bucket's cross-zone snapshot.
//
// Parameters:
//   - ts: cycle timestamp
//   - bucket: bucket name, looked up in every zone's stats
//   - primaryZone: zone supplying the baseline in stats
//   - secondaries: secondary zone names in topology order
//   - stats: this cycle's per-zone statistics
//   - secondaryData: whether at least one secondary returned data this cycle
//
// When there are no secondaries or none returned data the snapshot has
// NoSecondaryData set, a nil SyncProgressPct and zero deltas. Otherwise each
// secondary is compared against the primary, a secondary missing the bucket
// counting as empty; the headline progress is the minimum across secondaries
// and the deltas are summed.
func BuildSnapshot(ts time.Time, bucket, primaryZone string, secondaries []string, stats ZoneStats, secondaryData bool) model.BucketSnapshot {
	primary := stats[primaryZone][bucket]
	single := len(secondaries) == 0

	snap := model.BucketSnapshot{
		Timestamp:       ts,
		PrimaryZone:     primaryZone,
		Primary:         primary,
		Replicas:        map[string]model.ZoneComparison{},
		NoSecondaryData: single || !secondaryData,
		SingleZone:      single,
	}
	if snap.NoSecondaryData {
		return snap
	}

	worst := 100.0
	for _, zone := range secondaries {
		cmp := Compare(primary, stats[zone][bucket])
		snap.Replicas[zone] = cmp
		snap.DeltaObjects += cmp.DeltaObjects
		snap.DeltaSize += cmp.DeltaSize
		worst = math.Min(worst, progressPct(primary.NumObjects, cmp.Stats.NumObjects))
	}
	worst = round2(worst)
	snap.SyncProgressPct = &worst
	return snap
}
