package model

import "time"

// BucketQuota mirrors the bucket_quota record of a bucket stats entry.
type BucketQuota struct {
	Enabled    bool  `json:"enabled"`
	CheckOnRaw bool  `json:"check_on_raw"`
	MaxSize    int64 `json:"max_size"`
	MaxSizeKB  int64 `json:"max_size_kb"`
	MaxObjects int64 `json:"max_objects"`
}

// BucketStats is the decoded form of one "bucket stats" record.
// SizeActual is in bytes.
type BucketStats struct {
	NumObjects    int64       `json:"num_objects"`
	SizeKB        int64       `json:"size_kb"`
	SizeActual    int64       `json:"size_actual"`
	NumShards     int64       `json:"num_shards"`
	Quota         BucketQuota `json:"bucket_quota"`
	Zonegroup     string      `json:"zonegroup"`
	PlacementRule string      `json:"placement_rule"`
	Marker        string      `json:"marker"`
	ID            string      `json:"id"`
}

// ZoneComparison is one secondary zone's view of a bucket relative to the primary.
type ZoneComparison struct {
	Stats        BucketStats `json:"stats"`
	DeltaObjects int64       `json:"delta_objects"`
	DeltaSize    int64       `json:"delta_size"`
	ProgressPct  float64     `json:"sync_progress_pct"`
}

// BucketSnapshot is the per-cycle cross-zone picture of one bucket.
//
// SyncProgressPct is nil when there was no secondary data to compare against,
// which is distinct from a 0% reading.
type BucketSnapshot struct {
	Timestamp       time.Time                 `json:"timestamp"`
	PrimaryZone     string                    `json:"primary_zone"`
	Primary         BucketStats               `json:"primary"`
	Replicas        map[string]ZoneComparison `json:"replicas"`
	DeltaObjects    int64                     `json:"delta_objects"`
	DeltaSize       int64                     `json:"delta_size"`
	SyncProgressPct *float64                  `json:"sync_progress_pct"`
	NoSecondaryData bool                      `json:"no_secondary_data"`
	SingleZone      bool                      `json:"single_zone"`
	SyncStatus      *BucketSyncStatus         `json:"sync_status,omitempty"`
}

// ShardDetail is one "bucket shard N: <detail>" line.
type ShardDetail struct {
	ShardID int    `json:"shard_id"`
	Status  string `json:"status"`
}

// SourceSyncStatus is the bucket's replication state from one source zone.
//
// In trimmed form ShardCount holds the original number of shard lines and
// ShardDetails keeps only the shards reporting a problem.
type SourceSyncStatus struct {
	SourceZone           string        `json:"source_zone"`
	Status               string        `json:"status"`
	FullSyncDone         int           `json:"full_sync_done"`
	FullSyncTotal        int           `json:"full_sync_total"`
	IncrementalSyncDone  int           `json:"incremental_sync_done"`
	IncrementalSyncTotal int           `json:"incremental_sync_total"`
	ShardDetails         []ShardDetail `json:"shard_details"`
	ShardCount           int           `json:"shard_count,omitempty"`
	Trimmed              bool          `json:"trimmed,omitempty"`
}

// BucketSyncStatus is the parsed output of "bucket sync status".
type BucketSyncStatus struct {
	Realm        string             `json:"realm"`
	Zonegroup    string             `json:"zonegroup"`
	Zone         string             `json:"zone"`
	Bucket       string             `json:"bucket"`
	CurrentTime  string             `json:"current_time"`
	SyncDisabled bool               `json:"sync_disabled"`
	Sources      []SourceSyncStatus `json:"sources"`
	Raw          string             `json:"raw,omitempty"`
}
