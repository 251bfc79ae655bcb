package model

import "time"

// Sync block status keywords.
const (
	StatusUnknown  = "unknown"
	StatusSyncing  = "syncing"
	StatusCaughtUp = "caught up"
	StatusBehind   = "behind"
)

// Snapshot result keywords.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// BehindShard is a shard line in a global sync block reporting lag.
type BehindShard struct {
	ShardID int    `json:"shard_id"`
	Detail  string `json:"detail"`
}

// SyncBlock is one section of "sync status": the metadata block or a
// per-source data block. SourceZone is empty for the metadata block.
type SyncBlock struct {
	SourceZone           string        `json:"source_zone,omitempty"`
	Status               string        `json:"status"`
	FullSyncDone         int           `json:"full_sync_done"`
	FullSyncTotal        int           `json:"full_sync_total"`
	IncrementalSyncDone  int           `json:"incremental_sync_done"`
	IncrementalSyncTotal int           `json:"incremental_sync_total"`
	BehindShards         []BehindShard `json:"behind_shards"`
	Raw                  string        `json:"raw,omitempty"`
}

// GlobalSyncStatus is the parsed output of "sync status".
// MetadataSync is nil when the output had no metadata section.
type GlobalSyncStatus struct {
	Realm        string      `json:"realm"`
	Zonegroup    string      `json:"zonegroup"`
	Zone         string      `json:"zone"`
	MetadataSync *SyncBlock  `json:"metadata_sync"`
	DataSync     []SyncBlock `json:"data_sync"`
}

// GlobalSyncSnapshot is one cycle's global sync reading. Status is ResultOK
// or ResultError; on error the parsed fields are empty and Error is set.
type GlobalSyncSnapshot struct {
	GlobalSyncStatus
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	RawText   string    `json:"raw_text,omitempty"`
}

// SyncError is one flattened entry of the sync error list.
// Bucket is derived from RawName. AgentZone is set when the entry arrived
// through an agent push.
type SyncError struct {
	ShardID    int    `json:"shard_id"`
	EntryID    string `json:"entry_id"`
	Section    string `json:"section"`
	RawName    string `json:"raw_name"`
	Timestamp  string `json:"timestamp"`
	Bucket     string `json:"bucket"`
	SourceZone string `json:"source_zone"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	AgentZone  string `json:"agent_zone,omitempty"`
	Source     string `json:"source,omitempty"`
}

// ZoneAgentPayload is what a secondary agent pushes to the primary each cycle.
type ZoneAgentPayload struct {
	ZoneName         string                       `json:"zone_name"`
	Timestamp        time.Time                    `json:"timestamp"`
	AgentVersion     string                       `json:"agent_version"`
	SyncStatus       *GlobalSyncSnapshot          `json:"sync_status"`
	SyncErrors       []SyncError                  `json:"sync_errors"`
	BucketSyncStatus map[string]*BucketSyncStatus `json:"bucket_sync_status"`
}
