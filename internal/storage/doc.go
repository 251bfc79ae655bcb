// Package storage keeps the monitor's memory-resident state: bounded
// histories of per-bucket and global sync snapshots, the current sync error
// lists, the discovered topology and the latest payload of every secondary
// agent.
//
// # Overview
//
// Nothing survives a restart. Each history is a History[T], a FIFO ring that
// evicts its oldest value once it reaches the configured capacity, so memory
// use is bounded by capacity × (buckets + 1 + agent zones).
//
// # Architecture
//
//	┌──────────────┐   ┌──────────────┐
//	│  Collector   │   │ Agent push   │
//	│ (scheduler)  │   │  handler     │
//	└──────┬───────┘   └──────┬───────┘
//	       │ Add*/Set*         │ UpdateZoneAgent
//	       ▼                   ▼
//	┌─────────────────────────────────┐
//	│         SnapshotStore           │
//	│  buckets   map → History        │
//	│  global    History              │
//	│  errors    global + per bucket  │
//	│  agents    map + History        │
//	└───────────────┬─────────────────┘
//	                │ Dashboard / Bucket / ...
//	                ▼
//	         HTTP exposition
//
// # Concurrency and Thread Safety
//
// A single sync.Mutex guards every field. Each method is atomic on its own,
// but a caller that combines several reads may see them at slightly different
// points relative to a concurrent collection cycle. Dashboard assembles its
// whole view under one lock acquisition.
//
// # Error Handling
//
// ErrBucketNotFound: Bucket has no stored snapshot
//   - Returned by Bucket()
//   - Distinct from an empty history; no default record is synthesized
//
// # Error Replacement
//
// SetBucketErrors overwrites only the named bucket, so a bucket whose errors
// clear keeps its previous list until it reports again. ReplaceBucketErrors
// swaps the entire map and is used when the monitor runs with
// reset_bucket_errors enabled.
//
// # Usage Examples
//
//	store := storage.NewSnapshotStore(30, nil)
//	store.AddBucketSnapshot("photos", snap)
//	store.AttachBucketSyncStatus("photos", status)
//
//	view, err := store.Bucket("photos")
//	if errors.Is(err, storage.ErrBucketNotFound) {
//	    // 404
//	}
package storage
