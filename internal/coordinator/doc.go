// Package coordinator runs the primary zone's collection pipeline: it compares
// bucket statistics across zones, records global sync status and the sync
// error list, and schedules that work on a fixed interval.
//
// # Overview
//
// The coordinator is the only writer of collected data into the
// storage.SnapshotStore. Agents running in secondary zones write their own
// reports through the HTTP push endpoint; everything else arrives here.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│            Scheduler                │
//	│  first cycle at Start, then wait    │
//	│  interval after each cycle ends     │
//	│  manual Trigger joins in-flight run │
//	└────────────────┬────────────────────┘
//	                 │ CollectOnce
//	                 ▼
//	┌─────────────────────────────────────┐
//	│            Collector                │
//	│  1. bucket stats per zone           │
//	│     (CLI, or REST when validated)   │
//	│  2. BuildSnapshot per bucket        │
//	│  3. bucket sync status per bucket   │
//	│  4. global sync status              │
//	│  5. sync error list                 │
//	└────────────────┬────────────────────┘
//	                 │ Add*/Set*
//	                 ▼
//	          storage.SnapshotStore
//
// # Core Components
//
// Collector: one full pass over the cluster
//   - Initialize validates access and discovers the topology once
//   - Each zone's bucket stats come from the admin tool, or from the admin
//     REST API when the zone's first endpoint accepted the configured keys
//   - Any single command failure drops only that item for the cycle
//   - A panic inside a cycle is recovered and reported as the cycle's error
//
// Scheduler: timing and overlap control
//   - Scheduled cycles are strictly sequential
//   - Scheduled and manual cycles share one single-flight key, so a manual
//     trigger during a running cycle waits for that cycle instead of
//     interleaving writes with it
//
// Compare and BuildSnapshot: the replication lag arithmetic
//   - Deltas are clamped at zero
//   - Progress is capped at 100 and is 100 when both sides are empty
//   - A bucket's headline progress is its worst secondary
//
// # Metrics
//
// Metrics exposes cycle outcomes, command failures and per-bucket progress on
// a standalone Prometheus registry. A nil *Metrics disables recording.
//
// # Error Handling
//
// ErrNotInitialized: CollectOnce called before a successful Initialize
//
// admin.ErrFatalAccess and topology.ErrDiscoveryFailed: returned by
// Initialize; the pipeline must not be started
//
// # Usage Example
//
//	store := storage.NewSnapshotStore(30, nil)
//	collector := coordinator.NewCollector(admin.NewExecutor("", log), store, opts, log)
//	if err := collector.Initialize(ctx); err != nil {
//	    return err
//	}
//	sched := coordinator.NewScheduler(collector, time.Minute, log)
//	go sched.Start(ctx)
//	defer sched.Stop()
package coordinator
