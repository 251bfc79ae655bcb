// Package agent implements the secondary zone agent.
//
// The primary zone's admin tool cannot see how a secondary zone perceives its
// own replication, so one agent runs in each secondary zone and pushes that
// view to the monitor.
//
// Each cycle the agent:
//  1. reads "sync status" for the zone (a failure becomes an error snapshot)
//  2. reads "sync error list" (a failure becomes an empty list)
//  3. lists the zone's buckets with "bucket stats --rgw-zone", up to MaxBuckets
//  4. reads "bucket sync status" per bucket and keeps only problem shards
//  5. pushes the payload through a Primary, or prints it in dry-run mode
//
// Push failures are counted; from FailureWarnThreshold on each failure is
// logged as a connectivity warning. A panic inside a cycle is recovered and
// counted the same way, so the loop keeps running.
package agent
