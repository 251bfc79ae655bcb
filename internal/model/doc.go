// Package model holds the data shapes shared by the primary collector, the
// secondary agent and the snapshot store: topology, per-bucket statistics and
// snapshots, parsed sync status, sync errors and the agent push payload.
//
// JSON field names follow the admin tool's snake_case vocabulary so that the
// exposition layer and agent pushes can serialize these types directly.
package model
