package storage

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dreamware/rgwsync/internal/model"
)

// ErrBucketNotFound is returned when no snapshot was ever stored for a bucket
var ErrBucketNotFound = errors.New("bucket not found")

// DefaultCapacity is the history length used when none is configured
const DefaultCapacity = 30

// AgentSource tags sync-status history entries that arrived through a push
const AgentSource = "zone_agent"

// BucketView is one bucket's stored history plus its current error list
type BucketView struct {
	History []model.BucketSnapshot `json:"history"`
	Errors  []model.SyncError      `json:"errors"`
}

// AgentSummary is the latest payload pushed by one secondary agent
type AgentSummary struct {
	Timestamp        time.Time                          `json:"timestamp"`
	ReceivedAt       time.Time                          `json:"received_at"`
	SyncStatus       *model.GlobalSyncSnapshot          `json:"sync_status"`
	BucketSyncStatus map[string]*model.BucketSyncStatus `json:"bucket_sync_status"`
	AgentVersion     string                             `json:"agent_version"`
	SyncErrors       []model.SyncError                  `json:"sync_errors"`
}

// AgentStatusEntry is one pushed global sync reading kept in a zone's history.
// Timestamp is the push timestamp.
type AgentStatusEntry struct {
	model.GlobalSyncSnapshot
	ZoneName string `json:"zone_name"`
	Source   string `json:"source"`
}

// Dashboard is the combined read view handed to the exposition layer
type Dashboard struct {
	LastUpdate           time.Time                     `json:"last_update"`
	Topology             *model.Topology               `json:"topology"`
	Buckets              map[string]BucketView         `json:"buckets"`
	ZoneAgents           map[string]AgentSummary       `json:"zone_agents"`
	ZoneAgentSyncHistory map[string][]AgentStatusEntry `json:"zone_agent_sync_history"`
	GlobalSync           []model.GlobalSyncSnapshot    `json:"global_sync"`
	GlobalErrors         []model.SyncError             `json:"global_errors"`
}

// SnapshotStore holds everything the collector and the agents produce.
// All state is memory resident and bounded by the history capacity.
//
// Every method takes the single mutex, so a reader never observes a partially
// written snapshot. Stored values are treated as immutable: updates replace a
// value rather than modify it, which lets readers share the returned copies.
type SnapshotStore struct {
	clock        clock.Clock
	topology     *model.Topology
	buckets      map[string]*History[model.BucketSnapshot]
	bucketErrors map[string][]model.SyncError
	global       *History[model.GlobalSyncSnapshot]
	agents       map[string]AgentSummary
	agentHistory map[string]*History[AgentStatusEntry]
	globalErrors []model.SyncError
	capacity     int
	mu           sync.Mutex
}

// NewSnapshotStore creates an empty store whose histories hold at most
// capacity entries each.
//
// Parameters:
//   - capacity: history length per bucket, for the global feed and per agent
//     zone; values below one use DefaultCapacity
//   - clk: time source for push receipt and last_update; nil uses the wall clock
//
// Returns:
//   - *SnapshotStore: ready for concurrent use
func NewSnapshotStore(capacity int, clk clock.Clock) *SnapshotStore {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	if clk == nil {
		clk = clock.New()
	}
	return &SnapshotStore{
		clock:        clk,
		capacity:     capacity,
		buckets:      make(map[string]*History[model.BucketSnapshot]),
		bucketErrors: make(map[string][]model.SyncError),
		global:       NewHistory[model.GlobalSyncSnapshot](capacity),
		agents:       make(map[string]AgentSummary),
		agentHistory: make(map[string]*History[AgentStatusEntry]),
		globalErrors: []model.SyncError{},
	}
}

// Capacity returns the per-history bound
func (s *SnapshotStore) Capacity() int {
	return s.capacity
}

// AddBucketSnapshot appends snap to the bucket's history
func (s *SnapshotStore) AddBucketSnapshot(bucket string, snap model.BucketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.buckets[bucket]
	if !ok {
		h = NewHistory[model.BucketSnapshot](s.capacity)
		s.buckets[bucket] = h
	}
	h.Append(snap)
}

// AttachBucketSyncStatus sets the sync status of the bucket's most recent
// snapshot. It reports false when the bucket has no snapshot yet.
func (s *SnapshotStore) AttachBucketSyncStatus(bucket string, status *model.BucketSyncStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.buckets[bucket]
	if !ok {
		return false
	}
	latest, ok := h.Latest()
	if !ok {
		return false
	}
	latest.SyncStatus = status
	return h.ReplaceLatest(latest)
}

// AddGlobalSnapshot appends snap to the global sync history
func (s *SnapshotStore) AddGlobalSnapshot(snap model.GlobalSyncSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.global.Append(snap)
}

// SetGlobalErrors replaces the flat sync error list
func (s *SnapshotStore) SetGlobalErrors(errs []model.SyncError) {
	if errs == nil {
		errs = []model.SyncError{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalErrors = errs
}

// SetBucketErrors replaces one bucket's error list, leaving other buckets'
// lists in place
func (s *SnapshotStore) SetBucketErrors(bucket string, errs []model.SyncError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucketErrors[bucket] = errs
}

// ReplaceBucketErrors swaps the whole per-bucket error map, clearing buckets
// that are absent from grouped
func (s *SnapshotStore) ReplaceBucketErrors(grouped map[string][]model.SyncError) {
	fresh := make(map[string][]model.SyncError, len(grouped))
	for b, errs := range grouped {
		fresh[b] = errs
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucketErrors = fresh
}

// SetTopology stores a copy of topo
func (s *SnapshotStore) SetTopology(topo *model.Topology) {
	c := topo.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topology = c
}

// Topology returns a copy of the stored topology, or nil before discovery
func (s *SnapshotStore) Topology() *model.Topology {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topology.Clone()
}

// UpdateZoneAgent replaces the zone's latest agent payload and, when the
// payload carries a sync status, appends it to the zone's history.
func (s *SnapshotStore) UpdateZoneAgent(payload model.ZoneAgentPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	errs := payload.SyncErrors
	if errs == nil {
		errs = []model.SyncError{}
	}
	bss := payload.BucketSyncStatus
	if bss == nil {
		bss = map[string]*model.BucketSyncStatus{}
	}
	s.agents[payload.ZoneName] = AgentSummary{
		Timestamp:        payload.Timestamp,
		ReceivedAt:       s.clock.Now().UTC(),
		SyncStatus:       payload.SyncStatus,
		SyncErrors:       errs,
		BucketSyncStatus: bss,
		AgentVersion:     payload.AgentVersion,
	}

	if payload.SyncStatus == nil {
		return
	}
	entry := AgentStatusEntry{
		GlobalSyncSnapshot: *payload.SyncStatus,
		ZoneName:           payload.ZoneName,
		Source:             AgentSource,
	}
	entry.Timestamp = payload.Timestamp
	h, ok := s.agentHistory[payload.ZoneName]
	if !ok {
		h = NewHistory[AgentStatusEntry](s.capacity)
		s.agentHistory[payload.ZoneName] = h
	}
	h.Append(entry)
}

// ZoneAgents returns the latest payload summary per pushing zone
func (s *SnapshotStore) ZoneAgents() map[string]AgentSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]AgentSummary, len(s.agents))
	for z, a := range s.agents {
		out[z] = a
	}
	return out
}

// Bucket returns the bucket's history and errors.
// Returns ErrBucketNotFound if no snapshot was ever stored for it.
func (s *SnapshotStore) Bucket(name string) (BucketView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.buckets[name]
	if !ok {
		return BucketView{}, ErrBucketNotFound
	}
	return BucketView{History: h.Items(), Errors: s.errorsFor(name)}, nil
}

// BucketNames returns the names of all buckets with history, sorted
func (s *SnapshotStore) BucketNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LatestBucketSnapshots returns the newest snapshot of every bucket
func (s *SnapshotStore) LatestBucketSnapshots() map[string]model.BucketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]model.BucketSnapshot, len(s.buckets))
	for name, h := range s.buckets {
		if snap, ok := h.Latest(); ok {
			out[name] = snap
		}
	}
	return out
}

// GlobalHistory returns the newest lastN global snapshots, or all when lastN <= 0
func (s *SnapshotStore) GlobalHistory(lastN int) []model.GlobalSyncSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.global.Last(lastN)
}

// GlobalErrors returns the flat error list of the last cycle
func (s *SnapshotStore) GlobalErrors() []model.SyncError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.SyncError{}, s.globalErrors...)
}

// BucketErrors returns the stored errors for bucket; empty when none
func (s *SnapshotStore) BucketErrors(bucket string) []model.SyncError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorsFor(bucket)
}

// Dashboard assembles the combined view. Bucket histories and the global
// feed are cut to the newest lastN entries when lastN > 0.
func (s *SnapshotStore) Dashboard(lastN int) Dashboard {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := Dashboard{
		LastUpdate:           s.clock.Now().UTC(),
		Topology:             s.topology.Clone(),
		Buckets:              make(map[string]BucketView, len(s.buckets)),
		ZoneAgents:           make(map[string]AgentSummary, len(s.agents)),
		ZoneAgentSyncHistory: make(map[string][]AgentStatusEntry, len(s.agentHistory)),
		GlobalSync:           s.global.Last(lastN),
		GlobalErrors:         append([]model.SyncError{}, s.globalErrors...),
	}
	for name, h := range s.buckets {
		d.Buckets[name] = BucketView{History: h.Last(lastN), Errors: s.errorsFor(name)}
	}
	for z, a := range s.agents {
		d.ZoneAgents[z] = a
	}
	for z, h := range s.agentHistory {
		d.ZoneAgentSyncHistory[z] = h.Items()
	}
	return d
}

// errorsFor copies a bucket's errors; the caller holds mu
func (s *SnapshotStore) errorsFor(bucket string) []model.SyncError {
	return append([]model.SyncError{}, s.bucketErrors[bucket]...)
}
