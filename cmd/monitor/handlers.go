package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-logr/logr"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dreamware/rgwsync/internal/admin"
	"github.com/dreamware/rgwsync/internal/cluster"
	"github.com/dreamware/rgwsync/internal/coordinator"
	"github.com/dreamware/rgwsync/internal/model"
	"github.com/dreamware/rgwsync/internal/storage"
)

const (
	// staleAgentAge marks a zone agent stale when its last push is older than this.
	staleAgentAge = 300 * time.Second
	// maxPushBody bounds an agent payload.
	maxPushBody = 16 << 20
)

// server holds the monitor's HTTP exposition state.
type server struct {
	store     *storage.SnapshotStore
	runner    admin.Runner
	collector *coordinator.Collector
	scheduler *coordinator.Scheduler
	metrics   *coordinator.Metrics
	clock     clock.Clock
	log       logr.Logger
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/topology", s.handleTopology)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/buckets", s.handleBucketList)
	mux.HandleFunc("GET /api/buckets/{name}", s.handleBucketDetail)
	mux.HandleFunc("GET /api/errors", s.handleErrors)
	mux.HandleFunc("GET /api/errors/{bucket}", s.handleBucketErrors)
	mux.HandleFunc("GET /api/sync-status", s.handleSyncStatus)
	mux.HandleFunc("POST "+cluster.PushPath, s.handlePush)
	mux.HandleFunc("GET /api/zone-agents", s.handleZoneAgents)
	mux.HandleFunc("POST /api/collect", s.handleCollect)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

// handleHealth re-probes admin tool access on every call
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := cluster.HealthResponse{
		Timestamp:        s.clock.Now().UTC(),
		Status:           "ok",
		AdminAccess:      true,
		CollectorRunning: s.scheduler != nil && s.scheduler.Started(),
	}
	if _, err := admin.Validate(r.Context(), s.runner, s.log); err != nil {
		resp.Status = "degraded"
		resp.AdminAccess = false
		resp.AdminError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleTopology(w http.ResponseWriter, r *http.Request) {
	topo := s.store.Topology()
	if topo == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, topo)
}

// handleDashboard returns the combined view; ?last_n=N limits histories
func (s *server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	lastN, _ := strconv.Atoi(r.URL.Query().Get("last_n"))
	writeJSON(w, http.StatusOK, s.store.Dashboard(lastN))
}

type bucketSummary struct {
	LastUpdate      time.Time `json:"last_update"`
	SyncProgressPct *float64  `json:"sync_progress_pct"`
	Name            string    `json:"name"`
	DeltaObjects    int64     `json:"delta_objects"`
	DeltaSize       int64     `json:"delta_size"`
	ErrorCount      int       `json:"error_count"`
	SnapshotCount   int       `json:"snapshot_count"`
	NoSecondaryData bool      `json:"no_secondary_data"`
}

// handleBucketList lists buckets by their latest snapshot, worst progress
// first. Buckets without a progress value sort last.
func (s *server) handleBucketList(w http.ResponseWriter, r *http.Request) {
	dash := s.store.Dashboard(0)
	out := make([]bucketSummary, 0, len(dash.Buckets))
	for name, view := range dash.Buckets {
		sum := bucketSummary{
			Name:          name,
			ErrorCount:    len(view.Errors),
			SnapshotCount: len(view.History),
		}
		if n := len(view.History); n > 0 {
			latest := view.History[n-1]
			sum.LastUpdate = latest.Timestamp
			sum.SyncProgressPct = latest.SyncProgressPct
			sum.DeltaObjects = latest.DeltaObjects
			sum.DeltaSize = latest.DeltaSize
			sum.NoSecondaryData = latest.NoSecondaryData
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].SyncProgressPct, out[j].SyncProgressPct
		switch {
		case a != nil && b != nil && *a != *b:
			return *a < *b
		case (a == nil) != (b == nil):
			return a != nil
		default:
			return out[i].Name < out[j].Name
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleBucketDetail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	view, err := s.store.Bucket(name)
	if errors.Is(err, storage.ErrBucketNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Bucket '%s' not found", name))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Name string `json:"name"`
		storage.BucketView
	}{Name: name, BucketView: view})
}

func (s *server) handleErrors(w http.ResponseWriter, r *http.Request) {
	errs := s.store.GlobalErrors()
	writeJSON(w, http.StatusOK, struct {
		Errors []model.SyncError `json:"errors"`
		Total  int               `json:"total"`
	}{Errors: errs, Total: len(errs)})
}

func (s *server) handleBucketErrors(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("bucket")
	view, err := s.store.Bucket(name)
	if errors.Is(err, storage.ErrBucketNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Bucket '%s' not found", name))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Bucket string            `json:"bucket"`
		Errors []model.SyncError `json:"errors"`
	}{Bucket: name, Errors: view.Errors})
}

func (s *server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.GlobalHistory(0))
}

// handlePush ingests one agent payload.
//
// Validation:
//   - body must be a JSON object
//   - zone_name is required
//   - at least one of sync_status and sync_errors must be non-empty
//
// A zone missing from the discovered topology is accepted with a warning.
// Every pushed error is tagged with the pushing zone before decoding.
func (s *server) handlePush(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(cluster.RequestIDHeader)
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPushBody))
	if err != nil || !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		s.pushRejected(w, "", "Invalid JSON payload")
		return
	}

	zone := gjson.GetBytes(body, "zone_name").String()
	if zone == "" {
		s.pushRejected(w, "", "zone_name is required")
		return
	}
	if !truthy(gjson.GetBytes(body, "sync_status")) && !truthy(gjson.GetBytes(body, "sync_errors")) {
		s.pushRejected(w, zone, "Payload must contain sync_status or sync_errors")
		return
	}

	if topo := s.store.Topology(); topo != nil && len(topo.Zones) > 0 && !topo.HasZone(zone) {
		known := make([]string, 0, len(topo.Zones))
		for _, z := range topo.Zones {
			known = append(known, z.Name)
		}
		s.log.Info("WARNING: zone agent push from unknown zone", "zone", zone, "knownZones", known)
	}

	errCount := int(gjson.GetBytes(body, "sync_errors.#").Int())
	for i := 0; i < errCount; i++ {
		if !gjson.GetBytes(body, fmt.Sprintf("sync_errors.%d", i)).IsObject() {
			continue
		}
		if body, err = sjson.SetBytes(body, fmt.Sprintf("sync_errors.%d.agent_zone", i), zone); err == nil {
			body, err = sjson.SetBytes(body, fmt.Sprintf("sync_errors.%d.source", i), storage.AgentSource)
		}
		if err != nil {
			s.pushRejected(w, zone, "Invalid sync_errors")
			return
		}
	}

	var payload model.ZoneAgentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		s.pushRejected(w, zone, "Invalid payload: "+err.Error())
		return
	}
	s.store.UpdateZoneAgent(payload)

	status := "?"
	if payload.SyncStatus != nil {
		status = payload.SyncStatus.Status
	}
	s.log.Info("zone agent push", "zone", zone, "requestID", requestID, "syncStatus", status,
		"errors", len(payload.SyncErrors), "bucketSync", len(payload.BucketSyncStatus))
	if s.metrics != nil {
		s.metrics.AgentPushes.WithLabelValues(zone, "ok").Inc()
	}

	writeJSON(w, http.StatusOK, cluster.PushResponse{
		Status:          "ok",
		ZoneName:        zone,
		ReceivedAt:      s.clock.Now().UTC(),
		ErrorsCount:     len(payload.SyncErrors),
		BucketSyncCount: len(payload.BucketSyncStatus),
	})
}

func (s *server) pushRejected(w http.ResponseWriter, zone, msg string) {
	s.log.Info("zone agent push rejected", "zone", zone, "reason", msg)
	if s.metrics != nil {
		s.metrics.AgentPushes.WithLabelValues(zone, "rejected").Inc()
	}
	writeError(w, http.StatusBadRequest, msg)
}

// truthy reports whether a JSON value is present and non-empty
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	case gjson.JSON:
		nonEmpty := false
		v.ForEach(func(_, _ gjson.Result) bool {
			nonEmpty = true
			return false
		})
		return nonEmpty
	default:
		return v.Exists()
	}
}

type agentStatus struct {
	AgentVersion string   `json:"agent_version"`
	LastPush     string   `json:"last_push"`
	AgeSeconds   *float64 `json:"age_seconds"`
	ErrorCount   int      `json:"error_count"`
	BucketCount  int      `json:"bucket_count"`
	Stale        bool     `json:"stale"`
}

func (s *server) handleZoneAgents(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	out := make(map[string]agentStatus)
	for zone, a := range s.store.ZoneAgents() {
		st := agentStatus{
			AgentVersion: a.AgentVersion,
			ErrorCount:   len(a.SyncErrors),
			BucketCount:  len(a.BucketSyncStatus),
		}
		if !a.Timestamp.IsZero() {
			st.LastPush = a.Timestamp.Format(time.RFC3339Nano)
			age := now.Sub(a.Timestamp).Seconds()
			st.AgeSeconds = &age
			st.Stale = age > staleAgentAge.Seconds()
		}
		out[zone] = st
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCollect starts a cycle in the background. A cycle already running
// is joined rather than duplicated.
func (s *server) handleCollect(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil || s.scheduler == nil || !s.collector.Initialized() {
		writeError(w, http.StatusServiceUnavailable, "Collector not initialized")
		return
	}
	s.scheduler.Trigger()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Collection triggered"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, cluster.ErrorResponse{Error: msg})
}
