package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/dreamware/rgwsync/internal/admin"
	"github.com/dreamware/rgwsync/internal/cluster"
	"github.com/dreamware/rgwsync/internal/model"
	"github.com/dreamware/rgwsync/internal/syncparse"
)

// Version is reported in every payload.
const Version = "1.0"

// FailureWarnThreshold is the number of consecutive push failures after which
// every further failure is logged as a connectivity warning.
const FailureWarnThreshold = 5

var (
	// ErrZoneUndetected is returned when no zone is configured and "sync status"
	// does not name one.
	ErrZoneUndetected = errors.New("could not auto-detect zone name")
	// ErrPushFailed wraps the cause of a failed push.
	ErrPushFailed = errors.New("push to primary failed")
	// ErrPreflight wraps the first failed pre-flight check.
	ErrPreflight = errors.New("pre-flight check failed")
)

// Primary is the monitor as seen by the agent. *cluster.Client implements it.
type Primary interface {
	Push(ctx context.Context, payload model.ZoneAgentPayload, requestID string) (*cluster.PushResponse, error)
	Health(ctx context.Context) (*cluster.HealthResponse, error)
}

// Options controls one agent.
type Options struct {
	// ZoneName is this zone's name; empty means detect it from "sync status".
	ZoneName   string
	MaxBuckets int
	Interval   time.Duration
	// Once runs a single cycle and returns its error.
	Once bool
	// DryRun prints each payload instead of pushing it.
	DryRun bool
}

// Agent collects sync data from the local zone's point of view and pushes
// it to the primary monitor once per interval.
// Not safe for concurrent use: Run owns the agent.
type Agent struct {
	runner   admin.Runner
	primary  Primary
	metrics  *Metrics
	clock    clock.Clock
	out      io.Writer
	log      logr.Logger
	opts     Options
	zone     string
	failures int
}

// New creates an agent. primary may be nil in dry-run mode.
func New(runner admin.Runner, primary Primary, opts Options, log logr.Logger) *Agent {
	if opts.MaxBuckets <= 0 {
		opts.MaxBuckets = 500
	}
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	return &Agent{
		runner:  runner,
		primary: primary,
		opts:    opts,
		zone:    opts.ZoneName,
		clock:   clock.New(),
		out:     os.Stdout,
		log:     log.WithName("agent"),
	}
}

// SetMetrics attaches Prometheus metrics. Nil disables them.
func (a *Agent) SetMetrics(m *Metrics) {
	a.metrics = m
}

// SetClock overrides the time source used for timestamps and the interval wait.
func (a *Agent) SetClock(clk clock.Clock) {
	a.clock = clk
}

// SetOutput sets where dry-run payloads are written. Defaults to stdout.
func (a *Agent) SetOutput(w io.Writer) {
	a.out = w
}

// Zone returns the configured or detected zone name.
func (a *Agent) Zone() string {
	return a.zone
}

// ConsecutiveFailures returns the number of failed cycles since the last success.
func (a *Agent) ConsecutiveFailures() int {
	return a.failures
}

// Preflight verifies that the agent can do its job before the first cycle.
//
// Implementation:
//  1. Admin tool present and cluster reachable: "realm get", falling back to
//     "sync status" for clusters without a realm
//  2. Primary's health endpoint answers (skipped in dry-run mode)
func (a *Agent) Preflight(ctx context.Context) error {
	if _, err := a.runner.Run(ctx, []string{"realm", "get"}, admin.ModeJSON, 10*time.Second); err != nil {
		if admin.KindOf(err) == admin.KindBinaryNotFound {
			return fmt.Errorf("%w: %s not found on PATH", ErrPreflight, admin.DefaultBinary)
		}
		if _, err2 := a.runner.Run(ctx, []string{"sync", "status"}, admin.ModeText, 10*time.Second); err2 != nil {
			return fmt.Errorf("%w: cannot access cluster: %w", ErrPreflight, err)
		}
	}
	a.log.Info("cluster access verified")

	if a.opts.DryRun || a.primary == nil {
		return nil
	}
	health, err := a.primary.Health(ctx)
	if err != nil {
		return fmt.Errorf("%w: cannot reach primary API: %w", ErrPreflight, err)
	}
	a.log.Info("primary API reachable", "status", health.Status, "collectorRunning", health.CollectorRunning)
	return nil
}

// DetectZone resolves the zone name when none was configured.
func (a *Agent) DetectZone(ctx context.Context) (string, error) {
	if a.zone != "" {
		return a.zone, nil
	}
	out, err := a.runner.Run(ctx, []string{"sync", "status"}, admin.ModeText, admin.ProbeTimeout)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrZoneUndetected, err)
	}
	zone := syncparse.ParseGlobal(out.Text).Zone
	if zone == "" {
		return "", ErrZoneUndetected
	}
	a.zone = zone
	a.log.Info("auto-detected zone name", "zone", zone)
	return zone, nil
}

// Run loops collect, push, wait until ctx is canceled. With Once it runs a
// single cycle and returns that cycle's error.
func (a *Agent) Run(ctx context.Context) error {
	if _, err := a.DetectZone(ctx); err != nil {
		return err
	}
	a.log.Info("agent started", "zone", a.zone, "interval", a.opts.Interval.String(),
		"maxBuckets", a.opts.MaxBuckets, "dryRun", a.opts.DryRun, "once", a.opts.Once)

	for {
		err := a.RunCycle(ctx)
		if a.opts.Once {
			return err
		}

		select {
		case <-ctx.Done():
			a.log.Info("agent stopped")
			return nil
		case <-a.clock.After(a.opts.Interval):
		}
	}
}

// RunCycle collects one payload and pushes it, or prints it in dry-run mode.
// An unexpected panic is recovered and counted as a failed push.
func (a *Agent) RunCycle(ctx context.Context) (err error) {
	started := a.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			a.log.Error(fmt.Errorf("%v", r), "unexpected error in collection cycle")
			err = fmt.Errorf("collection cycle panicked: %v", r)
			a.recordFailure()
		}
		if a.metrics != nil {
			a.metrics.CycleDuration.Observe(a.clock.Since(started).Seconds())
		}
	}()

	payload := a.Collect(ctx)

	if a.opts.DryRun {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(data))
		return err
	}

	if err := a.push(ctx, payload); err != nil {
		a.recordFailure()
		return err
	}
	a.recordSuccess()
	return nil
}

// Collect runs one collection pass and returns the payload.
//
// Implementation:
//  1. Global sync status; a failure is reported as status "error"
//  2. Sync error list; entries keep their own timestamps only
//  3. Buckets listed by "bucket stats --rgw-zone", capped at MaxBuckets
//  4. Per-bucket sync status, trimmed to problem shards
func (a *Agent) Collect(ctx context.Context) model.ZoneAgentPayload {
	ts := a.clock.Now().UTC()
	log := a.log.WithValues("zone", a.zone)
	log.Info("collection cycle", "timestamp", ts.Format(time.RFC3339))

	payload := model.ZoneAgentPayload{
		ZoneName:         a.zone,
		Timestamp:        ts,
		AgentVersion:     Version,
		SyncStatus:       a.syncStatus(ctx, log, ts),
		SyncErrors:       a.syncErrors(ctx, log),
		BucketSyncStatus: map[string]*model.BucketSyncStatus{},
	}

	buckets := a.bucketList(ctx, log)
	if len(buckets) > a.opts.MaxBuckets {
		log.Info("WARNING: limiting bucket sync status collection", "found", len(buckets), "limit", a.opts.MaxBuckets)
		buckets = buckets[:a.opts.MaxBuckets]
	}
	for _, bucket := range buckets {
		if ctx.Err() != nil {
			break
		}
		out, err := a.runner.Run(ctx, []string{"bucket", "sync", "status", "--bucket", bucket, "--rgw-zone", a.zone},
			admin.ModeText, admin.StatusTimeout)
		if err != nil {
			log.V(1).Info("bucket sync status failed", "bucket", bucket, "error", err.Error())
			a.metrics.commandFailed("bucket_sync_status", string(admin.KindOf(err)))
			continue
		}
		payload.BucketSyncStatus[bucket] = syncparse.Trim(syncparse.ParseBucket(out.Text))
	}
	log.Info("collected bucket sync status", "collected", len(payload.BucketSyncStatus), "buckets", len(buckets))

	if a.metrics != nil {
		a.metrics.SyncErrors.Set(float64(len(payload.SyncErrors)))
		a.metrics.BucketsReported.Set(float64(len(payload.BucketSyncStatus)))
	}
	return payload
}

func (a *Agent) syncStatus(ctx context.Context, log logr.Logger, ts time.Time) *model.GlobalSyncSnapshot {
	out, err := a.runner.Run(ctx, []string{"sync", "status"}, admin.ModeText, admin.StatusTimeout)
	if err != nil {
		log.Info("WARNING: sync status failed", "error", err.Error())
		a.metrics.commandFailed("sync_status", string(admin.KindOf(err)))
		msg := err.Error()
		var ce *admin.CommandError
		if errors.As(err, &ce) {
			msg = ce.Message()
		}
		return &model.GlobalSyncSnapshot{
			GlobalSyncStatus: model.GlobalSyncStatus{DataSync: []model.SyncBlock{}},
			Timestamp:        ts,
			Status:           model.ResultError,
			Error:            msg,
		}
	}

	parsed := syncparse.ParseGlobal(out.Text)
	meta := "?"
	if parsed.MetadataSync != nil {
		meta = parsed.MetadataSync.Status
	}
	log.Info("sync status", "metadata", meta, "dataSources", len(parsed.DataSync))
	for _, ds := range parsed.DataSync {
		log.Info("data sync source", "source", ds.SourceZone, "status", ds.Status,
			"full", fmt.Sprintf("%d/%d", ds.FullSyncDone, ds.FullSyncTotal),
			"incremental", fmt.Sprintf("%d/%d", ds.IncrementalSyncDone, ds.IncrementalSyncTotal))
	}
	return &model.GlobalSyncSnapshot{GlobalSyncStatus: parsed, Timestamp: ts, Status: model.ResultOK}
}

func (a *Agent) syncErrors(ctx context.Context, log logr.Logger) []model.SyncError {
	out, err := a.runner.Run(ctx, []string{"sync", "error", "list"}, admin.ModeJSON, admin.StatsTimeout)
	if err != nil {
		log.V(1).Info("sync error list failed", "error", err.Error())
		a.metrics.commandFailed("sync_error_list", string(admin.KindOf(err)))
		return []model.SyncError{}
	}
	errs := syncparse.DecodeSyncErrors(out.JSON, "")
	log.Info("sync errors", "count", len(errs))
	return errs
}

func (a *Agent) bucketList(ctx context.Context, log logr.Logger) []string {
	out, err := a.runner.Run(ctx, []string{"bucket", "stats", "--rgw-zone", a.zone}, admin.ModeJSON, admin.StatsTimeout)
	if err != nil {
		log.Info("WARNING: failed to list buckets", "error", err.Error())
		a.metrics.commandFailed("bucket_stats", string(admin.KindOf(err)))
		return nil
	}
	return syncparse.BucketNames(out.JSON)
}

func (a *Agent) push(ctx context.Context, payload model.ZoneAgentPayload) error {
	if a.primary == nil {
		return fmt.Errorf("%w: no primary configured", ErrPushFailed)
	}
	requestID := uuid.NewString()
	status := "null"
	if payload.SyncStatus != nil {
		status = payload.SyncStatus.Status
	}
	a.log.Info("pushing payload", "requestID", requestID, "syncStatus", status,
		"errors", len(payload.SyncErrors), "buckets", len(payload.BucketSyncStatus))

	resp, err := a.primary.Push(ctx, payload, requestID)
	if err != nil {
		var httpErr *cluster.HTTPError
		if errors.As(err, &httpErr) {
			a.log.Error(err, "push rejected", "requestID", requestID, "status", httpErr.Status, "body", httpErr.Body)
		} else {
			a.log.Error(err, "push failed", "requestID", requestID)
		}
		return fmt.Errorf("%w: %w", ErrPushFailed, err)
	}
	a.log.Info("push OK", "requestID", requestID, "receivedAt", resp.ReceivedAt)
	return nil
}

func (a *Agent) recordFailure() {
	a.failures++
	if a.failures >= FailureWarnThreshold {
		a.log.Info("WARNING: consecutive push failures, check primary API connectivity", "failures", a.failures)
	}
	if a.metrics != nil {
		a.metrics.PushTotal.WithLabelValues("error").Inc()
		a.metrics.LastPushSuccess.Set(0)
		a.metrics.ConsecutiveFailures.Set(float64(a.failures))
	}
}

func (a *Agent) recordSuccess() {
	a.failures = 0
	if a.metrics != nil {
		a.metrics.PushTotal.WithLabelValues("success").Inc()
		a.metrics.LastPushSuccess.Set(1)
		a.metrics.LastPushTimestamp.Set(float64(a.clock.Now().Unix()))
		a.metrics.ConsecutiveFailures.Set(0)
	}
}
