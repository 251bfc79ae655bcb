package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/dreamware/rgwsync/internal/admin"
	"github.com/dreamware/rgwsync/internal/model"
	"github.com/dreamware/rgwsync/internal/restapi"
	"github.com/dreamware/rgwsync/internal/storage"
	"github.com/dreamware/rgwsync/internal/syncparse"
	"github.com/dreamware/rgwsync/internal/topology"
)

// ErrNotInitialized is returned by CollectOnce before Initialize succeeded.
var ErrNotInitialized = errors.New("collector not initialized")

// fallbackPrimaryZone names the baseline zone when discovery found no zones.
const fallbackPrimaryZone = "primary"

// Options controls how the collector reaches each zone.
type Options struct {
	AccessKey string
	SecretKey string
	// Region is used for REST request signing.
	Region string
	// UseREST asks for secondary bucket stats over the admin REST API.
	UseREST   bool
	VerifySSL bool
	// ResetBucketErrors replaces the whole per-bucket error map each cycle
	// instead of only the buckets that reported errors.
	ResetBucketErrors bool
}

// RESTEnabled reports whether the REST path is requested and has credentials.
func (o Options) RESTEnabled() bool {
	return o.UseREST && o.AccessKey != "" && o.SecretKey != ""
}

// Collector runs the collection pipeline against the local cluster and writes
// the results to a SnapshotStore.
// Thread-safe: CollectOnce may be called from several goroutines, but the
// Scheduler is what keeps cycles from overlapping.
type Collector struct {
	runner  admin.Runner
	store   *storage.SnapshotStore
	metrics *Metrics
	clock   clock.Clock
	log     logr.Logger
	opts    Options

	mu          sync.RWMutex
	topology    *model.Topology
	restClients map[string]*restapi.Client
	access      admin.Access
	initialized bool
}

// NewCollector creates a collector that issues admin commands through runner.
//
// Parameters:
//   - runner: admin command runner (admin.Executor in production)
//   - store: destination for snapshots, errors and topology
//   - opts: REST and error-replacement options
//   - log: base logger
//
// Returns:
//   - *Collector: ready for Initialize
func NewCollector(runner admin.Runner, store *storage.SnapshotStore, opts Options, log logr.Logger) *Collector {
	return &Collector{
		runner:      runner,
		store:       store,
		opts:        opts,
		clock:       clock.New(),
		log:         log.WithName("collector"),
		restClients: make(map[string]*restapi.Client),
	}
}

// SetMetrics attaches Prometheus metrics. Nil disables them.
func (c *Collector) SetMetrics(m *Metrics) {
	c.metrics = m
}

// SetClock overrides the time source used for snapshot timestamps.
func (c *Collector) SetClock(clk clock.Clock) {
	c.clock = clk
}

// Initialize validates cluster access, discovers the topology and sets up
// REST clients for zones that pass validation.
//
// Returns:
//   - error wrapping admin.ErrFatalAccess when the admin tool is missing or
//     the cluster is unreachable
//   - error wrapping topology.ErrDiscoveryFailed when no zone map could be read
//
// Implementation:
//  1. Pre-flight probe through admin.Validate
//  2. One-shot topology discovery
//  3. When REST is enabled, validate the first endpoint of every zone
//  4. Publish the topology to the store
func (c *Collector) Initialize(ctx context.Context) error {
	c.log.Info("initializing collector",
		"useREST", c.opts.UseREST, "verifySSL", c.opts.VerifySSL, "resetBucketErrors", c.opts.ResetBucketErrors)
	if c.opts.UseREST && !c.opts.RESTEnabled() {
		c.log.Info("WARNING: REST bucket stats enabled but access_key/secret_key missing, using CLI for all zones")
	}

	access, err := admin.Validate(ctx, c.runner, c.log)
	if err != nil {
		return err
	}

	topo, err := topology.NewDiscoverer(c.runner, c.log).Discover(ctx)
	if err != nil {
		return err
	}

	clients := make(map[string]*restapi.Client)
	if c.opts.RESTEnabled() {
		clients = c.validateREST(ctx, topo)
	} else {
		c.log.Info("bucket stats method: CLI for all zones")
	}

	topo.RESTValidatedZones = make([]string, 0, len(clients))
	for zone := range clients {
		topo.RESTValidatedZones = append(topo.RESTValidatedZones, zone)
	}
	sort.Strings(topo.RESTValidatedZones)
	topo.SecondaryDataAvailable = len(topo.SecondaryZones) > 0

	c.mu.Lock()
	c.access = access
	c.topology = topo
	c.restClients = clients
	c.initialized = true
	c.mu.Unlock()

	c.store.SetTopology(topo)
	c.log.Info("collector initialized", "zones", len(topo.Zones), "master", topo.MasterZone,
		"secondaries", topo.SecondaryZones, "restZones", topo.RESTValidatedZones, "degraded", access.Degraded)
	return nil
}

// validateREST builds one client per zone with endpoints and keeps those
// whose first endpoint accepts the credentials.
func (c *Collector) validateREST(ctx context.Context, topo *model.Topology) map[string]*restapi.Client {
	clients := make(map[string]*restapi.Client)
	for _, zone := range topo.Zones {
		if len(zone.Endpoints) == 0 {
			c.log.Info("WARNING: zone has no endpoints, cannot use REST", "zone", zone.Name)
			continue
		}
		client := restapi.New(zone.Endpoints[0], restapi.Options{
			AccessKey: c.opts.AccessKey,
			SecretKey: c.opts.SecretKey,
			Region:    c.opts.Region,
			VerifySSL: c.opts.VerifySSL,
		})
		check := client.ValidateAccess(ctx)
		if !check.OK {
			c.log.Info("WARNING: REST access failed, falling back to CLI", "zone", zone.Name,
				"endpoint", check.Endpoint, "status", check.Status, "error", check.Error)
			continue
		}
		c.log.Info("REST access OK", "zone", zone.Name, "endpoint", check.Endpoint)
		clients[zone.Name] = client
	}
	if len(clients) == 0 {
		c.log.Info("WARNING: REST validation failed for all zones, using CLI for everything")
	}
	return clients
}

// Initialized reports whether Initialize has succeeded.
func (c *Collector) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Access returns the pre-flight outcome recorded by Initialize.
func (c *Collector) Access() admin.Access {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.access
}

// CollectOnce runs one full collection cycle: bucket statistics and their
// sync status, global sync status, then the sync error list.
//
// A failing command only drops that item for this cycle. A panic anywhere in
// the cycle is recovered, logged and returned as an error so the scheduler
// always reaches its next interval.
//
// Returns:
//   - ErrNotInitialized before Initialize succeeded
//   - the context error when ctx ended mid-cycle
//   - an error describing a recovered panic
func (c *Collector) CollectOnce(ctx context.Context) (err error) {
	c.mu.RLock()
	ready := c.initialized
	topo := c.topology.Clone()
	clients := c.restClients
	c.mu.RUnlock()
	if !ready {
		return ErrNotInitialized
	}

	log := c.log.WithValues("cycle", uuid.NewString())
	started := c.clock.Now()
	ts := started.UTC()

	defer func() {
		if r := recover(); r != nil {
			log.Error(fmt.Errorf("%v", r), "collection cycle panicked")
			err = fmt.Errorf("collection cycle panicked: %v", r)
		}
		c.finishCycle(started, err)
	}()

	log.Info("collection cycle started", "timestamp", ts.Format(time.RFC3339))
	c.collectBucketStats(ctx, log, ts, topo, clients)
	c.collectSyncStatus(ctx, log, ts)
	c.collectSyncErrors(ctx, log, ts)

	return ctx.Err()
}

func (c *Collector) finishCycle(started time.Time, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.CycleTotal.WithLabelValues(result).Inc()
	c.metrics.CycleDuration.Observe(c.clock.Since(started).Seconds())
	c.metrics.LastCycleTimestamp.Set(float64(c.clock.Now().Unix()))
}

// collectBucketStats fetches every zone's bucket statistics, stores one
// snapshot per primary bucket and then attaches each bucket's sync status.
//
// Implementation:
//  1. Master zone via CLI without a zone override
//  2. Secondaries via their validated REST client, else CLI with --rgw-zone
//  3. Snapshot per bucket known to the primary
//  4. Best-effort "bucket sync status" per bucket
func (c *Collector) collectBucketStats(ctx context.Context, log logr.Logger, ts time.Time, topo *model.Topology, clients map[string]*restapi.Client) {
	master := topo.MasterZone
	if master == "" {
		master = fallbackPrimaryZone
	}
	log.Info("collecting bucket stats", "master", master, "secondaries", len(topo.SecondaryZones), "restClients", len(clients))

	stats := ZoneStats{master: c.cliBucketStats(ctx, log, "")}

	var withData []string
	for _, zone := range topo.SecondaryZones {
		if client, ok := clients[zone]; ok {
			log.V(1).Info("using REST for zone", "zone", zone, "endpoint", client.Endpoint())
			stats[zone] = c.restBucketStats(ctx, log, zone, client)
		} else {
			log.V(1).Info("using CLI for zone", "zone", zone)
			stats[zone] = c.cliBucketStats(ctx, log, zone)
		}
		if len(stats[zone]) > 0 {
			withData = append(withData, zone)
		} else {
			log.Info("WARNING: no bucket stats returned for zone", "zone", zone)
		}
	}

	secondaryData := len(withData) > 0
	if len(topo.SecondaryZones) > 0 && !secondaryData {
		log.Info("WARNING: secondary zones exist but none returned data, treating as no secondary data")
	}
	c.setSecondaryDataAvailable(secondaryData)

	primary := stats[master]
	if len(primary) == 0 {
		log.Info("WARNING: no primary bucket stats, skipping snapshots")
		return
	}

	buckets := make([]string, 0, len(primary))
	for name := range primary {
		buckets = append(buckets, name)
	}
	sort.Strings(buckets)

	for _, bucket := range buckets {
		snap := BuildSnapshot(ts, bucket, master, topo.SecondaryZones, stats, secondaryData)
		c.store.AddBucketSnapshot(bucket, snap)
		c.metrics.ObserveSnapshot(bucket, snap)
	}
	log.Info("bucket snapshots stored", "buckets", len(buckets), "zonesWithData", withData)

	for _, bucket := range buckets {
		if ctx.Err() != nil {
			return
		}
		c.collectBucketSyncStatus(ctx, log, bucket)
	}
}

func (c *Collector) cliBucketStats(ctx context.Context, log logr.Logger, zone string) map[string]model.BucketStats {
	args := []string{"bucket", "stats"}
	if zone != "" {
		args = append(args, "--rgw-zone", zone)
	}
	out, err := c.runner.Run(ctx, args, admin.ModeJSON, admin.StatsTimeout)
	if err != nil {
		log.Info("WARNING: bucket stats via CLI failed", "zone", zone, "error", err.Error())
		c.metrics.commandFailed("bucket_stats", string(admin.KindOf(err)))
		return nil
	}
	parsed := syncparse.DecodeBucketStats(out.JSON)
	log.V(1).Info("bucket stats via CLI", "zone", zone, "buckets", len(parsed))
	return parsed
}

func (c *Collector) restBucketStats(ctx context.Context, log logr.Logger, zone string, client *restapi.Client) map[string]model.BucketStats {
	parsed, err := client.BucketStats(ctx)
	if err != nil {
		log.Info("WARNING: bucket stats via REST failed", "zone", zone, "error", err.Error())
		c.metrics.commandFailed("bucket_stats_rest", "rest")
		return nil
	}
	log.V(1).Info("bucket stats via REST", "zone", zone, "buckets", len(parsed))
	return parsed
}

func (c *Collector) setSecondaryDataAvailable(available bool) {
	c.mu.Lock()
	if c.topology == nil {
		c.mu.Unlock()
		return
	}
	changed := c.topology.SecondaryDataAvailable != available
	c.topology.SecondaryDataAvailable = available
	topo := c.topology.Clone()
	c.mu.Unlock()

	if changed {
		c.store.SetTopology(topo)
	}
	if c.metrics != nil {
		v := 0.0
		if available {
			v = 1
		}
		c.metrics.SecondaryDataAvailable.Set(v)
	}
}

// collectBucketSyncStatus attaches "bucket sync status" to the bucket's
// latest snapshot. Failures leave the snapshot without a status.
func (c *Collector) collectBucketSyncStatus(ctx context.Context, log logr.Logger, bucket string) {
	out, err := c.runner.Run(ctx, []string{"bucket", "sync", "status", "--bucket", bucket}, admin.ModeText, admin.StatusTimeout)
	if err != nil {
		log.V(1).Info("bucket sync status failed", "bucket", bucket, "error", err.Error())
		c.metrics.commandFailed("bucket_sync_status", string(admin.KindOf(err)))
		return
	}

	parsed := syncparse.ParseBucket(out.Text)
	if parsed.SyncDisabled {
		log.V(1).Info("bucket sync disabled or no sync sources", "bucket", bucket)
	}
	for _, src := range parsed.Sources {
		log.V(1).Info("bucket sync source", "bucket", bucket, "source", src.SourceZone, "status", src.Status,
			"full", fmt.Sprintf("%d/%d", src.FullSyncDone, src.FullSyncTotal),
			"incremental", fmt.Sprintf("%d/%d", src.IncrementalSyncDone, src.IncrementalSyncTotal))
	}
	c.store.AttachBucketSyncStatus(bucket, parsed)
}

// collectSyncStatus records one global sync snapshot. A failing command is
// recorded as a snapshot with status "error".
func (c *Collector) collectSyncStatus(ctx context.Context, log logr.Logger, ts time.Time) {
	out, err := c.runner.Run(ctx, []string{"sync", "status"}, admin.ModeText, admin.StatusTimeout)
	if err != nil {
		log.Info("WARNING: global sync status failed", "error", err.Error())
		c.metrics.commandFailed("sync_status", string(admin.KindOf(err)))

		snap := model.GlobalSyncSnapshot{
			GlobalSyncStatus: model.GlobalSyncStatus{DataSync: []model.SyncBlock{}},
			Timestamp:        ts,
			Status:           model.ResultError,
			Error:            err.Error(),
		}
		var ce *admin.CommandError
		if errors.As(err, &ce) {
			snap.Error = ce.Message()
			snap.RawText = ce.Stdout
		}
		c.store.AddGlobalSnapshot(snap)
		return
	}

	parsed := syncparse.ParseGlobal(out.Text)
	metaStatus := "?"
	if parsed.MetadataSync != nil {
		metaStatus = parsed.MetadataSync.Status
	}
	log.Info("global sync status", "realm", parsed.Realm, "zone", parsed.Zone,
		"metadata", metaStatus, "dataSources", len(parsed.DataSync))
	for _, ds := range parsed.DataSync {
		log.V(1).Info("data sync source", "source", ds.SourceZone, "status", ds.Status,
			"full", fmt.Sprintf("%d/%d", ds.FullSyncDone, ds.FullSyncTotal),
			"incremental", fmt.Sprintf("%d/%d", ds.IncrementalSyncDone, ds.IncrementalSyncTotal))
	}

	c.store.AddGlobalSnapshot(model.GlobalSyncSnapshot{
		GlobalSyncStatus: parsed,
		Timestamp:        ts,
		Status:           model.ResultOK,
		RawText:          out.Text,
	})
}

// collectSyncErrors replaces the global error list and the error lists of
// every bucket that reported errors. With ResetBucketErrors the whole
// per-bucket map is replaced instead.
func (c *Collector) collectSyncErrors(ctx context.Context, log logr.Logger, ts time.Time) {
	out, err := c.runner.Run(ctx, []string{"sync", "error", "list"}, admin.ModeJSON, admin.StatsTimeout)
	if err != nil {
		log.V(1).Info("sync error list failed", "error", err.Error())
		c.metrics.commandFailed("sync_error_list", string(admin.KindOf(err)))
		c.store.SetGlobalErrors(nil)
		return
	}

	errs := syncparse.DecodeSyncErrors(out.JSON, ts.Format(time.RFC3339Nano))
	grouped := syncparse.GroupByBucket(errs)

	c.store.SetGlobalErrors(errs)
	if c.opts.ResetBucketErrors {
		c.store.ReplaceBucketErrors(grouped)
		if c.metrics != nil {
			c.metrics.BucketErrors.Reset()
		}
	} else {
		for bucket, bucketErrs := range grouped {
			c.store.SetBucketErrors(bucket, bucketErrs)
		}
	}
	if c.metrics != nil {
		c.metrics.SyncErrors.Set(float64(len(errs)))
		for bucket, bucketErrs := range grouped {
			c.metrics.BucketErrors.WithLabelValues(bucket).Set(float64(len(bucketErrs)))
		}
	}
	log.Info("sync errors collected", "errors", len(errs), "buckets", len(grouped))
}
