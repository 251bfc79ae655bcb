// Package main implements the rgwsync monitor, which runs on a host of the
// master zone, periodically collects replication state from the local
// cluster and serves it as JSON together with pushes from secondary agents.
//
// Architecture:
//
//	┌──────────────────────────────────────────────┐
//	│                  Monitor                      │
//	├──────────────────────────────────────────────┤
//	│  HTTP API:                                   │
//	│    /api/health            - Access probe     │
//	│    /api/dashboard         - Combined view    │
//	│    /api/buckets[/{name}]  - Bucket history   │
//	│    /api/errors[/{bucket}] - Sync errors      │
//	│    /api/zone-agent/push   - Agent ingest     │
//	│    /api/collect           - Manual cycle     │
//	│    /metrics               - Prometheus       │
//	├──────────────────────────────────────────────┤
//	│  Components:                                 │
//	│    Collector     - Collection pipeline       │
//	│    Scheduler     - Periodic cycles           │
//	│    SnapshotStore - Bounded history           │
//	└──────────────────────────────────────────────┘
//
// Configuration comes from a YAML file (--config, RGW_MONITOR_CONFIG,
// default config.yaml) overlaid with RGW_* environment variables.
//
// When the admin tool cannot reach the cluster at startup the monitor still
// serves its API: health reports degraded and /api/collect answers 503.
//
// Example usage:
//
//	RGW_ACCESS_KEY=... RGW_SECRET_KEY=... ./monitor --config /etc/rgwsync/config.yaml
//	curl localhost:5000/api/buckets
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/rgwsync/internal/admin"
	"github.com/dreamware/rgwsync/internal/config"
	"github.com/dreamware/rgwsync/internal/coordinator"
	"github.com/dreamware/rgwsync/internal/storage"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	listen     string
	debug      bool
}

func newRootCmd() *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:           "monitor",
		Short:         "Monitor multisite replication from the master zone",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	root.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	root.Flags().StringVar(&opts.listen, "listen", "", "listen address (overrides config)")
	root.Flags().BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	return root
}

func newLogger(debug bool) (logr.Logger, func(), error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg = zap.NewDevelopmentConfig()
	}
	zl, err := zcfg.Build()
	if err != nil {
		return logr.Discard(), func() {}, fmt.Errorf("build logger: %w", err)
	}
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}

func run(ctx context.Context, opts options) error {
	log, flush, err := newLogger(opts.debug)
	if err != nil {
		return err
	}
	defer flush()

	cfg, err := config.LoadMonitor(opts.configPath)
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}

	srv, scheduler := setup(ctx, cfg, admin.NewExecutor(cfg.AdminBinary, log), log)
	if scheduler != nil {
		go scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("monitor listening", "addr", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Info("monitor stopped")
	return nil
}

// setup wires the store, collector and scheduler. The scheduler is nil when
// the collector could not initialize; the returned server still answers.
func setup(ctx context.Context, cfg config.Monitor, runner admin.Runner, log logr.Logger) (*server, *coordinator.Scheduler) {
	store := storage.NewSnapshotStore(cfg.MaxSnapshots, nil)
	metrics := coordinator.NewMetrics()
	collector := coordinator.NewCollector(runner, store, coordinator.Options{
		AccessKey:         cfg.AccessKey,
		SecretKey:         cfg.SecretKey,
		Region:            cfg.RESTRegion,
		UseREST:           cfg.UseRESTBucketStats,
		VerifySSL:         cfg.VerifySSL,
		ResetBucketErrors: cfg.ResetBucketErrors,
	}, log.WithName("collector"))
	collector.SetMetrics(metrics)

	srv := &server{
		store:     store,
		runner:    runner,
		collector: collector,
		metrics:   metrics,
		clock:     clock.New(),
		log:       log.WithName("api"),
	}

	if err := collector.Initialize(ctx); err != nil {
		banner := strings.Repeat("=", 60)
		log.Error(err, banner+"\nFATAL: cannot access the cluster, collection disabled\n"+banner)
		return srv, nil
	}

	access := collector.Access()
	log.Info("collector initialized", "degraded", access.Degraded,
		"restBucketStats", cfg.RESTEnabled(), "interval", cfg.Interval())
	srv.scheduler = coordinator.NewScheduler(collector, cfg.Interval(), log.WithName("scheduler"))
	return srv, srv.scheduler
}
