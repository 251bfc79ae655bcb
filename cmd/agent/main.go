// Package main implements the rgwsync zone agent, which runs on a host of a
// secondary zone, collects sync state from that zone's point of view and
// pushes it to the primary monitor.
//
// The agent is a worker next to the monitor, responsible for:
//   - Detecting its zone name when none is configured
//   - Reading global sync status and the sync error list
//   - Reading per-bucket sync status, trimmed to problem shards
//   - Pushing one payload per interval to /api/zone-agent/push
//
// Configuration comes from an optional YAML file (--config); flags override it.
//
// Example usage:
//
//	# Push every 30 seconds
//	./agent --primary-url http://primary:5000 --interval 30
//
//	# Inspect one payload without pushing
//	./agent --dry-run --once --zone us-west
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/rgwsync/internal/admin"
	"github.com/dreamware/rgwsync/internal/agent"
	"github.com/dreamware/rgwsync/internal/cluster"
	"github.com/dreamware/rgwsync/internal/config"
)

// pushTimeout bounds each request to the primary.
const pushTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	configPath    string
	primaryURL    string
	zone          string
	metricsListen string
	interval      int
	maxBuckets    int
	once          bool
	dryRun        bool
	debug         bool
}

func newRootCmd() *cobra.Command {
	var opts options
	root := &cobra.Command{
		Use:           "agent",
		Short:         "Push secondary zone sync state to the primary monitor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(opts, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			log, flush, err := newLogger(opts.debug)
			if err != nil {
				return err
			}
			defer flush()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, opts, admin.NewExecutor(cfg.AdminBinary, log), cmd.OutOrStdout(), log)
		},
	}
	f := root.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	f.StringVarP(&opts.primaryURL, "primary-url", "u", "", "base URL of the primary monitor API")
	f.StringVarP(&opts.zone, "zone", "z", "", "zone name (auto-detected when empty)")
	f.IntVarP(&opts.interval, "interval", "i", config.DefaultPushInterval, "push interval in seconds")
	f.IntVar(&opts.maxBuckets, "max-buckets", config.DefaultMaxBuckets, "maximum buckets to report per cycle")
	f.StringVar(&opts.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	f.BoolVar(&opts.once, "once", false, "run a single cycle and exit")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print the payload instead of pushing it")
	f.BoolVarP(&opts.debug, "debug", "d", false, "enable debug logging")
	return root
}

// resolveConfig loads the config file and applies the flags the user set.
func resolveConfig(opts options, changed func(string) bool) (config.Agent, error) {
	cfg, err := config.LoadAgent(opts.configPath)
	if err != nil {
		return config.Agent{}, err
	}
	if changed("primary-url") {
		cfg.PrimaryURL = opts.primaryURL
	}
	if changed("zone") {
		cfg.ZoneName = opts.zone
	}
	if changed("interval") {
		cfg.PushInterval = opts.interval
	}
	if changed("max-buckets") {
		cfg.MaxBuckets = opts.maxBuckets
	}
	if changed("metrics-listen") {
		cfg.MetricsListen = opts.metricsListen
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(opts.dryRun); err != nil {
		return config.Agent{}, err
	}
	return cfg, nil
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

func run(ctx context.Context, cfg config.Agent, opts options, runner admin.Runner, out io.Writer, log logr.Logger) error {
	var primary agent.Primary
	if cfg.PrimaryURL != "" {
		primary = cluster.NewClient(cfg.PrimaryURL, pushTimeout)
	}

	a := agent.New(runner, primary, agent.Options{
		ZoneName:   cfg.ZoneName,
		MaxBuckets: cfg.MaxBuckets,
		Interval:   cfg.Interval(),
		Once:       opts.once,
		DryRun:     opts.dryRun,
	}, log)
	a.SetOutput(out)

	if cfg.MetricsListen != "" {
		metrics := agent.NewMetrics()
		a.SetMetrics(metrics)
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info("metrics listening", "addr", cfg.MetricsListen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := a.Preflight(ctx); err != nil {
		return err
	}
	return a.Run(ctx)
}
