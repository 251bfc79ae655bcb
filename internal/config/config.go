package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults shared by both roles.
const (
	DefaultListen             = ":5000"
	DefaultAdminBinary        = "radosgw-admin"
	DefaultCollectionInterval = 60
	DefaultMaxSnapshots       = 30
	DefaultRegion             = "us-east-1"
	DefaultPushInterval       = 60
	DefaultMaxBuckets         = 500
)

// Environment variables read by LoadMonitor.
const (
	EnvMonitorConfig      = "RGW_MONITOR_CONFIG"
	EnvAccessKey          = "RGW_ACCESS_KEY"
	EnvSecretKey          = "RGW_SECRET_KEY"
	EnvUseRESTBucketStats = "RGW_USE_REST_BUCKET_STATS"
	EnvVerifySSL          = "RGW_VERIFY_SSL"
	EnvCollectionInterval = "RGW_COLLECTION_INTERVAL"
	EnvMonitorListen      = "RGW_MONITOR_LISTEN"
)

// DefaultMonitorConfigPath is used when neither a flag nor EnvMonitorConfig names a file.
const DefaultMonitorConfigPath = "config.yaml"

// Monitor configures the primary monitor process.
type Monitor struct {
	Listen             string `yaml:"listen"`
	AdminBinary        string `yaml:"admin_binary"`
	AccessKey          string `yaml:"access_key"`
	SecretKey          string `yaml:"secret_key"`
	RESTRegion         string `yaml:"rest_region"`
	CollectionInterval int    `yaml:"collection_interval"`
	MaxSnapshots       int    `yaml:"max_snapshots"`
	UseRESTBucketStats bool   `yaml:"use_rest_for_bucket_stats"`
	VerifySSL          bool   `yaml:"verify_ssl"`
	ResetBucketErrors  bool   `yaml:"reset_bucket_errors"`
}

// RESTEnabled reports whether REST bucket stats were requested and both
// keys are present.
func (m Monitor) RESTEnabled() bool {
	return m.UseRESTBucketStats && m.AccessKey != "" && m.SecretKey != ""
}

// Interval returns CollectionInterval as a duration.
func (m Monitor) Interval() time.Duration {
	return time.Duration(m.CollectionInterval) * time.Second
}

// Agent configures a secondary zone agent.
type Agent struct {
	PrimaryURL    string `yaml:"primary_url"`
	ZoneName      string `yaml:"zone_name"`
	AdminBinary   string `yaml:"admin_binary"`
	MetricsListen string `yaml:"metrics_listen"`
	PushInterval  int    `yaml:"push_interval"`
	MaxBuckets    int    `yaml:"max_buckets"`
}

// Interval returns PushInterval as a duration.
func (a Agent) Interval() time.Duration {
	return time.Duration(a.PushInterval) * time.Second
}

// LoadMonitor reads the monitor configuration.
//
// Parameters:
//   - path: YAML file; empty means EnvMonitorConfig, then DefaultMonitorConfigPath
//
// Returns:
//   - Monitor with environment overrides and defaults applied
//   - error when the file exists but cannot be parsed or an override is malformed
//
// A missing file is not an error: the monitor runs on defaults and the local
// admin tool alone.
func LoadMonitor(path string) (Monitor, error) {
	if path == "" {
		path = getenv(EnvMonitorConfig, DefaultMonitorConfigPath)
	}

	var cfg Monitor
	if err := readYAML(path, &cfg); err != nil {
		return Monitor{}, err
	}
	if err := cfg.applyEnv(); err != nil {
		return Monitor{}, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (m *Monitor) applyEnv() error {
	m.AccessKey = getenv(EnvAccessKey, m.AccessKey)
	m.SecretKey = getenv(EnvSecretKey, m.SecretKey)
	m.Listen = getenv(EnvMonitorListen, m.Listen)

	var err error
	if m.UseRESTBucketStats, err = envBool(EnvUseRESTBucketStats, m.UseRESTBucketStats); err != nil {
		return err
	}
	if m.VerifySSL, err = envBool(EnvVerifySSL, m.VerifySSL); err != nil {
		return err
	}
	if m.CollectionInterval, err = envInt(EnvCollectionInterval, m.CollectionInterval); err != nil {
		return err
	}
	return nil
}

func (m *Monitor) applyDefaults() {
	if m.Listen == "" {
		m.Listen = DefaultListen
	}
	if m.AdminBinary == "" {
		m.AdminBinary = DefaultAdminBinary
	}
	if m.RESTRegion == "" {
		m.RESTRegion = DefaultRegion
	}
	if m.CollectionInterval <= 0 {
		m.CollectionInterval = DefaultCollectionInterval
	}
	if m.MaxSnapshots <= 0 {
		m.MaxSnapshots = DefaultMaxSnapshots
	}
}

// LoadAgent reads the agent configuration from path. An empty path yields
// defaults only. Flag overrides are applied by the caller before Validate.
func LoadAgent(path string) (Agent, error) {
	var cfg Agent
	if path != "" {
		if err := readYAML(path, &cfg); err != nil {
			return Agent{}, err
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills unset fields.
func (a *Agent) ApplyDefaults() {
	if a.PushInterval <= 0 {
		a.PushInterval = DefaultPushInterval
	}
	if a.MaxBuckets <= 0 {
		a.MaxBuckets = DefaultMaxBuckets
	}
	if a.AdminBinary == "" {
		a.AdminBinary = DefaultAdminBinary
	}
}

// Validate checks the fields the agent cannot run without. The primary URL
// is optional in dry-run mode.
func (a Agent) Validate(dryRun bool) error {
	if a.PrimaryURL == "" && !dryRun {
		return errors.New("primary_url is required (use --primary-url or set primary_url in the config file)")
	}
	return nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return def, fmt.Errorf("%s: invalid boolean %q", key, v)
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}
