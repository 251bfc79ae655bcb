package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMonitorDefaults(t *testing.T) {
	cfg, err := LoadMonitor(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, DefaultAdminBinary, cfg.AdminBinary)
	assert.Equal(t, DefaultRegion, cfg.RESTRegion)
	assert.Equal(t, 60*time.Second, cfg.Interval())
	assert.Equal(t, DefaultMaxSnapshots, cfg.MaxSnapshots)
	assert.False(t, cfg.RESTEnabled())
	assert.False(t, cfg.ResetBucketErrors)
}

func TestLoadMonitorFile(t *testing.T) {
	path := writeFile(t, `
listen: ":9000"
access_key: AK
secret_key: SK
use_rest_for_bucket_stats: true
verify_ssl: true
collection_interval: 15
max_snapshots: 10
reset_bucket_errors: true
`)
	cfg, err := LoadMonitor(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Listen)
	assert.True(t, cfg.RESTEnabled())
	assert.True(t, cfg.VerifySSL)
	assert.Equal(t, 15*time.Second, cfg.Interval())
	assert.Equal(t, 10, cfg.MaxSnapshots)
	assert.True(t, cfg.ResetBucketErrors)
}

func TestLoadMonitorEnvOverrides(t *testing.T) {
	path := writeFile(t, "access_key: file-key\ncollection_interval: 15\n")
	t.Setenv(EnvAccessKey, "env-key")
	t.Setenv(EnvSecretKey, "env-secret")
	t.Setenv(EnvUseRESTBucketStats, "yes")
	t.Setenv(EnvCollectionInterval, "120")
	t.Setenv(EnvMonitorListen, ":7000")

	cfg, err := LoadMonitor(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.AccessKey)
	assert.Equal(t, "env-secret", cfg.SecretKey)
	assert.True(t, cfg.RESTEnabled())
	assert.Equal(t, 120*time.Second, cfg.Interval())
	assert.Equal(t, ":7000", cfg.Listen)
}

func TestLoadMonitorPathFromEnv(t *testing.T) {
	path := writeFile(t, "max_snapshots: 7\n")
	t.Setenv(EnvMonitorConfig, path)

	cfg, err := LoadMonitor("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxSnapshots)
}

func TestLoadMonitorErrors(t *testing.T) {
	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadMonitor(writeFile(t, "listen: [unterminated\n"))
		assert.Error(t, err)
	})

	t.Run("bad bool", func(t *testing.T) {
		t.Setenv(EnvVerifySSL, "maybe")
		_, err := LoadMonitor(filepath.Join(t.TempDir(), "none.yaml"))
		assert.ErrorContains(t, err, EnvVerifySSL)
	})

	t.Run("bad int", func(t *testing.T) {
		t.Setenv(EnvCollectionInterval, "soon")
		_, err := LoadMonitor(filepath.Join(t.TempDir(), "none.yaml"))
		assert.ErrorContains(t, err, EnvCollectionInterval)
	})
}

func TestRESTEnabledNeedsBothKeys(t *testing.T) {
	assert.False(t, Monitor{UseRESTBucketStats: true, AccessKey: "a"}.RESTEnabled())
	assert.False(t, Monitor{UseRESTBucketStats: true, SecretKey: "s"}.RESTEnabled())
	assert.False(t, Monitor{AccessKey: "a", SecretKey: "s"}.RESTEnabled())
}

func TestLoadAgent(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadAgent("")
		require.NoError(t, err)
		assert.Equal(t, 60*time.Second, cfg.Interval())
		assert.Equal(t, DefaultMaxBuckets, cfg.MaxBuckets)
		assert.Equal(t, DefaultAdminBinary, cfg.AdminBinary)
		assert.Empty(t, cfg.ZoneName)
	})

	t.Run("file", func(t *testing.T) {
		path := writeFile(t, `
primary_url: http://primary:5000
push_interval: 30
zone_name: us-west
max_buckets: 10
`)
		cfg, err := LoadAgent(path)
		require.NoError(t, err)
		assert.Equal(t, "http://primary:5000", cfg.PrimaryURL)
		assert.Equal(t, 30*time.Second, cfg.Interval())
		assert.Equal(t, "us-west", cfg.ZoneName)
		assert.Equal(t, 10, cfg.MaxBuckets)
	})
}

func TestAgentValidate(t *testing.T) {
	assert.Error(t, Agent{}.Validate(false))
	assert.NoError(t, Agent{}.Validate(true))
	assert.NoError(t, Agent{PrimaryURL: "http://p"}.Validate(false))
}
