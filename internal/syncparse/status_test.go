package syncparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/rgwsync/internal/model"
)

const globalStatusText = `          realm 4a15f6c4-aaaa (test_realm)
      zonegroup 442935dd-bbbb (default)
           zone 15cea747-cccc (test_zone)
  metadata sync syncing
                full sync: 0/64 shards
                incremental sync: 64/64 shards
                metadata is caught up with master
      data sync source: abc123-dddd (zone2)
                        syncing
                        full sync: 0/128 shards
                        incremental sync: 128/128 shards
                        data is caught up with source
      data sync source: eee456-ffff (zone3)
                        syncing
                        full sync: 2/128 shards
                        incremental sync: 120/128 shards
                        shard 3: behind by 42 seconds
                        shard 17: behind by 7 seconds
`

func TestParseGlobal(t *testing.T) {
	status := ParseGlobal(globalStatusText)

	assert.Equal(t, "test_realm", status.Realm)
	assert.Equal(t, "default", status.Zonegroup)
	assert.Equal(t, "test_zone", status.Zone)

	require.NotNil(t, status.MetadataSync)
	meta := status.MetadataSync
	assert.Equal(t, model.StatusCaughtUp, meta.Status)
	assert.Equal(t, 0, meta.FullSyncDone)
	assert.Equal(t, 64, meta.FullSyncTotal)
	assert.Equal(t, 64, meta.IncrementalSyncDone)
	assert.Equal(t, 64, meta.IncrementalSyncTotal)
	assert.NotContains(t, meta.Raw, "data sync source")

	require.Len(t, status.DataSync, 2)

	zone2 := status.DataSync[0]
	assert.Equal(t, "zone2", zone2.SourceZone)
	assert.Equal(t, model.StatusCaughtUp, zone2.Status)
	assert.Equal(t, 128, zone2.FullSyncTotal)
	assert.Equal(t, 128, zone2.IncrementalSyncDone)
	assert.Empty(t, zone2.BehindShards)

	zone3 := status.DataSync[1]
	assert.Equal(t, "zone3", zone3.SourceZone)
	assert.Equal(t, model.StatusSyncing, zone3.Status)
	assert.Equal(t, 2, zone3.FullSyncDone)
	assert.Equal(t, 120, zone3.IncrementalSyncDone)
	assert.Equal(t, []model.BehindShard{
		{ShardID: 3, Detail: "shard 3: behind by 42 seconds"},
		{ShardID: 17, Detail: "shard 17: behind by 7 seconds"},
	}, zone3.BehindShards)
}

func TestParseGlobalLastStatusWins(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "caught up after syncing",
			text: "  metadata sync syncing\n                metadata is caught up with master\n",
			want: model.StatusCaughtUp,
		},
		{
			name: "syncing after caught up",
			text: "  metadata sync\n                metadata is caught up with master\n                syncing\n",
			want: model.StatusSyncing,
		},
		{
			name: "count lines do not set syncing",
			text: "  metadata sync\n                full sync: 0/64 shards\n",
			want: model.StatusUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := ParseGlobal(tt.text)
			require.NotNil(t, status.MetadataSync)
			assert.Equal(t, tt.want, status.MetadataSync.Status)
		})
	}
}

func TestMetadataBlockBoundary(t *testing.T) {
	text := "metadata sync syncing\n" +
		"        full sync: 1/64 shards\n" +
		"\n" +
		"  incremental sync: 60/64 shards\n" +
		"  other section\n" +
		"        full sync: 9/9 shards\n"

	status := ParseGlobal(text)

	require.NotNil(t, status.MetadataSync)
	assert.Equal(t, 1, status.MetadataSync.FullSyncDone)
	assert.Equal(t, 64, status.MetadataSync.FullSyncTotal)
	assert.Equal(t, 60, status.MetadataSync.IncrementalSyncDone)
	assert.NotContains(t, status.MetadataSync.Raw, "other section")
}

func TestDataBlockEndsAtUnindentedLine(t *testing.T) {
	text := "data sync source: z1 (east)\n" +
		"   full sync: 3/4 shards\n" +
		"trailer\n" +
		"   full sync: 4/4 shards\n"

	status := ParseGlobal(text)

	require.Len(t, status.DataSync, 1)
	assert.Equal(t, 3, status.DataSync[0].FullSyncDone)
	assert.Equal(t, 4, status.DataSync[0].FullSyncTotal)
}

func TestParseGlobalGarbage(t *testing.T) {
	status := ParseGlobal("ERROR: something unexpected\nno structure here")

	assert.Empty(t, status.Realm)
	assert.Empty(t, status.Zone)
	assert.Nil(t, status.MetadataSync)
	assert.NotNil(t, status.DataSync)
	assert.Empty(t, status.DataSync)
}
