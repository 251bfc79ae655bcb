package syncparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const syncErrorsJSON = `[
  {
    "shard_id": 0,
    "entries": [
      {
        "id": "1_1727244579.488676_1234.1",
        "section": "data",
        "name": "mybucket:8b96aea5-xyz:shard[3]",
        "timestamp": "2025-09-25T06:09:39.488676Z",
        "info": {
          "source_zone": "8b96aea5-zone",
          "error_code": 13,
          "message": "failed to sync bucket instance: (13) Permission denied"
        }
      },
      "garbage",
      {
        "id": "2",
        "section": "data",
        "name": "other",
        "info": {"message": "no code"}
      }
    ]
  },
  {"shard_id": 1, "entries": []},
  42
]`

func TestDecodeSyncErrors(t *testing.T) {
	errs := DecodeSyncErrors([]byte(syncErrorsJSON), "2026-01-01T00:00:00Z")

	require.Len(t, errs, 2)

	first := errs[0]
	assert.Equal(t, 0, first.ShardID)
	assert.Equal(t, "mybucket", first.Bucket)
	assert.Equal(t, "mybucket:8b96aea5-xyz:shard[3]", first.RawName)
	assert.Equal(t, "13", first.ErrorCode)
	assert.Equal(t, "8b96aea5-zone", first.SourceZone)
	assert.Equal(t, "2025-09-25T06:09:39.488676Z", first.Timestamp)
	assert.Equal(t, "data", first.Section)

	second := errs[1]
	assert.Equal(t, "other", second.Bucket)
	assert.Equal(t, "unknown", second.ErrorCode)
	assert.Equal(t, "2026-01-01T00:00:00Z", second.Timestamp)
	assert.Equal(t, "no code", second.Message)
}

func TestDecodeSyncErrorsWrapped(t *testing.T) {
	shards := `{"shards": [{"shard_id": 4, "entries": [{"name": "b1:x", "info": {"error_code": "EIO"}}]}]}`
	entries := `{"entries": [{"shard_id": 5, "entries": [{"name": "b2"}]}]}`

	got := DecodeSyncErrors([]byte(shards), "")
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].ShardID)
	assert.Equal(t, "EIO", got[0].ErrorCode)

	got = DecodeSyncErrors([]byte(entries), "")
	require.Len(t, got, 1)
	assert.Equal(t, "b2", got[0].Bucket)
	assert.Empty(t, got[0].Timestamp)

	assert.Empty(t, DecodeSyncErrors([]byte(`{"unrelated": true}`), ""))
	assert.NotNil(t, DecodeSyncErrors([]byte(`[]`), ""))
}

func TestBucketFromErrorName(t *testing.T) {
	assert.Equal(t, "mybucket", BucketFromErrorName("mybucket:8b96aea5-xyz:shard[3]"))
	assert.Equal(t, "plain", BucketFromErrorName("plain"))
	assert.Equal(t, "", BucketFromErrorName(":leading"))
	assert.Equal(t, "", BucketFromErrorName(""))
}

func TestGroupByBucket(t *testing.T) {
	errs := DecodeSyncErrors([]byte(`[{"shard_id":0,"entries":[
		{"name":"a:1"},{"name":"b:1"},{"name":"a:2"},{"name":""}
	]}]`), "")

	grouped := GroupByBucket(errs)

	assert.Len(t, grouped, 2)
	assert.Len(t, grouped["a"], 2)
	assert.Len(t, grouped["b"], 1)
}
