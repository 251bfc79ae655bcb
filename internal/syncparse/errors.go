package syncparse

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dreamware/rgwsync/internal/model"
)

// DecodeSyncErrors flattens "sync error list" output. The document is a list
// of {shard_id, entries[]} records, or an object wrapping that list under
// "shards" or "entries". Entries without a timestamp get fallbackTimestamp.
func DecodeSyncErrors(doc []byte, fallbackTimestamp string) []model.SyncError {
	root := gjson.ParseBytes(doc)
	if root.IsObject() {
		if shards := root.Get("shards"); shards.Exists() {
			root = shards
		} else {
			root = root.Get("entries")
		}
	}

	errs := []model.SyncError{}
	if !root.IsArray() {
		return errs
	}
	for _, shard := range root.Array() {
		if !shard.IsObject() {
			continue
		}
		shardID := int(shard.Get("shard_id").Int())
		for _, entry := range shard.Get("entries").Array() {
			if !entry.IsObject() {
				continue
			}
			errs = append(errs, decodeSyncErrorEntry(shardID, entry, fallbackTimestamp))
		}
	}
	return errs
}

func decodeSyncErrorEntry(shardID int, entry gjson.Result, fallbackTimestamp string) model.SyncError {
	info := entry.Get("info")
	rawName := entry.Get("name").String()

	e := model.SyncError{
		ShardID:    shardID,
		EntryID:    entry.Get("id").String(),
		Section:    entry.Get("section").String(),
		RawName:    rawName,
		Timestamp:  fallbackTimestamp,
		Bucket:     BucketFromErrorName(rawName),
		SourceZone: info.Get("source_zone").String(),
		ErrorCode:  "unknown",
		Message:    info.Get("message").String(),
	}
	if ts := entry.Get("timestamp"); ts.Exists() {
		e.Timestamp = ts.String()
	}
	if code := info.Get("error_code"); code.Exists() {
		e.ErrorCode = code.String()
	}
	return e
}

// BucketFromErrorName returns the bucket part of a composite error name such
// as "mybucket:zone-id.123:shard[3]".
func BucketFromErrorName(name string) string {
	bucket, _, _ := strings.Cut(name, ":")
	return bucket
}

// GroupByBucket groups errors by their derived bucket. Errors without a
// bucket are left out.
func GroupByBucket(errs []model.SyncError) map[string][]model.SyncError {
	grouped := make(map[string][]model.SyncError)
	for _, e := range errs {
		if e.Bucket == "" {
			continue
		}
		grouped[e.Bucket] = append(grouped[e.Bucket], e)
	}
	return grouped
}
