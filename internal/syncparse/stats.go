package syncparse

import (
	"github.com/tidwall/gjson"

	"github.com/dreamware/rgwsync/internal/model"
)

// DecodeBucketStats decodes "bucket stats" output into a map keyed by bucket
// name. A single object is treated as a one-element list; non-object items and
// records without a bucket name are skipped.
//
// gjson is used rather than encoding/json because numeric fields are emitted
// as numbers or strings depending on the cluster release.
func DecodeBucketStats(doc []byte) map[string]model.BucketStats {
	stats := make(map[string]model.BucketStats)
	for _, item := range records(gjson.ParseBytes(doc)) {
		name := item.Get("bucket").String()
		if name == "" {
			continue
		}
		stats[name] = decodeBucketRecord(item)
	}
	return stats
}

// BucketNames returns the bucket names found in "bucket stats" output, in
// document order.
func BucketNames(doc []byte) []string {
	var names []string
	for _, item := range records(gjson.ParseBytes(doc)) {
		if name := item.Get("bucket").String(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func records(root gjson.Result) []gjson.Result {
	switch {
	case root.IsArray():
		var out []gjson.Result
		for _, item := range root.Array() {
			if item.IsObject() {
				out = append(out, item)
			}
		}
		return out
	case root.IsObject():
		return []gjson.Result{root}
	default:
		return nil
	}
}

func decodeBucketRecord(item gjson.Result) model.BucketStats {
	rgwMain := item.Get(`usage.rgw\.main`)

	s := model.BucketStats{
		NumObjects:    rgwMain.Get("num_objects").Int(),
		SizeKB:        rgwMain.Get("size_kb").Int(),
		NumShards:     item.Get("num_shards").Int(),
		Zonegroup:     item.Get("zonegroup").String(),
		PlacementRule: item.Get("placement_rule").String(),
		Marker:        item.Get("marker").String(),
		ID:            item.Get("id").String(),
	}
	if actual := rgwMain.Get("size_kb_actual"); actual.Exists() {
		s.SizeActual = actual.Int() * 1024
	} else {
		s.SizeActual = rgwMain.Get("size").Int()
	}

	q := item.Get("bucket_quota")
	s.Quota = model.BucketQuota{
		Enabled:    q.Get("enabled").Bool(),
		CheckOnRaw: q.Get("check_on_raw").Bool(),
		MaxSize:    q.Get("max_size").Int(),
		MaxSizeKB:  q.Get("max_size_kb").Int(),
		MaxObjects: q.Get("max_objects").Int(),
	}
	return s
}
