package syncparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dreamware/rgwsync/internal/model"
)

var (
	bucketNameRe  = regexp.MustCompile(`^bucket\s+:?(\S+?)[\[\(]`)
	currentTimeRe = regexp.MustCompile(`^current time\s+([\dT:Z\.\-]+)`)
	sourceZoneRe  = regexp.MustCompile(`source zone\s+\S+\s+\((.+?)\)`)
	bucketShardRe = regexp.MustCompile(`^bucket shard\s+(\d+):\s*(.*)`)
)

// ParseBucket parses the plain-text output of "bucket sync status".
//
// A "sync is disabled" or "no sync sources" line sets SyncDisabled; source
// blocks are still scanned afterwards.
func ParseBucket(text string) *model.BucketSyncStatus {
	var h headers
	result := &model.BucketSyncStatus{
		Sources: []model.SourceSyncStatus{},
		Raw:     strings.TrimSpace(text),
	}

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if h.matchHeader(stripped) {
			continue
		}
		if m := bucketNameRe.FindStringSubmatch(stripped); m != nil {
			result.Bucket = m[1]
			continue
		}
		if m := currentTimeRe.FindStringSubmatch(stripped); m != nil {
			result.CurrentTime = m[1]
			continue
		}
		lower := strings.ToLower(stripped)
		if strings.Contains(lower, "sync is disabled") || strings.Contains(lower, "no sync sources") {
			result.SyncDisabled = true
		}
	}
	result.Realm, result.Zonegroup, result.Zone = h.realm, h.zonegroup, h.zone

	for _, src := range sourceZoneBlocks(lines) {
		parsed := parseSourceBlock(src.lines)
		parsed.SourceZone = src.zone
		result.Sources = append(result.Sources, parsed)
	}
	return result
}

// sourceZoneBlocks splits out "source zone <id> (<name>)" sections. A section
// runs until the next marker or the end of the text.
func sourceZoneBlocks(lines []string) []sourceBlock {
	var (
		blocks  []sourceBlock
		current *sourceBlock
	)
	for _, line := range lines {
		if m := sourceZoneRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				blocks = append(blocks, *current)
			}
			current = &sourceBlock{zone: m[1], lines: []string{line}}
			continue
		}
		if current != nil {
			current.lines = append(current.lines, line)
		}
	}
	if current != nil {
		blocks = append(blocks, *current)
	}
	return blocks
}

func parseSourceBlock(lines []string) model.SourceSyncStatus {
	src := model.SourceSyncStatus{
		Status:       model.StatusUnknown,
		ShardDetails: []model.ShardDetail{},
	}
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		lower := strings.ToLower(stripped)

		// first match per line, last matching line overall
		switch {
		case strings.Contains(lower, "caught up"):
			src.Status = model.StatusCaughtUp
		case strings.Contains(lower, "syncing") && !strings.Contains(lower, "sync:"):
			src.Status = model.StatusSyncing
		case strings.Contains(lower, "behind") && !strings.Contains(lower, "sync:"):
			src.Status = model.StatusBehind
		}

		if done, total, ok := shardCounts(fullSyncRe, stripped); ok {
			src.FullSyncDone, src.FullSyncTotal = done, total
		}
		if done, total, ok := shardCounts(incrementalSyncRe, stripped); ok {
			src.IncrementalSyncDone, src.IncrementalSyncTotal = done, total
		}

		if m := bucketShardRe.FindStringSubmatch(stripped); m != nil {
			id, _ := strconv.Atoi(m[1])
			src.ShardDetails = append(src.ShardDetails, model.ShardDetail{
				ShardID: id,
				Status:  strings.TrimSpace(m[2]),
			})
		}
	}

	if src.Status == model.StatusUnknown {
		src.Status = inferStatus(src)
	}
	return src
}

func inferStatus(src model.SourceSyncStatus) string {
	switch {
	case src.IncrementalSyncTotal > 0 &&
		src.IncrementalSyncDone >= src.IncrementalSyncTotal &&
		src.FullSyncDone >= src.FullSyncTotal:
		return model.StatusCaughtUp
	case src.IncrementalSyncTotal > 0 || src.FullSyncTotal > 0:
		return model.StatusSyncing
	default:
		return model.StatusUnknown
	}
}

// Trim reduces a parsed bucket status to what an agent push needs: shard
// details are cut down to shards whose status mentions "behind" or "error",
// ShardCount keeps the original number and the raw text is dropped. The input
// is not modified.
func Trim(status *model.BucketSyncStatus) *model.BucketSyncStatus {
	if status == nil {
		return nil
	}
	out := *status
	out.Raw = ""
	out.Sources = make([]model.SourceSyncStatus, 0, len(status.Sources))
	for _, src := range status.Sources {
		trimmed := src
		trimmed.ShardCount = len(src.ShardDetails)
		trimmed.Trimmed = true
		trimmed.ShardDetails = []model.ShardDetail{}
		for _, sd := range src.ShardDetails {
			lower := strings.ToLower(sd.Status)
			if strings.Contains(lower, "behind") || strings.Contains(lower, "error") {
				trimmed.ShardDetails = append(trimmed.ShardDetails, sd)
			}
		}
		out.Sources = append(out.Sources, trimmed)
	}
	return &out
}
