package syncparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/dreamware/rgwsync/internal/model"
)

var (
	realmRe     = regexp.MustCompile(`^realm\s+\S+\s+\((.+?)\)`)
	zonegroupRe = regexp.MustCompile(`^zonegroup\s+\S+\s+\((.+?)\)`)
	zoneRe      = regexp.MustCompile(`^zone\s+\S+\s+\((.+?)\)`)

	metadataHeaderRe = regexp.MustCompile(`(?i)metadata sync`)
	dataSourceRe     = regexp.MustCompile(`data sync source:\s*\S+\s+\((.+?)\)`)

	fullSyncRe        = regexp.MustCompile(`full sync:\s*(\d+)/(\d+)\s*shards?`)
	incrementalSyncRe = regexp.MustCompile(`incremental sync:\s*(\d+)/(\d+)\s*shards?`)
	behindShardRe     = regexp.MustCompile(`(?i)shard\s+(\d+).*behind`)
)

// metadata block lines that keep the block open even when shallowly indented
var continuationPrefixes = []string{"full", "incremental", "metadata", "data", "shard"}

// headers holds the realm/zonegroup/zone names captured from a status report.
type headers struct {
	realm     string
	zonegroup string
	zone      string
}

// matchHeader records line into h when it is a realm/zonegroup/zone header.
// line must already be stripped.
func (h *headers) matchHeader(line string) bool {
	if m := realmRe.FindStringSubmatch(line); m != nil {
		h.realm = m[1]
		return true
	}
	if m := zonegroupRe.FindStringSubmatch(line); m != nil {
		h.zonegroup = m[1]
		return true
	}
	if m := zoneRe.FindStringSubmatch(line); m != nil {
		h.zone = m[1]
		return true
	}
	return false
}

// ParseGlobal parses the plain-text output of "sync status".
//
// Unrecognized input yields empty header names, a nil MetadataSync and no
// data blocks; it never fails.
func ParseGlobal(text string) model.GlobalSyncStatus {
	var h headers
	lines := strings.Split(text, "\n")
	for _, line := range lines {
		h.matchHeader(strings.TrimSpace(line))
	}

	status := model.GlobalSyncStatus{
		Realm:     h.realm,
		Zonegroup: h.zonegroup,
		Zone:      h.zone,
		DataSync:  []model.SyncBlock{},
	}

	if block := metadataBlock(lines); block != nil {
		parsed := parseSyncBlock(block)
		status.MetadataSync = &parsed
	}
	for _, src := range dataBlocks(lines) {
		parsed := parseSyncBlock(src.lines)
		parsed.SourceZone = src.zone
		status.DataSync = append(status.DataSync, parsed)
	}
	return status
}

// metadataBlock returns the lines of the metadata sync section, or nil.
//
// The block opens at the "metadata sync" line and stays open while lines are
// blank, indented by at least eight columns or a tab, or start with a
// continuation keyword. It always closes at a "data sync source:" marker,
// which would otherwise pass as a "data" continuation.
func metadataBlock(lines []string) []string {
	var block []string
	capturing := false
	for _, line := range lines {
		if metadataHeaderRe.MatchString(line) {
			capturing = true
			block = append(block, line)
			continue
		}
		if !capturing {
			continue
		}
		if dataSourceRe.MatchString(line) {
			break
		}
		stripped := strings.TrimSpace(line)
		if stripped != "" && !strings.HasPrefix(line, "        ") && !strings.HasPrefix(line, "\t") &&
			!hasAnyPrefix(stripped, continuationPrefixes) {
			break
		}
		block = append(block, line)
	}
	return block
}

type sourceBlock struct {
	zone  string
	lines []string
}

// dataBlocks splits out each "data sync source: <id> (<name>)" section. A
// section ends at the next marker or at the first non-empty line that does
// not start with a space.
func dataBlocks(lines []string) []sourceBlock {
	var (
		blocks  []sourceBlock
		current *sourceBlock
	)
	for _, line := range lines {
		if m := dataSourceRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				blocks = append(blocks, *current)
			}
			current = &sourceBlock{zone: m[1], lines: []string{line}}
			continue
		}
		if current == nil {
			continue
		}
		if strings.TrimSpace(line) != "" && !strings.HasPrefix(line, " ") {
			blocks = append(blocks, *current)
			current = nil
			continue
		}
		current.lines = append(current.lines, line)
	}
	if current != nil {
		blocks = append(blocks, *current)
	}
	return blocks
}

// parseSyncBlock reads status, shard counts and behind-shard details from a
// metadata or data block. Every line is examined, so the last status keyword
// in the block wins.
func parseSyncBlock(lines []string) model.SyncBlock {
	block := model.SyncBlock{
		Status:       model.StatusUnknown,
		BehindShards: []model.BehindShard{},
		Raw:          strings.TrimSpace(strings.Join(lines, "\n")),
	}
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		lower := strings.ToLower(stripped)

		if strings.Contains(lower, "syncing") && !strings.Contains(lower, "sync:") {
			block.Status = model.StatusSyncing
		}
		if strings.Contains(lower, "caught up") {
			block.Status = model.StatusCaughtUp
		}

		if done, total, ok := shardCounts(fullSyncRe, stripped); ok {
			block.FullSyncDone, block.FullSyncTotal = done, total
		}
		if done, total, ok := shardCounts(incrementalSyncRe, stripped); ok {
			block.IncrementalSyncDone, block.IncrementalSyncTotal = done, total
		}

		if m := behindShardRe.FindStringSubmatch(stripped); m != nil {
			id, _ := strconv.Atoi(m[1])
			block.BehindShards = append(block.BehindShards, model.BehindShard{ShardID: id, Detail: stripped})
		}
	}
	return block
}

func shardCounts(re *regexp.Regexp, line string) (done, total int, ok bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	done, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	total, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return done, total, true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
