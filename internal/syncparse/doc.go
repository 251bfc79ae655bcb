// Package syncparse turns admin tool output into model records. It is shared
// by the primary collector and the secondary agent so that both roles read
// the same formats the same way.
//
// Two outputs are plain text with no JSON mode: "sync status" (ParseGlobal)
// and "bucket sync status" (ParseBucket). Both are parsed line by line using
// anchored patterns for header fields and indentation rules for the nested
// sections. Structured outputs, "bucket stats" and "sync error list", are
// decoded tolerantly with gjson by DecodeBucketStats and DecodeSyncErrors.
//
// None of the functions fail. Unexpected input produces records with empty
// names and "unknown" status rather than an error.
package syncparse
