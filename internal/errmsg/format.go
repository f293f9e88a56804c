// Package errmsg provides consistent error formatting for user-facing
// messages, grounded on the teacher's own internal/errmsg (Op type plus
// Format/FormatWith), with an Op vocabulary retargeted at this pipeline's
// stages (Index, Probe/Scanner, Cache, Remote, Catalog, Resolver/
// Orchestrator, Watcher) instead of the teacher's playback/library ops.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by pipeline stage.
const (
	// Index Store operations
	OpIndexEnsureSchema Op = "prepare library index"
	OpIndexAddDirectory Op = "register directory"
	OpIndexUpsertTrack  Op = "upsert track"
	OpIndexListTracks   Op = "list tracks"
	OpIndexSetState     Op = "update lyric state"

	// Probe / Scanner operations
	OpProbeFile Op = "probe audio file"
	OpScanWalk  Op = "scan directory"

	// Cache Tier operations
	OpCacheGet    Op = "read cache entry"
	OpCachePut    Op = "write cache entry"
	OpCacheEvict  Op = "evict cache shard"

	// Remote Client operations
	OpRemoteFetch  Op = "query remote lyrics API"
	OpRemoteSearch Op = "search remote lyrics API"

	// Local Catalog operations
	OpCatalogFind   Op = "look up local catalog"
	OpCatalogSearch Op = "search local catalog"

	// Resolver / Orchestrator operations
	OpResolve       Op = "resolve lyrics"
	OpOrchestrate   Op = "download lyrics"
	OpSidecarWrite  Op = "write lyric sidecar"
	OpEmbedLyrics   Op = "embed lyrics into tags"

	// Watcher operations
	OpWatchSubscribe Op = "watch directory"
	OpWatchReconcile Op = "reconcile watched roots"

	// Initialization / config
	OpInitialize Op = "initialize application"
	OpConfigLoad Op = "load configuration"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
