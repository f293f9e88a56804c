package errmsg

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpIndexUpsertTrack,
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with operation",
			op:       OpIndexUpsertTrack,
			err:      errors.New("constraint failed"),
			expected: "Failed to upsert track: constraint failed",
		},
		{
			name:     "scan operation",
			op:       OpScanWalk,
			err:      errors.New("permission denied"),
			expected: "Failed to scan directory: permission denied",
		},
		{
			name:     "remote fetch operation",
			op:       OpRemoteFetch,
			err:      errors.New("timeout"),
			expected: "Failed to query remote lyrics API: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.op, tt.err)
			if result != tt.expected {
				t.Errorf("Format(%q, %v) = %q, want %q", tt.op, tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatWith(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		context  string
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpProbeFile,
			context:  "song.mp3",
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with context",
			op:       OpProbeFile,
			context:  "song.mp3",
			err:      errors.New("unreadable tag"),
			expected: "Failed to probe audio file 'song.mp3': unreadable tag",
		},
		{
			name:     "empty context falls back to Format",
			op:       OpProbeFile,
			context:  "",
			err:      errors.New("unreadable tag"),
			expected: "Failed to probe audio file: unreadable tag",
		},
		{
			name:     "catalog find with fingerprint context",
			op:       OpCatalogFind,
			context:  "fp:abc123",
			err:      errors.New("corrupt catalog"),
			expected: "Failed to look up local catalog 'fp:abc123': corrupt catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatWith(tt.op, tt.context, tt.err)
			if result != tt.expected {
				t.Errorf("FormatWith(%q, %q, %v) = %q, want %q", tt.op, tt.context, tt.err, result, tt.expected)
			}
		})
	}
}

func TestOpConstants(t *testing.T) {
	ops := []Op{
		OpIndexEnsureSchema, OpIndexAddDirectory, OpIndexUpsertTrack, OpIndexListTracks, OpIndexSetState,
		OpProbeFile, OpScanWalk,
		OpCacheGet, OpCachePut, OpCacheEvict,
		OpRemoteFetch, OpRemoteSearch,
		OpCatalogFind, OpCatalogSearch,
		OpResolve, OpOrchestrate, OpSidecarWrite, OpEmbedLyrics,
		OpWatchSubscribe, OpWatchReconcile,
		OpInitialize, OpConfigLoad,
	}

	testErr := errors.New("test error")

	for _, op := range ops {
		t.Run(string(op), func(t *testing.T) {
			if op == "" {
				t.Error("Op constant should not be empty")
			}

			result := Format(op, testErr)
			expected := "Failed to " + string(op) + ": test error"
			if result != expected {
				t.Errorf("Format = %q, want %q", result, expected)
			}
		})
	}
}
