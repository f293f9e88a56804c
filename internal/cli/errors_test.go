package cli

import (
	"errors"
	"testing"

	"github.com/corvidae/lyricsync/internal/exitcode"
)

func TestMapExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: exitcode.Success},
		{name: "coded", err: &ExitError{Code: exitcode.InvalidUsage, Err: errors.New("bad")}, want: exitcode.InvalidUsage},
		{name: "unknown command", err: errors.New("unknown command \"x\" for \"lyricsync\""), want: exitcode.InvalidUsage},
		{name: "generic", err: errors.New("boom"), want: exitcode.Fatal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapExitCode(tc.err); got != tc.want {
				t.Fatalf("mapExitCode() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestWithExitCodeNilIsNil(t *testing.T) {
	if err := withExitCode(exitcode.InvalidUsage, nil); err != nil {
		t.Fatalf("withExitCode(nil) = %v, want nil", err)
	}
}
