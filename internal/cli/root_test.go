package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func withTempWD(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	originalWD, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(originalWD) })
	return tmp
}

func runCommand(t *testing.T, app *AppContext, args ...string) error {
	t.Helper()
	root := newRootCommand(app)
	root.SetArgs(args)
	return root.Execute()
}

func TestInitScanDownload_EndToEnd(t *testing.T) {
	tmp := withTempWD(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/get" {
			fmt.Fprint(w, `{"id":1,"trackName":"Song","artistName":"Artist","syncedLyrics":"[00:01.00]hi","plainLyrics":null,"instrumental":false}`)
			return
		}
		fmt.Fprint(w, "[]")
	}))
	defer srv.Close()

	configContent := fmt.Sprintf("database_path = %q\nremote_base_url = %q\n", filepath.Join(tmp, "library.db"), srv.URL)
	if err := os.WriteFile("config.toml", []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	musicDir := filepath.Join(tmp, "music")
	if err := os.MkdirAll(musicDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(musicDir, "song.mp3"), []byte("not real audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	app := &AppContext{IO: IOStreams{In: &bytes.Buffer{}, Out: &out, ErrOut: &out}}

	if err := runCommand(t, app, "init", musicDir); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := runCommand(t, app, "scan", musicDir); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := runCommand(t, app, "download"); err != nil {
		t.Fatalf("download: %v", err)
	}

	if _, err := os.Stat(filepath.Join(musicDir, "song.lrc")); err != nil {
		t.Fatalf("expected song.lrc to exist after download: %v", err)
	}

	out.Reset()
	if err := runCommand(t, app, "init", musicDir); err == nil {
		t.Fatal("expected re-registering the same directory without --force to fail")
	}
	if err := runCommand(t, app, "init", musicDir, "--force"); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestConfigSetGetReset(t *testing.T) {
	withTempWD(t)
	if err := os.WriteFile("config.toml", []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	app := &AppContext{IO: IOStreams{In: &bytes.Buffer{}, Out: &out, ErrOut: &out}}

	if err := runCommand(t, app, "config", "set", "remote_rps", "9"); err != nil {
		t.Fatalf("config set: %v", err)
	}

	out.Reset()
	if err := runCommand(t, app, "config", "get", "remote_rps"); err != nil {
		t.Fatalf("config get: %v", err)
	}
	if got := out.String(); got != "9\n" {
		t.Fatalf("config get output = %q, want \"9\\n\"", got)
	}

	if err := runCommand(t, app, "config", "reset"); err != nil {
		t.Fatalf("config reset: %v", err)
	}
	if err := runCommand(t, app, "config", "get", "remote_rps"); err == nil {
		t.Fatal("expected get after reset to fail")
	}
}
