package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"ladle/internal/testsupport"
)

func TestCheckDirectoryAccessOK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccessNotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccessNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBinary(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	result := CheckBinary("present", present, true)
	if !result.Passed {
		t.Fatalf("expected stub binary to resolve, got: %s", result.Detail)
	}

	result = CheckBinary("missing", "clearly-not-present-binary", true)
	if result.Passed {
		t.Fatal("expected missing binary to fail")
	}
	if !result.Optional {
		t.Fatal("expected optional flag to carry through")
	}

	result = CheckBinary("unset", "  ", false)
	if result.Passed || result.Detail != "command not configured" {
		t.Fatalf("unexpected result for blank command: %#v", result)
	}
}

func TestRunAllCoversDirectoriesAndBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	results := RunAll(cfg)
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}

	for _, name := range []string{"Data directory", "Static directory", "yt-dlp"} {
		if _, ok := byName[name]; !ok {
			t.Fatalf("missing %q check in %v", name, results)
		}
	}
	if !byName["Data directory"].Passed {
		t.Fatalf("data directory should pass: %s", byName["Data directory"].Detail)
	}
	if !byName["yt-dlp"].Optional {
		t.Fatal("yt-dlp check should be optional")
	}
}
