package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLintMarkers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.go", "package q\n\nconst QOk = `--sql 7e838833-dfe0-48a3-b9fc-4b26348463d6\nSELECT 1`\n\nconst Greeting = \"hello\"\n")
	writeFile(t, dir, "bad.go", "package q\n\nconst QBad = `SELECT value FROM ledger_entries`\n")
	writeFile(t, dir, "dup.go", "package q\n\nconst QDup = `--sql 7e838833-dfe0-48a3-b9fc-4b26348463d6\nDELETE FROM ledger_entries`\n")
	writeFile(t, dir, "_skip/skip.go", "package skip\n\nconst QSkip = `SELECT 1`\n")

	files, err := goFiles(dir)
	if err != nil {
		t.Fatalf("goFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("goFiles returned %v, want 3 files", files)
	}
	violations, err := lint(files)
	if err != nil {
		t.Fatalf("lint: %v", err)
	}
	got := map[string]string{}
	for _, v := range violations {
		got[v.name] = v.message
	}
	if len(got) != 2 {
		t.Fatalf("violations = %+v, want QBad and QDup", violations)
	}
	if !strings.Contains(got["QBad"], "missing") {
		t.Fatalf("QBad message = %q", got["QBad"])
	}
	if !strings.Contains(got["QDup"], "already used") && !strings.Contains(got["QOk"], "already used") {
		t.Fatalf("duplicate marker not reported: %+v", violations)
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.go", "package q\n\nconst QOk = `--sql 5b188b49-4984-4ac6-8a7a-e28b83ba2ce8\nINSERT INTO t VALUES (1)`\n")

	var stderr bytes.Buffer
	if code := run([]string{dir}, &stderr); code != 0 {
		t.Fatalf("run on clean tree = %d: %s", code, stderr.String())
	}
	writeFile(t, dir, "bad.go", "package q\n\nconst QBad = \"update t set x = 1\"\n")
	if code := run([]string{dir}, &stderr); code != 1 {
		t.Fatalf("run on bad tree = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "QBad") {
		t.Fatalf("stderr = %q", stderr.String())
	}
	if code := run([]string{filepath.Join(dir, "missing")}, &stderr); code != 1 {
		t.Fatalf("run on missing path = %d, want 1", code)
	}
}
