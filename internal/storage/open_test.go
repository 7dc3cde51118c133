package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"tokenart/internal/infra"
)

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, infra.StoreConfig{StoreDriver: infra.DriverMemory}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open(memory) error: %v", err)
	}
	if _, ok := mem.(*MemoryStore); !ok {
		t.Fatalf("Open(memory) returned %T", mem)
	}

	path := filepath.Join(t.TempDir(), "data", "ledger.db")
	lite, err := Open(ctx, infra.StoreConfig{StoreDriver: infra.DriverSQLite, SQLitePath: path}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open(sqlite) error: %v", err)
	}
	defer lite.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("sqlite file not created: %v", err)
	}

	if _, err := Open(ctx, infra.StoreConfig{StoreDriver: "etcd"}, zerolog.Nop()); err == nil {
		t.Fatal("Open() accepted an unknown driver")
	}
}

func TestExportDirWriteJSON(t *testing.T) {
	root := t.TempDir()
	dir, err := NewExportDir(root)
	if err != nil {
		t.Fatalf("NewExportDir() error: %v", err)
	}

	key, err := dir.WriteJSON(context.Background(), "./art-1/summary.json", map[string]int{"total": 5})
	if err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	if key != "art-1/summary.json" {
		t.Fatalf("WriteJSON() key = %q", key)
	}
	raw, err := os.ReadFile(filepath.Join(root, "art-1", "summary.json"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var got map[string]int
	if err := json.Unmarshal(raw, &got); err != nil || got["total"] != 5 {
		t.Fatalf("export content = %s (%v)", raw, err)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "art/summary.json", want: "art/summary.json"},
		{key: "/abs/path.json", want: "abs/path.json"},
		{key: `win\style.json`, want: "win/style.json"},
		{key: "a/../b.json", want: "b.json"},
		{key: "../escape.json", wantErr: true},
		{key: "..", wantErr: true},
		{key: " ", wantErr: true},
		{key: ".", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.key, func(t *testing.T) {
			got, err := sanitizeKey(tc.key)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("sanitizeKey(%q) = %q, want error", tc.key, got)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("sanitizeKey(%q) = %q, %v; want %q", tc.key, got, err, tc.want)
			}
		})
	}
}
