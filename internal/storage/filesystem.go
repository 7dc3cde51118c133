package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExportDir writes ledger snapshots as JSON files below a root directory.
// Keys come from user supplied target names and are cleaned so that no
// export can escape the root.
type ExportDir struct {
	root string
}

// NewExportDir initializes an ExportDir rooted at root, creating it if needed.
func NewExportDir(root string) (*ExportDir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("storage: export directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure export directory: %w", err)
	}
	return &ExportDir{root: root}, nil
}

// Root returns the configured directory.
func (d *ExportDir) Root() string {
	if d == nil {
		return ""
	}
	return d.root
}

// WriteJSON encodes v at key (a slash separated relative path) and returns
// the cleaned key.
func (d *ExportDir) WriteJSON(ctx context.Context, key string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("storage: encode export: %w", err)
	}
	return d.WriteFile(ctx, key, append(data, '\n'))
}

// WriteFile stores data at key and returns the cleaned key. The file is
// written to a temporary name first and renamed into place.
func (d *ExportDir) WriteFile(ctx context.Context, key string, data []byte) (string, error) {
	if d == nil {
		return "", errors.New("storage: no export directory configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}

	fullPath := filepath.Join(d.root, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write export: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("storage: finalize export: %w", err)
	}
	return cleanKey, nil
}

// sanitizeKey normalizes a key and prevents escaping the export root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
