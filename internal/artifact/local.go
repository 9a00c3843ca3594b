package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local writes artifacts to a directory. The content type is kept in a
// sidecar file next to the document.
type Local struct {
	baseDir string
}

// NewLocal constructs the filesystem backend.
func NewLocal(baseDir string) *Local {
	return &Local{baseDir: baseDir}
}

func (l *Local) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	key = sanitizeKey(key)
	path := filepath.Join(l.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.WriteFile(path+".ctype", []byte(contentType), 0o644); err != nil {
		return "", fmt.Errorf("write content type: %w", err)
	}
	return "local:" + key, nil
}

func (l *Local) Get(_ context.Context, ref string) ([]byte, string, error) {
	key := sanitizeKey(refKey(ref, "local:"))
	path := filepath.Join(l.baseDir, key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("read artifact: %w", err)
	}
	contentType := "application/octet-stream"
	if ct, err := os.ReadFile(path + ".ctype"); err == nil {
		contentType = strings.TrimSpace(string(ct))
	}
	return data, contentType, nil
}

func sanitizeKey(key string) string {
	key = filepath.Clean(key)
	key = strings.TrimPrefix(key, string(filepath.Separator))
	key = strings.TrimPrefix(key, "./")
	return key
}
