// Package storagetest opens throwaway SQLite-backed stores for tests.
package storagetest

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/LJTian/GiftNewsHub/internal/storage"
)

func New(t testing.TB) *storage.Store {
	t.Helper()
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "news.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	s, err := storage.Open(dsn, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
