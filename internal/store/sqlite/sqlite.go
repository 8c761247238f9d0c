package sqlite

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/loykin/curator/internal/store"
	"github.com/loykin/curator/internal/store/sqlstore"
)

// New opens a SQLite database (modernc.org/sqlite driver, CGO-free) at
// path. Use ":memory:" for an in-memory database.
func New(path string) (*sqlstore.DB, error) {
	return NewWithConfig(store.Config{Type: "sqlite", Path: path})
}

// NewWithConfig opens cfg.Path with the pool settings of cfg. SQLite has a
// single writer, so the pool defaults to one connection.
func NewWithConfig(cfg store.Config) (*sqlstore.DB, error) {
	p := strings.TrimSpace(cfg.Path)
	if p == "" {
		return nil, errors.New("empty sqlite path")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}
	if err := ensureDir(p); err != nil {
		return nil, err
	}
	return sqlstore.Open("sqlite", dsn(p), sqlstore.SQLite, cfg)
}

// dsn adds a busy timeout so short lock waits do not surface as errors.
func dsn(path string) string {
	if path == ":memory:" || strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(3000)&_pragma=foreign_keys(1)"
}

// ensureDir creates the parent directory of a database file.
func ensureDir(path string) error {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return nil
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create sqlite directory: %w", err)
	}
	return nil
}
