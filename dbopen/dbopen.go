// Package dbopen opens the SQLite database behind the settings store.
//
// Pragmas travel in the DSN as _pragma query parameters, so the driver
// applies them to every connection the pool opens, not only the first:
//
//	journal_mode(WAL)
//	busy_timeout(10000)
//	synchronous(NORMAL)
//
// The caller blank-imports the driver (or registers a wrapper such as
// sqltrace) and may pass WithDriver to select it.
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

const memoryPath = ":memory:"

type config struct {
	driver      string
	busyTimeout int
	synchronous string
	mkdirAll    bool
	schemas     []string
}

func (c *config) pragmas() []string {
	return []string{
		"busy_timeout(" + strconv.Itoa(c.busyTimeout) + ")",
		"synchronous(" + c.synchronous + ")",
		"journal_mode(WAL)",
	}
}

// Option customises Open.
type Option func(*config)

// WithDriver selects the database/sql driver. Default "sqlite".
func WithDriver(name string) Option { return func(c *config) { c.driver = name } }

// WithBusyTimeout sets busy_timeout in milliseconds.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithSynchronous sets the synchronous pragma (OFF, NORMAL, FULL, EXTRA).
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMkdirAll creates missing parent directories of the database file.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema adds DDL run once after the database is reachable.
func WithSchema(ddl string) Option { return func(c *config) { c.schemas = append(c.schemas, ddl) } }

// DSN returns the driver name for path with the pragma parameters attached.
func DSN(path string, opts ...Option) string {
	c := build(opts)
	return dsn(path, &c)
}

func build(opts []Option) config {
	c := config{driver: "sqlite", busyTimeout: 10_000, synchronous: "NORMAL"}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func dsn(path string, c *config) string {
	q := make(url.Values)
	for _, p := range c.pragmas() {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// Open opens the database at path, checks it answers and applies the
// queued schemas.
func Open(path string, opts ...Option) (*sql.DB, error) {
	c := build(opts)
	if c.mkdirAll && path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open(c.driver, dsn(path, &c))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping %s: %w", path, err)
	}
	for i, ddl := range c.schemas {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: schema %d: %w", i, err)
		}
	}
	return db, nil
}

// OpenMemory returns a private in-memory database closed at test cleanup.
// The pool is held to one connection since each ":memory:" connection would
// otherwise see its own empty database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memoryPath, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
