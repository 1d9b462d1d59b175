// Package sqltrace provides transparent SQL tracing for modernc.org/sqlite.
//
// It registers a "sqlite-trace" driver that wraps the standard "sqlite"
// driver and logs every Exec and Query through slog with adaptive levels:
// Debug, Warn above SlowQuery, Error on failure. Trace and session IDs are
// read from the context (kit) so store accesses correlate with the HTTP
// request or annotator session that caused them.
//
//	import _ "github.com/hazyhaar/whichsocial/sqltrace"
//	db, err := dbopen.Open(path, dbopen.WithDriver(sqltrace.DriverName))
package sqltrace

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	sqlite "modernc.org/sqlite"

	"github.com/hazyhaar/whichsocial/kit"
)

// DriverName is the database/sql name of the tracing driver.
const DriverName = "sqlite-trace"

// SlowQuery is the duration above which a statement is logged at Warn.
const SlowQuery = 100 * time.Millisecond

var logger atomic.Pointer[slog.Logger]

// SetLogger sets the logger statements are written to. nil restores
// slog.Default().
func SetLogger(l *slog.Logger) { logger.Store(l) }

func log() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

func init() {
	sql.Register(DriverName, &Driver{Driver: &sqlite.Driver{}})
}

// Driver wraps a driver.Driver, tracing the statements of every connection.
type Driver struct {
	driver.Driver
}

func (d *Driver) Open(name string) (driver.Conn, error) {
	c, err := d.Driver.Open(name)
	if err != nil {
		return nil, err
	}
	return &conn{Conn: c}, nil
}

type conn struct {
	driver.Conn
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	var st driver.Stmt
	var err error
	if pc, ok := c.Conn.(driver.ConnPrepareContext); ok {
		st, err = pc.PrepareContext(ctx, query)
	} else {
		st, err = c.Conn.Prepare(query)
	}
	if err != nil {
		record(ctx, "Prepare", query, 0, err)
		return nil, err
	}
	return &stmt{Stmt: st, query: query}, nil
}

type stmt struct {
	driver.Stmt
	query string
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	var res driver.Result
	var err error
	if ec, ok := s.Stmt.(driver.StmtExecContext); ok {
		res, err = ec.ExecContext(ctx, args)
	} else {
		res, err = s.Stmt.Exec(values(args))
	}
	record(ctx, "Exec", s.query, time.Since(start), err)
	return res, err
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	start := time.Now()
	var rows driver.Rows
	var err error
	if qc, ok := s.Stmt.(driver.StmtQueryContext); ok {
		rows, err = qc.QueryContext(ctx, args)
	} else {
		rows, err = s.Stmt.Query(values(args))
	}
	record(ctx, "Query", s.query, time.Since(start), err)
	return rows, err
}

func record(ctx context.Context, op, query string, d time.Duration, err error) {
	// The settings watcher polls every second; quiet polls are noise.
	if err == nil && d < 10*time.Millisecond && (strings.HasPrefix(query, "PRAGMA ") || strings.Contains(query, "MAX(updated_at)")) {
		return
	}

	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	} else if d > SlowQuery {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("query", strings.Join(strings.Fields(query), " ")),
		slog.Duration("duration", d),
	}
	attrs = append(attrs, kit.Attrs(ctx)...)
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	log().LogAttrs(ctx, level, "sqltrace: statement", attrs...)
}

func values(named []driver.NamedValue) []driver.Value {
	vals := make([]driver.Value, len(named))
	for i, nv := range named {
		vals[i] = nv.Value
	}
	return vals
}
