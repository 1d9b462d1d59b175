package store

import (
	"context"
	"database/sql"
	"log/slog"
	"sync/atomic"
	"time"
)

// Detector reads a version token from the database. Two different values
// mean the settings changed in between.
type Detector func(ctx context.Context, db *sql.DB) (int64, error)

// KVVersion derives a version from the kv table: the latest write time,
// shifted, plus the row count so that deletes register too.
func KVVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var latest, rows int64
	err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(updated_at), 0), COUNT(*) FROM kv`).Scan(&latest, &rows)
	return latest<<10 | rows&1023, err
}

// WatchOptions tunes a Watcher.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action fires.
	// Further changes during the window restart it. 0 fires immediately.
	Debounce time.Duration
	// Detector overrides KVVersion.
	Detector Detector
	Logger   *slog.Logger
}

func (o *WatchOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = KVVersion
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls an SQLite store and runs an action when its content changes,
// whichever process wrote it.
type Watcher struct {
	db      *sql.DB
	opts    WatchOptions
	version atomic.Int64
	reloads atomic.Int64
}

// NewWatcher returns a Watcher over s. Call OnChange to start it.
func NewWatcher(s *SQLite, opts WatchOptions) *Watcher {
	opts.defaults()
	return &Watcher{db: s.db, opts: opts}
}

// Version returns the last version an action succeeded for.
func (w *Watcher) Version() int64 { return w.version.Load() }

// Reloads returns the number of successful actions.
func (w *Watcher) Reloads() int64 { return w.reloads.Load() }

// OnChange blocks until ctx is cancelled. A failed action leaves the version
// unchanged, so the next poll retries it.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	if v, err := w.opts.Detector(ctx, w.db); err != nil {
		log.Warn("store: initial version check", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceC <-chan time.Time
	pending := int64(-1)

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case <-ticker.C:
			cur, err := w.opts.Detector(ctx, w.db)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("store: version check", "error", err)
				}
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(action, pending)
				pending = -1
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.opts.Debounce)
			debounceC = debounce.C
			log.Debug("store: change detected, debouncing", "version", cur)

		case <-debounceC:
			debounceC = nil
			if pending >= 0 {
				w.fire(action, pending)
				pending = -1
			}
		}
	}
}

func (w *Watcher) fire(action func() error, v int64) {
	if err := action(); err != nil {
		w.opts.Logger.Error("store: change action failed", "version", v, "error", err)
		return
	}
	w.reloads.Add(1)
	w.version.Store(v)
	w.opts.Logger.Info("store: settings changed", "version", v)
}
