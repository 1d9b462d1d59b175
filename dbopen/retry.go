package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// SQLite primary result codes for contention.
const (
	codeBusy   = 5
	codeLocked = 6
)

const busyTries = 4

// IsBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, either as a
// driver error carrying a result code or by its message.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() & 0xff {
		case codeBusy, codeLocked:
			return true
		}
	}
	msg := err.Error()
	for _, s := range []string{"SQLITE_BUSY", "database is locked", "database table is locked"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func busyBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}

// Exec runs a statement, retrying while the database reports contention.
// Any other error is returned at once.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	return backoff.Retry(ctx, func() (sql.Result, error) {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil && !IsBusy(err) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	}, backoff.WithBackOff(busyBackOff()), backoff.WithMaxTries(busyTries))
}
