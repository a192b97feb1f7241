// Package sqlxrepos implements the repositories on top of database/sql (postgres or sqlite).
// Queries use ? bindvars and are rebound for the driver in use.
package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core"
)

// maxAttempts bounds the retries of a transaction that lost an optimistic version check.
const maxAttempts = 5

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// withTx runs fn in a transaction, starting over when fn returns core.ErrConflict.
func withTx(ctx context.Context, db core.DB, fn func(tx core.DBTransactor) error) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := runTx(ctx, db, fn)
		if errors.Cause(err) != core.ErrConflict {
			return err
		}
	}
	return core.ErrConflict
}

func runTx(ctx context.Context, db core.DB, fn func(tx core.DBTransactor) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// execOne runs an insert/update that must affect exactly one row; core.ErrConflict otherwise.
func execOne(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) error {
	res, err := exec.ExecContext(ctx, exec.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrConflict
	}
	return nil
}
