package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/fee"
)

const feeColumns = "year, student_id, month, status, amount, updated_at, version"

// feeRow is one month of a ledger.
type feeRow struct {
	Year      int          `db:"year"`
	StudentID string       `db:"student_id"`
	Month     string       `db:"month"`
	Status    string       `db:"status"`
	Amount    null.Float64 `db:"amount"`
	UpdatedAt int64        `db:"updated_at"`
	Version   int64        `db:"version"`
}

type feeRepository struct {
	db core.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db core.DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo feeRepository) toRow(year int, studentID, month string, mf fee.MonthFee, updatedAt int64) feeRow {
	return feeRow{
		Year:      year,
		StudentID: studentID,
		Month:     month,
		Status:    mf.Status,
		Amount:    null.Float64FromPtr(mf.Amount),
		UpdatedAt: updatedAt,
	}
}

// ledgers groups rows (ordered by student) into ledgers.
func (repo feeRepository) ledgers(rows []feeRow) []fee.Ledger {
	ledgers := make([]fee.Ledger, 0)
	for _, row := range rows {
		if len(ledgers) == 0 || ledgers[len(ledgers)-1].StudentID != row.StudentID {
			ledgers = append(ledgers, fee.Ledger{
				Year:      row.Year,
				StudentID: row.StudentID,
				Months:    make(map[string]fee.MonthFee, len(fee.Months)),
			})
		}
		l := &ledgers[len(ledgers)-1]
		l.Months[row.Month] = fee.MonthFee{Status: row.Status, Amount: row.Amount.Ptr()}
		if updatedAt := fromMillis(row.UpdatedAt); updatedAt.After(l.UpdatedAt) {
			l.UpdatedAt = updatedAt
		}
	}
	return ledgers
}

func (repo feeRepository) selectLedger(ctx context.Context, exec core.DBExecutor, year int, studentID string) ([]feeRow, error) {
	var rows []feeRow
	q := exec.Rebind(`SELECT ` + feeColumns + ` FROM fees WHERE year = ? AND student_id = ?`)
	if err := exec.SelectContext(ctx, &rows, q, year, studentID); err != nil {
		return nil, errors.Wrap(err, "selecting fee ledger")
	}
	return rows, nil
}

func (repo feeRepository) GetLedger(ctx context.Context, year int, studentID string) (fee.Ledger, error) {
	rows, err := repo.selectLedger(ctx, repo.db, year, studentID)
	if err != nil {
		return fee.Ledger{}, err
	}
	if len(rows) == 0 {
		return fee.Ledger{}, fee.ErrNotFound
	}
	return repo.ledgers(rows)[0], nil
}

func (repo feeRepository) CreateLedger(ctx context.Context, l fee.Ledger) (fee.Ledger, error) {
	var stored fee.Ledger
	err := withTx(ctx, repo.db, func(tx core.DBTransactor) error {
		q := tx.Rebind(`INSERT INTO fees (year, student_id, month, status, amount, updated_at) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (year, student_id, month) DO NOTHING`)

		existing, err := repo.selectLedger(ctx, tx, l.Year, l.StudentID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			for _, m := range fee.Months {
				row := repo.toRow(l.Year, l.StudentID, m, l.Month(m), toMillis(l.UpdatedAt))
				if _, err := tx.ExecContext(ctx, q, row.Year, row.StudentID, row.Month, row.Status, row.Amount, row.UpdatedAt); err != nil {
					return errors.Wrap(err, "inserting fee ledger")
				}
			}
			if existing, err = repo.selectLedger(ctx, tx, l.Year, l.StudentID); err != nil {
				return err
			}
		}
		stored = repo.ledgers(existing)[0]
		return nil
	})
	if err != nil {
		return fee.Ledger{}, err
	}
	return stored, nil
}

func (repo feeRepository) QueryLedgers(ctx context.Context, year int) ([]fee.Ledger, error) {
	var rows []feeRow
	q := repo.db.Rebind(`SELECT ` + feeColumns + ` FROM fees WHERE year = ? ORDER BY student_id ASC`)
	if err := repo.db.SelectContext(ctx, &rows, q, year); err != nil {
		return nil, errors.Wrap(err, "selecting fee ledgers")
	}
	return repo.ledgers(rows), nil
}

func (repo feeRepository) UpdateMonth(ctx context.Context, year int, studentID, month string, fn func(*fee.MonthFee) error) (fee.Ledger, error) {
	var updated fee.Ledger
	err := withTx(ctx, repo.db, func(tx core.DBTransactor) error {
		rows, err := repo.selectLedger(ctx, tx, year, studentID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return fee.ErrNotFound
		}

		var cur *feeRow
		for i := range rows {
			if rows[i].Month == month {
				cur = &rows[i]
				break
			}
		}
		l := repo.ledgers(rows)[0]
		mf := l.Month(month)
		if err = fn(&mf); err != nil {
			return err
		}

		now := fee.NowFunc().UTC()
		next := repo.toRow(year, studentID, month, mf, toMillis(now))
		if cur != nil {
			err = execOne(ctx, tx,
				`UPDATE fees SET status = ?, amount = ?, updated_at = ?, version = version + 1 WHERE year = ? AND student_id = ? AND month = ? AND version = ?`,
				next.Status, next.Amount, next.UpdatedAt, year, studentID, month, cur.Version)
		} else {
			err = execOne(ctx, tx,
				`INSERT INTO fees (year, student_id, month, status, amount, updated_at) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (year, student_id, month) DO NOTHING`,
				year, studentID, month, next.Status, next.Amount, next.UpdatedAt)
		}
		if err != nil {
			if err == core.ErrConflict {
				return err
			}
			return errors.Wrap(err, "updating fee month")
		}

		l.Months[month] = mf
		l.UpdatedAt = fromMillis(next.UpdatedAt)
		updated = l
		return nil
	})
	if err != nil {
		return fee.Ledger{}, err
	}
	return updated, nil
}
