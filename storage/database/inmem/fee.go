package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/playmate/core/fee"
)

type feeRepository struct {
	db *feeTable
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db.fee}
}

func copyLedger(l fee.Ledger) fee.Ledger {
	months := make(map[string]fee.MonthFee, len(l.Months))
	for m, mf := range l.Months {
		if mf.Amount != nil {
			amount := *mf.Amount
			mf.Amount = &amount
		}
		months[m] = mf
	}
	l.Months = months
	return l
}

func (repo *feeRepository) GetLedger(_ context.Context, year int, studentID string) (fee.Ledger, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if l, ok := repo.db.table[feeKey{year, studentID}]; ok {
		return copyLedger(*l), nil
	}
	return fee.Ledger{}, fee.ErrNotFound
}

func (repo *feeRepository) CreateLedger(_ context.Context, l fee.Ledger) (fee.Ledger, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := feeKey{l.Year, l.StudentID}
	if existing, ok := repo.db.table[key]; ok {
		return copyLedger(*existing), nil
	}
	l = copyLedger(l)
	repo.db.table[key] = &l
	return copyLedger(l), nil
}

func (repo *feeRepository) QueryLedgers(_ context.Context, year int) ([]fee.Ledger, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ledgers := make([]fee.Ledger, 0)
	for key, l := range repo.db.table {
		if key.year == year {
			ledgers = append(ledgers, copyLedger(*l))
		}
	}
	sort.Slice(ledgers, func(i, j int) bool { return ledgers[i].StudentID < ledgers[j].StudentID })
	return ledgers, nil
}

func (repo *feeRepository) UpdateMonth(_ context.Context, year int, studentID, month string, fn func(*fee.MonthFee) error) (fee.Ledger, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	l, ok := repo.db.table[feeKey{year, studentID}]
	if !ok {
		return fee.Ledger{}, fee.ErrNotFound
	}
	updated := copyLedger(*l)
	mf := updated.Month(month)
	if err := fn(&mf); err != nil {
		return fee.Ledger{}, err
	}
	updated.Months[month] = mf
	updated.UpdatedAt = fee.NowFunc().UTC()
	repo.db.table[feeKey{year, studentID}] = &updated
	return copyLedger(updated), nil
}
