package firestorerepos

import (
	"context"
	"sort"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/trezcool/playmate/core/fee"
)

// Ledgers live at fees/{year}/students/{id}, one field per month.
type feeRepository struct {
	client *firestore.Client
	loc    *time.Location
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(client *firestore.Client, loc *time.Location) *feeRepository {
	return &feeRepository{client: client, loc: loc}
}

func (repo feeRepository) col(year int) *firestore.CollectionRef {
	return repo.client.Collection(colFees).Doc(strconv.Itoa(year)).Collection(colFeeStudents)
}

func encodeMonth(mf fee.MonthFee) map[string]interface{} {
	var amount interface{}
	if mf.Amount != nil {
		amount = *mf.Amount
	}
	return map[string]interface{}{"status": mf.Status, "amount": amount}
}

func (repo feeRepository) encode(l fee.Ledger) map[string]interface{} {
	data := make(map[string]interface{}, len(fee.Months)+1)
	for _, m := range fee.Months {
		data[m] = encodeMonth(l.Month(m))
	}
	data["updatedAt"] = timeOrNil(l.UpdatedAt)
	return data
}

// decode accepts months stored as {status, amount} maps or as a bare status.
func (repo feeRepository) decode(year int, snap *firestore.DocumentSnapshot) fee.Ledger {
	data := snap.Data()
	l := fee.Ledger{
		Year:      year,
		StudentID: snap.Ref.ID,
		Months:    make(map[string]fee.MonthFee, len(fee.Months)),
		UpdatedAt: getTime(data, "updatedAt", repo.loc),
	}
	for _, m := range fee.Months {
		mf := fee.MonthFee{Status: fee.StatusDue}
		switch v := data[m].(type) {
		case map[string]interface{}:
			if st := getString(v, "status"); st != "" {
				mf.Status = st
			}
			mf.Amount = getAmount(v["amount"])
		case string:
			if v != "" {
				mf.Status = v
			}
		}
		l.Months[m] = mf
	}
	return l
}

func (repo feeRepository) GetLedger(ctx context.Context, year int, studentID string) (fee.Ledger, error) {
	snap, err := repo.col(year).Doc(studentID).Get(ctx)
	found, err := exists(snap, err)
	if err != nil {
		return fee.Ledger{}, errors.Wrap(err, "getting fee ledger")
	}
	if !found {
		return fee.Ledger{}, fee.ErrNotFound
	}
	return repo.decode(year, snap), nil
}

func (repo feeRepository) CreateLedger(ctx context.Context, l fee.Ledger) (fee.Ledger, error) {
	ref := repo.col(l.Year).Doc(l.StudentID)
	stored := l
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		found, err := exists(snap, err)
		if err != nil {
			return err
		}
		if found {
			stored = repo.decode(l.Year, snap)
			return nil
		}
		stored = l
		return tx.Create(ref, repo.encode(l))
	})
	if err != nil {
		return fee.Ledger{}, errors.Wrap(err, "creating fee ledger")
	}
	return stored, nil
}

func (repo feeRepository) QueryLedgers(ctx context.Context, year int) ([]fee.Ledger, error) {
	ledgers := make([]fee.Ledger, 0)
	iter := repo.col(year).Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "listing fee ledgers")
		}
		ledgers = append(ledgers, repo.decode(year, snap))
	}
	sort.Slice(ledgers, func(i, j int) bool { return ledgers[i].StudentID < ledgers[j].StudentID })
	return ledgers, nil
}

// UpdateMonth rewrites the whole month map, so status and amount are never merged separately.
func (repo feeRepository) UpdateMonth(ctx context.Context, year int, studentID, month string, fn func(*fee.MonthFee) error) (fee.Ledger, error) {
	ref := repo.col(year).Doc(studentID)
	var (
		updated fee.Ledger
		fnErr   error
	)
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		fnErr = nil
		snap, err := tx.Get(ref)
		found, err := exists(snap, err)
		if err != nil {
			return err
		}
		if !found {
			fnErr = fee.ErrNotFound
			return fnErr
		}

		l := repo.decode(year, snap)
		mf := l.Month(month)
		if err := fn(&mf); err != nil {
			fnErr = err
			return err
		}
		l.Months[month] = mf
		l.UpdatedAt = fee.NowFunc().UTC()
		updated = l
		return tx.Set(ref, map[string]interface{}{
			month:       encodeMonth(mf),
			"updatedAt": l.UpdatedAt,
		}, firestore.MergeAll)
	})
	if fnErr != nil {
		return fee.Ledger{}, fnErr
	}
	if err != nil {
		return fee.Ledger{}, errors.Wrap(err, "updating fee month")
	}
	return updated, nil
}
