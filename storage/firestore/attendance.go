package firestorerepos

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/attendance"
)

// Day documents map student ids to {status, inTime, outTime, scans}.
type attendanceRepository struct {
	client *firestore.Client
	loc    *time.Location
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

// NewAttendanceRepository reads legacy "HH:MM" scans as times of the day in loc.
func NewAttendanceRepository(client *firestore.Client, loc *time.Location) *attendanceRepository {
	return &attendanceRepository{client: client, loc: loc}
}

func encodeEntry(e attendance.Entry) map[string]interface{} {
	scans := make([]time.Time, 0, len(e.Scans))
	for _, t := range e.Scans {
		scans = append(scans, t.UTC())
	}
	return map[string]interface{}{
		"status":  e.Status,
		"inTime":  e.InTime,
		"outTime": e.OutTime,
		"scans":   scans,
	}
}

func (repo attendanceRepository) decodeEntry(data map[string]interface{}, day string) attendance.Entry {
	e := attendance.AbsentEntry()
	if st := getString(data, "status"); st != "" {
		e.Status = st
	}
	e.InTime = getString(data, "inTime")
	e.OutTime = getString(data, "outTime")

	scans, _ := data["scans"].([]interface{})
	for _, scan := range scans {
		switch v := scan.(type) {
		case time.Time:
			e.Scans = append(e.Scans, v.UTC())
		case string:
			t, err := time.ParseInLocation(core.DateLayout+" "+attendance.TimeLayout, day+" "+v, repo.loc)
			if err == nil {
				e.Scans = append(e.Scans, t.UTC())
			}
		}
	}
	return e
}

func (repo attendanceRepository) decodeRecord(snap *firestore.DocumentSnapshot) attendance.DayRecord {
	rec := attendance.NewDayRecord(snap.Ref.ID)
	for id, v := range snap.Data() {
		if data, ok := v.(map[string]interface{}); ok {
			rec.Entries[id] = repo.decodeEntry(data, rec.Date)
		}
	}
	return rec
}

func (repo attendanceRepository) SeedWorkingDay(ctx context.Context, day string, studentIDs []string) (int, error) {
	ref := repo.client.Collection(colWorkingDays).Doc(day)
	var seeded int
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		seeded = 0
		snap, err := tx.Get(ref)
		found, err := exists(snap, err)
		if err != nil {
			return err
		}
		var current map[string]interface{}
		if found {
			current = snap.Data()
		}

		absent := encodeEntry(attendance.AbsentEntry())
		missing := make(map[string]interface{})
		for _, id := range studentIDs {
			if _, ok := current[id]; !ok {
				missing[id] = absent
			}
		}
		if len(missing) == 0 {
			return nil
		}
		seeded = len(missing)
		return tx.Set(ref, missing, firestore.MergeAll)
	})
	if err != nil {
		return 0, errors.Wrap(err, "seeding working day")
	}
	return seeded, nil
}

func (repo attendanceRepository) ApplyScan(ctx context.Context, day, studentID string, fn func(*attendance.Entry) error) (attendance.Entry, error) {
	workingRef := repo.client.Collection(colWorkingDays).Doc(day)
	dayRef := repo.client.Collection(colAttendance).Doc(day)

	var (
		result attendance.Entry
		fnErr  error
	)
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		fnErr = nil
		e := attendance.AbsentEntry()
		loaded := false
		for _, ref := range []*firestore.DocumentRef{workingRef, dayRef} {
			snap, err := tx.Get(ref)
			found, err := exists(snap, err)
			if err != nil {
				return err
			}
			if !found || loaded {
				continue
			}
			if data, ok := snap.Data()[studentID].(map[string]interface{}); ok {
				e = repo.decodeEntry(data, day)
				loaded = true
			}
		}

		if err := fn(&e); err != nil {
			fnErr = err
			return err
		}

		update := map[string]interface{}{studentID: encodeEntry(e)}
		if err := tx.Set(workingRef, update, firestore.MergeAll); err != nil {
			return err
		}
		result = e
		return tx.Set(dayRef, update, firestore.MergeAll)
	})
	if fnErr != nil {
		return attendance.Entry{}, fnErr
	}
	if err != nil {
		return attendance.Entry{}, errors.Wrap(err, "applying scan")
	}
	return result, nil
}

func (repo attendanceRepository) getRecord(ctx context.Context, col, day string) (attendance.DayRecord, error) {
	snap, err := repo.client.Collection(col).Doc(day).Get(ctx)
	found, err := exists(snap, err)
	if err != nil {
		return attendance.DayRecord{}, errors.Wrap(err, "getting attendance")
	}
	if !found {
		return attendance.NewDayRecord(day), nil
	}
	return repo.decodeRecord(snap), nil
}

func (repo attendanceRepository) GetDay(ctx context.Context, day string) (attendance.DayRecord, error) {
	return repo.getRecord(ctx, colAttendance, day)
}

func (repo attendanceRepository) GetWorkingDay(ctx context.Context, day string) (attendance.DayRecord, error) {
	return repo.getRecord(ctx, colWorkingDays, day)
}

// QueryDays runs a document id range query, so only the month's documents are read.
func (repo attendanceRepository) QueryDays(ctx context.Context, prefix string) ([]attendance.DayRecord, error) {
	col := repo.client.Collection(colAttendance)
	iter := col.
		Where(firestore.DocumentID, ">=", col.Doc(prefix)).
		Where(firestore.DocumentID, "<", col.Doc(prefix+"\uf8ff")).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	records := make([]attendance.DayRecord, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "querying attendance")
		}
		records = append(records, repo.decodeRecord(snap))
	}
	return records, nil
}

func (repo attendanceRepository) DeleteWorkingDaysExcept(ctx context.Context, day string) (int, error) {
	refs, err := repo.client.Collection(colWorkingDays).DocumentRefs(ctx).GetAll()
	if err != nil {
		return 0, errors.Wrap(err, "listing working days")
	}
	var deleted int
	for _, ref := range refs {
		if ref.ID == day {
			continue
		}
		if _, err := ref.Delete(ctx); err != nil {
			return deleted, errors.Wrapf(err, "deleting working day %s", ref.ID)
		}
		deleted++
	}
	return deleted, nil
}

func (repo attendanceRepository) LastRollover(ctx context.Context) (string, error) {
	snap, err := repo.client.Collection(colSystem).Doc(docCleanup).Get(ctx)
	found, err := exists(snap, err)
	if err != nil {
		return "", errors.Wrap(err, "getting cleanup marker")
	}
	if !found {
		return "", nil
	}
	return getString(snap.Data(), "lastRun"), nil
}

func (repo attendanceRepository) SetLastRollover(ctx context.Context, day string) error {
	_, err := repo.client.Collection(colSystem).Doc(docCleanup).Set(ctx, map[string]interface{}{
		"lastRun":   day,
		"updatedAt": time.Now().UTC(),
	}, firestore.MergeAll)
	return errors.Wrap(err, "setting cleanup marker")
}
