package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/attendance"
)

const (
	tableAttendance = "attendance"
	tableWorkingDay = "attendance_today"

	attendanceColumns = "day, student_id, status, in_time, out_time, scans, version"

	lastRolloverKey = "attendance.last_rollover"
)

type entryRow struct {
	Day       string `db:"day"`
	StudentID string `db:"student_id"`
	Status    string `db:"status"`
	InTime    string `db:"in_time"`
	OutTime   string `db:"out_time"`
	Scans     string `db:"scans"` // JSON array of unix millis
	Version   int64  `db:"version"`
}

func newEntryRow(day, studentID string, e attendance.Entry) (entryRow, error) {
	scans := make([]int64, 0, len(e.Scans))
	for _, t := range e.Scans {
		scans = append(scans, toMillis(t))
	}
	data, err := json.Marshal(scans)
	if err != nil {
		return entryRow{}, errors.Wrap(err, "encoding scans")
	}
	return entryRow{
		Day:       day,
		StudentID: studentID,
		Status:    e.Status,
		InTime:    e.InTime,
		OutTime:   e.OutTime,
		Scans:     string(data),
	}, nil
}

func (row entryRow) entry() (attendance.Entry, error) {
	var scans []int64
	if row.Scans != "" {
		if err := json.Unmarshal([]byte(row.Scans), &scans); err != nil {
			return attendance.Entry{}, errors.Wrapf(err, "decoding scans of %s on %s", row.StudentID, row.Day)
		}
	}
	e := attendance.Entry{
		Status:  row.Status,
		InTime:  row.InTime,
		OutTime: row.OutTime,
		Scans:   make([]time.Time, 0, len(scans)),
	}
	if e.Status == "" {
		e.Status = attendance.StatusAbsent
	}
	for _, ms := range scans {
		e.Scans = append(e.Scans, fromMillis(ms))
	}
	return e, nil
}

type attendanceRepository struct {
	db core.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db core.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) getEntry(ctx context.Context, exec core.DBExecutor, table, day, studentID string) (entryRow, bool, error) {
	var row entryRow
	q := exec.Rebind(`SELECT ` + attendanceColumns + ` FROM ` + table + ` WHERE day = ? AND student_id = ?`)
	if err := exec.GetContext(ctx, &row, q, day, studentID); err != nil {
		if err == sql.ErrNoRows {
			return entryRow{}, false, nil
		}
		return entryRow{}, false, errors.Wrap(err, "selecting attendance entry")
	}
	return row, true, nil
}

func (repo attendanceRepository) SeedWorkingDay(ctx context.Context, day string, studentIDs []string) (int, error) {
	absent, err := newEntryRow(day, "", attendance.AbsentEntry())
	if err != nil {
		return 0, err
	}

	var seeded int
	err = withTx(ctx, repo.db, func(tx core.DBTransactor) error {
		seeded = 0
		q := tx.Rebind(`INSERT INTO ` + tableWorkingDay + ` (day, student_id, status, in_time, out_time, scans) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (day, student_id) DO NOTHING`)
		for _, id := range studentIDs {
			res, err := tx.ExecContext(ctx, q, day, id, absent.Status, absent.InTime, absent.OutTime, absent.Scans)
			if err != nil {
				return errors.Wrap(err, "seeding working day")
			}
			n, err := res.RowsAffected()
			if err != nil {
				return errors.Wrap(err, "seeding working day")
			}
			seeded += int(n)
		}
		return nil
	})
	return seeded, err
}

func (repo attendanceRepository) ApplyScan(ctx context.Context, day, studentID string, fn func(*attendance.Entry) error) (attendance.Entry, error) {
	var result attendance.Entry
	err := withTx(ctx, repo.db, func(tx core.DBTransactor) error {
		cur, inWorkingDay, err := repo.getEntry(ctx, tx, tableWorkingDay, day, studentID)
		if err != nil {
			return err
		}
		if !inWorkingDay {
			// working copy not seeded yet (e.g. student registered today): resume from the day record
			var found bool
			if cur, found, err = repo.getEntry(ctx, tx, tableAttendance, day, studentID); err != nil {
				return err
			}
			if !found {
				cur = entryRow{Day: day, StudentID: studentID, Status: attendance.StatusAbsent}
			}
		}

		e, err := cur.entry()
		if err != nil {
			return err
		}
		if err = fn(&e); err != nil {
			return err
		}
		next, err := newEntryRow(day, studentID, e)
		if err != nil {
			return err
		}

		if inWorkingDay {
			err = execOne(ctx, tx,
				`UPDATE `+tableWorkingDay+` SET status = ?, in_time = ?, out_time = ?, scans = ?, version = version + 1 WHERE day = ? AND student_id = ? AND version = ?`,
				next.Status, next.InTime, next.OutTime, next.Scans, day, studentID, cur.Version)
		} else {
			err = execOne(ctx, tx,
				`INSERT INTO `+tableWorkingDay+` (day, student_id, status, in_time, out_time, scans) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (day, student_id) DO NOTHING`,
				day, studentID, next.Status, next.InTime, next.OutTime, next.Scans)
		}
		if err != nil {
			if err == core.ErrConflict {
				return err
			}
			return errors.Wrap(err, "storing working day entry")
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(
			`INSERT INTO `+tableAttendance+` (day, student_id, status, in_time, out_time, scans) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (day, student_id) DO UPDATE SET status = excluded.status, in_time = excluded.in_time,
			out_time = excluded.out_time, scans = excluded.scans, version = `+tableAttendance+`.version + 1`),
			day, studentID, next.Status, next.InTime, next.OutTime, next.Scans)
		if err != nil {
			return errors.Wrap(err, "storing attendance entry")
		}

		result = e
		return nil
	})
	if err != nil {
		return attendance.Entry{}, err
	}
	return result, nil
}

func (repo attendanceRepository) queryRecords(ctx context.Context, table, where string, args ...interface{}) ([]attendance.DayRecord, error) {
	var rows []entryRow
	q := repo.db.Rebind(`SELECT ` + attendanceColumns + ` FROM ` + table + ` WHERE ` + where + ` ORDER BY day ASC, student_id ASC`)
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}

	var records []attendance.DayRecord
	for _, row := range rows {
		if len(records) == 0 || records[len(records)-1].Date != row.Day {
			records = append(records, attendance.NewDayRecord(row.Day))
		}
		e, err := row.entry()
		if err != nil {
			return nil, err
		}
		records[len(records)-1].Entries[row.StudentID] = e
	}
	return records, nil
}

func (repo attendanceRepository) getRecord(ctx context.Context, table, day string) (attendance.DayRecord, error) {
	records, err := repo.queryRecords(ctx, table, "day = ?", day)
	if err != nil {
		return attendance.DayRecord{}, err
	}
	if len(records) == 0 {
		return attendance.NewDayRecord(day), nil
	}
	return records[0], nil
}

func (repo attendanceRepository) GetDay(ctx context.Context, day string) (attendance.DayRecord, error) {
	return repo.getRecord(ctx, tableAttendance, day)
}

func (repo attendanceRepository) GetWorkingDay(ctx context.Context, day string) (attendance.DayRecord, error) {
	return repo.getRecord(ctx, tableWorkingDay, day)
}

func (repo attendanceRepository) QueryDays(ctx context.Context, prefix string) ([]attendance.DayRecord, error) {
	records, err := repo.queryRecords(ctx, tableAttendance, "day LIKE ?", prefix+"%")
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []attendance.DayRecord{}
	}
	return records, nil
}

func (repo attendanceRepository) DeleteWorkingDaysExcept(ctx context.Context, day string) (int, error) {
	var deleted int
	err := withTx(ctx, repo.db, func(tx core.DBTransactor) error {
		if err := tx.GetContext(ctx, &deleted,
			tx.Rebind(`SELECT COUNT(DISTINCT day) FROM `+tableWorkingDay+` WHERE day <> ?`), day); err != nil {
			return errors.Wrap(err, "counting working days")
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM `+tableWorkingDay+` WHERE day <> ?`), day); err != nil {
			return errors.Wrap(err, "deleting working days")
		}
		return nil
	})
	return deleted, err
}

func (repo attendanceRepository) LastRollover(ctx context.Context) (string, error) {
	var day string
	q := repo.db.Rebind(`SELECT value FROM system_state WHERE name = ?`)
	if err := repo.db.GetContext(ctx, &day, q, lastRolloverKey); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", errors.Wrap(err, "selecting last rollover")
	}
	return day, nil
}

func (repo attendanceRepository) SetLastRollover(ctx context.Context, day string) error {
	q := repo.db.Rebind(`INSERT INTO system_state (name, value) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET value = excluded.value`)
	if _, err := repo.db.ExecContext(ctx, q, lastRolloverKey, day); err != nil {
		return errors.Wrap(err, "storing last rollover")
	}
	return nil
}
