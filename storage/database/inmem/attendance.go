package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/playmate/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTables
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func copyRecord(rec attendance.DayRecord) attendance.DayRecord {
	cp := attendance.NewDayRecord(rec.Date)
	for id, e := range rec.Entries {
		cp.Entries[id] = e.Clone()
	}
	return cp
}

func (repo *attendanceRepository) SeedWorkingDay(_ context.Context, day string, studentIDs []string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.workingDays[day]
	if !ok {
		rec = attendance.NewDayRecord(day)
		repo.db.workingDays[day] = rec
	}
	var seeded int
	for _, id := range studentIDs {
		if _, exists := rec.Entries[id]; !exists {
			rec.Entries[id] = attendance.AbsentEntry()
			seeded++
		}
	}
	return seeded, nil
}

func (repo *attendanceRepository) ApplyScan(_ context.Context, day, studentID string, fn func(*attendance.Entry) error) (attendance.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	entry, ok := repo.db.workingDays[day].Entries[studentID]
	if !ok {
		if entry, ok = repo.db.days[day].Entries[studentID]; !ok {
			entry = attendance.AbsentEntry()
		}
	}
	entry = entry.Clone()

	if err := fn(&entry); err != nil {
		return attendance.Entry{}, err
	}

	for _, tbl := range []map[string]attendance.DayRecord{repo.db.workingDays, repo.db.days} {
		rec, ok := tbl[day]
		if !ok {
			rec = attendance.NewDayRecord(day)
			tbl[day] = rec
		}
		rec.Entries[studentID] = entry.Clone()
	}
	return entry, nil
}

func (repo *attendanceRepository) GetDay(_ context.Context, day string) (attendance.DayRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.days[day]; ok {
		return copyRecord(rec), nil
	}
	return attendance.NewDayRecord(day), nil
}

func (repo *attendanceRepository) GetWorkingDay(_ context.Context, day string) (attendance.DayRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.workingDays[day]; ok {
		return copyRecord(rec), nil
	}
	return attendance.NewDayRecord(day), nil
}

func (repo *attendanceRepository) QueryDays(_ context.Context, prefix string) ([]attendance.DayRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	days := make([]attendance.DayRecord, 0)
	for date, rec := range repo.db.days {
		if strings.HasPrefix(date, prefix) {
			days = append(days, copyRecord(rec))
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days, nil
}

func (repo *attendanceRepository) DeleteWorkingDaysExcept(_ context.Context, day string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var deleted int
	for date := range repo.db.workingDays {
		if date != day {
			delete(repo.db.workingDays, date)
			deleted++
		}
	}
	return deleted, nil
}

func (repo *attendanceRepository) LastRollover(_ context.Context) (string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.lastRollover, nil
}

func (repo *attendanceRepository) SetLastRollover(_ context.Context, day string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	repo.db.lastRollover = day
	return nil
}
