// Package repotest checks that a storage backend honours the repository contracts.
package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/account"
	"github.com/trezcool/playmate/core/attendance"
	"github.com/trezcool/playmate/core/fee"
	"github.com/trezcool/playmate/core/student"
)

func ms(t time.Time) time.Time { return t.UTC().Truncate(time.Millisecond) }

func Accounts(t *testing.T, repo account.Repository) {
	ctx := context.Background()
	now := ms(time.Now())

	admin := account.Account{ID: "admin", Name: "Admin", Role: account.RoleAdmin, IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, admin.SetPassword("s3cret-pass"))
	coach := account.Account{ID: "coach", Name: "Coach Lee", Role: account.RoleCoach, IsActive: false, CreatedAt: now, UpdatedAt: now}

	_, err := repo.CreateAccount(ctx, admin)
	require.NoError(t, err)
	_, err = repo.CreateAccount(ctx, coach)
	require.NoError(t, err)

	_, err = repo.CreateAccount(ctx, admin)
	assert.Equal(t, account.ErrExists, err)

	got, err := repo.GetAccount(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "Admin", got.Name)
	assert.True(t, got.IsActive)
	assert.NoError(t, got.CheckPassword("s3cret-pass"))
	assert.True(t, got.LastLogin.IsZero())

	_, err = repo.GetAccount(ctx, "nobody")
	assert.Equal(t, account.ErrNotFound, err)

	active := true
	tests := []struct {
		name    string
		filter  account.QueryFilter
		wantIDs []string
	}{
		{name: "all", wantIDs: []string{"admin", "coach"}},
		{name: "search", filter: account.QueryFilter{Search: "lee"}, wantIDs: []string{"coach"}},
		{name: "search underscore", filter: account.QueryFilter{Search: "_"}, wantIDs: []string{}},
		{name: "role", filter: account.QueryFilter{Role: account.RoleAdmin}, wantIDs: []string{"admin"}},
		{name: "active", filter: account.QueryFilter{IsActive: &active}, wantIDs: []string{"admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accs, err := repo.QueryAccounts(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(accs))
			for _, acc := range accs {
				ids = append(ids, acc.ID)
			}
			assert.ElementsMatch(t, tt.wantIDs, ids)
		})
	}

	got.LastLogin = ms(now.Add(time.Minute))
	got.Name = "Head Admin"
	updated, err := repo.UpdateAccount(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Head Admin", updated.Name)
	assert.True(t, got.LastLogin.Equal(updated.LastLogin))

	_, err = repo.UpdateAccount(ctx, account.Account{ID: "ghost"})
	assert.Equal(t, account.ErrNotFound, err)
}

func Students(t *testing.T, repo student.Repository) {
	ctx := context.Background()
	now := ms(time.Now())

	for _, s := range []student.Student{
		{ID: "PM003", Name: "Chloe", Belt: "Yellow", Gender: "Female", CreatedAt: now, UpdatedAt: now},
		{ID: "PM001", Name: "arjun", Belt: "White", Gender: "Male", Phone: "9876543210", CreatedAt: now, UpdatedAt: now},
		{ID: "PM002", Name: "Bela", Belt: "white", Gender: "Female", CreatedAt: now, UpdatedAt: now.Add(time.Hour)},
	} {
		_, err := repo.CreateStudent(ctx, s)
		require.NoError(t, err)
	}
	_, err := repo.CreateStudent(ctx, student.Student{ID: "PM001", Name: "Dup"})
	assert.Equal(t, student.ErrExists, err)

	got, err := repo.GetStudent(ctx, "PM001")
	require.NoError(t, err)
	assert.Equal(t, "9876543210", got.Phone)
	assert.True(t, now.Equal(got.CreatedAt))

	_, err = repo.GetStudent(ctx, "PM999")
	assert.Equal(t, student.ErrNotFound, err)

	tests := []struct {
		name      string
		filter    student.QueryFilter
		orderings []core.DBOrdering
		wantIDs   []string
	}{
		{name: "default ordering", wantIDs: []string{"PM001", "PM002", "PM003"}},
		{name: "search id", filter: student.QueryFilter{Search: "pm00"}, wantIDs: []string{"PM001", "PM002", "PM003"}},
		{name: "search name", filter: student.QueryFilter{Search: "chl"}, wantIDs: []string{"PM003"}},
		{name: "search underscore", filter: student.QueryFilter{Search: "_"}, wantIDs: []string{}},
		{name: "search percent", filter: student.QueryFilter{Search: "%"}, wantIDs: []string{}},
		{name: "search backslash", filter: student.QueryFilter{Search: `\`}, wantIDs: []string{}},
		{name: "belt", filter: student.QueryFilter{Belt: "White"}, wantIDs: []string{"PM001", "PM002"}},
		{name: "gender", filter: student.QueryFilter{Gender: "Female"}, wantIDs: []string{"PM002", "PM003"}},
		{
			name: "name desc", orderings: []core.DBOrdering{{Field: "name"}},
			wantIDs: []string{"PM003", "PM002", "PM001"},
		},
		{
			name: "updated_at desc", orderings: []core.DBOrdering{{Field: "updated_at"}},
			wantIDs: []string{"PM002", "PM001", "PM003"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			students, err := repo.QueryStudents(ctx, tt.filter, tt.orderings...)
			require.NoError(t, err)
			ids := make([]string, 0, len(students))
			for _, s := range students {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	got.Belt = "Orange"
	updated, err := repo.UpdateStudent(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, "Orange", updated.Belt)

	_, err = repo.UpdateStudent(ctx, student.Student{ID: "PM999"})
	assert.Equal(t, student.ErrNotFound, err)
}

func Attendance(t *testing.T, repo attendance.Repository) {
	ctx := context.Background()
	const (
		yesterday = "2024-03-04"
		today     = "2024-03-05"
	)
	at := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	scan := func(when time.Time) func(*attendance.Entry) error {
		return func(e *attendance.Entry) error {
			_, err := e.Apply(when, time.Hour)
			return err
		}
	}

	seeded, err := repo.SeedWorkingDay(ctx, yesterday, []string{"PM001"})
	require.NoError(t, err)
	assert.Equal(t, 1, seeded)

	seeded, err = repo.SeedWorkingDay(ctx, today, []string{"PM001", "PM002"})
	require.NoError(t, err)
	assert.Equal(t, 2, seeded)

	working, err := repo.GetWorkingDay(ctx, today)
	require.NoError(t, err)
	assert.Len(t, working.Entries, 2)
	assert.Equal(t, attendance.StatusAbsent, working.Entries["PM001"].Status)

	// IN
	e, err := repo.ApplyScan(ctx, today, "PM001", scan(at))
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, e.Status)
	assert.Equal(t, "09:30", e.InTime)

	// seeding again keeps the existing entries
	seeded, err = repo.SeedWorkingDay(ctx, today, []string{"PM001", "PM002", "PM003"})
	require.NoError(t, err)
	assert.Equal(t, 1, seeded)

	// too soon: nothing stored
	_, err = repo.ApplyScan(ctx, today, "PM001", scan(at.Add(10*time.Minute)))
	assert.True(t, attendance.IsScanError(err, attendance.CodeTooSoon))

	// OUT
	e, err = repo.ApplyScan(ctx, today, "PM001", scan(at.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "11:30", e.OutTime)
	assert.Len(t, e.Scans, 2)

	// the returned entry does not alias the stored ones
	e.Scans[0] = at.Add(-time.Hour)
	e.OutTime = "00:00"
	working, err = repo.GetWorkingDay(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, "11:30", working.Entries["PM001"].OutTime)
	assert.True(t, at.Equal(working.Entries["PM001"].Scans[0]))
	stored, err := repo.GetDay(ctx, today)
	require.NoError(t, err)
	assert.True(t, at.Equal(stored.Entries["PM001"].Scans[0]))

	_, err = repo.ApplyScan(ctx, today, "PM001", scan(at.Add(3*time.Hour)))
	assert.Equal(t, attendance.ErrCompleted, err)

	// student missing from the working copy
	e, err = repo.ApplyScan(ctx, today, "PM004", scan(at))
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, e.Status)

	day, err := repo.GetDay(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, today, day.Date)
	require.Contains(t, day.Entries, "PM001")
	assert.Equal(t, "11:30", day.Entries["PM001"].OutTime)
	assert.True(t, at.Equal(day.Entries["PM001"].Scans[0]))
	assert.Contains(t, day.Entries, "PM004")

	empty, err := repo.GetDay(ctx, "2024-02-01")
	require.NoError(t, err)
	assert.Empty(t, empty.Entries)

	days, err := repo.QueryDays(ctx, "2024-03-")
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, today, days[0].Date)

	deleted, err := repo.DeleteWorkingDaysExcept(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	old, err := repo.GetWorkingDay(ctx, yesterday)
	require.NoError(t, err)
	assert.Empty(t, old.Entries)

	last, err := repo.LastRollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", last)
	require.NoError(t, repo.SetLastRollover(ctx, yesterday))
	require.NoError(t, repo.SetLastRollover(ctx, today))
	last, err = repo.LastRollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, today, last)
}

// ConcurrentScans checks that simultaneous scans of one student record a single IN.
func ConcurrentScans(t *testing.T, repo attendance.Repository) {
	ctx := context.Background()
	const today = "2024-03-06"
	at := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

	_, err := repo.SeedWorkingDay(ctx, today, []string{"PM001"})
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ins     int
		tooSoon int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.ApplyScan(ctx, today, "PM001", func(e *attendance.Entry) error {
				_, err := e.Apply(at, time.Hour)
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ins++
			case attendance.IsScanError(err, attendance.CodeTooSoon):
				tooSoon++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ins)
	assert.Equal(t, 3, tooSoon)
	day, err := repo.GetDay(ctx, today)
	require.NoError(t, err)
	assert.Len(t, day.Entries["PM001"].Scans, 1)
}

func Fees(t *testing.T, repo fee.Repository) {
	ctx := context.Background()
	now := ms(time.Now())

	_, err := repo.GetLedger(ctx, 2024, "PM001")
	assert.Equal(t, fee.ErrNotFound, err)

	_, err = repo.UpdateMonth(ctx, 2024, "PM001", "Jan", func(*fee.MonthFee) error { return nil })
	assert.Equal(t, fee.ErrNotFound, err)

	nl := fee.NewLedger(2024, "PM001")
	nl.UpdatedAt = now
	l, err := repo.CreateLedger(ctx, nl)
	require.NoError(t, err)
	assert.Len(t, l.Months, 12)
	assert.Equal(t, fee.StatusDue, l.Month("Mar").Status)

	amount := 1500.0
	l, err = repo.UpdateMonth(ctx, 2024, "PM001", "Mar", func(mf *fee.MonthFee) error {
		mf.Status = fee.StatusPaid
		mf.Amount = &amount
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, l.Month("Mar").Status)
	require.NotNil(t, l.Month("Mar").Amount)
	assert.Equal(t, 1500.0, *l.Month("Mar").Amount)

	// creating again keeps the stored ledger
	l, err = repo.CreateLedger(ctx, nl)
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, l.Month("Mar").Status)

	nl2 := fee.NewLedger(2024, "PM000")
	nl2.UpdatedAt = now
	_, err = repo.CreateLedger(ctx, nl2)
	require.NoError(t, err)
	nl3 := fee.NewLedger(2023, "PM001")
	nl3.UpdatedAt = now
	_, err = repo.CreateLedger(ctx, nl3)
	require.NoError(t, err)

	ledgers, err := repo.QueryLedgers(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, ledgers, 2)
	assert.Equal(t, "PM000", ledgers[0].StudentID)
	assert.Equal(t, "PM001", ledgers[1].StudentID)

	got, err := repo.GetLedger(ctx, 2024, "PM001")
	require.NoError(t, err)
	assert.Equal(t, fee.StatusPaid, got.Month("Mar").Status)
	assert.Equal(t, fee.StatusDue, got.Month("Apr").Status)
	assert.Nil(t, got.Month("Apr").Amount)
}
