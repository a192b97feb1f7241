package attendance_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/attendance"
	"github.com/trezcool/playmate/core/student"
	emailsvc "github.com/trezcool/playmate/services/email"
	inmemdb "github.com/trezcool/playmate/storage/database/inmem"
	"github.com/trezcool/playmate/testutil"
)

type fixture struct {
	conf        *core.Config
	svc         *attendance.Service
	repo        attendance.Repository
	studentRepo student.Repository
	mailSvc     *emailsvc.ConsoleServiceMock
	now         *time.Time
}

// newFixture returns a service on an in-memory db with the clock stuck at `at` (school-local).
// mods may adjust the config before the service is built.
func newFixture(t *testing.T, at string, mods ...func(*core.Config)) *fixture {
	conf := testutil.NewConfig(t)
	for _, mod := range mods {
		mod(conf)
	}

	db := inmemdb.Open()
	validate, _ := testutil.NewValidator()
	f := &fixture{
		conf:        conf,
		repo:        inmemdb.NewAttendanceRepository(db),
		studentRepo: inmemdb.NewStudentRepository(db),
		mailSvc:     emailsvc.NewConsoleServiceMock(conf),
	}
	roster := student.NewService(f.studentRepo, validate, core.NewNopLogger())
	f.svc = attendance.NewService(f.repo, roster, f.mailSvc, core.NewNopLogger(), conf)

	now, err := time.ParseInLocation("2006-01-02 15:04", at, conf.Location())
	require.NoError(t, err)
	f.now = &now
	orig := attendance.NowFunc
	attendance.NowFunc = func() time.Time { return *f.now }
	t.Cleanup(func() { attendance.NowFunc = orig })
	return f
}

func (f *fixture) advance(d time.Duration) { *f.now = f.now.Add(d) }

func (f *fixture) set(t *testing.T, at string) {
	now, err := time.ParseInLocation("2006-01-02 15:04", at, f.conf.Location())
	require.NoError(t, err)
	*f.now = now
}

func TestEntry_Apply(t *testing.T) {
	at := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		scans       []time.Time
		minInterval time.Duration
		wantKind    attendance.ScanKind
		wantErr     string
		wantScans   int
	}{
		{name: "first scan", wantKind: attendance.ScanIn, minInterval: time.Hour, wantScans: 1},
		{name: "too soon", scans: []time.Time{at.Add(-59 * time.Minute)}, minInterval: time.Hour, wantErr: "Scan after sixty minutes", wantScans: 1},
		{name: "too soon (custom interval)", scans: []time.Time{at.Add(-10 * time.Minute)}, minInterval: 30 * time.Minute, wantErr: "Scan after 30 minutes", wantScans: 1},
		{name: "out after exactly the interval", scans: []time.Time{at.Add(-time.Hour)}, minInterval: time.Hour, wantKind: attendance.ScanOut, wantScans: 2},
		{name: "completed", scans: []time.Time{at.Add(-3 * time.Hour), at.Add(-time.Hour)}, minInterval: time.Hour, wantErr: "Attendance already done", wantScans: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := attendance.AbsentEntry()
			e.Scans = append(e.Scans, tt.scans...)

			kind, err := e.Apply(at, tt.minInterval)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantKind, kind)
			assert.Len(t, e.Scans, tt.wantScans)

			switch tt.wantKind {
			case attendance.ScanIn:
				assert.Equal(t, attendance.StatusPresent, e.Status)
				assert.Equal(t, "09:00", e.InTime)
			case attendance.ScanOut:
				assert.Equal(t, "09:00", e.OutTime)
			}
		})
	}
}

func TestService_Scan(t *testing.T) {
	f := newFixture(t, "2024-03-11 09:00")
	testutil.CreateStudent(t, f.studentRepo, "PM001", "Arjun Rao")
	ctx := context.Background()

	tests := []struct {
		name     string
		code     string
		after    time.Duration
		wantKind attendance.ScanKind
		wantCode string
	}{
		{name: "empty code", code: " ", wantCode: attendance.CodeInvalidID},
		{name: "unknown student", code: "PM404", wantCode: attendance.CodeInvalidID},
		{name: "in", code: " PM001 ", wantKind: attendance.ScanIn},
		{name: "repeat within the lock window", code: "PM001", after: 2 * time.Second, wantCode: attendance.CodeDuplicate},
		{name: "too soon", code: "PM001", after: 30 * time.Minute, wantCode: attendance.CodeTooSoon},
		{name: "out", code: "PM001", after: 31 * time.Minute, wantKind: attendance.ScanOut},
		{name: "completed", code: "PM001", after: time.Hour, wantCode: attendance.CodeCompleted},
	}
	for _, tt := range tests {
		f.advance(tt.after)

		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.Scan(ctx, tt.code)
			if tt.wantCode != "" {
				assert.True(t, attendance.IsScanError(err, tt.wantCode), "error = %v; want code %s", err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, "PM001", res.StudentID)
			assert.Equal(t, f.now.Format(attendance.TimeLayout), res.Time)
		})
	}

	// the scans landed in both the working copy and the permanent record
	for _, get := range []func(context.Context, string) (attendance.DayRecord, error){f.repo.GetDay, f.repo.GetWorkingDay} {
		rec, err := get(ctx, "2024-03-11")
		require.NoError(t, err)
		e := rec.Entries["PM001"]
		assert.Equal(t, "09:00", e.InTime)
		assert.Equal(t, "10:01", e.OutTime)
	}
}

func TestService_Scan_concurrent(t *testing.T) {
	f := newFixture(t, "2024-03-11 09:00", func(conf *core.Config) { conf.Attendance.ScanLockWindow = 0 })
	testutil.CreateStudent(t, f.studentRepo, "PM001", "Arjun Rao")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ins     int
		tooSoon int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Scan(context.Background(), "PM001")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && res.Kind == attendance.ScanIn:
				ins++
			case attendance.IsScanError(err, attendance.CodeTooSoon):
				tooSoon++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ins)
	assert.Equal(t, 9, tooSoon)
}

func TestService_reports(t *testing.T) {
	f := newFixture(t, "2024-03-11 18:00")
	testutil.CreateStudent(t, f.studentRepo, "PM001", "Arjun Rao")
	testutil.CreateStudent(t, f.studentRepo, "PM002", "Meera Iyer")
	ctx := context.Background()

	scan := func(at, id string) {
		f.set(t, at)
		_, err := f.svc.Scan(ctx, id)
		require.NoError(t, err)
	}
	scan("2024-02-28 09:00", "PM001")
	scan("2024-03-01 09:00", "PM001")
	scan("2024-03-01 09:05", "PM002")
	scan("2024-03-01 10:10", "PM002")
	scan("2024-03-04 17:30", "PM001")
	f.set(t, "2024-03-11 18:00")

	t.Run("day", func(t *testing.T) {
		rep, err := f.svc.Day(ctx, " 2024-03-01 ")
		require.NoError(t, err)
		assert.Equal(t, attendance.DayReport{
			Date:    "2024-03-01",
			Present: 2,
			Rows: []attendance.DayRow{
				{StudentID: "PM001", Name: "Arjun Rao", InTime: "09:00", OutTime: "-", Status: attendance.StatusPresent},
				{StudentID: "PM002", Name: "Meera Iyer", InTime: "09:05", OutTime: "10:10", Status: attendance.StatusPresent},
			},
		}, rep)
	})
	t.Run("day: invalid dates", func(t *testing.T) {
		for date, wantErr := range map[string]error{
			"2024-02-30": attendance.ErrInvalidDate,
			"01/03/2024": attendance.ErrInvalidDate,
			"2024-03-12": attendance.ErrFutureDate,
		} {
			_, err := f.svc.Day(ctx, date)
			verr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, "%s: error = %v", date, err)
			assert.Equal(t, wantErr, verr.Err, date)
		}
	})
	t.Run("monthly summary", func(t *testing.T) {
		sum, err := f.svc.MonthlySummary(ctx, "2024-03")
		require.NoError(t, err)
		assert.Equal(t, attendance.Summary{
			Month:       "2024-03",
			WorkingDays: 2,
			Rows: []attendance.SummaryRow{
				{StudentID: "PM001", Name: "Arjun Rao", Days: 2},
				{StudentID: "PM002", Name: "Meera Iyer", Days: 1},
			},
		}, sum)

		_, err = f.svc.MonthlySummary(ctx, "2024-13")
		assert.Equal(t, attendance.ErrInvalidMonth, errors.Cause(err).(*core.ValidationError).Err)
	})
	t.Run("summary csv", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := f.svc.ExportSummaryCSV(ctx, "2024-02", &buf)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		rows, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"Student ID", "Name", "Attendance Days"}, {"PM001", "Arjun Rao", "1"}, {"PM002", "Meera Iyer", "0"}}, rows)
		assert.Equal(t, "Monthly-Summary_2024-02.csv", attendance.SummaryCSVFilename(" 2024-02"))
	})
	t.Run("history", func(t *testing.T) {
		items, err := f.svc.History(ctx, "PM001", "")
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, []string{"2024-02-28", "2024-03-01", "2024-03-04"}, []string{items[0].Date, items[1].Date, items[2].Date})

		items, err = f.svc.History(ctx, "PM002", "2024-03")
		require.NoError(t, err)
		assert.Equal(t, []attendance.HistoryItem{{Date: "2024-03-01", Status: attendance.StatusPresent, InTime: "09:05", OutTime: "10:10"}}, items)

		_, err = f.svc.History(ctx, "PM404", "")
		assert.Equal(t, student.ErrNotFound, errors.Cause(err))
	})
}

func TestService_Rollover(t *testing.T) {
	f := newFixture(t, "2024-03-10 00:05", func(conf *core.Config) {
		conf.Attendance.DigestRecipients = []string{"Sensei <sensei@example.com>", "not an address"}
	})
	testutil.CreateStudent(t, f.studentRepo, "PM001", "Arjun Rao")
	testutil.CreateStudent(t, f.studentRepo, "PM002", "Meera Iyer")
	testutil.CreateStudent(t, f.studentRepo, "PM003", "") // half-filled import
	ctx := context.Background()

	res, err := f.svc.Rollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, attendance.RolloverResult{Day: "2024-03-10", Seeded: 2}, res)
	assert.Empty(t, f.mailSvc.SentMessages(), "no digest on the first run")

	res, err = f.svc.Rollover(ctx)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	f.set(t, "2024-03-10 09:00")
	_, err = f.svc.Scan(ctx, "PM001")
	require.NoError(t, err)

	today, err := f.svc.Today(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, today.Present)

	// next day
	f.set(t, "2024-03-11 00:05")
	res, err = f.svc.Rollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, attendance.RolloverResult{Day: "2024-03-11", Deleted: 1, Seeded: 2}, res)

	stale, err := f.repo.GetWorkingDay(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.Empty(t, stale.Entries)
	kept, err := f.repo.GetDay(ctx, "2024-03-10")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusPresent, kept.Entries["PM001"].Status)

	working, err := f.repo.GetWorkingDay(ctx, "2024-03-11")
	require.NoError(t, err)
	assert.Len(t, working.Entries, 2)
	assert.Equal(t, attendance.StatusAbsent, working.Entries["PM002"].Status)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	require.Len(t, msg.To, 1)
	assert.Equal(t, "sensei@example.com", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "Present: 1")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "Attendance_2024-03-10.csv", msg.Attachments[0].Filename)

	content, err := base64.StdEncoding.DecodeString(msg.Attachments[0].Content.String())
	require.NoError(t, err)
	rows, err := csv.NewReader(bytes.NewReader(content)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"PM001", "Arjun Rao", "09:00", "-", "Present"}, rows[1])
}

func TestService_Rollover_afterOutage(t *testing.T) {
	f := newFixture(t, "2024-03-10 00:05", func(conf *core.Config) {
		conf.Attendance.DigestRecipients = []string{"sensei@example.com"}
	})
	testutil.CreateStudent(t, f.studentRepo, "PM001", "Arjun Rao")
	ctx := context.Background()

	_, err := f.svc.Rollover(ctx)
	require.NoError(t, err)
	f.set(t, "2024-03-10 09:00")
	_, err = f.svc.Scan(ctx, "PM001")
	require.NoError(t, err)

	attachments := func(msgs []core.EmailMessage) []string {
		names := make([]string, 0, len(msgs))
		for _, msg := range msgs {
			require.Len(t, msg.Attachments, 1)
			names = append(names, msg.Attachments[0].Filename)
		}
		return names
	}

	// down for two days
	f.set(t, "2024-03-13 00:05")
	res, err := f.svc.Rollover(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-13", res.Day)

	sent := f.mailSvc.SentMessages()
	assert.Equal(t, []string{
		"Attendance_2024-03-10.csv",
		"Attendance_2024-03-11.csv",
		"Attendance_2024-03-12.csv",
	}, attachments(sent))
	assert.Contains(t, sent[0].TextContent, "Present: 1")
	assert.Contains(t, sent[1].TextContent, "Present: 0")

	// a long outage only reports the last week
	f.set(t, "2024-03-30 00:05")
	_, err = f.svc.Rollover(ctx)
	require.NoError(t, err)

	sent = f.mailSvc.SentMessages()[3:]
	assert.Equal(t, []string{
		"Attendance_2024-03-23.csv",
		"Attendance_2024-03-24.csv",
		"Attendance_2024-03-25.csv",
		"Attendance_2024-03-26.csv",
		"Attendance_2024-03-27.csv",
		"Attendance_2024-03-28.csv",
		"Attendance_2024-03-29.csv",
	}, attachments(sent))
}
