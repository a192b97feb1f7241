package attendance

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/student"
)

var (
	// errors
	ErrInvalidDate  = errors.New("invalid date: expected YYYY-MM-DD")
	ErrFutureDate   = errors.New("date is in the future")
	ErrInvalidMonth = errors.New("invalid month: expected YYYY-MM")
)

var NowFunc = time.Now // mockable

var (
	dayHeader     = []string{"ID", "Name", "IN", "OUT", "Status"}
	summaryHeader = []string{"Student ID", "Name", "Attendance Days"}
)

type (
	Repository interface {
		// SeedWorkingDay adds the given students as Absent to day's working copy, keeping existing entries.
		// Returns the number of students added.
		SeedWorkingDay(ctx context.Context, day string, studentIDs []string) (int, error)
		// ApplyScan atomically loads the student's entry for day (working copy first, then the
		// permanent record, else an Absent entry), calls fn on it and, if fn succeeds, stores the result
		// in both the working copy and the permanent record. fn may be called more than once.
		ApplyScan(ctx context.Context, day, studentID string, fn func(*Entry) error) (Entry, error)
		// GetDay returns the permanent record for day (empty if none).
		GetDay(ctx context.Context, day string) (DayRecord, error)
		// GetWorkingDay returns the working copy for day (empty if none).
		GetWorkingDay(ctx context.Context, day string) (DayRecord, error)
		// QueryDays returns the permanent records whose date starts with prefix, ordered by date.
		QueryDays(ctx context.Context, prefix string) ([]DayRecord, error)
		// DeleteWorkingDaysExcept removes every working copy but day's and returns how many were removed.
		DeleteWorkingDaysExcept(ctx context.Context, day string) (int, error)
		LastRollover(ctx context.Context) (string, error) // "" if never ran
		SetLastRollover(ctx context.Context, day string) error
	}

	// Roster gives access to the registered students.
	Roster interface {
		Get(ctx context.Context, id string) (student.Student, error)
		All(ctx context.Context) ([]student.Student, error)
	}

	Service struct {
		repo        Repository
		roster      Roster
		mailSvc     core.EmailService
		logger      core.Logger
		loc         *time.Location
		minInterval time.Duration
		lock        *scanLock
		recipients  []mail.Address
		appName     string
	}
)

func NewService(repo Repository, roster Roster, mailSvc core.EmailService, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:        repo,
		roster:      roster,
		mailSvc:     mailSvc,
		logger:      logger,
		loc:         conf.Location(),
		minInterval: conf.Attendance.MinScanInterval,
		lock:        newScanLock(conf.Attendance.ScanLockWindow),
		recipients:  conf.DigestRecipients(),
		appName:     conf.AppName,
	}
}

func (svc *Service) now() time.Time { return NowFunc().In(svc.loc) }

// CurrentDay returns the school-local date.
func (svc *Service) CurrentDay() string { return svc.now().Format(core.DateLayout) }

// Scan applies a QR scan of code for the current day.
func (svc *Service) Scan(ctx context.Context, code string) (res ScanResult, err error) {
	var kind ScanKind
	defer func() { observeScan(kind, err) }()

	id := core.CleanString(code)
	now := svc.now()
	if id == "" {
		return ScanResult{}, ErrUnknownStudent
	}
	if !svc.lock.acquire(id, now) {
		return ScanResult{}, ErrDuplicateScan
	}

	s, err := svc.roster.Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return ScanResult{}, ErrUnknownStudent
		}
		return ScanResult{}, errors.Wrap(err, "loading student")
	}

	day := now.Format(core.DateLayout)
	entry, err := svc.repo.ApplyScan(ctx, day, s.ID, func(e *Entry) error {
		k, err := e.Apply(now, svc.minInterval)
		kind = k
		return err
	})
	if err != nil {
		if _, ok := errors.Cause(err).(*ScanError); ok {
			return ScanResult{}, err
		}
		return ScanResult{}, errors.Wrap(err, "recording scan")
	}

	msg := MsgWelcome
	if kind == ScanOut {
		msg = MsgThankYou
	}
	return ScanResult{
		StudentID: s.ID,
		Name:      s.Name,
		Kind:      kind,
		Message:   msg,
		Time:      now.Format(TimeLayout),
		Entry:     entry,
	}, nil
}

// Today returns today's working copy joined with the roster.
// The permanent record is used when the working copy is gone.
func (svc *Service) Today(ctx context.Context) (DayReport, error) {
	day := svc.CurrentDay()
	rec, err := svc.repo.GetWorkingDay(ctx, day)
	if err != nil {
		return DayReport{}, err
	}
	if len(rec.Entries) == 0 {
		if rec, err = svc.repo.GetDay(ctx, day); err != nil {
			return DayReport{}, err
		}
	}
	return svc.report(ctx, rec)
}

// Day returns the permanent record of date joined with the roster.
func (svc *Service) Day(ctx context.Context, date string) (DayReport, error) {
	date, err := svc.checkDate(date)
	if err != nil {
		return DayReport{}, err
	}
	rec, err := svc.repo.GetDay(ctx, date)
	if err != nil {
		return DayReport{}, err
	}
	return svc.report(ctx, rec)
}

func (svc *Service) checkDate(date string) (string, error) {
	date = core.CleanString(date)
	if _, err := time.Parse(core.DateLayout, date); err != nil {
		return "", core.NewFieldError("date", ErrInvalidDate)
	}
	if date > svc.CurrentDay() {
		return "", core.NewFieldError("date", ErrFutureDate)
	}
	return date, nil
}

// report lists every student of the roster; students without an entry are Absent with "-" times.
func (svc *Service) report(ctx context.Context, rec DayRecord) (DayReport, error) {
	students, err := svc.roster.All(ctx)
	if err != nil {
		return DayReport{}, err
	}

	rep := DayReport{Date: rec.Date, Rows: make([]DayRow, 0, len(students))}
	for _, s := range students {
		row := DayRow{StudentID: s.ID, Name: s.Name, InTime: "-", OutTime: "-", Status: StatusAbsent}
		if e, ok := rec.Entries[s.ID]; ok {
			row.Status = e.Status
			if e.InTime != "" {
				row.InTime = e.InTime
			}
			if e.OutTime != "" {
				row.OutTime = e.OutTime
			}
		}
		if row.Status == StatusPresent {
			rep.Present++
		} else {
			rep.Absent++
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep, nil
}

// ExportDayCSV writes the day report of date as CSV and returns the number of rows written.
func (svc *Service) ExportDayCSV(ctx context.Context, date string, w io.Writer) (int, error) {
	rep, err := svc.Day(ctx, date)
	if err != nil {
		return 0, err
	}
	return writeDayCSV(w, rep)
}

func writeDayCSV(w io.Writer, rep DayReport) (int, error) {
	rows := make([][]string, 0, len(rep.Rows))
	for _, r := range rep.Rows {
		rows = append(rows, []string{r.StudentID, r.Name, r.InTime, r.OutTime, r.Status})
	}
	return core.WriteCSV(w, dayHeader, rows)
}

// MonthlySummary counts, for every student, the days of month (YYYY-MM) they were Present.
// The month's records are loaded once.
func (svc *Service) MonthlySummary(ctx context.Context, month string) (Summary, error) {
	month = core.CleanString(month)
	if _, err := time.Parse(core.MonthLayout, month); err != nil {
		return Summary{}, core.NewFieldError("month", ErrInvalidMonth)
	}

	days, err := svc.repo.QueryDays(ctx, month+"-")
	if err != nil {
		return Summary{}, err
	}
	students, err := svc.roster.All(ctx)
	if err != nil {
		return Summary{}, err
	}

	counts := make(map[string]int)
	for _, rec := range days {
		for id, e := range rec.Entries {
			if e.Status == StatusPresent {
				counts[id]++
			}
		}
	}

	sum := Summary{Month: month, WorkingDays: len(days), Rows: make([]SummaryRow, 0, len(students))}
	for _, s := range students {
		sum.Rows = append(sum.Rows, SummaryRow{StudentID: s.ID, Name: s.Name, Days: counts[s.ID]})
	}
	return sum, nil
}

// ExportSummaryCSV writes the monthly summary as CSV and returns the number of rows written.
func (svc *Service) ExportSummaryCSV(ctx context.Context, month string, w io.Writer) (int, error) {
	sum, err := svc.MonthlySummary(ctx, month)
	if err != nil {
		return 0, err
	}
	rows := make([][]string, 0, len(sum.Rows))
	for _, r := range sum.Rows {
		rows = append(rows, []string{r.StudentID, r.Name, fmt.Sprint(r.Days)})
	}
	return core.WriteCSV(w, summaryHeader, rows)
}

// History lists the days the student has an entry for, oldest first.
// month (YYYY-MM) is optional and narrows the lookup.
func (svc *Service) History(ctx context.Context, studentID, month string) ([]HistoryItem, error) {
	s, err := svc.roster.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	prefix := core.CleanString(month)
	if prefix != "" {
		if _, err := time.Parse(core.MonthLayout, prefix); err != nil {
			return nil, core.NewFieldError("month", ErrInvalidMonth)
		}
		prefix += "-"
	}

	days, err := svc.repo.QueryDays(ctx, prefix)
	if err != nil {
		return nil, err
	}
	items := make([]HistoryItem, 0, len(days))
	for _, rec := range days {
		if e, ok := rec.Entries[s.ID]; ok {
			items = append(items, HistoryItem{Date: rec.Date, Status: e.Status, InTime: e.InTime, OutTime: e.OutTime})
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Date < items[j].Date })
	return items, nil
}

// Rollover starts a new attendance day: stale working copies are removed and today's is seeded
// with every named student as Absent. It runs at most once per day; when recipients are configured,
// a digest is emailed for every day since the previous rollover.
func (svc *Service) Rollover(ctx context.Context) (RolloverResult, error) {
	today := svc.CurrentDay()
	res := RolloverResult{Day: today}

	last, err := svc.repo.LastRollover(ctx)
	if err != nil {
		return res, errors.Wrap(err, "reading rollover marker")
	}
	if last == today {
		res.Skipped = true
		return res, nil
	}

	if res.Deleted, err = svc.repo.DeleteWorkingDaysExcept(ctx, today); err != nil {
		return res, errors.Wrap(err, "deleting working copies")
	}

	students, err := svc.roster.All(ctx)
	if err != nil {
		return res, errors.Wrap(err, "loading roster")
	}
	ids := make([]string, 0, len(students))
	for _, s := range students {
		if s.IsNamed() {
			ids = append(ids, s.ID)
		}
	}
	if res.Seeded, err = svc.repo.SeedWorkingDay(ctx, today, ids); err != nil {
		return res, errors.Wrap(err, "seeding working copy")
	}

	if err := svc.repo.SetLastRollover(ctx, today); err != nil {
		return res, errors.Wrap(err, "writing rollover marker")
	}

	if last != "" && len(svc.recipients) > 0 {
		for _, date := range missedDays(last, today) {
			if err := svc.SendDigest(ctx, date); err != nil {
				svc.logger.Error(fmt.Sprintf("sending attendance digest for %s", date), err)
			}
		}
	}

	svc.logger.Info(fmt.Sprintf("attendance rollover for %s", today), map[string]interface{}{
		"deleted": res.Deleted, "seeded": res.Seeded,
	})
	return res, nil
}

// maxDigestBacklog bounds the digests sent by a rollover that follows a long outage.
const maxDigestBacklog = 7

// missedDays returns the days from last up to the day before today, at most maxDigestBacklog of
// them (the most recent ones).
func missedDays(last, today string) []string {
	from, err := time.Parse(core.DateLayout, last)
	if err != nil {
		return nil
	}
	to, err := time.Parse(core.DateLayout, today)
	if err != nil {
		return nil
	}
	if oldest := to.AddDate(0, 0, -maxDigestBacklog); from.Before(oldest) {
		from = oldest
	}
	var days []string
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(core.DateLayout))
	}
	return days
}

// SendDigest emails the attendance of date, with the day CSV attached, to the digest recipients.
func (svc *Service) SendDigest(ctx context.Context, date string) error {
	if len(svc.recipients) == 0 {
		return nil
	}
	rep, err := svc.Day(ctx, date)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := writeDayCSV(&buf, rep); err != nil {
		return err
	}

	msg := &core.EmailMessage{
		To:           svc.recipients,
		Subject:      "Attendance " + rep.Date,
		TemplateName: "attendance_digest",
		TemplateData: map[string]interface{}{
			"Date":    rep.Date,
			"Present": rep.Present,
			"Absent":  rep.Absent,
			"Total":   len(rep.Rows),
		},
	}
	if err := msg.Attach(&buf, DayCSVFilename(rep.Date), "text/csv"); err != nil {
		return err
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

func DayCSVFilename(date string) string { return "Attendance_" + date + ".csv" }

func SummaryCSVFilename(month string) string {
	return "Monthly-Summary_" + strings.TrimSpace(month) + ".csv"
}
