package fee

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/student"
)

var (
	// errors
	ErrNotFound        = errors.New("fee ledger not found")
	ErrInvalidYear     = errors.New("invalid year")
	ErrInvalidMonth    = errors.New("invalid month: expected Jan..Dec")
	ErrNoPhone         = errors.New("the student has no phone number")
	ErrNothingToUpdate = errors.New("provide a status or an amount")
)

var NowFunc = time.Now // mockable

const (
	minYear = 2000
	maxYear = 2100

	reminderBaseURL = "https://wa.me/"
)

type (
	Repository interface {
		GetLedger(ctx context.Context, year int, studentID string) (Ledger, error)
		// CreateLedger stores l unless a ledger already exists for its year and student, and returns the
		// stored ledger.
		CreateLedger(ctx context.Context, l Ledger) (Ledger, error)
		QueryLedgers(ctx context.Context, year int) ([]Ledger, error)
		// UpdateMonth atomically loads the month of an existing ledger, calls fn on it and stores the
		// result. fn may be called more than once.
		UpdateMonth(ctx context.Context, year int, studentID, month string, fn func(*MonthFee) error) (Ledger, error)
	}

	// Roster gives access to the registered students.
	Roster interface {
		Get(ctx context.Context, id string) (student.Student, error)
		All(ctx context.Context) ([]student.Student, error)
	}

	Service struct {
		repo        Repository
		roster      Roster
		validate    *validator.Validate
		logger      core.Logger
		countryCode string
	}
)

func NewService(repo Repository, roster Roster, validate *validator.Validate, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:        repo,
		roster:      roster,
		validate:    validate,
		logger:      logger,
		countryCode: conf.PhoneCountryCode,
	}
}

func checkYear(year int) error {
	if year < minYear || year > maxYear {
		return core.NewFieldError("year", ErrInvalidYear)
	}
	return nil
}

func checkMonth(month string) (string, error) {
	m, ok := CleanMonth(month)
	if !ok {
		return "", core.NewFieldError("month", ErrInvalidMonth)
	}
	return m, nil
}

// Ledger returns the student's ledger for year, creating it (all months Due) on first access.
func (svc *Service) Ledger(ctx context.Context, year int, studentID string) (Ledger, error) {
	if err := checkYear(year); err != nil {
		return Ledger{}, err
	}
	s, err := svc.roster.Get(ctx, studentID)
	if err != nil {
		return Ledger{}, err
	}
	return svc.ledger(ctx, year, s.ID)
}

func (svc *Service) ledger(ctx context.Context, year int, studentID string) (Ledger, error) {
	l, err := svc.repo.GetLedger(ctx, year, studentID)
	if errors.Cause(err) == ErrNotFound {
		nl := NewLedger(year, studentID)
		nl.UpdatedAt = NowFunc().UTC()
		return svc.repo.CreateLedger(ctx, nl)
	}
	return l, err
}

// Ledgers returns the ledger of every named student for year, creating the missing ones.
func (svc *Service) Ledgers(ctx context.Context, year int) ([]LedgerRow, error) {
	if err := checkYear(year); err != nil {
		return nil, err
	}
	students, err := svc.roster.All(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := svc.repo.QueryLedgers(ctx, year)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string]Ledger, len(existing))
	for _, l := range existing {
		byStudent[l.StudentID] = l
	}

	rows := make([]LedgerRow, 0, len(students))
	for _, s := range students {
		if !s.IsNamed() {
			continue
		}
		l, ok := byStudent[s.ID]
		if !ok {
			nl := NewLedger(year, s.ID)
			nl.UpdatedAt = NowFunc().UTC()
			if l, err = svc.repo.CreateLedger(ctx, nl); err != nil {
				return nil, errors.Wrapf(err, "creating ledger of %s", s.ID)
			}
		}
		months := make(map[string]MonthFee, len(Months))
		for _, m := range Months {
			months[m] = l.Month(m)
		}
		rows = append(rows, LedgerRow{StudentID: s.ID, Name: s.Name, Phone: s.Phone, Months: months})
	}
	return rows, nil
}

// Update applies um (which must have been validated) to one month of the student's ledger.
// Only the provided fields change.
func (svc *Service) Update(ctx context.Context, year int, studentID, month string, um UpdateMonth) (Ledger, error) {
	month, err := checkMonth(month)
	if err != nil {
		return Ledger{}, err
	}
	l, err := svc.Ledger(ctx, year, studentID)
	if err != nil {
		return Ledger{}, err
	}
	return svc.repo.UpdateMonth(ctx, year, l.StudentID, month, func(mf *MonthFee) error {
		um.apply(mf)
		return nil
	})
}

func (svc *Service) SetStatus(ctx context.Context, year int, studentID, month, status string) (Ledger, error) {
	um := UpdateMonth{Status: &status}
	if err := um.Validate(svc.validate); err != nil {
		return Ledger{}, err
	}
	return svc.Update(ctx, year, studentID, month, um)
}

func (svc *Service) SetAmount(ctx context.Context, year int, studentID, month string, amount float64) (Ledger, error) {
	um := UpdateMonth{Amount: &amount}
	if err := um.Validate(svc.validate); err != nil {
		return Ledger{}, err
	}
	return svc.Update(ctx, year, studentID, month, um)
}

// ExportCSV writes every ledger of year as CSV (one status column per month)
// and returns the number of rows written.
func (svc *Service) ExportCSV(ctx context.Context, year int, w io.Writer) (int, error) {
	ledgers, err := svc.Ledgers(ctx, year)
	if err != nil {
		return 0, err
	}
	header := append([]string{"Student ID", "Name"}, Months...)
	rows := make([][]string, 0, len(ledgers))
	for _, l := range ledgers {
		row := make([]string, 0, len(header))
		row = append(row, l.StudentID, l.Name)
		for _, m := range Months {
			row = append(row, l.Months[m].Status)
		}
		rows = append(rows, row)
	}
	return core.WriteCSV(w, header, rows)
}

func CSVFilename(year int) string { return "Fees_" + strconv.Itoa(year) + ".csv" }

// Reminder builds the chat deep link reminding the student's guardian about month's fee.
func (svc *Service) Reminder(ctx context.Context, year int, studentID, month string) (Reminder, error) {
	month, err := checkMonth(month)
	if err != nil {
		return Reminder{}, err
	}
	if err := checkYear(year); err != nil {
		return Reminder{}, err
	}
	s, err := svc.roster.Get(ctx, studentID)
	if err != nil {
		return Reminder{}, err
	}
	if s.Phone == "" {
		return Reminder{}, core.NewFieldError("phone", ErrNoPhone)
	}
	l, err := svc.ledger(ctx, year, s.ID)
	if err != nil {
		return Reminder{}, err
	}

	mf := l.Month(month)
	amount := "Not Entered"
	if mf.Amount != nil && *mf.Amount != 0 {
		amount = strconv.FormatFloat(*mf.Amount, 'f', -1, 64)
	}
	msg := fmt.Sprintf("Hello %s,\nHere is your fee update:\n\nMonth: %s\nAmount: ₹%s\nStatus: %s\n\nThank you!",
		s.Name, month, amount, mf.Status)

	return Reminder{
		StudentID: s.ID,
		Name:      s.Name,
		Phone:     s.Phone,
		Month:     month,
		Status:    mf.Status,
		Amount:    mf.Amount,
		Message:   msg,
		URL:       reminderBaseURL + svc.countryCode + s.Phone + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20"),
	}, nil
}
