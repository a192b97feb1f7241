package student

import (
	"context"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/trezcool/playmate/core"
)

var (
	// errors
	ErrNotFound = errors.New("student not found")
	ErrExists   = errors.New("a student with this id already exists")
)

var NowFunc = time.Now // mockable

const (
	DefaultQRCodeSize = 256
	minQRCodeSize     = 64
	maxQRCodeSize     = 1024
)

var rosterHeader = []string{"Student ID", "Name", "Guardian", "Date of Birth", "Address", "Belt", "Phone", "Gender"}

type (
	Repository interface {
		// CreateStudent returns ErrExists when the id is taken.
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Student, error)
		// UpdateStudent returns ErrNotFound when the student does not exist.
		UpdateStudent(ctx context.Context, s Student) (Student, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(repo Repository, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{repo: repo, validate: validate, logger: logger}
}

// Create registers a new student. ns must have been validated.
func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	now := NowFunc().UTC()
	s := Student{
		ID:        ns.ID,
		Name:      ns.Name,
		Guardian:  ns.Guardian,
		DOB:       ns.DOB,
		Belt:      ns.Belt,
		Address:   ns.Address,
		Phone:     ns.Phone,
		Gender:    ns.Gender,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s, err := svc.repo.CreateStudent(ctx, s)
	if errors.Cause(err) == ErrExists {
		return Student{}, core.NewFieldError("id", ErrExists)
	}
	return s, err
}

func (svc *Service) Get(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, core.CleanString(id))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Student, error) {
	filter.Clean()
	return svc.repo.QueryStudents(ctx, filter, orderings...)
}

// All returns every student ordered by id.
func (svc *Service) All(ctx context.Context) ([]Student, error) {
	return svc.repo.QueryStudents(ctx, QueryFilter{}, core.DBOrdering{Field: "id", Ascending: true})
}

// Update applies us (which must have been validated) to the student.
func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	s, err := svc.Get(ctx, id)
	if err != nil {
		return Student{}, err
	}
	us.apply(&s)
	s.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateStudent(ctx, s)
}

// Import creates or updates students from a CSV or Excel roster.
// Rows without an id are skipped; for existing students only the non-empty cells overwrite.
// Invalid rows are reported in ImportResult.Errors and do not stop the import.
func (svc *Service) Import(ctx context.Context, filename string, r io.Reader) (ImportResult, error) {
	rows, err := readRows(filename, r)
	if err != nil {
		return ImportResult{}, err
	}
	records, skipped, err := mapRows(rows)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Skipped: skipped, Errors: make([]RowError, 0)}
	for _, rec := range records {
		created, err := svc.importOne(ctx, rec.student)
		if err != nil {
			if !isInputError(err) {
				return res, errors.Wrapf(err, "importing row %d", rec.row)
			}
			res.Errors = append(res.Errors, RowError{Row: rec.row, ID: rec.student.ID, Error: svc.describe(err)})
			continue
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}

	svc.logger.Info("students imported", map[string]interface{}{
		"file": filename, "created": res.Created, "updated": res.Updated, "skipped": res.Skipped, "errors": len(res.Errors),
	})
	return res, nil
}

func (svc *Service) importOne(ctx context.Context, ns NewStudent) (created bool, err error) {
	ns.clean()
	existing, err := svc.repo.GetStudent(ctx, ns.ID)
	switch errors.Cause(err) {
	case nil:
		us := ns.asUpdate()
		if err := us.Validate(svc.validate); err != nil {
			return false, err
		}
		_, err = svc.Update(ctx, existing.ID, us)
		return false, err
	case ErrNotFound:
		if err := svc.validate.StructExcept(ns, "Name"); err != nil {
			return false, err
		}
		_, err = svc.Create(ctx, ns)
		return true, err
	default:
		return false, err
	}
}

func (svc *Service) describe(err error) string {
	if verrs, ok := errors.Cause(err).(validator.ValidationErrors); ok && len(verrs) > 0 {
		return verrs[0].Field() + ": " + verrs[0].Tag()
	}
	return err.Error()
}

func isInputError(err error) bool {
	switch errors.Cause(err).(type) {
	case validator.ValidationErrors, *core.ValidationError:
		return true
	}
	return false
}

// ExportCSV writes the whole roster as CSV and returns the number of students written.
func (svc *Service) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	students, err := svc.All(ctx)
	if err != nil {
		return 0, err
	}
	rows := make([][]string, 0, len(students))
	for _, s := range students {
		rows = append(rows, []string{s.ID, s.Name, s.Guardian, s.DOB, s.Address, s.Belt, s.Phone, s.Gender})
	}
	return core.WriteCSV(w, rosterHeader, rows)
}

// QRCode returns a PNG QR code encoding the student's id, size pixels wide.
func (svc *Service) QRCode(ctx context.Context, id string, size int) ([]byte, error) {
	s, err := svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case size == 0:
		size = DefaultQRCodeSize
	case size < minQRCodeSize:
		size = minQRCodeSize
	case size > maxQRCodeSize:
		size = maxQRCodeSize
	}
	png, err := qrcode.Encode(s.ID, qrcode.High, size)
	if err != nil {
		return nil, errors.Wrap(err, "encoding qr code")
	}
	return png, nil
}
