package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/playmate/core"
)

var Genders = []string{"Male", "Female", "Other"}

// Student is a registered member of the school. ID is the text encoded in the student's QR code.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Guardian  string    `json:"guardian"`
	DOB       string    `json:"dob"` // YYYY-MM-DD
	Belt      string    `json:"belt"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Gender    string    `json:"gender"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// IsNamed reports whether the student has a name. Unnamed students (e.g. half-filled imports)
// are left out of the day's working copy and of the fee ledgers.
func (s Student) IsNamed() bool { return s.Name != "" }

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	ID       string `json:"id" validate:"required,max=64,studentid"`
	Name     string `json:"name" validate:"required,max=128"`
	Guardian string `json:"guardian" validate:"max=128"`
	DOB      string `json:"dob" validate:"omitempty,date"`
	Belt     string `json:"belt" validate:"max=32"`
	Address  string `json:"address" validate:"max=256"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Gender   string `json:"gender" validate:"omitempty,gender"`
}

func (ns *NewStudent) clean() {
	ns.ID = core.CleanString(ns.ID)
	ns.Name = core.CleanString(ns.Name)
	ns.Guardian = core.CleanString(ns.Guardian)
	ns.DOB = core.CleanString(ns.DOB)
	ns.Belt = core.CleanString(ns.Belt)
	ns.Address = core.CleanString(ns.Address)
	ns.Phone = cleanPhone(ns.Phone)
	ns.Gender = cleanGender(ns.Gender)
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.clean()
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Nil fields are left untouched; the ID cannot change.
type UpdateStudent struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=128"`
	Guardian *string `json:"guardian" validate:"omitempty,max=128"`
	DOB      *string `json:"dob" validate:"omitempty,date"`
	Belt     *string `json:"belt" validate:"omitempty,max=32"`
	Address  *string `json:"address" validate:"omitempty,max=256"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Gender   *string `json:"gender" validate:"omitempty,gender"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	cleanPtr := func(s *string, fn func(string) string) *string {
		if s == nil {
			return nil
		}
		v := fn(*s)
		return &v
	}
	clean := func(s string) string { return core.CleanString(s) }

	us.Name = cleanPtr(us.Name, clean)
	us.Guardian = cleanPtr(us.Guardian, clean)
	us.DOB = cleanPtr(us.DOB, clean)
	us.Belt = cleanPtr(us.Belt, clean)
	us.Address = cleanPtr(us.Address, clean)
	us.Phone = cleanPtr(us.Phone, cleanPhone)
	us.Gender = cleanPtr(us.Gender, cleanGender)
	return validate.Struct(us)
}

func (us UpdateStudent) apply(s *Student) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&s.Name, us.Name)
	set(&s.Guardian, us.Guardian)
	set(&s.DOB, us.DOB)
	set(&s.Belt, us.Belt)
	set(&s.Address, us.Address)
	set(&s.Phone, us.Phone)
	set(&s.Gender, us.Gender)
}

type QueryFilter struct {
	Search string `query:"search"` // case-insensitive match on ID or Name
	Belt   string `query:"belt"`
	Gender string `query:"gender"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true /* lower */)
	qf.Belt = core.CleanString(qf.Belt)
	qf.Gender = cleanGender(qf.Gender)
}

// ImportResult summarises a roster import.
type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"` // rows without an id
	Errors  []RowError `json:"errors"`
}

type RowError struct {
	Row   int    `json:"row"` // 1-based, header included
	ID    string `json:"id"`
	Error string `json:"error"`
}

// asUpdate keeps the non-empty fields of an imported row.
func (ns NewStudent) asUpdate() UpdateStudent {
	ptr := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	return UpdateStudent{
		Name:     ptr(ns.Name),
		Guardian: ptr(ns.Guardian),
		DOB:      ptr(ns.DOB),
		Belt:     ptr(ns.Belt),
		Address:  ptr(ns.Address),
		Phone:    ptr(ns.Phone),
		Gender:   ptr(ns.Gender),
	}
}
