package fee

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/playmate/core"
)

const (
	StatusPaid = "Paid"
	StatusDue  = "Due"
)

var Months = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type MonthFee struct {
	Status string   `json:"status"`
	Amount *float64 `json:"amount"`
}

// Ledger is one student's fee record for a year, keyed by month abbreviation.
type Ledger struct {
	Year      int                 `json:"year"`
	StudentID string              `json:"student_id"`
	Months    map[string]MonthFee `json:"months"`
	UpdatedAt time.Time           `json:"updated_at"` // UTC
}

// NewLedger returns a ledger with every month Due.
func NewLedger(year int, studentID string) Ledger {
	l := Ledger{Year: year, StudentID: studentID, Months: make(map[string]MonthFee, len(Months))}
	for _, m := range Months {
		l.Months[m] = MonthFee{Status: StatusDue}
	}
	return l
}

// Month returns the fee of month, Due when missing.
func (l Ledger) Month(month string) MonthFee {
	if mf, ok := l.Months[month]; ok && mf.Status != "" {
		return mf
	}
	return MonthFee{Status: StatusDue}
}

type LedgerRow struct {
	StudentID string              `json:"student_id"`
	Name      string              `json:"name"`
	Phone     string              `json:"phone"`
	Months    map[string]MonthFee `json:"months"`
}

// UpdateMonth defines what may change on a month. Nil fields are left untouched.
type UpdateMonth struct {
	Status      *string  `json:"status" validate:"omitempty,feestatus"`
	Amount      *float64 `json:"amount" validate:"omitempty,gte=0"`
	ClearAmount bool     `json:"clear_amount"`
}

func (um *UpdateMonth) Validate(validate *validator.Validate) error {
	if um.Status != nil {
		st := cleanStatus(*um.Status)
		um.Status = &st
		if st == "" {
			um.Status = nil
		}
	}
	if err := validate.Struct(um); err != nil {
		return err
	}
	if um.Status == nil && um.Amount == nil && !um.ClearAmount {
		return core.NewFieldError("status", ErrNothingToUpdate)
	}
	return nil
}

func (um UpdateMonth) apply(mf *MonthFee) {
	if um.Status != nil {
		mf.Status = *um.Status
	}
	if um.ClearAmount {
		mf.Amount = nil
	}
	if um.Amount != nil {
		amount := *um.Amount
		mf.Amount = &amount
	}
}

// Reminder is a pre-filled chat message about one month's fee.
type Reminder struct {
	StudentID string   `json:"student_id"`
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Month     string   `json:"month"`
	Status    string   `json:"status"`
	Amount    *float64 `json:"amount"`
	Message   string   `json:"message"`
	URL       string   `json:"url"`
}
