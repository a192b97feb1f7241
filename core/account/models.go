package account

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/playmate/core"
)

// Roles
const (
	RoleAdmin = "admin"
	RoleCoach = "coach"
)

var Roles = []Role{
	{Name: "Admin", Value: RoleAdmin},
	{Name: "Coach", Value: RoleCoach},
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Account is a console login. Admins manage students and fees, coaches run the scanner and reports.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (acc *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	acc.PasswordHash = hash
	return nil
}

func (acc *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(pwd))
}

func (acc *Account) IsAdmin() bool { return acc.Role == RoleAdmin }

// NewAccount contains information needed to create a new Account.
type NewAccount struct {
	ID              string `json:"id" validate:"required,min=3,max=64,alphanum_"`
	Name            string `json:"name"`
	Role            string `json:"role" validate:"required,oneof=admin coach"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (na *NewAccount) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	na.ID = core.CleanString(na.ID, true /* lower */)
	na.Name = core.CleanString(na.Name)
	na.Role = core.CleanString(na.Role, true /* lower */)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, na.ID)
}

// UpdateAccount defines what information may be provided to modify an existing Account.
type UpdateAccount struct {
	Name     *string `json:"name"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin coach"`
	IsActive *bool   `json:"is_active"`
}

func (ua *UpdateAccount) Validate(validate *validator.Validate) error {
	if ua.Name != nil {
		name := core.CleanString(*ua.Name)
		ua.Name = &name
	}
	if ua.Role != nil {
		role := core.CleanString(*ua.Role, true /* lower */)
		ua.Role = &role
	}
	return validate.Struct(ua)
}

type SetPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	// used by the similarity check only
	accountID   string
	accountName string
}

func (sp *SetPassword) Validate(validate *validator.Validate, acc Account) error {
	sp.accountID = acc.ID
	sp.accountName = acc.Name
	return validate.Struct(sp)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Role     string `query:"role"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search, true /* lower */)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}

// Match reports whether acc passes every set field of the (cleaned) filter.
func (qf QueryFilter) Match(acc Account) bool {
	if qf.Search != "" &&
		!strings.Contains(strings.ToLower(acc.ID), qf.Search) &&
		!strings.Contains(strings.ToLower(acc.Name), qf.Search) {
		return false
	}
	if qf.Role != "" && acc.Role != qf.Role {
		return false
	}
	if qf.IsActive != nil && acc.IsActive != *qf.IsActive {
		return false
	}
	return true
}
