package account

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core"
)

var (
	// errors
	ErrNotFound      = errors.New("account not found")
	ErrExists        = errors.New("an account with this id already exists")
	ErrInvalidID     = errors.New("invalid user id")
	ErrWrongPassword = errors.New("wrong password")
	ErrDeactivated   = errors.New("account deactivated")
)

var NowFunc = time.Now // mockable

type (
	Repository interface {
		// CreateAccount returns ErrExists when the id is taken.
		CreateAccount(ctx context.Context, acc Account) (Account, error)
		GetAccount(ctx context.Context, id string) (Account, error)
		// QueryAccounts applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Account.ID or Account.Name.
		QueryAccounts(ctx context.Context, filter QueryFilter) ([]Account, error)
		UpdateAccount(ctx context.Context, acc Account) (Account, error)
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

func (svc *Service) checkUniqueness(ctx context.Context, id string) error {
	_, err := svc.repo.GetAccount(ctx, id)
	switch errors.Cause(err) {
	case nil:
		return core.NewFieldError("id", ErrExists)
	case ErrNotFound:
		return nil
	default:
		return err
	}
}

// Create stores a new active account. na must have been validated.
func (svc *Service) Create(ctx context.Context, na NewAccount) (Account, error) {
	now := NowFunc().UTC()
	acc := Account{
		ID:        na.ID,
		Name:      na.Name,
		Role:      na.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := acc.SetPassword(na.Password); err != nil {
		return Account{}, err
	}
	return svc.repo.CreateAccount(ctx, acc)
}

func (svc *Service) Get(ctx context.Context, id string) (Account, error) {
	return svc.repo.GetAccount(ctx, core.CleanString(id, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Account, error) {
	filter.Clean()
	return svc.repo.QueryAccounts(ctx, filter)
}

// Authenticate checks the credentials and records the login time.
func (svc *Service) Authenticate(ctx context.Context, id, pwd string) (Account, error) {
	acc, err := svc.Get(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Account{}, ErrInvalidID
		}
		return Account{}, err
	}
	if err := acc.CheckPassword(pwd); err != nil {
		return Account{}, ErrWrongPassword
	}
	if !acc.IsActive {
		return Account{}, ErrDeactivated
	}
	return svc.SetLastLogin(ctx, acc)
}

func (svc *Service) SetLastLogin(ctx context.Context, acc Account) (Account, error) {
	acc.LastLogin = NowFunc().UTC()
	return svc.repo.UpdateAccount(ctx, acc)
}

// Update applies ua (which must have been validated) to the account.
func (svc *Service) Update(ctx context.Context, id string, ua UpdateAccount) (Account, error) {
	acc, err := svc.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if ua.Name != nil {
		acc.Name = *ua.Name
	}
	if ua.Role != nil {
		acc.Role = *ua.Role
	}
	if ua.IsActive != nil {
		acc.IsActive = *ua.IsActive
	}
	acc.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateAccount(ctx, acc)
}

// SetPassword validates sp against the password policy then replaces the account's password.
func (svc *Service) SetPassword(ctx context.Context, id string, sp SetPassword) error {
	acc, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := sp.Validate(svc.validate, acc); err != nil {
		return err
	}
	if err := acc.SetPassword(sp.Password); err != nil {
		return err
	}
	acc.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateAccount(ctx, acc)
	return err
}
