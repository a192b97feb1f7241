package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/account"
)

type accountRow struct {
	ID           string     `db:"id"`
	Name         string     `db:"name"`
	Role         string     `db:"role"`
	IsActive     bool       `db:"is_active"`
	PasswordHash string     `db:"password_hash"`
	CreatedAt    int64      `db:"created_at"`
	UpdatedAt    int64      `db:"updated_at"`
	LastLogin    null.Int64 `db:"last_login"`
}

const accountColumns = "id, name, role, is_active, password_hash, created_at, updated_at, last_login"

type accountRepository struct {
	db core.DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db core.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo accountRepository) toRow(acc account.Account) accountRow {
	return accountRow{
		ID:           acc.ID,
		Name:         acc.Name,
		Role:         acc.Role,
		IsActive:     acc.IsActive,
		PasswordHash: string(acc.PasswordHash),
		CreatedAt:    toMillis(acc.CreatedAt),
		UpdatedAt:    toMillis(acc.UpdatedAt),
		LastLogin:    null.NewInt64(toMillis(acc.LastLogin), !acc.LastLogin.IsZero()),
	}
}

func (repo accountRepository) fromRow(row accountRow) account.Account {
	return account.Account{
		ID:           row.ID,
		Name:         row.Name,
		Role:         row.Role,
		IsActive:     row.IsActive,
		PasswordHash: []byte(row.PasswordHash),
		CreatedAt:    fromMillis(row.CreatedAt),
		UpdatedAt:    fromMillis(row.UpdatedAt),
		LastLogin:    fromMillis(row.LastLogin.Int64),
	}
}

// trapNoRowsErr maps "no rows" err to account.ErrNotFound
func (repo accountRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return account.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo accountRepository) CreateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	row := repo.toRow(acc)
	err := execOne(ctx, repo.db,
		`INSERT INTO login_accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		row.ID, row.Name, row.Role, row.IsActive, row.PasswordHash, row.CreatedAt, row.UpdatedAt, row.LastLogin)
	if err != nil {
		if err == core.ErrConflict {
			return account.Account{}, account.ErrExists
		}
		return account.Account{}, errors.Wrap(err, "inserting account")
	}
	return repo.fromRow(row), nil
}

func (repo accountRepository) GetAccount(ctx context.Context, id string) (account.Account, error) {
	var row accountRow
	q := repo.db.Rebind(`SELECT ` + accountColumns + ` FROM login_accounts WHERE id = ?`)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return account.Account{}, repo.trapNoRowsErr(err, "selecting account")
	}
	return repo.fromRow(row), nil
}

func (repo accountRepository) QueryAccounts(ctx context.Context, filter account.QueryFilter) ([]account.Account, error) {
	var (
		where []string
		args  []interface{}
	)
	// accounts with ID or Name matching the search keyword
	if filter.Search != "" {
		val := "%" + likeEscaper.Replace(filter.Search) + "%"
		where = append(where, `(LOWER(id) LIKE ? ESCAPE '\' OR LOWER(name) LIKE ? ESCAPE '\')`)
		args = append(args, val, val)
	}
	if filter.Role != "" {
		where = append(where, "role = ?")
		args = append(args, filter.Role)
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, *filter.IsActive)
	}

	q := `SELECT ` + accountColumns + ` FROM login_accounts`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id ASC"

	var rows []accountRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting accounts")
	}
	accounts := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, repo.fromRow(row))
	}
	return accounts, nil
}

func (repo accountRepository) UpdateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	row := repo.toRow(acc)
	err := execOne(ctx, repo.db,
		`UPDATE login_accounts SET name = ?, role = ?, is_active = ?, password_hash = ?, updated_at = ?, last_login = ? WHERE id = ?`,
		row.Name, row.Role, row.IsActive, row.PasswordHash, row.UpdatedAt, row.LastLogin, row.ID)
	if err != nil {
		if err == core.ErrConflict {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	return repo.GetAccount(ctx, acc.ID)
}
