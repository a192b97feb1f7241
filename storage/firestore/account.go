package firestorerepos

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/trezcool/playmate/core/account"
)

type accountRepository struct {
	client *firestore.Client
	loc    *time.Location
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(client *firestore.Client, loc *time.Location) *accountRepository {
	return &accountRepository{client: client, loc: loc}
}

func (repo accountRepository) col() *firestore.CollectionRef { return repo.client.Collection(colAccounts) }

func (repo accountRepository) encode(acc account.Account) map[string]interface{} {
	return map[string]interface{}{
		"name":         acc.Name,
		"role":         acc.Role,
		"isActive":     acc.IsActive,
		"passwordHash": string(acc.PasswordHash),
		"password":     firestore.Delete,
		"createdAt":    timeOrNil(acc.CreatedAt),
		"updatedAt":    timeOrNil(acc.UpdatedAt),
		"lastLogin":    timeOrNil(acc.LastLogin),
	}
}

// decode hashes the plain-text password of accounts created by the web console.
// The hash is stored on the next update of the account.
func (repo accountRepository) decode(snap *firestore.DocumentSnapshot) (account.Account, error) {
	data := snap.Data()
	acc := account.Account{
		ID:           snap.Ref.ID,
		Name:         getString(data, "name"),
		Role:         getString(data, "role"),
		IsActive:     getBool(data, "isActive", true),
		PasswordHash: []byte(getString(data, "passwordHash")),
		CreatedAt:    getTime(data, "createdAt", repo.loc),
		UpdatedAt:    getTime(data, "updatedAt", repo.loc),
		LastLogin:    getTime(data, "lastLogin", repo.loc),
	}
	if len(acc.PasswordHash) == 0 {
		if pwd := getString(data, "password"); pwd != "" {
			if err := acc.SetPassword(pwd); err != nil {
				return account.Account{}, errors.Wrapf(err, "hashing legacy password of %s", acc.ID)
			}
		}
	}
	return acc, nil
}

func (repo accountRepository) CreateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	data := repo.encode(acc)
	delete(data, "password")
	if _, err := repo.col().Doc(acc.ID).Create(ctx, data); err != nil {
		if isAlreadyExists(err) {
			return account.Account{}, account.ErrExists
		}
		return account.Account{}, errors.Wrap(err, "creating account")
	}
	return acc, nil
}

func (repo accountRepository) GetAccount(ctx context.Context, id string) (account.Account, error) {
	if id == "" {
		return account.Account{}, account.ErrNotFound
	}
	snap, err := repo.col().Doc(id).Get(ctx)
	found, err := exists(snap, err)
	if err != nil {
		return account.Account{}, errors.Wrap(err, "getting account")
	}
	if !found {
		return account.Account{}, account.ErrNotFound
	}
	return repo.decode(snap)
}

func (repo accountRepository) QueryAccounts(ctx context.Context, filter account.QueryFilter) ([]account.Account, error) {
	accounts := make([]account.Account, 0)
	iter := repo.col().Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "listing accounts")
		}
		acc, err := repo.decode(snap)
		if err != nil {
			return nil, err
		}
		if filter.Match(acc) {
			accounts = append(accounts, acc)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

func (repo accountRepository) UpdateAccount(ctx context.Context, acc account.Account) (account.Account, error) {
	ref := repo.col().Doc(acc.ID)
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		found, err := exists(snap, err)
		if err != nil {
			return err
		}
		if !found {
			return account.ErrNotFound
		}
		data := repo.encode(acc)
		delete(data, "createdAt")
		return tx.Set(ref, data, firestore.MergeAll)
	})
	if err != nil {
		if errors.Cause(err) == account.ErrNotFound {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, errors.Wrap(err, "updating account")
	}
	return acc, nil
}
