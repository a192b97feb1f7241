package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core/account"
)

// addUser updates or creates an account.Account. Existing accounts are re-activated.
func (cli *commandLine) addUser(ctx context.Context, id, name, role, pwd string) error {
	acc, err := cli.accountSvc.Get(ctx, id)
	if err != nil {
		if errors.Cause(err) != account.ErrNotFound {
			return err
		}

		na := account.NewAccount{ID: id, Name: name, Role: role, Password: pwd, PasswordConfirm: pwd}
		if err := na.Validate(ctx, cli.validate, cli.accountSvc); err != nil {
			return err
		}
		if acc, err = cli.accountSvc.Create(ctx, na); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "account %q created (%s)\n", acc.ID, acc.Role)
		return nil
	}

	active := true
	ua := account.UpdateAccount{Role: &role, IsActive: &active}
	if name != "" {
		ua.Name = &name
	}
	if err := ua.Validate(cli.validate); err != nil {
		return err
	}
	if err := cli.accountSvc.SetPassword(ctx, acc.ID, account.SetPassword{Password: pwd, PasswordConfirm: pwd}); err != nil {
		return err
	}
	if acc, err = cli.accountSvc.Update(ctx, acc.ID, ua); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "account %q updated (%s)\n", acc.ID, acc.Role)
	return nil
}
