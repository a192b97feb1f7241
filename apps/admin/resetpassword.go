package main

import (
	"context"
	"fmt"

	"github.com/trezcool/playmate/core/account"
)

func (cli *commandLine) resetPassword(ctx context.Context, id, pwd string) error {
	acc, err := cli.accountSvc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := cli.accountSvc.SetPassword(ctx, acc.ID, account.SetPassword{Password: pwd, PasswordConfirm: pwd}); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %q has been changed\n", acc.ID)
	return nil
}
