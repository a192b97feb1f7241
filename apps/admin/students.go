package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

func (cli *commandLine) importStudents(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening roster")
	}
	defer func() { _ = f.Close() }()

	res, err := cli.studentSvc.Import(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created: %d, updated: %d, skipped: %d\n", res.Created, res.Updated, res.Skipped)
	for _, re := range res.Errors {
		fmt.Fprintf(cli.out, "  row %d (%s): %s\n", re.Row, re.ID, re.Error)
	}
	return nil
}

func (cli *commandLine) rollover(ctx context.Context) error {
	res, err := cli.attendanceSvc.Rollover(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintf(cli.out, "rollover of %s already done\n", res.Day)
		return nil
	}
	fmt.Fprintf(cli.out, "rollover of %s: %d students seeded, %d stale days removed\n", res.Day, res.Seeded, res.Deleted)
	return nil
}
