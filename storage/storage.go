// Package storage opens the configured backend and hands out its repositories.
package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/account"
	"github.com/trezcool/playmate/core/attendance"
	"github.com/trezcool/playmate/core/fee"
	"github.com/trezcool/playmate/core/student"
	"github.com/trezcool/playmate/storage/database"
	sqlxrepos "github.com/trezcool/playmate/storage/database/sqlx"
	firestorerepos "github.com/trezcool/playmate/storage/firestore"
)

const (
	BackendSQL       = "sql"
	BackendFirestore = "firestore"
)

type Repositories struct {
	Account    account.Repository
	Student    student.Repository
	Attendance attendance.Repository
	Fee        fee.Repository

	close func() error
}

// Close releases the underlying connection.
func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// Open connects to conf.Storage. The SQL database is created and migrated when needed.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (*Repositories, error) {
	switch conf.Storage {
	case BackendSQL:
		return openSQL(conf, logger)
	case BackendFirestore:
		return openFirestore(ctx, conf, logger)
	default:
		return nil, fmt.Errorf("unknown storage %q: expected %s or %s", conf.Storage, BackendSQL, BackendFirestore)
	}
}

func openSQL(conf *core.Config, logger core.Logger) (*Repositories, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Info(fmt.Sprintf("connected to %s database", db.DriverName()))
	return NewSQL(db), nil
}

// NewSQL returns the repositories of an open (and migrated) database. Close closes db.
func NewSQL(db *sqlx.DB) *Repositories {
	return &Repositories{
		Account:    sqlxrepos.NewAccountRepository(db),
		Student:    sqlxrepos.NewStudentRepository(db),
		Attendance: sqlxrepos.NewAttendanceRepository(db),
		Fee:        sqlxrepos.NewFeeRepository(db),
		close:      db.Close,
	}
}

func openFirestore(ctx context.Context, conf *core.Config, logger core.Logger) (*Repositories, error) {
	client, err := firestorerepos.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	logger.Info(fmt.Sprintf("connected to firestore project %q", conf.Firestore.ProjectID))

	loc := conf.Location()
	return &Repositories{
		Account:    firestorerepos.NewAccountRepository(client, loc),
		Student:    firestorerepos.NewStudentRepository(client, loc),
		Attendance: firestorerepos.NewAttendanceRepository(client, loc),
		Fee:        firestorerepos.NewFeeRepository(client, loc),
		close:      client.Close,
	}, nil
}
