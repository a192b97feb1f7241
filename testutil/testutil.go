// Package testutil holds the fixtures shared by the package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/account"
	"github.com/trezcool/playmate/core/fee"
	"github.com/trezcool/playmate/core/student"
	"github.com/trezcool/playmate/storage/database"
)

// NewConfig returns the default config, pointed at a throwaway sqlite file.
func NewConfig(t *testing.T) *core.Config {
	conf := core.NewConfig()
	conf.TestMode = true
	conf.Storage = "sql"
	conf.Database.Engine = database.EngineSQLite
	conf.Database.Path = filepath.Join(t.TempDir(), "playmate.db")
	conf.Attendance.DigestRecipients = nil
	return conf
}

// PrepareDB opens a migrated sqlite database living as long as the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "playmate.db"))
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)
	return validate, translator
}

func CreateAccount(t *testing.T, repo account.Repository, id, name, role, pwd string, isActive bool) account.Account {
	now := time.Now().UTC().Truncate(time.Millisecond)
	acc := account.Account{
		ID:        id,
		Name:      name,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := acc.SetPassword(pwd); err != nil {
			t.Fatalf("CreateAccount() failed: %v", err)
		}
	}
	acc, err := repo.CreateAccount(testContext(t), acc)
	if err != nil {
		t.Fatalf("CreateAccount() failed: %v", err)
	}
	return acc
}

// CreateStudent stores a student; mods may fill in the optional fields.
func CreateStudent(t *testing.T, repo student.Repository, id, name string, mods ...func(*student.Student)) student.Student {
	now := time.Now().UTC().Truncate(time.Millisecond)
	s := student.Student{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}
	for _, mod := range mods {
		mod(&s)
	}
	s, err := repo.CreateStudent(testContext(t), s)
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

// WithPhone sets the student's phone.
func WithPhone(phone string) func(*student.Student) {
	return func(s *student.Student) { s.Phone = phone }
}

// WithBelt sets the student's belt.
func WithBelt(belt string) func(*student.Student) {
	return func(s *student.Student) { s.Belt = belt }
}
