package inmemdb_test

import (
	"testing"

	inmemdb "github.com/trezcool/playmate/storage/database/inmem"
	"github.com/trezcool/playmate/storage/repotest"
)

func TestAccountRepository(t *testing.T) {
	repotest.Accounts(t, inmemdb.NewAccountRepository(inmemdb.Open()))
}

func TestStudentRepository(t *testing.T) {
	repotest.Students(t, inmemdb.NewStudentRepository(inmemdb.Open()))
}

func TestAttendanceRepository(t *testing.T) {
	repotest.Attendance(t, inmemdb.NewAttendanceRepository(inmemdb.Open()))
}

func TestAttendanceRepository_concurrentScans(t *testing.T) {
	repotest.ConcurrentScans(t, inmemdb.NewAttendanceRepository(inmemdb.Open()))
}

func TestFeeRepository(t *testing.T) {
	repotest.Fees(t, inmemdb.NewFeeRepository(inmemdb.Open()))
}
