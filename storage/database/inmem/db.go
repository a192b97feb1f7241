package inmemdb

import (
	"sync"

	"github.com/trezcool/playmate/core/account"
	"github.com/trezcool/playmate/core/attendance"
	"github.com/trezcool/playmate/core/fee"
	"github.com/trezcool/playmate/core/student"
)

type (
	DB struct {
		account    *accountTable
		student    *studentTable
		attendance *attendanceTables
		fee        *feeTable
	}

	accountTable struct {
		table map[string]*account.Account
		mutex sync.RWMutex
	}

	studentTable struct {
		table map[string]*student.Student
		mutex sync.RWMutex
	}

	attendanceTables struct {
		days         map[string]attendance.DayRecord // permanent records
		workingDays  map[string]attendance.DayRecord // attendance_today
		lastRollover string
		mutex        sync.RWMutex
	}

	feeKey struct {
		year      int
		studentID string
	}

	feeTable struct {
		table map[feeKey]*fee.Ledger
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		account: &accountTable{table: make(map[string]*account.Account)},
		student: &studentTable{table: make(map[string]*student.Student)},
		attendance: &attendanceTables{
			days:        make(map[string]attendance.DayRecord),
			workingDays: make(map[string]attendance.DayRecord),
		},
		fee: &feeTable{table: make(map[feeKey]*fee.Ledger)},
	}
}
