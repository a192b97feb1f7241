package firestorerepos_test

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/playmate/core/account"
	"github.com/trezcool/playmate/core/attendance"
	"github.com/trezcool/playmate/core/fee"
	firestorerepos "github.com/trezcool/playmate/storage/firestore"
	"github.com/trezcool/playmate/storage/repotest"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// newClient connects to the emulator under a fresh project, so every test starts empty.
func newClient(t *testing.T) *firestore.Client {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := firestore.NewClient(context.Background(), "playmate-"+uuid.New().String()[:8])
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAccountRepository(t *testing.T) {
	repotest.Accounts(t, firestorerepos.NewAccountRepository(newClient(t), ist))
}

func TestStudentRepository(t *testing.T) {
	repotest.Students(t, firestorerepos.NewStudentRepository(newClient(t), ist))
}

func TestAttendanceRepository(t *testing.T) {
	repotest.Attendance(t, firestorerepos.NewAttendanceRepository(newClient(t), ist))
}

func TestAttendanceRepository_concurrentScans(t *testing.T) {
	repotest.ConcurrentScans(t, firestorerepos.NewAttendanceRepository(newClient(t), ist))
}

func TestFeeRepository(t *testing.T) {
	repotest.Fees(t, firestorerepos.NewFeeRepository(newClient(t), ist))
}

func TestLegacyDocuments(t *testing.T) {
	client := newClient(t)
	ctx := context.Background()

	_, err := client.Collection("attendance").Doc("2024-03-05").Set(ctx, map[string]interface{}{
		"PM001": map[string]interface{}{"status": "Present", "inTime": "09:30", "outTime": "", "scans": []interface{}{"09:30"}},
	})
	require.NoError(t, err)
	_, err = client.Collection("fees").Doc("2024").Collection("students").Doc("PM001").Set(ctx, map[string]interface{}{
		"Jan": map[string]interface{}{"status": "Paid", "amount": "1500"},
		"Feb": map[string]interface{}{"status": "Due", "amount": ""},
	})
	require.NoError(t, err)
	_, err = client.Collection("loginAccounts").Doc("coach").Set(ctx, map[string]interface{}{
		"role": "coach", "password": "kick-2024",
	})
	require.NoError(t, err)

	t.Run("attendance scans as HH:MM", func(t *testing.T) {
		repo := firestorerepos.NewAttendanceRepository(client, ist)
		day, err := repo.GetDay(ctx, "2024-03-05")
		require.NoError(t, err)
		e := day.Entries["PM001"]
		assert.Equal(t, attendance.StatusPresent, e.Status)
		require.Len(t, e.Scans, 1)
		assert.True(t, time.Date(2024, 3, 5, 9, 30, 0, 0, ist).Equal(e.Scans[0]))
	})

	t.Run("fee amounts as text", func(t *testing.T) {
		repo := firestorerepos.NewFeeRepository(client, ist)
		l, err := repo.GetLedger(ctx, 2024, "PM001")
		require.NoError(t, err)
		require.NotNil(t, l.Month("Jan").Amount)
		assert.Equal(t, 1500.0, *l.Month("Jan").Amount)
		assert.Nil(t, l.Month("Feb").Amount)
		assert.Equal(t, fee.StatusDue, l.Month("Dec").Status)
	})

	t.Run("plain-text password", func(t *testing.T) {
		repo := firestorerepos.NewAccountRepository(client, ist)
		acc, err := repo.GetAccount(ctx, "coach")
		require.NoError(t, err)
		assert.Equal(t, account.RoleCoach, acc.Role)
		assert.True(t, acc.IsActive)
		assert.NoError(t, acc.CheckPassword("kick-2024"))
	})
}
