package echoapi_test

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/playmate/core/fee"
	"github.com/trezcool/playmate/testutil"
)

func Test_feeApi_ledgers(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateStudent(t, app.studentRepo, "PM001", "Arjun Rao", testutil.WithPhone("9845012345"))
	testutil.CreateStudent(t, app.studentRepo, "PM002", "Meera Iyer")

	t.Run("Auth required", func(t *testing.T) {
		app.run(t, httpTest{method: http.MethodGet, path: "/v1/fees/2024", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)})
	})
	t.Run("invalid year", func(t *testing.T) {
		app.run(t, httpTest{
			method: http.MethodGet, path: "/v1/fees/lol", token: app.coachToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"year": "invalid year"}),
		})
	})
	t.Run("ledgers are created on first access", func(t *testing.T) {
		rec := app.run(t, httpTest{method: http.MethodGet, path: "/v1/fees/2024", token: app.coachToken, wantCode: http.StatusOK})

		var resp struct {
			Items []fee.LedgerRow `json:"items"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Items, 2)
		assert.Equal(t, "PM001", resp.Items[0].StudentID)
		assert.Equal(t, "9845012345", resp.Items[0].Phone)
		for _, m := range fee.Months {
			assert.Equal(t, fee.StatusDue, resp.Items[1].Months[m].Status)
		}

		ledgers, err := app.feeRepo.QueryLedgers(testContext(t), 2024)
		require.NoError(t, err)
		assert.Len(t, ledgers, 2)
	})
	t.Run("retrieve", func(t *testing.T) {
		want := fee.NewLedger(2025, "PM002")
		rec := app.run(t, httpTest{method: http.MethodGet, path: "/v1/fees/2025/PM002", token: app.coachToken, wantCode: http.StatusOK})

		var l fee.Ledger
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
		assert.Equal(t, want.Year, l.Year)
		assert.Equal(t, want.Months, l.Months)
	})
	t.Run("retrieve (unknown student)", func(t *testing.T) {
		app.run(t, httpTest{
			method: http.MethodGet, path: "/v1/fees/2024/PM999", token: app.coachToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"}),
		})
	})
}

func Test_feeApi_update(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateStudent(t, app.studentRepo, "PM001", "Arjun Rao")

	tests := []httpTest{
		{name: "Admin required", path: "/v1/fees/2024/PM001/jan", token: app.coachToken, body: []byte(`{"status": "paid"}`), wantCode: http.StatusForbidden},
		{
			name: "nothing to update", path: "/v1/fees/2024/PM001/jan", token: app.adminToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "provide a status or an amount"}),
		},
		{
			name: "invalid status", path: "/v1/fees/2024/PM001/jan", token: app.adminToken, body: []byte(`{"status": "later"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "must be one of Paid, Due"}),
		},
		{name: "negative amount", path: "/v1/fees/2024/PM001/jan", token: app.adminToken, body: []byte(`{"amount": -1}`), wantCode: http.StatusBadRequest},
		{
			name: "invalid month", path: "/v1/fees/2024/PM001/foo", token: app.adminToken, body: []byte(`{"status": "paid"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"month": "invalid month: expected Jan..Dec"}),
		},
		{
			name: "word starting with a month", path: "/v1/fees/2024/PM001/junk", token: app.adminToken, body: []byte(`{"status": "paid"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"month": "invalid month: expected Jan..Dec"}),
		},
		{name: "unknown student", path: "/v1/fees/2024/PM999/jan", token: app.adminToken, body: []byte(`{"status": "paid"}`), wantCode: http.StatusNotFound},
		{name: "set amount", path: "/v1/fees/2024/PM001/jan", token: app.adminToken, body: []byte(`{"amount": 1500}`), wantCode: http.StatusOK},
		{name: "set status", path: "/v1/fees/2024/PM001/January", token: app.adminToken, body: []byte(`{"status": " PAID "}`), wantCode: http.StatusOK},
		{name: "set other month", path: "/v1/fees/2024/PM001/feb", token: app.adminToken, body: []byte(`{"status": "Paid", "amount": 1200}`), wantCode: http.StatusOK},
		{name: "clear amount", path: "/v1/fees/2024/PM001/feb", token: app.adminToken, body: []byte(`{"clear_amount": true}`), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut

		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}

	l, err := app.feeRepo.GetLedger(testContext(t), 2024, "PM001")
	require.NoError(t, err)

	jan := l.Month("Jan")
	assert.Equal(t, fee.StatusPaid, jan.Status)
	require.NotNil(t, jan.Amount, "status update keeps the amount")
	assert.Equal(t, 1500.0, *jan.Amount)

	feb := l.Month("Feb")
	assert.Equal(t, fee.StatusPaid, feb.Status)
	assert.Nil(t, feb.Amount)

	assert.Equal(t, fee.StatusDue, l.Month("Mar").Status)
}

func Test_feeApi_reminder(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateStudent(t, app.studentRepo, "PM001", "Arjun Rao", testutil.WithPhone("9845012345"))
	testutil.CreateStudent(t, app.studentRepo, "PM002", "Meera Iyer")

	req, rec := newAuthRequest(http.MethodPut, "/v1/fees/2024/PM001/mar", app.adminToken, []byte(`{"amount": 1500}`))
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("no phone", func(t *testing.T) {
		app.run(t, httpTest{
			method: http.MethodGet, path: "/v1/fees/2024/PM002/mar/reminder", token: app.coachToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"phone": "the student has no phone number"}),
		})
	})
	t.Run("invalid month", func(t *testing.T) {
		app.run(t, httpTest{method: http.MethodGet, path: "/v1/fees/2024/PM001/13/reminder", token: app.coachToken, wantCode: http.StatusBadRequest})
	})
	t.Run("with amount", func(t *testing.T) {
		rec := app.run(t, httpTest{method: http.MethodGet, path: "/v1/fees/2024/PM001/mar/reminder", token: app.coachToken, wantCode: http.StatusOK})

		var r fee.Reminder
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
		assert.Equal(t, "Mar", r.Month)
		assert.Equal(t, fee.StatusDue, r.Status)
		assert.Contains(t, r.Message, "Hello Arjun Rao,")
		assert.Contains(t, r.Message, "Amount: ₹1500")
		assert.True(t, strings.HasPrefix(r.URL, "https://wa.me/"+app.conf.PhoneCountryCode+"9845012345?text=Hello%20Arjun%20Rao"), r.URL)
		assert.NotContains(t, r.URL, "+")
	})
	t.Run("without amount", func(t *testing.T) {
		rec := app.run(t, httpTest{method: http.MethodGet, path: "/v1/fees/2024/PM001/apr/reminder", token: app.coachToken, wantCode: http.StatusOK})

		var r fee.Reminder
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
		assert.Contains(t, r.Message, "Amount: ₹Not Entered")
	})
}

func Test_feeApi_export(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateStudent(t, app.studentRepo, "PM001", "Arjun Rao")

	req, rec := newAuthRequest(http.MethodPut, "/v1/fees/2024/PM001/dec", app.adminToken, []byte(`{"status": "paid"}`))
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, "/v1/fees/2024/export", app.coachToken)
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="Fees_2024.csv"`, rec.Header().Get("Content-Disposition"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, append([]string{"Student ID", "Name"}, fee.Months...), rows[0])
	assert.Equal(t, []string{"PM001", "Arjun Rao", "Due", "Due", "Due", "Due", "Due", "Due", "Due", "Due", "Due", "Due", "Due", "Paid"}, rows[1])
}
