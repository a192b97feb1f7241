package echoapi_test

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/playmate/apps/api/echo"
	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/attendance"
	"github.com/trezcool/playmate/testutil"
)

func Test_attendanceApi_scan(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateStudent(t, app.studentRepo, "PM001", "Arjun Rao")
	now := setNow(t, app.conf, "2024-03-11 09:00")

	tests := []struct {
		httpTest
		after    time.Duration // clock move before the scan
		wantKind attendance.ScanKind
	}{
		{httpTest: httpTest{name: "Auth required", body: []byte(`{"code": "PM001"}`), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}},
		{httpTest: httpTest{
			name: "empty code", token: app.coachToken, body: []byte(`{"code": "  "}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"code": "this field is required"}),
		}},
		{httpTest: httpTest{
			name: "unknown student", token: app.coachToken, body: []byte(`{"code": "PM999"}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, scanErr{Code: attendance.CodeInvalidID, Error: "Invalid ID"}),
		}},
		{httpTest: httpTest{name: "check in", token: app.coachToken, body: []byte(`{"code": "PM001"}`), wantCode: http.StatusOK}, wantKind: attendance.ScanIn},
		{httpTest: httpTest{
			name: "duplicate scan", token: app.coachToken, body: []byte(`{"code": "PM001"}`),
			wantCode: http.StatusTooManyRequests, wantData: marchallObj(t, scanErr{Code: attendance.CodeDuplicate, Error: attendance.MsgDuplicate}),
		}},
		{
			httpTest: httpTest{
				name: "too soon", token: app.coachToken, body: []byte(`{"code": "PM001"}`),
				wantCode: http.StatusConflict, wantData: marchallObj(t, scanErr{Code: attendance.CodeTooSoon, Error: "Scan after sixty minutes"}),
			},
			after: 10 * time.Minute,
		},
		{
			httpTest: httpTest{name: "check out", token: app.coachToken, body: []byte(`{"code": "PM001"}`), wantCode: http.StatusOK},
			after:    55 * time.Minute, wantKind: attendance.ScanOut,
		},
		{
			httpTest: httpTest{
				name: "completed", token: app.coachToken, body: []byte(`{"code": "PM001"}`),
				wantCode: http.StatusConflict, wantData: marchallObj(t, scanErr{Code: attendance.CodeCompleted, Error: "Attendance already done"}),
			},
			after: 3 * time.Hour,
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/attendance/scan"
		*now = now.Add(tt.after)

		t.Run(tt.name, func(t *testing.T) {
			rec := app.run(t, tt.httpTest)
			if tt.wantKind == "" {
				return
			}

			var res attendance.ScanResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.wantKind, res.Kind)
			assert.Equal(t, "Arjun Rao", res.Name)
			assert.Equal(t, now.Format(attendance.TimeLayout), res.Time)
			if tt.wantKind == attendance.ScanIn {
				assert.Equal(t, attendance.MsgWelcome, res.Message)
			} else {
				assert.Equal(t, attendance.MsgThankYou, res.Message)
			}
		})
	}

	e, err := app.attendanceRepo.GetDay(testContext(t), "2024-03-11")
	require.NoError(t, err)
	entry := e.Entries["PM001"]
	assert.Equal(t, attendance.StatusPresent, entry.Status)
	assert.Equal(t, "09:00", entry.InTime)
	assert.Equal(t, "10:05", entry.OutTime)
	assert.Len(t, entry.Scans, 2)
}

func Test_attendanceApi_reports(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateStudent(t, app.studentRepo, "PM001", "Arjun Rao")
	testutil.CreateStudent(t, app.studentRepo, "PM002", "Meera Iyer")
	now := setNow(t, app.conf, "2024-03-11 09:00")

	scan := func(code string) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", app.coachToken, []byte(`{"code": "`+code+`"}`))
		app.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	scan("PM001")
	*now = now.Add(65 * time.Minute)
	scan("PM001")

	report := attendance.DayReport{
		Date:    "2024-03-11",
		Present: 1,
		Absent:  1,
		Rows: []attendance.DayRow{
			{StudentID: "PM001", Name: "Arjun Rao", InTime: "09:00", OutTime: "10:05", Status: attendance.StatusPresent},
			{StudentID: "PM002", Name: "Meera Iyer", InTime: "-", OutTime: "-", Status: attendance.StatusAbsent},
		},
	}
	summaryRows := []attendance.SummaryRow{
		{StudentID: "PM001", Name: "Arjun Rao", Days: 1},
		{StudentID: "PM002", Name: "Meera Iyer", Days: 0},
	}
	summary := func(month string, pg, size int, rows ...attendance.SummaryRow) []byte {
		p := core.Paginate(len(summaryRows), pg, size)
		return marchallObj(t, echoapi.SummaryResponse{
			Month:        month,
			WorkingDays:  1,
			ListResponse: echoapi.ListResponse{Items: rows, Pagination: p, Links: p.Links},
		})
	}

	tests := []httpTest{
		{name: "today", path: "/v1/attendance/today", wantData: marchallObj(t, report)},
		{name: "day", path: "/v1/attendance/days/2024-03-11", wantData: marchallObj(t, report)},
		{
			name: "future day", path: "/v1/attendance/days/2024-03-12", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"date": "date is in the future"}),
		},
		{
			name: "invalid day", path: "/v1/attendance/days/11-03-2024", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"date": "invalid date: expected YYYY-MM-DD"}),
		},
		{
			name: "day without record", path: "/v1/attendance/days/2024-03-01",
			wantData: marchallObj(t, attendance.DayReport{
				Date:   "2024-03-01",
				Absent: 2,
				Rows: []attendance.DayRow{
					{StudentID: "PM001", Name: "Arjun Rao", InTime: "-", OutTime: "-", Status: attendance.StatusAbsent},
					{StudentID: "PM002", Name: "Meera Iyer", InTime: "-", OutTime: "-", Status: attendance.StatusAbsent},
				},
			}),
		},
		{name: "summary", path: "/v1/attendance/summary?month=2024-03", wantData: summary("2024-03", 1, 10, summaryRows...)},
		{name: "summary of the current month", path: "/v1/attendance/summary", wantData: summary("2024-03", 1, 10, summaryRows...)},
		{name: "summary page 2", path: "/v1/attendance/summary?month=2024-03&page=2&page_size=1", wantData: summary("2024-03", 2, 1, summaryRows[1])},
		{
			name: "summary: invalid month", path: "/v1/attendance/summary?month=March", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"month": "invalid month: expected YYYY-MM"}),
		},
		{
			name: "history", path: "/v1/students/PM001/attendance",
			wantData: marchallList(t, attendance.HistoryItem{Date: "2024-03-11", Status: attendance.StatusPresent, InTime: "09:00", OutTime: "10:05"}),
		},
		{name: "history (none)", path: "/v1/students/PM002/attendance?month=2024-02", wantData: []byte(`[]`)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.token = app.coachToken
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			app.run(t, tt)
		})
	}
}

func Test_attendanceApi_exports(t *testing.T) {
	app := newTestApp(t)
	testutil.CreateStudent(t, app.studentRepo, "PM001", "Arjun Rao")
	testutil.CreateStudent(t, app.studentRepo, "PM002", "Meera Iyer")
	setNow(t, app.conf, "2024-03-11 09:00")

	req, rec := newAuthRequest(http.MethodPost, "/v1/attendance/scan", app.coachToken, []byte(`{"code": "PM002"}`))
	app.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	tests := []struct {
		name         string
		path         string
		wantFilename string
		wantRows     [][]string
	}{
		{
			name:         "day",
			path:         "/v1/attendance/days/2024-03-11/export",
			wantFilename: "Attendance_2024-03-11.csv",
			wantRows: [][]string{
				{"ID", "Name", "IN", "OUT", "Status"},
				{"PM001", "Arjun Rao", "-", "-", "Absent"},
				{"PM002", "Meera Iyer", "09:00", "-", "Present"},
			},
		},
		{
			name:         "summary",
			path:         "/v1/attendance/summary/export?month=2024-03",
			wantFilename: "Monthly-Summary_2024-03.csv",
			wantRows: [][]string{
				{"Student ID", "Name", "Attendance Days"},
				{"PM001", "Arjun Rao", "0"},
				{"PM002", "Meera Iyer", "1"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, app.coachToken)
			app.server.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, `attachment; filename="`+tt.wantFilename+`"`, rec.Header().Get("Content-Disposition"))

			rows, err := csv.NewReader(rec.Body).ReadAll()
			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, rows)
		})
	}

	t.Run("future day", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/days/2030-01-01/export", app.coachToken)
		app.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, rec.Header().Get("Content-Disposition"))
	})
}
