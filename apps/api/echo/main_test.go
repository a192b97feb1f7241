package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	echoapi "github.com/trezcool/playmate/apps/api/echo"
	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/account"
	"github.com/trezcool/playmate/core/attendance"
	"github.com/trezcool/playmate/core/fee"
	"github.com/trezcool/playmate/core/student"
	emailsvc "github.com/trezcool/playmate/services/email"
	inmemdb "github.com/trezcool/playmate/storage/database/inmem"
	"github.com/trezcool/playmate/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type scanErr struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// testApp is an API server backed by the in-memory repositories.
type testApp struct {
	conf           *core.Config
	server         *echoapi.Server
	accountRepo    account.Repository
	studentRepo    student.Repository
	attendanceRepo attendance.Repository
	feeRepo        fee.Repository
	mailSvc        *emailsvc.ConsoleServiceMock

	admin      account.Account
	coach      account.Account
	adminToken string
	coachToken string
}

const testPassword = "s3cure-Pass"

func newTestApp(t *testing.T) *testApp {
	conf := testutil.NewConfig(t)
	conf.Debug = false

	db := inmemdb.Open()
	validate, translator := testutil.NewValidator()
	logger := core.NewNopLogger()

	app := &testApp{
		conf:           conf,
		accountRepo:    inmemdb.NewAccountRepository(db),
		studentRepo:    inmemdb.NewStudentRepository(db),
		attendanceRepo: inmemdb.NewAttendanceRepository(db),
		feeRepo:        inmemdb.NewFeeRepository(db),
		mailSvc:        emailsvc.NewConsoleServiceMock(conf),
	}

	studentSvc := student.NewService(app.studentRepo, validate, logger)
	app.server = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		AccountSvc:     account.NewService(app.accountRepo, validate, logger),
		StudentSvc:     studentSvc,
		AttendanceSvc:  attendance.NewService(app.attendanceRepo, studentSvc, app.mailSvc, logger, conf),
		FeeSvc:         fee.NewService(app.feeRepo, studentSvc, validate, logger, conf),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	app.admin = testutil.CreateAccount(t, app.accountRepo, "sensei", "Sensei", account.RoleAdmin, testPassword, true)
	app.coach = testutil.CreateAccount(t, app.accountRepo, "coach01", "Coach", account.RoleCoach, testPassword, true)
	app.adminToken = getToken(t, app.conf, app.admin)
	app.coachToken = getToken(t, app.conf, app.coach)
	return app
}

// run serves tt and checks the response code and body (when tt.wantData is set).
func (app *testApp) run(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	app.server.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
	return rec
}

// setNow fixes the attendance clock (school-local) for the rest of the test.
func setNow(t *testing.T, conf *core.Config, value string) *time.Time {
	now, err := time.ParseInLocation("2006-01-02 15:04", value, conf.Location())
	if err != nil {
		t.Fatalf("setNow() failed: %v", err)
	}
	orig := attendance.NowFunc
	attendance.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { attendance.NowFunc = orig })
	return &now
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, acc account.Account) string {
	claims := echoapi.GetAccountClaims(acc, conf)
	token, err := echoapi.GenerateToken(claims, conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func TestServer_home(t *testing.T) {
	app := newTestApp(t)
	req, rec := newAuthRequest(http.MethodGet, "/", "")
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "Welcome to Playmate API!" {
		t.Errorf("home() = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}
}

func TestServer_metrics(t *testing.T) {
	app := newTestApp(t)
	req, rec := newAuthRequest(http.MethodGet, "/metrics", "")
	app.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics code = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("go_goroutines")) {
		t.Error("metrics body does not expose the go collector")
	}
}
