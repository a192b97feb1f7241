// Package firestorerepos implements the repositories on top of Cloud Firestore, reading the
// documents written by the legacy web console as well as its own.
package firestorerepos

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/trezcool/playmate/core"
)

// collections & documents
const (
	colStudents    = "students"
	colAttendance  = "attendance"
	colWorkingDays = "attendance_today"
	colFees        = "fees"
	colFeeStudents = "students"
	colAccounts    = "loginAccounts"
	colSystem      = "system"
	docCleanup     = "cleanup"
)

// Open connects to the configured project. FIRESTORE_EMULATOR_HOST is honoured by the client.
func Open(ctx context.Context, conf *core.Config) (*firestore.Client, error) {
	var opts []option.ClientOption
	if conf.Firestore.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.Firestore.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, conf.Firestore.ProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "opening firestore")
	}
	return client, nil
}

func isNotFound(err error) bool { return status.Code(err) == codes.NotFound }

func isAlreadyExists(err error) bool { return status.Code(err) == codes.AlreadyExists }

// exists tolerates the NotFound error returned along with a missing document.
func exists(snap *firestore.DocumentSnapshot, err error) (bool, error) {
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return snap != nil && snap.Exists(), nil
}

// legacy timestamps written by the browser with toLocaleString("en-IN")
var legacyTimeLayouts = []string{
	"2/1/2006, 3:04:05 pm",
	"2/1/2006, 3:04:05 PM",
	"2/1/2006, 15:04:05",
}

func getString(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func getBool(data map[string]interface{}, key string, def bool) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return def
}

func getTime(data map[string]interface{}, key string, loc *time.Location) time.Time {
	switch v := data[key].(type) {
	case time.Time:
		return v.UTC()
	case int64:
		return time.UnixMilli(v).UTC()
	case string:
		for _, layout := range legacyTimeLayouts {
			if t, err := time.ParseInLocation(layout, v, loc); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// getAmount reads a fee amount stored as a number or as text ("" meaning none).
func getAmount(v interface{}) *float64 {
	var amount float64
	switch a := v.(type) {
	case float64:
		amount = a
	case int64:
		amount = float64(a)
	case string:
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil
		}
		amount = f
	default:
		return nil
	}
	return &amount
}

func timeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
