package attendance

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

type ScanKind string

const (
	ScanIn  ScanKind = "in"
	ScanOut ScanKind = "out"
)

// user facing messages
const (
	MsgWelcome   = "Welcome to Playmate"
	MsgThankYou  = "Thank you"
	MsgTooSoon   = "Scan after sixty minutes"
	MsgCompleted = "Attendance already done"
	MsgInvalidID = "Invalid ID"
	MsgDuplicate = "Scan already received, please wait"
)

// scan rejection codes
const (
	CodeInvalidID = "invalid_id"
	CodeTooSoon   = "too_soon"
	CodeCompleted = "completed"
	CodeDuplicate = "duplicate"
)

// ScanError is a scan rejected without any state change.
type ScanError struct {
	Code    string
	Message string
}

func (e *ScanError) Error() string { return e.Message }

var (
	ErrUnknownStudent = &ScanError{Code: CodeInvalidID, Message: MsgInvalidID}
	ErrCompleted      = &ScanError{Code: CodeCompleted, Message: MsgCompleted}
	ErrDuplicateScan  = &ScanError{Code: CodeDuplicate, Message: MsgDuplicate}
)

// IsScanError reports whether err is a scan rejection with the given code.
func IsScanError(err error, code string) bool {
	serr, ok := errors.Cause(err).(*ScanError)
	return ok && serr.Code == code
}

func tooSoonError(minInterval time.Duration) *ScanError {
	msg := MsgTooSoon
	if minInterval != time.Hour {
		msg = fmt.Sprintf("Scan after %d minutes", int(minInterval.Minutes()))
	}
	return &ScanError{Code: CodeTooSoon, Message: msg}
}

// Apply records a scan at `at` following the IN/OUT rules:
// no scan yet -> IN; one scan at least minInterval old -> OUT; otherwise the entry is left untouched.
func (e *Entry) Apply(at time.Time, minInterval time.Duration) (ScanKind, error) {
	switch len(e.Scans) {
	case 0:
		e.Scans = []time.Time{at}
		e.InTime = at.Format(TimeLayout)
		e.Status = StatusPresent
		return ScanIn, nil
	case 1:
		if at.Sub(e.Scans[0]) < minInterval {
			return "", tooSoonError(minInterval)
		}
		e.Scans = append(e.Scans, at)
		e.OutTime = at.Format(TimeLayout)
		return ScanOut, nil
	default:
		return "", ErrCompleted
	}
}

// Clone returns a copy of e that does not share its scans.
func (e Entry) Clone() Entry {
	scans := make([]time.Time, len(e.Scans))
	copy(scans, e.Scans)
	e.Scans = scans
	return e
}
