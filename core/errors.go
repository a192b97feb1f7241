package core

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"
)

// ErrConflict is returned when an optimistic update kept losing against concurrent writers.
var ErrConflict = errors.New("concurrent update, please retry")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a client error. Err is the cause, Fields the per-field messages sent back.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError reports err against a single field, using err's text as the message.
func NewFieldError(field string, err error) error {
	return &ValidationError{Err: err, Fields: []FieldError{{Field: field, Error: err.Error()}}}
}

func (err ValidationError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	msgs := make([]string, 0, len(err.Fields))
	for _, fe := range err.Fields {
		msgs = append(msgs, fe.Field+": "+fe.Error)
	}
	return strings.Join(msgs, "; ")
}

// Field returns the message reported for field, if any.
func (err ValidationError) Field(field string) (string, bool) {
	for _, fe := range err.Fields {
		if fe.Field == field {
			return fe.Error, true
		}
	}
	return "", false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown reports whether err requires the service to stop: an explicit shutdown error, or a
// database connection that can no longer be used.
func IsShutdown(err error) bool {
	switch cause := errors.Cause(err); cause {
	case sql.ErrConnDone:
		return true
	default:
		_, ok := cause.(*shutdown)
		return ok
	}
}
