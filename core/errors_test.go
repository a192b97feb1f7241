package core

import (
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	errNoPhone := errors.New("student has no phone number")

	tests := []struct {
		name      string
		err       error
		wantMsg   string
		wantField string
		wantFound bool
	}{
		{
			name:      "single field",
			err:       NewFieldError("phone", errNoPhone),
			wantMsg:   "student has no phone number",
			wantField: "student has no phone number",
			wantFound: true,
		},
		{
			name: "fields only",
			err: NewValidationError(nil,
				FieldError{Field: "month", Error: "invalid month"},
				FieldError{Field: "phone", Error: "required"},
			),
			wantMsg:   "month: invalid month; phone: required",
			wantField: "required",
			wantFound: true,
		},
		{
			name:    "no field",
			err:     NewValidationError(errNoPhone),
			wantMsg: "student has no phone number",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr, ok := errors.Cause(errors.Wrap(tt.err, "validating")).(*ValidationError)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, verr.Error())

			msg, found := verr.Field("phone")
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantField, msg)
		})
	}

	verr := NewFieldError("phone", errNoPhone).(*ValidationError)
	assert.Equal(t, errNoPhone, verr.Err)
}

func TestIsShutdown(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "shutdown", err: NewShutdownError("integrity issue"), want: true},
		{name: "wrapped shutdown", err: errors.Wrap(NewShutdownError("integrity issue"), "saving"), want: true},
		{name: "closed connection", err: errors.Wrap(sql.ErrConnDone, "querying students"), want: true},
		{name: "no rows", err: errors.Wrap(sql.ErrNoRows, "querying students")},
		{name: "validation", err: NewFieldError("id", errors.New("taken"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsShutdown(tt.err))
		})
	}
}
