package testutil

import (
	"context"
	"testing"
	"time"
)

// testContext is cancelled when the test ends.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// FixedNow returns a clock stuck at the given local time.
func FixedNow(loc *time.Location, layout, value string) func() time.Time {
	tm, err := time.ParseInLocation(layout, value, loc)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return tm }
}
