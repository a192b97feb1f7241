package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/playmate/core"
)

func newScheduler() *Scheduler {
	return New(&core.Config{Timezone: "Asia/Kolkata"}, core.NewNopLogger())
}

func TestScheduler_AddJob(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "five fields", spec: "5 0 * * *"},
		{name: "descriptor", spec: "@daily"},
		{name: "seconds not allowed", spec: "0 5 0 * * *", wantErr: true},
		{name: "garbage", spec: "every day", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newScheduler().AddJob("rollover", tt.spec, func(context.Context) error { return nil })
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScheduler_runsJobs(t *testing.T) {
	s := newScheduler()
	var runs int32
	require.NoError(t, s.AddJob("tick", "@every 1s", func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("failures are only logged")
	}))
	s.Start()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestScheduler_RunNow(t *testing.T) {
	s := newScheduler()
	done := make(chan struct{})
	s.RunNow("catch-up", func(ctx context.Context) error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunNow() did not run the job")
	}
}

func TestScheduler_Stop_cancelsJobs(t *testing.T) {
	s := newScheduler()
	started := make(chan struct{})
	cancelled := make(chan struct{})
	require.NoError(t, s.AddJob("slow", "@every 1s", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, s.Stop(ctx))

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled")
	}
}
