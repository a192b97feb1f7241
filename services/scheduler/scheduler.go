// Package scheduler runs the periodic jobs (daily attendance rollover) on school-local time.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/playmate/core"
)

type Job func(ctx context.Context) error

type Scheduler struct {
	cron   *cron.Cron
	logger core.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func New(conf *core.Config, logger core.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(conf.Location()),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob schedules job with a standard 5-field cron spec (or a descriptor like "@daily").
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return errors.Wrapf(err, "scheduling %s", name)
	}
	return nil
}

// RunNow runs job once in the background, e.g. to catch up on a run missed while down.
func (s *Scheduler) RunNow(name string, job Job) {
	go s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) {
	start := time.Now()
	if err := job(s.ctx); err != nil {
		s.logger.Error(fmt.Sprintf("job %s failed", name), err)
		return
	}
	s.logger.Info(fmt.Sprintf("job %s done in %s", name, time.Since(start)))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for the running jobs, cancelling them when ctx is done first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return errors.Wrap(ctx.Err(), "waiting for running jobs")
	}
}

// cronLogger routes cron's own logs to core.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{err}, keysAndValues...)...)
}
