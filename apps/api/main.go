package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register /debug/pprof on the default mux
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/playmate/apps/api/echo"
	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/account"
	"github.com/trezcool/playmate/core/attendance"
	"github.com/trezcool/playmate/core/fee"
	"github.com/trezcool/playmate/core/student"
	emailsvc "github.com/trezcool/playmate/services/email"
	logsvc "github.com/trezcool/playmate/services/logger"
	"github.com/trezcool/playmate/services/scheduler"
	"github.com/trezcool/playmate/storage"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	newLogger := func(prefix string) *logsvc.RollbarLogger {
		return logsvc.NewRollbarLogger(
			log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
			conf,
		)
	}
	logger := newLogger("API")
	dbLogger := newLogger("DB")
	cronLogger := newLogger("CRON")
	defer logger.Close()

	// set up storage
	repos, err := storage.Open(context.Background(), conf, dbLogger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up %s storage: %v", conf.Storage, err), err)
	}
	defer func() {
		if err = repos.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	student.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)

	accountSvc := account.NewService(repos.Account, validate, logger)
	studentSvc := student.NewService(repos.Student, validate, logger)
	attendanceSvc := attendance.NewService(repos.Attendance, studentSvc, mailSvc, logger, conf)
	feeSvc := fee.NewService(repos.Fee, studentSvc, validate, logger, conf)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	if err = core.ParseEmailTemplates(); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("storage").Set(conf.Storage)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Scheduler

	rollover := func(ctx context.Context) error {
		res, err := attendanceSvc.Rollover(ctx)
		if err == nil && res.Skipped {
			cronLogger.Debug(fmt.Sprintf("rollover of %s already done", res.Day))
		}
		return err
	}

	sched := scheduler.New(conf, cronLogger)
	if err = sched.AddJob("rollover", conf.Attendance.RolloverSchedule, rollover); err != nil {
		logger.Fatal(fmt.Sprintf("starting scheduler: %v", err), err)
	}
	sched.RunNow("rollover", rollover) // catch up if the process was down at the scheduled time
	sched.Start()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:          conf,
			Logger:        logger,
			AccountSvc:    accountSvc,
			StudentSvc:    studentSvc,
			AttendanceSvc: attendanceSvc,
			FeeSvc:        feeSvc,
			Validate:      validate,
			Translator:    translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = sched.Stop(ctx); err != nil {
			cronLogger.Error(fmt.Sprintf("could not stop scheduler gracefully: %v", err), err)
		}

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
