package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/playmate/core"
	"github.com/trezcool/playmate/core/account"
	"github.com/trezcool/playmate/core/attendance"
	"github.com/trezcool/playmate/core/fee"
	"github.com/trezcool/playmate/core/student"
	emailsvc "github.com/trezcool/playmate/services/email"
	logsvc "github.com/trezcool/playmate/services/logger"
	"github.com/trezcool/playmate/storage"
	"github.com/trezcool/playmate/storage/database"
)

func main() {
	os.Exit(run())
}

func run() int {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	defer logger.Close()

	// set up storage; migrations are left to the migrate command
	cli := commandLine{out: os.Stdout}
	var repos *storage.Repositories
	if conf.Storage == storage.BackendSQL {
		if err := database.CreateIfNotExist(conf); err != nil {
			logger.Error(fmt.Sprintf("creating database: %v", err), err)
			return 1
		}
		db, err := database.Open(conf)
		if err != nil {
			logger.Error(fmt.Sprintf("opening database: %v", err), err)
			return 1
		}
		cli.db = db.DB
		repos = storage.NewSQL(db)
	} else {
		var err error
		if repos, err = storage.Open(context.Background(), conf, logger); err != nil {
			logger.Error(fmt.Sprintf("setting up %s storage: %v", conf.Storage, err), err)
			return 1
		}
	}
	defer func() { _ = repos.Close() }()

	if err := core.ParseEmailTemplates(); err != nil {
		logger.Error(fmt.Sprintf("parsing email templates: %v", err), err)
		return 1
	}
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

	// start CLI
	cli.validate = validate
	cli.accountSvc = account.NewService(repos.Account, validate, logger)
	cli.studentSvc = student.NewService(repos.Student, validate, logger)
	cli.attendanceSvc = attendance.NewService(repos.Attendance, cli.studentSvc, mailSvc, logger, conf)

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			if fields := core.ValidationFieldErrors(err, translator); len(fields) > 0 {
				for _, fe := range fields {
					fmt.Fprintf(os.Stderr, "%s: %s\n", fe.Field, fe.Error)
				}
			} else {
				fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
			}
		}
		return 1
	}
	return 0
}
