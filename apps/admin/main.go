package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	dig_container "github.com/trezcool/dos/apps/api/di/dig"
	"github.com/trezcool/dos/core"
	"github.com/trezcool/dos/core/session"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	c := dig_container.NewWithoutMigrations()

	var code int
	errAndDie(c.Invoke(func(conf *core.Config, db *sqlx.DB, sessionSvc *session.Service) {
		defer db.Close()

		cli := commandLine{
			conf:     conf,
			db:       db.DB,
			sessions: sessionSvc,
		}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				logger.Printf("\nerror: %s\n", err)
			}
			code = 1
		}
	}))
	os.Exit(code)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
