package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/dos/core"
)

var errHelp = errors.New("help provided")

type resummarizer interface {
	Resummarize(ctx context.Context, sessionID string) error
}

type commandLine struct {
	conf     *core.Config
	db       *sql.DB
	sessions resummarizer
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createdb - create the app database user and database if missing")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) on the embedded migrations")
	fmt.Println("  summarize -session ID - re-run the summary and progress pipeline for an ended session")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	summarizeCmd := flag.NewFlagSet("summarize", flag.ContinueOnError)
	summarizeID := summarizeCmd.String("session", "", "The ID of a session stuck in the ended state.")

	switch args[1] {
	case "createdb":
		return createDBFunc(context.Background(), cli.conf)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "summarize":
		if err := summarizeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *summarizeID == "" {
			summarizeCmd.Usage()
			return errHelp
		}
		return cli.sessions.Resummarize(context.Background(), *summarizeID)
	default:
		cli.printUsage()
		return errHelp
	}
}
