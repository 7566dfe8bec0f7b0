package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/avamec/salas/core"
	"github.com/avamec/salas/core/roster"
	"github.com/avamec/salas/core/summary"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf     *core.Config
	logger   core.Logger
	validate *validator.Validate
	analyzer *summary.Analyzer
	openDB   func() (*sql.DB, error)
	out      io.Writer
	tty      bool // decorate the output
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  reconcile -roster FILE -presence FILE [-cohort COHORT] [-analyze] - print the room report of a roster and a presence export (CSV)")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run database migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	reconcileCmd := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	reconcileCmd.SetOutput(cli.out)
	reconcileRoster := reconcileCmd.String("roster", "", "The roster CSV file (sign-up form export).")
	reconcilePresence := reconcileCmd.String("presence", "", "The presence CSV file: email and room columns, optionally cohort and name.")
	reconcileCohort := reconcileCmd.String("cohort", "", "Only report the rooms of this cohort.")
	reconcileAnalyze := reconcileCmd.Bool("analyze", false, "Print a narrative analysis of the problems.")

	switch args[1] {
	case "reconcile":
		if err := reconcileCmd.Parse(args[2:]); err != nil {
			if err == flag.ErrHelp {
				return errHelp
			}
			return err
		}
		if *reconcileRoster == "" || *reconcilePresence == "" {
			reconcileCmd.Usage()
			return errHelp
		}
		cohort := roster.Cohort(strings.ToUpper(core.CleanString(*reconcileCohort)))
		return cli.reconcile(*reconcileRoster, *reconcilePresence, cohort, *reconcileAnalyze)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}
