package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"golang.org/x/term"

	"github.com/avamec/salas/core"
	"github.com/avamec/salas/core/summary"
	logsvc "github.com/avamec/salas/services/logger"
	summarysvc "github.com/avamec/salas/services/summary"
	"github.com/avamec/salas/storage/database"
)

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// start CLI
	cli := commandLine{
		conf:     conf,
		logger:   logger,
		validate: core.NewValidator(core.NewTranslator()),
		analyzer: newAnalyzer(conf, logger),
		openDB: func() (*sql.DB, error) {
			if err := database.CreateIfNotExist(conf); err != nil {
				return nil, err
			}
			return database.Open(conf)
		},
		out: os.Stdout,
		tty: term.IsTerminal(int(os.Stdout.Fd())),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %s", err), err)
		}
		os.Exit(1)
	}
}

func newAnalyzer(conf *core.Config, logger core.Logger) *summary.Analyzer {
	if !conf.Ollama.Enabled {
		return summary.NewAnalyzer(nil, logger)
	}
	llm, err := summarysvc.NewOllamaSummarizer(conf)
	if err != nil {
		logger.Warn(fmt.Sprintf("ollama disabled: %v", err), err)
		return summary.NewAnalyzer(nil, logger)
	}
	return summary.NewAnalyzer(llm, logger)
}
