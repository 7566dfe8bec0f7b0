package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/avamec/salas/apps/api/echo"
	"github.com/avamec/salas/core"
	"github.com/avamec/salas/core/session"
	"github.com/avamec/salas/core/summary"
	emailsvc "github.com/avamec/salas/services/email"
	logsvc "github.com/avamec/salas/services/logger"
	summarysvc "github.com/avamec/salas/services/summary"
	"github.com/avamec/salas/storage/database"
	inmemdb "github.com/avamec/salas/storage/database/inmem"
	sqlxrepos "github.com/avamec/salas/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// DBCloser releases the session store.
type DBCloser func() error

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newSessionRepository stores sessions in Postgres when configured, in memory otherwise.
func newSessionRepository(conf *core.Config, loggerParam DBLoggerParam) (session.Repository, DBCloser) {
	if !conf.Database.UsePostgres() {
		loggerParam.Logger.Info("sessions are kept in memory")
		return inmemdb.NewSessionRepository(inmemdb.Open()), func() error { return nil }
	}

	setUp := func() (session.Repository, DBCloser, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, nil, err
		}

		db, err := database.OpenX(conf)
		if err != nil {
			return nil, nil, err
		}

		if err = database.Migrate(db.DB); err != nil {
			return nil, nil, err
		}
		return sqlxrepos.NewSessionRepository(db), db.Close, nil
	}

	repo, closeDB, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return repo, closeDB
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newAnalyzer narrates with Ollama when enabled, with the template otherwise.
func newAnalyzer(conf *core.Config, logger core.Logger) *summary.Analyzer {
	if !conf.Ollama.Enabled {
		return summary.NewAnalyzer(nil, logger)
	}
	llm, err := summarysvc.NewOllamaSummarizer(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("ollama disabled: %v", err), err)
		return summary.NewAnalyzer(nil, logger)
	}
	return summary.NewAnalyzer(llm, logger)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newSessionRepository))
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidator))
	must(c.Provide(newAnalyzer))
	must(c.Provide(session.NewService, dig.As(new(session.ServiceInterface))))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
