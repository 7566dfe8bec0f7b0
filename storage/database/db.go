// Package database opens the Postgres session store and keeps its schema current.
package database

import (
	"database/sql"
	"embed"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"

	"github.com/avamec/salas/core"
)

//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationsDir is the directory of MigrationsFS holding the migrations.
const MigrationsDir = "migrations"

const (
	pingAttempts = 30
	pingBackoff  = 100 * time.Millisecond
)

// dsn builds the connection URL for dbName, authenticating as the admin role when asked and configured.
func dsn(conf *core.Config, dbName string, admin bool) string {
	db := conf.Database
	user := url.UserPassword(db.User, db.Password)
	if admin && db.AdminUser != "" {
		user = url.UserPassword(db.AdminUser, db.AdminPassword)
	}
	q := url.Values{"timezone": {"utc"}, "sslmode": {"require"}}
	if db.DisableTLS {
		q.Set("sslmode", "disable")
	}
	return (&url.URL{Scheme: db.Engine, User: user, Host: db.Address(), Path: dbName, RawQuery: q.Encode()}).String()
}

// Open returns a handle on the session database. No connection is made yet.
func Open(conf *core.Config) (*sql.DB, error) {
	return sql.Open(conf.Database.Engine, dsn(conf, conf.Database.Name, false))
}

// OpenX opens the session database and waits for it to answer.
func OpenX(conf *core.Config) (*sqlx.DB, error) {
	db, err := Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = waitReady(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sqlx.NewDb(db, conf.Database.Engine), nil
}

// waitReady pings db until it answers, backing off a little longer after each failure.
func waitReady(db *sql.DB) (err error) {
	for attempt := 1; attempt <= pingAttempts; attempt++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt) * pingBackoff)
	}
	return errors.Wrapf(err, "database not ready after %d attempts", pingAttempts)
}

func exists(db *sql.DB, query string, arg string) (bool, error) {
	var found bool
	err := db.QueryRow(query, arg).Scan(&found)
	return found, err
}

// ensureRole creates the application role unless it is already there.
func ensureRole(db *sql.DB, conf *core.Config) error {
	role := conf.Database.User
	if role == "" {
		return nil
	}
	found, err := exists(db, "SELECT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = $1)", role)
	if err != nil {
		return errors.Wrap(err, "looking up app role")
	}
	if found {
		return nil
	}
	_, err = db.Exec("CREATE USER " + pq.QuoteIdentifier(role) + " CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(conf.Database.Password))
	return errors.Wrap(err, "creating app role")
}

// ensureDatabase creates the session database unless it is already there.
func ensureDatabase(db *sql.DB, name string) error {
	found, err := exists(db, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name)
	if err != nil {
		return errors.Wrap(err, "looking up database")
	}
	if found {
		return nil
	}
	_, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(name))
	return errors.Wrap(err, "creating database")
}

// withMaintenanceDB runs fn against the "postgres" maintenance database.
func withMaintenanceDB(conf *core.Config, admin bool, fn func(*sql.DB) error) error {
	db, err := sql.Open(conf.Database.Engine, dsn(conf, "postgres", admin))
	if err != nil {
		return errors.Wrap(err, "opening maintenance database")
	}
	defer func() { _ = db.Close() }()
	if err = waitReady(db); err != nil {
		return err
	}
	return fn(db)
}

// CreateIfNotExist makes sure the app role exists (as admin) and that it owns the session database.
func CreateIfNotExist(conf *core.Config) error {
	err := withMaintenanceDB(conf, true, func(db *sql.DB) error { return ensureRole(db, conf) })
	if err != nil {
		return err
	}
	return withMaintenanceDB(conf, false, func(db *sql.DB) error { return ensureDatabase(db, conf.Database.Name) })
}

// Migrate applies every pending migration.
func Migrate(db *sql.DB) error {
	return errors.Wrap(goose.Up(db, MigrationsFS, MigrationsDir), "migrating database")
}
