package testutil

import (
	"fmt"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/avamec/salas/core"
	"github.com/avamec/salas/core/presence"
	"github.com/avamec/salas/core/roster"
	"github.com/avamec/salas/storage/database"
)

// Logger is a core.Logger that keeps every message for later assertions.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, fmt.Sprintf("[%s] %s", level, msg))
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

// Count returns the number of messages logged at level.
func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	prefix := "[" + level + "]"
	for _, m := range l.Messages {
		if len(m) >= len(prefix) && m[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// Assignment builds an expected assignment named after its identity.
func Assignment(email string, cohort roster.Cohort, room int) roster.ExpectedAssignment {
	return roster.ExpectedAssignment{
		Identity:     roster.NormalizeIdentity(email),
		Name:         email,
		Cohort:       cohort,
		ExpectedRoom: room,
	}
}

// Seen builds an observed presence. An empty cohort means unknown.
func Seen(email string, cohort roster.Cohort, room int) presence.Presence {
	id := roster.NormalizeIdentity(email)
	return presence.Presence{Identity: id, Name: string(id), Room: room, Cohort: cohort}
}

// Snapshot builds a presence snapshot, failing on duplicate identities.
func Snapshot(t *testing.T, seen ...presence.Presence) presence.Snapshot {
	t.Helper()
	snap := make(presence.Snapshot, len(seen))
	for _, p := range seen {
		if _, dup := snap[p.Identity]; dup {
			t.Fatalf("Snapshot(): duplicate identity %s", p.Identity)
		}
		snap[p.Identity] = p
	}
	return snap
}

// RosterTable is a small roster with sign-up form headers.
func RosterTable() roster.Table {
	return roster.NewTable([][]string{
		{"Carimbo de data/hora", "Nome completo (sem abreviação)", "Escreva o e-mail (G-mail)", "Turma", "Grupo", "Número do telefone com DDD (WhatsApp)"},
		{"01/03", "Ana Souza", "Ana@X.com ", "Turma A - Manhã", "1", "(11) 99999-0000"},
		{"01/03", "Bruno Lima", "bruno@x.com", "Turma B - Tarde", "2.0", ""},
		{"01/03", "Carla Dias", "carla@x.com", "Turma A - Manhã", "2", "nan"},
		{"01/03", "", "daniel@x.com", "B", "1", ""},
	})
}

// PrepareDB opens the test database and migrates it. The test is skipped unless
// the session store is configured as postgres (e.g. TEST_DBSTORE=postgres).
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()
	if !conf.Database.UsePostgres() {
		t.Skip("postgres session store not configured")
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("CreateIfNotExist() failed: %v", err)
	}
	db, err := database.OpenX(conf)
	if err != nil {
		t.Fatalf("OpenX() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	ResetDB(t, db)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ResetDB empties every table.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	if _, err := db.Exec("TRUNCATE monitor_session"); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}
