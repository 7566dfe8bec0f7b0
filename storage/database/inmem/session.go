package inmemdb

import (
	"context"

	"github.com/avamec/salas/core/presence"
	"github.com/avamec/salas/core/roster"
	"github.com/avamec/salas/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSession(_ context.Context, s session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[s.Key]; ok {
		return session.Session{}, session.ErrKeyExists
	}
	stored := clone(s)
	repo.db.table[s.Key] = &stored
	return clone(s), nil
}

func (repo *sessionRepository) GetSession(_ context.Context, key string) (session.Session, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.table[key]; ok {
		return clone(*s), nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) UpdateSession(_ context.Context, s session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[s.Key]; !ok {
		return session.Session{}, session.ErrNotFound
	}
	stored := clone(s)
	repo.db.table[s.Key] = &stored
	return clone(s), nil
}

func (repo *sessionRepository) DeleteSession(_ context.Context, key string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[key]; !ok {
		return session.ErrNotFound
	}
	delete(repo.db.table, key)
	return nil
}

// clone copies the maps and slices of s so callers never share state with the table.
func clone(s session.Session) session.Session {
	ros := make(roster.Roster, len(s.Roster))
	for k, v := range s.Roster {
		ros[k] = v
	}
	snap := make(presence.Snapshot, len(s.Presence))
	for k, v := range s.Presence {
		snap[k] = v
	}
	cols := make(roster.Columns, len(s.Columns))
	for k, v := range s.Columns {
		cols[k] = v
	}
	s.Roster, s.Presence, s.Columns = ros, snap, cols
	s.Skipped = append([]roster.SkippedRow{}, s.Skipped...)
	return s
}
