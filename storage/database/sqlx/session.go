package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/avamec/salas/core/session"
)

const uniqueViolation = "23505"

type sessionRow struct {
	Key                string    `db:"key"`
	Roster             []byte    `db:"roster"`
	Columns            []byte    `db:"columns"`
	Skipped            []byte    `db:"skipped"`
	Presence           []byte    `db:"presence"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
	RosterLoadedAt     null.Time `db:"roster_loaded_at"`
	PresenceRecordedAt null.Time `db:"presence_recorded_at"`
}

func toRow(s session.Session) (sessionRow, error) {
	row := sessionRow{
		Key:                s.Key,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		RosterLoadedAt:     s.RosterLoadedAt,
		PresenceRecordedAt: s.PresenceRecordedAt,
	}
	for _, f := range []struct {
		dst *[]byte
		src interface{}
	}{
		{&row.Roster, s.Roster},
		{&row.Columns, s.Columns},
		{&row.Skipped, s.Skipped},
		{&row.Presence, s.Presence},
	} {
		b, err := json.Marshal(f.src)
		if err != nil {
			return sessionRow{}, errors.Wrap(err, "encoding session")
		}
		*f.dst = b
	}
	return row, nil
}

func (row sessionRow) toSession() (session.Session, error) {
	s := session.New(row.Key, row.CreatedAt)
	s.UpdatedAt = row.UpdatedAt
	s.RosterLoadedAt = row.RosterLoadedAt
	s.PresenceRecordedAt = row.PresenceRecordedAt
	for _, f := range []struct {
		src []byte
		dst interface{}
	}{
		{row.Roster, &s.Roster},
		{row.Columns, &s.Columns},
		{row.Skipped, &s.Skipped},
		{row.Presence, &s.Presence},
	} {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return session.Session{}, errors.Wrap(err, "decoding session")
		}
	}
	return s, nil
}

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *sqlx.DB) session.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	row, err := toRow(s)
	if err != nil {
		return session.Session{}, err
	}
	const q = `
		INSERT INTO monitor_session
			(key, roster, columns, skipped, presence, created_at, updated_at, roster_loaded_at, presence_recorded_at)
		VALUES
			(:key, :roster, :columns, :skipped, :presence, :created_at, :updated_at, :roster_loaded_at, :presence_recorded_at)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return session.Session{}, session.ErrKeyExists
		}
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return s, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, key string) (session.Session, error) {
	var row sessionRow
	const q = `SELECT * FROM monitor_session WHERE key = $1`
	if err := repo.db.GetContext(ctx, &row, q, key); err != nil {
		if err == sql.ErrNoRows {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, errors.Wrap(err, "selecting session")
	}
	return row.toSession()
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, s session.Session) (session.Session, error) {
	row, err := toRow(s)
	if err != nil {
		return session.Session{}, err
	}
	const q = `
		UPDATE monitor_session SET
			roster = :roster,
			columns = :columns,
			skipped = :skipped,
			presence = :presence,
			updated_at = :updated_at,
			roster_loaded_at = :roster_loaded_at,
			presence_recorded_at = :presence_recorded_at
		WHERE key = :key`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	if err = checkAffected(res); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

func (repo *sessionRepository) DeleteSession(ctx context.Context, key string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM monitor_session WHERE key = $1`, key)
	if err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return session.ErrNotFound
	}
	return nil
}
