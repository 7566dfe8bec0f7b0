// Package session keeps the roster and presence state of a monitoring session and
// runs reconciliations against it.
package session

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/avamec/salas/core/presence"
	"github.com/avamec/salas/core/roster"
)

// Session is the state a reconciliation pass works from: one roster and one presence snapshot.
type Session struct {
	Key                string              `json:"key"`
	Roster             roster.Roster       `json:"-"`
	Columns            roster.Columns      `json:"columns"`
	Skipped            []roster.SkippedRow `json:"skipped"`
	Presence           presence.Snapshot   `json:"-"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	RosterLoadedAt     null.Time           `json:"roster_loaded_at"`
	PresenceRecordedAt null.Time           `json:"presence_recorded_at"`
}

// New returns an empty session.
func New(key string, now time.Time) Session {
	return Session{
		Key:       key,
		Roster:    make(roster.Roster),
		Presence:  make(presence.Snapshot),
		Skipped:   []roster.SkippedRow{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Summary is the JSON view of a Session.
type Summary struct {
	Session
	Expected int `json:"expected"`
	Observed int `json:"observed"`
}

func (s Session) Summary() Summary {
	return Summary{Session: s, Expected: len(s.Roster), Observed: len(s.Presence)}
}

// RosterInput is a roster table sent by a client.
type RosterInput struct {
	Headers []string            `json:"headers" validate:"required,min=1,dive,notblank"`
	Rows    []map[string]string `json:"rows"`
}

func (in RosterInput) Table() roster.Table {
	rows := make([]roster.Row, 0, len(in.Rows))
	for _, r := range in.Rows {
		rows = append(rows, roster.Row(r))
	}
	return roster.Table{Headers: in.Headers, Rows: rows}
}

// RoomInput lists the attendees observed in one room. An empty cohort asks for it to be
// inferred from the roster.
type RoomInput struct {
	Cohort    roster.Cohort       `json:"cohort"`
	Room      int                 `json:"room" validate:"min=1"`
	Attendees []presence.Attendee `json:"attendees" validate:"dive"`
}

// PresenceInput is a presence report sent by a client.
type PresenceInput struct {
	Rooms []RoomInput `json:"rooms" validate:"dive"`
}

// cohortAware reports whether every room names its cohort.
func (in PresenceInput) cohortAware() bool {
	for _, r := range in.Rooms {
		if !r.Cohort.Known() {
			return false
		}
	}
	return len(in.Rooms) > 0
}

func (in PresenceInput) byRoomKey() map[presence.RoomKey][]presence.Attendee {
	byRoom := make(map[presence.RoomKey][]presence.Attendee, len(in.Rooms))
	for _, r := range in.Rooms {
		key := presence.RoomKey{Cohort: r.Cohort, Room: r.Room}
		byRoom[key] = append(byRoom[key], r.Attendees...)
	}
	return byRoom
}

func (in PresenceInput) byRoom() map[int][]presence.Attendee {
	byRoom := make(map[int][]presence.Attendee, len(in.Rooms))
	for _, r := range in.Rooms {
		byRoom[r.Room] = append(byRoom[r.Room], r.Attendees...)
	}
	return byRoom
}
