package monitor

import (
	"github.com/volatiletech/null/v8"

	"github.com/avamec/salas/core/presence"
	"github.com/avamec/salas/core/roster"
)

// NotApplicable is the expected room of an attendee missing from the roster.
const NotApplicable = -1

type Status string

const (
	StatusPresent   Status = "present"
	StatusAbsent    Status = "absent"
	StatusMisplaced Status = "misplaced"
)

// Reason tells why a participant is misplaced.
type Reason string

const (
	ReasonWrongRoom   Reason = "wrong_room"   // expected member seen in another room
	ReasonWrongCohort Reason = "wrong_cohort" // expected member seen in another cohort
	ReasonUnexpected  Reason = "unexpected"   // occupant missing from the roster
	ReasonCrossCohort Reason = "cross_cohort" // occupant rostered in another cohort
)

// ParticipantStatus is the classification of one identity within a room.
type ParticipantStatus struct {
	Identity     roster.Identity `json:"identity"`
	Name         string          `json:"name"`
	Cohort       roster.Cohort   `json:"cohort,omitempty"`
	ExpectedRoom int             `json:"expected_room"`
	ActualRoom   int             `json:"actual_room,omitempty"` // 0 when not observed
	ActualCohort roster.Cohort   `json:"actual_cohort,omitempty"`
	Contact      null.String     `json:"contact"`
	Status       Status          `json:"status"`
	Reason       Reason          `json:"reason,omitempty"`
}

// Expected reports whether the participant has a roster entry.
func (p ParticipantStatus) Expected() bool { return p.ExpectedRoom != NotApplicable }

// RoomStatus is the reconciled state of a (cohort, room).
// PresentCount + AbsentCount + MisplacedCount == ExpectedCount always holds:
// MisplacedCount only counts the room's own expected members, while Misplaced
// may also list foreign occupants.
type RoomStatus struct {
	Cohort         roster.Cohort       `json:"cohort"`
	Room           int                 `json:"room"`
	ExpectedCount  int                 `json:"expected_count"`
	PresentCount   int                 `json:"present_count"`
	AbsentCount    int                 `json:"absent_count"`
	MisplacedCount int                 `json:"misplaced_count"`
	Present        []ParticipantStatus `json:"present"`
	Absent         []ParticipantStatus `json:"absent"`
	Misplaced      []ParticipantStatus `json:"misplaced"`
}

func (s RoomStatus) Key() presence.RoomKey {
	return presence.RoomKey{Cohort: s.Cohort, Room: s.Room}
}

func (s RoomStatus) HasProblems() bool {
	return s.AbsentCount > 0 || len(s.Misplaced) > 0
}

// Report holds room statuses ordered by (cohort, room).
type Report []RoomStatus

// Get returns the status of the given room.
func (r Report) Get(cohort roster.Cohort, room int) (RoomStatus, bool) {
	for _, s := range r {
		if s.Cohort == cohort && s.Room == room {
			return s, true
		}
	}
	return RoomStatus{}, false
}
