package monitor

import (
	"time"

	"github.com/avamec/salas/core/roster"
)

// NowFunc returns the current time. Mockable in tests.
var NowFunc = func() time.Time { return time.Now().UTC() }

// Stats are the totals of a Report.
type Stats struct {
	Cohort      roster.Cohort `json:"cohort,omitempty"`
	Rooms       int           `json:"rooms"`
	Expected    int           `json:"expected"`
	Present     int           `json:"present"`
	Absent      int           `json:"absent"`
	Misplaced   int           `json:"misplaced"` // every misplaced entry, foreign occupants included
	PresentPct  float64       `json:"present_pct"`
	AbsentPct   float64       `json:"absent_pct"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Aggregate sums the room statuses of r, restricted to cohort when it is known.
// Percentages are relative to the expected total and 0 when nothing is expected.
func Aggregate(r Report, cohort roster.Cohort) Stats {
	st := Stats{Cohort: cohort, GeneratedAt: NowFunc()}
	for _, s := range r {
		if cohort.Known() && s.Cohort != cohort {
			continue
		}
		st.Rooms++
		st.Expected += s.ExpectedCount
		st.Present += s.PresentCount
		st.Absent += s.AbsentCount
		st.Misplaced += len(s.Misplaced)
	}
	if st.Expected > 0 {
		st.PresentPct = percent(st.Present, st.Expected)
		st.AbsentPct = percent(st.Absent, st.Expected)
	}
	return st
}

func percent(n, total int) float64 {
	return float64(n*100) / float64(total)
}

// Problems lists every absent and misplaced entry in room order.
func (r Report) Problems() []ParticipantStatus {
	problems := make([]ParticipantStatus, 0)
	for _, s := range r {
		problems = append(problems, s.Absent...)
		problems = append(problems, s.Misplaced...)
	}
	return problems
}

// ProblemRooms returns the statuses that have at least one absent or misplaced entry.
func (r Report) ProblemRooms() Report {
	rooms := make(Report, 0)
	for _, s := range r {
		if s.HasProblems() {
			rooms = append(rooms, s)
		}
	}
	return rooms
}

// CountByReason counts the misplaced entries of r per reason.
func (r Report) CountByReason() map[Reason]int {
	counts := make(map[Reason]int)
	for _, s := range r {
		for _, m := range s.Misplaced {
			counts[m.Reason]++
		}
	}
	return counts
}
