// Package monitor reconciles the expected room assignments against the observed presence.
package monitor

import (
	"sort"

	"github.com/avamec/salas/core/presence"
	"github.com/avamec/salas/core/roster"
)

// Reconcile classifies every expected member of every (cohort, room) group as
// present, absent or misplaced, and flags the foreign occupants of each room.
// When cohort is known only its groups are reported; occupants are still looked
// up in the whole roster so their real assignment is shown.
// Reconcile is pure: the same inputs always produce the same Report.
func Reconcile(ros roster.Roster, snap presence.Snapshot, cohort roster.Cohort) Report {
	groups := make(map[presence.RoomKey][]roster.ExpectedAssignment)
	for _, exp := range ros.Sorted() {
		if cohort.Known() && exp.Cohort != cohort {
			continue
		}
		key := presence.RoomKey{Cohort: exp.Cohort, Room: exp.ExpectedRoom}
		groups[key] = append(groups[key], exp)
	}

	keys := make([]presence.RoomKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	occupants := snap.Sorted()
	report := make(Report, 0, len(keys))
	for _, key := range keys {
		report = append(report, reconcileRoom(key, groups[key], occupants, ros))
	}
	return report
}

func reconcileRoom(key presence.RoomKey, members []roster.ExpectedAssignment, occupants []presence.Presence, ros roster.Roster) RoomStatus {
	status := RoomStatus{
		Cohort:        key.Cohort,
		Room:          key.Room,
		ExpectedCount: len(members),
		Present:       []ParticipantStatus{},
		Absent:        []ParticipantStatus{},
		Misplaced:     []ParticipantStatus{},
	}
	// an identity is listed at most once among the misplaced of a room
	flagged := make(map[roster.Identity]bool)

	snap := make(presence.Snapshot, len(occupants))
	for _, p := range occupants {
		snap[p.Identity] = p
	}

	for _, exp := range members {
		ps := fromAssignment(exp)
		p, seen := snap[exp.Identity]
		switch {
		case !seen:
			ps.Status = StatusAbsent
			status.Absent = append(status.Absent, ps)
		case p.Room == exp.ExpectedRoom && (!p.Cohort.Known() || p.Cohort == exp.Cohort):
			ps.Status = StatusPresent
			ps.ActualRoom, ps.ActualCohort = p.Room, p.Cohort
			status.Present = append(status.Present, ps)
		default:
			ps.Status = StatusMisplaced
			ps.ActualRoom, ps.ActualCohort = p.Room, p.Cohort
			ps.Reason = ReasonWrongRoom
			if p.Room == exp.ExpectedRoom {
				ps.Reason = ReasonWrongCohort
			}
			status.Misplaced = append(status.Misplaced, ps)
			flagged[exp.Identity] = true
		}
	}
	status.PresentCount = len(status.Present)
	status.AbsentCount = len(status.Absent)
	status.MisplacedCount = len(status.Misplaced)

	for _, p := range occupants {
		if p.Room != key.Room || (p.Cohort.Known() && p.Cohort != key.Cohort) || flagged[p.Identity] {
			continue
		}
		exp, ok := ros.Lookup(p.Identity)
		switch {
		case !ok:
			status.Misplaced = append(status.Misplaced, ParticipantStatus{
				Identity:     p.Identity,
				Name:         p.Name,
				Cohort:       p.Cohort,
				ExpectedRoom: NotApplicable,
				ActualRoom:   p.Room,
				ActualCohort: p.Cohort,
				Status:       StatusMisplaced,
				Reason:       ReasonUnexpected,
			})
		case exp.Cohort != key.Cohort:
			ps := fromAssignment(exp)
			ps.ActualRoom, ps.ActualCohort = p.Room, p.Cohort
			ps.Status = StatusMisplaced
			ps.Reason = ReasonCrossCohort
			status.Misplaced = append(status.Misplaced, ps)
		default:
			continue
		}
		flagged[p.Identity] = true
	}

	sort.SliceStable(status.Misplaced, func(i, j int) bool {
		return status.Misplaced[i].Identity < status.Misplaced[j].Identity
	})
	return status
}

func fromAssignment(exp roster.ExpectedAssignment) ParticipantStatus {
	return ParticipantStatus{
		Identity:     exp.Identity,
		Name:         exp.Name,
		Cohort:       exp.Cohort,
		ExpectedRoom: exp.ExpectedRoom,
		Contact:      exp.Contact,
	}
}
