package monitor_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avamec/salas/core/monitor"
	"github.com/avamec/salas/core/presence"
	"github.com/avamec/salas/core/roster"
	"github.com/avamec/salas/tests"
)

func identities(list []monitor.ParticipantStatus) []roster.Identity {
	ids := make([]roster.Identity, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.Identity)
	}
	return ids
}

func room(t *testing.T, r monitor.Report, cohort roster.Cohort, num int) monitor.RoomStatus {
	t.Helper()
	s, ok := r.Get(cohort, num)
	require.Truef(t, ok, "room (%s, %d) not reported", cohort, num)
	return s
}

func TestReconcile_classification(t *testing.T) {
	ros := roster.FromAssignments(testutil.Assignment("a@x.com", roster.CohortA, 1))

	t.Run("absent", func(t *testing.T) {
		s := room(t, monitor.Reconcile(ros, presence.Snapshot{}, ""), roster.CohortA, 1)
		assert.Equal(t, []roster.Identity{"a@x.com"}, identities(s.Absent))
		assert.Empty(t, s.Present)
		assert.Empty(t, s.Misplaced)
		assert.Equal(t, monitor.StatusAbsent, s.Absent[0].Status)
	})

	t.Run("present", func(t *testing.T) {
		snap := testutil.Snapshot(t, testutil.Seen("a@x.com", roster.CohortA, 1))
		s := room(t, monitor.Reconcile(ros, snap, ""), roster.CohortA, 1)
		assert.Equal(t, []roster.Identity{"a@x.com"}, identities(s.Present))
		assert.Empty(t, s.Absent)
		assert.Empty(t, s.Misplaced)
	})

	t.Run("present with unknown cohort", func(t *testing.T) {
		snap := testutil.Snapshot(t, testutil.Seen("a@x.com", "", 1))
		s := room(t, monitor.Reconcile(ros, snap, ""), roster.CohortA, 1)
		assert.Equal(t, []roster.Identity{"a@x.com"}, identities(s.Present))
		assert.Empty(t, s.Misplaced)
	})

	t.Run("wrong room", func(t *testing.T) {
		snap := testutil.Snapshot(t, testutil.Seen("a@x.com", roster.CohortA, 2))
		s := room(t, monitor.Reconcile(ros, snap, ""), roster.CohortA, 1)
		require.Len(t, s.Misplaced, 1)
		got := s.Misplaced[0]
		assert.Equal(t, roster.Identity("a@x.com"), got.Identity)
		assert.Equal(t, 2, got.ActualRoom)
		assert.Equal(t, 1, got.ExpectedRoom)
		assert.Equal(t, monitor.ReasonWrongRoom, got.Reason)
		assert.Empty(t, s.Present)
		assert.Empty(t, s.Absent)
	})

	t.Run("wrong cohort", func(t *testing.T) {
		snap := testutil.Snapshot(t, testutil.Seen("a@x.com", roster.CohortB, 1))
		s := room(t, monitor.Reconcile(ros, snap, ""), roster.CohortA, 1)
		require.Len(t, s.Misplaced, 1)
		assert.Equal(t, monitor.ReasonWrongCohort, s.Misplaced[0].Reason)
		assert.Equal(t, roster.CohortB, s.Misplaced[0].ActualCohort)
	})

	t.Run("unexpected occupant", func(t *testing.T) {
		snap := testutil.Snapshot(t,
			testutil.Seen("a@x.com", roster.CohortA, 1),
			testutil.Seen("b@y.com", "", 1),
		)
		s := room(t, monitor.Reconcile(ros, snap, ""), roster.CohortA, 1)
		require.Len(t, s.Misplaced, 1)
		got := s.Misplaced[0]
		assert.Equal(t, roster.Identity("b@y.com"), got.Identity)
		assert.Equal(t, monitor.NotApplicable, got.ExpectedRoom)
		assert.False(t, got.Expected())
		assert.Equal(t, monitor.ReasonUnexpected, got.Reason)
		assert.Equal(t, 1, s.PresentCount)
		assert.Equal(t, 0, s.MisplacedCount)
	})
}

func TestReconcile_crossCohort(t *testing.T) {
	ros := roster.FromAssignments(
		testutil.Assignment("a@x.com", roster.CohortA, 1),
		testutil.Assignment("b@x.com", roster.CohortB, 1),
		testutil.Assignment("c@x.com", roster.CohortA, 2),
	)
	// b belongs to (B, 1) but joined (A, 1); c sits in (A, 1) instead of (A, 2)
	snap := testutil.Snapshot(t,
		testutil.Seen("a@x.com", roster.CohortA, 1),
		testutil.Seen("b@x.com", roster.CohortA, 1),
		testutil.Seen("c@x.com", roster.CohortA, 1),
	)
	report := monitor.Reconcile(ros, snap, "")

	a1 := room(t, report, roster.CohortA, 1)
	assert.Equal(t, []roster.Identity{"a@x.com"}, identities(a1.Present))
	assert.Equal(t, []roster.Identity{"b@x.com"}, identities(a1.Misplaced))
	assert.Equal(t, monitor.ReasonCrossCohort, a1.Misplaced[0].Reason)
	assert.Equal(t, roster.CohortB, a1.Misplaced[0].Cohort)
	assert.Equal(t, 1, a1.Misplaced[0].ExpectedRoom)

	// b is misplaced in its own group too, counted once there
	b1 := room(t, report, roster.CohortB, 1)
	assert.Equal(t, []roster.Identity{"b@x.com"}, identities(b1.Misplaced))
	assert.Equal(t, monitor.ReasonWrongCohort, b1.Misplaced[0].Reason)
	assert.Equal(t, 1, b1.MisplacedCount)

	// a same-cohort stray is only reported in its own group
	a2 := room(t, report, roster.CohortA, 2)
	assert.Equal(t, []roster.Identity{"c@x.com"}, identities(a2.Misplaced))
	assert.Equal(t, monitor.ReasonWrongRoom, a2.Misplaced[0].Reason)
}

func TestReconcile_occupantsStayInTheirCohort(t *testing.T) {
	ros := roster.FromAssignments(
		testutil.Assignment("a1@x.com", roster.CohortA, 1),
		testutil.Assignment("b1@x.com", roster.CohortB, 1),
	)
	// same room number, different cohorts: neither occupant belongs to (A, 1)
	snap := testutil.Snapshot(t,
		testutil.Seen("a1@x.com", roster.CohortA, 1),
		testutil.Seen("b1@x.com", roster.CohortB, 1),
		testutil.Seen("z@y.com", roster.CohortB, 1),
	)
	report := monitor.Reconcile(ros, snap, "")

	a1 := room(t, report, roster.CohortA, 1)
	assert.Equal(t, []roster.Identity{"a1@x.com"}, identities(a1.Present))
	assert.Empty(t, a1.Misplaced)

	b1 := room(t, report, roster.CohortB, 1)
	assert.Equal(t, []roster.Identity{"b1@x.com"}, identities(b1.Present))
	assert.Equal(t, []roster.Identity{"z@y.com"}, identities(b1.Misplaced))
	assert.Equal(t, monitor.ReasonUnexpected, b1.Misplaced[0].Reason)
}

func TestReconcile_cohortFilter(t *testing.T) {
	ros := roster.FromAssignments(
		testutil.Assignment("a@x.com", roster.CohortA, 1),
		testutil.Assignment("b@x.com", roster.CohortB, 2),
	)
	snap := testutil.Snapshot(t, testutil.Seen("b@x.com", roster.CohortA, 1))

	report := monitor.Reconcile(ros, snap, roster.CohortA)
	require.Len(t, report, 1)
	a1 := report[0]
	assert.Equal(t, roster.CohortA, a1.Cohort)
	// foreign occupants keep their real assignment
	require.Len(t, a1.Misplaced, 1)
	assert.Equal(t, 2, a1.Misplaced[0].ExpectedRoom)
	assert.Equal(t, monitor.ReasonCrossCohort, a1.Misplaced[0].Reason)

	assert.Empty(t, monitor.Reconcile(ros, snap, "C"))
}

func TestReconcile_invariants(t *testing.T) {
	ros := roster.FromAssignments(
		testutil.Assignment("a1@x.com", roster.CohortA, 1),
		testutil.Assignment("a2@x.com", roster.CohortA, 1),
		testutil.Assignment("a3@x.com", roster.CohortA, 1),
		testutil.Assignment("a4@x.com", roster.CohortA, 2),
		testutil.Assignment("b1@x.com", roster.CohortB, 1),
		testutil.Assignment("b2@x.com", roster.CohortB, 3),
	)
	snap := testutil.Snapshot(t,
		testutil.Seen("a1@x.com", roster.CohortA, 1),
		testutil.Seen("a2@x.com", roster.CohortA, 2),
		testutil.Seen("a4@x.com", "", 2),
		testutil.Seen("b1@x.com", roster.CohortA, 1),
		testutil.Seen("b2@x.com", roster.CohortB, 1),
		testutil.Seen("ghost@y.com", roster.CohortB, 3),
		testutil.Seen("guest@y.com", "", 1),
	)

	first := monitor.Reconcile(ros, snap, "")
	second := monitor.Reconcile(ros, snap, "")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Reconcile() is not idempotent (-first +second):\n%s", diff)
	}

	var keys []presence.RoomKey
	for _, s := range first {
		keys = append(keys, s.Key())

		if got := s.PresentCount + s.AbsentCount + s.MisplacedCount; got != s.ExpectedCount {
			t.Errorf("room (%s, %d): present+absent+misplaced = %d, want %d", s.Cohort, s.Room, got, s.ExpectedCount)
		}
		seen := make(map[roster.Identity]bool)
		for _, m := range s.Misplaced {
			if seen[m.Identity] {
				t.Errorf("room (%s, %d): %s misplaced twice", s.Cohort, s.Room, m.Identity)
			}
			seen[m.Identity] = true
		}
		for _, list := range [][]monitor.ParticipantStatus{s.Present, s.Misplaced} {
			for _, p := range list {
				if _, ok := snap[p.Identity]; !ok {
					t.Errorf("room (%s, %d): %s reported without being observed", s.Cohort, s.Room, p.Identity)
				}
			}
		}
	}

	wantKeys := []presence.RoomKey{
		{Cohort: roster.CohortA, Room: 1},
		{Cohort: roster.CohortA, Room: 2},
		{Cohort: roster.CohortB, Room: 1},
		{Cohort: roster.CohortB, Room: 3},
	}
	assert.Equal(t, wantKeys, keys)

	a1 := room(t, first, roster.CohortA, 1)
	assert.Equal(t, []roster.Identity{"a1@x.com"}, identities(a1.Present))
	assert.Equal(t, []roster.Identity{"a3@x.com"}, identities(a1.Absent))
	assert.Equal(t, []roster.Identity{"a2@x.com", "b1@x.com", "guest@y.com"}, identities(a1.Misplaced))

	b3 := room(t, first, roster.CohortB, 3)
	assert.Equal(t, []roster.Identity{"b2@x.com", "ghost@y.com"}, identities(b3.Misplaced))
}
