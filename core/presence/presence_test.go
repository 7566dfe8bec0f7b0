package presence_test

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/avamec/salas/core/presence"
	"github.com/avamec/salas/core/roster"
	"github.com/avamec/salas/tests"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name   string
		byRoom map[presence.RoomKey][]presence.Attendee
		want   presence.Snapshot
	}{
		{name: "empty", want: presence.Snapshot{}},
		{
			name: "normalizes identities and names",
			byRoom: map[presence.RoomKey][]presence.Attendee{
				{Cohort: roster.CohortA, Room: 1}: {{Email: " Ana@X.com", Name: "Ana"}, {Email: "bruno@x.com"}},
			},
			want: testutil.Snapshot(t,
				presence.Presence{Identity: "ana@x.com", Name: "Ana", Room: 1, Cohort: roster.CohortA},
				testutil.Seen("bruno@x.com", roster.CohortA, 1),
			),
		},
		{
			name: "drops invalid identities",
			byRoom: map[presence.RoomKey][]presence.Attendee{
				{Cohort: roster.CohortB, Room: 2}: {{Email: "guest"}, {Email: ""}, {Email: "c@x.com"}},
			},
			want: testutil.Snapshot(t, testutil.Seen("c@x.com", roster.CohortB, 2)),
		},
		{
			name: "duplicate keeps the last room in (cohort, room) order",
			byRoom: map[presence.RoomKey][]presence.Attendee{
				{Cohort: roster.CohortB, Room: 1}: {{Email: "d@x.com"}},
				{Cohort: roster.CohortA, Room: 3}: {{Email: "d@x.com"}},
				{Cohort: roster.CohortA, Room: 2}: {{Email: "D@x.com"}},
			},
			want: testutil.Snapshot(t, testutil.Seen("d@x.com", roster.CohortB, 1)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, presence.Build(tt.byRoom)); diff != "" {
				t.Errorf("Build() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildFromRooms(t *testing.T) {
	ros := roster.FromAssignments(
		testutil.Assignment("a@x.com", roster.CohortA, 1),
		testutil.Assignment("b@x.com", roster.CohortB, 2),
	)
	got := presence.BuildFromRooms(map[int][]presence.Attendee{
		1: {{Email: "A@x.com"}, {Email: "stranger@y.com"}},
		2: {{Email: "b@x.com"}},
	}, ros)

	want := testutil.Snapshot(t,
		testutil.Seen("a@x.com", roster.CohortA, 1),
		testutil.Seen("stranger@y.com", "", 1), // unknown cohort
		testutil.Seen("b@x.com", roster.CohortB, 2),
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildFromRooms() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecorder(t *testing.T) {
	rec := presence.NewRecorder()
	assert.Empty(t, rec.Snapshot())
	assert.True(t, rec.RecordedAt().IsZero())

	rec.Record(map[presence.RoomKey][]presence.Attendee{
		{Cohort: roster.CohortA, Room: 1}: {{Email: "a@x.com"}, {Email: "b@x.com"}},
	})
	assert.Len(t, rec.Snapshot(), 2)
	assert.False(t, rec.RecordedAt().IsZero())

	// a new report fully supersedes the previous one
	rec.RecordRooms(map[int][]presence.Attendee{3: {{Email: "c@x.com"}}}, roster.Roster{})
	want := testutil.Snapshot(t, testutil.Seen("c@x.com", "", 3))
	if diff := cmp.Diff(want, rec.Snapshot()); diff != "" {
		t.Errorf("Snapshot() mismatch (-want +got):\n%s", diff)
	}

	// callers get a copy
	snap := rec.Snapshot()
	delete(snap, "c@x.com")
	assert.Len(t, rec.Snapshot(), 1)

	rec.Replace(nil)
	assert.NotNil(t, rec.Snapshot())
	assert.Empty(t, rec.Snapshot())
}

func TestRecorder_concurrentReplace(t *testing.T) {
	rec := presence.NewRecorder()
	reports := []map[presence.RoomKey][]presence.Attendee{
		{{Cohort: roster.CohortA, Room: 1}: {{Email: "a@x.com"}, {Email: "b@x.com"}}},
		{{Cohort: roster.CohortB, Room: 2}: {{Email: "c@x.com"}, {Email: "d@x.com"}}},
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			rec.Record(reports[i%2])
		}(i)
		go func() {
			defer wg.Done()
			// readers never observe a mix of two reports
			snap := rec.Snapshot()
			if _, a := snap["a@x.com"]; a {
				if _, c := snap["c@x.com"]; c {
					t.Errorf("Snapshot() mixes two reports: %v", snap)
				}
			}
		}()
	}
	wg.Wait()
	assert.Len(t, rec.Snapshot(), 2)
}
