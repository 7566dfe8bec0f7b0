package summary

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avamec/salas/core/monitor"
	"github.com/avamec/salas/core/roster"
	"github.com/avamec/salas/tests"
)

// sampleReport: a2 and b1 absent, a3 in the wrong room, z unknown to the roster.
func sampleReport(t *testing.T) monitor.Report {
	ros := roster.FromAssignments(
		testutil.Assignment("a1@x.com", roster.CohortA, 1),
		testutil.Assignment("a2@x.com", roster.CohortA, 1),
		testutil.Assignment("a3@x.com", roster.CohortA, 2),
		testutil.Assignment("b1@x.com", roster.CohortB, 1),
	)
	snap := testutil.Snapshot(t,
		testutil.Seen("a1@x.com", roster.CohortA, 1),
		testutil.Seen("a3@x.com", roster.CohortA, 1),
		testutil.Seen("z@y.com", roster.CohortB, 1),
	)
	return monitor.Reconcile(ros, snap, "")
}

func fixedNow(t *testing.T) time.Time {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	monitor.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { monitor.NowFunc = func() time.Time { return time.Now().UTC() } })
	return now
}

func TestNewDigest(t *testing.T) {
	report := sampleReport(t)
	d := NewDigest(report, monitor.Aggregate(report, ""), 2)

	assert.Equal(t, 4, d.TotalProblems)
	assert.Equal(t, 2, d.Absent)
	assert.Equal(t, 2, d.Misplaced)
	assert.Equal(t, map[monitor.Reason]int{monitor.ReasonWrongRoom: 1, monitor.ReasonUnexpected: 1}, d.ByReason)

	wantRooms := []RoomProblems{
		{Cohort: roster.CohortA, Room: 1, Absent: 1},
		{Cohort: roster.CohortA, Room: 2, Misplaced: 1},
		{Cohort: roster.CohortB, Room: 1, Absent: 1, Misplaced: 1},
	}
	if diff := cmp.Diff(wantRooms, d.Rooms); diff != "" {
		t.Errorf("NewDigest() rooms mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, d.Sample, 2)
	assert.Equal(t, roster.Identity("a2@x.com"), d.Sample[0].Identity)
	assert.Equal(t, roster.Identity("a3@x.com"), d.Sample[1].Identity)

	assert.Len(t, NewDigest(report, monitor.Stats{}, 0).Sample, 4)
}

func TestTemplateSummarizer(t *testing.T) {
	now := fixedNow(t)

	report := sampleReport(t)
	d := NewDigest(report, monitor.Aggregate(report, ""), DefaultSampleSize)
	got, err := TemplateSummarizer{}.Summarize(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, "1 of 4 expected participants present (25.0%), 2 absent (50.0%), 2 misplaced.", got.Summary)
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, []string{
		"2 participants absent",
		"1 participants in the wrong room",
		"1 participants missing from the roster",
	}, got.MainProblems)
	assert.Contains(t, got.Recommendations, "Start with room 1 of cohort B (2 problems)")
	assert.Equal(t, now, got.GeneratedAt)

	// deterministic
	again, _ := TemplateSummarizer{}.Summarize(context.Background(), d)
	if diff := cmp.Diff(got, again); diff != "" {
		t.Errorf("Summarize() is not deterministic (-first +second):\n%s", diff)
	}

	clean, _ := TemplateSummarizer{}.Summarize(context.Background(), Digest{Stats: monitor.Stats{Expected: 3, Present: 3, PresentPct: 100}})
	assert.Equal(t, "All 3 expected participants are in their rooms.", clean.Summary)
	assert.Equal(t, PriorityLow, clean.Priority)
	assert.Empty(t, clean.MainProblems)
}

func Test_priorityOf(t *testing.T) {
	tests := []struct {
		absentPct float64
		want      Priority
	}{
		{0, PriorityLow},
		{19.9, PriorityLow},
		{20, PriorityMedium},
		{49.9, PriorityMedium},
		{50, PriorityHigh},
		{100, PriorityHigh},
	}
	for _, tt := range tests {
		if got := priorityOf(monitor.Stats{AbsentPct: tt.absentPct}); got != tt.want {
			t.Errorf("priorityOf(%v) = %s, want %s", tt.absentPct, got, tt.want)
		}
	}
}

type stubSummarizer struct {
	res Analysis
	err error
}

func (s stubSummarizer) Summarize(context.Context, Digest) (Analysis, error) { return s.res, s.err }

func TestAnalyzer_Analyze(t *testing.T) {
	now := fixedNow(t)
	d := Digest{Stats: monitor.Stats{Expected: 2, Absent: 2, AbsentPct: 100}, TotalProblems: 2, Absent: 2}

	t.Run("primary succeeds", func(t *testing.T) {
		logger := &testutil.Logger{}
		a := NewAnalyzer(stubSummarizer{res: Analysis{Summary: "from model", Priority: PriorityLow}}, logger)
		got := a.Analyze(context.Background(), d)
		assert.Equal(t, "from model", got.Summary)
		assert.False(t, got.Fallback)
		assert.Equal(t, now, got.GeneratedAt)
		assert.Equal(t, d, got.Digest)
		assert.Equal(t, 0, logger.Count("WARN"))
	})

	t.Run("primary fails", func(t *testing.T) {
		logger := &testutil.Logger{}
		a := NewAnalyzer(stubSummarizer{err: errors.New("connection refused")}, logger)
		got := a.Analyze(context.Background(), d)
		assert.True(t, got.Fallback)
		assert.Equal(t, "connection refused", got.Error)
		assert.Equal(t, PriorityHigh, got.Priority)
		assert.Equal(t, d.Stats, got.Digest.Stats)
		assert.Equal(t, 1, logger.Count("WARN"))
	})

	t.Run("no primary", func(t *testing.T) {
		got := NewAnalyzer(nil, &testutil.Logger{}).Analyze(context.Background(), d)
		assert.True(t, got.Fallback)
		assert.Empty(t, got.Error)
	})
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		resp string
		want string
	}{
		{name: "raw", resp: `  {"summary": "ok"}  `, want: `{"summary": "ok"}`},
		{name: "raw with trailing text", resp: `{"summary": "ok"} hope this helps`, want: `{"summary": "ok"}`},
		{name: "json fence", resp: "Here you go:\n```json\n{\"summary\": \"ok\"}\n```\nBye", want: `{"summary": "ok"}`},
		{name: "bare fence", resp: "Here:\n```\n{\"summary\": \"ok\"}\n```", want: `{"summary": "ok"}`},
		{name: "no json", resp: " no idea ", want: "no idea"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.resp); got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	got, err := ParseAnalysis("```json\n" + `{
		"summary": "Two rooms need attention",
		"main_problems": ["absences in room 1"],
		"recommendations": ["call the absent"],
		"priority": "Alta",
		"suggested_actions": []
	}` + "\n```")
	require.NoError(t, err)
	want := Analysis{
		Summary:          "Two rooms need attention",
		MainProblems:     []string{"absences in room 1"},
		Recommendations:  []string{"call the absent"},
		Priority:         PriorityHigh,
		SuggestedActions: []string{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseAnalysis() mismatch (-want +got):\n%s", diff)
	}

	got, err = ParseAnalysis(`{"summary": "ok", "priority": "urgent"}`)
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, got.Priority)
	assert.Equal(t, []string{}, got.MainProblems)

	for _, resp := range []string{"not json", `{"summary": ""}`, `{"summary": 3}`} {
		_, err := ParseAnalysis(resp)
		assert.Errorf(t, err, "ParseAnalysis(%q)", resp)
	}
}

func TestPrompt(t *testing.T) {
	report := sampleReport(t)
	prompt, err := Prompt(NewDigest(report, monitor.Aggregate(report, ""), 10))
	require.NoError(t, err)

	for _, want := range []string{
		"- Expected: 4",
		"- Attendance rate: 25.0%",
		"Total problems: 4",
		"a2@x.com (a2@x.com) - cohort A, room 1 - ABSENT",
		"a3@x.com (a3@x.com) - cohort A, room 2 - WRONG ROOM (expected: 2, actual: 1)",
		"z@y.com (z@y.com) - room 1 - NOT IN ROSTER",
		`"cohort": "B"`,
	} {
		assert.Contains(t, prompt, want)
	}

	empty, err := Prompt(Digest{Rooms: []RoomProblems{}})
	require.NoError(t, err)
	assert.Contains(t, empty, "No problems detected.")
}

func TestProblemLine(t *testing.T) {
	base := monitor.ParticipantStatus{
		Identity: "ana@x.com", Name: "Ana", Cohort: roster.CohortA, ExpectedRoom: 1, Status: monitor.StatusMisplaced,
	}
	tests := []struct {
		name   string
		mutate func(p *monitor.ParticipantStatus)
		want   string
	}{
		{
			name: "wrong room",
			mutate: func(p *monitor.ParticipantStatus) {
				p.Reason, p.ActualRoom, p.ActualCohort = monitor.ReasonWrongRoom, 3, roster.CohortA
			},
			want: "Ana (ana@x.com) - cohort A, room 1 - WRONG ROOM (expected: 1, actual: 3)",
		},
		{
			name: "wrong cohort",
			mutate: func(p *monitor.ParticipantStatus) {
				p.Reason, p.ActualRoom, p.ActualCohort = monitor.ReasonWrongCohort, 1, roster.CohortB
			},
			want: "Ana (ana@x.com) - cohort A, room 1 - WRONG COHORT (expected: room 1 cohort A, actual: room 1 cohort B)",
		},
		{
			name: "cross cohort",
			mutate: func(p *monitor.ParticipantStatus) {
				p.Reason, p.ActualRoom, p.ActualCohort = monitor.ReasonCrossCohort, 2, roster.CohortB
			},
			want: "Ana (ana@x.com) - cohort A, room 1 - WRONG COHORT (expected: room 1 cohort A, actual: room 2 cohort B)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			assert.Equal(t, tt.want, problemLine(p))
		})
	}
}
