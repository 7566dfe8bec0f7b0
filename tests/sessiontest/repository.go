// Package sessiontest holds the behaviour shared by every session.Repository.
// It lives apart from testutil so packages below core/session can use testutil.
package sessiontest

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/volatiletech/null/v8"

	"github.com/avamec/salas/core/roster"
	"github.com/avamec/salas/core/session"
	testutil "github.com/avamec/salas/tests"
)

// TestRepository runs the behaviour every session.Repository must share.
func TestRepository(t *testing.T, repo session.Repository) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	if _, err := repo.GetSession(ctx, "missing"); err != session.ErrNotFound {
		t.Fatalf("GetSession(missing) error = %v, want %v", err, session.ErrNotFound)
	}

	s := session.New("s1", now)
	if _, err := repo.CreateSession(ctx, s); err != nil {
		t.Fatalf("CreateSession() unexpected error = %v", err)
	}
	if _, err := repo.CreateSession(ctx, s); err != session.ErrKeyExists {
		t.Fatalf("CreateSession(dup) error = %v, want %v", err, session.ErrKeyExists)
	}

	s.Roster = roster.FromAssignments(
		testutil.Assignment("a@x.com", roster.CohortA, 1),
		roster.ExpectedAssignment{Identity: "b@x.com", Name: "B", Cohort: roster.CohortB, ExpectedRoom: 2, Contact: null.StringFrom("555")},
	)
	s.Columns = roster.Columns{roster.FieldIdentity: "email", roster.FieldRoom: "grupo"}
	s.Skipped = []roster.SkippedRow{{Index: 3, Reason: "missing email"}}
	s.Presence = testutil.Snapshot(t, testutil.Seen("a@x.com", roster.CohortA, 2), testutil.Seen("z@y.com", "", 1))
	s.RosterLoadedAt = null.TimeFrom(now.Add(time.Minute))
	s.UpdatedAt = now.Add(time.Minute)
	if _, err := repo.UpdateSession(ctx, s); err != nil {
		t.Fatalf("UpdateSession() unexpected error = %v", err)
	}

	got, err := repo.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession() unexpected error = %v", err)
	}
	if diff := cmp.Diff(s, got, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
		t.Errorf("GetSession() mismatch (-want +got):\n%s", diff)
	}

	if _, err = repo.UpdateSession(ctx, session.New("missing", now)); err != session.ErrNotFound {
		t.Errorf("UpdateSession(missing) error = %v, want %v", err, session.ErrNotFound)
	}
	if err = repo.DeleteSession(ctx, "s1"); err != nil {
		t.Errorf("DeleteSession() unexpected error = %v", err)
	}
	if err = repo.DeleteSession(ctx, "s1"); err != session.ErrNotFound {
		t.Errorf("DeleteSession(again) error = %v, want %v", err, session.ErrNotFound)
	}
}
