package summary

import (
	"context"
	"fmt"

	"github.com/avamec/salas/core/monitor"
)

// TemplateSummarizer builds an Analysis from the digest counts alone. It never fails.
type TemplateSummarizer struct{}

func (TemplateSummarizer) Summarize(_ context.Context, d Digest) (Analysis, error) {
	st := d.Stats
	a := Analysis{
		Summary: fmt.Sprintf("%d of %d expected participants present (%.1f%%), %d absent (%.1f%%), %d misplaced.",
			st.Present, st.Expected, st.PresentPct, st.Absent, st.AbsentPct, st.Misplaced),
		MainProblems:     []string{},
		Recommendations:  []string{},
		SuggestedActions: []string{},
		Priority:         priorityOf(st),
		GeneratedAt:      monitor.NowFunc(),
		Digest:           d,
	}
	if d.TotalProblems == 0 {
		a.Summary = fmt.Sprintf("All %d expected participants are in their rooms.", st.Expected)
		return a, nil
	}

	if d.Absent > 0 {
		a.MainProblems = append(a.MainProblems, fmt.Sprintf("%d participants absent", d.Absent))
		a.Recommendations = append(a.Recommendations, "Check the connection of absent participants")
		a.SuggestedActions = append(a.SuggestedActions, "Contact absent participants")
	}
	if n := d.ByReason[monitor.ReasonWrongRoom] + d.ByReason[monitor.ReasonWrongCohort]; n > 0 {
		a.MainProblems = append(a.MainProblems, fmt.Sprintf("%d participants in the wrong room", n))
		a.Recommendations = append(a.Recommendations, "Check that participants joined their assigned rooms")
		a.SuggestedActions = append(a.SuggestedActions, "Move misplaced participants to their assigned rooms")
	}
	if n := d.ByReason[monitor.ReasonCrossCohort]; n > 0 {
		a.MainProblems = append(a.MainProblems, fmt.Sprintf("%d participants attending another cohort", n))
		a.SuggestedActions = append(a.SuggestedActions, "Confirm the cohort of participants attending another cohort")
	}
	if n := d.ByReason[monitor.ReasonUnexpected]; n > 0 {
		a.MainProblems = append(a.MainProblems, fmt.Sprintf("%d participants missing from the roster", n))
		a.Recommendations = append(a.Recommendations, "Review room assignments against the roster")
		a.SuggestedActions = append(a.SuggestedActions, "Identify participants missing from the roster")
	}
	if len(d.Rooms) > 0 {
		worst := d.Rooms[0]
		for _, r := range d.Rooms[1:] {
			if r.Absent+r.Misplaced > worst.Absent+worst.Misplaced {
				worst = r
			}
		}
		a.Recommendations = append(a.Recommendations,
			fmt.Sprintf("Start with room %d of cohort %s (%d problems)", worst.Room, worst.Cohort, worst.Absent+worst.Misplaced))
	}
	return a, nil
}

// priorityOf ranks the situation by absence rate.
func priorityOf(st monitor.Stats) Priority {
	switch {
	case st.AbsentPct >= 50:
		return PriorityHigh
	case st.AbsentPct >= 20:
		return PriorityMedium
	default:
		return PriorityLow
	}
}
