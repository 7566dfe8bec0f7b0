// Package summary turns reconciliation results into a narrative analysis and alerts.
package summary

import (
	"context"
	"time"

	"github.com/avamec/salas/core/monitor"
	"github.com/avamec/salas/core/roster"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// DefaultSampleSize bounds the problem records handed to a Summarizer.
const DefaultSampleSize = 10

// RoomProblems counts the problems of one room.
type RoomProblems struct {
	Cohort    roster.Cohort `json:"cohort"`
	Room      int           `json:"room"`
	Absent    int           `json:"absent"`
	Misplaced int           `json:"misplaced"`
}

// Digest is the plain data a Summarizer works from: the counts and a bounded sample of problems.
type Digest struct {
	Stats         monitor.Stats               `json:"stats"`
	TotalProblems int                         `json:"total_problems"`
	Absent        int                         `json:"absent"`
	Misplaced     int                         `json:"misplaced"`
	ByReason      map[monitor.Reason]int      `json:"by_reason"`
	Rooms         []RoomProblems              `json:"rooms"`
	Sample        []monitor.ParticipantStatus `json:"sample"`
}

// NewDigest summarizes report. sampleSize <= 0 uses DefaultSampleSize.
func NewDigest(report monitor.Report, stats monitor.Stats, sampleSize int) Digest {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	problems := report.Problems()
	d := Digest{
		Stats:         stats,
		TotalProblems: len(problems),
		ByReason:      report.CountByReason(),
		Rooms:         []RoomProblems{},
	}
	for _, p := range problems {
		if p.Status == monitor.StatusAbsent {
			d.Absent++
		} else {
			d.Misplaced++
		}
	}
	for _, s := range report.ProblemRooms() {
		d.Rooms = append(d.Rooms, RoomProblems{
			Cohort:    s.Cohort,
			Room:      s.Room,
			Absent:    s.AbsentCount,
			Misplaced: len(s.Misplaced),
		})
	}
	if len(problems) > sampleSize {
		problems = problems[:sampleSize]
	}
	d.Sample = problems
	return d
}

// Analysis is the narrative reading of a Digest.
type Analysis struct {
	Summary          string    `json:"summary"`
	MainProblems     []string  `json:"main_problems"`
	Recommendations  []string  `json:"recommendations"`
	Priority         Priority  `json:"priority"`
	SuggestedActions []string  `json:"suggested_actions"`
	GeneratedAt      time.Time `json:"generated_at"`
	Fallback         bool      `json:"fallback"`        // built from the template summarizer
	Error            string    `json:"error,omitempty"` // why the primary summarizer was bypassed
	Digest           Digest    `json:"digest"`
}

// Summarizer is any service that can narrate a Digest.
type Summarizer interface {
	Summarize(ctx context.Context, d Digest) (Analysis, error)
}
