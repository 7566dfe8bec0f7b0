package roster

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/avamec/salas/core"
)

// Row is a roster line keyed by header.
type Row map[string]string

// Table is a tabular roster source. Header order decides which column wins a field.
type Table struct {
	Headers []string `json:"headers" validate:"required,min=1"`
	Rows    []Row    `json:"rows"`
}

// NewTable builds a Table from records whose first line holds the headers (e.g. a CSV file).
// Short lines are padded with blanks.
func NewTable(records [][]string) Table {
	if len(records) == 0 {
		return Table{}
	}
	headers := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return Table{Headers: headers, Rows: rows}
}

// SkippedRow describes a row left out of the roster.
type SkippedRow struct {
	Index  int    `json:"index"` // 0-based, header excluded
	Reason string `json:"reason"`
}

// LoadResult is the outcome of a roster load.
type LoadResult struct {
	Roster  Roster       `json:"-"`
	Columns Columns      `json:"columns"`
	Skipped []SkippedRow `json:"skipped"`
}

func (r LoadResult) Loaded() int { return len(r.Roster) }

type Options struct {
	NumRooms int
	Cohorts  []Cohort
}

// ParseCohorts normalizes configured cohort labels, dropping blank ones.
func ParseCohorts(labels []string) []Cohort {
	cohorts := make([]Cohort, 0, len(labels))
	for _, l := range labels {
		if l = strings.ToUpper(core.CleanString(l)); l != "" {
			cohorts = append(cohorts, Cohort(l))
		}
	}
	return cohorts
}

func DefaultOptions() Options {
	return Options{NumRooms: DefaultNumRooms, Cohorts: DefaultCohorts}
}

// Loader parses roster tables into expected assignments.
type Loader struct {
	opts     Options
	validate *validator.Validate
	logger   core.Logger
	roomTag  string
}

func NewLoader(opts Options, validate *validator.Validate, logger core.Logger) *Loader {
	if opts.NumRooms <= 0 {
		opts.NumRooms = DefaultNumRooms
	}
	if len(opts.Cohorts) == 0 {
		opts.Cohorts = DefaultCohorts
	}
	return &Loader{
		opts:     opts,
		validate: validate,
		logger:   logger,
		roomTag:  fmt.Sprintf("min=1,max=%d", opts.NumRooms),
	}
}

func (l *Loader) Options() Options { return l.opts }

// Load resolves the columns of t and parses every row.
// A missing required column fails the whole load; bad rows are skipped and reported.
func (l *Loader) Load(t Table) (LoadResult, error) {
	cols, err := ResolveColumns(t.Headers)
	if err != nil {
		return LoadResult{}, err
	}

	res := LoadResult{
		Roster:  make(Roster, len(t.Rows)),
		Columns: cols,
	}
	for idx, row := range t.Rows {
		a, reason := l.ParseRow(row, cols)
		if reason != "" {
			l.logger.Warn(fmt.Sprintf("roster: skipping row %d: %s", idx, reason))
			res.Skipped = append(res.Skipped, SkippedRow{Index: idx, Reason: reason})
			continue
		}
		res.Roster[a.Identity] = a // last row wins
	}
	if n := len(res.Skipped); n > 0 {
		l.logger.Info(fmt.Sprintf("roster: loaded %d assignments, skipped %d rows", len(res.Roster), n))
	}
	return res, nil
}

// ParseRow validates a single row. A non-empty reason means the row must be skipped.
func (l *Loader) ParseRow(row Row, cols Columns) (ExpectedAssignment, string) {
	id := NormalizeIdentity(row[cols[FieldIdentity]])
	if isBlank(string(id)) {
		return ExpectedAssignment{}, "missing email"
	}
	if err := l.validate.Var(string(id), "contains=@"); err != nil {
		return ExpectedAssignment{}, fmt.Sprintf("invalid email %q", id)
	}

	name := core.CleanString(row[cols[FieldName]])
	if isBlank(name) {
		name = string(id)
	}

	rawCohort := row[cols[FieldCohort]]
	cohort, ok := ResolveCohort(rawCohort, l.opts.Cohorts)
	if !ok {
		return ExpectedAssignment{}, fmt.Sprintf("unknown cohort %q", core.CleanString(rawCohort))
	}

	rawRoom := core.CleanString(row[cols[FieldRoom]])
	room, ok := ParseRoom(rawRoom)
	if !ok {
		return ExpectedAssignment{}, fmt.Sprintf("invalid room %q", rawRoom)
	}
	if err := l.validate.Var(room, l.roomTag); err != nil {
		return ExpectedAssignment{}, fmt.Sprintf("room %d out of range [1, %d]", room, l.opts.NumRooms)
	}

	var contact null.String
	if col, ok := cols[FieldContact]; ok {
		if c := core.CleanString(row[col]); !isBlank(c) {
			contact = null.StringFrom(c)
		}
	}

	return ExpectedAssignment{
		Identity:     id,
		Name:         name,
		Cohort:       cohort,
		ExpectedRoom: room,
		Contact:      contact,
	}, ""
}

// ParseRoom accepts integers and float text such as "1.0" (truncated towards zero).
func ParseRoom(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if isBlank(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// isBlank also treats spreadsheet "nan" cells as blank.
func isBlank(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "nan")
}
