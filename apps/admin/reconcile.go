package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"

	"github.com/avamec/salas/core"
	"github.com/avamec/salas/core/monitor"
	"github.com/avamec/salas/core/presence"
	"github.com/avamec/salas/core/roster"
	"github.com/avamec/salas/core/summary"
)

// presence export headers, matched as lowercase substrings
var (
	presenceEmailHeaders  = []string{"mail"}
	presenceRoomHeaders   = []string{"room", "sala", "grupo"}
	presenceCohortHeaders = []string{"cohort", "turma"}
	presenceNameHeaders   = []string{"name", "nome"}
)

func (cli *commandLine) reconcile(rosterPath, presencePath string, cohort roster.Cohort, analyze bool) error {
	opts := roster.Options{NumRooms: cli.conf.Monitor.NumRooms, Cohorts: roster.ParseCohorts(cli.conf.Monitor.Cohorts)}
	loader := roster.NewLoader(opts, cli.validate, cli.logger)
	opts = loader.Options()
	if cohort.Known() && !hasCohort(opts.Cohorts, cohort) {
		return errors.Errorf("unknown cohort %q", cohort)
	}

	records, err := readCSV(rosterPath)
	if err != nil {
		return errors.Wrap(err, "reading roster")
	}
	res, err := loader.Load(roster.NewTable(records))
	if err != nil {
		return errors.Wrap(err, "loading roster")
	}

	records, err = readCSV(presencePath)
	if err != nil {
		return errors.Wrap(err, "reading presence")
	}
	snap, err := cli.recordPresence(presence.NewRecorder(), records, res.Roster, opts.Cohorts)
	if err != nil {
		return errors.Wrap(err, "recording presence")
	}

	report := monitor.Reconcile(res.Roster, snap, cohort)
	stats := monitor.Aggregate(report, cohort)
	if err = cli.printReport(res, report, stats); err != nil {
		return err
	}

	if analyze {
		d := summary.NewDigest(report, stats, cli.conf.Monitor.ProblemSampleSize)
		cli.printAnalysis(cli.analyzer.Analyze(context.Background(), d))
	}
	return nil
}

func hasCohort(cohorts []roster.Cohort, c roster.Cohort) bool {
	for _, known := range cohorts {
		if known == c {
			return true
		}
	}
	return false
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r.ReadAll()
}

// recordPresence records a presence export. The export is cohort-aware when every row resolves its cohort;
// otherwise cohorts are inferred from ros.
func (cli *commandLine) recordPresence(rec *presence.Recorder, records [][]string, ros roster.Roster, cohorts []roster.Cohort) (presence.Snapshot, error) {
	if len(records) == 0 {
		return rec.Snapshot(), nil
	}

	headers := records[0]
	emailCol := findHeader(headers, presenceEmailHeaders)
	if emailCol < 0 {
		return nil, errors.New("email column not found")
	}
	roomCol := findHeader(headers, presenceRoomHeaders)
	if roomCol < 0 {
		return nil, errors.New("room column not found")
	}
	cohortCol := findHeader(headers, presenceCohortHeaders)
	nameCol := findHeader(headers, presenceNameHeaders)

	byKey := make(map[presence.RoomKey][]presence.Attendee)
	cohortAware := cohortCol >= 0
	for idx, row := range records[1:] {
		room, ok := roster.ParseRoom(cell(row, roomCol))
		if !ok || room < 1 {
			cli.logger.Warn(fmt.Sprintf("presence: skipping row %d: invalid room %q", idx, cell(row, roomCol)))
			continue
		}
		var c roster.Cohort
		if cohortCol >= 0 {
			c, _ = roster.ResolveCohort(cell(row, cohortCol), cohorts)
		}
		if !c.Known() {
			cohortAware = false
		}
		key := presence.RoomKey{Cohort: c, Room: room}
		byKey[key] = append(byKey[key], presence.Attendee{Email: cell(row, emailCol), Name: cell(row, nameCol)})
	}

	if cohortAware {
		return rec.Record(byKey), nil
	}

	keys := make([]presence.RoomKey, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	byRoom := make(map[int][]presence.Attendee)
	for _, k := range keys {
		byRoom[k.Room] = append(byRoom[k.Room], byKey[k]...)
	}
	return rec.RecordRooms(byRoom, ros), nil
}

func findHeader(headers []string, patterns []string) int {
	for i, h := range headers {
		h = core.CollapseSpaces(h)
		for _, p := range patterns {
			if strings.Contains(h, p) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return core.CleanString(row[idx])
}

func (cli *commandLine) highlight(s string) string {
	if !cli.tty || s == "" {
		return s
	}
	return "\033[1;31m" + s + "\033[0m"
}

func (cli *commandLine) printReport(res roster.LoadResult, report monitor.Report, stats monitor.Stats) error {
	for _, s := range res.Skipped {
		_, _ = fmt.Fprintf(cli.out, "skipped roster row %d: %s\n", s.Index, s.Reason)
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COHORT\tROOM\tEXPECTED\tPRESENT\tABSENT\tMISPLACED\t")
	for _, s := range report {
		var mark string
		if s.HasProblems() {
			mark = "!"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.Cohort, s.Room, s.ExpectedCount, s.PresentCount, s.AbsentCount, len(s.Misplaced), cli.highlight(mark))
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(err, "printing report")
	}

	_, _ = fmt.Fprintln(cli.out)
	for _, alert := range summary.Alerts(report.Problems()) {
		_, _ = fmt.Fprintln(cli.out, alert)
	}
	_, _ = fmt.Fprintf(cli.out, "\nexpected: %d, present: %d (%.1f%%), absent: %d (%.1f%%), misplaced: %d\n",
		stats.Expected, stats.Present, stats.PresentPct, stats.Absent, stats.AbsentPct, stats.Misplaced)
	return nil
}

func (cli *commandLine) printAnalysis(a summary.Analysis) {
	_, _ = fmt.Fprintf(cli.out, "\n%s\npriority: %s\n", a.Summary, a.Priority)
	printList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		_, _ = fmt.Fprintf(cli.out, "%s:\n", title)
		for _, it := range items {
			_, _ = fmt.Fprintf(cli.out, "  - %s\n", it)
		}
	}
	printList("main problems", a.MainProblems)
	printList("recommendations", a.Recommendations)
	printList("suggested actions", a.SuggestedActions)
	if a.Error != "" {
		_, _ = fmt.Fprintf(cli.out, "(summarizer unavailable: %s)\n", a.Error)
	}
}
