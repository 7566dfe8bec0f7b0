package summary

import (
	"fmt"
	"net/mail"

	"github.com/avamec/salas/core"
	"github.com/avamec/salas/core/monitor"
	"github.com/avamec/salas/core/roster"
)

// AlertMessage is the one-line alert of a participant.
func AlertMessage(p monitor.ParticipantStatus) string {
	switch {
	case p.Status == monitor.StatusAbsent:
		return fmt.Sprintf("ALERT: %s (%s) is ABSENT from room %d (cohort %s)", p.Name, p.Identity, p.ExpectedRoom, p.Cohort)
	case p.Status == monitor.StatusMisplaced && !p.Expected():
		return fmt.Sprintf("ALERT: %s (%s) is in room %d but is NOT IN THE ROSTER", p.Name, p.Identity, p.ActualRoom)
	case p.Status == monitor.StatusMisplaced:
		return fmt.Sprintf("ALERT: %s (%s) is in the WRONG ROOM. Expected: room %d (cohort %s), actual: room %d%s",
			p.Name, p.Identity, p.ExpectedRoom, p.Cohort, p.ActualRoom, cohortSuffix(p.ActualCohort))
	default:
		return fmt.Sprintf("INFO: %s is present in the right room", p.Name)
	}
}

func cohortSuffix(c roster.Cohort) string {
	if !c.Known() {
		return ""
	}
	return fmt.Sprintf(" (cohort %s)", c)
}

// Alerts returns the alert line of every problem.
func Alerts(problems []monitor.ParticipantStatus) []string {
	alerts := make([]string, 0, len(problems))
	for _, p := range problems {
		alerts = append(alerts, AlertMessage(p))
	}
	return alerts
}

type alertDigestData struct {
	Cohort roster.Cohort
	Stats  monitor.Stats
	Alerts []string
}

// AlertDigestEmail builds the e-mail summarizing the alerts of a reconciliation pass.
func AlertDigestEmail(stats monitor.Stats, alerts []string, to ...mail.Address) *core.EmailMessage {
	subject := "Room monitoring report"
	if stats.Cohort.Known() {
		subject += fmt.Sprintf(" (cohort %s)", stats.Cohort)
	}
	if n := len(alerts); n > 0 {
		subject += fmt.Sprintf(": %d alerts", n)
	}
	return &core.EmailMessage{
		To:           to,
		Subject:      subject,
		TemplateName: "alert_digest",
		TemplateData: alertDigestData{Cohort: stats.Cohort, Stats: stats, Alerts: alerts},
	}
}
