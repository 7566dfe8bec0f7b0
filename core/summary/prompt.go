package summary

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/avamec/salas/core/monitor"
)

// SystemPrompt frames the model as an assistant to the technician supervising the rooms.
const SystemPrompt = `You are an assistant specialized in analysing attendance data of synchronous meetings.
Your job is to analyse discrepancies between expected and actual participants,
identify problems and suggest corrective actions to the IT technician.

Always answer in JSON with the following structure:
{
    "summary": "short summary of the situation",
    "main_problems": ["list", "of", "problems"],
    "recommendations": ["list", "of", "recommendations"],
    "priority": "high|medium|low",
    "suggested_actions": ["action 1", "action 2"]
}`

// Prompt renders d as the user prompt of an analysis request.
func Prompt(d Digest) (string, error) {
	rooms, err := json.MarshalIndent(d.Rooms, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "summary.Prompt")
	}

	var b strings.Builder
	b.WriteString("Analyse the following attendance data of synchronous meetings:\n\n")
	b.WriteString("STATISTICS:\n")
	fmt.Fprintf(&b, "- Expected: %d\n", d.Stats.Expected)
	fmt.Fprintf(&b, "- Present: %d\n", d.Stats.Present)
	fmt.Fprintf(&b, "- Absent: %d\n", d.Stats.Absent)
	fmt.Fprintf(&b, "- Misplaced: %d\n", d.Misplaced)
	fmt.Fprintf(&b, "- Attendance rate: %.1f%%\n\n", d.Stats.PresentPct)
	fmt.Fprintf(&b, "DETECTED PROBLEMS:\nTotal problems: %d\n\n", d.TotalProblems)
	fmt.Fprintf(&b, "ROOMS WITH PROBLEMS:\n%s\n\n", rooms)
	fmt.Fprintf(&b, "PARTICIPANTS WITH PROBLEMS (first %d):\n", len(d.Sample))
	if len(d.Sample) == 0 {
		b.WriteString("No problems detected.\n")
	}
	for _, p := range d.Sample {
		fmt.Fprintf(&b, "- %s\n", problemLine(p))
	}
	b.WriteString(`
Analyse this situation and provide:
1. A clear summary of the situation
2. The main problems identified
3. Practical recommendations for the IT technician
4. Priority (high/medium/low)
5. Suggested actions in order of priority

Answer ONLY with valid JSON, without any text before or after.`)
	return b.String(), nil
}

func problemLine(p monitor.ParticipantStatus) string {
	switch {
	case p.Status == monitor.StatusAbsent:
		return fmt.Sprintf("%s (%s) - cohort %s, room %d - ABSENT", p.Name, p.Identity, p.Cohort, p.ExpectedRoom)
	case !p.Expected():
		return fmt.Sprintf("%s (%s) - room %d - NOT IN ROSTER", p.Name, p.Identity, p.ActualRoom)
	case p.Reason == monitor.ReasonCrossCohort || p.Reason == monitor.ReasonWrongCohort:
		return fmt.Sprintf("%s (%s) - cohort %s, room %d - WRONG COHORT (expected: room %d cohort %s, actual: room %d cohort %s)",
			p.Name, p.Identity, p.Cohort, p.ExpectedRoom, p.ExpectedRoom, p.Cohort, p.ActualRoom, p.ActualCohort)
	default:
		return fmt.Sprintf("%s (%s) - cohort %s, room %d - WRONG ROOM (expected: %d, actual: %d)",
			p.Name, p.Identity, p.Cohort, p.ExpectedRoom, p.ExpectedRoom, p.ActualRoom)
	}
}

// ExtractJSON returns the JSON object embedded in a model response: the response
// itself when it starts with "{", or the content of a ```json or ``` fence.
// The trimmed response is returned when no object is found.
func ExtractJSON(resp string) string {
	resp = strings.TrimSpace(resp)

	if strings.HasPrefix(resp, "{") {
		if end := strings.LastIndex(resp, "}"); end > 0 {
			return resp[:end+1]
		}
	}
	if start := strings.Index(resp, "```json"); start >= 0 {
		start += len("```json")
		if end := strings.Index(resp[start:], "```"); end > 0 {
			return strings.TrimSpace(resp[start : start+end])
		}
	}
	if strings.Contains(resp, "```") {
		for _, part := range strings.Split(resp, "```") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
				return part
			}
		}
	}
	return resp
}

var priorities = map[string]Priority{
	"high":   PriorityHigh,
	"alta":   PriorityHigh,
	"medium": PriorityMedium,
	"media":  PriorityMedium,
	"média":  PriorityMedium,
	"low":    PriorityLow,
	"baixa":  PriorityLow,
}

// ParseAnalysis decodes a model response. Unknown priorities fall back to medium.
func ParseAnalysis(resp string) (Analysis, error) {
	var raw struct {
		Summary          string   `json:"summary"`
		MainProblems     []string `json:"main_problems"`
		Recommendations  []string `json:"recommendations"`
		Priority         string   `json:"priority"`
		SuggestedActions []string `json:"suggested_actions"`
	}
	if err := json.Unmarshal([]byte(ExtractJSON(resp)), &raw); err != nil {
		return Analysis{}, errors.Wrap(err, "decoding analysis")
	}
	if strings.TrimSpace(raw.Summary) == "" {
		return Analysis{}, errors.New("decoding analysis: empty summary")
	}

	prio, ok := priorities[strings.ToLower(strings.TrimSpace(raw.Priority))]
	if !ok {
		prio = PriorityMedium
	}
	return Analysis{
		Summary:          raw.Summary,
		MainProblems:     nonNil(raw.MainProblems),
		Recommendations:  nonNil(raw.Recommendations),
		Priority:         prio,
		SuggestedActions: nonNil(raw.SuggestedActions),
	}, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
