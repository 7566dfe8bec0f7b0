package roster

import "strings"

// cohortMatchers are tried in order against every cohort before moving on to the next one.
var cohortMatchers = []func(s, label string) bool{
	func(s, label string) bool { return strings.Contains(s, "TURMA "+label) },
	func(s, label string) bool { return strings.Contains(" "+s+" ", " "+label+" ") },
	func(s, label string) bool { return strings.HasPrefix(s, label) || strings.HasSuffix(s, label) },
	func(s, label string) bool { return strings.Contains(s, label) },
	func(s, label string) bool { return s[0] == label[0] },
}

// ResolveCohort extracts a cohort label from free text such as "Turma A - Manhã".
func ResolveCohort(value string, cohorts []Cohort) (Cohort, bool) {
	s := strings.ToUpper(strings.TrimSpace(value))
	if s == "" {
		return "", false
	}
	for _, match := range cohortMatchers {
		for _, c := range cohorts {
			label := strings.ToUpper(string(c))
			if label != "" && match(s, label) {
				return c, true
			}
		}
	}
	return "", false
}
