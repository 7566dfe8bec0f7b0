package roster

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/avamec/salas/core"
)

// Field is a semantic roster column.
type Field string

const (
	FieldIdentity Field = "email"
	FieldName     Field = "name"
	FieldCohort   Field = "cohort"
	FieldRoom     Field = "room"
	FieldContact  Field = "contact"
)

// requiredFields are resolved in this order; the first missing one fails the load.
var requiredFields = []Field{FieldIdentity, FieldName, FieldCohort, FieldRoom}

// ColumnPatterns lists, per field, the header substrings that identify its column.
// Headers come from human-authored sign-up forms, hence the long Portuguese prompts.
var ColumnPatterns = map[Field][]string{
	FieldCohort: {
		"indique abaixo o melhor período para realização das atividades síncronas",
		"turma",
		"período",
		"periodo",
		"cohort",
	},
	FieldRoom: {
		"grupo",
		"room",
	},
	FieldName: {
		"nome completo",
		"nome",
		"nome completo (sem abreviação)",
		"name",
	},
	FieldIdentity: {
		"escreva o e-mail",
		"e-mail",
		"email",
		"g-mail",
		"gmail",
		"escreva o e-mail (g-mail) o qual você irá acessar as aulas síncronas pelo google meet",
	},
	FieldContact: {
		"número do telefone",
		"telefone",
		"whatsapp",
		"número do telefone com ddd (whatsapp)",
		"ddd",
		"celular",
		"phone",
	},
}

const suggestionMinRatio = .6

// MissingColumnError is returned when a required field has no matching header.
type MissingColumnError struct {
	Field      Field
	Patterns   []string
	Suggestion string // closest header, if any looked alike
}

func (err *MissingColumnError) Error() string {
	msg := fmt.Sprintf("%s column not found; looked for headers containing: %s",
		err.Field, strings.Join(err.Patterns, ", "))
	if err.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", err.Suggestion)
	}
	return msg
}

// Columns holds the resolved header of each field. Contact may be empty.
type Columns map[Field]string

// ResolveColumns finds the column of every field.
// Headers are compared lowercased with collapsed whitespace; the first header
// (in table order) containing any of the field's patterns wins.
func ResolveColumns(headers []string) (Columns, error) {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = core.CollapseSpaces(h)
	}

	cols := make(Columns, len(ColumnPatterns))
	for fld, patterns := range ColumnPatterns {
		if idx := findColumn(normalized, patterns); idx >= 0 {
			cols[fld] = headers[idx]
		}
	}

	for _, fld := range requiredFields {
		if _, ok := cols[fld]; !ok {
			return nil, &MissingColumnError{
				Field:      fld,
				Patterns:   ColumnPatterns[fld],
				Suggestion: closestHeader(headers, normalized, ColumnPatterns[fld]),
			}
		}
	}
	return cols, nil
}

func findColumn(normalized []string, patterns []string) int {
	for i, h := range normalized {
		for _, p := range patterns {
			if strings.Contains(h, p) {
				return i
			}
		}
	}
	return -1
}

func closestHeader(headers, normalized []string, patterns []string) string {
	var (
		best      string
		bestRatio float64
	)
	for i, h := range normalized {
		if h == "" {
			continue
		}
		for _, p := range patterns {
			ratio := difflib.NewMatcher(strings.Split(h, ""), strings.Split(p, "")).Ratio()
			if ratio > bestRatio {
				best, bestRatio = headers[i], ratio
			}
		}
	}
	if bestRatio < suggestionMinRatio {
		return ""
	}
	return best
}
