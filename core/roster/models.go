package roster

import (
	"sort"
	"strings"

	"github.com/volatiletech/null/v8"

	"github.com/avamec/salas/core"
)

const (
	CohortA Cohort = "A"
	CohortB Cohort = "B"

	// DefaultNumRooms is the number of themed rooms per cohort.
	DefaultNumRooms = 10
)

// DefaultCohorts are the two class groupings a roster row may belong to.
var DefaultCohorts = []Cohort{CohortA, CohortB}

// Identity is a normalized email address; the join key between expected and actual attendance.
type Identity string

// NormalizeIdentity lowers and trims a raw email.
func NormalizeIdentity(email string) Identity {
	return Identity(core.CleanString(email, true /* lower */))
}

// Valid reports whether the identity looks like an email.
func (id Identity) Valid() bool {
	return strings.Contains(string(id), "@")
}

// Cohort is one of the fixed class groupings. The zero value means unknown.
type Cohort string

func (c Cohort) Known() bool { return c != "" }

// ExpectedAssignment is the room a roster entry should occupy.
type ExpectedAssignment struct {
	Identity     Identity    `json:"identity"`
	Name         string      `json:"name"`
	Cohort       Cohort      `json:"cohort"`
	ExpectedRoom int         `json:"expected_room"`
	Contact      null.String `json:"contact"`
}

// Roster maps identities to their expected assignment.
type Roster map[Identity]ExpectedAssignment

// Lookup returns the assignment of id, if any.
func (r Roster) Lookup(id Identity) (ExpectedAssignment, bool) {
	a, ok := r[id]
	return a, ok
}

// Sorted returns the assignments ordered by identity.
func (r Roster) Sorted() []ExpectedAssignment {
	list := make([]ExpectedAssignment, 0, len(r))
	for _, a := range r {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Identity < list[j].Identity })
	return list
}

// FromAssignments builds a Roster; later entries win on duplicate identities.
func FromAssignments(assignments ...ExpectedAssignment) Roster {
	r := make(Roster, len(assignments))
	for _, a := range assignments {
		a.Identity = NormalizeIdentity(string(a.Identity))
		r[a.Identity] = a
	}
	return r
}
