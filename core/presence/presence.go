// Package presence records who is observed in which room.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/avamec/salas/core/roster"
)

// Attendee is a participant as reported by the meeting platform.
type Attendee struct {
	Email string `json:"email"` // blank or malformed entries are dropped
	Name  string `json:"name"`
}

// RoomKey identifies a room within a cohort. An empty Cohort means the cohort is unknown.
type RoomKey struct {
	Cohort roster.Cohort `json:"cohort"`
	Room   int           `json:"room"`
}

func (k RoomKey) Less(other RoomKey) bool {
	if k.Cohort != other.Cohort {
		return k.Cohort < other.Cohort
	}
	return k.Room < other.Room
}

// Presence is where an identity was observed.
type Presence struct {
	Identity roster.Identity `json:"identity"`
	Name     string          `json:"name"`
	Room     int             `json:"room"`
	Cohort   roster.Cohort   `json:"cohort,omitempty"` // empty when unknown
}

// Snapshot maps identities to their observed presence.
type Snapshot map[roster.Identity]Presence

// Sorted returns the presences ordered by identity.
func (s Snapshot) Sorted() []Presence {
	list := make([]Presence, 0, len(s))
	for _, p := range s {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Identity < list[j].Identity })
	return list
}

// Build normalizes a cohort-aware report into a Snapshot.
// Rooms are visited in (cohort, room) order, so an identity reported twice keeps its last room.
func Build(byRoom map[RoomKey][]Attendee) Snapshot {
	keys := make([]RoomKey, 0, len(byRoom))
	for k := range byRoom {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	snap := make(Snapshot)
	for _, k := range keys {
		for _, a := range byRoom[k] {
			add(snap, a, k.Room, k.Cohort)
		}
	}
	return snap
}

// BuildFromRooms normalizes a room-only report, inferring each cohort from the roster.
// Identities missing from the roster keep an unknown cohort.
func BuildFromRooms(byRoom map[int][]Attendee, ros roster.Roster) Snapshot {
	rooms := make([]int, 0, len(byRoom))
	for room := range byRoom {
		rooms = append(rooms, room)
	}
	sort.Ints(rooms)

	snap := make(Snapshot)
	for _, room := range rooms {
		for _, a := range byRoom[room] {
			var cohort roster.Cohort
			if exp, ok := ros.Lookup(roster.NormalizeIdentity(a.Email)); ok {
				cohort = exp.Cohort
			}
			add(snap, a, room, cohort)
		}
	}
	return snap
}

func add(snap Snapshot, a Attendee, room int, cohort roster.Cohort) {
	id := roster.NormalizeIdentity(a.Email)
	if !id.Valid() {
		return
	}
	name := a.Name
	if name == "" {
		name = string(id)
	}
	snap[id] = Presence{Identity: id, Name: name, Room: room, Cohort: cohort}
}

// Recorder holds the latest snapshot. Every update replaces it wholesale.
type Recorder struct {
	mu         sync.RWMutex
	snapshot   Snapshot
	recordedAt time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{snapshot: make(Snapshot)}
}

// Record replaces the current state with a cohort-aware report.
func (r *Recorder) Record(byRoom map[RoomKey][]Attendee) Snapshot {
	return r.Replace(Build(byRoom))
}

// RecordRooms replaces the current state with a room-only report.
func (r *Recorder) RecordRooms(byRoom map[int][]Attendee, ros roster.Roster) Snapshot {
	return r.Replace(BuildFromRooms(byRoom, ros))
}

// Replace swaps in snap as the current state.
func (r *Recorder) Replace(snap Snapshot) Snapshot {
	if snap == nil {
		snap = make(Snapshot)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshot = snap
	r.recordedAt = time.Now().UTC()
	return snap
}

// Snapshot returns a copy of the current state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(Snapshot, len(r.snapshot))
	for k, v := range r.snapshot {
		cp[k] = v
	}
	return cp
}

func (r *Recorder) RecordedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recordedAt
}
