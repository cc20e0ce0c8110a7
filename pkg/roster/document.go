// Package roster holds the shared roster document model and the pure
// functions that implement signup, assignment, locking and availability
// semantics over it.
package roster

import "time"

// PartySize is the number of entries per "Party N" grouping. Entry order
// is stable and is the only thing party grouping is derived from.
const PartySize = 20

// Document is the unit of concurrency: every mutation rewrites it (or a
// named subset of its fields) whole, last write wins.
type Document struct {
	ShareID    string  `json:"shareId"`
	Name       string  `json:"name"`
	AllianceID string  `json:"allianceId"`
	Entries    []Entry `json:"entries"`
	// Signups in insertion order; insertion order is signup order and
	// drives weapon-availability ordering.
	Signups []Signup `json:"signups"`
	// Locked is a tri-state: nil means the field is absent (not manually
	// locked). Only true is ever stored; unlocking removes the field so a
	// lingering false can never mask the auto-lock rule.
	Locked           *bool      `json:"locked,omitempty"`
	SharedByUsername string     `json:"sharedByUsername,omitempty"`
	DateShared       *time.Time `json:"dateShared,omitempty"`
	DateCreated      *time.Time `json:"dateCreated,omitempty"`
	DateModified     *time.Time `json:"dateModified,omitempty"`
	LastEditedBy     string     `json:"lastEditedBy,omitempty"`
}

type Entry struct {
	Role       string `json:"role"`
	Weapon     string `json:"weapon"`
	PlayerName string `json:"playerName"`
	Head       string `json:"head"`
	Chest      string `json:"chest"`
	Boots      string `json:"boots"`
	Notes      string `json:"notes"`

	LastEditedAt *time.Time `json:"lastEditedAt,omitempty"`
	EditedBy     string     `json:"editedBy,omitempty"`
}

// Signup records a member's self-declared willingness to fill specific
// weapon slots. Records are never mutated in place: removal + re-add only.
type Signup struct {
	Name       string    `json:"name"`
	Weapons    []string  `json:"weapons"`
	SignedUpAt time.Time `json:"signedUpAt"`
}

// Member is an alliance member as the roster surface sees it. Linked flips
// to true the first time the member completes a signup.
type Member struct {
	Name   string `json:"name"`
	Role   int    `json:"role"`
	Linked bool   `json:"linked"`
}

// Clone returns a deep copy so command application never aliases the
// slices of the document it was handed.
func (d Document) Clone() Document {
	out := d
	if d.Locked != nil {
		v := *d.Locked
		out.Locked = &v
	}
	out.Entries = make([]Entry, len(d.Entries))
	copy(out.Entries, d.Entries)
	out.Signups = make([]Signup, len(d.Signups))
	for i, s := range d.Signups {
		out.Signups[i] = s
		out.Signups[i].Weapons = append([]string(nil), s.Weapons...)
	}
	return out
}

// SignupIndex returns the position of the active signup with that exact
// name, or -1.
func (d *Document) SignupIndex(name string) int {
	for i, s := range d.Signups {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// PartyOf returns the 1-based party number for an entry index.
func PartyOf(entryIndex int) int { return entryIndex/PartySize + 1 }

// PartyCount returns how many parties the entries split into.
func PartyCount(entryCount int) int {
	if entryCount == 0 {
		return 0
	}
	return (entryCount-1)/PartySize + 1
}
