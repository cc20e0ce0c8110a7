package roster

import "sort"

// CellState is the player-assignment health signal for one entry slot.
type CellState string

const (
	// CellAssigned: the slot has a player.
	CellAssigned CellState = "assigned"
	// CellBlocked: empty and no eligible candidate exists.
	CellBlocked CellState = "blocked"
	// CellPending: empty but candidates exist, none chosen.
	CellPending CellState = "pending"
)

// OtherRole is the grouping bucket for weapons whose entries declare no
// role.
const OtherRole = "Other"

// AvailableMembers returns, in signup order, members who signed up for
// exactly this weapon minus everyone assigned to a different slot. The
// slot at entryIndex keeps its own occupant as a visible option; pass a
// negative index to exclude every assignment.
func AvailableMembers(d *Document, weapon string, entryIndex int) []string {
	if weapon == "" {
		return nil
	}

	assigned := make(map[string]bool)
	for i, e := range d.Entries {
		if i == entryIndex {
			continue
		}
		if e.PlayerName != "" {
			assigned[e.PlayerName] = true
		}
	}

	var out []string
	for _, s := range d.Signups {
		if s.Name == "" || assigned[s.Name] {
			continue
		}
		for _, w := range s.Weapons {
			if w == weapon {
				out = append(out, s.Name)
				break
			}
		}
	}
	return out
}

// EntryCellState resolves the availability color state for the entry at i.
func EntryCellState(d *Document, i int) CellState {
	if i < 0 || i >= len(d.Entries) {
		return CellBlocked
	}
	e := d.Entries[i]
	if e.PlayerName != "" {
		return CellAssigned
	}
	if len(AvailableMembers(d, e.Weapon, i)) == 0 {
		return CellBlocked
	}
	return CellPending
}

// IsSignedUp reports whether name has an active signup record.
func IsSignedUp(d *Document, name string) bool {
	return d.SignupIndex(name) >= 0
}

// StaleAssignment flags an entry whose assigned player no longer has an
// active signup. Detectable, not prevented.
func StaleAssignment(d *Document, i int) bool {
	if i < 0 || i >= len(d.Entries) {
		return false
	}
	name := d.Entries[i].PlayerName
	return name != "" && !IsSignedUp(d, name)
}

// Weapons lists the distinct weapons declared by entries, sorted.
// Placeholder dashes are skipped.
func Weapons(d *Document) []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range d.Entries {
		if e.Weapon == "" || e.Weapon == "-" || seen[e.Weapon] {
			continue
		}
		seen[e.Weapon] = true
		out = append(out, e.Weapon)
	}
	sort.Strings(out)
	return out
}

// WeaponsByRole groups the distinct weapons by the role of the entries
// that declared them, for presentation. A weapon with no discoverable
// role falls into the OtherRole bucket.
func WeaponsByRole(d *Document) map[string][]string {
	seen := make(map[string]map[string]bool)
	for _, e := range d.Entries {
		if e.Weapon == "" || e.Weapon == "-" {
			continue
		}
		role := e.Role
		if role == "" {
			role = OtherRole
		}
		if seen[role] == nil {
			seen[role] = make(map[string]bool)
		}
		seen[role][e.Weapon] = true
	}

	out := make(map[string][]string, len(seen))
	for role, weapons := range seen {
		list := make([]string, 0, len(weapons))
		for w := range weapons {
			list = append(list, w)
		}
		sort.Strings(list)
		out[role] = list
	}
	return out
}
