package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docWithEntries(entries ...Entry) Document {
	return Document{ShareID: "share_test", Entries: entries}
}

func signup(name string, weapons ...string) Signup {
	return Signup{Name: name, Weapons: weapons, SignedUpAt: time.Now()}
}

func TestAvailableMembersExcludesOtherAssignments(t *testing.T) {
	d := docWithEntries(
		Entry{Weapon: "Bow"},
		Entry{Weapon: "Bow", PlayerName: "Alice"},
		Entry{Weapon: "Heavy Mace", PlayerName: "Bob"},
	)
	d.Signups = []Signup{
		signup("Alice", "Bow"),
		signup("Bob", "Bow", "Heavy Mace"),
		signup("Cara", "Bow"),
	}

	// Alice holds slot 1, Bob holds slot 2, so the free Bow slot only
	// offers Cara.
	assert.Equal(t, []string{"Cara"}, AvailableMembers(&d, "Bow", 0))

	// Slot 1 keeps its own occupant as a visible option.
	assert.Equal(t, []string{"Alice", "Cara"}, AvailableMembers(&d, "Bow", 1))

	// A negative index excludes every assignment.
	assert.Equal(t, []string{"Cara"}, AvailableMembers(&d, "Bow", -1))
}

func TestAvailableMembersOrderedBySignupTime(t *testing.T) {
	d := docWithEntries(Entry{Weapon: "Bow"})
	d.Signups = []Signup{signup("Zed", "Bow"), signup("Ann", "Bow")}
	assert.Equal(t, []string{"Zed", "Ann"}, AvailableMembers(&d, "Bow", 0))
}

func TestCellStateProgression(t *testing.T) {
	rules := Rules{}
	now := time.Now()

	d := docWithEntries(Entry{Weapon: "Bow"})
	assert.Equal(t, CellBlocked, EntryCellState(&d, 0), "no candidates yet")

	d2, err := Apply(d, Command{Type: CmdSignUp, Member: "Bob", Weapons: []string{"Bow"}}, rules, now)
	require.NoError(t, err)
	assert.Equal(t, CellPending, EntryCellState(&d2, 0), "candidate exists, none chosen")

	d3, err := Apply(d2, Command{Type: CmdAssignPlayer, EntryIndex: 0, Value: "Bob", Editor: "mod"}, rules, now)
	require.NoError(t, err)
	assert.Equal(t, CellAssigned, EntryCellState(&d3, 0))

	// The current occupant remains selectable for its own slot.
	assert.Contains(t, AvailableMembers(&d3, "Bow", 0), "Bob")
}

func TestSignupAvailabilityRoundTrip(t *testing.T) {
	rules := Rules{}
	now := time.Now()

	d := docWithEntries(Entry{Weapon: "Bow"}, Entry{Weapon: "Bow"})
	d, err := Apply(d, Command{Type: CmdSignUp, Member: "Alice", Weapons: []string{"Bow"}}, rules, now)
	require.NoError(t, err)
	assert.Contains(t, AvailableMembers(&d, "Bow", 1), "Alice")

	d, err = Apply(d, Command{Type: CmdAssignPlayer, EntryIndex: 0, Value: "Alice", Editor: "mod"}, rules, now)
	require.NoError(t, err)
	assert.NotContains(t, AvailableMembers(&d, "Bow", 1), "Alice",
		"a member assigned elsewhere is no longer available")
}

func TestStaleAssignment(t *testing.T) {
	d := docWithEntries(Entry{Weapon: "Bow", PlayerName: "Ghost"})
	assert.True(t, StaleAssignment(&d, 0), "assigned but never signed up")

	d.Signups = []Signup{signup("Ghost", "Bow")}
	assert.False(t, StaleAssignment(&d, 0))

	d.Entries[0].PlayerName = ""
	assert.False(t, StaleAssignment(&d, 0), "empty assignment is never stale")
}

func TestWeaponsByRoleGrouping(t *testing.T) {
	d := docWithEntries(
		Entry{Role: "Tank", Weapon: "Heavy Mace"},
		Entry{Role: "Tank", Weapon: "1H Hammer"},
		Entry{Role: "Support", Weapon: "Lifecurse"},
		Entry{Weapon: "Clump Tank"}, // no role: unclassified bucket
		Entry{Role: "Tank", Weapon: "-"},
		Entry{Role: "Tank", Weapon: "Heavy Mace"}, // duplicate collapses
	)

	got := WeaponsByRole(&d)
	assert.Equal(t, map[string][]string{
		"Tank":    {"1H Hammer", "Heavy Mace"},
		"Support": {"Lifecurse"},
		OtherRole: {"Clump Tank"},
	}, got)

	assert.Equal(t, []string{"1H Hammer", "Clump Tank", "Heavy Mace", "Lifecurse"}, Weapons(&d))
}

func TestPartyGrouping(t *testing.T) {
	assert.Equal(t, 1, PartyOf(0))
	assert.Equal(t, 1, PartyOf(19))
	assert.Equal(t, 2, PartyOf(20))
	assert.Equal(t, 3, PartyOf(41))

	assert.Equal(t, 0, PartyCount(0))
	assert.Equal(t, 1, PartyCount(20))
	assert.Equal(t, 2, PartyCount(21))
}
