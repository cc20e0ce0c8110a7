package roster

import (
	"strings"
	"time"

	"github.com/guildops/rosterlive/pkg/apperr"
)

// Rules carries the tunable behavior injected from configuration.
type Rules struct {
	AutoLockAfter time.Duration
}

func (r Rules) autoLockAfter() time.Duration {
	if r.AutoLockAfter <= 0 {
		return DefaultAutoLockAfter
	}
	return r.AutoLockAfter
}

// Locked reports the effective lock state of d under these rules.
func (r Rules) Locked(d *Document, now time.Time) bool {
	return IsLocked(d, now, r.autoLockAfter())
}

type CommandType string

const (
	CmdSignUp       CommandType = "SignUp"
	CmdRemoveSignup CommandType = "RemoveSignup"
	CmdUpdateField  CommandType = "UpdateField"
	CmdAssignPlayer CommandType = "AssignPlayer"
	CmdRenameRoster CommandType = "RenameRoster"
	CmdToggleLock   CommandType = "ToggleLock"
)

// Command is one mutation of the shared document. Editor is the display
// identity recorded in bookkeeping fields; authorization happens before
// Apply is called.
type Command struct {
	Type       CommandType
	Editor     string
	Member     string
	Weapons    []string
	EntryIndex int
	Field      string
	Value      string
	Name       string
}

// Apply runs one command against a copy of the document and returns the
// new document. The input document is never mutated; on error it is
// returned unchanged so the caller keeps its last-known-good state.
//
// Every command except ToggleLock is rejected while the document is
// locked. Apply performs no permission checks and no cooldown checks:
// permissions are the gate's job and the cooldown is a client-side token
// enforced at the transport boundary.
func Apply(d Document, cmd Command, r Rules, now time.Time) (Document, error) {
	if cmd.Type != CmdToggleLock && IsLocked(&d, now, r.autoLockAfter()) {
		return d, apperr.Locked("this roster is locked, no changes can be made")
	}

	switch cmd.Type {
	case CmdSignUp:
		return applySignUp(d, cmd, now)
	case CmdRemoveSignup:
		return applyRemoveSignup(d, cmd, now)
	case CmdUpdateField:
		return applyUpdateField(d, cmd, now)
	case CmdAssignPlayer:
		return applyAssignPlayer(d, cmd, now)
	case CmdRenameRoster:
		return applyRename(d, cmd, now)
	case CmdToggleLock:
		return applyToggleLock(d, cmd, r, now)
	default:
		return d, apperr.Validation("unknown command %q", cmd.Type)
	}
}

func stamp(d *Document, editor string, now time.Time) {
	t := now
	d.DateModified = &t
	if editor != "" {
		d.LastEditedBy = editor
	}
}

func applySignUp(d Document, cmd Command, now time.Time) (Document, error) {
	name := strings.TrimSpace(cmd.Member)
	if name == "" || len(cmd.Weapons) == 0 {
		return d, apperr.Validation("select a member name and at least one weapon")
	}
	if d.SignupIndex(name) >= 0 {
		return d, apperr.Duplicate("%s already has an active signup", name)
	}

	out := d.Clone()
	out.Signups = append(out.Signups, Signup{
		Name:       name,
		Weapons:    append([]string(nil), cmd.Weapons...),
		SignedUpAt: now,
	})
	stamp(&out, name, now)
	return out, nil
}

func applyRemoveSignup(d Document, cmd Command, now time.Time) (Document, error) {
	name := strings.TrimSpace(cmd.Member)
	if name == "" {
		return d, apperr.Validation("select a member name to remove")
	}
	idx := d.SignupIndex(name)
	if idx < 0 {
		return d, apperr.NotFound("%s has not signed up for this roster", name)
	}

	out := d.Clone()
	out.Signups = append(out.Signups[:idx], out.Signups[idx+1:]...)
	stamp(&out, name, now)
	return out, nil
}

func applyUpdateField(d Document, cmd Command, now time.Time) (Document, error) {
	if cmd.EntryIndex < 0 || cmd.EntryIndex >= len(d.Entries) {
		return d, apperr.NotFound("no roster entry at index %d", cmd.EntryIndex)
	}

	out := d.Clone()
	e := &out.Entries[cmd.EntryIndex]
	switch cmd.Field {
	case "role":
		e.Role = cmd.Value
	case "weapon":
		e.Weapon = cmd.Value
	case "head":
		e.Head = cmd.Value
	case "chest":
		e.Chest = cmd.Value
	case "boots":
		e.Boots = cmd.Value
	case "notes":
		e.Notes = cmd.Value
	default:
		return d, apperr.Validation("field %q is not editable", cmd.Field)
	}
	t := now
	e.LastEditedAt = &t
	e.EditedBy = cmd.Editor
	stamp(&out, cmd.Editor, now)
	return out, nil
}

func applyAssignPlayer(d Document, cmd Command, now time.Time) (Document, error) {
	if cmd.EntryIndex < 0 || cmd.EntryIndex >= len(d.Entries) {
		return d, apperr.NotFound("no roster entry at index %d", cmd.EntryIndex)
	}

	// Empty after trimming is a legal value meaning "unassign". The write
	// emits only the canonical playerName field, so legacy assignment
	// aliases drop off the document here.
	out := d.Clone()
	e := &out.Entries[cmd.EntryIndex]
	e.PlayerName = strings.TrimSpace(cmd.Value)
	t := now
	e.LastEditedAt = &t
	e.EditedBy = cmd.Editor
	stamp(&out, cmd.Editor, now)
	return out, nil
}

func applyRename(d Document, cmd Command, now time.Time) (Document, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return d, apperr.Validation("roster name cannot be empty")
	}
	out := d.Clone()
	out.Name = name
	stamp(&out, cmd.Editor, now)
	return out, nil
}

// applyToggleLock flips between locked and unlocked relative to the
// *effective* lock state: unlocking an auto-locked roster removes the
// manual flag even though age alone will keep it locked. Locked is set to
// true or removed entirely, never written as false.
func applyToggleLock(d Document, cmd Command, r Rules, now time.Time) (Document, error) {
	out := d.Clone()
	if IsLocked(&out, now, r.autoLockAfter()) {
		out.Locked = nil
	} else {
		locked := true
		out.Locked = &locked
	}
	stamp(&out, cmd.Editor, now)
	return out, nil
}
