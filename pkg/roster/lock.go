package roster

import "time"

// DefaultAutoLockAfter is how old a roster may get before it stops
// accepting mutations on its own.
const DefaultAutoLockAfter = 24 * time.Hour

type LockState string

const (
	Unlocked       LockState = "unlocked"
	ManuallyLocked LockState = "manually_locked"
	AutoLocked     LockState = "auto_locked"
)

// ReferenceTime is the timestamp the auto-lock rule ages against:
// dateShared, falling back to dateCreated, falling back to dateModified.
func ReferenceTime(d *Document) (time.Time, bool) {
	for _, t := range []*time.Time{d.DateShared, d.DateCreated, d.DateModified} {
		if t != nil {
			return *t, true
		}
	}
	return time.Time{}, false
}

// IsAutoLocked reports whether the roster aged past the auto-lock window.
// A document with no reference timestamp never auto-locks.
func IsAutoLocked(d *Document, now time.Time, after time.Duration) bool {
	ref, ok := ReferenceTime(d)
	if !ok {
		return false
	}
	return now.Sub(ref) >= after
}

// State is a pure function of the document and the clock; there is no
// stored transition history beyond the locked flag. Manual lock shadows
// auto-lock when both hold.
func State(d *Document, now time.Time, after time.Duration) LockState {
	if d.Locked != nil && *d.Locked {
		return ManuallyLocked
	}
	if IsAutoLocked(d, now, after) {
		return AutoLocked
	}
	return Unlocked
}

// IsLocked gates every mutating operation except the lock toggle itself.
func IsLocked(d *Document, now time.Time, after time.Duration) bool {
	return State(d, now, after) != Unlocked
}
