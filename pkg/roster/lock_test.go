package roster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func tp(t time.Time) *time.Time { return &t }
func bp(b bool) *bool           { return &b }

func TestLockStateTruthTable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fresh := tp(now.Add(-time.Hour))
	old := tp(now.Add(-25 * time.Hour))

	cases := []struct {
		name string
		doc  Document
		want LockState
	}{
		{"no dates, no flag", Document{}, Unlocked},
		{"fresh shared", Document{DateShared: fresh}, Unlocked},
		{"old shared", Document{DateShared: old}, AutoLocked},
		{"exactly at the boundary", Document{DateShared: tp(now.Add(-24 * time.Hour))}, AutoLocked},
		{"manual flag wins regardless of age", Document{Locked: bp(true), DateShared: fresh}, ManuallyLocked},
		{"manual flag on old roster reported as manual", Document{Locked: bp(true), DateShared: old}, ManuallyLocked},
		{"no dates but flagged", Document{Locked: bp(true)}, ManuallyLocked},
		{"dateShared preferred over newer dateModified", Document{DateShared: old, DateModified: fresh}, AutoLocked},
		{"falls back to dateCreated", Document{DateCreated: old}, AutoLocked},
		{"falls back to dateModified", Document{DateModified: old}, AutoLocked},
		{"stale false flag does not suppress auto-lock", Document{Locked: bp(false), DateShared: old}, AutoLocked},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, State(&tc.doc, now, DefaultAutoLockAfter))
			assert.Equal(t, tc.want != Unlocked, IsLocked(&tc.doc, now, DefaultAutoLockAfter))
		})
	}
}

func TestReferenceTimePreferenceOrder(t *testing.T) {
	shared := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	created := shared.Add(time.Hour)
	modified := shared.Add(2 * time.Hour)

	d := Document{DateShared: tp(shared), DateCreated: tp(created), DateModified: tp(modified)}
	got, ok := ReferenceTime(&d)
	assert.True(t, ok)
	assert.Equal(t, shared, got)

	d.DateShared = nil
	got, _ = ReferenceTime(&d)
	assert.Equal(t, created, got)

	d.DateCreated = nil
	got, _ = ReferenceTime(&d)
	assert.Equal(t, modified, got)

	d.DateModified = nil
	_, ok = ReferenceTime(&d)
	assert.False(t, ok)
}
