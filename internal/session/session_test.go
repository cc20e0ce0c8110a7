package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/guildops/rosterlive/internal/auth"
	"github.com/guildops/rosterlive/internal/config"
	"github.com/guildops/rosterlive/pkg/apperr"
	"github.com/guildops/rosterlive/pkg/roster"
)

// fakeStore records writes in memory and can be told to fail.
type fakeStore struct {
	mu       sync.Mutex
	saves    int
	lastVer  uint64
	lastDoc  *roster.Document
	links    map[string]string
	failNext bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{links: make(map[string]string)}
}

func (f *fakeStore) SaveSharedDocument(_ context.Context, _ string, version uint64, d *roster.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("database down")
	}
	f.saves++
	f.lastVer = version
	clone := d.Clone()
	f.lastDoc = &clone
	return nil
}

func (f *fakeStore) LinkMember(_ context.Context, _, name, mid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[name] = mid
	return nil
}

// helper: receive one snapshot with a timeout so tests never hang
func recvSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("client outbox closed unexpectedly")
		}
		return snap
	case <-time.After(within):
		t.Fatalf("timed out waiting for snapshot")
		return Snapshot{} // unreachable
	}
}

func recvNoSnapshot(t *testing.T, ch <-chan Snapshot, within time.Duration) {
	t.Helper()
	select {
	case s, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no snapshot within %v, but got: %+v", within, s)
	case <-time.After(within):
	}
}

func recvErr(t *testing.T, ch <-chan error, within time.Duration) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(within):
		t.Fatalf("timed out waiting for command reply")
		return nil // unreachable
	}
}

func recvView(t *testing.T, ch <-chan View, within time.Duration) View {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func testGate() *auth.Gate {
	return auth.NewGate(&config.Config{
		AdminRoleThreshold:     97,
		ModeratorRoleThreshold: 97,
		UserRoleThreshold:      90,
		RosterAdminThreshold:   98,
	})
}

func freshDoc() roster.Document {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return roster.Document{
		ShareID:    "share_test_1",
		Name:       "friday raid",
		AllianceID: "ally1",
		Entries: []roster.Entry{
			{Role: "Tank", Weapon: "Sword"},
			{Role: "Healer", Weapon: "Staff"},
		},
		DateCreated: &created,
	}
}

func startSession(t *testing.T, doc roster.Document, st Store, now func() time.Time) *Session {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, Options{
		ShareID:  doc.ShareID,
		Document: doc,
		Members:  []roster.Member{{Name: "Alyx", Role: 90}},
		Gate:     testGate(),
		Rules:    roster.Rules{AutoLockAfter: 24 * time.Hour},
		Store:    st,
		Now:      now,
	})
}

var (
	moderator = auth.Identity{MID: "MID_MOD", Username: "mod", Role: 97, Member: "Modette"}
	player    = auth.Identity{MID: "MID_PLAYER", Username: "alyx", Role: 50, Member: "Alyx"}
)

func fixedNow() time.Time { return time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC) }

func TestSignUpBroadcastsAndPersists(t *testing.T) {
	st := newFakeStore()
	s := startSession(t, freshDoc(), st, fixedNow)

	out := make(chan Snapshot, 4)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}

	first := recvSnapshot(t, out, 100*time.Millisecond)
	if first.Version != 0 {
		t.Fatalf("after join: want version=0, got %d", first.Version)
	}

	reply := make(chan error, 1)
	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdSignUp, Member: "Alyx", Weapons: []string{"Sword"}},
		Actor: player,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	next := recvSnapshot(t, out, 100*time.Millisecond)
	if next.Version != 1 {
		t.Fatalf("after signup: want version=1, got %d", next.Version)
	}
	if len(next.Document.Signups) != 1 || next.Document.Signups[0].Name != "Alyx" {
		t.Fatalf("after signup: unexpected ledger %+v", next.Document.Signups)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.saves != 1 || st.lastVer != 1 {
		t.Fatalf("expected one persisted write at version 1, got saves=%d ver=%d", st.saves, st.lastVer)
	}
	if st.links["Alyx"] != "MID_PLAYER" {
		t.Fatalf("expected signup to link member, links=%v", st.links)
	}
}

func TestAnonymousSignupLinksMember(t *testing.T) {
	st := newFakeStore()
	s := startSession(t, freshDoc(), st, fixedNow)

	out := make(chan Snapshot, 4)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	reply := make(chan error, 1)
	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdSignUp, Member: "Boro", Weapons: []string{"Bow"}},
		Actor: auth.Anonymous,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("anonymous signup failed: %v", err)
	}

	st.mu.Lock()
	_, linked := st.links["Boro"]
	st.mu.Unlock()
	if !linked {
		t.Fatalf("anonymous signup did not link the member")
	}

	next := recvSnapshot(t, out, 100*time.Millisecond)
	var boro *roster.Member
	for i := range next.Members {
		if next.Members[i].Name == "Boro" {
			boro = &next.Members[i]
		}
	}
	if boro == nil || !boro.Linked {
		t.Fatalf("snapshot member list missing linked Boro: %+v", next.Members)
	}
}

func TestLeaveClosesOutbox(t *testing.T) {
	st := newFakeStore()
	s := startSession(t, freshDoc(), st, fixedNow)

	out := make(chan Snapshot, 2)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	s.Inbox() <- Leave{ClientID: "c1"}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox after leave")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("outbox not closed after leave")
	}

	// Leaving twice must not panic the actor.
	s.Inbox() <- Leave{ClientID: "c1"}
	view := make(chan View, 1)
	s.Inbox() <- GetView{Reply: view}
	if v := recvView(t, view, 100*time.Millisecond); v.NumClients != 0 {
		t.Fatalf("expected no clients after leave, got %d", v.NumClients)
	}
}

func TestDuplicateSignupRejectedNoBroadcast(t *testing.T) {
	st := newFakeStore()
	s := startSession(t, freshDoc(), st, fixedNow)

	out := make(chan Snapshot, 4)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	cmd := roster.Command{Type: roster.CmdSignUp, Member: "Alyx", Weapons: []string{"Sword"}}
	reply := make(chan error, 1)
	s.Inbox() <- Apply{Cmd: cmd, Actor: player, Reply: reply}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("first signup failed: %v", err)
	}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	s.Inbox() <- Apply{Cmd: cmd, Actor: player, Reply: reply}
	err := recvErr(t, reply, 100*time.Millisecond)
	if !apperr.IsCode(err, apperr.CodeDuplicate) {
		t.Fatalf("want DUPLICATE, got %v", err)
	}
	recvNoSnapshot(t, out, 50*time.Millisecond)
}

func TestRemoveSignupErrorOrdering(t *testing.T) {
	st := newFakeStore()
	s := startSession(t, freshDoc(), st, fixedNow)

	reply := make(chan error, 1)

	// Nobody signed up yet: NOT_FOUND wins over FORBIDDEN even for a
	// stranger's name.
	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdRemoveSignup, Member: "Ghost"},
		Actor: player,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("want NOT_FOUND, got %v", err)
	}

	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdSignUp, Member: "Boro", Weapons: []string{"Bow"}},
		Actor: auth.Anonymous,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("signup failed: %v", err)
	}

	// Boro exists and player is neither Boro nor a moderator.
	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdRemoveSignup, Member: "Boro"},
		Actor: player,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Fatalf("want FORBIDDEN, got %v", err)
	}

	// A moderator may remove anyone.
	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdRemoveSignup, Member: "Boro"},
		Actor: moderator,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("moderator removal failed: %v", err)
	}
}

func TestEditRequiresModerator(t *testing.T) {
	st := newFakeStore()
	s := startSession(t, freshDoc(), st, fixedNow)

	reply := make(chan error, 1)
	cmd := roster.Command{Type: roster.CmdAssignPlayer, EntryIndex: 0, Value: "Alyx", Editor: "alyx"}

	s.Inbox() <- Apply{Cmd: cmd, Actor: player, Reply: reply}
	if err := recvErr(t, reply, 100*time.Millisecond); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Fatalf("want FORBIDDEN for non-moderator edit, got %v", err)
	}

	s.Inbox() <- Apply{Cmd: cmd, Actor: moderator, Reply: reply}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("moderator edit failed: %v", err)
	}
}

func TestSharerCanEditWithoutRank(t *testing.T) {
	st := newFakeStore()
	doc := freshDoc()
	doc.SharedByUsername = "alyx"
	s := startSession(t, doc, st, fixedNow)

	reply := make(chan error, 1)
	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdRenameRoster, Name: "saturday raid", Editor: "alyx"},
		Actor: player,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("sharer rename failed: %v", err)
	}

	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdToggleLock, Editor: "alyx"},
		Actor: player,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("sharer lock failed: %v", err)
	}

	view := make(chan View, 1)
	s.Inbox() <- GetView{Reply: view}
	v := recvView(t, view, 100*time.Millisecond)
	if v.Document.Locked == nil || !*v.Document.Locked {
		t.Fatalf("expected locked flag set after sharer toggle, got %+v", v.Document.Locked)
	}
}

func TestLockedRosterRejectsWritesUntilToggled(t *testing.T) {
	st := newFakeStore()
	doc := freshDoc()
	locked := true
	doc.Locked = &locked
	s := startSession(t, doc, st, fixedNow)

	reply := make(chan error, 1)
	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdSignUp, Member: "Alyx", Weapons: []string{"Sword"}},
		Actor: player,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); !apperr.IsCode(err, apperr.CodeLocked) {
		t.Fatalf("want LOCKED, got %v", err)
	}

	// Non-moderators cannot unlock.
	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdToggleLock, Editor: "alyx"},
		Actor: player,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); !apperr.IsCode(err, apperr.CodeForbidden) {
		t.Fatalf("want FORBIDDEN for non-moderator unlock, got %v", err)
	}

	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdToggleLock, Editor: "mod"},
		Actor: moderator,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdSignUp, Member: "Alyx", Weapons: []string{"Sword"}},
		Actor: player,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("signup after unlock failed: %v", err)
	}
}

func TestPersistFailureKeepsDocument(t *testing.T) {
	st := newFakeStore()
	st.failNext = true
	s := startSession(t, freshDoc(), st, fixedNow)

	out := make(chan Snapshot, 4)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	reply := make(chan error, 1)
	cmd := roster.Command{Type: roster.CmdSignUp, Member: "Alyx", Weapons: []string{"Sword"}}
	s.Inbox() <- Apply{Cmd: cmd, Actor: player, Reply: reply}
	if err := recvErr(t, reply, 100*time.Millisecond); !apperr.IsCode(err, apperr.CodeConnection) {
		t.Fatalf("want CONNECTION on persist failure, got %v", err)
	}
	recvNoSnapshot(t, out, 50*time.Millisecond)

	// The document did not advance, so the same signup succeeds on retry.
	s.Inbox() <- Apply{Cmd: cmd, Actor: player, Reply: reply}
	if err := recvErr(t, reply, 100*time.Millisecond); err != nil {
		t.Fatalf("retry after persist failure: %v", err)
	}
	next := recvSnapshot(t, out, 100*time.Millisecond)
	if next.Version != 1 {
		t.Fatalf("want version=1 after retry, got %d", next.Version)
	}
}

func TestDropSlowClient(t *testing.T) {
	st := newFakeStore()
	s := startSession(t, freshDoc(), st, fixedNow)

	// Buffer of 1 is filled by the join snapshot; the next broadcast
	// cannot be delivered and drops the client.
	out := make(chan Snapshot, 1)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}

	reply := make(chan error, 1)
	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdSignUp, Member: "Alyx", Weapons: []string{"Sword"}},
		Actor: player,
		Reply: reply,
	}
	_ = recvErr(t, reply, 100*time.Millisecond)

	view := make(chan View, 1)
	s.Inbox() <- GetView{Reply: view}
	v := recvView(t, view, 100*time.Millisecond)
	if v.NumClients != 0 {
		t.Fatalf("expected slow client to be dropped; NumClients=%d", v.NumClients)
	}
}

func TestShutdownClosesOutboxes(t *testing.T) {
	st := newFakeStore()
	s := startSession(t, freshDoc(), st, fixedNow)

	out := make(chan Snapshot, 2)
	s.Inbox() <- Join{ClientID: "c1", Outbox: out}
	_ = recvSnapshot(t, out, 100*time.Millisecond)

	s.Inbox() <- Shutdown{}

	select {
	case _, ok := <-out:
		if ok {
			t.Fatalf("expected closed outbox after shutdown")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("outbox not closed after shutdown")
	}
}

func TestAutoLockByAge(t *testing.T) {
	st := newFakeStore()
	doc := freshDoc()
	shared := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc.DateShared = &shared

	// Two days past the share date: auto-locked.
	later := func() time.Time { return shared.Add(48 * time.Hour) }
	s := startSession(t, doc, st, later)

	reply := make(chan error, 1)
	s.Inbox() <- Apply{
		Cmd:   roster.Command{Type: roster.CmdSignUp, Member: "Alyx", Weapons: []string{"Sword"}},
		Actor: player,
		Reply: reply,
	}
	if err := recvErr(t, reply, 100*time.Millisecond); !apperr.IsCode(err, apperr.CodeLocked) {
		t.Fatalf("want LOCKED for aged roster, got %v", err)
	}
}
