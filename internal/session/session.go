// Package session runs one actor goroutine per live shared roster. All
// reads and writes of a document flow through its session's inbox, so
// the document itself needs no locking and every applied command gets a
// strictly ordered version number.
package session

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/guildops/rosterlive/internal/auth"
	"github.com/guildops/rosterlive/pkg/apperr"
	"github.com/guildops/rosterlive/pkg/roster"
)

type Msg interface{ isSessionMsg() }

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isSessionMsg() {}

type Leave struct{ ClientID string }

func (Leave) isSessionMsg() {}

// Apply asks the session to run one command as Actor. The outcome goes
// to Reply; the new document, if any, goes to every subscriber as a
// Snapshot.
type Apply struct {
	Cmd   roster.Command
	Actor auth.Identity
	Reply chan error
}

func (Apply) isSessionMsg() {}

type GetView struct {
	Reply chan View
}

func (GetView) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// Snapshot is the whole-document state fanned out after every applied
// command. The document is a deep copy owned by the receiver.
type Snapshot struct {
	Version  uint64
	Document roster.Document
	Members  []roster.Member
}

type View struct {
	Version    uint64
	NumClients int
	Document   roster.Document
}

// Store is the slice of persistence the session needs. Writes go through
// before the in-memory document advances.
type Store interface {
	SaveSharedDocument(ctx context.Context, shareID string, version uint64, d *roster.Document) error
	LinkMember(ctx context.Context, allianceID, name, mid string) error
}

type Session struct {
	shareID string
	inbox   chan Msg
	doc     roster.Document
	members []roster.Member
	version uint64
	clients map[string]chan Snapshot

	gate  *auth.Gate
	rules roster.Rules
	store Store
	log   *zap.Logger
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

type Options struct {
	ShareID  string
	Document roster.Document
	Members  []roster.Member
	Version  uint64
	Gate     *auth.Gate
	Rules    roster.Rules
	Store    Store
	Log      *zap.Logger
	Now      func() time.Time
}

func New(parent context.Context, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)

	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Session{
		shareID: opts.ShareID,
		inbox:   make(chan Msg, 64),
		doc:     opts.Document,
		members: opts.Members,
		version: opts.Version,
		clients: make(map[string]chan Snapshot),
		gate:    opts.Gate,
		rules:   opts.Rules,
		store:   opts.Store,
		log:     opts.Log.With(zap.String("share_id", opts.ShareID)),
		now:     opts.Now,
		ctx:     ctx,
		cancel:  cancel,
	}

	go s.loop()
	return s
}

// Inbox is how the WS layer and tests talk to the actor.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- s.snapshot()

			case Leave:
				// Closing the outbox releases the subscriber's writer
				// goroutine; leaving it open would leak one per viewer.
				if ch, ok := s.clients[msg.ClientID]; ok {
					close(ch)
					delete(s.clients, msg.ClientID)
				}

			case Apply:
				err := s.apply(msg.Cmd, msg.Actor)
				if msg.Reply != nil {
					msg.Reply <- err
				}
				if err == nil {
					s.broadcast(s.snapshot())
				}

			case GetView:
				msg.Reply <- View{
					Version:    s.version,
					NumClients: len(s.clients),
					Document:   s.doc.Clone(),
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

// apply authorizes, runs the command through the pure engine, and
// persists before the in-memory document moves. On a persistence failure
// the document stays put and the caller gets a CONNECTION error, so
// memory never runs ahead of the database.
func (s *Session) apply(cmd roster.Command, actor auth.Identity) error {
	if err := s.authorize(cmd, actor); err != nil {
		return err
	}

	next, err := roster.Apply(s.doc, cmd, s.rules, s.now())
	if err != nil {
		return err
	}

	ctx, cancelWrite := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancelWrite()
	if err := s.store.SaveSharedDocument(ctx, s.shareID, s.version+1, &next); err != nil {
		s.log.Warn("persist failed, document unchanged",
			zap.String("cmd", string(cmd.Type)), zap.Error(err))
		return apperr.Wrap(apperr.CodeConnection, err, "save roster")
	}

	s.doc = next
	s.version++

	if cmd.Type == roster.CmdSignUp {
		// Every completed signup links the member, anonymous or not.
		// Best effort: a failed link never blocks the signup itself.
		if err := s.store.LinkMember(ctx, s.doc.AllianceID, cmd.Member, actor.MID); err != nil {
			s.log.Warn("link member failed", zap.String("member", cmd.Member), zap.Error(err))
		} else {
			s.markLinked(cmd.Member)
		}
	}
	return nil
}

// authorize enforces who may do what. What the document allows (lock
// state, duplicates, indices) is the engine's job; the error ordering
// for removals puts NOT_FOUND before FORBIDDEN so a withdrawn signup
// reads as gone, not as somebody else's.
func (s *Session) authorize(cmd roster.Command, actor auth.Identity) error {
	switch cmd.Type {
	case roster.CmdSignUp:
		// Validation outranks the lock state for signups, so an empty
		// form on a locked roster still reads as a form problem.
		if strings.TrimSpace(cmd.Member) == "" || len(cmd.Weapons) == 0 {
			return apperr.Validation("select a member name and at least one weapon")
		}
		return nil

	case roster.CmdRemoveSignup:
		if s.rules.Locked(&s.doc, s.now()) {
			return apperr.Locked("roster is locked")
		}
		if cmd.Member == "" {
			return apperr.Validation("member name is required")
		}
		if s.doc.SignupIndex(cmd.Member) < 0 {
			return apperr.NotFound("%s is not signed up", cmd.Member)
		}
		if !s.gate.CanRemoveSignup(actor, cmd.Member) {
			return apperr.Forbidden("cannot remove another member's signup")
		}
		return nil

	case roster.CmdUpdateField, roster.CmdAssignPlayer, roster.CmdRenameRoster:
		if !s.gate.CanEditEntries(actor, s.doc.SharedByUsername) {
			return apperr.Forbidden("moderator rank required")
		}
		return nil

	case roster.CmdToggleLock:
		if !s.gate.CanToggleLock(actor, s.doc.SharedByUsername) {
			return apperr.Forbidden("moderator rank required")
		}
		return nil

	default:
		return apperr.Validation("unknown command %q", cmd.Type)
	}
}

func (s *Session) markLinked(name string) {
	for i := range s.members {
		if s.members[i].Name == name {
			s.members[i].Linked = true
			return
		}
	}
	s.members = append(s.members, roster.Member{Name: name, Linked: true})
}

func (s *Session) snapshot() Snapshot {
	members := make([]roster.Member, len(s.members))
	copy(members, s.members)
	return Snapshot{Version: s.version, Document: s.doc.Clone(), Members: members}
}

func (s *Session) broadcast(snap Snapshot) {
	for id, ch := range s.clients {
		select {
		case ch <- snap:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(s.clients, id)
			s.log.Debug("dropped slow client", zap.String("client_id", id))
		}
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.cancel()
}
