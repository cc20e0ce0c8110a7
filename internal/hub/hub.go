// Package hub is the actor registry: one session actor per live share
// id. The hub itself is an actor, so session creation and removal are
// serialized and two concurrent viewers of the same share always land in
// the same session.
package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/guildops/rosterlive/internal/auth"
	"github.com/guildops/rosterlive/internal/session"
	"github.com/guildops/rosterlive/pkg/roster"
)

type HubMsg interface{ isHubMsg() }

// EnsureSession returns the running session for ShareID, starting one
// from the supplied document if none exists. The document and members
// are only used when creation happens.
type EnsureSession struct {
	ShareID  string
	Document roster.Document
	Members  []roster.Member
	Version  uint64
	Reply    chan *session.Session
}

type GetSession struct {
	ShareID string
	Reply   chan *session.Session
}

type RemoveSession struct {
	ShareID string
}

type ShutdownHub struct{}

func (EnsureSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session

	gate  *auth.Gate
	rules roster.Rules
	store session.Store
	log   *zap.Logger
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

type Options struct {
	Gate  *auth.Gate
	Rules roster.Rules
	Store session.Store
	Log   *zap.Logger
	Now   func() time.Time
}

func New(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		gate:     opts.Gate,
		rules:    opts.Rules,
		store:    opts.Store,
		log:      opts.Log,
		now:      opts.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case EnsureSession:
				if s := h.sessions[msg.ShareID]; s != nil {
					msg.Reply <- s
					break
				}
				s := session.New(h.ctx, session.Options{
					ShareID:  msg.ShareID,
					Document: msg.Document,
					Members:  msg.Members,
					Version:  msg.Version,
					Gate:     h.gate,
					Rules:    h.rules,
					Store:    h.store,
					Log:      h.log,
					Now:      h.now,
				})
				h.sessions[msg.ShareID] = s
				h.log.Info("session started", zap.String("share_id", msg.ShareID))
				msg.Reply <- s

			case GetSession:
				msg.Reply <- h.sessions[msg.ShareID] // May be nil

			case RemoveSession:
				if s := h.sessions[msg.ShareID]; s != nil {
					s.Inbox() <- session.Shutdown{}
					delete(h.sessions, msg.ShareID)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) shutdown() {
	for _, s := range h.sessions {
		s.Inbox() <- session.Shutdown{}
	}
	clear(h.sessions)
	h.cancel()
}
