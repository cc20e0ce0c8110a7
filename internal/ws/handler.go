// Package ws bridges websocket connections to session actors. Each
// connection gets a writer goroutine draining its snapshot outbox while
// the handler goroutine runs the reader loop.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guildops/rosterlive/internal/auth"
	"github.com/guildops/rosterlive/internal/hub"
	"github.com/guildops/rosterlive/internal/session"
	"github.com/guildops/rosterlive/internal/store"
	"github.com/guildops/rosterlive/pkg/apperr"
	"github.com/guildops/rosterlive/pkg/roster"
	"github.com/guildops/rosterlive/pkg/types"
)

// IdentityFn resolves the caller from the request; anonymous viewers get
// auth.Anonymous and may still subscribe.
type IdentityFn func(r *http.Request) auth.Identity

// Handler upgrades GET /ws/{shareId} and joins the caller to the share's
// session, loading the document first so an unknown share 404s before
// the upgrade.
func Handler(h *hub.Hub, st *store.Store, identity IdentityFn, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shareID := chi.URLParam(r, "shareId")
		if shareID == "" {
			http.Error(w, "missing share id", http.StatusBadRequest)
			return
		}

		doc, version, err := st.SharedDocument(r.Context(), shareID)
		if err != nil {
			http.Error(w, "shared roster not found", apperr.HTTPStatus(apperr.CodeOf(err)))
			return
		}
		members, err := st.MembersByAlliance(r.Context(), doc.AllianceID)
		if err != nil {
			log.Warn("member list unavailable", zap.String("share_id", shareID), zap.Error(err))
		}

		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.EnsureSession{
			ShareID:  shareID,
			Document: *doc,
			Members:  members,
			Version:  version,
			Reply:    reply,
		}
		sess := <-reply

		actor := identity(r)

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.Snapshot, 8)
		clientID := uuid.NewString()

		sess.Inbox() <- session.Join{ClientID: clientID, Outbox: out}
		defer func() { sess.Inbox() <- session.Leave{ClientID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				doc := snap.Document
				msg := types.ServerMessage{
					Type:     types.MsgSnapshot,
					Version:  snap.Version,
					Document: &doc,
					Members:  snap.Members,
				}
				payload, _ := json.Marshal(msg)
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, apperr.Validation("malformed message"))
				continue
			}

			cmd, ok := toCommand(cm, actor)
			if !ok {
				writeError(r.Context(), conn, apperr.Validation("unknown message type %q", cm.Type))
				continue
			}

			errReply := make(chan error, 1)
			sess.Inbox() <- session.Apply{Cmd: cmd, Actor: commandActor(actor, cmd), Reply: errReply}
			if err := <-errReply; err != nil {
				writeError(r.Context(), conn, err)
			}
		}
	}
}

// writeError sends a coded Error frame to this connection only. Errors
// never fan out; other subscribers see only applied snapshots.
func writeError(ctx context.Context, conn *websocket.Conn, err error) {
	code := apperr.CodeOf(err)
	if code == "" {
		code = apperr.CodeConnection
	}
	msg := types.ServerMessage{Type: types.MsgError, Code: string(code), Error: err.Error()}
	payload, _ := json.Marshal(msg)
	wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

// commandActor fills in the identity a command is judged against. An
// anonymous caller claiming a member name acts as that member, which is
// what lets them withdraw their own signup. Same rule as the HTTP
// signup and withdraw handlers.
func commandActor(actor auth.Identity, cmd roster.Command) auth.Identity {
	if actor.IsAnonymous() && cmd.Member != "" {
		return auth.Identity{Member: cmd.Member}
	}
	return actor
}

func toCommand(m types.ClientMessage, actor auth.Identity) (roster.Command, bool) {
	editor := actor.Member
	if editor == "" {
		editor = actor.Username
	}

	switch roster.CommandType(m.Type) {
	case roster.CmdSignUp:
		return roster.Command{Type: roster.CmdSignUp, Editor: editor, Member: m.Member, Weapons: m.Weapons}, true
	case roster.CmdRemoveSignup:
		return roster.Command{Type: roster.CmdRemoveSignup, Editor: editor, Member: m.Member}, true
	case roster.CmdUpdateField:
		return roster.Command{Type: roster.CmdUpdateField, Editor: editor, EntryIndex: m.EntryIndex, Field: m.Field, Value: m.Value}, true
	case roster.CmdAssignPlayer:
		return roster.Command{Type: roster.CmdAssignPlayer, Editor: editor, EntryIndex: m.EntryIndex, Value: m.Value}, true
	case roster.CmdRenameRoster:
		return roster.Command{Type: roster.CmdRenameRoster, Editor: editor, Name: m.Name}, true
	case roster.CmdToggleLock:
		return roster.Command{Type: roster.CmdToggleLock, Editor: editor}, true
	default:
		return roster.Command{}, false
	}
}
