package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/guildops/rosterlive/internal/auth"
	"github.com/guildops/rosterlive/internal/hub"
	"github.com/guildops/rosterlive/internal/session"
	"github.com/guildops/rosterlive/pkg/apperr"
	"github.com/guildops/rosterlive/pkg/roster"
	"github.com/guildops/rosterlive/pkg/types"
)

// getShared is the public point read: the normalized document plus the
// derived state a viewer needs without recomputing any of it.
func (s *Server) getShared(w http.ResponseWriter, r *http.Request) {
	doc, _, err := s.store.SharedDocument(r.Context(), chi.URLParam(r, "shareId"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	members, err := s.store.MembersByAlliance(r.Context(), doc.AllianceID)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	now := time.Now()
	after := s.cfg.AutoLockAfter
	cells := make([]string, len(doc.Entries))
	stale := make([]bool, len(doc.Entries))
	for i := range doc.Entries {
		cells[i] = string(roster.EntryCellState(doc, i))
		stale[i] = roster.StaleAssignment(doc, i)
	}

	s.writeJSON(w, http.StatusOK, types.SharedRosterResponse{
		Document:      *doc,
		Members:       members,
		Locked:        roster.IsLocked(doc, now, after),
		LockState:     roster.State(doc, now, after),
		DisarrayLevel: roster.DisarrayLevel(len(doc.Signups)),
		PartyCount:    roster.PartyCount(len(doc.Entries)),
		CellStates:    cells,
		Stale:         stale,
	})
}

func (s *Server) deleteShared(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccount(r)
	if !ok {
		s.writeErr(w, apperr.Forbidden("login required"))
		return
	}
	shareID := chi.URLParam(r, "shareId")

	doc, _, err := s.store.SharedDocument(r.Context(), shareID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if !s.gate.CanToggleLock(id, doc.SharedByUsername) {
		s.writeErr(w, apperr.Forbidden("moderator rank required"))
		return
	}
	if err := s.store.DeleteSharedRoster(r.Context(), shareID); err != nil {
		s.writeErr(w, err)
		return
	}
	s.hub.Inbox() <- hub.RemoveSession{ShareID: shareID}
	w.WriteHeader(http.StatusNoContent)
}

type signupRequest struct {
	Member  string   `json:"member" validate:"required,max=64"`
	Weapons []string `json:"weapons" validate:"required,min=1,max=10,dive,max=64"`
}

// sharedSignUp is the HTTP fallback for clients without a socket. The
// cooldown lives in a client-side cookie: present and still inside the
// window means the request is throttled before it reaches the session.
func (s *Server) sharedSignUp(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := s.decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}

	now := time.Now()
	if tok, ok := s.readToken(w, r, cooldownCookie, s.cfg.SignupCooldown, now); ok && tok.Active(now, s.cfg.SignupCooldown) {
		s.writeErr(w, apperr.Cooldown("please wait before signing up again"))
		return
	}

	cmd := roster.Command{Type: roster.CmdSignUp, Editor: req.Member, Member: req.Member, Weapons: req.Weapons}
	if err := s.applyShared(r, chi.URLParam(r, "shareId"), cmd); err != nil {
		s.writeErr(w, err)
		return
	}

	s.writeToken(w, cooldownCookie, types.NewToken(req.Member, now), s.cfg.SignupCooldown)
	s.writeToken(w, nameCookie, types.NewToken(req.Member, now), s.cfg.RememberedNameTTL)
	w.WriteHeader(http.StatusNoContent)
}

type withdrawRequest struct {
	Member string `json:"member" validate:"required,max=64"`
}

// sharedWithdraw removes a signup. Withdrawing counts as a roster
// change, so it is throttled by the same cooldown cookie as signup and
// restamps it on success.
func (s *Server) sharedWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := s.decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}

	now := time.Now()
	if tok, ok := s.readToken(w, r, cooldownCookie, s.cfg.SignupCooldown, now); ok && tok.Active(now, s.cfg.SignupCooldown) {
		s.writeErr(w, apperr.Cooldown("please wait before changing your signup again"))
		return
	}

	cmd := roster.Command{Type: roster.CmdRemoveSignup, Editor: req.Member, Member: req.Member}
	if err := s.applyShared(r, chi.URLParam(r, "shareId"), cmd); err != nil {
		s.writeErr(w, err)
		return
	}

	s.writeToken(w, cooldownCookie, types.NewToken(req.Member, now), s.cfg.SignupCooldown)
	w.WriteHeader(http.StatusNoContent)
}

// applyShared routes a command through the share's session actor so
// HTTP writers and socket writers serialize on the same inbox.
func (s *Server) applyShared(r *http.Request, shareID string, cmd roster.Command) error {
	doc, version, err := s.store.SharedDocument(r.Context(), shareID)
	if err != nil {
		return err
	}
	members, err := s.store.MembersByAlliance(r.Context(), doc.AllianceID)
	if err != nil {
		members = nil
	}

	reply := make(chan *session.Session, 1)
	s.hub.Inbox() <- hub.EnsureSession{
		ShareID:  shareID,
		Document: *doc,
		Members:  members,
		Version:  version,
		Reply:    reply,
	}
	sess := <-reply

	actor := identityFrom(r)
	if actor.IsAnonymous() && cmd.Member != "" {
		// A self-identified member may withdraw their own signup.
		actor = auth.Identity{Member: cmd.Member}
	}

	errReply := make(chan error, 1)
	sess.Inbox() <- session.Apply{Cmd: cmd, Actor: actor, Reply: errReply}
	return <-errReply
}
