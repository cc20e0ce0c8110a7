package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/guildops/rosterlive/internal/auth"
	"github.com/guildops/rosterlive/internal/store"
	"github.com/guildops/rosterlive/pkg/apperr"
	"github.com/guildops/rosterlive/pkg/roster"
)

type registerRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=32"`
	Password   string `json:"password" validate:"required,min=6,max=72"`
	AllianceID string `json:"allianceId" validate:"required,max=64"`
	MemberName string `json:"memberName" validate:"max=64"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	MID      string `json:"mid"`
	Username string `json:"username"`
	Role     int    `json:"role"`
	Member   string `json:"member,omitempty"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}

	taken, err := s.store.UsernameExists(r.Context(), req.Username)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if taken {
		s.writeErr(w, apperr.Duplicate("username %q is taken", req.Username))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	mid, err := roster.NewMID(time.Now, func(id string) (bool, error) {
		return s.store.MIDExists(r.Context(), id)
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}

	acct := &store.Account{
		MID:          mid,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         s.cfg.UserRoleThreshold,
		AllianceID:   req.AllianceID,
		MemberName:   req.MemberName,
	}
	if err := s.store.CreateAccount(r.Context(), acct); err != nil {
		s.writeErr(w, err)
		return
	}
	if req.MemberName != "" {
		if err := s.store.LinkMember(r.Context(), req.AllianceID, req.MemberName, mid); err != nil {
			s.log.Warn("link member on register", zap.String("mid", mid), zap.Error(err))
		}
	}

	s.issueSession(w, r, acct, http.StatusCreated)
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeErr(w, err)
		return
	}

	acct, err := s.store.AccountByUsername(r.Context(), req.Username)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			// Same shape as a bad password.
			s.writeErr(w, apperr.Forbidden("invalid credentials"))
			return
		}
		s.writeErr(w, err)
		return
	}
	if err := auth.CheckPassword(acct.PasswordHash, req.Password); err != nil {
		s.writeErr(w, err)
		return
	}

	if err := s.store.TouchLogin(r.Context(), acct.MID, time.Now()); err != nil {
		s.log.Warn("touch login", zap.String("mid", acct.MID), zap.Error(err))
	}

	s.issueSession(w, r, acct, http.StatusOK)
}

func (s *Server) issueSession(w http.ResponseWriter, _ *http.Request, acct *store.Account, status int) {
	id := auth.Identity{MID: acct.MID, Username: acct.Username, Role: acct.Role, Member: acct.MemberName}
	tok, err := auth.SignSession([]byte(s.cfg.JWTSecret), id, s.cfg.SessionTTL, time.Now())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.setSessionCookie(w, tok)
	s.writeJSON(w, status, sessionResponse{
		Token:    tok,
		MID:      acct.MID,
		Username: acct.Username,
		Role:     acct.Role,
		Member:   acct.MemberName,
	})
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccount(r)
	if !ok {
		s.writeErr(w, apperr.Forbidden("login required"))
		return
	}
	acct, err := s.store.AccountByMID(r.Context(), id.MID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	members, err := s.store.MembersByAlliance(r.Context(), acct.AllianceID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, members)
}
